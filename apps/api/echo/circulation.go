package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/circulation"
)

type circulationApi struct {
	svc      *circulation.Service
	validate *validator.Validate
}

func registerCirculationAPI(g *echo.Group, svc *circulation.Service, validate *validator.Validate) {
	api := circulationApi{svc: svc, validate: validate}

	cg := g.Group("/circulation")
	cg.GET("", api.query)
	cg.POST("/issue", api.issue)
	cg.POST("/return", api.giveBack)
	cg.GET("/:id", api.retrieve)
	cg.POST("/:id/lost", api.markLost)
}

// Handlers

func (api *circulationApi) issue(ctx echo.Context) error {
	var data circulation.IssueRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IssueRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Issue(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "issuing book")
	}
	return respond(ctx, http.StatusCreated, "book issued successfully", res)
}

func (api *circulationApi) giveBack(ctx echo.Context) error {
	var data circulation.ReturnRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReturnRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Return(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "returning book")
	}
	return respond(ctx, http.StatusOK, "book returned successfully", res)
}

func (api *circulationApi) query(ctx echo.Context) error {
	var filter circulation.QueryFilter
	var page core.Page
	if err := bindQuery(ctx, &filter, &page); err != nil {
		return errors.Wrap(err, "binding circulation query")
	}

	loans, err := api.svc.Query(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying circulation records")
	}
	return respond(ctx, http.StatusOK, "circulation records retrieved", newListData(loans))
}

func (api *circulationApi) retrieve(ctx echo.Context) error {
	loan, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving circulation record")
	}
	return respond(ctx, http.StatusOK, "circulation record retrieved", loan)
}

func (api *circulationApi) markLost(ctx echo.Context) error {
	loan, err := api.svc.MarkLost(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking circulation record as lost")
	}
	return respond(ctx, http.StatusOK, "circulation record marked as lost", loan)
}
