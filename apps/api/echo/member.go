package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/member"
)

type memberApi struct {
	svc      *member.Service
	validate *validator.Validate
}

func registerMemberAPI(g *echo.Group, svc *member.Service, validate *validator.Validate) {
	api := memberApi{svc: svc, validate: validate}

	mg := g.Group("/members")
	mg.GET("", api.query)
	mg.POST("", api.create)

	// detail endpoints
	dg := mg.Group("/:id", objectMiddleware(func(ctx echo.Context, id string) (member.Member, error) {
		return api.svc.Get(ctx.Request().Context(), id)
	}))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *memberApi) query(ctx echo.Context) error {
	var filter member.QueryFilter
	var page core.Page
	if err := bindQuery(ctx, &filter, &page); err != nil {
		return errors.Wrap(err, "binding member query")
	}

	members, err := api.svc.Query(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	return respond(ctx, http.StatusOK, "members retrieved", newListData(members))
}

func (api *memberApi) create(ctx echo.Context) error {
	var data member.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating member")
	}
	return respond(ctx, http.StatusCreated, "member created", m)
}

func (api *memberApi) retrieve(ctx echo.Context) error {
	m, err := getContextObject[member.Member](ctx)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "member retrieved", m)
}

func (api *memberApi) update(ctx echo.Context) error {
	m, err := getContextObject[member.Member](ctx)
	if err != nil {
		return err
	}

	var data member.UpdateMember
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMember")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if m, err = api.svc.Update(ctx.Request().Context(), m, data); err != nil {
		return errors.Wrap(err, "updating member")
	}
	return respond(ctx, http.StatusOK, "member updated", m)
}

func (api *memberApi) destroy(ctx echo.Context) error {
	m, err := getContextObject[member.Member](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), m.ID); err != nil {
		return errors.Wrap(err, "deleting member")
	}
	return respond(ctx, http.StatusOK, "member deleted", nil)
}
