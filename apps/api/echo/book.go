package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/book"
)

type bookApi struct {
	svc      *book.Service
	validate *validator.Validate
}

func registerBookAPI(g *echo.Group, svc *book.Service, validate *validator.Validate) {
	api := bookApi{svc: svc, validate: validate}

	bg := g.Group("/books")
	bg.GET("", api.query)
	bg.POST("", api.create)

	// detail endpoints
	dg := bg.Group("/:id", objectMiddleware(func(ctx echo.Context, id string) (book.Book, error) {
		return api.svc.Get(ctx.Request().Context(), id)
	}))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *bookApi) query(ctx echo.Context) error {
	var filter book.QueryFilter
	var page core.Page
	if err := bindQuery(ctx, &filter, &page); err != nil {
		return errors.Wrap(err, "binding book query")
	}

	books, err := api.svc.Query(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying books")
	}
	return respond(ctx, http.StatusOK, "books retrieved", newListData(books))
}

func (api *bookApi) create(ctx echo.Context) error {
	var data book.NewBook
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBook")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating book")
	}
	return respond(ctx, http.StatusCreated, "book created", b)
}

func (api *bookApi) retrieve(ctx echo.Context) error {
	b, err := getContextObject[book.Book](ctx)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, "book retrieved", b)
}

func (api *bookApi) update(ctx echo.Context) error {
	b, err := getContextObject[book.Book](ctx)
	if err != nil {
		return err
	}

	var data book.UpdateBook
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBook")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if b, err = api.svc.Update(ctx.Request().Context(), b, data); err != nil {
		return errors.Wrap(err, "updating book")
	}
	return respond(ctx, http.StatusOK, "book updated", b)
}

func (api *bookApi) destroy(ctx echo.Context) error {
	b, err := getContextObject[book.Book](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), b.ID); err != nil {
		return errors.Wrap(err, "deleting book")
	}
	return respond(ctx, http.StatusOK, "book deleted", nil)
}
