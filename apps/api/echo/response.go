package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/maktaba/core"
)

type (
	Response struct {
		Success bool        `json:"success"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}

	ErrorResponse struct {
		Success bool              `json:"success"`
		Message string            `json:"message"`
		Errors  map[string]string `json:"errors,omitempty"`
	}

	PageMeta struct {
		CurrentPage int `json:"current_page"`
		PerPage     int `json:"per_page"`
		Total       int `json:"total"`
		LastPage    int `json:"last_page"`
	}

	ListData[T any] struct {
		Items []T      `json:"items"`
		Meta  PageMeta `json:"meta"`
	}
)

func newListData[T any](p core.Paginated[T]) ListData[T] {
	return ListData[T]{
		Items: p.Items,
		Meta: PageMeta{
			CurrentPage: p.Page.Number,
			PerPage:     p.Page.Size,
			Total:       p.Total,
			LastPage:    p.LastPage(),
		},
	}
}

func respond(ctx echo.Context, code int, msg string, data interface{}) error {
	return ctx.JSON(code, Response{Success: true, Message: msg, Data: data})
}

// bindQuery binds the query string into each of dst.
func bindQuery(ctx echo.Context, dst ...interface{}) error {
	binder := new(echo.DefaultBinder)
	for _, d := range dst {
		if err := binder.BindQueryParams(ctx, d); err != nil {
			return err
		}
	}
	return nil
}
