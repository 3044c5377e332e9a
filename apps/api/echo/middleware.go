package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
)

const objectCtxKey = "object"

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

// objectMiddleware loads the object identified by the `:id` path param into the context.
func objectMiddleware[T any](get func(echo.Context, string) (T, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			obj, err := get(ctx, ctx.Param("id"))
			if err != nil {
				return err
			}
			ctx.Set(objectCtxKey, obj)
			return next(ctx)
		}
	}
}

func getContextObject[T any](ctx echo.Context) (T, error) {
	obj, ok := ctx.Get(objectCtxKey).(T)
	if !ok {
		return obj, errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return obj, nil
}

// rateLimitMiddleware limits requests per client IP. Store errors deny the request with 503, not 429.
func rateLimitMiddleware(store middleware.RateLimiterStore, logger core.Logger) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "could not identify client").SetInternal(err)
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			if err != nil {
				logger.Warn("rate limiter unavailable", err, map[string]interface{}{"identifier": identifier})
				return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable").SetInternal(err)
			}
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		},
	})
}
