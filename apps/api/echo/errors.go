package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		resp := ErrorResponse{}
		var code int

		switch {
		case core.IsNotFound(err):
			code = http.StatusNotFound
			resp.Message = errors.Cause(err).Error()
		case core.IsRuleError(err):
			code = http.StatusUnprocessableEntity
			resp.Message = errors.Cause(err).Error()
		default:
			switch origErr := errors.Cause(err).(type) {
			case *echo.HTTPError:
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				if msg, ok := origErr.Message.(string); ok {
					resp.Message = msg
				} else {
					resp.Message = http.StatusText(code)
				}
			case validator.ValidationErrors:
				code = http.StatusBadRequest
				resp.Message = "invalid data"
				resp.Errors = make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					resp.Errors[vErr.Field()] = vErr.Translate(translator)
				}
			case *core.ValidationError:
				code = http.StatusBadRequest
				resp.Message = origErr.Error()
				if resp.Message == "" {
					resp.Message = "invalid data"
				}
				if origErr.Fields != nil {
					resp.Errors = make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						resp.Errors[fErr.Field] = fErr.Error
					}
				}
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				resp.Message = msg

				logger.Error(
					msg,
					errors.Wrap(err, msg),
					map[string]interface{}{
						"request_id": ctx.Response().Header().Get(echo.HeaderXRequestID),
						"route":      ctx.Path(),
					},
					ctx.Request(),
				)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			resp.Message = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
