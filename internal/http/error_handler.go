package http

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "capture-service/pkg/errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// NewErrorHandler returns the central echo error handler. It maps sentinel
// errors to HTTP status codes, keeps internal causes out of responses, and
// logs everything with the request id.
func NewErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "internal server error"

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			code = httpErr.Code
			message = fmt.Sprintf("%v", httpErr.Message)
		} else {
			switch {
			case errors.Is(err, apperrors.ErrValidation):
				code = http.StatusBadRequest
				message = "invalid input"
			case errors.Is(err, apperrors.ErrInvalidCredentials):
				code = http.StatusUnauthorized
				message = "invalid credentials"
			case errors.Is(err, apperrors.ErrUnauthorized):
				code = http.StatusUnauthorized
				message = "authentication required"
			case errors.Is(err, apperrors.ErrForbidden):
				code = http.StatusForbidden
				message = "access denied"
			case errors.Is(err, apperrors.ErrNotFound):
				code = http.StatusNotFound
				message = "resource not found"
			case errors.Is(err, apperrors.ErrConflict):
				code = http.StatusConflict
				message = "resource conflict"
			case errors.Is(err, apperrors.ErrInvalidState):
				code = http.StatusConflict
				message = "invalid state transition"
			case errors.Is(err, apperrors.ErrPrecondition):
				code = http.StatusPreconditionFailed
				message = "precondition not met"
			case errors.Is(err, apperrors.ErrExternalService):
				code = http.StatusBadGateway
				message = "upstream service unavailable"
			}

			var appErr *apperrors.AppError
			if errors.As(err, &appErr) && code < 500 {
				message = appErr.Message
			}
		}

		requestID := c.Response().Header().Get(echo.HeaderXRequestID)

		if code >= 500 {
			logger.Error("request failed",
				zap.String("request_id", requestID),
				zap.Int("status", code),
				zap.Error(err))
		} else {
			logger.Warn("client error",
				zap.String("request_id", requestID),
				zap.Int("status", code),
				zap.Error(err))
		}

		if err := c.JSON(code, map[string]any{
			"error":      message,
			"request_id": requestID,
		}); err != nil {
			logger.Error("failed to write error response", zap.Error(err))
		}
	}
}
