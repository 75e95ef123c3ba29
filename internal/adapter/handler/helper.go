package handler

import (
	stdErrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-insights/errors"
)

// errorBody is the error response shape shared by all endpoints.
type errorBody struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// processingErrorBody is the fixed shape of a pipeline failure report:
// details is the plain failure message, not an object.
type processingErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Code    string `json:"code,omitempty"`
}

// getRequestID tries to read X-Request-ID from the request
func getRequestID(c echo.Context) string {
	if c == nil || c.Request() == nil {
		return ""
	}
	return c.Request().Header.Get("X-Request-ID")
}

// handleError centralizes error handling and logging.
func handleError(c echo.Context, logger *zap.Logger, err error) error {
	var appErr errors.AppError
	if !stdErrors.As(err, &appErr) {
		appErr = errors.ErrInternal(err)
	}

	if logger != nil {
		logger.Error("http.response.error",
			zap.String("request_id", getRequestID(c)),
			zap.String("path", c.Path()),
			zap.String("app_code", appErr.Code.String()),
			zap.Error(err),
		)
	}

	body := errorBody{
		Error: appErr.Message,
		Code:  appErr.Code.String(),
	}
	if appErr.Raw != nil {
		body.Details = map[string]string{"cause": appErr.Raw.Error()}
	}
	for k, v := range appErr.Details {
		if body.Details == nil {
			body.Details = make(map[string]string)
		}
		body.Details[k] = v
	}

	httpCode := appErr.HTTPCode
	if httpCode == 0 {
		httpCode = http.StatusInternalServerError
	}
	return c.JSON(httpCode, body)
}

// handleProcessingError reports pipeline failures in the fixed shape the
// processing endpoint promises: error text, failure details, stage code.
func handleProcessingError(c echo.Context, logger *zap.Logger, err error) error {
	var appErr errors.AppError
	if !stdErrors.As(err, &appErr) {
		appErr = errors.ErrProcessingFailed(err)
	}

	// Invocation-level rejections keep their own shape and status.
	switch appErr.Code {
	case errors.ErrorCode_MEETING_NOT_FOUND,
		errors.ErrorCode_ANALYSIS_IN_PROGRESS,
		errors.ErrorCode_INVALID_PAYLOAD,
		errors.ErrorCode_INVALID_ARGUMENT:
		return handleError(c, logger, err)
	}

	if logger != nil {
		logger.Error("http.response.error",
			zap.String("request_id", getRequestID(c)),
			zap.String("path", c.Path()),
			zap.String("app_code", appErr.Code.String()),
			zap.Error(err),
		)
	}

	return c.JSON(http.StatusInternalServerError, processingErrorBody{
		Error:   "Processing failed",
		Details: appErr.Message,
		Code:    appErr.Code.String(),
	})
}
