package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/luminastudio/booking/internal/platform/errors"
	"github.com/luminastudio/booking/internal/services/booking/domain/session"
)

// errorPayload is the uniform error body: a machine-readable code, a
// human-readable message and (for rejected transitions) the complete list of
// unmet guards.
type errorPayload struct {
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	Violations []violationPayload `json:"violations,omitempty"`
	Metadata   map[string]string  `json:"metadata,omitempty"`
}

type violationPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps domain errors onto HTTP statuses. Guard rejections return
// 422 with every violation so clients can render all problems at once.
func writeError(c echo.Context, err error) error {
	var gve *session.GuardViolationError
	if errors.As(err, &gve) {
		payload := errorPayload{
			Code:    string(apperrors.CodeSessionGuardViolation),
			Message: gve.Error(),
		}
		for _, v := range gve.Violations {
			payload.Violations = append(payload.Violations, violationPayload{Code: v.Code, Message: v.Message})
		}
		return c.JSON(apperrors.CodeSessionGuardViolation.HTTPStatus(), payload)
	}

	code := apperrors.CodeOf(err)
	payload := errorPayload{
		Code:    string(code),
		Message: err.Error(),
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && len(appErr.Metadata) > 0 {
		payload.Metadata = appErr.Metadata
	}
	status := code.HTTPStatus()
	if code == apperrors.CodeUnknown {
		// Do not leak internals on unclassified failures.
		payload.Message = "internal error"
		status = http.StatusInternalServerError
	}
	return c.JSON(status, payload)
}
