package presenter

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/yearone-io/story-adventure/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func InternalError(c echo.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// Error maps a commit/read failure onto its HTTP shape. Each outcome in the
// taxonomy keeps a stable machine-readable code so clients can branch without
// parsing messages.
func Error(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
	case errors.Is(err, domain.ErrNotStarted):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_started"})
	case errors.Is(err, domain.ErrNetworkMismatch):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: "network_mismatch"})
	case errors.Is(err, domain.ErrUserCancelled):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "user_cancelled"})
	case errors.Is(err, domain.ErrTransactionReverted):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "transaction_reverted"})
	case errors.Is(err, domain.ErrUpstream):
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error(), Code: "upstream_failure"})
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
