package controllers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jakejheack/pony/models"
)

// respondError maps a ledger/agency error kind to its HTTP shape. The
// message stays specific so clients can tell an unknown account from an
// empty wallet.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Not found",
		})
	case errors.Is(err, models.ErrInvalidAmount):
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid amount",
		})
	case errors.Is(err, models.ErrInvalidOperation):
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Cannot transfer to yourself",
		})
	case errors.Is(err, models.ErrInsufficientFunds):
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Insufficient coins",
		})
	case errors.Is(err, models.ErrConflict):
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Conflicting state",
		})
	default:
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Server error",
		})
	}
}
