package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"jobtrack/internal/database"
)

// StatsHandler returns pipeline throughput counters
// @Summary Processing statistics
// @Produce json
// @Param owner_id query int false "Owner ID" default(1)
// @Success 200 {object} models.ProcessingStats
// @Failure 500 {object} handlers.ErrorResponse
// @Router /api/stats [get]
func StatsHandler(store *database.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		stats, err := store.Stats(c.Request().Context(), ownerIDParam(c))
		if err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, stats)
	}
}
