package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"jobtrack/internal/cache"
	"jobtrack/internal/database"
	"jobtrack/internal/models"
)

const applicationsCacheTTL = 30 * time.Second

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ApplicationsResponse wraps the application list.
type ApplicationsResponse struct {
	Applications []models.Application `json:"applications"`
	Count        int                  `json:"count"`
}

// ListApplicationsHandler returns all applications for the owner
// @Summary List applications
// @Produce json
// @Param owner_id query int false "Owner ID" default(1)
// @Success 200 {object} handlers.ApplicationsResponse
// @Failure 500 {object} handlers.ErrorResponse
// @Router /api/applications [get]
func ListApplicationsHandler(store *database.Store, cache *cache.Cache) echo.HandlerFunc {
	return func(c echo.Context) error {
		ownerID := ownerIDParam(c)
		key := fmt.Sprintf("applications:%d", ownerID)

		if cached, ok := cache.Get(key); ok {
			return c.JSON(http.StatusOK, cached)
		}

		apps, err := store.FindApplicationsByOwner(c.Request().Context(), ownerID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}

		response := ApplicationsResponse{Applications: apps, Count: len(apps)}
		cache.Set(key, response, applicationsCacheTTL)
		return c.JSON(http.StatusOK, response)
	}
}

// GetApplicationHandler returns one application with its timeline
// @Summary Get application detail
// @Produce json
// @Param id path int true "Application ID"
// @Param owner_id query int false "Owner ID" default(1)
// @Success 200 {object} database.ApplicationDetail
// @Failure 404 {object} handlers.ErrorResponse
// @Failure 500 {object} handlers.ErrorResponse
// @Router /api/applications/{id} [get]
func GetApplicationHandler(store *database.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid application id"})
		}

		detail, err := store.GetApplication(c.Request().Context(), ownerIDParam(c), id)
		if errors.Is(err, database.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "application not found"})
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, detail)
	}
}

func ownerIDParam(c echo.Context) int64 {
	if raw := c.QueryParam("owner_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return 1
}
