package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"jobtrack/internal/cache"
	"jobtrack/internal/database"
	"jobtrack/internal/models"
	"jobtrack/internal/review"
)

// ReviewsResponse wraps the pending review queue.
type ReviewsResponse struct {
	Reviews []models.ManualReview `json:"reviews"`
	Count   int                   `json:"count"`
}

// ListReviewsHandler returns the pending manual-review queue
// @Summary List pending reviews
// @Produce json
// @Param owner_id query int false "Owner ID" default(1)
// @Success 200 {object} handlers.ReviewsResponse
// @Failure 500 {object} handlers.ErrorResponse
// @Router /api/reviews [get]
func ListReviewsHandler(store *database.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		items, err := store.ListPendingReviews(c.Request().Context(), ownerIDParam(c))
		if err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, ReviewsResponse{Reviews: items, Count: len(items)})
	}
}

// ResolveReviewHandler applies a reviewer decision to a queued item
// @Summary Resolve a review item
// @Accept json
// @Produce json
// @Param id path int true "Review ID"
// @Param resolution body review.Resolution true "Decision"
// @Success 200 {object} models.ManualReview
// @Failure 400 {object} handlers.ErrorResponse
// @Failure 500 {object} handlers.ErrorResponse
// @Router /api/reviews/{id}/resolve [post]
func ResolveReviewHandler(resolver *review.Resolver, cache *cache.Cache) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid review id"})
		}

		var res review.Resolution
		if err := c.Bind(&res); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid resolution body"})
		}

		item, err := resolver.Resolve(c.Request().Context(), id, res)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		}

		cache.Clear()
		return c.JSON(http.StatusOK, item)
	}
}
