package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"jobtrack/internal/cache"
	"jobtrack/internal/emails"
	"jobtrack/internal/models"
	"jobtrack/internal/pipeline"
)

const mboxBatchSize = 100

// ImportRequest names a mailbox export on the server filesystem.
type ImportRequest struct {
	Path    string `json:"path"`
	Format  string `json:"format"` // mbox, eml or dir
	OwnerID int64  `json:"owner_id"`
}

// ImportResponse reports what the pipeline did with the imported emails.
type ImportResponse struct {
	pipeline.BatchResult
}

// ImportHandler ingests a mailbox export and runs it through the pipeline
// @Summary Import emails
// @Accept json
// @Produce json
// @Param request body handlers.ImportRequest true "Import source"
// @Success 200 {object} handlers.ImportResponse
// @Failure 400 {object} handlers.ErrorResponse
// @Failure 500 {object} handlers.ErrorResponse
// @Router /api/import [post]
func ImportHandler(pipe *pipeline.Pipeline, cache *cache.Cache, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req ImportRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid import request"})
		}
		if req.Path == "" {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "path is required"})
		}
		if req.OwnerID == 0 {
			req.OwnerID = 1
		}

		ctx := c.Request().Context()
		var total pipeline.BatchResult

		switch strings.ToLower(req.Format) {
		case "mbox":
			err := emails.ParseMBOXFileStreaming(req.Path, req.OwnerID, mboxBatchSize, logger,
				func(batch []models.RawEmail, progress emails.MBOXProgress) error {
					result := pipe.ProcessBatch(ctx, batch)
					addBatch(&total, result)
					logger.Info().Int("emails", progress.EmailsProcessed).
						Float64("percent", progress.PercentComplete).Msg("import progress")
					return ctx.Err()
				})
			if err != nil {
				return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			}

		case "eml":
			raw, err := emails.ParseEMLFile(req.Path, req.OwnerID)
			if err != nil {
				return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			}
			total = pipe.ProcessBatch(ctx, []models.RawEmail{*raw})

		case "dir", "":
			raws, err := emails.ParseDirectory(req.Path, req.OwnerID, logger)
			if err != nil {
				return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			}
			total = pipe.ProcessBatch(ctx, raws)

		default:
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "format must be mbox, eml or dir"})
		}

		cache.Clear()
		return c.JSON(http.StatusOK, ImportResponse{BatchResult: total})
	}
}

func addBatch(total *pipeline.BatchResult, r pipeline.BatchResult) {
	total.Created += r.Created
	total.Linked += r.Linked
	total.Review += r.Review
	total.Skipped += r.Skipped
	total.Ignored += r.Ignored
	total.Failed += r.Failed
	total.Total += r.Total
}
