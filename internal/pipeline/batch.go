package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"jobtrack/internal/models"
)

// BatchResult aggregates the outcomes of one batch run.
type BatchResult struct {
	Created  int `json:"created"`
	Linked   int `json:"linked"`
	Review   int `json:"review"`
	Skipped  int `json:"skipped"`
	Ignored  int `json:"ignored"`
	Failed   int `json:"failed"`
	Total    int `json:"total"`
}

// ProcessBatch runs the pipeline over many raw emails with bounded
// parallelism. A persistence failure on one email is logged and counted,
// not allowed to cancel the rest of the batch.
func (p *Pipeline) ProcessBatch(ctx context.Context, raws []models.RawEmail) BatchResult {
	var (
		mu     sync.Mutex
		result = BatchResult{Total: len(raws)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i := range raws {
		raw := &raws[i]
		g.Go(func() error {
			outcome, err := p.Process(gctx, raw)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Error().Err(err).Str("source_id", raw.SourceID).Msg("email processing failed")
				result.Failed++
				return nil
			}
			switch outcome.Kind {
			case OutcomeCreated:
				result.Created++
			case OutcomeLinked:
				result.Linked++
			case OutcomeReview:
				result.Review++
			case OutcomeSkipped:
				result.Skipped++
			case OutcomeIgnored:
				result.Ignored++
			}
			return nil
		})
	}

	// Closures never return an error, so this only waits.
	_ = g.Wait()
	return result
}
