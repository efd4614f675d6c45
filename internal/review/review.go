// Package review resolves queued manual-review items. A resolution runs
// through the same persistence paths as the automatic pipeline, so a
// human "create new" produces exactly what an automatic one would.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"jobtrack/internal/extract"
	"jobtrack/internal/models"
	"jobtrack/internal/pipeline"
	"jobtrack/internal/unwrap"
)

// Actions a reviewer can take.
const (
	ActionCreateNew      = "create_new"
	ActionLinkToExisting = "link_to_existing"
	ActionIgnore         = "ignore"
)

// Resolution is the reviewer's decision for one queued item.
type Resolution struct {
	Action        string                   `json:"action"`
	ApplicationID int64                    `json:"application_id,omitempty"`
	CompanyName   string                   `json:"company_name,omitempty"`
	JobTitle      string                   `json:"job_title,omitempty"`
	Status        models.ApplicationStatus `json:"status,omitempty"`
}

// Store is the slice of persistence the resolver needs. MarkOutcome with a
// non-zero review ID stamps the item resolved in the same transaction as
// the raw email's outcome.
type Store interface {
	GetReview(ctx context.Context, id int64) (*models.ManualReview, error)
	GetRawEmail(ctx context.Context, id int64) (*models.RawEmail, error)
	MarkOutcome(ctx context.Context, raw *models.RawEmail, resolveReviewID int64) error
}

// Resolver executes review decisions.
type Resolver struct {
	store    Store
	pipeline *pipeline.Pipeline
	logger   zerolog.Logger
}

// New creates a resolver.
func New(store Store, p *pipeline.Pipeline, logger zerolog.Logger) *Resolver {
	return &Resolver{store: store, pipeline: p, logger: logger}
}

// Resolve applies one decision to a pending review item. Each item is
// resolved at most once: the resolution stamp commits in the same
// transaction as the application or outcome write, so a retry after a
// partial failure can never produce a second application.
func (r *Resolver) Resolve(ctx context.Context, reviewID int64, res Resolution) (*models.ManualReview, error) {
	item, err := r.store.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if item.Resolved {
		return nil, fmt.Errorf("review %d already resolved", reviewID)
	}

	raw, err := r.store.GetRawEmail(ctx, item.RawEmailID)
	if err != nil {
		return nil, fmt.Errorf("load raw email for review %d: %w", reviewID, err)
	}

	subject, from, sentAt := originalFields(raw)
	extraction := resolutionExtraction(item, res)

	var actionTaken string
	var applicationID *int64

	switch res.Action {
	case ActionCreateNew:
		app, err := r.pipeline.CreateFor(ctx, raw, extraction, subject, sentAt, from, reviewID)
		if err != nil {
			return nil, err
		}
		actionTaken = "created_new"
		applicationID = &app.ID

	case ActionLinkToExisting:
		if res.ApplicationID == 0 {
			return nil, fmt.Errorf("link_to_existing requires application_id")
		}
		if err := r.pipeline.LinkTo(ctx, raw, res.ApplicationID, extraction, subject, sentAt, from, reviewID); err != nil {
			return nil, err
		}
		actionTaken = "linked_to_existing"
		id := res.ApplicationID
		applicationID = &id

	case ActionIgnore:
		raw.Outcome = pipeline.OutcomeIgnored
		if err := r.store.MarkOutcome(ctx, raw, reviewID); err != nil {
			return nil, err
		}
		actionTaken = "ignored"

	default:
		return nil, fmt.Errorf("unknown review action %q", res.Action)
	}

	r.logger.Info().Int64("review_id", reviewID).Str("action", actionTaken).
		Msg("manual review resolved")

	item.Resolved = true
	item.ActionTaken = actionTaken
	item.ApplicationID = applicationID
	return item, nil
}

// originalFields re-derives the forwarded message's headers the same way
// the pipeline did when it queued the item.
func originalFields(raw *models.RawEmail) (subject, from string, sentAt time.Time) {
	u := unwrap.Unwrap(raw.BodyText, raw.BodyHTML)
	subject = raw.Subject
	if u.OriginalSubject != "" {
		subject = u.OriginalSubject
	}
	from = raw.From
	if u.OriginalFrom != "" {
		from = u.OriginalFrom
	}
	sentAt = raw.ReceivedAt
	if u.OriginalSentAt != nil {
		sentAt = *u.OriginalSentAt
	}
	return subject, from, sentAt
}

// resolutionExtraction merges the reviewer's corrections over the
// pipeline's suggestions.
func resolutionExtraction(item *models.ManualReview, res Resolution) extract.Result {
	out := extract.Result{
		EmailType:         models.EmailTypeOtherUpdate,
		CompanyName:       item.SuggestedCompany,
		JobTitle:          item.SuggestedTitle,
		Status:            item.SuggestedStatus,
		OverallConfidence: 1.0, // human decision
		Method:            "manual",
	}
	if res.CompanyName != "" {
		out.CompanyName = res.CompanyName
	}
	if res.JobTitle != "" {
		out.JobTitle = res.JobTitle
	}
	if res.Status != "" {
		out.Status = res.Status
	}
	if out.Status == "" {
		out.Status = models.StatusOtherUpdate
	}
	out.CompanyConfidence = 1.0
	out.TitleConfidence = 1.0
	return out
}
