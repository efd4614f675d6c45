// Package pipeline orchestrates the processing of raw emails: unwrap,
// fingerprint, duplicate check, extract, match, persist.
//
// Every raw email reaches exactly one terminal outcome (an application
// mutation, a review item, a duplicate skip or a not-job-related ignore)
// and all persistence for one email commits as a single unit.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jobtrack/internal/extract"
	"jobtrack/internal/fingerprint"
	"jobtrack/internal/match"
	"jobtrack/internal/models"
	"jobtrack/internal/unwrap"
)

// Terminal outcomes of processing one raw email.
const (
	OutcomeCreated = "created_application"
	OutcomeLinked  = "linked_event"
	OutcomeReview  = "review_item"
	OutcomeSkipped = "skipped_duplicate"
	OutcomeIgnored = "ignored_not_job_related"
)

// Outcome reports what happened to one raw email.
type Outcome struct {
	Kind          string
	ApplicationID int64
	Fingerprint   string
	Confidence    float64
	ReviewReason  string
}

// Store is the persistence boundary. The mutating methods that combine an
// application/event/link/review write with the raw email's outcome are
// atomic: either everything commits or nothing does. A non-zero
// resolveReviewID additionally marks that manual-review item resolved in
// the same transaction; the automatic pipeline always passes 0.
type Store interface {
	SaveRawEmail(ctx context.Context, raw *models.RawEmail) error
	ExistsFingerprint(ctx context.Context, ownerID int64, digest string) (bool, error)
	FindApplicationsByOwner(ctx context.Context, ownerID int64) ([]models.Application, error)
	MarkOutcome(ctx context.Context, raw *models.RawEmail, resolveReviewID int64) error
	CreateApplication(ctx context.Context, raw *models.RawEmail, app *models.Application, event *models.ApplicationEvent, links []models.Link, resolveReviewID int64) error
	AppendEvent(ctx context.Context, raw *models.RawEmail, app *models.Application, event *models.ApplicationEvent, links []models.Link, resolveReviewID int64) error
	SaveReviewItem(ctx context.Context, raw *models.RawEmail, item *models.ManualReview) error
}

// Pipeline ties the stages together.
type Pipeline struct {
	store     Store
	extractor *extract.Extractor
	matcher   *match.Matcher
	logger    zerolog.Logger
	workers   int

	// mu serializes the match-read plus write-back critical section.
	// Two emails about the same job arriving in one batch would otherwise
	// race the duplicate-application check. A single lock is a superset
	// of per-application serialization and the section is cheap.
	mu sync.Mutex
}

// New creates the pipeline. workers bounds batch parallelism.
func New(store Store, extractor *extract.Extractor, matcher *match.Matcher, logger zerolog.Logger, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		store:     store,
		extractor: extractor,
		matcher:   matcher,
		logger:    logger,
		workers:   workers,
	}
}

// Process runs one raw email through the full pipeline. Unexpected
// failures in the unwrap/extract stages are converted into a
// processing_error review item rather than propagated, so one malformed
// email cannot block a batch; returned errors are persistence failures.
func (p *Pipeline) Process(ctx context.Context, raw *models.RawEmail) (outcome Outcome, err error) {
	if raw.ID == 0 {
		if err := p.store.SaveRawEmail(ctx, raw); err != nil {
			return Outcome{}, fmt.Errorf("save raw email: %w", err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Str("source_id", raw.SourceID).
				Msg("processing fault, routing to manual review")
			outcome, err = p.reviewProcessingError(ctx, raw, fmt.Sprintf("processing fault: %v", r))
		}
	}()

	// Stage: RECEIVED -> UNWRAPPED.
	unwrapped := unwrap.Unwrap(raw.BodyText, raw.BodyHTML)

	// A non-forward keeps its visible headers; a forward we could not
	// fully take apart falls back field by field.
	from := coalesce(unwrapped.OriginalFrom, raw.From)
	subject := coalesce(unwrapped.OriginalSubject, raw.Subject)
	sentAt := raw.ReceivedAt
	if unwrapped.OriginalSentAt != nil {
		sentAt = *unwrapped.OriginalSentAt
	}
	body := coalesce(unwrapped.CleanBody, raw.BodyText)

	// Stage: FINGERPRINTED, then the cheap duplicate short-circuit.
	raw.Fingerprint = fingerprint.New(from, subject, unwrapped.OriginalSentAt, body)
	seen, err := p.store.ExistsFingerprint(ctx, raw.OwnerID, raw.Fingerprint)
	if err != nil {
		return Outcome{}, fmt.Errorf("fingerprint lookup: %w", err)
	}
	if seen {
		raw.Outcome = OutcomeSkipped
		if err := p.store.MarkOutcome(ctx, raw, 0); err != nil {
			return Outcome{}, fmt.Errorf("mark duplicate: %w", err)
		}
		p.logger.Debug().Str("fingerprint", raw.Fingerprint).Msg("duplicate email skipped")
		return Outcome{Kind: OutcomeSkipped, Fingerprint: raw.Fingerprint}, nil
	}

	// Stage: EXTRACTED.
	extraction := p.extractor.Extract(ctx, subject, body, from, sentAt)
	raw.Confidence = extraction.OverallConfidence

	if extraction.EmailType == models.EmailTypeNotJobRelated {
		raw.Outcome = OutcomeIgnored
		if err := p.store.MarkOutcome(ctx, raw, 0); err != nil {
			return Outcome{}, fmt.Errorf("mark ignored: %w", err)
		}
		return Outcome{Kind: OutcomeIgnored, Fingerprint: raw.Fingerprint}, nil
	}

	// Stage: MATCHED -> PERSISTED. The read of existing applications and
	// the write-back are one critical section.
	p.mu.Lock()
	defer p.mu.Unlock()

	// A sibling copy in the same batch may have committed between the
	// unlocked short-circuit above and here. Re-check under the lock so at
	// most one copy of a fingerprint ever writes an event.
	seen, err = p.store.ExistsFingerprint(ctx, raw.OwnerID, raw.Fingerprint)
	if err != nil {
		return Outcome{}, fmt.Errorf("fingerprint lookup: %w", err)
	}
	if seen {
		raw.Outcome = OutcomeSkipped
		if err := p.store.MarkOutcome(ctx, raw, 0); err != nil {
			return Outcome{}, fmt.Errorf("mark duplicate: %w", err)
		}
		p.logger.Debug().Str("fingerprint", raw.Fingerprint).Msg("duplicate email skipped")
		return Outcome{Kind: OutcomeSkipped, Fingerprint: raw.Fingerprint}, nil
	}

	existing, err := p.store.FindApplicationsByOwner(ctx, raw.OwnerID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load applications: %w", err)
	}

	decision := p.matcher.Match(match.Input{
		Extraction:   extraction,
		Fingerprint:  raw.Fingerprint,
		SenderDomain: domainOf(from),
		Subject:      subject,
		EmailDate:    sentAt,
	}, existing)

	switch decision.Kind {
	case match.KindLink:
		app := findApplication(existing, decision.ApplicationID)
		if app == nil {
			return Outcome{}, fmt.Errorf("matched application %d not loaded", decision.ApplicationID)
		}
		if err := p.linkLocked(ctx, raw, app, extraction, subject, sentAt, from, 0); err != nil {
			return Outcome{}, err
		}
		p.logger.Info().Int64("application_id", app.ID).Str("strategy", decision.Strategy).
			Str("company", app.CompanyName).Msg("email linked to application")
		return Outcome{Kind: OutcomeLinked, ApplicationID: app.ID, Fingerprint: raw.Fingerprint, Confidence: extraction.OverallConfidence}, nil

	case match.KindCreateNew:
		app, err := p.createLocked(ctx, raw, extraction, subject, sentAt, from, 0)
		if err != nil {
			return Outcome{}, err
		}
		p.logger.Info().Int64("application_id", app.ID).Str("company", app.CompanyName).
			Str("title", app.JobTitle).Msg("created new application")
		return Outcome{Kind: OutcomeCreated, ApplicationID: app.ID, Fingerprint: raw.Fingerprint, Confidence: extraction.OverallConfidence}, nil

	default:
		item := &models.ManualReview{
			OwnerID:          raw.OwnerID,
			RawEmailID:       raw.ID,
			Reason:           decision.Reason,
			SuggestedCompany: extraction.CompanyName,
			SuggestedTitle:   extraction.JobTitle,
			SuggestedStatus:  extraction.Status,
			Confidence:       extraction.OverallConfidence,
		}
		raw.Outcome = OutcomeReview
		if err := p.store.SaveReviewItem(ctx, raw, item); err != nil {
			return Outcome{}, fmt.Errorf("save review item: %w", err)
		}
		p.logger.Info().Str("reason", decision.Reason).Str("subject", subject).
			Msg("email routed to manual review")
		return Outcome{Kind: OutcomeReview, Fingerprint: raw.Fingerprint, Confidence: extraction.OverallConfidence, ReviewReason: decision.Reason}, nil
	}
}

// CreateFor persists a brand-new application from an extraction result.
// The manual-review resolver reuses it to execute a human "create new" the
// same way the pipeline executes its own; a non-zero resolveReviewID marks
// that review item resolved in the same transaction. Caller must not hold
// pipeline internals; the critical section is taken here.
func (p *Pipeline) CreateFor(ctx context.Context, raw *models.RawEmail, extraction extract.Result, subject string, eventAt time.Time, from string, resolveReviewID int64) (*models.Application, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createLocked(ctx, raw, extraction, subject, eventAt, from, resolveReviewID)
}

// LinkTo appends an event for raw to an existing application, reused by
// the manual-review resolver for "link to existing".
func (p *Pipeline) LinkTo(ctx context.Context, raw *models.RawEmail, applicationID int64, extraction extract.Result, subject string, eventAt time.Time, from string, resolveReviewID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, err := p.store.FindApplicationsByOwner(ctx, raw.OwnerID)
	if err != nil {
		return fmt.Errorf("load applications: %w", err)
	}
	app := findApplication(existing, applicationID)
	if app == nil {
		return fmt.Errorf("application %d not found", applicationID)
	}
	return p.linkLocked(ctx, raw, app, extraction, subject, eventAt, from, resolveReviewID)
}

func (p *Pipeline) createLocked(ctx context.Context, raw *models.RawEmail, extraction extract.Result, subject string, eventAt time.Time, from string, resolveReviewID int64) (*models.Application, error) {
	now := time.Now().UTC()
	app := &models.Application{
		OwnerID:           raw.OwnerID,
		CompanyName:       coalesce(extraction.CompanyName, "Unknown Company"),
		JobTitle:          coalesce(extraction.JobTitle, "Unknown Position"),
		Location:          extraction.Location,
		CurrentStatus:     extraction.Status,
		StatusUpdatedAt:   eventAt,
		CompanyConfidence: extraction.CompanyConfidence,
		TitleConfidence:   extraction.TitleConfidence,
		OverallConfidence: extraction.OverallConfidence,
		SenderDomain:      domainOf(from),
		LastEventSubject:  subject,
		LatestEventAt:     eventAt,
		EventCount:        1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	applyAction(app, extraction.Action)

	event := buildEvent(raw, extraction, subject, eventAt)
	raw.Outcome = OutcomeCreated
	if err := p.store.CreateApplication(ctx, raw, app, event, buildLinks(raw, extraction), resolveReviewID); err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}
	return app, nil
}

func (p *Pipeline) linkLocked(ctx context.Context, raw *models.RawEmail, app *models.Application, extraction extract.Result, subject string, eventAt time.Time, from string, resolveReviewID int64) error {
	if extraction.Status != models.StatusOtherUpdate && extraction.Status != app.CurrentStatus {
		app.CurrentStatus = extraction.Status
		app.StatusUpdatedAt = eventAt
	}
	applyAction(app, extraction.Action)
	if eventAt.After(app.LatestEventAt) {
		app.LatestEventAt = eventAt
		app.LastEventSubject = subject
		if d := domainOf(from); d != "" {
			app.SenderDomain = d
		}
	}
	app.EventCount++
	app.UpdatedAt = time.Now().UTC()

	event := buildEvent(raw, extraction, subject, eventAt)
	raw.Outcome = OutcomeLinked
	if err := p.store.AppendEvent(ctx, raw, app, event, buildLinks(raw, extraction), resolveReviewID); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (p *Pipeline) reviewProcessingError(ctx context.Context, raw *models.RawEmail, detail string) (Outcome, error) {
	item := &models.ManualReview{
		OwnerID:    raw.OwnerID,
		RawEmailID: raw.ID,
		Reason:     match.ReasonProcessingError,
	}
	raw.Outcome = OutcomeReview
	if err := p.store.SaveReviewItem(ctx, raw, item); err != nil {
		return Outcome{}, fmt.Errorf("save processing-error review (%s): %w", detail, err)
	}
	return Outcome{Kind: OutcomeReview, Fingerprint: raw.Fingerprint, ReviewReason: match.ReasonProcessingError}, nil
}

var eventTitles = map[models.EmailType]string{
	models.EmailTypeApplicationConfirmation: "Application Received",
	models.EmailTypeRejection:               "Application Rejected",
	models.EmailTypeAssessmentInvite:        "Assessment Invited",
	models.EmailTypeInterviewRequest:        "Interview Requested",
	models.EmailTypeInterviewConfirmation:   "Interview Scheduled",
	models.EmailTypeOffer:                   "Offer Extended",
	models.EmailTypeRecruiterOutreach:       "Recruiter Outreach",
}

func buildEvent(raw *models.RawEmail, extraction extract.Result, subject string, eventAt time.Time) *models.ApplicationEvent {
	title, ok := eventTitles[extraction.EmailType]
	if !ok {
		title = "Update"
	}
	return &models.ApplicationEvent{
		RawEmailID: raw.ID,
		EventType:  extraction.EmailType,
		Status:     extraction.Status,
		EventAt:    eventAt,
		Title:      title,
		Subject:    subject,
		Confidence: extraction.OverallConfidence,
	}
}

func buildLinks(raw *models.RawEmail, extraction extract.Result) []models.Link {
	links := make([]models.Link, 0, len(extraction.Links))
	for _, l := range extraction.Links {
		links = append(links, models.Link{
			RawEmailID: raw.ID,
			URL:        l.URL,
			LinkType:   l.Type,
			Confidence: l.Confidence,
		})
	}
	return links
}

func applyAction(app *models.Application, action *extract.Action) {
	if action == nil {
		return
	}
	t := action.Type
	app.ActionRequired = true
	app.ActionType = &t
	app.ActionDescription = action.Description
	app.ActionDeadline = action.Deadline
}

func findApplication(apps []models.Application, id int64) *models.Application {
	for i := range apps {
		if apps[i].ID == id {
			return &apps[i]
		}
	}
	return nil
}

func domainOf(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(strings.Trim(address[at+1:], "> "))
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
