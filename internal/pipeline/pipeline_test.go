package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtrack/internal/extract"
	"jobtrack/internal/match"
	"jobtrack/internal/models"
)

// fakeStore is an in-memory Store for pipeline tests.
type fakeStore struct {
	mu           sync.Mutex
	nextID       int64
	raws         map[int64]*models.RawEmail
	fingerprints map[string]bool
	apps         []models.Application
	events       []models.ApplicationEvent
	links        []models.Link
	reviews      []models.ManualReview

	failSave    bool
	panicOnFind bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		raws:         map[int64]*models.RawEmail{},
		fingerprints: map[string]bool{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) SaveRawEmail(ctx context.Context, raw *models.RawEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("store down")
	}
	raw.ID = f.id()
	f.raws[raw.ID] = raw
	return nil
}

func (f *fakeStore) ExistsFingerprint(ctx context.Context, ownerID int64, digest string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fingerprints[digest], nil
}

func (f *fakeStore) FindApplicationsByOwner(ctx context.Context, ownerID int64) ([]models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnFind {
		f.panicOnFind = false
		panic("corrupt application row")
	}
	out := make([]models.Application, len(f.apps))
	copy(out, f.apps)
	return out, nil
}

func (f *fakeStore) MarkOutcome(ctx context.Context, raw *models.RawEmail, resolveReviewID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fingerprints[raw.Fingerprint] = true
	return nil
}

func (f *fakeStore) CreateApplication(ctx context.Context, raw *models.RawEmail, app *models.Application, event *models.ApplicationEvent, links []models.Link, resolveReviewID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	app.ID = f.id()
	f.apps = append(f.apps, *app)
	event.ApplicationID = app.ID
	f.events = append(f.events, *event)
	f.links = append(f.links, links...)
	f.fingerprints[raw.Fingerprint] = true
	return nil
}

func (f *fakeStore) AppendEvent(ctx context.Context, raw *models.RawEmail, app *models.Application, event *models.ApplicationEvent, links []models.Link, resolveReviewID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.apps {
		if f.apps[i].ID == app.ID {
			f.apps[i] = *app
		}
	}
	f.events = append(f.events, *event)
	f.links = append(f.links, links...)
	f.fingerprints[raw.Fingerprint] = true
	return nil
}

func (f *fakeStore) SaveReviewItem(ctx context.Context, raw *models.RawEmail, item *models.ManualReview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = f.id()
	f.reviews = append(f.reviews, *item)
	f.fingerprints[raw.Fingerprint] = true
	return nil
}

func newTestPipeline(store Store) *Pipeline {
	extractor := extract.New(nil, zerolog.Nop())
	matcher := match.New(0.80, 0.85, 0.7, 45)
	return New(store, extractor, matcher, zerolog.Nop(), 2)
}

func confirmationEmail(sourceID string) models.RawEmail {
	return models.RawEmail{
		OwnerID:    1,
		SourceID:   sourceID,
		From:       "me@gmail.com",
		Subject:    "Fwd: Your application to Google",
		ReceivedAt: time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC),
		BodyText: `---------- Forwarded message ---------
From: Google Careers <no-reply@google.com>
Date: Mon, Jan 12, 2026 at 9:30 AM
Subject: Your application to Google
To: Jane Doe <jane@gmail.com>

Thank you for applying. We received your application for the Software Engineer position at Google and will review it shortly.
`,
	}
}

func TestProcessCreatesApplication(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	raw := confirmationEmail("msg-1")
	outcome, err := p.Process(context.Background(), &raw)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, outcome.Kind)
	assert.NotEmpty(t, outcome.Fingerprint)
	require.Len(t, store.apps, 1)
	app := store.apps[0]
	assert.Equal(t, "Google", app.CompanyName)
	assert.Equal(t, "Software Engineer", app.JobTitle)
	assert.Equal(t, models.StatusAppliedReceived, app.CurrentStatus)
	assert.Equal(t, "google.com", app.SenderDomain)
	assert.Equal(t, 1, app.EventCount)
	require.Len(t, store.events, 1)
	assert.Equal(t, models.EmailTypeApplicationConfirmation, store.events[0].EventType)
	assert.Equal(t, OutcomeCreated, raw.Outcome)
}

func TestProcessDuplicateSkipped(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	first := confirmationEmail("msg-1")
	_, err := p.Process(context.Background(), &first)
	require.NoError(t, err)

	// Same content re-synced under a different mail-system ID.
	second := confirmationEmail("msg-2-resync")
	outcome, err := p.Process(context.Background(), &second)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkipped, outcome.Kind)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Len(t, store.apps, 1)
	assert.Len(t, store.events, 1)
}

func TestProcessLinksFollowUpToExistingApplication(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	first := confirmationEmail("msg-1")
	_, err := p.Process(context.Background(), &first)
	require.NoError(t, err)

	rejection := models.RawEmail{
		OwnerID:    1,
		SourceID:   "msg-2",
		From:       "no-reply@google.com",
		Subject:    "Update on your Software Engineer application",
		ReceivedAt: time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC),
		BodyText:   "Thank you for your interest in the Software Engineer position at Google. Unfortunately we will not be moving forward with your application.",
	}
	outcome, err := p.Process(context.Background(), &rejection)
	require.NoError(t, err)

	assert.Equal(t, OutcomeLinked, outcome.Kind)
	require.Len(t, store.apps, 1)
	assert.Equal(t, models.StatusRejected, store.apps[0].CurrentStatus)
	assert.Equal(t, 2, store.apps[0].EventCount)
	assert.Len(t, store.events, 2)
}

func TestProcessIgnoresNotJobRelated(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	raw := models.RawEmail{
		OwnerID:    1,
		SourceID:   "msg-3",
		From:       "friend@gmail.com",
		Subject:    "Dinner on Friday?",
		ReceivedAt: time.Now().UTC(),
		BodyText:   "Are we still on for dinner this week? Let me know what time works.",
	}
	outcome, err := p.Process(context.Background(), &raw)
	require.NoError(t, err)

	assert.Equal(t, OutcomeIgnored, outcome.Kind)
	assert.Equal(t, OutcomeIgnored, raw.Outcome)
	assert.Empty(t, store.apps)
	assert.Empty(t, store.reviews)
}

func TestProcessLowConfidenceGoesToReview(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	raw := models.RawEmail{
		OwnerID:    1,
		SourceID:   "msg-4",
		From:       "someone@gmail.com",
		Subject:    "update",
		ReceivedAt: time.Now().UTC(),
		BodyText:   "Your application is under review by the hiring team and we will be in touch.",
	}
	outcome, err := p.Process(context.Background(), &raw)
	require.NoError(t, err)

	assert.Equal(t, OutcomeReview, outcome.Kind)
	assert.Equal(t, match.ReasonLowConfidence, outcome.ReviewReason)
	require.Len(t, store.reviews, 1)
	assert.Equal(t, raw.ID, store.reviews[0].RawEmailID)
	assert.Empty(t, store.apps)
}

func TestProcessSaveFailureReturnsError(t *testing.T) {
	store := newFakeStore()
	store.failSave = true
	p := newTestPipeline(store)

	raw := confirmationEmail("msg-5")
	_, err := p.Process(context.Background(), &raw)
	assert.Error(t, err)
}

func TestProcessBatchCountsOutcomes(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	raws := []models.RawEmail{
		confirmationEmail("msg-1"),
		confirmationEmail("msg-1-dup"), // duplicate of the first
		{
			OwnerID:    1,
			SourceID:   "msg-chat",
			From:       "friend@gmail.com",
			Subject:    "Dinner on Friday?",
			ReceivedAt: time.Now().UTC(),
			BodyText:   "Are we still on for dinner this week? Let me know what time works.",
		},
	}

	result := p.ProcessBatch(context.Background(), raws)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Ignored)
	assert.Zero(t, result.Failed)
	assert.Len(t, store.apps, 1)
}

// gateStore holds the first two duplicate lookups until both workers have
// issued one, forcing the worst-case interleaving where two copies of the
// same email both pass the unlocked short-circuit before either persists.
type gateStore struct {
	*fakeStore
	gate   sync.WaitGroup
	checks int32
}

func (g *gateStore) ExistsFingerprint(ctx context.Context, ownerID int64, digest string) (bool, error) {
	if atomic.AddInt32(&g.checks, 1) <= 2 {
		g.gate.Done()
		g.gate.Wait()
	}
	return g.fakeStore.ExistsFingerprint(ctx, ownerID, digest)
}

func TestProcessBatchConcurrentDuplicatesWriteOneEvent(t *testing.T) {
	store := &gateStore{fakeStore: newFakeStore()}
	store.gate.Add(2)
	p := newTestPipeline(store)

	// The same forwarded confirmation twice in one batch, as a mailbox
	// re-sync delivers it. Both workers clear the unlocked duplicate
	// check before either commits; exactly one may write an event.
	result := p.ProcessBatch(context.Background(), []models.RawEmail{
		confirmationEmail("msg-1"),
		confirmationEmail("msg-1-resync"),
	})

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Linked)
	assert.Len(t, store.apps, 1)
	assert.Len(t, store.events, 1)
}

func TestProcessFaultRoutesToReview(t *testing.T) {
	store := newFakeStore()
	store.panicOnFind = true
	p := newTestPipeline(store)

	raw := confirmationEmail("msg-bad")
	outcome, err := p.Process(context.Background(), &raw)
	require.NoError(t, err)

	assert.Equal(t, OutcomeReview, outcome.Kind)
	assert.Equal(t, match.ReasonProcessingError, outcome.ReviewReason)
	require.Len(t, store.reviews, 1)
	assert.Equal(t, match.ReasonProcessingError, store.reviews[0].Reason)
	assert.Equal(t, raw.ID, store.reviews[0].RawEmailID)
	assert.Equal(t, OutcomeReview, raw.Outcome)
}

func TestProcessBatchContinuesPastFault(t *testing.T) {
	store := newFakeStore()
	store.panicOnFind = true
	p := newTestPipeline(store)

	result := p.ProcessBatch(context.Background(), []models.RawEmail{
		confirmationEmail("msg-1"),
		{
			OwnerID:    1,
			SourceID:   "msg-2",
			From:       "no-reply@initech.com",
			Subject:    "Update on your Data Engineer application",
			ReceivedAt: time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC),
			BodyText:   "Thank you for your interest in the Data Engineer position at Initech. Unfortunately we will not be moving forward with your application.",
		},
	})

	// Whichever email hits the fault lands in review; the other one is
	// still processed to a real outcome.
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Review)
	assert.Equal(t, 1, result.Created)
	assert.Zero(t, result.Failed)
	assert.Len(t, store.reviews, 1)
	assert.Len(t, store.apps, 1)
}

func TestProcessBatchSameCompanyEmailsSerialize(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	// Two different emails about the same application in one batch:
	// the critical section must yield one application, not two.
	first := confirmationEmail("msg-1")
	second := models.RawEmail{
		OwnerID:    1,
		SourceID:   "msg-2",
		From:       "no-reply@google.com",
		Subject:    "Update on your Software Engineer application",
		ReceivedAt: time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC),
		BodyText:   "Thank you for your interest in the Software Engineer position at Google. Unfortunately we will not be moving forward with your application.",
	}

	result := p.ProcessBatch(context.Background(), []models.RawEmail{first, second})

	assert.Equal(t, 2, result.Created+result.Linked)
	assert.Len(t, store.apps, 1)
}
