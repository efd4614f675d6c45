package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"jobtrack/internal/models"
)

// Store persists pipeline records. All multi-row terminal writes run in a
// single transaction.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an open connection.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// SaveRawEmail inserts the immutable capture and fills in the row ID.
func (s *Store) SaveRawEmail(ctx context.Context, raw *models.RawEmail) error {
	if raw.CreatedAt.IsZero() {
		raw.CreatedAt = time.Now().UTC()
	}
	id, err := s.insert(ctx, s.db, `
		INSERT INTO raw_emails
			(owner_id, source_id, from_addr, to_addr, subject, received_at, body_text, body_html, fingerprint, outcome, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', '', 0, ?)`,
		raw.OwnerID, raw.SourceID, raw.From, raw.To, raw.Subject, raw.ReceivedAt,
		raw.BodyText, raw.BodyHTML, raw.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert raw email: %w", err)
	}
	raw.ID = id
	return nil
}

// ExistsFingerprint reports whether a processed email with this digest
// already exists for the owner.
func (s *Store) ExistsFingerprint(ctx context.Context, ownerID int64, digest string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		s.db.Rebind(`SELECT COUNT(1) FROM raw_emails WHERE owner_id = ? AND fingerprint = ?`),
		ownerID, digest)
	if err != nil {
		return false, fmt.Errorf("count fingerprint: %w", err)
	}
	return count > 0, nil
}

// FindApplicationsByOwner returns every application for one owner, newest
// activity first. The matcher works over this full set.
func (s *Store) FindApplicationsByOwner(ctx context.Context, ownerID int64) ([]models.Application, error) {
	apps := []models.Application{}
	err := s.db.SelectContext(ctx, &apps,
		s.db.Rebind(`SELECT * FROM applications WHERE owner_id = ? ORDER BY latest_event_at DESC`),
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("select applications: %w", err)
	}
	return apps, nil
}

// MarkOutcome records a terminal disposition that touches no application
// row (duplicate skip, not-job-related ignore). A non-zero resolveReviewID
// stamps that review item resolved in the same transaction.
func (s *Store) MarkOutcome(ctx context.Context, raw *models.RawEmail, resolveReviewID int64) error {
	if resolveReviewID != 0 {
		return s.inTx(ctx, func(tx *sqlx.Tx) error {
			if err := s.markOutcomeTx(ctx, tx, raw); err != nil {
				return err
			}
			return s.resolveReviewTx(ctx, tx, resolveReviewID, "ignored", nil)
		})
	}
	now := time.Now().UTC()
	raw.ProcessedAt = &now
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE raw_emails SET fingerprint = ?, outcome = ?, confidence = ?, processed_at = ? WHERE id = ?`),
		raw.Fingerprint, raw.Outcome, raw.Confidence, now, raw.ID)
	if err != nil {
		return fmt.Errorf("mark outcome: %w", err)
	}
	return nil
}

// CreateApplication atomically inserts the application, its first event,
// any links, and the raw email's outcome. A non-zero resolveReviewID
// stamps that review item resolved in the same transaction.
func (s *Store) CreateApplication(ctx context.Context, raw *models.RawEmail, app *models.Application, event *models.ApplicationEvent, links []models.Link, resolveReviewID int64) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.insert(ctx, tx, `
			INSERT INTO applications
				(owner_id, company_name, job_title, location, current_status, status_updated_at,
				 action_required, action_type, action_description, action_deadline,
				 company_confidence, title_confidence, overall_confidence,
				 sender_domain, last_event_subject, latest_event_at, event_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			app.OwnerID, app.CompanyName, app.JobTitle, app.Location, app.CurrentStatus, app.StatusUpdatedAt,
			app.ActionRequired, app.ActionType, app.ActionDescription, app.ActionDeadline,
			app.CompanyConfidence, app.TitleConfidence, app.OverallConfidence,
			app.SenderDomain, app.LastEventSubject, app.LatestEventAt, app.EventCount, app.CreatedAt, app.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert application: %w", err)
		}
		app.ID = id
		if err := s.appendEventTx(ctx, tx, raw, app.ID, event, links); err != nil {
			return err
		}
		if resolveReviewID != 0 {
			return s.resolveReviewTx(ctx, tx, resolveReviewID, "created_new", &app.ID)
		}
		return nil
	})
}

// AppendEvent atomically updates the application, inserts the event and
// links, and records the raw email's outcome. A non-zero resolveReviewID
// stamps that review item resolved in the same transaction.
func (s *Store) AppendEvent(ctx context.Context, raw *models.RawEmail, app *models.Application, event *models.ApplicationEvent, links []models.Link, resolveReviewID int64) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE applications SET
				current_status = ?, status_updated_at = ?,
				action_required = ?, action_type = ?, action_description = ?, action_deadline = ?,
				sender_domain = ?, last_event_subject = ?, latest_event_at = ?, event_count = ?, updated_at = ?
			WHERE id = ?`),
			app.CurrentStatus, app.StatusUpdatedAt,
			app.ActionRequired, app.ActionType, app.ActionDescription, app.ActionDeadline,
			app.SenderDomain, app.LastEventSubject, app.LatestEventAt, app.EventCount, app.UpdatedAt,
			app.ID)
		if err != nil {
			return fmt.Errorf("update application: %w", err)
		}
		if err := s.appendEventTx(ctx, tx, raw, app.ID, event, links); err != nil {
			return err
		}
		if resolveReviewID != 0 {
			return s.resolveReviewTx(ctx, tx, resolveReviewID, "linked_to_existing", &app.ID)
		}
		return nil
	})
}

// SaveReviewItem atomically queues a manual review and records the raw
// email's outcome.
func (s *Store) SaveReviewItem(ctx context.Context, raw *models.RawEmail, item *models.ManualReview) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		item.CreatedAt = time.Now().UTC()
		id, err := s.insert(ctx, tx, `
			INSERT INTO manual_reviews
				(owner_id, raw_email_id, application_id, reason, suggested_company, suggested_title, suggested_status, confidence, resolved, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, FALSE, ?)`,
			item.OwnerID, item.RawEmailID, item.ApplicationID, item.Reason,
			item.SuggestedCompany, item.SuggestedTitle, item.SuggestedStatus, item.Confidence, item.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert review item: %w", err)
		}
		item.ID = id
		return s.markOutcomeTx(ctx, tx, raw)
	})
}

func (s *Store) appendEventTx(ctx context.Context, tx *sqlx.Tx, raw *models.RawEmail, applicationID int64, event *models.ApplicationEvent, links []models.Link) error {
	event.ApplicationID = applicationID
	event.CreatedAt = time.Now().UTC()
	id, err := s.insert(ctx, tx, `
		INSERT INTO application_events
			(application_id, raw_email_id, event_type, status, event_at, title, subject, description, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ApplicationID, event.RawEmailID, event.EventType, event.Status, event.EventAt,
		event.Title, event.Subject, event.Description, event.Confidence, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	event.ID = id

	for i := range links {
		links[i].ApplicationID = applicationID
		links[i].CreatedAt = event.CreatedAt
		linkID, err := s.insert(ctx, tx, `
			INSERT INTO links (application_id, raw_email_id, url, link_type, confidence, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			links[i].ApplicationID, links[i].RawEmailID, links[i].URL, links[i].LinkType,
			links[i].Confidence, links[i].CreatedAt)
		if err != nil {
			return fmt.Errorf("insert link: %w", err)
		}
		links[i].ID = linkID
	}

	return s.markOutcomeTx(ctx, tx, raw)
}

// resolveReviewTx stamps a review item with the action taken. A review is
// resolved exactly once; a second resolution affects no row and rolls the
// surrounding transaction back.
func (s *Store) resolveReviewTx(ctx context.Context, tx *sqlx.Tx, id int64, actionTaken string, applicationID *int64) error {
	res, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE manual_reviews SET resolved = TRUE, resolved_at = ?, action_taken = ?, application_id = ? WHERE id = ? AND resolved = FALSE`),
		time.Now().UTC(), actionTaken, applicationID, id)
	if err != nil {
		return fmt.Errorf("resolve review: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve review: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("review %d already resolved or missing", id)
	}
	return nil
}

func (s *Store) markOutcomeTx(ctx context.Context, tx *sqlx.Tx, raw *models.RawEmail) error {
	now := time.Now().UTC()
	raw.ProcessedAt = &now
	_, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE raw_emails SET fingerprint = ?, outcome = ?, confidence = ?, processed_at = ? WHERE id = ?`),
		raw.Fingerprint, raw.Outcome, raw.Confidence, now, raw.ID)
	if err != nil {
		return fmt.Errorf("mark outcome: %w", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

// insert handles the LastInsertId/RETURNING split between the drivers.
func (s *Store) insert(ctx context.Context, e execer, query string, args ...interface{}) (int64, error) {
	if s.db.DriverName() == "postgres" {
		var id int64
		err := e.QueryRowxContext(ctx, e.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := e.ExecContext(ctx, e.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
