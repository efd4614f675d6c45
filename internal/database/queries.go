package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"jobtrack/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ApplicationDetail is an application with its timeline and links.
type ApplicationDetail struct {
	models.Application
	Events []models.ApplicationEvent `json:"events"`
	Links  []models.Link             `json:"links"`
}

// GetApplication loads one application with its events and links.
func (s *Store) GetApplication(ctx context.Context, ownerID, id int64) (*ApplicationDetail, error) {
	var detail ApplicationDetail
	err := s.db.GetContext(ctx, &detail.Application,
		s.db.Rebind(`SELECT * FROM applications WHERE id = ? AND owner_id = ?`), id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select application: %w", err)
	}

	detail.Events = []models.ApplicationEvent{}
	err = s.db.SelectContext(ctx, &detail.Events,
		s.db.Rebind(`SELECT * FROM application_events WHERE application_id = ? ORDER BY event_at DESC`), id)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}

	detail.Links = []models.Link{}
	err = s.db.SelectContext(ctx, &detail.Links,
		s.db.Rebind(`SELECT * FROM links WHERE application_id = ? ORDER BY created_at DESC`), id)
	if err != nil {
		return nil, fmt.Errorf("select links: %w", err)
	}
	return &detail, nil
}

// ListPendingReviews returns unresolved review items, oldest first.
func (s *Store) ListPendingReviews(ctx context.Context, ownerID int64) ([]models.ManualReview, error) {
	items := []models.ManualReview{}
	err := s.db.SelectContext(ctx, &items,
		s.db.Rebind(`SELECT * FROM manual_reviews WHERE owner_id = ? AND resolved = FALSE ORDER BY created_at ASC`),
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	return items, nil
}

// GetReview loads one review item.
func (s *Store) GetReview(ctx context.Context, id int64) (*models.ManualReview, error) {
	var item models.ManualReview
	err := s.db.GetContext(ctx, &item,
		s.db.Rebind(`SELECT * FROM manual_reviews WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select review: %w", err)
	}
	return &item, nil
}

// GetRawEmail loads one raw email.
func (s *Store) GetRawEmail(ctx context.Context, id int64) (*models.RawEmail, error) {
	var raw models.RawEmail
	err := s.db.GetContext(ctx, &raw,
		s.db.Rebind(`SELECT * FROM raw_emails WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select raw email: %w", err)
	}
	return &raw, nil
}

// Stats aggregates pipeline throughput for one owner.
func (s *Store) Stats(ctx context.Context, ownerID int64) (*models.ProcessingStats, error) {
	var stats models.ProcessingStats
	err := s.db.GetContext(ctx, &stats, s.db.Rebind(`
		SELECT
			(SELECT COUNT(1) FROM raw_emails WHERE owner_id = ?) AS total_emails,
			(SELECT COUNT(1) FROM raw_emails WHERE owner_id = ? AND outcome <> '') AS processed_emails,
			(SELECT COUNT(1) FROM manual_reviews WHERE owner_id = ? AND resolved = FALSE) AS pending_review,
			(SELECT COUNT(1) FROM applications WHERE owner_id = ?) AS total_applications,
			(SELECT COALESCE(AVG(confidence), 0) FROM raw_emails WHERE owner_id = ? AND processed_at IS NOT NULL) AS average_confidence`),
		ownerID, ownerID, ownerID, ownerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("select stats: %w", err)
	}
	return &stats, nil
}
