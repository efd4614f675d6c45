package database

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Schema is written in MySQL dialect and translated for PostgreSQL at
// creation time. Raw bodies use LONGTEXT because forwarded HTML emails
// routinely exceed 64KB.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS raw_emails (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		source_id VARCHAR(512) NOT NULL,
		from_addr VARCHAR(512) NOT NULL,
		to_addr VARCHAR(512) NOT NULL DEFAULT '',
		subject VARCHAR(1024) NOT NULL DEFAULT '',
		received_at TIMESTAMP NOT NULL,
		body_text LONGTEXT,
		body_html LONGTEXT,
		fingerprint VARCHAR(64) NOT NULL DEFAULT '',
		outcome VARCHAR(64) NOT NULL DEFAULT '',
		confidence DOUBLE NOT NULL DEFAULT 0,
		processed_at TIMESTAMP NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX idx_raw_emails_fingerprint ON raw_emails (owner_id, fingerprint)`,
	`CREATE TABLE IF NOT EXISTS applications (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		company_name VARCHAR(512) NOT NULL,
		job_title VARCHAR(512) NOT NULL,
		location VARCHAR(512) NOT NULL DEFAULT '',
		current_status VARCHAR(64) NOT NULL,
		status_updated_at TIMESTAMP NOT NULL,
		action_required BOOLEAN NOT NULL DEFAULT FALSE,
		action_type VARCHAR(64) NULL,
		action_description VARCHAR(1024) NOT NULL DEFAULT '',
		action_deadline TIMESTAMP NULL,
		company_confidence DOUBLE NOT NULL DEFAULT 0,
		title_confidence DOUBLE NOT NULL DEFAULT 0,
		overall_confidence DOUBLE NOT NULL DEFAULT 0,
		sender_domain VARCHAR(512) NOT NULL DEFAULT '',
		last_event_subject VARCHAR(1024) NOT NULL DEFAULT '',
		latest_event_at TIMESTAMP NOT NULL,
		event_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX idx_applications_owner ON applications (owner_id, latest_event_at)`,
	`CREATE TABLE IF NOT EXISTS application_events (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		application_id BIGINT NOT NULL,
		raw_email_id BIGINT NOT NULL,
		event_type VARCHAR(64) NOT NULL,
		status VARCHAR(64) NOT NULL,
		event_at TIMESTAMP NOT NULL,
		title VARCHAR(512) NOT NULL DEFAULT '',
		subject VARCHAR(1024) NOT NULL DEFAULT '',
		description VARCHAR(2048) NOT NULL DEFAULT '',
		confidence DOUBLE NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX idx_events_application ON application_events (application_id, event_at)`,
	`CREATE TABLE IF NOT EXISTS links (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		application_id BIGINT NOT NULL,
		raw_email_id BIGINT NOT NULL,
		url VARCHAR(2048) NOT NULL,
		link_type VARCHAR(64) NOT NULL,
		confidence DOUBLE NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS manual_reviews (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		raw_email_id BIGINT NOT NULL,
		application_id BIGINT NULL,
		reason VARCHAR(64) NOT NULL,
		suggested_company VARCHAR(512) NOT NULL DEFAULT '',
		suggested_title VARCHAR(512) NOT NULL DEFAULT '',
		suggested_status VARCHAR(64) NOT NULL DEFAULT '',
		confidence DOUBLE NOT NULL DEFAULT 0,
		resolved BOOLEAN NOT NULL DEFAULT FALSE,
		resolved_at TIMESTAMP NULL,
		action_taken VARCHAR(64) NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX idx_reviews_pending ON manual_reviews (owner_id, resolved)`,
}

// CreateTables applies the schema. Index statements that already exist
// are skipped rather than treated as errors.
func CreateTables(db *sqlx.DB) error {
	postgres := db.DriverName() == "postgres"
	for _, stmt := range schema {
		if postgres {
			stmt = toPostgres(stmt)
		}
		if _, err := db.Exec(stmt); err != nil {
			if strings.HasPrefix(strings.TrimSpace(stmt), "CREATE INDEX") && isDuplicateIndex(err) {
				continue
			}
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func toPostgres(stmt string) string {
	stmt = strings.ReplaceAll(stmt, "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY", "BIGSERIAL PRIMARY KEY")
	stmt = strings.ReplaceAll(stmt, "LONGTEXT", "TEXT")
	stmt = strings.ReplaceAll(stmt, "DOUBLE", "DOUBLE PRECISION")
	stmt = strings.ReplaceAll(stmt, "CREATE INDEX", "CREATE INDEX IF NOT EXISTS")
	return stmt
}

func isDuplicateIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "already exists")
}
