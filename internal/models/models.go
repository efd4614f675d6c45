// Package models defines the entities shared across the processing pipeline
// and the record store.
package models

import "time"

// EmailType classifies what kind of job-application email this is.
type EmailType string

const (
	EmailTypeApplicationConfirmation EmailType = "application_confirmation"
	EmailTypeRejection               EmailType = "rejection"
	EmailTypeAssessmentInvite        EmailType = "assessment_invite"
	EmailTypeInterviewRequest        EmailType = "interview_request"
	EmailTypeInterviewConfirmation   EmailType = "interview_confirmation"
	EmailTypeOffer                   EmailType = "offer"
	EmailTypeRecruiterOutreach       EmailType = "recruiter_outreach"
	EmailTypeOtherUpdate             EmailType = "other_update"
	EmailTypeNotJobRelated           EmailType = "not_job_related"
)

// ApplicationStatus is the normalized stage of an application lifecycle.
type ApplicationStatus string

const (
	StatusAppliedReceived     ApplicationStatus = "APPLIED_RECEIVED"
	StatusInReview            ApplicationStatus = "IN_REVIEW"
	StatusNextStepAssessment  ApplicationStatus = "NEXT_STEP_ASSESSMENT"
	StatusNextStepScheduling  ApplicationStatus = "NEXT_STEP_SCHEDULING"
	StatusInterviewScheduled  ApplicationStatus = "INTERVIEW_SCHEDULED"
	StatusInterviewCompleted  ApplicationStatus = "INTERVIEW_COMPLETED"
	StatusOfferExtended       ApplicationStatus = "OFFER_EXTENDED"
	StatusOfferAccepted       ApplicationStatus = "OFFER_ACCEPTED"
	StatusRejected            ApplicationStatus = "REJECTED"
	StatusWithdrawn           ApplicationStatus = "WITHDRAWN"
	StatusGhosted             ApplicationStatus = "GHOSTED"
	StatusOtherUpdate         ApplicationStatus = "OTHER_UPDATE"
)

// ActionType describes what the applicant has to do next.
type ActionType string

const (
	ActionCompleteAssessment ActionType = "COMPLETE_ASSESSMENT"
	ActionScheduleInterview  ActionType = "SCHEDULE_INTERVIEW"
	ActionRespondToEmail     ActionType = "RESPOND_TO_EMAIL"
	ActionSubmitDocuments    ActionType = "SUBMIT_DOCUMENTS"
	ActionAcceptOffer        ActionType = "ACCEPT_OFFER"
)

// LinkType classifies an extracted URL.
type LinkType string

const (
	LinkAssessmentPortal LinkType = "ASSESSMENT_PORTAL"
	LinkSchedulingTool   LinkType = "SCHEDULING_LINK"
	LinkVideoInterview   LinkType = "VIDEO_INTERVIEW"
	LinkCompanyPortal    LinkType = "COMPANY_PORTAL"
	LinkJobPosting       LinkType = "JOB_POSTING"
	LinkUnknown          LinkType = "UNKNOWN"
)

// RawEmail is the immutable capture of an ingested message. It is written
// once per email and never mutated afterwards except for the processing
// outcome columns, which record the terminal disposition.
type RawEmail struct {
	ID         int64     `db:"id" json:"id"`
	OwnerID    int64     `db:"owner_id" json:"owner_id"`
	SourceID   string    `db:"source_id" json:"source_id"` // mail-system message identifier
	From       string    `db:"from_addr" json:"from"`
	To         string    `db:"to_addr" json:"to"`
	Subject    string    `db:"subject" json:"subject"`
	ReceivedAt time.Time `db:"received_at" json:"received_at"`
	BodyText   string    `db:"body_text" json:"body_text"`
	BodyHTML   string    `db:"body_html" json:"body_html"`

	// Populated by the pipeline.
	Fingerprint string  `db:"fingerprint" json:"fingerprint"`
	Outcome     string  `db:"outcome" json:"outcome"`
	Confidence  float64 `db:"confidence" json:"confidence"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Application is the canonical, mutable record of one job application.
type Application struct {
	ID      int64 `db:"id" json:"id"`
	OwnerID int64 `db:"owner_id" json:"owner_id"`

	CompanyName string `db:"company_name" json:"company_name"`
	JobTitle    string `db:"job_title" json:"job_title"`
	Location    string `db:"location" json:"location,omitempty"`

	CurrentStatus   ApplicationStatus `db:"current_status" json:"current_status"`
	StatusUpdatedAt time.Time         `db:"status_updated_at" json:"status_updated_at"`

	ActionRequired    bool       `db:"action_required" json:"action_required"`
	ActionType        *ActionType `db:"action_type" json:"action_type,omitempty"`
	ActionDescription string     `db:"action_description" json:"action_description,omitempty"`
	ActionDeadline    *time.Time `db:"action_deadline" json:"action_deadline,omitempty"`

	CompanyConfidence float64 `db:"company_confidence" json:"company_confidence"`
	TitleConfidence   float64 `db:"title_confidence" json:"title_confidence"`
	OverallConfidence float64 `db:"overall_confidence" json:"overall_confidence"`

	// SenderDomain and LastEventSubject are denormalized from the most
	// recent event for the domain+time-window and subject-similarity
	// matching strategies.
	SenderDomain     string `db:"sender_domain" json:"sender_domain,omitempty"`
	LastEventSubject string `db:"last_event_subject" json:"last_event_subject,omitempty"`

	LatestEventAt time.Time `db:"latest_event_at" json:"latest_event_at"`
	EventCount    int       `db:"event_count" json:"event_count"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ApplicationEvent is an immutable timeline entry appended whenever a
// matched email produced a status transition or action.
type ApplicationEvent struct {
	ID            int64             `db:"id" json:"id"`
	ApplicationID int64             `db:"application_id" json:"application_id"`
	RawEmailID    int64             `db:"raw_email_id" json:"raw_email_id"`
	EventType     EmailType         `db:"event_type" json:"event_type"`
	Status        ApplicationStatus `db:"status" json:"status"`
	EventAt       time.Time         `db:"event_at" json:"event_at"`
	Title         string            `db:"title" json:"title"`
	Subject       string            `db:"subject" json:"subject"`
	Description   string            `db:"description" json:"description,omitempty"`
	Confidence    float64           `db:"confidence" json:"confidence"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

// Link is a URL extracted from an email, tied to an application.
type Link struct {
	ID            int64    `db:"id" json:"id"`
	ApplicationID int64    `db:"application_id" json:"application_id"`
	RawEmailID    int64    `db:"raw_email_id" json:"raw_email_id"`
	URL           string   `db:"url" json:"url"`
	LinkType      LinkType `db:"link_type" json:"link_type"`
	Confidence    float64  `db:"confidence" json:"confidence"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ManualReview is a queued email whose disposition could not be determined
// automatically. Resolved exactly once by an external decision.
type ManualReview struct {
	ID            int64  `db:"id" json:"id"`
	OwnerID       int64  `db:"owner_id" json:"owner_id"`
	RawEmailID    int64  `db:"raw_email_id" json:"raw_email_id"`
	ApplicationID *int64 `db:"application_id" json:"application_id,omitempty"`

	Reason           string            `db:"reason" json:"reason"`
	SuggestedCompany string            `db:"suggested_company" json:"suggested_company,omitempty"`
	SuggestedTitle   string            `db:"suggested_title" json:"suggested_title,omitempty"`
	SuggestedStatus  ApplicationStatus `db:"suggested_status" json:"suggested_status,omitempty"`
	Confidence       float64           `db:"confidence" json:"confidence"`

	Resolved    bool       `db:"resolved" json:"resolved"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ActionTaken string     `db:"action_taken" json:"action_taken,omitempty"` // created_new, linked_to_existing, ignored

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProcessingStats summarises pipeline throughput for the stats endpoint.
type ProcessingStats struct {
	TotalEmails       int     `db:"total_emails" json:"total_emails"`
	ProcessedEmails   int     `db:"processed_emails" json:"processed_emails"`
	PendingReview     int     `db:"pending_review" json:"pending_review"`
	TotalApplications int     `db:"total_applications" json:"total_applications"`
	AverageConfidence float64 `db:"average_confidence" json:"average_confidence"`
}
