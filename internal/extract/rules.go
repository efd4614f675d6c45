package extract

import "jobtrack/internal/models"

// classifyRule maps sender-domain, subject and body signals to an email
// type. Rules are evaluated in slice order and the first match wins, so
// the most specific rules (named vendors) sit before the generic keyword
// rules.
type classifyRule struct {
	name          string
	senderDomains []string
	subjectWords  []string
	bodyWords     []string
	emailType     models.EmailType
}

var classifyRules = []classifyRule{
	{
		name:          "assessment_vendor",
		senderDomains: []string{"hackerrank.com", "codesignal.com", "codility.com", "testgorilla.com"},
		emailType:     models.EmailTypeAssessmentInvite,
	},
	{
		name: "rejection",
		bodyWords: []string{
			"not moving forward",
			"move forward with other candidates",
			"pursue other candidates",
			"not selected",
			"regret to inform",
			"will not be proceeding",
			"unfortunately",
		},
		subjectWords: []string{"update on your application"},
		emailType:    models.EmailTypeRejection,
	},
	{
		name: "assessment_invite",
		bodyWords: []string{
			"coding challenge",
			"technical assessment",
			"complete the assessment",
			"online assessment",
			"take-home",
			"hackerrank",
			"codesignal",
		},
		subjectWords: []string{"assessment", "coding challenge"},
		emailType:    models.EmailTypeAssessmentInvite,
	},
	{
		name: "interview_confirmation",
		bodyWords: []string{
			"interview is scheduled",
			"interview is confirmed",
			"interview details",
			"zoom link",
			"meeting link",
		},
		subjectWords: []string{"interview confirmed", "interview scheduled"},
		emailType:    models.EmailTypeInterviewConfirmation,
	},
	{
		name: "interview_request",
		bodyWords: []string{
			"schedule an interview",
			"schedule your interview",
			"would like to interview",
			"interview invitation",
			"select a time",
			"your availability",
		},
		subjectWords: []string{"interview invitation", "schedule your interview"},
		emailType:    models.EmailTypeInterviewRequest,
	},
	{
		name: "offer",
		bodyWords: []string{
			"pleased to offer",
			"extend an offer",
			"offer letter",
			"compensation package",
		},
		subjectWords: []string{"offer letter", "your offer"},
		emailType:    models.EmailTypeOffer,
	},
	{
		name: "application_confirmation",
		bodyWords: []string{
			"application received",
			"thank you for applying",
			"thank you for your application",
			"we have received your application",
			"application was sent",
			"successfully submitted",
			"application confirmation",
		},
		subjectWords: []string{"application received", "application was sent", "thank you for applying"},
		emailType:    models.EmailTypeApplicationConfirmation,
	},
	{
		name: "recruiter_outreach",
		bodyWords: []string{
			"came across your profile",
			"your background caught",
			"exciting opportunity",
			"i'm a recruiter",
			"reaching out about a role",
		},
		emailType: models.EmailTypeRecruiterOutreach,
	},
	{
		name: "other_update",
		bodyWords: []string{
			"update on your application",
			"application status",
			"your application is",
			"hiring process",
			"under review",
		},
		subjectWords: []string{"application update", "application status"},
		emailType:    models.EmailTypeOtherUpdate,
	},
}

// statusByType maps an email type to its implied lifecycle status.
// Ambiguous types are absent and resolved by a secondary keyword pass.
var statusByType = map[models.EmailType]models.ApplicationStatus{
	models.EmailTypeApplicationConfirmation: models.StatusAppliedReceived,
	models.EmailTypeRejection:               models.StatusRejected,
	models.EmailTypeAssessmentInvite:        models.StatusNextStepAssessment,
	models.EmailTypeInterviewRequest:        models.StatusNextStepScheduling,
	models.EmailTypeInterviewConfirmation:   models.StatusInterviewScheduled,
	models.EmailTypeOffer:                   models.StatusOfferExtended,
}

// statusKeyword resolves status for types the table above does not cover.
type statusKeyword struct {
	words  []string
	status models.ApplicationStatus
}

var statusKeywords = []statusKeyword{
	{[]string{"under review", "in review", "being reviewed"}, models.StatusInReview},
	{[]string{"withdrawn your application", "application withdrawn"}, models.StatusWithdrawn},
	{[]string{"offer accepted", "accepted the offer"}, models.StatusOfferAccepted},
	{[]string{"interview went", "thank you for interviewing"}, models.StatusInterviewCompleted},
}

// Known employer sending domains. The visible sender really is the
// employer here, so the mapping carries the highest confidence tier.
var vendorCompanies = map[string]string{
	"amazon.jobs":         "Amazon",
	"google.com":          "Google",
	"metacareers.com":     "Meta",
	"microsoft.com":       "Microsoft",
	"apple.com":           "Apple",
	"netflix.com":         "Netflix",
	"oracle.com":          "Oracle",
	"stripe.com":          "Stripe",
}

// ATS platform domains: the visible sender is the platform, never the
// employer, so the company has to be recovered from the body instead and
// domain-derived naming must not run.
var atsPlatforms = map[string]string{
	"greenhouse.io":        "Greenhouse",
	"greenhouse-mail.io":   "Greenhouse",
	"lever.co":             "Lever",
	"hire.lever.co":        "Lever",
	"myworkday.com":        "Workday",
	"myworkdaysite.com":    "Workday",
	"icims.com":            "iCIMS",
	"smartrecruiters.com":  "SmartRecruiters",
	"ashbyhq.com":          "Ashby",
	"jobvite.com":          "Jobvite",
	"breezy.hr":            "Breezy HR",
	"linkedin.com":         "LinkedIn",
}

// freemailDomains never name an employer.
var freemailDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"live.com":       true,
	"icloud.com":     true,
	"aol.com":        true,
	"protonmail.com": true,
	"proton.me":      true,
	"mail.com":       true,
	"zoho.com":       true,
}

// linkDomainRule classifies a URL by host suffix.
type linkDomainRule struct {
	hostSuffix string
	linkType   models.LinkType
	confidence float64
}

var linkDomainRules = []linkDomainRule{
	{"hackerrank.com", models.LinkAssessmentPortal, 0.9},
	{"codesignal.com", models.LinkAssessmentPortal, 0.9},
	{"codility.com", models.LinkAssessmentPortal, 0.9},
	{"testgorilla.com", models.LinkAssessmentPortal, 0.9},
	{"calendly.com", models.LinkSchedulingTool, 0.9},
	{"calendar.google.com", models.LinkSchedulingTool, 0.9},
	{"when2meet.com", models.LinkSchedulingTool, 0.9},
	{"zoom.us", models.LinkVideoInterview, 0.9},
	{"teams.microsoft.com", models.LinkVideoInterview, 0.9},
	{"meet.google.com", models.LinkVideoInterview, 0.9},
	{"webex.com", models.LinkVideoInterview, 0.9},
	{"greenhouse.io", models.LinkCompanyPortal, 0.8},
	{"lever.co", models.LinkCompanyPortal, 0.8},
	{"myworkday.com", models.LinkCompanyPortal, 0.8},
	{"myworkdaysite.com", models.LinkCompanyPortal, 0.8},
	{"icims.com", models.LinkCompanyPortal, 0.8},
	{"smartrecruiters.com", models.LinkCompanyPortal, 0.8},
	{"ashbyhq.com", models.LinkCompanyPortal, 0.8},
}

// linkPathWords mark a URL as a job posting when no domain rule applied.
var linkPathWords = []string{"jobs", "careers", "apply", "requisition"}
