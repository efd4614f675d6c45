// Package match decides whether an extracted email belongs to an existing
// application, warrants a new one, or needs human disambiguation.
//
// Strategies run in strict priority order and the first one that produces
// a decision wins. The ordering (exact, fuzzy, domain+window, subject) is
// deliberate: the field-based strategies come first because company and
// title survive sender-domain churn, while ATS sending domains rotate.
// Whenever a strategy finds more than one equally qualifying candidate the
// decision is always review, never an arbitrary pick.
package match

import (
	"strings"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"jobtrack/internal/extract"
	"jobtrack/internal/models"
)

// Kind tags a match decision.
type Kind string

const (
	KindLink        Kind = "link"
	KindCreateNew   Kind = "create_new"
	KindNeedsReview Kind = "needs_review"
)

// Review reasons.
const (
	ReasonAmbiguousExact   = "ambiguous_exact_match"
	ReasonAmbiguousFuzzy   = "ambiguous_fuzzy_match"
	ReasonAmbiguousDomain  = "ambiguous_domain_match"
	ReasonAmbiguousSubject = "ambiguous_subject_match"
	ReasonLowConfidence    = "low_confidence"
	ReasonProcessingError  = "processing_error"
)

// Decision is the matcher's tagged verdict.
type Decision struct {
	Kind          Kind
	ApplicationID int64  // set when Kind == KindLink
	Strategy      string // which strategy produced the link
	Reason        string // set when Kind == KindNeedsReview
}

// Input is everything the matcher needs about the incoming email.
type Input struct {
	Extraction   extract.Result
	Fingerprint  string
	SenderDomain string
	Subject      string
	EmailDate    time.Time
}

// Matcher is a state-free decision function over the caller-supplied set
// of existing applications.
type Matcher struct {
	fuzzyThreshold    float64
	subjectThreshold  float64
	creationThreshold float64
	window            time.Duration
}

// New creates a matcher with the given thresholds. window bounds the
// domain+time strategy.
func New(fuzzyThreshold, subjectThreshold, creationThreshold float64, windowDays int) *Matcher {
	return &Matcher{
		fuzzyThreshold:    fuzzyThreshold,
		subjectThreshold:  subjectThreshold,
		creationThreshold: creationThreshold,
		window:            time.Duration(windowDays) * 24 * time.Hour,
	}
}

// Match evaluates the strategies in priority order against existing.
func (m *Matcher) Match(in Input, existing []models.Application) Decision {
	if d, ok := m.matchExact(in, existing); ok {
		return d
	}
	if d, ok := m.matchFuzzy(in, existing); ok {
		return d
	}
	if d, ok := m.matchDomainWindow(in, existing); ok {
		return d
	}
	if d, ok := m.matchSubject(in, existing); ok {
		return d
	}

	if in.Extraction.OverallConfidence >= m.creationThreshold {
		return Decision{Kind: KindCreateNew}
	}
	return Decision{Kind: KindNeedsReview, Reason: ReasonLowConfidence}
}

// matchExact links when normalized company and title both equal an
// existing application's fields.
func (m *Matcher) matchExact(in Input, existing []models.Application) (Decision, bool) {
	company := normalize(in.Extraction.CompanyName)
	title := normalize(in.Extraction.JobTitle)
	if company == "" || title == "" {
		return Decision{}, false
	}

	var hits []int64
	for _, app := range existing {
		if normalize(app.CompanyName) == company && normalize(app.JobTitle) == title {
			hits = append(hits, app.ID)
		}
	}
	switch len(hits) {
	case 0:
		return Decision{}, false
	case 1:
		return Decision{Kind: KindLink, ApplicationID: hits[0], Strategy: "exact"}, true
	default:
		return Decision{Kind: KindNeedsReview, Reason: ReasonAmbiguousExact}, true
	}
}

// matchFuzzy links when the combined company/title token-set similarity
// clears the threshold for exactly one application. Two or more clearing
// it is silent-misattribution territory and goes to review.
func (m *Matcher) matchFuzzy(in Input, existing []models.Application) (Decision, bool) {
	company := in.Extraction.CompanyName
	title := in.Extraction.JobTitle
	if company == "" || title == "" {
		return Decision{}, false
	}

	var hits []int64
	for _, app := range existing {
		companySim := Similarity(company, app.CompanyName)
		titleSim := Similarity(title, app.JobTitle)
		combined := companySim*0.6 + titleSim*0.4
		if combined >= m.fuzzyThreshold {
			hits = append(hits, app.ID)
		}
	}
	switch len(hits) {
	case 0:
		return Decision{}, false
	case 1:
		return Decision{Kind: KindLink, ApplicationID: hits[0], Strategy: "fuzzy"}, true
	default:
		return Decision{Kind: KindNeedsReview, Reason: ReasonAmbiguousFuzzy}, true
	}
}

// matchDomainWindow links when the sender domain was previously observed
// on an application and the email falls inside the time window of that
// application's last event.
func (m *Matcher) matchDomainWindow(in Input, existing []models.Application) (Decision, bool) {
	if in.SenderDomain == "" {
		return Decision{}, false
	}

	var hits []int64
	for _, app := range existing {
		if app.SenderDomain == "" || !strings.EqualFold(app.SenderDomain, in.SenderDomain) {
			continue
		}
		gap := in.EmailDate.Sub(app.LatestEventAt)
		if gap < 0 {
			gap = -gap
		}
		if gap <= m.window {
			hits = append(hits, app.ID)
		}
	}
	switch len(hits) {
	case 0:
		return Decision{}, false
	case 1:
		return Decision{Kind: KindLink, ApplicationID: hits[0], Strategy: "domain_window"}, true
	default:
		return Decision{Kind: KindNeedsReview, Reason: ReasonAmbiguousDomain}, true
	}
}

// matchSubject links on similarity between the new subject and each
// application's most recent event subject.
func (m *Matcher) matchSubject(in Input, existing []models.Application) (Decision, bool) {
	subject := normalize(in.Subject)
	if subject == "" {
		return Decision{}, false
	}

	var hits []int64
	for _, app := range existing {
		if app.LastEventSubject == "" {
			continue
		}
		if Similarity(subject, app.LastEventSubject) >= m.subjectThreshold {
			hits = append(hits, app.ID)
		}
	}
	switch len(hits) {
	case 0:
		return Decision{}, false
	case 1:
		return Decision{Kind: KindLink, ApplicationID: hits[0], Strategy: "subject"}, true
	default:
		return Decision{Kind: KindNeedsReview, Reason: ReasonAmbiguousSubject}, true
	}
}

var diceMetric = metrics.NewSorensenDice()

// Similarity is a token-set similarity in [0, 1]: both strings are
// reduced to their sorted unique token sets before comparison, so word
// order and repetition do not matter.
func Similarity(a, b string) float64 {
	a, b = tokenSet(a), tokenSet(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return strutil.Similarity(a, b, diceMetric)
}

// tokenSet lower-cases, splits on non-alphanumerics, de-duplicates and
// sorts tokens.
func tokenSet(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	seen := map[string]bool{}
	var tokens []string
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			tokens = append(tokens, f)
		}
	}
	// Insertion sort keeps it allocation-light for the short inputs here.
	for i := 1; i < len(tokens); i++ {
		for j := i; j > 0 && tokens[j] < tokens[j-1]; j-- {
			tokens[j], tokens[j-1] = tokens[j-1], tokens[j]
		}
	}
	return strings.Join(tokens, " ")
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}
