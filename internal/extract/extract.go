// Package extract classifies job-application emails and pulls structured
// fields out of them with per-field confidence scores.
//
// Extraction is rule-based first; when the rules cannot reach the review
// threshold the extractor may consult an external oracle, whose output is
// merged only into fields the rules left empty or uncertain.
package extract

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"jobtrack/internal/models"
)

// Confidence tiers for company extraction strategies. Vendor-table hits
// outrank domain-derived names, which outrank subject-line patterns.
const (
	companyTierVendor  = 0.95
	companyTierDomain  = 0.60
	companyTierSubject = 0.50
)

// Title confidence: one unambiguous match vs several candidates.
const (
	titleTierSingle   = 0.85
	titleTierMultiple = 0.65
)

// Overall-confidence weights. Company and title dominate because they
// drive matching; a missing company caps the total below the review
// threshold no matter what the other fields scored.
const (
	weightCompany        = 0.40
	weightTitle          = 0.30
	weightClassification = 0.20
	weightStatus         = 0.10
	missingCompanyCap    = 0.50

	classificationScore = 0.9
	statusScore         = 0.8
)

// OracleThreshold is the overall confidence below which the extractor
// consults the oracle.
const OracleThreshold = 0.7

// Action is a required user action detected in an email.
type Action struct {
	Type        models.ActionType
	Description string
	Deadline    *time.Time
}

// Link is an extracted URL with its classification.
type Link struct {
	URL        string
	Type       models.LinkType
	Confidence float64
}

// Result is the structured output of extraction over one email.
type Result struct {
	EmailType models.EmailType

	CompanyName       string
	CompanyConfidence float64
	JobTitle          string
	TitleConfidence   float64
	Location          string

	Status models.ApplicationStatus
	Action *Action
	Links  []Link

	OverallConfidence float64
	Method            string // "rules" or "rules+oracle"
}

// Oracle is the optional external extraction fallback. Failures and
// timeouts are non-fatal; the caller treats them as "oracle unavailable".
type Oracle interface {
	ExtractPartial(ctx context.Context, subject, body string) (*Partial, error)
}

// Partial is what the oracle can contribute. Empty fields contribute
// nothing during the merge.
type Partial struct {
	CompanyName  string
	JobTitle     string
	Status       models.ApplicationStatus
	IsJobRelated bool
}

// oracleFieldConfidence is assigned to fields the oracle filled in. It is
// below the rule vendor tier, so a high-confidence rule field is never
// overwritten.
const oracleFieldConfidence = 0.85

// Extractor runs classification and field extraction.
type Extractor struct {
	oracle Oracle
	logger zerolog.Logger
}

// New creates an extractor. oracle may be nil.
func New(oracle Oracle, logger zerolog.Logger) *Extractor {
	return &Extractor{oracle: oracle, logger: logger}
}

// Extract classifies the email and extracts structured fields.
func (e *Extractor) Extract(ctx context.Context, subject, body, fromAddress string, receivedAt time.Time) Result {
	res := e.extractRules(subject, body, fromAddress, receivedAt)

	if res.OverallConfidence < OracleThreshold && res.EmailType != models.EmailTypeNotJobRelated && e.oracle != nil {
		partial, err := e.oracle.ExtractPartial(ctx, subject, body)
		if err != nil {
			e.logger.Debug().Err(err).Msg("extraction oracle unavailable")
			return res
		}
		res = mergeOracle(res, partial)
	}

	return res
}

// extractRules is the deterministic rule-based pass.
func (e *Extractor) extractRules(subject, body, fromAddress string, receivedAt time.Time) Result {
	res := Result{Method: "rules"}
	lowerText := strings.ToLower(subject + "\n" + body)
	domain := senderDomain(fromAddress)

	res.EmailType = classify(domain, strings.ToLower(subject), lowerText)
	if res.EmailType == models.EmailTypeNotJobRelated {
		res.Status = models.StatusOtherUpdate
		return res
	}

	res.Status = inferStatus(res.EmailType, lowerText)
	res.CompanyName, res.CompanyConfidence = extractCompany(subject, body, domain)
	res.JobTitle, res.TitleConfidence = extractTitle(subject, body)
	res.Location = extractLocation(body)
	res.Action = detectAction(res.EmailType, lowerText, receivedAt)
	res.Links = ExtractLinks(body)
	res.OverallConfidence = overallConfidence(res)
	return res
}

// mergeOracle folds oracle output into rule output. Only fields that are
// still empty or below the oracle's own confidence are filled; the merge
// is deterministic and rule fields at or above 0.7 are never replaced.
func mergeOracle(res Result, partial *Partial) Result {
	if partial == nil {
		return res
	}
	res.Method = "rules+oracle"

	if !partial.IsJobRelated && res.CompanyName == "" && res.JobTitle == "" {
		res.EmailType = models.EmailTypeNotJobRelated
		res.Status = models.StatusOtherUpdate
		res.OverallConfidence = 0
		return res
	}

	if partial.CompanyName != "" && res.CompanyConfidence < OracleThreshold {
		res.CompanyName = partial.CompanyName
		res.CompanyConfidence = oracleFieldConfidence
	}
	if partial.JobTitle != "" && res.TitleConfidence < OracleThreshold {
		res.JobTitle = partial.JobTitle
		res.TitleConfidence = oracleFieldConfidence
	}
	if partial.Status != "" && res.Status == models.StatusOtherUpdate {
		res.Status = partial.Status
	}

	res.OverallConfidence = overallConfidence(res)
	return res
}

// classify runs the ordered rule table; the first rule with any matching
// signal wins.
func classify(domain, lowerSubject, lowerText string) models.EmailType {
	for _, rule := range classifyRules {
		for _, d := range rule.senderDomains {
			if domain == d || strings.HasSuffix(domain, "."+d) {
				return rule.emailType
			}
		}
		for _, w := range rule.subjectWords {
			if strings.Contains(lowerSubject, w) {
				return rule.emailType
			}
		}
		for _, w := range rule.bodyWords {
			if strings.Contains(lowerText, w) {
				return rule.emailType
			}
		}
	}
	return models.EmailTypeNotJobRelated
}

// inferStatus maps the email type to a lifecycle status, falling back to a
// secondary keyword pass for ambiguous types.
func inferStatus(emailType models.EmailType, lowerText string) models.ApplicationStatus {
	if status, ok := statusByType[emailType]; ok {
		return status
	}
	for _, sk := range statusKeywords {
		for _, w := range sk.words {
			if strings.Contains(lowerText, w) {
				return sk.status
			}
		}
	}
	return models.StatusOtherUpdate
}

var (
	companySubjectRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)application was sent to\s+([A-Z][A-Za-z0-9&.\- ]{1,40})`),
		regexp.MustCompile(`(?i)thank you for applying (?:to|at)\s+([A-Z][A-Za-z0-9&.\- ]{1,40})`),
		regexp.MustCompile(`(?i)application (?:to|for|at)\s+([A-Z][A-Za-z0-9&.\- ]{1,40})`),
	}
	companyBodyRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)thank you for applying to\s+([A-Z][A-Za-z0-9&.\- ]{1,40}?)(?:\s+for|[.,!\n])`),
		regexp.MustCompile(`(?i)application to\s+([A-Z][A-Za-z0-9&.\- ]{1,40}?)[.,!\n]`),
		regexp.MustCompile(`(?i)interest in\s+([A-Z][A-Za-z0-9&.\- ]{1,40}?)(?:\s+and|[.,!\n])`),
		regexp.MustCompile(`(?i)position at\s+([A-Z][A-Za-z0-9&.\- ]{1,40}?)[.,\n]`),
		regexp.MustCompile(`(?i)the team at\s+([A-Z][A-Za-z0-9&.\- ]{1,40}?)[.,\n]`),
		regexp.MustCompile(`Sincerely,\s*\n\s*(?:The\s+)?([A-Z][A-Za-z0-9&.\- ]+?)\s+(?:Recruitment|Recruiting|Talent|Team)`),
	}
	companyTrailerRe = regexp.MustCompile(`(?i)\s+(Team|Recruitment|Recruiting|Careers|Talent)$`)
)

// extractCompany tries, in order: the known-vendor table (with body
// recovery for ATS platform senders), a sender-domain-derived name, then
// subject-line patterns. The first successful strategy's tier is reported.
func extractCompany(subject, body, domain string) (string, float64) {
	// Strategy 1: vendor table.
	if company, ok := vendorCompanies[domain]; ok {
		return company, companyTierVendor
	}
	if _, isATS := atsPlatforms[lookupSuffix(domain)]; isATS {
		// Platform sender: the employer is only in the content. Body
		// patterns run first; they are anchored on a terminator and do
		// not over-capture the way the subject patterns can.
		for _, re := range append(append([]*regexp.Regexp{}, companyBodyRes...), companySubjectRes...) {
			if company := cleanCompany(firstMatch(re, subject, body)); company != "" {
				return company, companyTierVendor
			}
		}
	} else if domain != "" && !freemailDomains[domain] {
		// Strategy 2: name derived from the sending domain.
		if company := companyFromDomain(domain); company != "" {
			return company, companyTierDomain
		}
	}

	// Strategy 3: subject-line patterns.
	for _, re := range companySubjectRes {
		if m := re.FindStringSubmatch(subject); m != nil {
			if company := cleanCompany(m[1]); company != "" {
				return company, companyTierSubject
			}
		}
	}
	return "", 0
}

// lookupSuffix reduces a subdomain to its registrable suffix present in
// the ATS table, e.g. acme.myworkday.com -> myworkday.com.
func lookupSuffix(domain string) string {
	if _, ok := atsPlatforms[domain]; ok {
		return domain
	}
	parts := strings.Split(domain, ".")
	for i := 1; i < len(parts)-1; i++ {
		candidate := strings.Join(parts[i:], ".")
		if _, ok := atsPlatforms[candidate]; ok {
			return candidate
		}
	}
	return domain
}

func companyFromDomain(domain string) string {
	// Drop a mail-subdomain prefix and the TLD.
	domain = strings.TrimPrefix(domain, "mail.")
	domain = strings.TrimPrefix(domain, "email.")
	parts := strings.Split(domain, ".")
	if len(parts) < 2 {
		return ""
	}
	name := parts[len(parts)-2]
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	if len(name) < 3 {
		return ""
	}
	return titleCaser.String(name)
}

var titleCaser = cases.Title(language.English)

func firstMatch(re *regexp.Regexp, subject, body string) string {
	if m := re.FindStringSubmatch(subject); m != nil {
		return m[1]
	}
	if m := re.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

func cleanCompany(s string) string {
	s = companyTrailerRe.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.Trim(s, ".,-– ")
	lower := strings.ToLower(s)
	for _, bad := range []string{"your application", "thank you", "the", "your", "application received", "next phase"} {
		if lower == bad {
			return ""
		}
	}
	if len(s) < 2 || len(s) > 60 {
		return ""
	}
	return s
}

var titleRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)for the\s+([A-Za-z0-9()/,&\- ]{3,60}?)\s+(?:position|role|opening)`),
	regexp.MustCompile(`(?i)(?:^|\n)Re:\s+([A-Za-z0-9()/,&\- ]{3,60}?)\s+Application`),
	regexp.MustCompile(`(?i)[Yy]our\s+([A-Za-z0-9()/,&\- ]{3,60}?)\s+[Aa]pplication`),
	regexp.MustCompile(`(?i)application for (?:the\s+)?([A-Za-z0-9()/,&\- ]{3,60}?)(?:\s+position|\s+role|[.,\n]|$)`),
	regexp.MustCompile(`(?i)applying for (?:the\s+)?([A-Za-z0-9()/,&\- ]{3,60}?)(?:\s+position|\s+role|[.,\n]|$)`),
	regexp.MustCompile(`([A-Z][A-Za-z0-9()/&-]*(?:\s+[A-Z][A-Za-z0-9()/&-]*){0,4})\s+role\b`),
	regexp.MustCompile(`(?im)^([A-Za-z0-9()/,&\- ]{3,60}?)\s*[-–]\s*Application`),
	regexp.MustCompile(`(?i)(?:position|role):\s*([A-Za-z0-9()/,&\- ]{3,60}?)(?:\s+at|[.,\n]|$)`),
}

var badTitles = map[string]bool{
	"application": true, "your application": true, "update": true,
	"confirmation": true, "thank you": true, "online assessment": true,
	"next phase": true, "the": true, "your": true,
}

// extractTitle pattern-matches common job-title phrasings in subject and
// body. A single unambiguous candidate scores high; several candidates
// score medium and the longest wins.
func extractTitle(subject, body string) (string, float64) {
	seen := map[string]string{} // normalized -> original
	for _, re := range titleRes {
		for _, src := range []string{subject, body} {
			for _, m := range re.FindAllStringSubmatch(src, -1) {
				title := cleanTitle(m[1])
				if title == "" {
					continue
				}
				seen[strings.ToLower(title)] = title
			}
		}
	}
	if len(seen) == 0 {
		return "", 0
	}

	candidates := make([]string, 0, len(seen))
	for _, t := range seen {
		candidates = append(candidates, t)
	}
	if len(candidates) == 1 {
		return candidates[0], titleTierSingle
	}
	// Multiple candidates: pick the longest, deterministically.
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i]) != len(candidates[j]) {
			return len(candidates[i]) > len(candidates[j])
		}
		return candidates[i] < candidates[j]
	})
	return candidates[0], titleTierMultiple
}

var titleTrailerRe = regexp.MustCompile(`(?i)\s+(position|role|remote|hybrid)$`)

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = titleTrailerRe.ReplaceAllString(s, "")
	s = strings.Trim(s, ".,-– ")
	if len(s) < 3 || len(s) > 80 {
		return ""
	}
	if badTitles[strings.ToLower(s)] {
		return ""
	}
	return s
}

var locationRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)location:\s*([^\n.]{2,80})`),
	regexp.MustCompile(`(?i)based in\s+([^\n.]{2,80})`),
	regexp.MustCompile(`\(([^()]*(?:Remote|Hybrid|On-site)[^()]*)\)`),
}

func extractLocation(body string) string {
	for _, re := range locationRes {
		if m := re.FindStringSubmatch(body); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	if regexp.MustCompile(`(?i)\bremote\b`).MatchString(body) {
		return "Remote"
	}
	return ""
}

func overallConfidence(res Result) float64 {
	var classScore, statScore float64
	if res.EmailType != models.EmailTypeNotJobRelated && res.EmailType != models.EmailTypeOtherUpdate {
		classScore = classificationScore
	}
	if res.Status != models.StatusOtherUpdate {
		statScore = statusScore
	}

	score := weightCompany*res.CompanyConfidence +
		weightTitle*res.TitleConfidence +
		weightClassification*classScore +
		weightStatus*statScore

	if res.CompanyName == "" && score > missingCompanyCap {
		score = missingCompanyCap
	}
	return score
}

func senderDomain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(strings.Trim(address[at+1:], "> "))
}
