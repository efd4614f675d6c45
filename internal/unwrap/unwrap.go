// Package unwrap recovers the original message from a forwarded email body.
//
// Forwarding through an intermediary mailbox loses the original sender,
// subject and date from the visible headers; the only place they survive is
// the forward block embedded in the body text. Unwrap locates that block,
// extracts the original headers and strips forwarding artifacts from the
// body. Malformed input never produces an error, only a lower confidence.
package unwrap

import (
	"regexp"
	"strings"
	"time"
)

// Forward detection methods, in the priority order they are tried.
const (
	MethodGmail       = "gmail_forward"
	MethodOutlook     = "outlook_forward"
	MethodHeaderBlock = "header_block"
	MethodNone        = "none"
)

// Result holds the recovered original message with a confidence score.
// Method records which forward pattern matched; MethodNone means the email
// did not look like a forward at all, which is distinct from a forward we
// failed to take apart (that shows up as a matched method with penalties).
type Result struct {
	OriginalFrom    string
	OriginalSubject string
	OriginalSentAt  *time.Time
	CleanBody       string
	Confidence      float64
	Method          string
}

// Confidence penalties. Every missing piece of information subtracts from
// a starting score of 1.0; the score is clamped to [0, 1].
const (
	penaltyNoMarker     = 0.30
	penaltyMissingFrom  = 0.20
	penaltyMissingSubj  = 0.15
	penaltyMissingDate  = 0.10
	penaltyShortBody    = 0.15
	minUsableBodyLength = 40
)

type forwardPattern struct {
	method string
	marker *regexp.Regexp
}

// Patterns are tried first to last; the first marker found wins, so the
// same input always unwraps the same way.
var forwardPatterns = []forwardPattern{
	{MethodGmail, regexp.MustCompile(`(?mi)^-{3,}\s*Forwarded message\s*-{3,}\s*$|^Begin forwarded message:\s*$`)},
	{MethodOutlook, regexp.MustCompile(`(?m)^_{10,}\s*$`)},
	{MethodHeaderBlock, regexp.MustCompile(`(?mi)^From:[^\n]+\n(?:[^\n]*\n){0,3}?Subject:[^\n]+`)},
}

var (
	fromRe    = regexp.MustCompile(`(?mi)^\*?From:\*?\s*(.+)$`)
	subjectRe = regexp.MustCompile(`(?mi)^\*?Subject:\*?\s*(.+)$`)
	dateRe    = regexp.MustCompile(`(?mi)^\*?(?:Date|Sent):\*?\s*(.+)$`)
	addrRe    = regexp.MustCompile(`<([^>]+@[^>]+)>`)

	quoteLineRe  = regexp.MustCompile(`(?m)^>.*$`)
	onWroteRe    = regexp.MustCompile(`(?m)^On .{5,120} wrote:\s*$`)
	multiBlankRe = regexp.MustCompile(`\n{3,}`)
)

var signatureMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^--\s*$`),
	regexp.MustCompile(`(?mi)^Sent from my \w+`),
	regexp.MustCompile(`(?mi)^Get Outlook for (?:iOS|Android)`),
}

// Unwrap recovers the original message from rawText, falling back to an
// HTML-to-text conversion of rawHTML when the plain text part is absent or
// degenerate.
func Unwrap(rawText, rawHTML string) Result {
	text := rawText
	if strings.TrimSpace(text) == "" && rawHTML != "" {
		text = htmlToText(rawHTML)
	}

	for _, fp := range forwardPatterns {
		loc := fp.marker.FindStringIndex(text)
		if loc == nil {
			continue
		}
		// The header-block pattern starts at "From:"; the delimiter
		// patterns end just before the headers.
		start := loc[1]
		if fp.method == MethodHeaderBlock {
			start = loc[0]
		}
		return unwrapBlock(text[start:], fp.method)
	}

	// Not a forward: the visible headers are already the original ones.
	body := cleanBody(text)
	confidence := 1.0 - penaltyNoMarker
	if len(body) < minUsableBodyLength {
		confidence -= penaltyShortBody
	}
	return Result{
		CleanBody:  body,
		Confidence: clamp(confidence),
		Method:     MethodNone,
	}
}

// unwrapBlock extracts the original headers and body from the text that
// follows a forward marker.
func unwrapBlock(content, method string) Result {
	res := Result{Method: method, Confidence: 1.0}

	res.OriginalFrom = extractAddress(firstGroup(fromRe, content))
	res.OriginalSubject = strings.TrimSpace(firstGroup(subjectRe, content))
	if dateStr := firstGroup(dateRe, content); dateStr != "" {
		res.OriginalSentAt = parseDate(dateStr)
	}

	res.CleanBody = cleanBody(stripHeaderLines(content))

	if res.OriginalFrom == "" {
		res.Confidence -= penaltyMissingFrom
	}
	if res.OriginalSubject == "" {
		res.Confidence -= penaltyMissingSubj
	}
	if res.OriginalSentAt == nil {
		res.Confidence -= penaltyMissingDate
	}
	if len(res.CleanBody) < minUsableBodyLength {
		res.Confidence -= penaltyShortBody
	}
	res.Confidence = clamp(res.Confidence)
	return res
}

// stripHeaderLines drops the forwarded header block so only the original
// body remains. Header lines can appear in any order and may be followed
// by a blank line.
func stripHeaderLines(content string) string {
	lines := strings.Split(content, "\n")
	i := 0
	headerRe := regexp.MustCompile(`(?i)^\*?(From|To|Cc|Sent|Date|Subject|Reply-To):`)
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || headerRe.MatchString(trimmed) {
			i++
			continue
		}
		break
	}
	return strings.Join(lines[i:], "\n")
}

// cleanBody strips quoted replies and signature blocks and normalizes
// whitespace.
func cleanBody(body string) string {
	if loc := onWroteRe.FindStringIndex(body); loc != nil {
		body = body[:loc[0]]
	}
	for _, marker := range signatureMarkers {
		if loc := marker.FindStringIndex(body); loc != nil {
			body = body[:loc[0]]
		}
	}
	body = quoteLineRe.ReplaceAllString(body, "")
	body = multiBlankRe.ReplaceAllString(body, "\n\n")
	return strings.TrimSpace(body)
}

// extractAddress pulls a bare email address out of a header value like
// `Jane Doe <jane@example.com>`, falling back to the trimmed value.
func extractAddress(value string) string {
	value = strings.TrimSpace(value)
	if m := addrRe.FindStringSubmatch(value); m != nil {
		return strings.TrimSpace(m[1])
	}
	return value
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// dateLayouts covers the header formats Gmail and Outlook emit plus the
// bare variants seen in practice. Parsing failure is soft: the caller gets
// nil and the confidence penalty applies.
var dateLayouts = []string{
	time.RFC1123Z,                   // Mon, 02 Jan 2006 15:04:05 -0700
	time.RFC1123,                    // Mon, 02 Jan 2006 15:04:05 MST
	"Mon, Jan 2, 2006 at 3:04 PM",   // Gmail forward header
	"Monday, January 2, 2006 3:04 PM", // Outlook "Sent:" header
	"2 Jan 2006 15:04:05",
	"1/2/2006 3:04 PM",
	"2006-01-02 15:04:05",
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	// Strip a trailing "(UTC)" style annotation.
	if i := strings.Index(s, " ("); i > 0 {
		s = s[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
