package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"jobtrack/internal/models"
)

// actionByType: email types that imply a required user action.
var actionByType = map[models.EmailType]struct {
	actionType  models.ActionType
	description string
}{
	models.EmailTypeAssessmentInvite: {models.ActionCompleteAssessment, "Complete technical assessment"},
	models.EmailTypeInterviewRequest: {models.ActionScheduleInterview, "Schedule interview time"},
	models.EmailTypeOffer:            {models.ActionAcceptOffer, "Review and respond to offer"},
}

var actionKeywords = []struct {
	words       []string
	actionType  models.ActionType
	description string
}{
	{[]string{"submit your documents", "upload your documents", "provide references"}, models.ActionSubmitDocuments, "Submit requested documents"},
	{[]string{"please respond", "let us know", "reply with"}, models.ActionRespondToEmail, "Respond to recruiter"},
}

// deadlineAnchorRe marks spots in the text near which a deadline date may
// appear; deadlineWindow bounds how far around the anchor we search.
var deadlineAnchorRe = regexp.MustCompile(`(?i)deadline|due\s+by|complete\s+(?:it\s+|this\s+)?by|expires?|within|no later than`)

const deadlineWindow = 120

var (
	absoluteDateRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)([a-z]+ \d{1,2}, \d{4})`), // January 15, 2026
		regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`),      // 01/15/2026
		regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`),          // 2026-01-15
	}
	relativeDaysRe = regexp.MustCompile(`(?i)within\s+(?:the\s+next\s+)?(\d{1,2})\s+days`)
	relativeWeekRe = regexp.MustCompile(`(?i)within\s+(?:a|one)\s+week`)
)

var deadlineLayouts = []string{"January 2, 2006", "1/2/2006", "2006-01-02"}

// detectAction decides whether the email demands something from the
// applicant and, if so, hunts for a deadline near action-related keywords.
// An unparseable deadline leaves the field nil; it never fails extraction.
func detectAction(emailType models.EmailType, lowerText string, receivedAt time.Time) *Action {
	var action *Action

	if implied, ok := actionByType[emailType]; ok {
		action = &Action{Type: implied.actionType, Description: implied.description}
	} else {
		for _, kw := range actionKeywords {
			for _, w := range kw.words {
				if strings.Contains(lowerText, w) {
					action = &Action{Type: kw.actionType, Description: kw.description}
					break
				}
			}
			if action != nil {
				break
			}
		}
	}
	if action == nil {
		return nil
	}

	action.Deadline = findDeadline(lowerText, receivedAt)
	return action
}

// findDeadline searches a bounded window around each deadline anchor for a
// parseable date, absolute first, then relative to the email date.
func findDeadline(lowerText string, receivedAt time.Time) *time.Time {
	for _, loc := range deadlineAnchorRe.FindAllStringIndex(lowerText, -1) {
		start := loc[0] - deadlineWindow
		if start < 0 {
			start = 0
		}
		end := loc[1] + deadlineWindow
		if end > len(lowerText) {
			end = len(lowerText)
		}
		window := lowerText[start:end]

		for _, re := range absoluteDateRes {
			if m := re.FindStringSubmatch(window); m != nil {
				if t := parseDeadline(m[1]); t != nil {
					return t
				}
			}
		}
		if m := relativeDaysRe.FindStringSubmatch(window); m != nil {
			if days, err := strconv.Atoi(m[1]); err == nil {
				t := receivedAt.AddDate(0, 0, days)
				return &t
			}
		}
		if relativeWeekRe.MatchString(window) {
			t := receivedAt.AddDate(0, 0, 7)
			return &t
		}
	}
	return nil
}

func parseDeadline(s string) *time.Time {
	// Dates are matched against lower-cased text; layouts want title case.
	s = titleCaser.String(s)
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
