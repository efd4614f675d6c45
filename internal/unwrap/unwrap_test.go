package unwrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gmailForward = `---------- Forwarded message ---------
From: Google Careers <no-reply@google.com>
Date: Mon, Jan 12, 2026 at 9:30 AM
Subject: Your application to Google
To: Jane Doe <jane@gmail.com>

Thank you for applying to the Software Engineer position at Google.
We have received your application and will review it shortly.
`

const outlookForward = `________________________________
From: recruiting@contoso.com
Sent: Monday, January 12, 2026 9:30 AM
To: jane@outlook.com
Subject: Interview invitation

We would like to invite you to an interview for the Backend Engineer role.
Please use the scheduling link below to pick a time that works for you.
`

func TestUnwrapGmailForward(t *testing.T) {
	res := Unwrap(gmailForward, "")

	assert.Equal(t, MethodGmail, res.Method)
	assert.Equal(t, "no-reply@google.com", res.OriginalFrom)
	assert.Equal(t, "Your application to Google", res.OriginalSubject)
	require.NotNil(t, res.OriginalSentAt)
	assert.Equal(t, time.January, res.OriginalSentAt.Month())
	assert.Contains(t, res.CleanBody, "Thank you for applying")
	assert.NotContains(t, res.CleanBody, "Forwarded message")
	assert.NotContains(t, res.CleanBody, "From:")
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
}

func TestUnwrapOutlookForward(t *testing.T) {
	res := Unwrap(outlookForward, "")

	assert.Equal(t, MethodOutlook, res.Method)
	assert.Equal(t, "recruiting@contoso.com", res.OriginalFrom)
	assert.Equal(t, "Interview invitation", res.OriginalSubject)
	require.NotNil(t, res.OriginalSentAt)
	assert.Contains(t, res.CleanBody, "invite you to an interview")
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
}

func TestUnwrapHeaderBlock(t *testing.T) {
	body := `From: talent@initech.com
Subject: Application update

Your application is moving to the next round.
We will contact you within five business days with details.
`
	res := Unwrap(body, "")

	assert.Equal(t, MethodHeaderBlock, res.Method)
	assert.Equal(t, "talent@initech.com", res.OriginalFrom)
	assert.Equal(t, "Application update", res.OriginalSubject)
	// No date line in the block.
	assert.Nil(t, res.OriginalSentAt)
	assert.InDelta(t, 1.0-penaltyMissingDate, res.Confidence, 1e-9)
}

func TestUnwrapNotAForward(t *testing.T) {
	body := "Thank you for your application. Our team will be in touch with next steps soon."
	res := Unwrap(body, "")

	assert.Equal(t, MethodNone, res.Method)
	assert.Empty(t, res.OriginalFrom)
	assert.Empty(t, res.OriginalSubject)
	assert.Nil(t, res.OriginalSentAt)
	assert.InDelta(t, 1.0-penaltyNoMarker, res.Confidence, 1e-9)
}

func TestUnwrapPenaltiesAccumulate(t *testing.T) {
	// Marker present but no recoverable headers and a tiny body.
	body := "---------- Forwarded message ---------\nok\n"
	res := Unwrap(body, "")

	assert.Equal(t, MethodGmail, res.Method)
	expected := 1.0 - penaltyMissingFrom - penaltyMissingSubj - penaltyMissingDate - penaltyShortBody
	assert.InDelta(t, expected, res.Confidence, 1e-9)
}

func TestUnwrapConfidenceNeverNegative(t *testing.T) {
	res := Unwrap("________________\n", "")
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}

func TestUnwrapMoreInfoScoresHigher(t *testing.T) {
	full := Unwrap(gmailForward, "")

	partial := Unwrap(`---------- Forwarded message ---------
Subject: Your application to Google

Thank you for applying to the Software Engineer position at Google.
We have received your application and will review it shortly.
`, "")

	assert.Greater(t, full.Confidence, partial.Confidence)
}

func TestUnwrapHTMLFallback(t *testing.T) {
	html := `<html><body><div>From: jobs@hooli.com</div><br><div>Subject: We received your application</div><p>Thanks for applying to the Platform Engineer opening. We appreciate your interest.</p></body></html>`
	res := Unwrap("", html)

	assert.Equal(t, MethodHeaderBlock, res.Method)
	assert.Equal(t, "jobs@hooli.com", res.OriginalFrom)
	assert.Equal(t, "We received your application", res.OriginalSubject)
	assert.Contains(t, res.CleanBody, "Platform Engineer")
}

func TestCleanBodyStripsArtifacts(t *testing.T) {
	body := `Great news about your application status update today.

On Mon, Jan 12, 2026 at 9:00 AM Jane Doe wrote:
> earlier message
> more quoted text
`
	cleaned := cleanBody(body)
	assert.Contains(t, cleaned, "Great news")
	assert.NotContains(t, cleaned, "quoted text")
	assert.NotContains(t, cleaned, "wrote:")
}

func TestCleanBodyStripsSignature(t *testing.T) {
	body := "See you at the interview on Thursday morning.\n\n-- \nJane Doe\njane@example.com\n"
	cleaned := cleanBody(body)
	assert.Contains(t, cleaned, "See you at the interview")
	assert.NotContains(t, cleaned, "jane@example.com")
}

func TestParseDateLayouts(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"rfc1123z", "Mon, 12 Jan 2026 09:30:00 -0700", true},
		{"gmail", "Mon, Jan 12, 2026 at 9:30 AM", true},
		{"outlook", "Monday, January 12, 2026 9:30 AM", true},
		{"trailing annotation", "Mon, 12 Jan 2026 09:30:00 +0000 (UTC)", true},
		{"garbage", "sometime last week", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDate(tt.input)
			if tt.ok {
				require.NotNil(t, got)
				assert.Equal(t, time.UTC, got.Location())
			} else {
				assert.Nil(t, got)
			}
		})
	}
}
