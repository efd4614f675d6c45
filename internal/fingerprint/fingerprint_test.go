package fingerprint

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIsStable(t *testing.T) {
	sentAt := time.Date(2026, 1, 12, 9, 30, 0, 0, time.UTC)
	a := New("jobs@google.com", "Your application", &sentAt, "Thank you for applying.")
	b := New("jobs@google.com", "Your application", &sentAt, "Thank you for applying.")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestNewDiffersPerField(t *testing.T) {
	sentAt := time.Date(2026, 1, 12, 9, 30, 0, 0, time.UTC)
	later := sentAt.Add(time.Hour)
	base := New("jobs@google.com", "Your application", &sentAt, "Thank you for applying.")

	assert.NotEqual(t, base, New("jobs@meta.com", "Your application", &sentAt, "Thank you for applying."))
	assert.NotEqual(t, base, New("jobs@google.com", "Interview invite", &sentAt, "Thank you for applying."))
	assert.NotEqual(t, base, New("jobs@google.com", "Your application", &later, "Thank you for applying."))
	assert.NotEqual(t, base, New("jobs@google.com", "Your application", &sentAt, "Different body entirely."))
	assert.NotEqual(t, base, New("jobs@google.com", "Your application", nil, "Thank you for applying."))
}

func TestNewIgnoresCaseAndWhitespaceInFrom(t *testing.T) {
	sentAt := time.Date(2026, 1, 12, 9, 30, 0, 0, time.UTC)
	a := New("Jobs@Google.com", "Subject", &sentAt, "body")
	b := New("  jobs@google.com  ", "Subject", &sentAt, "body")
	assert.Equal(t, a, b)
}

func TestNewIgnoresTrailingBodyDifferences(t *testing.T) {
	sentAt := time.Date(2026, 1, 12, 9, 30, 0, 0, time.UTC)
	prefix := strings.Repeat("x", BodyPrefixLength)

	a := New("jobs@google.com", "Subject", &sentAt, prefix+"\n\nfirst forward signature")
	b := New("jobs@google.com", "Subject", &sentAt, prefix+"\n\nsecond, different signature")
	assert.Equal(t, a, b)
}

func TestNewNormalizesUnicode(t *testing.T) {
	sentAt := time.Date(2026, 1, 12, 9, 30, 0, 0, time.UTC)
	// Fullwidth vs ASCII; NFKC folds these together.
	a := New("jobs@google.com", "Ｏｆｆｅｒ", &sentAt, "body")
	b := New("jobs@google.com", "Offer", &sentAt, "body")
	assert.Equal(t, a, b)
}

func TestNewTimezoneInsensitive(t *testing.T) {
	utc := time.Date(2026, 1, 12, 9, 30, 0, 0, time.UTC)
	est := utc.In(time.FixedZone("EST", -5*3600))
	a := New("jobs@google.com", "Subject", &utc, "body")
	b := New("jobs@google.com", "Subject", &est, "body")
	assert.Equal(t, a, b)
}
