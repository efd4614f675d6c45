package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtrack/internal/models"
)

var testTime = time.Date(2026, 1, 12, 9, 30, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return New(nil, zerolog.Nop())
}

func TestExtractApplicationConfirmation(t *testing.T) {
	e := newTestExtractor()
	res := e.Extract(context.Background(),
		"Your application to Google",
		"Thank you for applying. We received your application for the Software Engineer position at Google and will review it shortly.",
		"no-reply@google.com", testTime)

	assert.Equal(t, models.EmailTypeApplicationConfirmation, res.EmailType)
	assert.Equal(t, "Google", res.CompanyName)
	assert.InDelta(t, companyTierVendor, res.CompanyConfidence, 1e-9)
	assert.Equal(t, "Software Engineer", res.JobTitle)
	assert.InDelta(t, titleTierSingle, res.TitleConfidence, 1e-9)
	assert.Equal(t, models.StatusAppliedReceived, res.Status)
	assert.GreaterOrEqual(t, res.OverallConfidence, OracleThreshold)
	assert.Equal(t, "rules", res.Method)
}

func TestExtractNotJobRelated(t *testing.T) {
	e := newTestExtractor()
	res := e.Extract(context.Background(),
		"Dinner on Friday?",
		"Are we still on for dinner this week? Let me know what time works.",
		"friend@gmail.com", testTime)

	assert.Equal(t, models.EmailTypeNotJobRelated, res.EmailType)
	assert.Empty(t, res.CompanyName)
	assert.Empty(t, res.JobTitle)
	assert.Equal(t, models.StatusOtherUpdate, res.Status)
	assert.Zero(t, res.OverallConfidence)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		domain  string
		subject string
		body    string
		want    models.EmailType
	}{
		{
			name:   "assessment vendor domain wins regardless of body",
			domain: "hackerrank.com",
			body:   "you have been invited",
			want:   models.EmailTypeAssessmentInvite,
		},
		{
			name: "rejection keyword",
			body: "unfortunately we will not be moving forward with your candidacy",
			want: models.EmailTypeRejection,
		},
		{
			name: "rejection beats assessment when both match",
			body: "unfortunately we are closing your coding challenge invitation",
			want: models.EmailTypeRejection,
		},
		{
			name: "assessment invite",
			body: "please complete the assessment within 5 days",
			want: models.EmailTypeAssessmentInvite,
		},
		{
			name:    "interview request",
			subject: "interview invitation",
			body:    "please select a time that suits your availability",
			want:    models.EmailTypeInterviewRequest,
		},
		{
			name: "interview confirmation",
			body: "your interview is scheduled for thursday, zoom link below",
			want: models.EmailTypeInterviewConfirmation,
		},
		{
			name:    "offer",
			subject: "your offer from initech",
			body:    "we are pleased to offer you the position",
			want:    models.EmailTypeOffer,
		},
		{
			name: "recruiter outreach",
			body: "i came across your profile and have an exciting opportunity",
			want: models.EmailTypeRecruiterOutreach,
		},
		{
			name: "generic status update",
			body: "your application is under review by the hiring team",
			want: models.EmailTypeOtherUpdate,
		},
		{
			name: "nothing job related",
			body: "your package has shipped and arrives tomorrow",
			want: models.EmailTypeNotJobRelated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.domain, tt.subject, tt.subject+"\n"+tt.body)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInferStatus(t *testing.T) {
	assert.Equal(t, models.StatusRejected, inferStatus(models.EmailTypeRejection, ""))
	assert.Equal(t, models.StatusOfferExtended, inferStatus(models.EmailTypeOffer, ""))
	assert.Equal(t, models.StatusInReview, inferStatus(models.EmailTypeOtherUpdate, "your application is under review"))
	assert.Equal(t, models.StatusOtherUpdate, inferStatus(models.EmailTypeOtherUpdate, "we will be in touch"))
}

func TestExtractCompanyTiers(t *testing.T) {
	tests := []struct {
		name       string
		subject    string
		body       string
		domain     string
		wantName   string
		wantConf   float64
	}{
		{
			name:     "known vendor domain",
			domain:   "amazon.jobs",
			wantName: "Amazon",
			wantConf: companyTierVendor,
		},
		{
			name:     "ats platform recovers employer from body",
			domain:   "no-reply.greenhouse.io",
			body:     "Thank you for applying to Initech for the Data Engineer position.",
			wantName: "Initech",
			wantConf: companyTierVendor,
		},
		{
			name:     "domain derived name",
			domain:   "initech.com",
			wantName: "Initech",
			wantConf: companyTierDomain,
		},
		{
			name:     "freemail falls back to subject",
			domain:   "gmail.com",
			subject:  "Your application to Stripe",
			wantName: "Stripe",
			wantConf: companyTierSubject,
		},
		{
			name:     "freemail with no subject signal yields nothing",
			domain:   "gmail.com",
			subject:  "hello again",
			wantName: "",
			wantConf: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, conf := extractCompany(tt.subject, tt.body, tt.domain)
			assert.Equal(t, tt.wantName, name)
			assert.InDelta(t, tt.wantConf, conf, 1e-9)
		})
	}
}

func TestExtractTitle(t *testing.T) {
	t.Run("single candidate scores high", func(t *testing.T) {
		title, conf := extractTitle("", "We received your application for the Backend Engineer position.")
		assert.Equal(t, "Backend Engineer", title)
		assert.InDelta(t, titleTierSingle, conf, 1e-9)
	})

	t.Run("multiple candidates pick longest at lower tier", func(t *testing.T) {
		body := "Your application for the Software Engineer position was received. " +
			"We also considered you for the Staff Platform Engineer role."
		title, conf := extractTitle("", body)
		assert.Equal(t, "Staff Platform Engineer", title)
		assert.InDelta(t, titleTierMultiple, conf, 1e-9)
	})

	t.Run("no candidates", func(t *testing.T) {
		title, conf := extractTitle("quick question", "are you free on monday?")
		assert.Empty(t, title)
		assert.Zero(t, conf)
	})

	t.Run("noise words rejected", func(t *testing.T) {
		title, _ := extractTitle("Your application", "Thank you. An update on your application follows.")
		assert.NotEqual(t, "application", title)
	})
}

func TestOverallConfidenceMissingCompanyCap(t *testing.T) {
	res := Result{
		EmailType:       models.EmailTypeOffer,
		Status:          models.StatusOfferExtended,
		JobTitle:        "Engineer",
		TitleConfidence: 0.85,
	}
	score := overallConfidence(res)
	assert.LessOrEqual(t, score, missingCompanyCap)

	res.CompanyName = "Initech"
	res.CompanyConfidence = companyTierDomain
	assert.Greater(t, overallConfidence(res), missingCompanyCap)
}

type stubOracle struct {
	partial *Partial
	err     error
	called  bool
}

func (s *stubOracle) ExtractPartial(ctx context.Context, subject, body string) (*Partial, error) {
	s.called = true
	return s.partial, s.err
}

func TestExtractOracleEscalation(t *testing.T) {
	t.Run("low confidence escalates and merges missing fields", func(t *testing.T) {
		oracle := &stubOracle{partial: &Partial{
			CompanyName: "Initech",
			JobTitle:    "Platform Engineer",
			IsJobRelated: true,
		}}
		e := New(oracle, zerolog.Nop())

		// Freemail sender, vague content: rules alone stay below threshold.
		res := e.Extract(context.Background(), "update",
			"your application is under review by the hiring team",
			"someone@gmail.com", testTime)

		assert.True(t, oracle.called)
		assert.Equal(t, "rules+oracle", res.Method)
		assert.Equal(t, "Initech", res.CompanyName)
		assert.InDelta(t, oracleFieldConfidence, res.CompanyConfidence, 1e-9)
		assert.Equal(t, "Platform Engineer", res.JobTitle)
	})

	t.Run("high confidence skips the oracle", func(t *testing.T) {
		oracle := &stubOracle{partial: &Partial{CompanyName: "Wrong"}}
		e := New(oracle, zerolog.Nop())

		res := e.Extract(context.Background(),
			"Your application to Google",
			"Thank you for applying. We received your application for the Software Engineer position at Google.",
			"no-reply@google.com", testTime)

		assert.False(t, oracle.called)
		assert.Equal(t, "Google", res.CompanyName)
	})

	t.Run("oracle failure keeps rule result", func(t *testing.T) {
		oracle := &stubOracle{err: errors.New("timeout")}
		e := New(oracle, zerolog.Nop())

		res := e.Extract(context.Background(), "update",
			"your application is under review",
			"someone@gmail.com", testTime)

		assert.True(t, oracle.called)
		assert.Equal(t, "rules", res.Method)
	})

	t.Run("not job related never escalates", func(t *testing.T) {
		oracle := &stubOracle{partial: &Partial{}}
		e := New(oracle, zerolog.Nop())

		e.Extract(context.Background(), "Dinner?", "see you at eight", "friend@gmail.com", testTime)
		assert.False(t, oracle.called)
	})
}

func TestMergeOracleNeverOverridesConfidentFields(t *testing.T) {
	res := Result{
		EmailType:         models.EmailTypeApplicationConfirmation,
		CompanyName:       "Google",
		CompanyConfidence: companyTierVendor,
		JobTitle:          "",
		TitleConfidence:   0,
		Status:            models.StatusAppliedReceived,
	}
	merged := mergeOracle(res, &Partial{
		CompanyName:  "Alphabet",
		JobTitle:     "Software Engineer",
		IsJobRelated: true,
	})

	assert.Equal(t, "Google", merged.CompanyName)
	assert.InDelta(t, companyTierVendor, merged.CompanyConfidence, 1e-9)
	assert.Equal(t, "Software Engineer", merged.JobTitle)
	assert.InDelta(t, oracleFieldConfidence, merged.TitleConfidence, 1e-9)
	assert.Equal(t, models.StatusAppliedReceived, merged.Status)
}

func TestDetectAction(t *testing.T) {
	t.Run("assessment implies action with relative deadline", func(t *testing.T) {
		action := detectAction(models.EmailTypeAssessmentInvite,
			"please complete the assessment within 5 days", testTime)
		require.NotNil(t, action)
		assert.Equal(t, models.ActionCompleteAssessment, action.Type)
		require.NotNil(t, action.Deadline)
		assert.Equal(t, testTime.AddDate(0, 0, 5), *action.Deadline)
	})

	t.Run("absolute deadline near anchor", func(t *testing.T) {
		action := detectAction(models.EmailTypeAssessmentInvite,
			"your coding challenge is due by january 15, 2026.", testTime)
		require.NotNil(t, action)
		require.NotNil(t, action.Deadline)
		assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), action.Deadline.UTC())
	})

	t.Run("keyword action without deadline", func(t *testing.T) {
		action := detectAction(models.EmailTypeOtherUpdate,
			"please respond at your earliest convenience", testTime)
		require.NotNil(t, action)
		assert.Equal(t, models.ActionRespondToEmail, action.Type)
		assert.Nil(t, action.Deadline)
	})

	t.Run("no action for plain confirmation", func(t *testing.T) {
		action := detectAction(models.EmailTypeApplicationConfirmation,
			"we received your application", testTime)
		assert.Nil(t, action)
	})
}

func TestExtractLinks(t *testing.T) {
	body := `Schedule here: https://calendly.com/initech/intro
Join: https://zoom.us/j/123456
Posting: https://initech.com/careers/backend-engineer
Posting: https://initech.com/careers/backend-engineer
Misc: https://example.com/x`

	links := ExtractLinks(body)
	require.Len(t, links, 4) // duplicate collapsed

	byURL := map[string]Link{}
	for _, l := range links {
		byURL[l.URL] = l
	}

	assert.Equal(t, models.LinkSchedulingTool, byURL["https://calendly.com/initech/intro"].Type)
	assert.Equal(t, models.LinkVideoInterview, byURL["https://zoom.us/j/123456"].Type)
	assert.Equal(t, models.LinkJobPosting, byURL["https://initech.com/careers/backend-engineer"].Type)
	assert.Equal(t, models.LinkUnknown, byURL["https://example.com/x"].Type)
}
