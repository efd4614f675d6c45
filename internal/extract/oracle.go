package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"jobtrack/internal/config"
	"jobtrack/internal/models"
)

// oracleBodyLimit truncates the body sent to the oracle to stay inside
// token limits.
const oracleBodyLimit = 3000

// OpenAIOracle implements Oracle with a chat-completion call. Every call
// is bounded by the configured timeout; a timeout surfaces as an error the
// extractor treats as "oracle unavailable".
type OpenAIOracle struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIOracle creates the oracle client, or nil when no key is
// configured.
func NewOpenAIOracle(cfg *config.Config) *OpenAIOracle {
	if !cfg.HasOracle() {
		return nil
	}
	return &OpenAIOracle{
		client:  openai.NewClient(cfg.OpenAIKey),
		model:   string(openai.GPT4oMini),
		timeout: time.Duration(cfg.OpenAITimeout) * time.Second,
	}
}

type oracleResponse struct {
	CompanyName  string `json:"company_name"`
	JobTitle     string `json:"job_title"`
	Status       string `json:"status"`
	IsJobRelated bool   `json:"is_job_related"`
}

var oracleStatusMap = map[string]models.ApplicationStatus{
	"applied":             models.StatusAppliedReceived,
	"received":            models.StatusAppliedReceived,
	"in_review":           models.StatusInReview,
	"assessment":          models.StatusNextStepAssessment,
	"interview_scheduled": models.StatusInterviewScheduled,
	"rejected":            models.StatusRejected,
	"offer":               models.StatusOfferExtended,
}

var jsonBlockRe = regexp.MustCompile(`\{[\s\S]*\}`)

// ExtractPartial asks the model for the fields the rules could not settle.
func (o *OpenAIOracle) ExtractPartial(ctx context.Context, subject, body string) (*Partial, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if len(body) > oracleBodyLimit {
		body = body[:oracleBodyLimit]
	}

	prompt := fmt.Sprintf(`Extract job application information from this email. Return ONLY valid JSON, no other text.

Subject: %s
Body:
%s

Format:
{"company_name": "name or empty string", "job_title": "title or empty string", "status": "one of: applied, received, in_review, assessment, interview_scheduled, rejected, offer, other", "is_job_related": true or false}

Company names are often brand-like words (Waymo, Databricks). Never report Gmail, Outlook, Greenhouse, Lever or Workday as the company. Set is_job_related=false for newsletters, alerts and promotions.`, subject, body)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		MaxTokens:   300,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("oracle completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("oracle returned no choices")
	}

	return parseOracleResponse(resp.Choices[0].Message.Content)
}

func parseOracleResponse(content string) (*Partial, error) {
	raw := strings.TrimSpace(content)
	if !strings.HasPrefix(raw, "{") {
		raw = jsonBlockRe.FindString(raw)
		if raw == "" {
			return nil, fmt.Errorf("oracle response contains no JSON")
		}
	}

	var parsed oracleResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("decode oracle response: %w", err)
	}

	partial := &Partial{
		CompanyName:  cleanCompany(parsed.CompanyName),
		JobTitle:     cleanTitle(parsed.JobTitle),
		IsJobRelated: parsed.IsJobRelated,
	}
	if status, ok := oracleStatusMap[strings.ToLower(parsed.Status)]; ok {
		partial.Status = status
	}
	return partial, nil
}
