// Package matcher scores how well an application fits an offer by asking an
// OpenAI-compatible chat-completions endpoint.
package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khalilhajj/PfeManagement/config"
)

// DefaultScore is used when the reply carries no parsable score.
const DefaultScore = 50

var (
	// ErrDisabled is returned when no API key is configured.
	ErrDisabled = errors.New("matcher: scoring is not configured")

	scorePattern = regexp.MustCompile(`(?i)MATCH SCORE:\s*(\d+)`)
)

const systemPrompt = "You are an expert HR recruiter who analyzes candidate-job matches with emphasis on skills matching. " +
	"Provide scores from 0-100 where skills are heavily weighted."

// Request is everything the scorer sees about one application.
type Request struct {
	ApplicantName string
	Email         string
	CoverLetter   string
	CVText        string

	OfferTitle   string
	CompanyName  string
	Description  string
	Requirements string
	Type         string
	Location     string
	Duration     string
	StartDate    string
	EndDate      string
}

// Breakdown is the structured part of the analysis.
type Breakdown struct {
	SkillsMatch    []string `json:"skills_match,omitempty"`
	Strengths      []string `json:"strengths,omitempty"`
	Gaps           []string `json:"gaps,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// Result of one scoring call.
type Result struct {
	Score     int       `json:"score"`
	Analysis  string    `json:"analysis"`
	Breakdown Breakdown `json:"breakdown"`
}

// Scorer is implemented by Client; services depend on the interface.
type Scorer interface {
	Score(ctx context.Context, req Request) (*Result, error)
}

// Client talks to the chat-completions endpoint.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
	logger   *zap.Logger
}

// New creates a Client from configuration.
func New(cfg *config.MatcherConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Score sends one application to the model and parses its reply.
func (c *Client) Score(ctx context.Context, req Request) (*Result, error) {
	if c.apiKey == "" {
		return nil, ErrDisabled
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature: 0.5,
		MaxTokens:   800,
	})
	if err != nil {
		return nil, fmt.Errorf("matcher: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("matcher: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("matcher: call endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("matcher: endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("matcher: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("matcher: response has no choices")
	}

	text := out.Choices[0].Message.Content
	c.logger.Debug("match analysis received", zap.Int("chars", len(text)))

	return &Result{
		Score:     ParseScore(text),
		Analysis:  text,
		Breakdown: ParseBreakdown(text),
	}, nil
}

// ParseScore extracts "MATCH SCORE: n", clamped to 0-100; DefaultScore when absent.
func ParseScore(text string) int {
	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		return DefaultScore
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return DefaultScore
	}
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// ParseBreakdown splits the reply into its headed sections. Unknown headings
// are ignored.
func ParseBreakdown(text string) Breakdown {
	var b Breakdown
	var current *[]string
	inRecommendation := false

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(strings.TrimSuffix(line, ":"))
		switch {
		case strings.HasPrefix(upper, "MATCH SCORE"):
			current, inRecommendation = nil, false
			continue
		case upper == "SKILLS MATCH":
			current, inRecommendation = &b.SkillsMatch, false
			continue
		case upper == "STRENGTHS":
			current, inRecommendation = &b.Strengths, false
			continue
		case upper == "GAPS":
			current, inRecommendation = &b.Gaps, false
			continue
		case strings.HasPrefix(upper, "RECOMMENDATION"):
			current, inRecommendation = nil, true
			if rest := strings.TrimSpace(line[len("RECOMMENDATION"):]); strings.HasPrefix(rest, ":") {
				b.Recommendation = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
			}
			continue
		}

		switch {
		case current != nil:
			*current = append(*current, strings.TrimSpace(strings.TrimLeft(line, "-*• ")))
		case inRecommendation && b.Recommendation == "":
			b.Recommendation = line
		}
	}
	return b
}

func buildPrompt(r Request) string {
	orNone := func(s, fallback string) string {
		if strings.TrimSpace(s) == "" {
			return fallback
		}
		return s
	}

	var skills strings.Builder
	for _, s := range strings.Split(r.Requirements, ",") {
		if s = strings.TrimSpace(s); s != "" {
			skills.WriteString("- " + s + "\n")
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an expert HR recruiter. Analyze how well this applicant matches the job requirements, with SPECIAL FOCUS on the required skills.\n\n")
	fmt.Fprintf(&sb, "JOB TITLE: %s\n\nCOMPANY: %s\n\nDESCRIPTION:\n%s\n\n", r.OfferTitle, r.CompanyName, r.Description)
	if skills.Len() > 0 {
		fmt.Fprintf(&sb, "REQUIRED SKILLS (Priority):\n%s\n", skills.String())
	}
	fmt.Fprintf(&sb, "ADDITIONAL REQUIREMENTS:\n%s\n\n", orNone(r.Requirements, "No additional requirements listed"))
	fmt.Fprintf(&sb, "TYPE: %s\nLOCATION: %s\nDURATION: %s\nSTART DATE: %s\nEND DATE: %s\n\n---\n\n",
		r.Type, orNone(r.Location, "Not specified"), orNone(r.Duration, "Not specified"), r.StartDate, r.EndDate)
	fmt.Fprintf(&sb, "STUDENT INFORMATION:\n- Name: %s\n- Email: %s\n\n", r.ApplicantName, r.Email)
	fmt.Fprintf(&sb, "COVER LETTER:\n%s\n\n", orNone(r.CoverLetter, "No cover letter provided"))
	fmt.Fprintf(&sb, "CV CONTENT:\n%s\n\n", orNone(r.CVText, "No CV uploaded"))
	sb.WriteString("Provide your analysis in EXACTLY this format:\n\n" +
		"MATCH SCORE: [number between 0-100]\n\n" +
		"SKILLS MATCH:\n- [For each required skill, state if the candidate has it and provide evidence from their CV]\n\n" +
		"STRENGTHS:\n- [Specific strength]\n\n" +
		"GAPS:\n- [Missing skill or requirement]\n\n" +
		"RECOMMENDATION:\n[Strong Match / Good Match / Moderate Match / Weak Match / Not Recommended]\n")
	return sb.String()
}
