// Package judge calls the external arbitration service that picks a
// verdict winner, and carries the deterministic fallback used when the
// service misbehaves.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNoAPIKey means no judge credential is configured. This is the one
// failure the trigger must not paper over with a fallback.
var ErrNoAPIKey = errors.New("judge api key is not configured")

// Contender is one player's case as handed to the judge.
type Contender struct {
	ID            string
	Name          string
	Submission    string
	Justification string
}

// Ruling is the judge's structured reply.
type Ruling struct {
	WinnerID string `json:"winner_id"`
	Reason   string `json:"reason"`
}

// Judge decides a winner among contenders.
type Judge interface {
	Decide(ctx context.Context, contenders []Contender) (Ruling, error)
}

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// GeminiJudge calls the Gemini generateContent API.
type GeminiJudge struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *GeminiJudge) Decide(ctx context.Context, contenders []Contender) (Ruling, error) {
	if strings.TrimSpace(g.APIKey) == "" {
		return Ruling{}, ErrNoAPIKey
	}
	if len(contenders) == 0 {
		return Ruling{}, errors.New("no contenders to judge")
	}

	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: buildPrompt(contenders)}}}},
	})
	if err != nil {
		return Ruling{}, fmt.Errorf("failed to build judge request")
	}

	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	base := g.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	model := g.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", base, model, strings.TrimSpace(g.APIKey))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Ruling{}, fmt.Errorf("failed to build judge request")
	}
	req.Header.Set("Content-Type", "application/json")

	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Ruling{}, fmt.Errorf("failed to reach the judge")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Ruling{}, fmt.Errorf("failed to read judge response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Ruling{}, fmt.Errorf("judge request failed (%d)", resp.StatusCode)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Ruling{}, fmt.Errorf("failed to parse judge response")
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return Ruling{}, fmt.Errorf("judge error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return Ruling{}, errors.New("judge returned no ruling")
	}

	ruling, err := parseRuling(parsed.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return Ruling{}, err
	}
	return ruling, nil
}

func buildPrompt(contenders []Contender) string {
	var cases strings.Builder
	for i, c := range contenders {
		if i > 0 {
			cases.WriteString("\n\n")
		}
		fmt.Fprintf(&cases, "Player ID: %s\nName: %s\nChoice: %s\nArgument: %q", c.ID, c.Name, c.Submission, c.Justification)
	}
	return fmt.Sprintf(`You are the honorable Judge AI. Decide who provided the most convincing argument.

Here are the cases:
%s

Rules:
1. Pick ONE winner based on logic, creativity, and persuasion.
2. Provide a witty, authoritative, 1-sentence ruling. This ruling MUST summarize the winner's justification key point and explain why it was chosen.
3. Return ONLY a JSON object: { "winner_id": "...", "reason": "..." }`, cases.String())
}

// parseRuling extracts the JSON ruling, tolerating markdown code
// fences around it.
func parseRuling(raw string) (Ruling, error) {
	clean := strings.ReplaceAll(raw, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	var ruling Ruling
	if err := json.Unmarshal([]byte(clean), &ruling); err != nil {
		return Ruling{}, fmt.Errorf("judge ruling was not valid JSON")
	}
	if ruling.WinnerID == "" || ruling.Reason == "" {
		return Ruling{}, errors.New("judge ruling was incomplete")
	}
	return ruling, nil
}
