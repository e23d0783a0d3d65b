// Package narrative asks a generative language model for a prose summary of
// fleet health. It is best-effort: callers always get a string back.
package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"partlife-backend/config"
	"partlife-backend/internal/health"
	"partlife-backend/internal/model"
)

// Fixed replies used instead of errors.
const (
	NoAPIKeyMessage  = "API Key not found. Unable to generate analysis."
	FailureMessage   = "Failed to communicate with AI service."
	NoContentMessage = "No analysis generated."
)

// CriticalDetail describes one critical part in the summary payload.
type CriticalDetail struct {
	Part        string `json:"part"`
	Machine     string `json:"machine"`
	Health      string `json:"health"`
	DaysUsed    int    `json:"daysUsed"`
	MaxLifeDays int    `json:"maxLifeDays"`
}

// Payload is the fleet digest embedded in the prompt.
type Payload struct {
	TotalMachines   int              `json:"totalMachines"`
	TotalParts      int              `json:"totalParts"`
	CriticalCount   int              `json:"criticalCount"`
	WarningCount    int              `json:"warningCount"`
	CriticalDetails []CriticalDetail `json:"criticalDetails"`
	Machines        []string         `json:"machines"`
}

// BuildPayload digests the populated parts of a view.
func BuildPayload(parts []health.PopulatedPart, machines []model.Machine) Payload {
	p := Payload{
		TotalMachines:   len(machines),
		TotalParts:      len(parts),
		CriticalDetails: []CriticalDetail{},
		Machines:        make([]string, 0, len(machines)),
	}
	for _, part := range parts {
		switch part.Status {
		case health.StatusCritical:
			p.CriticalCount++
			p.CriticalDetails = append(p.CriticalDetails, CriticalDetail{
				Part:        part.Definition.Name,
				Machine:     part.MachineName,
				Health:      fmt.Sprintf("%.1f%%", part.HealthPercentage),
				DaysUsed:    part.CurrentDaysUsed,
				MaxLifeDays: part.Definition.MaxLifetimeDays,
			})
		case health.StatusWarning:
			p.WarningCount++
		}
	}
	for _, m := range machines {
		p.Machines = append(p.Machines, m.Name)
	}
	return p
}

// Prompt renders the instruction sent to the model.
func Prompt(p Payload) string {
	data, _ := json.MarshalIndent(p, "", "  ")
	var b strings.Builder
	b.WriteString("You are an industrial maintenance expert. Analyze the following JSON data representing the current state of a factory's machinery and parts.\n\n")
	b.WriteString("Data: ")
	b.Write(data)
	b.WriteString("\n\nPlease provide a concise executive summary in HTML format (using <h3>, <ul>, <li>, <strong>, <p> tags, but no markdown code blocks).\n")
	b.WriteString("Focus on:\n")
	b.WriteString("1. Immediate risks (Critical parts).\n")
	b.WriteString("2. Upcoming maintenance needs (Warning parts).\n")
	b.WriteString("3. A specific recommendation for the most urgent machine.\n")
	b.WriteString("4. Keep the tone professional and urgent if necessary.\n")
	return b.String()
}

type textPart struct {
	Text string `json:"text"`
}

type content struct {
	Parts []textPart `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Summarizer calls the generateContent endpoint of the configured model.
type Summarizer struct {
	httpClient *resty.Client
	apiKey     string
	model      string
	logger     *zap.Logger
}

// NewSummarizer creates a client from cfg.
func NewSummarizer(cfg config.NarrativeConfig, logger *zap.Logger) *Summarizer {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Summarizer{
		httpClient: client,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		logger:     logger,
	}
}

// Summarize returns an HTML analysis of the given parts, or one of the fixed
// messages when no analysis could be produced.
func (s *Summarizer) Summarize(ctx context.Context, parts []health.PopulatedPart, machines []model.Machine) string {
	if s.apiKey == "" {
		return NoAPIKeyMessage
	}

	payload := BuildPayload(parts, machines)
	request := generateRequest{
		Contents: []content{{Parts: []textPart{{Text: Prompt(payload)}}}},
	}

	var response generateResponse
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", s.apiKey).
		SetPathParam("model", s.model).
		SetBody(request).
		SetResult(&response).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		s.logger.Error("narrative request failed", zap.Error(err))
		return FailureMessage
	}
	if resp.IsError() {
		s.logger.Error("narrative service returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return FailureMessage
	}

	var text strings.Builder
	for _, c := range response.Candidates {
		for _, p := range c.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return NoContentMessage
	}

	s.logger.Info("narrative generated",
		zap.Int("critical", payload.CriticalCount),
		zap.Int("warning", payload.WarningCount),
	)
	return text.String()
}
