// internal/providers/narration.go
package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/SarthakGarg19/social-support-ai/internal/common/errors"
	"github.com/SarthakGarg19/social-support-ai/internal/common/logger"
)

const narrationSystemPrompt = "You are a social support case officer. " +
	"Explain eligibility decisions in plain, empathetic language. " +
	"Base your explanation ONLY on the provided scoring breakdown and programs. " +
	"Never promise outcomes that are not in the decision."

// OpenAINarratorConfig configures the chat-completion narrator.
type OpenAINarratorConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// OpenAINarrator phrases decisions through an OpenAI-compatible endpoint.
type OpenAINarrator struct {
	config OpenAINarratorConfig
	client *openai.Client
	logger logger.Logger
}

func NewOpenAINarrator(cfg OpenAINarratorConfig, log logger.Logger) *OpenAINarrator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	return &OpenAINarrator{
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
		logger: log.With(map[string]interface{}{"provider": "narration"}),
	}
}

func (n *OpenAINarrator) Narrate(ctx context.Context, req NarrationRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
	defer cancel()

	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     n.config.Model,
		MaxTokens: n.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: narrationSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildNarrationPrompt(req)},
		},
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.NewNarrationTimeoutError()
		}
		return "", errors.NewNarrationFailedError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.NewNarrationFailedError(fmt.Errorf("empty completion"))
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	n.logger.Debug("narration completed", map[string]interface{}{
		"applicantId": req.Profile.ApplicantID,
		"length":      len(text),
	})
	return text, nil
}

func buildNarrationPrompt(req NarrationRequest) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Applicant: %s", req.Profile.Name))
	parts = append(parts, fmt.Sprintf("Decision: %s (confidence %s, score %.1f/100)",
		req.Assessment.Decision, req.Assessment.Confidence, req.Assessment.Score))

	parts = append(parts, "\nScoring breakdown:")
	for _, f := range req.Assessment.Breakdown {
		parts = append(parts, fmt.Sprintf("- %s: %.1f/%.1f (%s)", f.Factor, f.Points, f.MaxPoints, f.Detail))
	}

	if len(req.Programs) > 0 {
		parts = append(parts, "\nRecommended programs:")
		for _, p := range req.Programs {
			parts = append(parts, fmt.Sprintf("- %s (%s priority)", p.Name, p.Priority))
		}
	}

	if len(req.Passages) > 0 {
		parts = append(parts, "\nRelevant policy passages:")
		for _, psg := range req.Passages {
			parts = append(parts, fmt.Sprintf("- %s: %s", psg.Title, psg.Content))
		}
	}

	parts = append(parts, "\nWrite a short explanation (2-4 sentences) the applicant can understand.")

	return strings.Join(parts, "\n")
}
