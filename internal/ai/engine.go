package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 1024
	apiURL           = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"
)

// Intent classifies what the user wants from a free-text message.
type Intent string

const (
	// IntentRead asks to see or summarize inbox messages.
	IntentRead Intent = "READ"
	// IntentDraft asks to compose or reply to an email.
	IntentDraft Intent = "DRAFT"
	// IntentOther is everything else.
	IntentOther Intent = "OTHER"
)

// Engine calls the Claude Messages API for summarization, reply drafting,
// and intent detection. Every method returns (text, error); callers must
// never display an error as if it were content.
type Engine struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	client    *http.Client
}

// New creates an AI engine with the given configuration.
func New(apiKey, modelName string, maxTokens int) *Engine {
	if modelName == "" {
		modelName = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Engine{
		apiKey:    apiKey,
		model:     modelName,
		maxTokens: maxTokens,
		baseURL:   apiURL,
		client:    &http.Client{},
	}
}

// Summarize condenses an email body into a few bullet points.
func (e *Engine) Summarize(ctx context.Context, body string) (string, error) {
	prompt := "Summarize this email in 3 short bullet points. " +
		"Ignore signatures and disclaimers:\n\n" + body
	return e.complete(ctx, prompt)
}

// DraftReply generates a reply body. sourceBody is the original message
// (empty for a fresh compose) and instruction is what the user wants said.
// When priorDraft is non-empty the instruction is treated as feedback on
// that draft instead of a fresh request.
func (e *Engine) DraftReply(
	ctx context.Context,
	sourceBody, instruction, priorDraft string,
) (string, error) {
	var prompt string
	switch {
	case priorDraft != "":
		prompt = fmt.Sprintf(
			"Current draft:\n%s\n\nUser feedback: %s\n\n"+
				"Refine the draft based on the feedback. Maintain a "+
				"professional tone. Do not include placeholders like "+
				"'[Your Name]'. Reply with the email body only.",
			priorDraft, instruction,
		)
	case sourceBody != "":
		prompt = fmt.Sprintf(
			"Original email:\n%s\n\nUser instruction: %s\n\n"+
				"Draft a professional reply. Do not include a subject "+
				"line. Reply with the email body only.",
			sourceBody, instruction,
		)
	default:
		prompt = fmt.Sprintf(
			"User instruction: %s\n\nDraft a professional email "+
				"carrying out this instruction. Do not include a subject "+
				"line. Reply with the email body only.",
			instruction,
		)
	}

	return e.complete(ctx, prompt)
}

// DetectIntent classifies a free-text chat message. Unrecognized model
// output maps to IntentOther rather than an error so routing always has
// an answer.
func (e *Engine) DetectIntent(ctx context.Context, text string) (Intent, error) {
	prompt := "Classify the user's request into exactly one word: " +
		"READ (wants to see, check, or summarize emails), " +
		"DRAFT (wants to write, compose, or reply to an email), " +
		"or OTHER. Respond with only that word.\n\nRequest: " + text

	out, err := e.complete(ctx, prompt)
	if err != nil {
		return IntentOther, err
	}

	switch Intent(strings.ToUpper(strings.TrimSpace(out))) {
	case IntentRead:
		return IntentRead, nil
	case IntentDraft:
		return IntentDraft, nil
	default:
		return IntentOther, nil
	}
}

// complete makes a single request to the Claude Messages API and returns
// the concatenated text content.
func (e *Engine) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := apiRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		Messages: []apiMessage{
			{
				Role:    "user",
				Content: []apiContentBlock{{Type: "text", Text: prompt}},
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, e.baseURL, bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	var parts []string
	for _, block := range result.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}

	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", e.model)
	}
	return text, nil
}

// --- Claude API types ---

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string            `json:"role"`
	Content []apiContentBlock `json:"content"`
}

type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []apiContentBlock `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
