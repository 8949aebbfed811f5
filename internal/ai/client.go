package ai

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

	"github.com/santhosh-tekuri/jsonschema/v6"

	"service-note-backend/internal/conversation"
	"service-note-backend/internal/notes"
)

const defaultBaseURL = "https://api.openai.com"

// OpenAIClient calls the Responses API for step extraction and narrative
// formatting. It holds no global state; build one per process and pass it in.
type OpenAIClient struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client

	schema *jsonschema.Schema
}

func New(apiKey, model, baseURL string) (*OpenAIClient, error) {
	schema, err := compileFieldsSchema()
	if err != nil {
		return nil, err
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAIClient{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 90 * time.Second},
		schema:  schema,
	}, nil
}

type inputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type inputMessage struct {
	Role    string         `json:"role"`
	Content []inputContent `json:"content"`
}

type responsesRequest struct {
	Model string         `json:"model"`
	Input []inputMessage `json:"input"`
}

type responsesResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Type    string `json:"type"`
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// apiError carries the HTTP status of a failed call.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("openai status %d: %s", e.status, e.body)
}

// Extract implements conversation.Extractor. Every failure is returned as a
// *notes.ExtractionError.
func (c *OpenAIClient) Extract(ctx context.Context, step conversation.StepID, answer string, current notes.Fields) (notes.Fields, error) {
	fail := func(reason string, err error) (notes.Fields, error) {
		xe := &notes.ExtractionError{Step: string(step), Reason: reason, Err: err}
		var ae *apiError
		if errors.As(err, &ae) {
			xe.StatusCode = ae.status
		}
		return notes.Fields{}, xe
	}

	userPrompt, err := BuildStepPrompt(string(step), answer, current)
	if err != nil {
		return fail("プロンプトを作成できませんでした", err)
	}

	text, err := c.complete(ctx, extractionSystemPrompt, userPrompt)
	if err != nil {
		return fail("AI の呼び出しに失敗しました", err)
	}

	value, err := jsonschema.UnmarshalJSON(strings.NewReader(stripCodeFence(text)))
	if err != nil {
		return fail("AI の応答が JSON ではありません", err)
	}
	if err := c.schema.Validate(value); err != nil {
		return fail("AI の応答が記録の形式と一致しません", err)
	}

	return notes.Normalize(value), nil
}

// ComposeNarrative rewrites fact lines into one narrative paragraph.
func (c *OpenAIClient) ComposeNarrative(ctx context.Context, destination, facts string) (string, error) {
	text, err := c.complete(ctx, narrativeSystemPrompt, BuildNarrativePrompt(destination, facts))
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(stripCodeFence(text))
	if text == "" {
		return "", errors.New("openai returned an empty narrative")
	}
	return text, nil
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(responsesRequest{
		Model: c.Model,
		Input: []inputMessage{
			{Role: "system", Content: []inputContent{{Type: "input_text", Text: system}}},
			{Role: "user", Content: []inputContent{{Type: "input_text", Text: user}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/responses", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("call openai: %w", err)
	}
	defer res.Body.Close()

	buf, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", &apiError{status: res.StatusCode, body: strings.TrimSpace(string(buf))}
	}

	var parsed responsesResponse
	if err := json.Unmarshal(buf, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if strings.TrimSpace(parsed.OutputText) != "" {
		return parsed.OutputText, nil
	}
	for _, item := range parsed.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, content := range item.Content {
			if (content.Type == "output_text" || content.Type == "text") && content.Text != "" {
				return content.Text, nil
			}
		}
	}
	return "", errors.New("openai response did not contain text")
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
