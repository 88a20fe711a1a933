package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TextGenClient calls a plain text-generation endpoint ({base}/models/{name})
// with a flattened prompt. The revision part of the model reference is not
// sent; this endpoint always serves the default revision.
type TextGenClient struct {
	BaseURL   string
	APIKey    string
	Model     ModelRef
	MaxTokens int
	HTTP      *http.Client
}

func NewTextGen(baseURL, apiKey string, model ModelRef, maxTokens int) *TextGenClient {
	return &TextGenClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		APIKey:    apiKey,
		Model:     model,
		MaxTokens: maxTokens,
		HTTP:      &http.Client{Timeout: 120 * time.Second},
	}
}

type textGenRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters textGenParams  `json:"parameters"`
	Options    map[string]any `json:"options,omitempty"`
}

type textGenParams struct {
	MaxNewTokens   int  `json:"max_new_tokens,omitempty"`
	ReturnFullText bool `json:"return_full_text"`
}

func (c *TextGenClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	body, err := json.Marshal(textGenRequest{
		Inputs:     FlattenPrompt(messages),
		Parameters: textGenParams{MaxNewTokens: c.MaxTokens},
		Options:    map[string]any{"wait_for_model": true},
	})
	if err != nil {
		return Response{}, err
	}

	endpoint := c.BaseURL + "/models/" + escapeModelPath(c.Model.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var obj map[string]json.RawMessage
		if json.Unmarshal(raw, &obj) == nil {
			if msg, ok := upstreamError(obj); ok {
				return Response{}, fmt.Errorf("textgen http %d: %s", resp.StatusCode, msg)
			}
		}
		return Response{}, fmt.Errorf("textgen http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	r, err := decodeReply(raw)
	if err != nil {
		return Response{}, err
	}
	return Response{Content: r.text(), Model: c.Model.Name}, nil
}

// FlattenPrompt renders a chat message list as a single completion prompt.
func FlattenPrompt(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		if m.Role == RoleSystem {
			b.WriteString(m.Content)
		} else {
			b.WriteString(m.Role)
			b.WriteString(": ")
			b.WriteString(m.Content)
		}
		b.WriteString("\n\n")
	}
	b.WriteString(RoleAssistant + ":")
	return b.String()
}

func escapeModelPath(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
