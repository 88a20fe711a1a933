package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// reply is a decoded provider answer; each upstream shape has its own type.
// decodeReply and chatCompletionReply are the only places that inspect shapes.
type reply interface {
	text() string
}

// plainReply is a bare JSON string.
type plainReply string

// generatedReply is {"generated_text": ...} alone or as the first list element.
type generatedReply struct {
	Text string
}

// chatReply is choices[0].message.content, as a string or typed parts.
type chatReply struct {
	Parts []contentPart
}

// rawReply is anything else, rendered as-is.
type rawReply string

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (r plainReply) text() string     { return string(r) }
func (r generatedReply) text() string { return r.Text }
func (r rawReply) text() string       { return string(r) }

// Non-text parts (images, audio) are dropped.
func (r chatReply) text() string {
	var b strings.Builder
	for _, p := range r.Parts {
		if p.Type != "" && p.Type != string(openai.ChatMessagePartTypeText) {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

var listTextFields = []string{"generated_text", "text", "content"}

// decodeReply turns a raw provider body into a reply. Unknown shapes fall back
// to rawReply; only an explicit upstream error object or an empty body fail.
func decodeReply(raw []byte) (reply, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrEmptyReply
	}

	var s string
	if isNull(raw) {
		return rawReply(raw), nil
	}
	if err := json.Unmarshal(raw, &s); err == nil {
		return plainReply(s), nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return nil, ErrEmptyReply
		}
		if !isNull(list[0]) {
			if err := json.Unmarshal(list[0], &s); err == nil {
				return plainReply(s), nil
			}
		}
		var first map[string]json.RawMessage
		if err := json.Unmarshal(list[0], &first); err == nil {
			for _, f := range listTextFields {
				if v, ok := stringField(first, f); ok && v != "" {
					return generatedReply{Text: v}, nil
				}
			}
		}
		return rawReply(raw), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return rawReply(raw), nil
	}
	if msg, ok := upstreamError(obj); ok {
		return nil, fmt.Errorf("upstream error: %s", msg)
	}
	if v, ok := stringField(obj, "generated_text"); ok && v != "" {
		return generatedReply{Text: v}, nil
	}
	if choicesRaw, ok := obj["choices"]; ok {
		if r, ok := decodeChoices(choicesRaw); ok {
			return r, nil
		}
	}
	return rawReply(raw), nil
}

func decodeChoices(raw json.RawMessage) (reply, bool) {
	var choices []struct {
		Message *struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(raw, &choices); err != nil || len(choices) == 0 {
		return nil, false
	}
	c := choices[0]
	if c.Message != nil && len(c.Message.Content) > 0 && !isNull(c.Message.Content) {
		var r chatReply
		var s string
		var parts []contentPart
		if err := json.Unmarshal(c.Message.Content, &s); err == nil {
			r = chatReply{Parts: []contentPart{{Type: "text", Text: s}}}
		} else if err := json.Unmarshal(c.Message.Content, &parts); err == nil {
			r = chatReply{Parts: parts}
		}
		if r.text() != "" {
			return r, true
		}
	}
	if c.Text != nil && *c.Text != "" {
		return plainReply(*c.Text), true
	}
	return nil, false
}

// chatCompletionReply adapts an already typed OpenAI-compatible response.
func chatCompletionReply(resp openai.ChatCompletionResponse) (reply, error) {
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyReply
	}
	msg := resp.Choices[0].Message
	if len(msg.MultiContent) > 0 {
		parts := make([]contentPart, 0, len(msg.MultiContent))
		for _, p := range msg.MultiContent {
			parts = append(parts, contentPart{Type: string(p.Type), Text: p.Text})
		}
		return chatReply{Parts: parts}, nil
	}
	return chatReply{Parts: []contentPart{{Type: "text", Text: msg.Content}}}, nil
}

func stringField(obj map[string]json.RawMessage, name string) (string, bool) {
	v, ok := obj[name]
	if !ok || isNull(v) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

func upstreamError(obj map[string]json.RawMessage) (string, bool) {
	v, ok := obj["error"]
	if !ok || isNull(v) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, s != ""
	}
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(v, &e); err == nil && e.Message != "" {
		return e.Message, true
	}
	return string(v), true
}

// isNull reports a JSON null, which json.Unmarshal accepts into a string as "".
func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}

var ErrEmptyReply = errors.New("empty reply")
