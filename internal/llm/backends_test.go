package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextGenClient_Generate(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody textGenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = w.Write([]byte(`[{"generated_text":" 4 "}]`))
	}))
	defer srv.Close()

	c := NewTextGen(srv.URL+"/", "hf_token", ParseModelRef("org/model:rev"), 256)
	resp, err := c.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "2+2?"},
	})
	require.NoError(t, err)
	assert.Equal(t, " 4 ", resp.Content)
	assert.Equal(t, "/models/org/model", gotPath)
	assert.Equal(t, "Bearer hf_token", gotAuth)
	assert.Equal(t, 256, gotBody.Parameters.MaxNewTokens)
	assert.True(t, strings.HasPrefix(gotBody.Inputs, "be brief\n\nuser: 2+2?"))
	assert.True(t, strings.HasSuffix(gotBody.Inputs, "assistant:"))
}

func TestGateway_NullFieldsFallThrough(t *testing.T) {
	bodies := []string{
		`[{"generated_text":null,"text":"hello"}]`,
		`{"choices":[{"message":{"content":null},"text":"hello"}]}`,
	}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		gw := NewGateway(NewTextGen(srv.URL, "", ParseModelRef("org/model"), 0), GatewayOptions{})
		resp, err := gw.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
		srv.Close()
		require.NoError(t, err, body)
		assert.Equal(t, "hello", resp.Content, body)
	}
}

func TestTextGenClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model org/model is currently loading"}`))
	}))
	defer srv.Close()

	c := NewTextGen(srv.URL, "", ParseModelRef("org/model"), 0)
	_, err := c.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "currently loading")
}

func TestOpenAIClient_Generate(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"m-served","choices":[{"index":0,"message":{"role":"assistant","content":"привет"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	}))
	defer srv.Close()

	c := NewOpenAI("key", srv.URL+"/v1", ParseModelRef("org/model:novita"), 128)
	resp, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "привет", resp.Content)
	assert.Equal(t, "m-served", resp.Model)
	assert.Equal(t, 5, resp.TotalTokens)
	assert.Equal(t, "org/model:novita", gotModel)
}
