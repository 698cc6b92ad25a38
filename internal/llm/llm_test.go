package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/aide/config"
)

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":                 `{"a":1}`,
		`Sure! {"a":{"b":2}} and {"c":3}`:          `{"a":{"b":2}}`,
		`{"text":"has } brace","n":1} trailing`:    `{"text":"has } brace","n":1}`,
		`no json here`:                             ``,
		`{"unterminated": true`:                    ``,
	}
	for in, want := range cases {
		assert.Equal(t, want, ExtractJSON(in), in)
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Operation string `json:"operation"`
	}
	require.NoError(t, DecodeJSON("result: {\"operation\":\"create\"}", &v))
	assert.Equal(t, "create", v.Operation)
	assert.Error(t, DecodeJSON("nothing", &v))
}

func TestNewDisabledWithoutKey(t *testing.T) {
	assert.Nil(t, New(config.LLMConfig{}))
}

func TestOpenAIComplete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"  hello  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := New(config.LLMConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "m"})
	require.NotNil(t, c)
	out, err := c.Complete(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "m", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "say hello", got.Messages[1].Content)
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	c := New(config.LLMConfig{APIKey: "k", BaseURL: srv.URL + "/v1"})
	_, err := c.Complete(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}
