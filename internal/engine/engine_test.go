package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandEngine_CapturesStdout(t *testing.T) {
	eng := NewCommandEngine(CommandOptions{
		Path: "sh",
		Args: []string{"-c", `echo '{"reasoning": "ok"}'`},
	})
	out, err := eng.Invoke(context.Background(), Prompt{})
	require.NoError(t, err)
	assert.Equal(t, "{\"reasoning\": \"ok\"}\n", out)
}

func TestCommandEngine_PipesPromptToStdin(t *testing.T) {
	eng := NewCommandEngine(CommandOptions{
		Path: "sh",
		Args: []string{"-c", "cat"},
	})
	out, err := eng.Invoke(context.Background(), Prompt{User: "market context"})
	require.NoError(t, err)
	assert.Equal(t, "market context", out)
}

func TestCommandEngine_FailureCarriesExitAndStderr(t *testing.T) {
	eng := NewCommandEngine(CommandOptions{
		Path: "sh",
		Args: []string{"-c", "echo 'model load failed' >&2; exit 3"},
	})
	_, err := eng.Invoke(context.Background(), Prompt{})
	require.Error(t, err)

	var ierr *InvokeError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, 3, ierr.ExitCode)
	assert.Contains(t, ierr.Stderr, "model load failed")
	assert.Contains(t, ierr.Error(), "exit 3")
}

func TestCommandEngine_Timeout(t *testing.T) {
	eng := NewCommandEngine(CommandOptions{
		Path:    "sh",
		Args:    []string{"-c", "sleep 5"},
		Timeout: 50 * time.Millisecond,
	})
	_, err := eng.Invoke(context.Background(), Prompt{})
	require.Error(t, err)

	var ierr *InvokeError
	require.True(t, errors.As(err, &ierr))
	assert.ErrorIs(t, ierr.Err, context.DeadlineExceeded)
}

func TestOpenAIEngine_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test-1234", r.Header.Get("Authorization"))
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "{\"reasoning\": \"hold\"}"}}]}`))
	}))
	defer srv.Close()

	eng := NewOpenAIEngine(OpenAIOptions{
		BaseURL: srv.URL,
		APIKey:  "sk-test-1234",
		Model:   "gpt-test",
	})
	out, err := eng.Invoke(context.Background(), Prompt{System: "rules", User: "context"})
	require.NoError(t, err)
	assert.Equal(t, `{"reasoning": "hold"}`, out)
	assert.Equal(t, 2, calls)
}

func TestOpenAIEngine_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key"}}`))
	}))
	defer srv.Close()

	eng := NewOpenAIEngine(OpenAIOptions{BaseURL: srv.URL, Model: "gpt-test"})
	_, err := eng.Invoke(context.Background(), Prompt{User: "context"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
	assert.Equal(t, 1, calls)
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.openai.com/v1", normalizeBaseURL(""))
	assert.Equal(t, "https://gw.example.com/v1", normalizeBaseURL("https://gw.example.com/v1/"))
	assert.Equal(t, "https://gw.example.com/v1", normalizeBaseURL("https://gw.example.com/v1/chat/completions"))
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", maskKey(""))
	assert.Equal(t, "****", maskKey("abcd"))
	assert.True(t, strings.HasSuffix(maskKey("sk-test-9876"), "9876"))
}
