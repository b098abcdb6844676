package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradewatch/internal/logger"
)

// OpenAIEngine calls an OpenAI-compatible chat completions endpoint
// (/v1/chat/completions) and returns the assistant content as the raw
// decision text. Works against OpenAI, DeepSeek and Qwen style gateways.
type OpenAIEngine struct {
	name        string
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxRetries  int
	httpc       *http.Client
}

type OpenAIOptions struct {
	Name        string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxRetries  int
	Timeout     time.Duration
}

func NewOpenAIEngine(opts OpenAIOptions) *OpenAIEngine {
	name := opts.Name
	if name == "" {
		name = "openai-chat"
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = 2
	}
	temp := opts.Temperature
	if temp == 0 {
		temp = 0.5
	}
	return &OpenAIEngine{
		name:        name,
		baseURL:     normalizeBaseURL(opts.BaseURL),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: temp,
		maxRetries:  retries,
		httpc:       &http.Client{Timeout: timeout},
	}
}

func (e *OpenAIEngine) Name() string { return e.name }

func (e *OpenAIEngine) Invoke(ctx context.Context, p Prompt) (string, error) {
	messages := []map[string]string{}
	if p.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": p.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": p.User})
	body, _ := json.Marshal(map[string]any{
		"model":       e.model,
		"messages":    messages,
		"temperature": e.temperature,
	})

	url := e.baseURL + "/chat/completions"
	logger.Debugf("[engine][%s] POST %s model=%s key=%s", e.name, url, e.model, maskKey(e.apiKey))

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", &InvokeError{Engine: e.name, ExitCode: -1, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		if e.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+e.apiKey)
		}

		resp, err := e.httpc.Do(req)
		if err != nil {
			return "", &InvokeError{Engine: e.name, ExitCode: -1, Err: err}
		}
		if resp.StatusCode/100 == 2 {
			var r struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			derr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if derr != nil {
				return "", &InvokeError{Engine: e.name, ExitCode: -1, Err: derr}
			}
			if len(r.Choices) == 0 {
				return "", &InvokeError{Engine: e.name, ExitCode: -1, Err: fmt.Errorf("empty choices")}
			}
			return r.Choices[0].Message.Content, nil
		}

		var eresp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		retryAfter := resp.Header.Get("Retry-After")
		resp.Body.Close()

		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
		if !retryableStatus(resp.StatusCode) || attempt == e.maxRetries {
			break
		}
		wait := backoffDelay(attempt, retryAfter)
		logger.Warnf("[engine][%s] %v, retrying in %s", e.name, lastErr, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", &InvokeError{Engine: e.name, ExitCode: -1, Err: ctx.Err()}
		}
	}
	return "", &InvokeError{Engine: e.name, ExitCode: -1, Err: lastErr}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoffDelay honors Retry-After when present, otherwise backs off
// exponentially from 800ms with an 8s cap.
func backoffDelay(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	wait := 800 * time.Millisecond << attempt
	if wait > 8*time.Second {
		wait = 8 * time.Second
	}
	return wait
}

func normalizeBaseURL(url string) string {
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimRight(url, "/")
	// Tolerate configs that include the full completions path.
	url = strings.TrimSuffix(url, "/chat/completions")
	return url
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
