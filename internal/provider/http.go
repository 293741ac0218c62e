// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// azureAPIVersion pins the chat-completions API revision for Azure endpoints.
const azureAPIVersion = "2024-06-01"

// HTTPProvider talks to an OpenAI-compatible chat-completions endpoint. The
// groq, azure and openai backends all speak this dialect; azure differs only
// in URL layout and auth header.
type HTTPProvider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	azure   bool
	client  *http.Client
}

func NewHTTPProvider(name, baseURL, apiKey, model string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTPProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		azure:   strings.EqualFold(name, "azure"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Name() string {
	return p.name
}

func (p *HTTPProvider) Configured() bool {
	return p.apiKey != "" && p.baseURL != "" && p.model != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *HTTPProvider) Complete(ctx context.Context, systemPrompt, userMessage string) (Completion, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
	})
	if err != nil {
		return Completion{}, fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.azure {
		req.Header.Set("api-key", p.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Completion{}, fmt.Errorf("%w: %s: %v", ErrTimeout, p.name, err)
		}
		return Completion{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, p.name, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return Completion{}, fmt.Errorf("%w: %s returned 429", ErrRateLimited, p.name)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Completion{}, fmt.Errorf("%w: %s returned %d", ErrUnauthorized, p.name, resp.StatusCode)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return Completion{}, fmt.Errorf("%w: %s returned %d", ErrTimeout, p.name, resp.StatusCode)
	default:
		return Completion{}, fmt.Errorf("%w: %s returned %d", ErrUnavailable, p.name, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Completion{}, fmt.Errorf("%w: %s: decode response: %v", ErrUnavailable, p.name, err)
	}
	if len(parsed.Choices) == 0 {
		return Completion{}, fmt.Errorf("%w: %s: empty choices", ErrUnavailable, p.name)
	}

	model := parsed.Model
	if model == "" {
		model = p.model
	}

	return Completion{
		Text:     parsed.Choices[0].Message.Content,
		Provider: p.name,
		Model:    model,
	}, nil
}

func (p *HTTPProvider) endpoint() string {
	if p.azure {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			p.baseURL, p.model, azureAPIVersion)
	}
	return p.baseURL + "/chat/completions"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
