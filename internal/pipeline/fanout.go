package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sena168/AICENGHUB/internal/config"
)

var errAllRoutesFailed = errors.New("all upstream routes failed")
var errEmptyAssistantResponse = errors.New("empty-assistant-response")

// headerInjectingTransport adds OpenRouter's attribution headers to every
// outbound request, grounded on jinterlante1206-AleutianLocal's
// services/llm/openai_llm.go custom-header client construction.
type headerInjectingTransport struct {
	referer string
	title   string
	base    http.RoundTripper
}

func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// newRouteClient builds a go-openai client pointed at OpenRouter's
// OpenAI-API-compatible chat-completions endpoint for one route.
func newRouteClient(route config.Route, upstream config.UpstreamConfig) *openai.Client {
	cfg := openai.DefaultConfig(route.APIKey)
	cfg.BaseURL = "https://openrouter.ai/api/v1"
	cfg.HTTPClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &headerInjectingTransport{
			referer: upstream.HTTPReferer,
			title:   upstream.AppTitle,
		},
	}
	return openai.NewClientWithConfig(cfg)
}

// FanOutResult is the outcome of a successful model call.
type FanOutResult struct {
	AssistantText string
	RouteLabel    string
}

// FanOut implements spec.md §4.3 step 14: try each configured route in
// order, primary to secondary to tertiary, only attempting a later route
// after the previous one throws.
func FanOut(ctx context.Context, routes []config.Route, upstream config.UpstreamConfig, messages []ChatMessage) (*FanOutResult, error) {
	chatMessages := toOpenAIMessages(messages)

	var lastErr error
	for _, route := range routes {
		client := newRouteClient(route, upstream)
		callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		resp, err := client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:    route.Model,
			Messages: chatMessages,
		})
		cancel()

		if err != nil {
			lastErr = routeError(err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errEmptyAssistantResponse
			continue
		}
		text := resp.Choices[0].Message.Content
		if text == "" {
			lastErr = errEmptyAssistantResponse
			continue
		}
		return &FanOutResult{AssistantText: text, RouteLabel: route.Label}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", errAllRoutesFailed, lastErr)
	}
	return nil, errAllRoutesFailed
}

// routeError translates a go-openai error into the status-specific messages
// from spec.md §4.3 step 14.
func routeError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return errors.New(apiErr.Message)
		}
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.New("invalid key or unauthorized model")
		case http.StatusPaymentRequired:
			return errors.New("insufficient credits to complete this request")
		case http.StatusTooManyRequests:
			return errors.New("provider-rate-limited")
		default:
			return fmt.Errorf("HTTP %d", apiErr.HTTPStatusCode)
		}
	}
	return err
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}
