package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"npcchat/internal/config"
	"npcchat/internal/logger"
	"npcchat/internal/metrics"
	"npcchat/internal/provider"
)

const (
	contentTypeJSON = "application/json"

	// Per-exchange limits: the connect timeout guards dialing, the client
	// timeout bounds the whole exchange including the response read.
	connectTimeout = 10 * time.Second
	totalTimeout   = 30 * time.Second

	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second

	maxErrorBodyBytes = 64 * 1024
)

// Provider performs single chat-completion exchanges against an
// OpenRouter-compatible endpoint. The configuration is read-only for the
// provider's lifetime and safe to share across concurrent queries.
type Provider struct {
	cfg    config.OpenRouterConfig
	client *http.Client
}

// New creates a provider from static configuration. A nil client gets the
// default tuned transport.
func New(cfg config.OpenRouterConfig, client *http.Client) *Provider {
	if client == nil {
		client = NewHTTPClient()
	}
	return &Provider{
		cfg:    cfg,
		client: client,
	}
}

// NewHTTPClient builds the outbound client with connection reuse and the
// exchange timeouts applied.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connectTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   totalTimeout,
		Transport: transport,
	}
}

// Query runs one blocking exchange and always returns a reply string.
// Every failure path collapses to one of the fixed provider.Msg replies;
// the underlying detail only ever reaches the debug log.
func (p *Provider) Query(ctx context.Context, prompt string) string {
	if p.cfg.APIKey == "" {
		logger.Debugf("openrouter: API key not configured")
		return provider.MsgNotConfigured
	}

	start := time.Now()
	reply, outcome := p.exchange(ctx, prompt)
	metrics.ObserveExchange(outcome, time.Since(start))
	return reply
}

func (p *Provider) exchange(ctx context.Context, prompt string) (string, string) {
	payload := p.buildPayload(prompt)

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Debugf("openrouter: failed to construct request: %v", err)
		return provider.MsgRequestFailed, metrics.OutcomeRequestFailed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		logger.Debugf("openrouter: failed to construct request: %v", err)
		return provider.MsgRequestFailed, metrics.OutcomeRequestFailed
	}

	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", contentTypeJSON)
	if p.cfg.SiteURL != "" {
		req.Header.Set("HTTP-Referer", p.cfg.SiteURL)
	}
	if p.cfg.SiteName != "" {
		req.Header.Set("X-Title", p.cfg.SiteName)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Debugf("openrouter: failed to reach endpoint: %v", err)
		return provider.MsgUnreachable, metrics.OutcomeUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		logger.Debugf("openrouter: %v", classifyStatus(resp))
		return provider.MsgServiceError, metrics.OutcomeServiceError
	}

	content, err := extractContent(resp.Body)
	if err != nil {
		logger.Debugf("openrouter: %v", err)
		return provider.MsgParseFailed, metrics.OutcomeParseFailed
	}
	if apiErr := content.err; apiErr != "" {
		logger.Debugf("openrouter: endpoint reported error: %s", apiErr)
		return provider.MsgServiceError, metrics.OutcomeServiceError
	}
	if content.text == "" {
		logger.Debugf("openrouter: no content extracted from response")
		return provider.MsgNoContent, metrics.OutcomeEmpty
	}

	logger.Debugf("openrouter: parsed reply: %s", content.text)
	return content.text, metrics.OutcomeSuccess
}

type chatPayload struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	TopK        *int      `json:"top_k,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Seed        *int      `json:"seed,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildPayload assembles the chat-completion request. Sampling parameters
// are included only when they differ from OpenRouter's documented
// defaults; streaming is always disabled.
func (p *Provider) buildPayload(prompt string) chatPayload {
	messages := make([]message, 0, 2)
	if p.cfg.SystemPrompt != "" {
		messages = append(messages, message{Role: "system", Content: p.cfg.SystemPrompt})
	}
	messages = append(messages, message{Role: "user", Content: prompt})

	payload := chatPayload{
		Model:    p.cfg.Model,
		Messages: messages,
		Stream:   false,
	}

	if p.cfg.Temperature != config.DefaultTemperature {
		v := p.cfg.Temperature
		payload.Temperature = &v
	}
	if p.cfg.TopP != config.DefaultTopP {
		v := p.cfg.TopP
		payload.TopP = &v
	}
	if p.cfg.TopK > 0 {
		v := p.cfg.TopK
		payload.TopK = &v
	}
	if p.cfg.MaxTokens > 0 {
		v := p.cfg.MaxTokens
		payload.MaxTokens = &v
	}
	if p.cfg.Seed != "" {
		if seed, err := strconv.Atoi(p.cfg.Seed); err == nil {
			payload.Seed = &seed
		} else {
			// Unparsable seeds are dropped rather than failing the query.
			logger.Debugf("openrouter: invalid seed value, ignoring: %s", p.cfg.Seed)
		}
	}

	return payload
}

func classifyStatus(resp *http.Response) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if readErr != nil {
		return fmt.Errorf("HTTP error %d and failed to read body: %w", resp.StatusCode, readErr)
	}
	detail := strings.TrimSpace(string(body))

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("bad request: invalid parameters - %s", detail)
	case http.StatusUnauthorized:
		return fmt.Errorf("unauthorized: invalid API key - %s", detail)
	case http.StatusPaymentRequired:
		return fmt.Errorf("payment required: account issue - %s", detail)
	case http.StatusTooManyRequests:
		return fmt.Errorf("rate limited: too many requests - %s", detail)
	default:
		return fmt.Errorf("HTTP error %d - %s", resp.StatusCode, detail)
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type extracted struct {
	text string
	err  string
}

// extractContent decodes a success body and pulls out the first choice's
// message content, or the embedded error message when the endpoint
// reports one inside a 2xx response.
func extractContent(r io.Reader) (extracted, error) {
	var resp chatResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return extracted{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Error != nil {
		msg := resp.Error.Message
		if msg == "" {
			msg = "API error"
		}
		return extracted{err: msg}, nil
	}

	if len(resp.Choices) == 0 {
		return extracted{}, nil
	}
	return extracted{text: resp.Choices[0].Message.Content}, nil
}

var _ provider.Querier = (*Provider)(nil)
