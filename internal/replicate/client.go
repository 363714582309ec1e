package replicate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"drama-server/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ReasoningEffort values accepted by the prediction input.
const (
	EffortLow    = "low"
	EffortMedium = "medium"
	EffortHigh   = "high"
)

const tokenEncoding = "cl100k_base"

// GenerationInput is one chat-style generation request.
type GenerationInput struct {
	Messages        []domain.Message
	MaxOutputTokens int
	ReasoningEffort string
}

// Generator is the streaming generation contract the agent depends on.
// CreatePrediction and StreamOutput are exposed separately so callers can
// distinguish creation failures, which happen before any byte is streamed,
// from mid-stream ones. onDelta is called once per content delta, in arrival
// order; Generate returns the full accumulated text after the stream closes.
type Generator interface {
	CreatePrediction(ctx context.Context, input GenerationInput) (string, error)
	StreamOutput(ctx context.Context, streamURL string, onDelta func(delta string) error) error
	Generate(ctx context.Context, input GenerationInput, onDelta func(delta string) error) (string, error)
}

var _ Generator = (*Client)(nil)

// Config contains the model backend settings.
type Config struct {
	Token         string
	BaseURL       string
	Model         string
	CreateTimeout time.Duration
	CreateRetries int
	StreamTimeout time.Duration
}

// Client drives the prediction API: a creation call that returns a one-shot
// stream handle, then a decode loop over that handle's event stream. The two
// calls use separate transports: creation is short and retryable, the stream
// read lives for minutes and must not inherit either the creation timeout or
// its retries.
type Client struct {
	create        *resty.Client
	stream        *resty.Client
	model         string
	streamTimeout time.Duration
	encoder       *tiktoken.Tiktoken
	logger        *zap.Logger
}

// NewClient создает новый клиент для model backend.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("model backend token is not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.replicate.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "openai/gpt-5-mini"
	}
	if cfg.CreateTimeout <= 0 {
		cfg.CreateTimeout = 30 * time.Second
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 300 * time.Second
	}

	createClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetAuthToken(cfg.Token).
		SetTimeout(cfg.CreateTimeout).
		SetRetryCount(cfg.CreateRetries).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	// No http.Client.Timeout here: it would also cut off body reads, killing
	// streams longer than the creation budget. The per-call context in
	// StreamOutput is the only limit. The stream handle is one-shot, so the
	// GET is never retried either.
	streamClient := resty.New().
		SetAuthToken(cfg.Token)

	// Token counts are estimates for metrics only; a missing encoding just
	// disables them.
	encoder, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		logger.Warn("token encoding unavailable, token metrics disabled", zap.Error(err))
		encoder = nil
	}

	return &Client{
		create:        createClient,
		stream:        streamClient,
		model:         cfg.Model,
		streamTimeout: cfg.StreamTimeout,
		encoder:       encoder,
		logger:        logger.Named("replicate"),
	}, nil
}

type predictionRequest struct {
	Input  predictionInput `json:"input"`
	Stream bool            `json:"stream"`
}

type predictionInput struct {
	Messages        []domain.Message `json:"messages"`
	MaxOutputTokens int              `json:"max_output_tokens"`
	ReasoningEffort string           `json:"reasoning_effort"`
}

type predictionResponse struct {
	URLs struct {
		Stream string `json:"stream"`
	} `json:"urls"`
}

// CreatePrediction submits the prompt and returns the one-shot stream URL.
func (c *Client) CreatePrediction(ctx context.Context, input GenerationInput) (string, error) {
	body := predictionRequest{
		Input: predictionInput{
			Messages:        input.Messages,
			MaxOutputTokens: orDefault(input.MaxOutputTokens, 1024),
			ReasoningEffort: orDefaultStr(input.ReasoningEffort, EffortMedium),
		},
		Stream: true,
	}

	var created predictionResponse
	resp, err := c.create.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&created).
		Post(fmt.Sprintf("/models/%s/predictions", c.model))
	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: create prediction: %v", domain.ErrUpstream, err)
	}
	if resp.IsError() {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: create prediction: status %d: %s", domain.ErrUpstream, resp.StatusCode(), resp.String())
	}
	if created.URLs.Stream == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: model did not return a stream URL", domain.ErrUpstream)
	}

	return created.URLs.Stream, nil
}

// StreamOutput reads the event stream behind streamURL and feeds content
// deltas to onDelta in arrival order. The body is closed on every exit path.
func (c *Client) StreamOutput(ctx context.Context, streamURL string, onDelta func(delta string) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.streamTimeout)
	defer cancel()

	resp, err := c.stream.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Get(streamURL)
	if err != nil {
		return fmt.Errorf("%w: stream fetch: %v", domain.ErrUpstream, err)
	}

	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: stream fetch: status %d", domain.ErrUpstream, resp.StatusCode())
	}

	return decodeEventStream(body, onDelta)
}

// Generate runs the full create-then-stream sequence and returns the
// accumulated raw text.
func (c *Client) Generate(ctx context.Context, input GenerationInput, onDelta func(delta string) error) (string, error) {
	start := time.Now()

	streamURL, err := c.CreatePrediction(ctx, input)
	if err != nil {
		return "", err
	}

	var full strings.Builder
	err = c.StreamOutput(ctx, streamURL, func(delta string) error {
		full.WriteString(delta)
		if onDelta != nil {
			return onDelta(delta)
		}
		return nil
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": status}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(time.Since(start).Seconds())
	c.observeTokens(input.Messages, full.String())

	if err != nil {
		return full.String(), err
	}
	return full.String(), nil
}

func (c *Client) observeTokens(messages []domain.Message, completion string) {
	if c.encoder == nil {
		return
	}
	prompt := 0
	for _, m := range messages {
		prompt += len(c.encoder.Encode(m.Content, nil, nil))
	}
	aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(prompt))
	aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(len(c.encoder.Encode(completion, nil, nil))))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
