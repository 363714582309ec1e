package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"

	"drama-server/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Engine is the narrative engine contract: resolve the current snapshot, or
// move the engine's persisted position forward.
type Engine interface {
	GetSnapshot(ctx context.Context, storyID string, chapter int, stateVariables map[string]float64, choiceIndex *int) (*domain.NarrativeSnapshot, error)
	Advance(ctx context.Context, storyID string, chapter int, stateVariables map[string]float64) error
}

var _ Engine = (*Adapter)(nil)

// Config contains the narrative engine endpoint settings.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	CacheLimit  int
	ScriptsFrom ScriptLoader
}

// Adapter talks to the external ink runtime over HTTP. It also owns the
// bounded cache of compiled story scripts, used to resolve story metadata
// (genre, title) without a round trip per request.
type Adapter struct {
	http    *resty.Client
	scripts *ScriptCache
	logger  *zap.Logger
}

// NewAdapter создает адаптер narrative engine.
func NewAdapter(cfg Config, logger *zap.Logger) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("narrative engine base URL is not set")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &Adapter{
		http:    httpClient,
		scripts: NewScriptCache(cfg.CacheLimit, cfg.ScriptsFrom),
		logger:  logger.Named("narrative"),
	}, nil
}

type engineRequest struct {
	StoryID        string             `json:"storyId"`
	CurrentChapter int                `json:"currentChapter"`
	StateVariables map[string]float64 `json:"stateVariables"`
	ChoiceIndex    *int               `json:"choiceIndex,omitempty"`
}

type engineResponse struct {
	Text        string             `json:"text"`
	Choices     []domain.Choice    `json:"choices"`
	Tags        []string           `json:"tags"`
	Variables   map[string]float64 `json:"variables"`
	IsEnded     bool               `json:"isEnded"`
	CanContinue bool               `json:"canContinue"`
}

// GetSnapshot asks the engine to resolve an optional pending choice and
// continue to the next decision point. The snapshot is fresh on every call.
func (a *Adapter) GetSnapshot(ctx context.Context, storyID string, chapter int, stateVariables map[string]float64, choiceIndex *int) (*domain.NarrativeSnapshot, error) {
	req := engineRequest{
		StoryID:        storyID,
		CurrentChapter: chapter,
		StateVariables: stateVariables,
		ChoiceIndex:    choiceIndex,
	}

	var out engineResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		Post("/run")
	if err != nil {
		return nil, fmt.Errorf("%w: engine snapshot: %v", domain.ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: engine snapshot: status %d: %s", domain.ErrUpstream, resp.StatusCode(), resp.String())
	}

	return &domain.NarrativeSnapshot{
		Text:        out.Text,
		Choices:     out.Choices,
		Tags:        ParseTags(out.Tags),
		Variables:   out.Variables,
		IsEnded:     out.IsEnded,
		CanContinue: out.CanContinue,
	}, nil
}

// Advance instructs the engine to move its persisted position forward. There
// is no response contract beyond success or failure, and a failure here never
// rolls back state already written by the caller.
func (a *Adapter) Advance(ctx context.Context, storyID string, chapter int, stateVariables map[string]float64) error {
	req := engineRequest{
		StoryID:        storyID,
		CurrentChapter: chapter,
		StateVariables: stateVariables,
	}

	resp, err := a.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/advance")
	if err != nil {
		return fmt.Errorf("%w: engine advance: %v", domain.ErrUpstream, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: engine advance: status %d: %s", domain.ErrUpstream, resp.StatusCode(), resp.String())
	}
	return nil
}

// Script returns the story's compiled script record, served from the cache
// when present.
func (a *Adapter) Script(ctx context.Context, storyID string) (*domain.StoryScript, error) {
	return a.scripts.Get(ctx, storyID)
}
