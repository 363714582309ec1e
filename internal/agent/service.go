// Package agent runs the per-turn decision pipeline: narrative snapshot,
// memory retrieval, streamed story generation, judgment and state transition.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"drama-server/internal/domain"
	"drama-server/internal/genre"
	"drama-server/internal/memory"
	"drama-server/internal/narrative"
	"drama-server/internal/normalizer"
	"drama-server/internal/replicate"
	"drama-server/internal/repository"
)

const generationMaxTokens = 1024

// EventSink receives the client-facing stream events. *normalizer.Emitter is
// the production implementation.
type EventSink interface {
	Delta(text string) error
	Final(text string) error
	Error(err error) error
	Done() error
}

var _ EventSink = (*normalizer.Emitter)(nil)

// ScriptSource resolves story metadata for prompt building.
type ScriptSource interface {
	Script(ctx context.Context, storyID string) (*domain.StoryScript, error)
}

// Request is one turn of the story pipeline. A nil SessionID selects the
// stateless mode: generation and normalization only, no persistence and no
// judgment.
type Request struct {
	Messages    []domain.Message
	SessionID   *uuid.UUID
	UserID      string
	ChoiceIndex *int
	Profile     genre.Profile
}

// Service wires the pipeline stages together.
type Service struct {
	repo       repository.SessionRepository
	locker     repository.SessionLocker
	engine     narrative.Engine
	scripts    ScriptSource
	memories   *memory.Retriever
	generator  replicate.Generator
	judge      *Judge
	transition *Transition
	logger     *zap.Logger
}

// NewService создает сервис пайплайна принятия решений.
func NewService(
	repo repository.SessionRepository,
	locker repository.SessionLocker,
	engine narrative.Engine,
	scripts ScriptSource,
	generator replicate.Generator,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:       repo,
		locker:     locker,
		engine:     engine,
		scripts:    scripts,
		memories:   memory.NewRetriever(repo, logger),
		generator:  generator,
		judge:      NewJudge(generator, logger),
		transition: NewTransition(repo, engine, logger),
		logger:     logger.Named("AgentService"),
	}
}

// Run is a prepared turn: the prediction exists upstream and the stream URL
// is ready, but no byte has been sent to the client yet.
type Run struct {
	svc       *Service
	profile   genre.Profile
	streamURL string
	userInput string

	// nil in stateless mode
	state   *domain.AgentState
	release func()
}

// Prepare validates the request, resolves session context and submits the
// prediction. Every error it returns happens before the client stream opens,
// so the caller can still answer with a plain failure response.
func (s *Service) Prepare(ctx context.Context, req Request) (*Run, error) {
	userInput, err := lastUserInput(req.Messages)
	if err != nil {
		return nil, err
	}

	if req.SessionID == nil {
		return s.prepareStateless(ctx, req)
	}

	release, err := s.locker.Acquire(ctx, *req.SessionID)
	if err != nil {
		return nil, err
	}

	run, err := s.prepareSession(ctx, req, *req.SessionID, userInput)
	if err != nil {
		release()
		return nil, err
	}
	run.release = release
	return run, nil
}

func (s *Service) prepareStateless(ctx context.Context, req Request) (*Run, error) {
	messages := make([]domain.Message, 0, len(req.Messages)+1)
	messages = append(messages, domain.Message{Role: "system", Content: req.Profile.SystemPrompt})
	messages = append(messages, req.Messages...)

	streamURL, err := s.generator.CreatePrediction(ctx, replicate.GenerationInput{
		Messages:        messages,
		MaxOutputTokens: generationMaxTokens,
		ReasoningEffort: replicate.EffortMedium,
	})
	if err != nil {
		return nil, err
	}

	return &Run{svc: s, profile: req.Profile, streamURL: streamURL}, nil
}

func (s *Service) prepareSession(ctx context.Context, req Request, sessionID uuid.UUID, userInput string) (*Run, error) {
	state, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var script *domain.StoryScript
	if s.scripts != nil {
		script, err = s.scripts.Script(ctx, state.StoryID)
		if err != nil {
			// Prompt building degrades to the story id; the turn proceeds.
			s.logger.Warn("не удалось загрузить сценарий истории",
				zap.String("story_id", state.StoryID),
				zap.Error(err))
			script = nil
		}
	}

	snapshot, err := s.engine.GetSnapshot(ctx, state.StoryID, state.CurrentChapter, state.StateVariables, req.ChoiceIndex)
	if err != nil {
		return nil, err
	}

	memories := s.memories.Retrieve(ctx, sessionID, userInput, memory.DefaultLimit)

	turnSeq, err := s.repo.AdvanceTurn(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("выделение номера хода: %w", err)
	}
	state.TurnSeq = turnSeq

	// Persist the player's input before the long generation; the transition
	// replays the same insert as a no-op.
	if err := s.repo.InsertMessage(ctx, sessionID, turnSeq, "user", userInput); err != nil {
		s.logger.Warn("не удалось заранее сохранить сообщение игрока",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
	}

	systemPrompt := buildNarratorPrompt(req.Profile, state, script, snapshot, memories)
	streamURL, err := s.generator.CreatePrediction(ctx, replicate.GenerationInput{
		Messages:        buildGenerationMessages(systemPrompt, state, userInput),
		MaxOutputTokens: generationMaxTokens,
		ReasoningEffort: replicate.EffortMedium,
	})
	if err != nil {
		return nil, err
	}

	return &Run{
		svc:       s,
		profile:   req.Profile,
		streamURL: streamURL,
		userInput: userInput,
		state:     state,
	}, nil
}

// Stream drives the prepared turn to completion against sink. After this
// point every failure is reported in-band: deltas already sent to the client
// cannot be taken back.
func (r *Run) Stream(ctx context.Context, sink EventSink) error {
	if r.release != nil {
		defer r.release()
	}

	var full strings.Builder
	err := r.svc.generator.StreamOutput(ctx, r.streamURL, func(delta string) error {
		full.WriteString(delta)
		return sink.Delta(delta)
	})
	if err != nil {
		r.svc.logger.Error("поток генерации прерван", zap.Error(err))
		return sink.Error(err)
	}

	raw := full.String()
	normalized := normalizer.EnsureTemplate(r.profile, raw)
	if err := sink.Final(normalized); err != nil {
		return err
	}

	if r.state != nil {
		r.completeTurn(ctx, raw, normalized)
	}

	return sink.Done()
}

// completeTurn runs judgment and the state transition. Neither may abort the
// stream: the client already holds the generated text.
func (r *Run) completeTurn(ctx context.Context, raw, normalized string) {
	decision := r.svc.judge.Evaluate(ctx, r.state, raw)

	if _, err := r.svc.transition.Apply(ctx, r.state, decision, r.userInput, normalized); err != nil {
		r.svc.logger.Error("часть записей хода не сохранилась",
			zap.String("session_id", r.state.SessionID.String()),
			zap.Int("turn_seq", r.state.TurnSeq),
			zap.Error(err))
	}

	if decision.ShouldEndStory {
		r.svc.logger.Info("история завершена по вердикту судьи",
			zap.String("session_id", r.state.SessionID.String()))
	}
}

// lastUserInput returns the newest user message's content.
func lastUserInput(messages []domain.Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "user" {
			continue
		}
		if strings.TrimSpace(messages[i].Content) == "" {
			break
		}
		return messages[i].Content, nil
	}
	return "", fmt.Errorf("%w: request has no user message", domain.ErrValidation)
}
