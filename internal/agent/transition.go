package agent

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"drama-server/internal/domain"
	"drama-server/internal/narrative"
	"drama-server/internal/repository"
)

// Transition applies a judged decision to a session: the message pair, the
// situation log entry, the merged state variables and, when granted, the
// chapter advance. The writes are independent and each is idempotent under
// the (session, turn) key, so a crashed turn can be replayed safely.
type Transition struct {
	repo   repository.SessionRepository
	engine narrative.Engine
	logger *zap.Logger
}

// NewTransition создает переходник состояния поверх репозитория и движка.
func NewTransition(repo repository.SessionRepository, engine narrative.Engine, logger *zap.Logger) *Transition {
	return &Transition{
		repo:   repo,
		engine: engine,
		logger: logger.Named("Transition"),
	}
}

// Apply mutates state in memory and persists the turn's effects. It always
// returns the updated state; write failures are joined into the returned
// error but never undo the in-memory mutation.
func (t *Transition) Apply(ctx context.Context, state *domain.AgentState, decision domain.Decision, userInput, generatedText string) (*domain.AgentState, error) {
	var errs []error

	if err := t.repo.InsertMessage(ctx, state.SessionID, state.TurnSeq, "user", userInput); err != nil {
		errs = append(errs, fmt.Errorf("сохранение сообщения игрока: %w", err))
	}
	if err := t.repo.InsertMessage(ctx, state.SessionID, state.TurnSeq, "assistant", generatedText); err != nil {
		errs = append(errs, fmt.Errorf("сохранение сообщения рассказчика: %w", err))
	}
	state.ConversationHistory = append(state.ConversationHistory,
		domain.Message{Role: "user", Content: userInput},
		domain.Message{Role: "assistant", Content: generatedText},
	)

	if decision.SituationUpdate != nil {
		entry := domain.SituationStateLogEntry{
			SessionID:   state.SessionID,
			SituationID: decision.SituationUpdate.Situation,
			Score:       decision.SituationUpdate.Score,
			Rationale:   decision.SituationUpdate.Rationale,
		}
		if err := t.repo.AppendSituationLog(ctx, entry, state.TurnSeq); err != nil {
			errs = append(errs, fmt.Errorf("запись журнала ситуаций: %w", err))
		}
	}

	if len(decision.StateChanges) > 0 {
		if state.StateVariables == nil {
			state.StateVariables = make(map[string]float64, len(decision.StateChanges))
		}
		// Shallow merge: judged keys overwrite, untouched keys survive.
		for k, v := range decision.StateChanges {
			state.StateVariables[k] = v
		}
		if err := t.repo.UpsertStateVariables(ctx, state.SessionID, state.StateVariables); err != nil {
			errs = append(errs, fmt.Errorf("сохранение переменных состояния: %w", err))
		}
	}

	if decision.ShouldAdvanceChapter {
		state.CurrentChapter++
		if err := t.repo.UpdateChapter(ctx, state.SessionID, state.CurrentChapter); err != nil {
			errs = append(errs, fmt.Errorf("сохранение номера главы: %w", err))
		}
		if err := t.engine.Advance(ctx, state.StoryID, state.CurrentChapter, state.StateVariables); err != nil {
			// The engine call is best effort: chapter state already moved
			// forward and stays moved.
			t.logger.Warn("движок не подтвердил переход главы",
				zap.String("session_id", state.SessionID.String()),
				zap.Int("chapter", state.CurrentChapter),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("переход движка на следующую главу: %w", err))
		}
	}

	return state, errors.Join(errs...)
}
