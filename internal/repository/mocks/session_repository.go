// Code generated manually in the style of mockery. Adjust alongside the
// SessionRepository interface.
package mocks

import (
	"context"

	"drama-server/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// SessionRepository is a mock for repository.SessionRepository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) CreateSession(ctx context.Context, userID, storyID string) (*domain.AgentState, error) {
	args := m.Called(ctx, userID, storyID)
	if state := args.Get(0); state != nil {
		return state.(*domain.AgentState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.AgentState, error) {
	args := m.Called(ctx, sessionID)
	if state := args.Get(0); state != nil {
		return state.(*domain.AgentState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) AdvanceTurn(ctx context.Context, sessionID uuid.UUID) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *SessionRepository) InsertMessage(ctx context.Context, sessionID uuid.UUID, turnSeq int, role, content string) error {
	args := m.Called(ctx, sessionID, turnSeq, role, content)
	return args.Error(0)
}

func (m *SessionRepository) AppendSituationLog(ctx context.Context, entry domain.SituationStateLogEntry, turnSeq int) error {
	args := m.Called(ctx, entry, turnSeq)
	return args.Error(0)
}

func (m *SessionRepository) UpsertStateVariables(ctx context.Context, sessionID uuid.UUID, vars map[string]float64) error {
	args := m.Called(ctx, sessionID, vars)
	return args.Error(0)
}

func (m *SessionRepository) UpdateChapter(ctx context.Context, sessionID uuid.UUID, chapter int) error {
	args := m.Called(ctx, sessionID, chapter)
	return args.Error(0)
}

func (m *SessionRepository) SelectLatestMemories(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.MemoryRecord, error) {
	args := m.Called(ctx, sessionID, limit)
	if records := args.Get(0); records != nil {
		return records.([]domain.MemoryRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) GetStory(ctx context.Context, storyID string) (*domain.StoryScript, error) {
	args := m.Called(ctx, storyID)
	if story := args.Get(0); story != nil {
		return story.(*domain.StoryScript), args.Error(1)
	}
	return nil, args.Error(1)
}
