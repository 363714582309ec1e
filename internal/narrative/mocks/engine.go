// Code generated manually in the style of mockery. Adjust alongside the
// Engine interface.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"drama-server/internal/domain"
)

// Engine is a mock for narrative.Engine.
type Engine struct {
	mock.Mock
}

func (m *Engine) GetSnapshot(ctx context.Context, storyID string, chapter int, stateVariables map[string]float64, choiceIndex *int) (*domain.NarrativeSnapshot, error) {
	args := m.Called(ctx, storyID, chapter, stateVariables, choiceIndex)
	snapshot, _ := args.Get(0).(*domain.NarrativeSnapshot)
	return snapshot, args.Error(1)
}

func (m *Engine) Advance(ctx context.Context, storyID string, chapter int, stateVariables map[string]float64) error {
	args := m.Called(ctx, storyID, chapter, stateVariables)
	return args.Error(0)
}
