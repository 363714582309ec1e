// Code generated manually in the style of mockery. Adjust alongside the
// Generator interface.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"drama-server/internal/replicate"
)

// Generator is a mock for replicate.Generator.
type Generator struct {
	mock.Mock
}

func (m *Generator) CreatePrediction(ctx context.Context, input replicate.GenerationInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

func (m *Generator) StreamOutput(ctx context.Context, streamURL string, onDelta func(delta string) error) error {
	args := m.Called(ctx, streamURL, onDelta)
	return args.Error(0)
}

func (m *Generator) Generate(ctx context.Context, input replicate.GenerationInput, onDelta func(delta string) error) (string, error) {
	args := m.Called(ctx, input, onDelta)
	return args.String(0), args.Error(1)
}
