package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"drama-server/internal/domain"
	"drama-server/internal/repository/mocks"
)

func TestRetrieve_ReturnsRecords(t *testing.T) {
	sessionID := uuid.New()
	records := []domain.MemoryRecord{
		{Summary: "闯军破关"},
		{Summary: "朝廷加饷"},
	}

	store := &mocks.SessionRepository{}
	store.On("SelectLatestMemories", mock.Anything, sessionID, 2).Return(records, nil)

	r := NewRetriever(store, zap.NewNop())
	got := r.Retrieve(context.Background(), sessionID, "闯军", 2)

	assert.Equal(t, records, got)
}

func TestRetrieve_StoreErrorYieldsEmpty(t *testing.T) {
	sessionID := uuid.New()
	store := &mocks.SessionRepository{}
	store.On("SelectLatestMemories", mock.Anything, sessionID, DefaultLimit).
		Return(nil, errors.New("db down"))

	r := NewRetriever(store, zap.NewNop())
	got := r.Retrieve(context.Background(), sessionID, "query", 0)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRetrieve_NilResultYieldsEmpty(t *testing.T) {
	sessionID := uuid.New()
	store := &mocks.SessionRepository{}
	store.On("SelectLatestMemories", mock.Anything, sessionID, DefaultLimit).
		Return(nil, nil)

	r := NewRetriever(store, zap.NewNop())
	got := r.Retrieve(context.Background(), sessionID, "query", -3)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}
