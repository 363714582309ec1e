// Package memory fetches the bounded window of prior session memory the
// generation prompt is grounded on.
package memory

import (
	"context"

	"drama-server/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultLimit bounds the recency window when the caller passes none.
const DefaultLimit = 5

// Store is the slice of the session store the retriever reads from.
type Store interface {
	SelectLatestMemories(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.MemoryRecord, error)
}

// Retriever loads recent memory records. It never fails the pipeline: a store
// error and an empty result both come back as an empty slice, because losing
// memory context is strictly better than losing the whole generation.
type Retriever struct {
	store  Store
	logger *zap.Logger
}

// NewRetriever создает retriever поверх хранилища сессий.
func NewRetriever(store Store, logger *zap.Logger) *Retriever {
	return &Retriever{
		store:  store,
		logger: logger.Named("memory"),
	}
}

// Retrieve returns up to limit records, most recent first. The query argument
// is part of the contract for a future relevance-ranked store; the current
// store ranks by recency only.
func (r *Retriever) Retrieve(ctx context.Context, sessionID uuid.UUID, query string, limit int) []domain.MemoryRecord {
	if limit <= 0 {
		limit = DefaultLimit
	}

	records, err := r.store.SelectLatestMemories(ctx, sessionID, limit)
	if err != nil {
		r.logger.Warn("Memory retrieval failed, continuing without context",
			zap.String("sessionID", sessionID.String()),
			zap.Error(err))
		return []domain.MemoryRecord{}
	}
	if records == nil {
		return []domain.MemoryRecord{}
	}
	return records
}
