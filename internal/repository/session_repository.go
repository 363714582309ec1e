package repository

import (
	"context"

	"drama-server/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool the repositories need. Tests and
// transactions can substitute their own implementation.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// historyWindow limits how much conversation history a session load pulls in.
const historyWindow = 20

// SessionRepository is the session store contract the agent core relies on.
// The write methods are each idempotent under the (session, turn) key so the
// unlinked multi-write transition can be retried with at-least-once semantics.
type SessionRepository interface {
	// CreateSession inserts a fresh session at chapter 1, situation
	// "initial", with empty state variables.
	CreateSession(ctx context.Context, userID, storyID string) (*domain.AgentState, error)

	// GetSession loads the session row, its state variables and the recent
	// conversation window. Returns domain.ErrSessionNotFound for unknown ids.
	GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.AgentState, error)

	// AdvanceTurn atomically allocates the next turn sequence number for the
	// session and returns it.
	AdvanceTurn(ctx context.Context, sessionID uuid.UUID) (int, error)

	// InsertMessage appends one conversation message for a turn. Replays of
	// the same (session, turn, role) are no-ops.
	InsertMessage(ctx context.Context, sessionID uuid.UUID, turnSeq int, role, content string) error

	// AppendSituationLog appends one audit record for a turn. The log is
	// append-only; replays of the same (session, turn) are no-ops.
	AppendSituationLog(ctx context.Context, entry domain.SituationStateLogEntry, turnSeq int) error

	// UpsertStateVariables persists the merged state variable map.
	UpsertStateVariables(ctx context.Context, sessionID uuid.UUID, vars map[string]float64) error

	// UpdateChapter persists the chapter number. The stored value never
	// decreases regardless of replay order.
	UpdateChapter(ctx context.Context, sessionID uuid.UUID, chapter int) error

	// SelectLatestMemories returns up to limit memory records, most recent
	// first.
	SelectLatestMemories(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.MemoryRecord, error)

	// GetStory loads one published story script.
	GetStory(ctx context.Context, storyID string) (*domain.StoryScript, error)
}
