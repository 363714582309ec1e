package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"drama-server/internal/domain"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check
var _ SessionRepository = (*pgSessionRepository)(nil)

type pgSessionRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgSessionRepository создает репозиторий сессий поверх PostgreSQL.
func NewPgSessionRepository(db DBTX, logger *zap.Logger) SessionRepository {
	return &pgSessionRepository{
		db:     db,
		logger: logger.Named("PgSessionRepo"),
	}
}

type sessionRow struct {
	ID               uuid.UUID `db:"id"`
	UserID           string    `db:"user_id"`
	StoryID          string    `db:"story_id"`
	CurrentChapter   int       `db:"current_chapter"`
	CurrentSituation string    `db:"current_situation"`
	TurnSeq          int       `db:"turn_seq"`
	StateVariables   []byte    `db:"state_variables"`
}

type messageRow struct {
	Role    string `db:"role"`
	Content string `db:"content"`
}

type memoryRow struct {
	Summary   string    `db:"summary"`
	CreatedAt time.Time `db:"created_at"`
}

type storyRow struct {
	ID       string `db:"id"`
	Title    string `db:"title"`
	Genre    string `db:"genre"`
	Compiled []byte `db:"compiled"`
}

func (r *pgSessionRepository) CreateSession(ctx context.Context, userID, storyID string) (*domain.AgentState, error) {
	sessionID := uuid.New()
	query := `
        INSERT INTO chat_sessions (id, user_id, story_id, current_chapter, current_situation, turn_seq, created_at, updated_at)
        VALUES ($1, $2, $3, 1, 'initial', 0, now(), now())
    `
	if _, err := r.db.Exec(ctx, query, sessionID, userID, storyID); err != nil {
		r.logger.Error("Failed to create session", zap.String("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("ошибка создания сессии: %w", err)
	}

	r.logger.Info("Session created",
		zap.String("sessionID", sessionID.String()),
		zap.String("storyID", storyID))

	return &domain.AgentState{
		SessionID:        sessionID,
		UserID:           userID,
		StoryID:          storyID,
		CurrentChapter:   1,
		CurrentSituation: "initial",
		StateVariables:   map[string]float64{},
	}, nil
}

func (r *pgSessionRepository) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.AgentState, error) {
	query := `
        SELECT s.id, s.user_id, s.story_id, s.current_chapter, s.current_situation, s.turn_seq,
               COALESCE(st.state_variables, '{}'::jsonb) AS state_variables
        FROM chat_sessions s
        LEFT JOIN session_state st ON st.session_id = s.id
        WHERE s.id = $1
    `
	var row sessionRow
	if err := pgxscan.Get(ctx, r.db, &row, query, sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("ошибка загрузки сессии: %w", err)
	}

	vars := map[string]float64{}
	if len(row.StateVariables) > 0 {
		if err := json.Unmarshal(row.StateVariables, &vars); err != nil {
			return nil, fmt.Errorf("ошибка декодирования state_variables: %w", err)
		}
	}

	history, err := r.recentMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &domain.AgentState{
		SessionID:           row.ID,
		UserID:              row.UserID,
		StoryID:             row.StoryID,
		CurrentChapter:      row.CurrentChapter,
		CurrentSituation:    row.CurrentSituation,
		StateVariables:      vars,
		ConversationHistory: history,
		TurnSeq:             row.TurnSeq,
	}, nil
}

// recentMessages returns the newest historyWindow messages in chronological
// order.
func (r *pgSessionRepository) recentMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	query := `
        SELECT role, content FROM (
            SELECT role, content, created_at, id
            FROM chat_messages
            WHERE session_id = $1
            ORDER BY created_at DESC, id DESC
            LIMIT $2
        ) latest
        ORDER BY created_at ASC, id ASC
    `
	var rows []messageRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, sessionID, historyWindow); err != nil {
		return nil, fmt.Errorf("ошибка загрузки истории сообщений: %w", err)
	}

	history := make([]domain.Message, 0, len(rows))
	for _, m := range rows {
		history = append(history, domain.Message{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

func (r *pgSessionRepository) AdvanceTurn(ctx context.Context, sessionID uuid.UUID) (int, error) {
	query := `
        UPDATE chat_sessions
        SET turn_seq = turn_seq + 1, updated_at = now()
        WHERE id = $1
        RETURNING turn_seq
    `
	var seq int
	if err := r.db.QueryRow(ctx, query, sessionID).Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrSessionNotFound
		}
		return 0, fmt.Errorf("ошибка выделения turn_seq: %w", err)
	}
	return seq, nil
}

func (r *pgSessionRepository) InsertMessage(ctx context.Context, sessionID uuid.UUID, turnSeq int, role, content string) error {
	query := `
        INSERT INTO chat_messages (session_id, turn_seq, role, content, created_at)
        VALUES ($1, $2, $3, $4, now())
        ON CONFLICT (session_id, turn_seq, role) DO NOTHING
    `
	if _, err := r.db.Exec(ctx, query, sessionID, turnSeq, role, content); err != nil {
		r.logger.Error("Failed to insert message",
			zap.String("sessionID", sessionID.String()),
			zap.Int("turnSeq", turnSeq),
			zap.String("role", role),
			zap.Error(err))
		return fmt.Errorf("ошибка сохранения сообщения: %w", err)
	}
	return nil
}

func (r *pgSessionRepository) AppendSituationLog(ctx context.Context, entry domain.SituationStateLogEntry, turnSeq int) error {
	query := `
        INSERT INTO situation_states (session_id, turn_seq, situation_id, completion_score, rationale, created_at)
        VALUES ($1, $2, $3, $4, $5, now())
        ON CONFLICT (session_id, turn_seq) DO NOTHING
    `
	if _, err := r.db.Exec(ctx, query, entry.SessionID, turnSeq, entry.SituationID, entry.Score, entry.Rationale); err != nil {
		r.logger.Error("Failed to append situation log",
			zap.String("sessionID", entry.SessionID.String()),
			zap.Int("turnSeq", turnSeq),
			zap.Error(err))
		return fmt.Errorf("ошибка записи журнала ситуаций: %w", err)
	}
	return nil
}

func (r *pgSessionRepository) UpsertStateVariables(ctx context.Context, sessionID uuid.UUID, vars map[string]float64) error {
	payload, err := json.Marshal(vars)
	if err != nil {
		return fmt.Errorf("ошибка сериализации state_variables: %w", err)
	}
	query := `
        INSERT INTO session_state (session_id, state_variables, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (session_id) DO UPDATE
        SET state_variables = EXCLUDED.state_variables, updated_at = now()
    `
	if _, err := r.db.Exec(ctx, query, sessionID, payload); err != nil {
		r.logger.Error("Failed to upsert state variables",
			zap.String("sessionID", sessionID.String()),
			zap.Error(err))
		return fmt.Errorf("ошибка сохранения переменных состояния: %w", err)
	}
	return nil
}

func (r *pgSessionRepository) UpdateChapter(ctx context.Context, sessionID uuid.UUID, chapter int) error {
	// GREATEST keeps the stored chapter monotonic under replays and races.
	query := `
        UPDATE chat_sessions
        SET current_chapter = GREATEST(current_chapter, $2), updated_at = now()
        WHERE id = $1
    `
	if _, err := r.db.Exec(ctx, query, sessionID, chapter); err != nil {
		r.logger.Error("Failed to update chapter",
			zap.String("sessionID", sessionID.String()),
			zap.Int("chapter", chapter),
			zap.Error(err))
		return fmt.Errorf("ошибка обновления главы: %w", err)
	}
	return nil
}

func (r *pgSessionRepository) SelectLatestMemories(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.MemoryRecord, error) {
	query := `
        SELECT summary, created_at
        FROM memory_records
        WHERE session_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	var rows []memoryRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, sessionID, limit); err != nil {
		return nil, fmt.Errorf("ошибка загрузки записей памяти: %w", err)
	}

	records := make([]domain.MemoryRecord, 0, len(rows))
	for _, m := range rows {
		records = append(records, domain.MemoryRecord{Summary: m.Summary, CreatedAt: m.CreatedAt})
	}
	return records, nil
}

func (r *pgSessionRepository) GetStory(ctx context.Context, storyID string) (*domain.StoryScript, error) {
	query := `
        SELECT id, title, genre, compiled
        FROM stories
        WHERE id = $1
    `
	var row storyRow
	if err := pgxscan.Get(ctx, r.db, &row, query, storyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("story %q: %w", storyID, domain.ErrValidation)
		}
		return nil, fmt.Errorf("ошибка загрузки истории: %w", err)
	}
	return &domain.StoryScript{
		ID:       row.ID,
		Title:    row.Title,
		Genre:    row.Genre,
		Compiled: row.Compiled,
	}, nil
}
