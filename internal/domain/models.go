package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message роль/содержимое одного сообщения диалога.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AgentState is the per-session state the agent loads once per request and
// persists at the end of the cycle. Chapter never decreases for a session.
type AgentState struct {
	SessionID           uuid.UUID          `json:"sessionId"`
	UserID              string             `json:"userId"`
	StoryID             string             `json:"storyId"`
	CurrentChapter      int                `json:"currentChapter"`
	CurrentSituation    string             `json:"currentSituation"`
	StateVariables      map[string]float64 `json:"stateVariables"`
	ConversationHistory []Message          `json:"conversationHistory"`
	// TurnSeq grows by one per processed request and keys the idempotent
	// persistence writes for that turn.
	TurnSeq int `json:"turnSeq"`
}

// Choice is a single selectable branch offered by the narrative engine.
type Choice struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// SnapshotTags holds the parsed form of the engine's string tags.
// A tag "chapter:3" sets Chapter, "situation:crisis" sets Situation and any
// other "key:value" pair lands in Metadata. Tags without a colon are dropped.
type SnapshotTags struct {
	Chapter   *int              `json:"chapter,omitempty"`
	Situation string            `json:"situation,omitempty"`
	Metadata  map[string]string `json:"metadata"`
}

// NarrativeSnapshot is the engine's view of the story at one decision point.
// It is produced fresh on every call and never persisted.
type NarrativeSnapshot struct {
	Text        string             `json:"text"`
	Choices     []Choice           `json:"choices"`
	Tags        SnapshotTags       `json:"tags"`
	Variables   map[string]float64 `json:"variables"`
	IsEnded     bool               `json:"isEnded"`
	CanContinue bool               `json:"canContinue"`
}

// SituationUpdate carries the judged completion of the current situation.
type SituationUpdate struct {
	Situation string `json:"situation"`
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`
}

// Decision is the structured outcome of the judgment step. It is always
// well-formed: a failed judgment parse yields FallbackDecision(), never a
// partial value.
type Decision struct {
	ShouldContinue       bool               `json:"shouldContinue"`
	ShouldAdvanceChapter bool               `json:"shouldAdvanceChapter"`
	ShouldEndStory       bool               `json:"shouldEndStory"`
	SituationUpdate      *SituationUpdate   `json:"situationUpdate,omitempty"`
	StateChanges         map[string]float64 `json:"stateChanges,omitempty"`
}

// FallbackDecision returns the safe default used when judgment output cannot
// be parsed: keep playing, do not advance, do not end.
func FallbackDecision() Decision {
	return Decision{
		ShouldContinue:       true,
		ShouldAdvanceChapter: false,
		ShouldEndStory:       false,
	}
}

// MemoryRecord is an opaque summary of earlier session events. The agent core
// reads these and never mutates them.
type MemoryRecord struct {
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
}

// SituationStateLogEntry is one append-only audit record of a situation score.
type SituationStateLogEntry struct {
	SessionID   uuid.UUID `json:"sessionId"`
	SituationID string    `json:"situationId"`
	Score       int       `json:"score"`
	Rationale   string    `json:"rationale"`
}

// StoryScript describes one published story: its compiled ink JSON plus the
// metadata needed to pick a genre profile.
type StoryScript struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Genre    string          `json:"genre"`
	Compiled json.RawMessage `json:"compiled"`
}
