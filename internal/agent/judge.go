package agent

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"drama-server/internal/domain"
	"drama-server/internal/replicate"
)

const judgmentMaxTokens = 512

// Judge scores the latest story beat and decides whether the cycle should
// continue, advance a chapter, or end. Any failure, upstream or parse, yields
// the fixed fallback decision so the turn always completes.
type Judge struct {
	generator replicate.Generator
	logger    *zap.Logger
}

// NewJudge создает судью поверх уже настроенного генератора.
func NewJudge(generator replicate.Generator, logger *zap.Logger) *Judge {
	return &Judge{
		generator: generator,
		logger:    logger.Named("Judge"),
	}
}

// judgmentPayload mirrors the JSON shape the judgment prompt asks for.
// SituationScore is a pointer so a missing field is distinguishable from 0.
type judgmentPayload struct {
	SituationScore       *int               `json:"situationScore"`
	ShouldAdvanceChapter bool               `json:"shouldAdvanceChapter"`
	ShouldEndStory       bool               `json:"shouldEndStory"`
	Rationale            string             `json:"rationale"`
	StateChanges         map[string]float64 `json:"stateChanges"`
}

// Evaluate runs a small non-streamed generation over the judgment prompt and
// decodes the result into a Decision.
func (j *Judge) Evaluate(ctx context.Context, state *domain.AgentState, generatedText string) domain.Decision {
	input := replicate.GenerationInput{
		Messages: []domain.Message{
			{Role: "user", Content: buildJudgmentPrompt(state, generatedText)},
		},
		MaxOutputTokens: judgmentMaxTokens,
		ReasoningEffort: replicate.EffortLow,
	}

	raw, err := j.generator.Generate(ctx, input, nil)
	if err != nil {
		j.logger.Warn("генерация судейского вердикта не удалась, используется запасное решение", zap.Error(err))
		return domain.FallbackDecision()
	}

	decision, err := decodeJudgment(raw)
	if err != nil {
		j.logger.Warn("не удалось разобрать вердикт, используется запасное решение",
			zap.Error(err),
			zap.String("raw", raw))
		return domain.FallbackDecision()
	}

	if decision.SituationUpdate != nil {
		decision.SituationUpdate.Situation = state.CurrentSituation
	}
	return decision
}

func decodeJudgment(raw string) (domain.Decision, error) {
	var payload judgmentPayload
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return domain.Decision{}, err
	}
	if payload.SituationScore == nil {
		return domain.Decision{}, domain.ErrValidation
	}
	score := *payload.SituationScore
	if score < 0 || score > 100 {
		return domain.Decision{}, domain.ErrValidation
	}

	return domain.Decision{
		ShouldContinue:       score < 100,
		ShouldAdvanceChapter: payload.ShouldAdvanceChapter,
		ShouldEndStory:       payload.ShouldEndStory,
		SituationUpdate: &domain.SituationUpdate{
			Score:     score,
			Rationale: payload.Rationale,
		},
		StateChanges: payload.StateChanges,
	}, nil
}

// extractJSONObject cuts the model's answer down to the outermost JSON object.
// Models routinely wrap their answer in markdown fences or prose.
func extractJSONObject(raw string) string {
	raw = strings.TrimSpace(raw)
	if fenced, ok := stripCodeFence(raw); ok {
		raw = fenced
	}

	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}

func stripCodeFence(raw string) (string, bool) {
	if !strings.HasPrefix(raw, "```") {
		return raw, false
	}
	body := strings.TrimPrefix(raw, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body), true
}
