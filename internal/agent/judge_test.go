package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"drama-server/internal/domain"
	"drama-server/internal/replicate/mocks"
)

func judgeState() *domain.AgentState {
	return &domain.AgentState{
		CurrentChapter:   2,
		CurrentSituation: "siege_of_beijing",
		StateVariables:   map[string]float64{"treasury": 120},
	}
}

func newJudgeWithOutput(t *testing.T, output string, err error) *Judge {
	t.Helper()
	gen := &mocks.Generator{}
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(output, err)
	return NewJudge(gen, zap.NewNop())
}

func TestJudgeEvaluate_ValidVerdict(t *testing.T) {
	j := newJudgeWithOutput(t, `{
		"situationScore": 85,
		"shouldAdvanceChapter": true,
		"shouldEndStory": false,
		"rationale": "危机已解",
		"stateChanges": {"treasury": -50}
	}`, nil)

	decision := j.Evaluate(context.Background(), judgeState(), "generated beat")

	assert.True(t, decision.ShouldContinue)
	assert.True(t, decision.ShouldAdvanceChapter)
	assert.False(t, decision.ShouldEndStory)
	assert.Equal(t, map[string]float64{"treasury": -50}, decision.StateChanges)
	if assert.NotNil(t, decision.SituationUpdate) {
		assert.Equal(t, "siege_of_beijing", decision.SituationUpdate.Situation)
		assert.Equal(t, 85, decision.SituationUpdate.Score)
		assert.Equal(t, "危机已解", decision.SituationUpdate.Rationale)
	}
}

func TestJudgeEvaluate_FullScoreStopsContinuing(t *testing.T) {
	j := newJudgeWithOutput(t, `{"situationScore": 100, "shouldEndStory": true}`, nil)

	decision := j.Evaluate(context.Background(), judgeState(), "finale")

	assert.False(t, decision.ShouldContinue)
	assert.True(t, decision.ShouldEndStory)
}

func TestJudgeEvaluate_FencedJSONAccepted(t *testing.T) {
	raw := "判定如下：\n```json\n{\"situationScore\": 40}\n```"
	j := newJudgeWithOutput(t, raw, nil)

	decision := j.Evaluate(context.Background(), judgeState(), "beat")

	assert.True(t, decision.ShouldContinue)
	if assert.NotNil(t, decision.SituationUpdate) {
		assert.Equal(t, 40, decision.SituationUpdate.Score)
	}
}

func TestJudgeEvaluate_FallbackOnGarbage(t *testing.T) {
	for name, output := range map[string]string{
		"not json":      "not json",
		"empty":         "",
		"missing score": `{"shouldAdvanceChapter": true}`,
		"out of range":  `{"situationScore": 250}`,
		"negative":      `{"situationScore": -3}`,
	} {
		t.Run(name, func(t *testing.T) {
			j := newJudgeWithOutput(t, output, nil)

			decision := j.Evaluate(context.Background(), judgeState(), "beat")

			assert.Equal(t, domain.FallbackDecision(), decision)
		})
	}
}

func TestJudgeEvaluate_FallbackOnGenerationError(t *testing.T) {
	j := newJudgeWithOutput(t, "", errors.New("upstream down"))

	decision := j.Evaluate(context.Background(), judgeState(), "beat")

	assert.Equal(t, domain.FallbackDecision(), decision)
}
