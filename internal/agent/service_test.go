package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"drama-server/internal/domain"
	"drama-server/internal/genre"
	enginemocks "drama-server/internal/narrative/mocks"
	"drama-server/internal/replicate"
	genmocks "drama-server/internal/replicate/mocks"
	repomocks "drama-server/internal/repository/mocks"
)

type captureSink struct {
	deltas []string
	final  string
	errs   []string
	done   bool
}

func (s *captureSink) Delta(text string) error { s.deltas = append(s.deltas, text); return nil }
func (s *captureSink) Final(text string) error { s.final = text; return nil }
func (s *captureSink) Error(err error) error   { s.errs = append(s.errs, err.Error()); return nil }
func (s *captureSink) Done() error             { s.done = true; return nil }

type fakeLocker struct {
	busy     bool
	released bool
}

func (l *fakeLocker) Acquire(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	if l.busy {
		return nil, domain.ErrSessionBusy
	}
	return func() { l.released = true }, nil
}

func streamDeltas(deltas ...string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		onDelta := args.Get(2).(func(string) error)
		for _, d := range deltas {
			_ = onDelta(d)
		}
	}
}

func TestPipeline_StatelessFlow(t *testing.T) {
	gen := &genmocks.Generator{}
	gen.On("CreatePrediction", mock.Anything, mock.MatchedBy(func(in replicate.GenerationInput) bool {
		return len(in.Messages) == 2 && in.Messages[0].Role == "system"
	})).Return("https://stream/1", nil)
	gen.On("StreamOutput", mock.Anything, "https://stream/1", mock.Anything).
		Run(streamDeltas("天", "降", "祥", "瑞")).Return(nil)

	repo := &repomocks.SessionRepository{}
	svc := NewService(repo, &fakeLocker{}, &enginemocks.Engine{}, nil, gen, zap.NewNop())

	run, err := svc.Prepare(context.Background(), Request{
		Messages: []domain.Message{{Role: "user", Content: "继续"}},
		Profile:  genre.Chongzhen,
	})
	require.NoError(t, err)

	sink := &captureSink{}
	require.NoError(t, run.Stream(context.Background(), sink))

	assert.Equal(t, []string{"天", "降", "祥", "瑞"}, sink.deltas)
	assert.Contains(t, sink.final, "回复：天降祥瑞")
	assert.True(t, sink.done)
	assert.Empty(t, sink.errs)
	// Stateless mode never touches the session store.
	repo.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "InsertMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_SessionFlow(t *testing.T) {
	sessionID := uuid.New()
	state := &domain.AgentState{
		SessionID:        sessionID,
		UserID:           "u-1",
		StoryID:          "chongzhen-ming",
		CurrentChapter:   1,
		CurrentSituation: "initial",
		StateVariables:   map[string]float64{"treasury": 100},
	}

	repo := &repomocks.SessionRepository{}
	repo.On("GetSession", mock.Anything, sessionID).Return(state, nil)
	repo.On("SelectLatestMemories", mock.Anything, sessionID, 5).
		Return([]domain.MemoryRecord{{Summary: "上回书说到闯军犯境"}}, nil)
	repo.On("AdvanceTurn", mock.Anything, sessionID).Return(8, nil)
	repo.On("InsertMessage", mock.Anything, sessionID, 8, mock.Anything, mock.Anything).Return(nil)
	repo.On("AppendSituationLog", mock.Anything, mock.Anything, 8).Return(nil)

	engine := &enginemocks.Engine{}
	engine.On("GetSnapshot", mock.Anything, "chongzhen-ming", 1, state.StateVariables, (*int)(nil)).
		Return(&domain.NarrativeSnapshot{Text: "京师戒严", CanContinue: true}, nil)

	gen := &genmocks.Generator{}
	gen.On("CreatePrediction", mock.Anything, mock.Anything).Return("https://stream/2", nil)
	gen.On("StreamOutput", mock.Anything, "https://stream/2", mock.Anything).
		Run(streamDeltas("回复：准奏")).Return(nil)
	// Judgment verdict: keep playing, no chapter advance.
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"situationScore": 40, "rationale": "局势未定"}`, nil)

	locker := &fakeLocker{}
	svc := NewService(repo, locker, engine, nil, gen, zap.NewNop())

	run, err := svc.Prepare(context.Background(), Request{
		Messages:  []domain.Message{{Role: "user", Content: "准奏"}},
		SessionID: &sessionID,
		Profile:   genre.Chongzhen,
	})
	require.NoError(t, err)
	assert.Equal(t, 8, state.TurnSeq)

	sink := &captureSink{}
	require.NoError(t, run.Stream(context.Background(), sink))

	assert.True(t, sink.done)
	assert.Empty(t, sink.errs)
	assert.True(t, locker.released)
	repo.AssertExpectations(t)
	engine.AssertExpectations(t)
	// Message pair persisted with the turn's sequence number.
	repo.AssertCalled(t, "InsertMessage", mock.Anything, sessionID, 8, "assistant", mock.Anything)
}

func TestPipeline_SessionBusy(t *testing.T) {
	sessionID := uuid.New()
	repo := &repomocks.SessionRepository{}
	svc := NewService(repo, &fakeLocker{busy: true}, &enginemocks.Engine{}, nil, &genmocks.Generator{}, zap.NewNop())

	_, err := svc.Prepare(context.Background(), Request{
		Messages:  []domain.Message{{Role: "user", Content: "继续"}},
		SessionID: &sessionID,
		Profile:   genre.Chongzhen,
	})

	assert.ErrorIs(t, err, domain.ErrSessionBusy)
	repo.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
}

func TestPipeline_LockReleasedOnPrepareFailure(t *testing.T) {
	sessionID := uuid.New()
	repo := &repomocks.SessionRepository{}
	repo.On("GetSession", mock.Anything, sessionID).Return(nil, domain.ErrSessionNotFound)

	locker := &fakeLocker{}
	svc := NewService(repo, locker, &enginemocks.Engine{}, nil, &genmocks.Generator{}, zap.NewNop())

	_, err := svc.Prepare(context.Background(), Request{
		Messages:  []domain.Message{{Role: "user", Content: "继续"}},
		SessionID: &sessionID,
		Profile:   genre.Chongzhen,
	})

	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.True(t, locker.released)
}

func TestPipeline_StreamFailureReportedInBand(t *testing.T) {
	gen := &genmocks.Generator{}
	gen.On("CreatePrediction", mock.Anything, mock.Anything).Return("https://stream/3", nil)
	gen.On("StreamOutput", mock.Anything, "https://stream/3", mock.Anything).
		Run(streamDeltas("部分")).Return(errors.New("connection reset"))

	svc := NewService(&repomocks.SessionRepository{}, &fakeLocker{}, &enginemocks.Engine{}, nil, gen, zap.NewNop())

	run, err := svc.Prepare(context.Background(), Request{
		Messages: []domain.Message{{Role: "user", Content: "继续"}},
		Profile:  genre.Chongzhen,
	})
	require.NoError(t, err)

	sink := &captureSink{}
	require.NoError(t, run.Stream(context.Background(), sink))

	assert.Equal(t, []string{"部分"}, sink.deltas)
	require.Len(t, sink.errs, 1)
	assert.Contains(t, sink.errs[0], "connection reset")
	assert.False(t, sink.done)
	assert.Empty(t, sink.final)
}

func TestPipeline_RejectsRequestWithoutUserMessage(t *testing.T) {
	svc := NewService(&repomocks.SessionRepository{}, &fakeLocker{}, &enginemocks.Engine{}, nil, &genmocks.Generator{}, zap.NewNop())

	_, err := svc.Prepare(context.Background(), Request{
		Messages: []domain.Message{{Role: "assistant", Content: "回复：……"}},
		Profile:  genre.Chongzhen,
	})

	assert.ErrorIs(t, err, domain.ErrValidation)
}
