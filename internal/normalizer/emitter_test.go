package normalizer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingFlusher struct {
	count int
}

func (f *countingFlusher) Flush() { f.count++ }

func TestEmitter_ProtocolFrames(t *testing.T) {
	var buf bytes.Buffer
	flusher := &countingFlusher{}
	e := NewEmitter(&buf, flusher)

	assert.NoError(t, e.Delta("天"))
	assert.NoError(t, e.Delta("降"))
	assert.NoError(t, e.Final("回复：天降祥瑞"))
	assert.NoError(t, e.Done())

	expected := "data: {\"delta\":\"天\"}\n\n" +
		"data: {\"delta\":\"降\"}\n\n" +
		"data: {\"final\":\"回复：天降祥瑞\"}\n\n" +
		"data: [DONE]\n\n"
	assert.Equal(t, expected, buf.String())
	assert.Equal(t, 4, flusher.count)
}

func TestEmitter_ErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, nil)

	assert.NoError(t, e.Error(errors.New("upstream stream failed")))
	assert.Equal(t, "data: {\"error\":\"upstream stream failed\"}\n\n", buf.String())
}

func TestEmitter_DoneIsTerminal(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, nil)

	assert.NoError(t, e.Done())
	assert.NoError(t, e.Done())
	assert.NoError(t, e.Delta("late"))
	assert.NoError(t, e.Final("late"))

	assert.Equal(t, "data: [DONE]\n\n", buf.String())
}
