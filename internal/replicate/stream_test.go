package replicate

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader returns at most size bytes per Read call, forcing payloads to
// straddle read boundaries.
type chunkedReader struct {
	data []byte
	size int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.size
	if n > len(r.data) {
		n = len(r.data)
	}
	n = copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func collectDeltas(t *testing.T, raw string, chunkSize int) []string {
	t.Helper()

	var reader io.Reader = strings.NewReader(raw)
	if chunkSize > 0 {
		reader = &chunkedReader{data: []byte(raw), size: chunkSize}
	}

	var deltas []string
	err := decodeEventStream(reader, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)
	return deltas
}

func TestDecodeEventStream_YieldsContentInOrder(t *testing.T) {
	raw := "event: output\n" +
		"data: 天\n\n" +
		"data: 降\n\n" +
		"data: 祥\n\n" +
		"data: 瑞\n\n" +
		"event: done\n" +
		"data: {}\n\n"

	deltas := collectDeltas(t, raw, 0)
	assert.Equal(t, []string{"天", "降", "祥", "瑞"}, deltas)
}

func TestDecodeEventStream_DropsControlFrames(t *testing.T) {
	raw := "data: {\"reason\":\"max_output_tokens\"}\n" +
		"data: first\n" +
		"data: {}\n" +
		"data: {\"event\":\"done\",\"usage\":{\"output_tokens\":42}}\n" +
		"data: second\n"

	deltas := collectDeltas(t, raw, 0)
	assert.Equal(t, []string{"first", "second"}, deltas)
}

// Payloads that parse as any JSON value are control noise, including bare
// numbers and quoted strings.
func TestDecodeEventStream_DropsAnyValidJSONPayload(t *testing.T) {
	raw := "data: 123\n" +
		"data: \"quoted\"\n" +
		"data: null\n" +
		"data: true\n" +
		"data: [1,2]\n" +
		"data: 陛下，臣有本奏\n"

	deltas := collectDeltas(t, raw, 0)
	assert.Equal(t, []string{"陛下，臣有本奏"}, deltas)
}

func TestDecodeEventStream_SkipsCommentsAndForeignLines(t *testing.T) {
	raw := ": keep-alive ping\n" +
		"id: 17\n" +
		"retry: 3000\n" +
		"event: output\n" +
		"data: 京师告急\n"

	deltas := collectDeltas(t, raw, 0)
	assert.Equal(t, []string{"京师告急"}, deltas)
}

func TestDecodeEventStream_PayloadStraddlesReads(t *testing.T) {
	raw := "data: 李自成兵临城下\n" +
		"data: {\"reason\":\"done\"}\n" +
		"data: 崇祯召集群臣\n"

	for _, chunkSize := range []int{1, 2, 3, 7} {
		deltas := collectDeltas(t, raw, chunkSize)
		assert.Equal(t, []string{"李自成兵临城下", "崇祯召集群臣"}, deltas, "chunk size %d", chunkSize)
	}
}

func TestDecodeEventStream_DropsUnterminatedTail(t *testing.T) {
	raw := "data: complete line\n" +
		"data: cut off mid-pay"

	deltas := collectDeltas(t, raw, 0)
	assert.Equal(t, []string{"complete line"}, deltas)
}

func TestDecodeEventStream_PropagatesOnDeltaError(t *testing.T) {
	raw := "data: one\ndata: two\n"
	sentinel := errors.New("client went away")

	var seen []string
	err := decodeEventStream(strings.NewReader(raw), func(delta string) error {
		seen = append(seen, delta)
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, []string{"one"}, seen)
}

func TestDecodeEventStream_PropagatesReadError(t *testing.T) {
	sentinel := errors.New("connection reset")
	reader := io.MultiReader(strings.NewReader("data: partial\n"), &failingReader{err: sentinel})

	var seen []string
	err := decodeEventStream(reader, func(delta string) error {
		seen = append(seen, delta)
		return nil
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, []string{"partial"}, seen)
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}
