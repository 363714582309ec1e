package replicate

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// Event-stream line markers. Payload lines carry the dataPrefix; everything
// else on the channel is either a keep-alive comment or an event-type line.
const (
	commentPrefix   = ":"
	eventPrefix     = "event:"
	dataPrefix      = "data: "
	emptyObjectBody = "{}"
)

// decodeEventStream reads an event-stream body and invokes onDelta for every
// content delta, in arrival order. A single payload may straddle two reads;
// the trailing partial line is carried over between reads and dropped if the
// stream closes mid-line. Returns the first error from the reader or from
// onDelta.
func decodeEventStream(r io.Reader, onDelta func(delta string) error) error {
	var buf []byte
	chunk := make([]byte, 4096)

	for {
		n, readErr := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				idx := bytes.IndexByte(buf, '\n')
				if idx < 0 {
					break
				}
				line := string(buf[:idx])
				buf = buf[idx+1:]
				if err := processLine(line, onDelta); err != nil {
					return err
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

func processLine(line string, onDelta func(string) error) error {
	if line == "" || strings.HasPrefix(line, commentPrefix) {
		return nil
	}
	if strings.HasPrefix(line, eventPrefix) {
		return nil
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return nil
	}

	data := line[len(dataPrefix):]
	if data == emptyObjectBody {
		return nil
	}

	// Anything that decodes as JSON is a control frame ("reason" markers,
	// "event":"done", usage blocks). Content deltas are raw text and fail
	// the decode; only those are surfaced.
	var ctrl any
	if err := json.Unmarshal([]byte(data), &ctrl); err == nil {
		return nil
	}

	return onDelta(data)
}
