package normalizer

import (
	"encoding/json"
	"fmt"
	"io"
)

// doneSentinel terminates a successfully completed stream.
const doneSentinel = "[DONE]"

// Flusher is the subset of http.Flusher the emitter needs.
type Flusher interface {
	Flush()
}

// Emitter writes the client-facing event stream: zero or more delta events,
// exactly one final event, then the end-of-stream sentinel. A mid-stream
// failure is reported as a single error event instead; already-flushed deltas
// stay with the client either way.
type Emitter struct {
	w     io.Writer
	flush Flusher
	done  bool
}

// NewEmitter создает эмиттер событий поверх подготовленного SSE-соединения.
func NewEmitter(w io.Writer, flush Flusher) *Emitter {
	return &Emitter{w: w, flush: flush}
}

type deltaEvent struct {
	Delta string `json:"delta"`
}

type finalEvent struct {
	Final string `json:"final"`
}

type errorEvent struct {
	Error string `json:"error"`
}

// Delta emits one incremental text fragment, unbuffered.
func (e *Emitter) Delta(text string) error {
	return e.send(deltaEvent{Delta: text})
}

// Final emits the normalized full document.
func (e *Emitter) Final(text string) error {
	return e.send(finalEvent{Final: text})
}

// Error emits one in-band error event.
func (e *Emitter) Error(err error) error {
	return e.send(errorEvent{Error: err.Error()})
}

// Done emits the end-of-stream sentinel. Subsequent events are dropped.
func (e *Emitter) Done() error {
	if e.done {
		return nil
	}
	e.done = true
	return e.write(doneSentinel)
}

func (e *Emitter) send(event any) error {
	if e.done {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return e.write(string(payload))
}

func (e *Emitter) write(data string) error {
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if e.flush != nil {
		e.flush.Flush()
	}
	return nil
}
