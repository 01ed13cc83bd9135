// Package capture tees written output while remembering the last lines of
// it, so a trial can keep the tail of a run's console output without holding
// the whole stream.
package capture

import (
	"bytes"
	"io"
	"sync"
)

// Ring is an io.Writer that forwards everything to a destination and keeps
// the most recent lines in a fixed-size ring.
type Ring struct {
	mu      sync.Mutex
	dst     io.Writer
	lines   []string
	next    int
	full    bool
	partial bytes.Buffer
}

// New returns a ring keeping the last n lines. dst may be nil to only
// capture.
func New(dst io.Writer, n int) *Ring {
	if n <= 0 {
		n = 1
	}
	return &Ring{dst: dst, lines: make([]string, n)}
}

func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	rest := p
	for len(rest) > 0 {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			r.partial.Write(rest)
			break
		}
		r.partial.Write(rest[:i])
		r.push(r.partial.String())
		r.partial.Reset()
		rest = rest[i+1:]
	}
	r.mu.Unlock()

	if r.dst == nil {
		return len(p), nil
	}
	return r.dst.Write(p)
}

// push assumes the lock is held.
func (r *Ring) push(line string) {
	r.lines[r.next] = line
	r.next++
	if r.next == len(r.lines) {
		r.next = 0
		r.full = true
	}
}

// Lines snapshots the captured tail in order, including an unterminated
// trailing line.
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	if r.full {
		out = append(out, r.lines[r.next:]...)
		out = append(out, r.lines[:r.next]...)
	} else {
		out = append(out, r.lines[:r.next]...)
	}
	if r.partial.Len() > 0 {
		out = append(out, r.partial.String())
	}
	return out
}
