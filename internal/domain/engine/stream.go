package engine

import (
	"context"
	"sync"
)

// Stream is a single-consumption sequence of segments produced by a
// transcription in progress. Producers emit from their own goroutine; the
// consumer drains with Next and checks Err once the stream is exhausted.
type Stream struct {
	ch chan Segment

	mu  sync.Mutex
	err error
}

// NewStream creates a stream with a small buffer so producers stay slightly
// ahead of slow clients without materializing the transcript.
func NewStream() *Stream {
	return &Stream{ch: make(chan Segment, 16)}
}

// Emit delivers a segment to the consumer, aborting when ctx is done.
// It reports false when the producer should stop.
func (s *Stream) Emit(ctx context.Context, seg Segment) bool {
	select {
	case s.ch <- seg:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close ends the stream, recording a terminal error if any.
func (s *Stream) Close(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	close(s.ch)
}

// Next returns the next segment; ok is false once the stream is exhausted.
func (s *Stream) Next() (seg Segment, ok bool) {
	seg, ok = <-s.ch
	return seg, ok
}

// Err returns the terminal error, if the producer failed mid-stream.
// Only meaningful after Next has returned ok == false.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Collect drains the remainder of the stream into a slice. Intended for
// tests and for the one output format that requires full buffering.
func (s *Stream) Collect() ([]Segment, error) {
	var segments []Segment
	for {
		seg, ok := s.Next()
		if !ok {
			return segments, s.Err()
		}
		segments = append(segments, seg)
	}
}
