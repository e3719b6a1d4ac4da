package engine

import "sync/atomic"

// Sequence numbers the mutations of one plan, starting at 1. A mutation's
// number is its dispatch order and feeds its id.
type Sequence struct {
	n atomic.Int64
}

// NewSequence returns a sequence whose first number is 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next hands out the next number.
func (s *Sequence) Next() int64 {
	return s.n.Add(1)
}

// Last returns the most recent number handed out, or 0.
func (s *Sequence) Last() int64 {
	return s.n.Load()
}
