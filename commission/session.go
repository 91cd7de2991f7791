package commission

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session holds the statement lines a user is staging before committing a
// reconciliation. One session belongs to one user interaction; it is passed
// around explicitly and never shared through package state.
type Session struct {
	ID            string
	StatementDate Date
	CreatedAt     time.Time

	mu    sync.Mutex
	lines []StatementLine
}

func NewSession(statementDate Date, now time.Time) *Session {
	return &Session{
		ID:            uuid.NewString(),
		StatementDate: statementDate,
		CreatedAt:     now,
	}
}

// Add stages a line and returns its index.
func (s *Session) Add(line StatementLine) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	return len(s.lines) - 1
}

// Remove drops the line at index i.
func (s *Session) Remove(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.lines) {
		return ErrLineIndexOutOfRange
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	return nil
}

// Lines returns a copy of the staged lines.
func (s *Session) Lines() []StatementLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StatementLine(nil), s.lines...)
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Clear drops every staged line.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

// Batch returns the staged lines with the session statement date filled
// in where a line has none.
func (s *Session) Batch() []StatementLine {
	lines := s.Lines()
	for i := range lines {
		if lines[i].StatementDate.IsZero() {
			lines[i].StatementDate = s.StatementDate
		}
	}
	return lines
}
