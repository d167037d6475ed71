package llm

import "sync"

// TokenSummary accumulates reported token usage across completions. The
// counters are advisory telemetry only; nothing branches on them.
type TokenSummary struct {
	mu     sync.Mutex
	input  int64
	output int64
}

func (s *TokenSummary) Add(input, output int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input += input
	s.output += output
}

func (s *TokenSummary) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = 0
	s.output = 0
}

func (s *TokenSummary) Totals() (input, output int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input, s.output
}
