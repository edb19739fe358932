package device

import (
	"context"
	"sync"
	"time"
)

// SimSession is an in-memory device double. Commands append to a
// transcript; scripted outputs, state effects, failures and timeouts are
// registered per command string. Safe for concurrent use.
type SimSession struct {
	name string

	mu          sync.Mutex
	responses   map[string]func(state map[string]string) string
	effects     map[string]map[string]string // command -> field sets
	clears      map[string][]string          // command -> fields removed
	failures    map[string]int               // command -> remaining injected failures
	timeouts    map[string]bool
	state       map[string]string
	transcript  []string
	unreachable bool
}

// NewSimSession creates an empty simulator for the named device.
func NewSimSession(name string) *SimSession {
	return &SimSession{
		name:      name,
		responses: make(map[string]func(map[string]string) string),
		effects:   make(map[string]map[string]string),
		clears:    make(map[string][]string),
		failures:  make(map[string]int),
		timeouts:  make(map[string]bool),
		state:     make(map[string]string),
	}
}

func (s *SimSession) Device() string { return s.name }

// Respond scripts a fixed output for a command.
func (s *SimSession) Respond(command, output string) {
	s.RespondFunc(command, func(map[string]string) string { return output })
}

// RespondFunc scripts an output rendered from the current state, so
// verification output can track applied and rolled-back fields.
func (s *SimSession) RespondFunc(command string, render func(state map[string]string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[command] = render
}

// OnCommand registers field values the command writes when executed.
func (s *SimSession) OnCommand(command string, sets map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.effects[command] = sets
}

// OnCommandClear registers fields the command removes when executed.
func (s *SimSession) OnCommandClear(command string, fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears[command] = fields
}

// FailTimes makes the next n executions of the command fail.
func (s *SimSession) FailTimes(command string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[command] = n
}

// TimeoutOn makes every execution of the command time out.
func (s *SimSession) TimeoutOn(command string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeouts[command] = true
}

// SetUnreachable toggles reachability.
func (s *SimSession) SetUnreachable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreachable = v
}

// SetState seeds one observable field.
func (s *SimSession) SetState(field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[field] = value
}

// Snapshot copies the observable state for field-by-field comparison.
func (s *SimSession) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.state))
	for k, v := range s.state {
		out[k] = v
	}
	return out
}

// Transcript returns the executed commands in order.
func (s *SimSession) Transcript() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.transcript...)
}

// Count returns how many times a command was executed.
func (s *SimSession) Count(command string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.transcript {
		if c == command {
			n++
		}
	}
	return n
}

func (s *SimSession) Execute(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return ExecResult{Status: StatusFailed}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = append(s.transcript, command)

	if s.timeouts[command] {
		return ExecResult{Status: StatusTimeout}, nil
	}
	if s.failures[command] > 0 {
		s.failures[command]--
		return ExecResult{Status: StatusFailed, Output: "% Invalid input detected"}, nil
	}

	for field, value := range s.effects[command] {
		s.state[field] = value
	}
	for _, field := range s.clears[command] {
		delete(s.state, field)
	}

	out := ""
	if render, ok := s.responses[command]; ok {
		out = render(s.state)
	}
	return ExecResult{Status: StatusOK, Output: out}, nil
}

func (s *SimSession) IsReachable(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.unreachable
}
