package history

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNoScope is returned when a history action is attempted with no
	// document selected.
	ErrNoScope = errors.New("no document scope selected")

	// ErrBusy is returned when a history action is attempted while another
	// one is still in flight.
	ErrBusy = errors.New("operation already in progress")
)

// Context carries values produced by a step into the matching inverse step.
// The only value that has to survive the hop today is the confirmed id a
// remote create produced, so the inverse delete can target it.
type Context struct {
	ID string
}

// Result is the outcome of running one step. Expected failures (remote
// errors after a revert) come back as Success=false with Err set; they are
// not returned as Go errors so callers can surface them without unwinding.
type Result struct {
	Success bool
	Err     error
	Context Context

	// Discard reports that the step completed but left nothing behind to
	// undo, e.g. a create that resolved after its placeholder had already
	// been cancelled. The engine records nothing for a discarded result.
	Discard bool
}

// Step is one reversible unit of work. Execute receives the Context captured
// from the last run of its inverse.
type Step interface {
	Execute(ctx context.Context, prev Context) Result
}

// StepFunc adapts a function to the Step interface.
type StepFunc func(ctx context.Context, prev Context) Result

func (f StepFunc) Execute(ctx context.Context, prev Context) Result {
	return f(ctx, prev)
}

// Command pairs a step with its inverse. Undo runs Backward; the entry
// pushed onto the redo stack swaps the pair again, so redo re-runs Forward.
type Command struct {
	Forward  Step
	Backward Step
}

func (c Command) inverse() Command {
	return Command{Forward: c.Backward, Backward: c.Forward}
}

type entry struct {
	cmd Command
	ctx Context
}

type scope struct {
	undo []entry
	redo []entry
}

// Engine keeps one undo/redo stack pair per document and serializes all
// history actions through a single busy flag: a second action arriving while
// one is awaiting its remote call is rejected, never queued.
type Engine struct {
	mu     sync.Mutex
	busy   bool
	active string
	scopes map[string]*scope
}

func NewEngine() *Engine {
	return &Engine{scopes: make(map[string]*scope)}
}

// SetScope switches the active document. Stacks of inactive documents are
// retained; commands are never valid across scopes. An empty id deselects.
func (e *Engine) SetScope(fileID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = fileID
}

func (e *Engine) ActiveScope() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.scopes[e.active]
	return e.active != "" && s != nil && len(s.undo) > 0
}

func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.scopes[e.active]
	return e.active != "" && s != nil && len(s.redo) > 0
}

// Execute runs a command's forward step. On success it pushes the inverse
// onto the active scope's undo stack and clears the redo stack.
func (e *Engine) Execute(ctx context.Context, cmd Command) (Result, error) {
	s, err := e.acquire()
	if err != nil {
		return Result{}, err
	}
	defer e.release()

	res := cmd.Forward.Execute(ctx, Context{})
	if !res.Success || res.Discard {
		return res, nil
	}

	e.mu.Lock()
	s.undo = append(s.undo, entry{cmd: cmd.inverse(), ctx: res.Context})
	s.redo = nil
	e.mu.Unlock()
	return res, nil
}

// Undo runs the inverse of the most recent command with the context captured
// when it was pushed. A failed step leaves both stacks exactly as they were.
// With an empty undo stack it is a no-op returning the zero Result.
func (e *Engine) Undo(ctx context.Context) (Result, error) {
	return e.step(ctx, func(s *scope) (*[]entry, *[]entry) { return &s.undo, &s.redo })
}

// Redo mirrors Undo against the redo stack.
func (e *Engine) Redo(ctx context.Context) (Result, error) {
	return e.step(ctx, func(s *scope) (*[]entry, *[]entry) { return &s.redo, &s.undo })
}

func (e *Engine) step(ctx context.Context, pick func(*scope) (from, to *[]entry)) (Result, error) {
	s, err := e.acquire()
	if err != nil {
		return Result{}, err
	}
	defer e.release()

	e.mu.Lock()
	from, to := pick(s)
	if len(*from) == 0 {
		e.mu.Unlock()
		return Result{}, nil
	}
	top := (*from)[len(*from)-1]
	e.mu.Unlock()

	res := top.cmd.Forward.Execute(ctx, top.ctx)
	if !res.Success {
		return res, nil
	}

	e.mu.Lock()
	*from = (*from)[:len(*from)-1]
	*to = append(*to, entry{cmd: top.cmd.inverse(), ctx: res.Context})
	e.mu.Unlock()
	return res, nil
}

func (e *Engine) acquire() (*scope, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == "" {
		return nil, ErrNoScope
	}
	if e.busy {
		return nil, ErrBusy
	}
	s := e.scopes[e.active]
	if s == nil {
		s = &scope{}
		e.scopes[e.active] = s
	}
	e.busy = true
	return s, nil
}

func (e *Engine) release() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}
