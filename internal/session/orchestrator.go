package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neexlegal/neex-review/internal/advisor"
	"github.com/neexlegal/neex-review/internal/analyzer"
	"github.com/neexlegal/neex-review/internal/clause"
	"github.com/neexlegal/neex-review/internal/config"
	"github.com/neexlegal/neex-review/internal/logbook"
	"github.com/neexlegal/neex-review/internal/review"
	"github.com/neexlegal/neex-review/internal/risk"
	"github.com/neexlegal/neex-review/internal/stage"
)

// Decision is the continuation choice supplied at a checkpoint.
type Decision string

const (
	DecisionContinue Decision = "continue"
	DecisionAbort    Decision = "abort"
	DecisionModify   Decision = "modify-and-continue"
)

// Continuation carries the checkpoint decision. For DecisionModify, Rules
// replaces the active negotiation rule set for the remaining clauses;
// already-processed clauses keep their existing recommendations.
type Continuation struct {
	Decision Decision
	Rules    []advisor.Rule
}

// Orchestrator owns all review sessions in a process. Sessions share no
// mutable state with each other, so distinct sessions may run from
// different goroutines; each individual session is advanced under the
// orchestrator lock, strictly in document order.
type Orchestrator struct {
	cfg   *config.Config
	book  *logbook.Logbook
	store *Store
	rules []advisor.Rule

	mu       sync.Mutex
	sessions map[string]*Session

	now   func() time.Time
	newID func() string
}

// NewOrchestrator loads the negotiation rule set and prepares the session
// registry. The configuration is immutable from here on; every session
// started by this orchestrator sees the same weights, thresholds, and tag
// set.
func NewOrchestrator(cfg *config.Config, book *logbook.Logbook) (*Orchestrator, error) {
	rules, err := advisor.LoadRules(cfg.RulesDir())
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:      cfg,
		book:     book,
		store:    NewStore(cfg.SessionsDir()),
		rules:    rules,
		sessions: map[string]*Session{},
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// SetClock overrides the timestamp source for deterministic tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now = now
}

// Rules returns the rule set active for newly started sessions.
func (o *Orchestrator) Rules() []advisor.Rule {
	return append([]advisor.Rule{}, o.rules...)
}

// Start validates the clause sequence, assembles a fresh pipeline, and
// processes clauses until the first checkpoint, completion, or abort. The
// returned handle stays valid for Status, Resume, and Result regardless
// of where processing stopped.
func (o *Orchestrator) Start(clauses []clause.Clause, features map[int]clause.Features) (string, error) {
	if err := clause.ValidateSequence(clauses); err != nil {
		return "", err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.newID()
	engine := advisor.NewEngine(o.rules)
	pipeline, err := stage.Assemble(
		analyzer.New(o.cfg),
		risk.New(o.cfg),
		engine,
	)
	if err != nil {
		return "", err
	}

	s := &Session{
		id:         id,
		state:      review.StateRunning,
		ctx:        review.NewContext(id, clauses, features),
		pipeline:   pipeline,
		engine:     engine,
		checkpoint: o.cfg.Review.Checkpoint,
		store:      o.store,
		book:       o.book,
		now:        o.now,
	}
	s.publish()
	o.sessions[id] = s

	o.book.Info(id, "session started: %d clauses, %d rules", len(clauses), len(o.rules))
	if err := s.advance(); err != nil {
		return id, err
	}
	return id, nil
}

// Status reports the current position of a session.
func (o *Orchestrator) Status(handle string) (Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[handle]
	if !ok {
		return Status{}, review.ErrSessionNotFound
	}
	return s.status(), nil
}

// Resume applies a continuation decision to a paused session. Counters
// since the last checkpoint reset to zero on continue, and processing
// picks up at the first unprocessed clause, never from the start.
func (o *Orchestrator) Resume(handle string, cont Continuation) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[handle]
	if !ok {
		return review.ErrSessionNotFound
	}
	if s.state == review.StateAborted {
		return review.ErrSessionAborted
	}
	if s.state != review.StatePaused {
		return &review.CheckpointProtocolError{Op: "resume", State: s.state}
	}

	switch cont.Decision {
	case DecisionAbort:
		s.abort("reviewer decision at checkpoint")
		return nil
	case DecisionModify:
		if len(cont.Rules) == 0 {
			return &review.CheckpointProtocolError{Op: "resume with empty rule set", State: s.state}
		}
		normalized := make([]advisor.Rule, 0, len(cont.Rules))
		for _, rule := range cont.Rules {
			if err := rule.Validate(); err != nil {
				return fmt.Errorf("session: continuation rules: %w", err)
			}
			normalized = append(normalized, rule.Normalized())
		}
		s.engine.SetRules(normalized)
		o.book.Info(handle, "rule set replaced at checkpoint: %d rules", len(cont.Rules))
	case DecisionContinue:
	default:
		return &review.CheckpointProtocolError{Op: "resume without decision", State: s.state}
	}

	s.state = review.StateRunning
	s.clausesSince = 0
	s.tokensSince = 0
	o.book.Info(handle, "resumed at clause index %d", s.pos)
	return s.advance()
}

// Result returns the finished analysis context for a terminal session.
// Aborted sessions yield their preserved partial context; retrieving it is
// the one operation an abort does not forbid.
func (o *Orchestrator) Result(handle string) (*review.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[handle]
	if !ok {
		return nil, review.ErrSessionNotFound
	}
	if !s.state.Terminal() {
		return nil, &review.CheckpointProtocolError{Op: "result", State: s.state}
	}
	return s.Snapshot(), nil
}

// Summary condenses a session for the reporting collaborator. Unlike
// Result it is available in any state, reflecting progress so far.
func (o *Orchestrator) Summary(handle string) (review.Summary, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[handle]
	if !ok {
		return review.Summary{}, review.ErrSessionNotFound
	}
	return s.Snapshot().Summarize(), nil
}

// Session exposes a live session for snapshot readers such as the TUI.
func (o *Orchestrator) Session(handle string) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[handle]
	if !ok {
		return nil, review.ErrSessionNotFound
	}
	return s, nil
}

// Reopen rehydrates a persisted session from disk, typically after a
// process restart. A snapshot persisted mid-run is restored as paused so
// the checkpoint protocol still gates further processing.
func (o *Orchestrator) Reopen(handle string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.sessions[handle]; exists {
		return nil
	}
	rec, err := o.store.Load(handle)
	if err != nil {
		return err
	}
	if rec.Context == nil {
		return fmt.Errorf("session: snapshot %s has no context", handle)
	}

	state := rec.State
	if state == review.StateRunning {
		state = review.StatePaused
		o.book.Warn(handle, "snapshot was persisted mid-run; restored as paused")
	}

	engine := advisor.NewEngine(o.rules)
	pipeline, err := stage.Assemble(
		analyzer.New(o.cfg),
		risk.New(o.cfg),
		engine,
	)
	if err != nil {
		return err
	}

	s := &Session{
		id:           handle,
		state:        state,
		ctx:          rec.Context,
		pipeline:     pipeline,
		engine:       engine,
		checkpoint:   o.cfg.Review.Checkpoint,
		pos:          rec.Position,
		clausesSince: rec.ClausesSince,
		tokensSince:  rec.TokensSince,
		store:        o.store,
		book:         o.book,
		now:          o.now,
	}
	s.publish()
	o.sessions[handle] = s
	o.book.Info(handle, "session reopened in state %s at clause index %d", state, rec.Position)
	return nil
}
