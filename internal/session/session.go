// Package session hosts the review orchestrator: it assembles the stage
// pipeline, walks a contract clause by clause, enforces the mandatory
// checkpoint pauses, applies the error-recovery policy, and persists
// resumable snapshots. Sessions are isolated; parallelism across sessions
// is safe, within a session processing is strictly sequential in document
// order because the checkpoint counters are session-global.
package session

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/neexlegal/neex-review/internal/advisor"
	"github.com/neexlegal/neex-review/internal/clause"
	"github.com/neexlegal/neex-review/internal/config"
	"github.com/neexlegal/neex-review/internal/logbook"
	"github.com/neexlegal/neex-review/internal/review"
	"github.com/neexlegal/neex-review/internal/stage"
)

// Abort thresholds for the error-recovery policy: a run of consecutive
// clauses with recoverable failures, or too many recoverable errors over
// the whole session, forces an abort. Non-recoverable failures abort
// immediately regardless.
const (
	maxConsecutiveFailures = 3
	maxRecoverableErrors   = 5
)

// Session is one contract review in flight. All mutation happens under
// the owning orchestrator's lock; concurrent readers use Snapshot, which
// is published as an atomic whole so no torn state is ever observable.
type Session struct {
	id    string
	state review.State

	ctx      *review.Context
	pipeline stage.Pipeline
	engine   *advisor.Engine

	checkpoint config.CheckpointConfig

	// pos is the index of the next unprocessed clause.
	pos          int
	clausesSince int
	tokensSince  int

	// consecutiveFailures counts clauses in a row that logged at least one
	// recoverable error; any clean clause resets it.
	consecutiveFailures int

	abortCause string

	snapshot atomic.Pointer[review.Context]

	store *Store
	book  *logbook.Logbook
	now   func() time.Time
}

// Status is the externally visible position of a session.
type Status struct {
	SessionID        string       `json:"session_id"`
	State            review.State `json:"state"`
	TotalClauses     int          `json:"total_clauses"`
	ClausesProcessed int          `json:"clauses_processed"`
	TokensProcessed  int          `json:"tokens_processed"`
	ClausesSince     int          `json:"clauses_since_checkpoint"`
	TokensSince      int          `json:"tokens_since_checkpoint"`
	Checkpoints      int          `json:"checkpoints"`
	Errors           int          `json:"errors"`
	AbortCause       string       `json:"abort_cause,omitempty"`
}

// ID returns the session handle.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the last atomically published context clone. Safe for
// concurrent use while the pipeline advances.
func (s *Session) Snapshot() *review.Context {
	return s.snapshot.Load()
}

func (s *Session) status() Status {
	return Status{
		SessionID:        s.id,
		State:            s.state,
		TotalClauses:     len(s.ctx.Clauses),
		ClausesProcessed: s.ctx.ClausesProcessed,
		TokensProcessed:  s.ctx.TokensProcessed,
		ClausesSince:     s.clausesSince,
		TokensSince:      s.tokensSince,
		Checkpoints:      len(s.ctx.Checkpoints),
		Errors:           len(s.ctx.Errors),
		AbortCause:       s.abortCause,
	}
}

// advance drives the pipeline until the session pauses, completes, or
// aborts. It is the only place clauses are consumed; checkpoint evaluation
// happens strictly between whole-clause boundaries.
func (s *Session) advance() error {
	for s.state == review.StateRunning && s.pos < len(s.ctx.Clauses) {
		cl := s.ctx.Clauses[s.pos]

		clauseFailed, err := s.processClause(cl)
		if err != nil {
			s.abort(err.Error())
			return err
		}

		tokens := clause.TokenCount(cl.Text)
		s.ctx.ClausesProcessed++
		s.ctx.TokensProcessed += tokens
		s.clausesSince++
		s.tokensSince += tokens
		s.pos++

		if clauseFailed {
			s.consecutiveFailures++
		} else {
			s.consecutiveFailures = 0
		}

		s.publish()

		if s.consecutiveFailures >= maxConsecutiveFailures {
			s.abort(fmt.Sprintf("%d consecutive clauses failed", s.consecutiveFailures))
			return nil
		}
		if len(s.ctx.Errors) >= maxRecoverableErrors {
			s.abort(fmt.Sprintf("%d recoverable errors in one session", len(s.ctx.Errors)))
			return nil
		}

		// A fully processed document completes even when a checkpoint
		// threshold was reached on the final clause.
		if s.pos == len(s.ctx.Clauses) {
			return s.complete()
		}
		if s.clausesSince >= s.checkpoint.ClauseInterval {
			s.pause(cl.ID, review.ReasonClauseCount)
			return nil
		}
		if s.tokensSince >= s.checkpoint.TokenBudget {
			s.pause(cl.ID, review.ReasonTokenBudget)
			return nil
		}
	}
	return nil
}

// processClause runs every stage over one clause. Recoverable stage
// failures are logged and absorbed; the bool result reports whether any
// occurred. A returned error is fatal for the session.
func (s *Session) processClause(cl clause.Clause) (bool, error) {
	failed := false
	for _, st := range s.pipeline.Stages() {
		before := stage.Observe(s.ctx)
		runErr := st.Run(s.ctx, cl)

		if auditErr := stage.Audit(st, before, stage.Observe(s.ctx)); auditErr != nil {
			s.book.Error(s.id, "clause %d: %v", cl.ID, auditErr)
			return failed, auditErr
		}

		if runErr == nil {
			continue
		}
		var se *review.StageError
		if errors.As(runErr, &se) && se.Recoverable {
			failed = true
			s.ctx.RecordError(cl.ID, se.Stage, se.Cause, s.now())
			s.book.Warn(s.id, "clause %d: stage %s recovered: %v", cl.ID, se.Stage, se.Cause)
			continue
		}
		s.book.Error(s.id, "clause %d: %v", cl.ID, runErr)
		return failed, runErr
	}
	return failed, nil
}

// pause suspends the session at a clause boundary and emits the
// checkpoint record. The pause is a hard suspension point: processing
// resumes only on an explicit external decision.
func (s *Session) pause(clauseID int, reason review.CheckpointReason) {
	s.state = review.StatePaused
	record := review.CheckpointRecord{
		Seq:              len(s.ctx.Checkpoints) + 1,
		ClauseID:         clauseID,
		ClausesProcessed: s.ctx.ClausesProcessed,
		TokensProcessed:  s.ctx.TokensProcessed,
		Reason:           reason,
		SnapshotRef:      s.store.Path(s.id),
		At:               s.now(),
	}
	s.ctx.Checkpoints = append(s.ctx.Checkpoints, record)
	s.publish()
	s.persist()
	s.book.Info(s.id, "checkpoint %d at clause %d (%s): %d clauses, %d tokens",
		record.Seq, clauseID, reason, s.ctx.ClausesProcessed, s.ctx.TokensProcessed)
}

// complete finishes the session, verifying the no-orphaned-clauses
// invariant and ranking the accumulated recommendations.
func (s *Session) complete() error {
	if err := s.ctx.CheckComplete(s.ctx.ClausesProcessed); err != nil {
		s.abort(err.Error())
		return err
	}
	s.ctx.RankRecommendations()
	s.state = review.StateCompleted
	s.publish()
	s.persist()
	summary := s.ctx.Summarize()
	s.book.Info(s.id, "completed: %d clauses, %d tokens, document risk %s, %d recommendations",
		summary.ClausesProcessed, summary.TokensProcessed, summary.DocumentRisk, len(s.ctx.Recommendations))
	return nil
}

// abort terminates the session, preserving the partial context for
// retrieval.
func (s *Session) abort(cause string) {
	s.state = review.StateAborted
	s.abortCause = cause
	s.publish()
	s.persist()
	s.book.Error(s.id, "aborted after clause %d: %s", s.lastClauseID(), cause)
}

func (s *Session) lastClauseID() int {
	if s.pos == 0 {
		return 0
	}
	return s.ctx.Clauses[s.pos-1].ID
}

// publish swaps in a fresh deep copy as the readable snapshot.
func (s *Session) publish() {
	s.snapshot.Store(s.ctx.Clone())
}

// persist writes the resumable record. Persistence failures are logged,
// not fatal: the in-memory session stays authoritative.
func (s *Session) persist() {
	rec := Record{
		SessionID:    s.id,
		State:        s.state,
		Position:     s.pos,
		ClausesSince: s.clausesSince,
		TokensSince:  s.tokensSince,
		Context:      s.ctx,
		SavedAt:      s.now(),
	}
	if err := s.store.Save(rec); err != nil {
		s.book.Warn(s.id, "persist snapshot: %v", err)
	}
}
