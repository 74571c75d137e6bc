package session

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neexlegal/neex-review/internal/advisor"
	"github.com/neexlegal/neex-review/internal/clause"
	"github.com/neexlegal/neex-review/internal/config"
	"github.com/neexlegal/neex-review/internal/logbook"
	"github.com/neexlegal/neex-review/internal/review"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	return newTestOrchestratorAt(t, dir)
}

func newTestOrchestratorAt(t *testing.T, dir string) *Orchestrator {
	t.Helper()
	cfg := &config.Config{
		ProjectDir:     dir,
		NeexProjectDir: filepath.Join(dir, config.NeexDir),
		Review:         config.DefaultReviewConfig(),
	}
	book, err := logbook.New(filepath.Join(cfg.LogsDir(), "review.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	o, err := NewOrchestrator(cfg, book)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

// makeClauses builds n clauses of roughly 500 tokens each: 222 words plus
// a quarter of the byte length comes to 499.
func makeClauses(n int) []clause.Clause {
	text := strings.TrimSpace(strings.Repeat("word ", 222))
	clauses := make([]clause.Clause, 0, n)
	for i := 1; i <= n; i++ {
		clauses = append(clauses, clause.Clause{ID: i, Text: text})
	}
	return clauses
}

func TestSevenClauseContractPausesTwiceThenCompletes(t *testing.T) {
	o := newTestOrchestrator(t)
	handle, err := o.Start(makeClauses(7), nil)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	st, err := o.Status(handle)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if st.State != review.StatePaused || st.ClausesProcessed != 3 || st.Checkpoints != 1 {
		t.Fatalf("after start: %+v", st)
	}

	s, err := o.Session(handle)
	if err != nil {
		t.Fatal(err)
	}
	cp := s.Snapshot().Checkpoints[0]
	if cp.Reason != review.ReasonClauseCount || cp.ClauseID != 3 {
		t.Fatalf("first checkpoint = %+v", cp)
	}

	if err := o.Resume(handle, Continuation{Decision: DecisionContinue}); err != nil {
		t.Fatalf("first resume: %v", err)
	}
	st, _ = o.Status(handle)
	if st.State != review.StatePaused || st.ClausesProcessed != 6 || st.Checkpoints != 2 {
		t.Fatalf("after first resume: %+v", st)
	}

	if err := o.Resume(handle, Continuation{Decision: DecisionContinue}); err != nil {
		t.Fatalf("second resume: %v", err)
	}
	st, _ = o.Status(handle)
	if st.State != review.StateCompleted || st.ClausesProcessed != 7 {
		t.Fatalf("after second resume: %+v", st)
	}
	// Seven clauses, but only two checkpoints: the final clause completes
	// the session even though the counter reached the threshold again.
	if st.Checkpoints != 2 {
		t.Fatalf("checkpoints = %d, want 2", st.Checkpoints)
	}

	rc, err := o.Result(handle)
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
	if len(rc.Analyses) != 7 || len(rc.Scores) != 7 {
		t.Fatalf("analyses=%d scores=%d, want 7 each", len(rc.Analyses), len(rc.Scores))
	}
}

func TestTokenBudgetTripsBeforeClauseCount(t *testing.T) {
	o := newTestOrchestrator(t)
	// Each clause is about 1600 tokens, so two clauses exceed the 3000
	// token budget before the three-clause interval is reached.
	text := strings.TrimSpace(strings.Repeat("word ", 712))
	clauses := []clause.Clause{
		{ID: 1, Text: text}, {ID: 2, Text: text}, {ID: 3, Text: text},
	}
	handle, err := o.Start(clauses, nil)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	st, _ := o.Status(handle)
	if st.State != review.StatePaused || st.ClausesProcessed != 2 {
		t.Fatalf("after start: %+v", st)
	}
	s, _ := o.Session(handle)
	if reason := s.Snapshot().Checkpoints[0].Reason; reason != review.ReasonTokenBudget {
		t.Fatalf("reason = %s, want %s", reason, review.ReasonTokenBudget)
	}
}

func TestResumeResetsCountersAndContinuesForward(t *testing.T) {
	o := newTestOrchestrator(t)
	handle, err := o.Start(makeClauses(5), nil)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	st, _ := o.Status(handle)
	if st.ClausesSince != 3 {
		t.Fatalf("clauses since checkpoint = %d, want 3", st.ClausesSince)
	}
	if err := o.Resume(handle, Continuation{Decision: DecisionContinue}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	st, _ = o.Status(handle)
	// Clauses 4 and 5 processed after the reset, then completion.
	if st.State != review.StateCompleted || st.ClausesProcessed != 5 || st.ClausesSince != 2 {
		t.Fatalf("after resume: %+v", st)
	}
}

func TestAbortDecisionPreservesPartialResults(t *testing.T) {
	o := newTestOrchestrator(t)
	handle, err := o.Start(makeClauses(7), nil)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := o.Resume(handle, Continuation{Decision: DecisionAbort}); err != nil {
		t.Fatalf("abort resume: %v", err)
	}
	st, _ := o.Status(handle)
	if st.State != review.StateAborted {
		t.Fatalf("state = %s, want aborted", st.State)
	}

	// Further processing is refused, retrieval is not.
	if err := o.Resume(handle, Continuation{Decision: DecisionContinue}); !errors.Is(err, review.ErrSessionAborted) {
		t.Fatalf("resume after abort = %v, want ErrSessionAborted", err)
	}
	rc, err := o.Result(handle)
	if err != nil {
		t.Fatalf("Result on aborted session: %v", err)
	}
	if len(rc.Analyses) != 3 || len(rc.Scores) != 3 {
		t.Fatalf("partial results lost: analyses=%d scores=%d", len(rc.Analyses), len(rc.Scores))
	}
}

func TestCheckpointProtocolRejections(t *testing.T) {
	o := newTestOrchestrator(t)
	handle, err := o.Start(makeClauses(2), nil)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	// Two clauses complete without a pause.
	st, _ := o.Status(handle)
	if st.State != review.StateCompleted {
		t.Fatalf("state = %s, want completed", st.State)
	}

	var proto *review.CheckpointProtocolError
	if err := o.Resume(handle, Continuation{Decision: DecisionContinue}); !errors.As(err, &proto) {
		t.Fatalf("resume on completed = %v, want CheckpointProtocolError", err)
	}

	if _, err := o.Status("no-such-handle"); !errors.Is(err, review.ErrSessionNotFound) {
		t.Fatalf("status on unknown handle = %v", err)
	}
	if _, err := o.Result("no-such-handle"); !errors.Is(err, review.ErrSessionNotFound) {
		t.Fatalf("result on unknown handle = %v", err)
	}

	paused, err := o.Start(makeClauses(7), nil)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if _, err := o.Result(paused); !errors.As(err, &proto) {
		t.Fatalf("result on paused session = %v, want CheckpointProtocolError", err)
	}
	if err := o.Resume(paused, Continuation{}); !errors.As(err, &proto) {
		t.Fatalf("resume without decision = %v, want CheckpointProtocolError", err)
	}
}

func TestParseGapIsRecoveredAndLogged(t *testing.T) {
	o := newTestOrchestrator(t)
	clauses := []clause.Clause{
		{ID: 1, Text: "Client shall pay the invoice within 30 days."},
		{ID: 2, Text: "   "},
	}
	handle, err := o.Start(clauses, nil)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	st, _ := o.Status(handle)
	if st.State != review.StateCompleted {
		t.Fatalf("state = %s, want completed", st.State)
	}
	if st.Errors != 1 {
		t.Fatalf("errors = %d, want 1", st.Errors)
	}
	rc, err := o.Result(handle)
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
	analysis, ok := rc.Analyses[2]
	if !ok || !analysis.Defaulted {
		t.Fatalf("expected defaulted analysis for clause 2, got %+v", analysis)
	}
	if _, ok := rc.Scores[2]; !ok {
		t.Fatal("defaulted clause has no risk score")
	}
	if rc.Errors[0].ClauseID != 2 {
		t.Fatalf("error log = %+v", rc.Errors)
	}
}

func TestConsecutiveFailuresAbortSession(t *testing.T) {
	o := newTestOrchestrator(t)
	clauses := []clause.Clause{
		{ID: 1, Text: ""}, {ID: 2, Text: ""}, {ID: 3, Text: ""}, {ID: 4, Text: "never reached"},
	}
	handle, err := o.Start(clauses, nil)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	st, _ := o.Status(handle)
	if st.State != review.StateAborted {
		t.Fatalf("state = %s, want aborted", st.State)
	}
	if !strings.Contains(st.AbortCause, "consecutive") {
		t.Fatalf("abort cause = %q", st.AbortCause)
	}
	if st.ClausesProcessed != 3 {
		t.Fatalf("clauses processed = %d, want 3", st.ClausesProcessed)
	}
}

func TestCumulativeRecoverableErrorsAbortSession(t *testing.T) {
	o := newTestOrchestrator(t)
	// Alternate failing and clean clauses so the consecutive-failure
	// counter keeps resetting; the fifth cumulative error lands on
	// clause 9 and aborts the session there.
	clean := "Notices shall be delivered to the registered addresses."
	var clauses []clause.Clause
	for i := 1; i <= 10; i++ {
		text := clean
		if i%2 == 1 {
			text = ""
		}
		clauses = append(clauses, clause.Clause{ID: i, Text: text})
	}
	handle, err := o.Start(clauses, nil)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	for {
		st, err := o.Status(handle)
		if err != nil {
			t.Fatal(err)
		}
		if st.State != review.StatePaused {
			if st.State != review.StateAborted {
				t.Fatalf("state = %s, want aborted", st.State)
			}
			if st.Errors != 5 || st.ClausesProcessed != 9 {
				t.Fatalf("abort position: %+v", st)
			}
			if !strings.Contains(st.AbortCause, "recoverable errors") {
				t.Fatalf("abort cause = %q", st.AbortCause)
			}
			return
		}
		if err := o.Resume(handle, Continuation{Decision: DecisionContinue}); err != nil {
			t.Fatalf("resume: %v", err)
		}
	}
}

func TestModifyAndContinueSwapsRules(t *testing.T) {
	o := newTestOrchestrator(t)
	text := "Supplier shall indemnify Client against all third-party claims."
	var clauses []clause.Clause
	for i := 1; i <= 6; i++ {
		clauses = append(clauses, clause.Clause{ID: i, Text: text})
	}
	handle, err := o.Start(clauses, nil)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	st, _ := o.Status(handle)
	if st.State != review.StatePaused || st.ClausesProcessed != 3 {
		t.Fatalf("after start: %+v", st)
	}

	inert := advisor.Rule{
		ID: "inert", Name: "Inert", Priority: "Low",
		Conditions:     advisor.Conditions{Contains: []string{"zzz-never-present"}},
		Recommendation: advisor.Template{Type: "flag", SuggestedChange: "unused"},
	}
	if err := o.Resume(handle, Continuation{Decision: DecisionModify, Rules: []advisor.Rule{inert}}); err != nil {
		t.Fatalf("modify resume: %v", err)
	}
	if st, _ := o.Status(handle); st.State != review.StateCompleted {
		t.Fatalf("after modify resume: %+v", st)
	}

	rc, err := o.Result(handle)
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
	// Clauses 1-3 matched the stock indemnification rule before the swap;
	// clauses 4-6 ran against the inert set and produced nothing.
	ids := map[int]bool{}
	for _, rec := range rc.Recommendations {
		if rec.RuleID != "one-sided-indemnification" {
			t.Fatalf("unexpected rule fired: %+v", rec)
		}
		ids[rec.ClauseID] = true
	}
	if len(rc.Recommendations) != 3 || !ids[1] || !ids[2] || !ids[3] {
		t.Fatalf("recommendations = %+v", rc.Recommendations)
	}
}

func TestReopenRestoresPausedSession(t *testing.T) {
	dir := t.TempDir()
	o := newTestOrchestratorAt(t, dir)
	handle, err := o.Start(makeClauses(7), nil)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	st, _ := o.Status(handle)
	if st.State != review.StatePaused {
		t.Fatalf("state = %s, want paused", st.State)
	}

	// Fresh orchestrator over the same project directory, as after a
	// process restart.
	o2 := newTestOrchestratorAt(t, dir)
	if _, err := o2.Status(handle); !errors.Is(err, review.ErrSessionNotFound) {
		t.Fatalf("expected unknown handle before reopen, got %v", err)
	}
	if err := o2.Reopen(handle); err != nil {
		t.Fatalf("Reopen returned error: %v", err)
	}
	st, err = o2.Status(handle)
	if err != nil {
		t.Fatalf("Status after reopen: %v", err)
	}
	if st.State != review.StatePaused || st.ClausesProcessed != 3 {
		t.Fatalf("after reopen: %+v", st)
	}

	if err := o2.Resume(handle, Continuation{Decision: DecisionContinue}); err != nil {
		t.Fatalf("resume after reopen: %v", err)
	}
	st, _ = o2.Status(handle)
	if st.ClausesProcessed != 6 || st.State != review.StatePaused {
		t.Fatalf("after resumed reopen: %+v", st)
	}
}

func TestStartRejectsBadClauseSequence(t *testing.T) {
	o := newTestOrchestrator(t)
	if _, err := o.Start(nil, nil); err == nil {
		t.Fatal("expected error for empty document")
	}
	bad := []clause.Clause{{ID: 2, Text: "a"}, {ID: 1, Text: "b"}}
	if _, err := o.Start(bad, nil); err == nil {
		t.Fatal("expected error for non-increasing ids")
	}
}

func TestSnapshotIsIsolatedFromLiveContext(t *testing.T) {
	o := newTestOrchestrator(t)
	handle, err := o.Start(makeClauses(7), nil)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	s, _ := o.Session(handle)
	snap := s.Snapshot()
	processedBefore := snap.ClausesProcessed

	if err := o.Resume(handle, Continuation{Decision: DecisionContinue}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if snap.ClausesProcessed != processedBefore {
		t.Fatal("published snapshot mutated by later processing")
	}
	if s.Snapshot().ClausesProcessed == processedBefore {
		t.Fatal("new snapshot not published after resume")
	}
}
