package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/neexlegal/neex-review/internal/clause"
	"github.com/neexlegal/neex-review/internal/config"
	"github.com/neexlegal/neex-review/internal/logbook"
	"github.com/neexlegal/neex-review/internal/review"
	"github.com/neexlegal/neex-review/internal/session"
)

func newTestApp(t *testing.T, doc *clause.Document) *App {
	t.Helper()
	projectDir := t.TempDir()
	if err := config.InitNeexDir(projectDir); err != nil {
		t.Fatalf("init neex dir: %v", err)
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	book, err := logbook.New(filepath.Join(cfg.LogsDir(), "review.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	orch, err := session.NewOrchestrator(cfg, book)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return NewApp(cfg, book, orch, doc)
}

// liabilityDoc yields clauses that trip the unlimited-liability rule so
// checkpoints have recommendations to show.
func liabilityDoc(n int) *clause.Document {
	clauses := make([]clause.Clause, n)
	for i := range clauses {
		clauses[i] = clause.Clause{
			ID:   i + 1,
			Text: fmt.Sprintf("Clause %d: the Supplier shall be liable for all damages without exception.", i+1),
		}
	}
	return &clause.Document{Title: "test contract", Clauses: clauses}
}

// drive executes the pipeline commands a model transition produced until
// the session settles, mirroring what the bubbletea runtime would do.
func drive(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("model is not *App")
	}
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			break
		}
		if _, ok := msg.(sessionMsg); !ok {
			break
		}
		next, nextCmd := app.Update(msg)
		app = next.(*App)
		cmd = nextCmd
	}
	return app
}

func press(t *testing.T, app *App, key string) *App {
	t.Helper()
	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return drive(t, model, cmd)
}

func TestStartReviewPausesAtFirstCheckpoint(t *testing.T) {
	app := newTestApp(t, liabilityDoc(7))
	app = drive(t, app, app.startReview())

	if app.state != stateCheckpoint {
		t.Fatalf("state = %d, want checkpoint", app.state)
	}
	if app.status.State != review.StatePaused {
		t.Fatalf("session state = %s, want paused", app.status.State)
	}
	if app.status.ClausesProcessed != 3 {
		t.Fatalf("clauses processed = %d, want 3", app.status.ClausesProcessed)
	}
	if len(app.recList.Items()) == 0 {
		t.Fatal("expected recommendations on the checkpoint screen")
	}
	view := app.View()
	if !strings.Contains(view, "Checkpoint 1") {
		t.Fatalf("view missing checkpoint header:\n%s", view)
	}
}

func TestContinueKeyRunsSessionToCompletion(t *testing.T) {
	app := newTestApp(t, liabilityDoc(7))
	app = drive(t, app, app.startReview())

	for app.state == stateCheckpoint {
		app = press(t, app, "c")
	}
	if app.state != stateSummary {
		t.Fatalf("state = %d, want summary", app.state)
	}
	if app.status.State != review.StateCompleted {
		t.Fatalf("session state = %s, want completed", app.status.State)
	}
	view := app.View()
	if !strings.Contains(view, "Processed 7/7 clauses") {
		t.Fatalf("summary missing clause totals:\n%s", view)
	}
}

func TestAbortKeyEndsWithAbortedSummary(t *testing.T) {
	app := newTestApp(t, liabilityDoc(7))
	app = drive(t, app, app.startReview())

	app = press(t, app, "a")
	if app.state != stateSummary {
		t.Fatalf("state = %d, want summary", app.state)
	}
	if app.status.State != review.StateAborted {
		t.Fatalf("session state = %s, want aborted", app.status.State)
	}
}

func TestPausedSessionAppearsOnReopenScreen(t *testing.T) {
	app := newTestApp(t, liabilityDoc(7))
	app = drive(t, app, app.startReview())
	handle := app.handle

	options := app.persistedSessions()
	found := false
	for _, opt := range options {
		if opt.handle == handle {
			found = true
		}
	}
	if !found {
		t.Fatalf("persisted sessions %v missing handle %s", options, handle)
	}
}

func TestShortContractSkipsCheckpoints(t *testing.T) {
	app := newTestApp(t, liabilityDoc(2))
	app = drive(t, app, app.startReview())

	if app.state != stateSummary {
		t.Fatalf("state = %d, want summary", app.state)
	}
	if app.status.Checkpoints != 0 {
		t.Fatalf("checkpoints = %d, want 0", app.status.Checkpoints)
	}
}
