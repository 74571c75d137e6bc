// cmd/neex-review/main.go
//
// Entry point for the contract review CLI.
//
// Flow:
// 1. Load the extracted contract (JSON or YAML) named by -file
// 2. Initialize the .neex project directory and config
// 3. Run the review either headless (scripted checkpoint decisions) or
//    through the interactive checkpoint console

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/neexlegal/neex-review/internal/advisor"
	"github.com/neexlegal/neex-review/internal/clause"
	"github.com/neexlegal/neex-review/internal/config"
	"github.com/neexlegal/neex-review/internal/logbook"
	"github.com/neexlegal/neex-review/internal/review"
	"github.com/neexlegal/neex-review/internal/session"
	"github.com/neexlegal/neex-review/internal/tui"
)

func main() {
	contractFile := flag.String("file", "", "extracted contract document (JSON or YAML)")
	projectDir := flag.String("project", "", "path to the project directory (defaults to cwd)")
	headless := flag.Bool("headless", false, "run without the interactive console")
	decisions := flag.String("decisions", "", "comma-separated checkpoint decisions for headless runs (continue, modify, abort)")
	flag.Parse()

	// Load .env file (ignore error if not found)
	_ = godotenv.Load()

	project := strings.TrimSpace(*projectDir)
	if project == "" {
		project = os.Getenv("NEEX_PROJECT_DIR")
	}
	if project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
		project = cwd
	}
	absoluteProject, err := filepath.Abs(project)
	if err != nil {
		die("resolve project dir: %v", err)
	}
	if err := config.InitNeexDir(absoluteProject); err != nil {
		die("init .neex: %v", err)
	}
	cfg, err := config.NewConfig(absoluteProject)
	if err != nil {
		die("load config: %v", err)
	}
	book, err := logbook.New(filepath.Join(cfg.LogsDir(), "review.log"))
	if err != nil {
		die("open logbook: %v", err)
	}
	orch, err := session.NewOrchestrator(cfg, book)
	if err != nil {
		die("load negotiation rules: %v", err)
	}

	if strings.TrimSpace(*contractFile) == "" {
		die("-file is required")
	}
	doc, err := clause.LoadDocument(*contractFile)
	if err != nil {
		die("load contract: %v", err)
	}

	if *headless {
		runHeadless(cfg, orch, doc, parseDecisions(*decisions))
		return
	}

	p := tea.NewProgram(
		tui.NewApp(cfg, book, orch, doc),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		die("run console: %v", err)
	}
}

// runHeadless drives a session with a scripted decision per checkpoint.
// When the script runs out, remaining checkpoints continue unmodified.
func runHeadless(cfg *config.Config, orch *session.Orchestrator, doc *clause.Document, script []session.Decision) {
	handle, runErr := orch.Start(doc.Clauses, doc.Features)
	if handle == "" {
		die("start session: %v", runErr)
	}

	next := 0
	for {
		status, err := orch.Status(handle)
		if err != nil {
			die("session status: %v", err)
		}
		if status.State.Terminal() {
			break
		}
		if status.State != review.StatePaused {
			die("session settled in unexpected state %s", status.State)
		}

		decision := session.DecisionContinue
		if next < len(script) {
			decision = script[next]
			next++
		}
		fmt.Fprintf(os.Stderr, "checkpoint %d at clause %d: %s\n",
			status.Checkpoints, status.ClausesProcessed, decision)

		cont := session.Continuation{Decision: decision}
		if decision == session.DecisionModify {
			rules, err := advisor.LoadRules(cfg.RulesDir())
			if err != nil {
				die("reload rules: %v", err)
			}
			cont.Rules = rules
		}
		if err := orch.Resume(handle, cont); err != nil && !isSessionOutcome(err) {
			die("resume session: %v", err)
		}
	}

	summary, err := orch.Summary(handle)
	if err != nil {
		die("session summary: %v", err)
	}
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		die("encode summary: %v", err)
	}
	fmt.Println(string(payload))

	status, err := orch.Status(handle)
	if err != nil {
		die("session status: %v", err)
	}
	if status.State == review.StateAborted {
		fmt.Fprintf(os.Stderr, "session aborted: %s\n", status.AbortCause)
		os.Exit(2)
	}
}

// isSessionOutcome filters the errors Resume reports when the session
// itself ends (threshold aborts, reviewer abort decisions) from genuine
// protocol failures that should kill the CLI.
func isSessionOutcome(err error) bool {
	if err == nil {
		return true
	}
	var proto *review.CheckpointProtocolError
	return !errors.As(err, &proto)
}

func parseDecisions(raw string) []session.Decision {
	var script []session.Decision
	for _, part := range strings.Split(raw, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "":
			continue
		case "continue", "c":
			script = append(script, session.DecisionContinue)
		case "modify", "m", "modify-and-continue":
			script = append(script, session.DecisionModify)
		case "abort", "a":
			script = append(script, session.DecisionAbort)
		default:
			die("unknown decision %q (want continue, modify, or abort)", part)
		}
	}
	return script
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
