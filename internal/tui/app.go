// internal/tui/app.go
//
// Interactive checkpoint console for a review session. Built on bubbletea's
// Elm loop:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The pipeline runs inside tea.Cmd goroutines; every Start/Resume call
// returns a sessionMsg once the session reaches its next checkpoint or a
// terminal state, and Update re-reads the published snapshot from there.

package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/neexlegal/neex-review/internal/advisor"
	"github.com/neexlegal/neex-review/internal/clause"
	"github.com/neexlegal/neex-review/internal/config"
	"github.com/neexlegal/neex-review/internal/logbook"
	"github.com/neexlegal/neex-review/internal/review"
	"github.com/neexlegal/neex-review/internal/session"
)

// appState represents which "screen" we're on
type appState int

const (
	stateMainMenu      appState = iota // Main menu: start, reopen, exit
	stateSessionSelect                 // Persisted-session picker for reopen
	stateReviewing                     // Pipeline advancing between checkpoints
	stateCheckpoint                    // Paused at a mandatory review point
	stateSummary                       // Terminal state, final summary
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).MarginBottom(1)
	borderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	stateBadges = map[review.State]lipgloss.Style{
		review.StateRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true),
		review.StatePaused:    lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true),
		review.StateCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true),
		review.StateAborted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
	}

	priorityBadges = map[review.Priority]lipgloss.Style{
		review.PriorityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		review.PriorityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true),
		review.PriorityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")),
		review.PriorityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
)

// sessionMsg is delivered when a Start/Resume/Reopen command finishes,
// i.e. when the session settles into paused, completed, or aborted.
type sessionMsg struct {
	handle string
	err    error
}

// App is the checkpoint console model. It owns no pipeline state of its
// own; everything rendered is read back from the orchestrator's published
// snapshots.
type App struct {
	config  *config.Config
	orch    *session.Orchestrator
	logbook *logbook.Logbook
	doc     *clause.Document

	state  appState
	handle string
	status session.Status

	mainMenu    list.Model
	sessionMenu list.Model
	recList     list.Model

	statusMsg string
	err       error

	width  int
	height int
}

// menuItem implements list.Item interface for our menu items
type menuItem struct {
	title string
	desc  string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// sessionOption is one persisted snapshot offered on the reopen screen.
type sessionOption struct {
	handle string
	desc   string
}

func (o sessionOption) Title() string       { return o.handle }
func (o sessionOption) Description() string { return o.desc }
func (o sessionOption) FilterValue() string { return o.handle }

// recItem is one negotiation recommendation row at a checkpoint.
type recItem struct {
	rec review.Recommendation
}

func (i recItem) Title() string {
	badge := priorityBadges[i.rec.Priority].Render(string(i.rec.Priority))
	title := fmt.Sprintf("%s · Clause %d · %s", badge, i.rec.ClauseID, i.rec.Type)
	if i.rec.GroupID != "" {
		title += faintStyle.Render(" ⊕")
	}
	return title
}

func (i recItem) Description() string {
	desc := i.rec.SuggestedChange
	if i.rec.Rationale != "" {
		desc += " — " + i.rec.Rationale
	}
	return desc
}

func (i recItem) FilterValue() string { return i.rec.SuggestedChange }

// NewApp wires the console around an orchestrator and the extracted
// contract it will review.
func NewApp(cfg *config.Config, book *logbook.Logbook, orch *session.Orchestrator, doc *clause.Document) *App {
	mainMenu := list.New(buildMainMenu(doc), list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "⬡ NEEX REVIEW"
	mainMenu.SetShowStatusBar(false)
	mainMenu.SetFilteringEnabled(false)

	sessionMenu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	sessionMenu.Title = "Reopen Session"
	sessionMenu.SetShowStatusBar(false)
	sessionMenu.SetFilteringEnabled(false)

	recList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	recList.Title = "Recommendations so far"
	recList.SetShowStatusBar(false)
	recList.SetFilteringEnabled(false)

	return &App{
		config:      cfg,
		orch:        orch,
		logbook:     book,
		doc:         doc,
		state:       stateMainMenu,
		mainMenu:    mainMenu,
		sessionMenu: sessionMenu,
		recList:     recList,
	}
}

func buildMainMenu(doc *clause.Document) []list.Item {
	items := []list.Item{}
	if doc != nil {
		title := doc.Title
		if title == "" {
			title = "extracted contract"
		}
		items = append(items, menuItem{
			title: "Start Review",
			desc:  fmt.Sprintf("Analyze %s (%d clauses)", title, len(doc.Clauses)),
		})
	}
	items = append(items,
		menuItem{title: "Reopen Session", desc: "Pick up a persisted checkpoint"},
		menuItem{title: "Exit", desc: "Quit without starting"},
	)
	return items
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.mainMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-12))
		a.sessionMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-12))
		a.recList.SetSize(max(0, msg.Width-6), max(0, msg.Height-18))
		return a, nil

	case sessionMsg:
		return a.settle(msg)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.state == stateMainMenu || a.state == stateSummary {
				return a, tea.Quit
			}
		case "esc":
			if a.state == stateSessionSelect || a.state == stateSummary {
				return a.returnToMainMenu()
			}
		case "enter":
			switch a.state {
			case stateMainMenu:
				return a.handleMainMenuSelection()
			case stateSessionSelect:
				return a.handleSessionSelection()
			}
		case "c":
			if a.state == stateCheckpoint {
				return a.resumeWith(session.Continuation{Decision: session.DecisionContinue})
			}
		case "a":
			if a.state == stateCheckpoint {
				return a.resumeWith(session.Continuation{Decision: session.DecisionAbort})
			}
		case "m":
			if a.state == stateCheckpoint {
				return a.modifyAndContinue()
			}
		}
	}

	var cmd tea.Cmd
	switch a.state {
	case stateMainMenu:
		a.mainMenu, cmd = a.mainMenu.Update(msg)
	case stateSessionSelect:
		a.sessionMenu, cmd = a.sessionMenu.Update(msg)
	case stateCheckpoint:
		a.recList, cmd = a.recList.Update(msg)
	}
	return a, cmd
}

func (a *App) handleMainMenuSelection() (tea.Model, tea.Cmd) {
	item, ok := a.mainMenu.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}
	switch item.title {
	case "Start Review":
		a.state = stateReviewing
		a.statusMsg = "Analyzing clauses..."
		return a, a.startReview()
	case "Reopen Session":
		return a.beginSessionSelect()
	case "Exit":
		return a, tea.Quit
	}
	return a, nil
}

func (a *App) beginSessionSelect() (tea.Model, tea.Cmd) {
	options := a.persistedSessions()
	if len(options) == 0 {
		a.statusMsg = "No persisted sessions found"
		return a, nil
	}
	items := make([]list.Item, len(options))
	for i := range options {
		items[i] = options[i]
	}
	a.sessionMenu.SetItems(items)
	a.state = stateSessionSelect
	a.statusMsg = "Select a session to reopen"
	return a, nil
}

func (a *App) persistedSessions() []sessionOption {
	entries, err := os.ReadDir(a.config.SessionsDir())
	if err != nil {
		return nil
	}
	var options []sessionOption
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		opt := sessionOption{handle: strings.TrimSuffix(entry.Name(), ".json")}
		if info, err := entry.Info(); err == nil {
			opt.desc = fmt.Sprintf("Saved %s", info.ModTime().Format("2006-01-02 15:04"))
		}
		options = append(options, opt)
	}
	sort.Slice(options, func(i, j int) bool { return options[i].handle < options[j].handle })
	return options
}

func (a *App) handleSessionSelection() (tea.Model, tea.Cmd) {
	item, ok := a.sessionMenu.SelectedItem().(sessionOption)
	if !ok {
		return a, nil
	}
	a.state = stateReviewing
	a.statusMsg = fmt.Sprintf("Reopening %s...", item.handle)
	handle := item.handle
	return a, func() tea.Msg {
		if err := a.orch.Reopen(handle); err != nil {
			return sessionMsg{handle: handle, err: err}
		}
		return sessionMsg{handle: handle}
	}
}

func (a *App) startReview() tea.Cmd {
	doc := a.doc
	return func() tea.Msg {
		handle, err := a.orch.Start(doc.Clauses, doc.Features)
		return sessionMsg{handle: handle, err: err}
	}
}

func (a *App) resumeWith(cont session.Continuation) (tea.Model, tea.Cmd) {
	a.state = stateReviewing
	a.statusMsg = fmt.Sprintf("Continuing (%s)...", cont.Decision)
	handle := a.handle
	return a, func() tea.Msg {
		err := a.orch.Resume(handle, cont)
		return sessionMsg{handle: handle, err: err}
	}
}

// modifyAndContinue reloads the rule overrides from disk so a reviewer can
// edit the rules directory while the session is paused, then resumes with
// the fresh set.
func (a *App) modifyAndContinue() (tea.Model, tea.Cmd) {
	rules, err := advisor.LoadRules(a.config.RulesDir())
	if err != nil {
		a.statusMsg = fmt.Sprintf("Rule reload failed: %v", err)
		a.logError("Rule reload failed: %v", err)
		return a, nil
	}
	a.logInfo("Rules reloaded from %s (%d active)", a.config.RulesDir(), len(rules))
	return a.resumeWith(session.Continuation{
		Decision: session.DecisionModify,
		Rules:    rules,
	})
}

// settle processes the result of a pipeline command: re-read the status and
// move to the screen the session's new state calls for.
func (a *App) settle(msg sessionMsg) (tea.Model, tea.Cmd) {
	a.handle = msg.handle
	a.err = nil
	if msg.handle == "" {
		a.err = msg.err
		a.state = stateMainMenu
		return a, nil
	}
	status, err := a.orch.Status(msg.handle)
	if err != nil {
		a.err = err
		a.state = stateMainMenu
		return a, nil
	}
	a.status = status
	if msg.err != nil {
		// The session itself reports aborts through its state; anything
		// else is surfaced alongside the current screen.
		a.statusMsg = msg.err.Error()
	} else {
		a.statusMsg = ""
	}

	switch status.State {
	case review.StatePaused:
		a.state = stateCheckpoint
		a.refreshRecommendations()
	case review.StateCompleted, review.StateAborted:
		a.state = stateSummary
	default:
		a.state = stateReviewing
	}
	return a, nil
}

func (a *App) refreshRecommendations() {
	snap := a.snapshot()
	if snap == nil {
		return
	}
	recs := append([]review.Recommendation{}, snap.Recommendations...)
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority.Rank() != recs[j].Priority.Rank() {
			return recs[i].Priority.Rank() > recs[j].Priority.Rank()
		}
		return recs[i].ClauseID < recs[j].ClauseID
	})
	items := make([]list.Item, len(recs))
	for i, rec := range recs {
		items[i] = recItem{rec: rec}
	}
	a.recList.SetItems(items)
	if a.width > 0 && a.height > 0 {
		a.recList.SetSize(max(0, a.width-6), max(0, a.height-18))
	}
}

func (a *App) snapshot() *review.Context {
	if a.handle == "" {
		return nil
	}
	ses, err := a.orch.Session(a.handle)
	if err != nil {
		return nil
	}
	return ses.Snapshot()
}

func (a *App) returnToMainMenu() (tea.Model, tea.Cmd) {
	a.state = stateMainMenu
	a.statusMsg = ""
	a.mainMenu.SetItems(buildMainMenu(a.doc))
	return a, nil
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(a.handle, format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(a.handle, format, args...)
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	var content string
	switch a.state {
	case stateMainMenu:
		content = a.mainMenu.View()
	case stateSessionSelect:
		content = lipgloss.JoinVertical(lipgloss.Left,
			a.sessionMenu.View(),
			hintStyle.Render("Enter → reopen    Esc → back"),
		)
	case stateReviewing:
		content = a.renderProgress()
	case stateCheckpoint:
		content = a.renderCheckpoint()
	case stateSummary:
		content = a.renderSummary()
	}

	sections := []string{
		headerStyle.Render("⬡ NEEX CONTRACT REVIEW"),
		borderStyle.Width(max(40, width-4)).Render(content),
	}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := a.statusMsg
	if a.err != nil {
		footer = errStyle.Render(a.err.Error())
	}
	sections = append(sections, faintStyle.MarginTop(1).Render(footer))
	return strings.Join(sections, "\n")
}

func (a *App) renderProgress() string {
	lines := []string{"Analyzing clauses..."}
	if a.status.SessionID != "" {
		lines = append(lines, a.renderStatusLine())
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderStatusLine() string {
	badge := stateBadges[a.status.State].Render(strings.ToUpper(string(a.status.State)))
	return fmt.Sprintf("%s · clause %d/%d · %d tokens · %d checkpoint(s) · %d error(s)",
		badge,
		a.status.ClausesProcessed, a.status.TotalClauses,
		a.status.TokensProcessed,
		a.status.Checkpoints,
		a.status.Errors,
	)
}

func (a *App) renderCheckpoint() string {
	lines := []string{a.renderStatusLine()}
	if snap := a.snapshot(); snap != nil && len(snap.Checkpoints) > 0 {
		cp := snap.Checkpoints[len(snap.Checkpoints)-1]
		lines = append(lines, fmt.Sprintf(
			"Checkpoint %d · after clause %d · reason: %s",
			cp.Seq, cp.ClauseID, cp.Reason,
		))
		risk, counts := snap.DocumentRisk()
		if risk != review.ClassNone {
			lines = append(lines, fmt.Sprintf(
				"Document risk so far: %s (%d critical, %d material, %d procedural)",
				risk,
				counts[review.ClassCritical],
				counts[review.ClassMaterial],
				counts[review.ClassProcedural],
			))
		}
	}
	head := strings.Join(lines, "\n")
	hint := hintStyle.Render("c → continue    m → reload rules & continue    a → abort")
	return lipgloss.JoinVertical(lipgloss.Left, head, "", a.recList.View(), hint)
}

func (a *App) renderSummary() string {
	summary, err := a.orch.Summary(a.handle)
	if err != nil {
		return errStyle.Render(err.Error())
	}
	lines := []string{a.renderStatusLine()}
	if a.status.AbortCause != "" {
		lines = append(lines, errStyle.Render("Aborted: "+a.status.AbortCause))
	}
	lines = append(lines, fmt.Sprintf(
		"Processed %d/%d clauses · %d tokens",
		summary.ClausesProcessed, summary.TotalClauses, summary.TokensProcessed,
	))
	if summary.DocumentRisk != review.ClassNone {
		lines = append(lines, fmt.Sprintf("Document risk: %s", summary.DocumentRisk))
	}
	for _, priority := range []review.Priority{review.PriorityCritical, review.PriorityHigh, review.PriorityMedium, review.PriorityLow} {
		if n := summary.Recommendations[priority]; n > 0 {
			badge := priorityBadges[priority].Render(string(priority))
			lines = append(lines, fmt.Sprintf("  %s recommendations: %d", badge, n))
		}
	}
	lines = append(lines, fmt.Sprintf(
		"%d checkpoint(s) · %d recoverable error(s)",
		len(summary.Checkpoints), summary.ErrorCount,
	))
	hint := hintStyle.Render("q → quit    Esc → menu")
	return lipgloss.JoinVertical(lipgloss.Left, strings.Join(lines, "\n"), hint)
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	var lines []string
	if a.handle != "" {
		lines = a.logbook.SessionTail(a.handle, 6)
	} else {
		lines, _ = a.logbook.Tail(6)
	}
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	head := headerStyle.MarginBottom(0).Render(fmt.Sprintf("LOG · %s", fileName))
	body := faintStyle.Render(strings.Join(lines, "\n"))
	return borderStyle.Render(fmt.Sprintf("%s\n%s", head, body))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
