package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mc-resource-manager/importer"
	"mc-resource-manager/resolver"
)

// importProgressMsg represents a progress update from an import batch
type importProgressMsg struct {
	Type    string // "start", "resolved", "committed"
	Path    string
	Outcome resolver.Outcome
	Err     error
	Total   int
	Result  *importer.Result
}

// importDoneMsg is sent once the batch returned, successfully or not.
type importDoneMsg struct{}

// chanProgress forwards importer progress to the view.
type chanProgress struct {
	ctx context.Context
	ch  chan<- importProgressMsg
}

func (p chanProgress) send(msg importProgressMsg) {
	select {
	case p.ch <- msg:
	case <-p.ctx.Done():
	}
}

func (p chanProgress) Start(_ string, total int) {
	p.send(importProgressMsg{Type: "start", Total: total})
}

func (p chanProgress) Resolved(path string, outcome resolver.Outcome, err error) {
	p.send(importProgressMsg{Type: "resolved", Path: path, Outcome: outcome, Err: err})
}

func (p chanProgress) Committed(res *importer.Result) {
	p.send(importProgressMsg{Type: "committed", Result: res})
}

// ImportModel controls the UI for the import command
type ImportModel struct {
	spinner      spinner.Model
	progressChan <-chan importProgressMsg

	status   string
	recent   []string
	errors   []string
	summary  string
	done     bool
	total    int
	resolved int
}

const recentLimit = 5

func initialImportModel(progressChan <-chan importProgressMsg) ImportModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return ImportModel{
		spinner:      s,
		progressChan: progressChan,
		status:       "Initializing...",
	}
}

func (m ImportModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForActivity(),
	)
}

func (m ImportModel) waitForActivity() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.progressChan
		if !ok {
			return importDoneMsg{}
		}
		return msg
	}
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" || m.done {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case importDoneMsg:
		m.done = true
		m.status = "Finished"
		return m, tea.Quit

	case importProgressMsg:
		switch msg.Type {
		case "start":
			m.total = msg.Total
			m.status = fmt.Sprintf("Resolving %d paths...", msg.Total)

		case "resolved":
			m.resolved++
			m.status = fmt.Sprintf("Resolved %d/%d", m.resolved, m.total)
			if msg.Err != nil {
				m.errors = append(m.errors, fmt.Sprintf("%s: %v", filepath.Base(msg.Path), msg.Err))
			} else {
				m.recent = append(m.recent, fmt.Sprintf("%s %s", msg.Outcome, filepath.Base(msg.Path)))
				if len(m.recent) > recentLimit {
					m.recent = m.recent[len(m.recent)-recentLimit:]
				}
			}

		case "committed":
			m.status = "Committed"
			m.summary = summarize(msg.Result)
		}
		return m, m.waitForActivity()
	}

	return m, nil
}

func (m ImportModel) View() string {
	var symbol string
	if m.done {
		symbol = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("✓")
	} else {
		symbol = m.spinner.View()
	}

	s := fmt.Sprintf("\n %s %s\n\n", symbol, m.status)

	if len(m.recent) > 0 && !m.done {
		s += lipgloss.NewStyle().Bold(true).Render("Recent:") + "\n"
		for _, r := range m.recent {
			s += fmt.Sprintf("  • %s\n", r)
		}
		s += "\n"
	}

	if len(m.errors) > 0 {
		s += lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Errors:") + "\n"
		for _, e := range m.errors {
			s += fmt.Sprintf("  • %s\n", e)
		}
		s += "\n"
	}

	if m.summary != "" {
		s += lipgloss.NewStyle().Bold(true).Render(m.summary) + "\n"
	}

	return s
}

// runImportTUI runs importFn behind the progress view. Quitting the view cancels the import.
func runImportTUI(ctx context.Context, cancel context.CancelFunc, events chan importProgressMsg, importFn func(context.Context) (*importer.Result, error)) (*importer.Result, error) {
	var (
		res *importer.Result
		err error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer close(events)
		res, err = importFn(ctx)
	}()

	_, perr := tea.NewProgram(initialImportModel(events)).Run()
	cancel()
	<-finished
	if perr != nil {
		return nil, fmt.Errorf("progress view: %w", perr)
	}
	return res, err
}
