package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/pipeforge/pkg/client"
	"github.com/rmax-ai/pipeforge/pkg/store"
)

// Config
const (
	pollRate       = 2 * time.Second
	fetchTimeout   = time.Second
	maxComponents  = 20
	viewportHeight = 20
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	mainStyle   = lipgloss.NewStyle().MarginLeft(1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	idStyle        = lipgloss.NewStyle().Width(32)
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(10)
	urlStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	libraryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	componentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// lister is the part of the daemon client the browser needs.
type lister interface {
	ListComponents(ctx context.Context, limit int) ([]store.Record, error)
}

type tickMsg time.Time

type dataMsg struct {
	records []store.Record
	err     error
}

type model struct {
	api      lister
	spinner  spinner.Model
	viewport viewport.Model
	records  []store.Record
	cursor   int
	err      error
	ready    bool
}

func newViewport(width int) viewport.Model {
	vp := viewport.New(width, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)
	return vp
}

func initialModel(api lister) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		api:      api,
		spinner:  s,
		viewport: newViewport(100),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.api),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.updateViewportContent()
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.records)-1 {
				m.cursor++
				m.updateViewportContent()
			}
			return m, nil
		}
		// Remaining keys scroll the detail pane.
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.api), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.setRecords(msg.records)
		}
		m.ready = true

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
		m.ready = true
	}

	return m, tea.Batch(cmds...)
}

// setRecords replaces the list, keeping the cursor on the same record id
// when it is still present.
func (m *model) setRecords(records []store.Record) {
	var selected string
	if m.cursor < len(m.records) {
		selected = m.records[m.cursor].ID
	}
	m.records = records
	m.cursor = 0
	for i, rec := range records {
		if rec.ID == selected {
			m.cursor = i
			break
		}
	}
	m.updateViewportContent()
}

func (m *model) updateViewportContent() {
	if len(m.records) == 0 {
		m.viewport.SetContent(subtleStyle.Render("Nothing selected."))
		return
	}
	rec := m.records[m.cursor]

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", rec.ID)
	if rec.URL != "" {
		fmt.Fprintf(&sb, "%s\n", urlStyle.Render(rec.URL))
	}
	sb.WriteString("\n")
	sb.WriteString(rec.Data)

	m.viewport.SetContent(sb.String())
	m.viewport.GotoTop()
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Connecting...", m.spinner.View())
	}

	var list strings.Builder
	list.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Component Cache") + "\n\n")

	if len(m.records) == 0 {
		list.WriteString(subtleStyle.Render("No components cached yet."))
	} else {
		for i, rec := range m.records {
			marker := "  "
			if i == m.cursor {
				marker = cursorStyle.Render("> ")
			}
			kind := componentStyle.Render("component")
			if strings.HasPrefix(rec.ID, store.LibraryPrefix) {
				kind = libraryStyle.Render("library  ")
			}
			list.WriteString(fmt.Sprintf("%s%s %s %s %s\n",
				marker,
				kind,
				idStyle.Render(truncate(rec.ID, 30)),
				timeStyle.Render(time.UnixMilli(rec.UpdatedAt).Format("15:04:05")),
				urlStyle.Render(rec.URL),
			))
		}
	}

	topPane := paneStyle.Render(list.String())
	header := headerStyle.Render(fmt.Sprintf("%s Component Text", m.spinner.View()))

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d Records", len(m.records)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nj/k to select • arrows/pgup/pgdn to scroll • q to quit", status))

	return mainStyle.Render(lipgloss.JoinVertical(lipgloss.Left, topPane, header, m.viewport.View(), footer))
}

// Commands

func fetchData(api lister) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		records, err := api.ListComponents(ctx, maxComponents)
		return dataMsg{records: records, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func main() {
	c := client.NewClient(os.Getenv("PIPEFORGE_ENDPOINT"))
	// The list is polled; a failed poll shows as offline until the next one.
	c.SetRetry(0, client.DefaultBackoff())

	p := tea.NewProgram(initialModel(c), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
