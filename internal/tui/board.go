package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/featuregate/internal/compat"
	"github.com/ShayCichocki/featuregate/internal/ledger"
	"github.com/ShayCichocki/featuregate/pkg/models"
)

// Focus targets.
const (
	focusTable = iota
	focusReport
)

// DefaultRefresh is the reload interval when none is configured.
const DefaultRefresh = 2 * time.Second

// LedgerChangedMsg tells the board a ledger file changed on disk.
type LedgerChangedMsg struct {
	Path string
}

// tickMsg triggers a periodic reload.
type tickMsg time.Time

// dataMsg carries a freshly loaded ledger snapshot.
type dataMsg struct {
	rows     []table.Row
	progress compat.Progress
	err      error
}

// reportMsg carries the report of the selected feature.
type reportMsg struct {
	id     string
	report *compat.Report
	err    error
}

// Board is the bubbletea model showing every feature with its status and
// the compatibility report of the selected one.
type Board struct {
	reader  ledger.Reader
	manager *compat.Manager
	refresh time.Duration

	table    table.Model
	report   viewport.Model
	focus    int
	progress compat.Progress
	selected string
	err      error

	width    int
	height   int
	quitting bool
}

// NewBoard creates a board over reader. A non-positive refresh uses
// DefaultRefresh.
func NewBoard(reader ledger.Reader, manager *compat.Manager, refresh time.Duration) *Board {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	return &Board{
		reader:  reader,
		manager: manager,
		refresh: refresh,
		table:   t,
		report:  viewport.New(80, 10),
	}
}

func columns(width int) []table.Column {
	desc := width - 8 - 6 - 9 - 20 - 10
	if desc < 20 {
		desc = 20
	}
	return []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Pri", Width: 4},
		{Title: "Status", Width: 8},
		{Title: "Depends on", Width: 20},
		{Title: "Description", Width: desc},
	}
}

// Init implements tea.Model.
func (b *Board) Init() tea.Cmd {
	return tea.Batch(b.load(), b.tick())
}

func (b *Board) tick() tea.Cmd {
	return tea.Tick(b.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// load reads the ledger and computes a row per feature.
func (b *Board) load() tea.Cmd {
	return func() tea.Msg {
		features, err := b.reader.Features()
		if err != nil {
			return dataMsg{err: err}
		}
		progress, err := b.manager.Progress()
		if err != nil {
			return dataMsg{err: err}
		}
		rows := make([]table.Row, 0, len(features))
		for _, f := range features {
			status := StatusPassing
			if !f.Passes {
				v, err := b.manager.CanImplement(f.ID)
				if err != nil {
					return dataMsg{err: err}
				}
				status = StatusBlocked
				if v.CanImplement {
					status = StatusReady
				}
			}
			rows = append(rows, featureRow(f, status))
		}
		return dataMsg{rows: rows, progress: progress}
	}
}

func featureRow(f models.Feature, status string) table.Row {
	deps := make([]string, 0, len(f.Dependencies))
	for _, d := range f.Dependencies {
		deps = append(deps, d.FeatureID)
	}
	return table.Row{f.ID, strconv.Itoa(f.Priority), status, strings.Join(deps, ","), f.Description}
}

// loadReport computes the report of id.
func (b *Board) loadReport(id string) tea.Cmd {
	return func() tea.Msg {
		r, err := b.manager.GenerateReport(id)
		return reportMsg{id: id, report: r, err: err}
	}
}

// Update implements tea.Model.
func (b *Board) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			b.quitting = true
			return b, tea.Quit
		case "tab":
			b.toggleFocus()
			return b, nil
		case "r":
			return b, b.load()
		}

	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height
		b.resize()
		return b, nil

	case tickMsg:
		return b, tea.Batch(b.load(), b.tick())

	case LedgerChangedMsg:
		return b, b.load()

	case dataMsg:
		b.err = msg.err
		if msg.err == nil {
			b.table.SetRows(msg.rows)
			b.progress = msg.progress
		}
		if id := b.selectedID(); id != "" {
			cmds = append(cmds, b.loadReport(id))
		}
		return b, tea.Batch(cmds...)

	case reportMsg:
		if msg.id != b.selectedID() {
			return b, nil
		}
		b.selected = msg.id
		if msg.err != nil {
			b.report.SetContent(errorStyle.Render(msg.err.Error()))
		} else {
			b.report.SetContent(RenderReport(msg.report))
		}
		return b, nil
	}

	if b.focus == focusTable {
		before := b.selectedID()
		var cmd tea.Cmd
		b.table, cmd = b.table.Update(msg)
		cmds = append(cmds, cmd)
		if id := b.selectedID(); id != "" && id != before {
			b.report.GotoTop()
			cmds = append(cmds, b.loadReport(id))
		}
	} else {
		var cmd tea.Cmd
		b.report, cmd = b.report.Update(msg)
		cmds = append(cmds, cmd)
	}
	return b, tea.Batch(cmds...)
}

func (b *Board) toggleFocus() {
	if b.focus == focusTable {
		b.focus = focusReport
		b.table.Blur()
	} else {
		b.focus = focusTable
		b.table.Focus()
	}
}

// resize splits the screen between the table and the report pane.
func (b *Board) resize() {
	inner := b.width - 2
	if inner < 20 {
		inner = 20
	}
	// header, progress line and footer take three lines; each pane two borders.
	avail := b.height - 3 - 4
	if avail < 6 {
		avail = 6
	}
	tableHeight := avail / 2
	b.table.SetColumns(columns(inner))
	b.table.SetWidth(inner)
	b.table.SetHeight(tableHeight)
	b.report.Width = inner
	b.report.Height = avail - tableHeight
}

func (b *Board) selectedID() string {
	row := b.table.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

// View implements tea.Model.
func (b *Board) View() string {
	if b.quitting {
		return ""
	}

	header := titleStyle.Render("featuregate") + "  " + subtleStyle.Render(progressLine(b.progress))
	if b.err != nil {
		header += "  " + errorStyle.Render(b.err.Error())
	}

	tablePane, reportPane := paneStyle, paneStyle
	if b.focus == focusTable {
		tablePane = focusedPaneStyle
	} else {
		reportPane = focusedPaneStyle
	}

	footer := subtleStyle.Render("↑/↓ select • tab switch pane • r reload • q quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		tablePane.Render(b.table.View()),
		reportPane.Render(b.report.View()),
		footer,
	)
}

func progressLine(p compat.Progress) string {
	return fmt.Sprintf("%d/%d passing • %d ready • %d blocked", p.Passing, p.Total, p.Implementable, p.Blocked)
}

// NewProgram creates a full-screen program for b. Callers forward
// LedgerChangedMsg through Program.Send.
func NewProgram(b *Board) *tea.Program {
	return tea.NewProgram(b, tea.WithAltScreen())
}
