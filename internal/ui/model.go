// internal/ui/model.go
package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-launchpad/internal/logger"
	"github.com/rovshanmuradov/solana-launchpad/internal/portfolio"
	"github.com/rovshanmuradov/solana-launchpad/internal/types"
	"github.com/rovshanmuradov/solana-launchpad/internal/ui/style"
)

const (
	statusTTL     = 4 * time.Second
	phasePollRate = 250 * time.Millisecond
	logLines      = 6
	opTimeout     = 2 * time.Minute
)

// Dashboard - то, что экран использует из portfolio.Dashboard.
type Dashboard interface {
	Owner() solana.PublicKey
	Refresh(ctx context.Context) ([]portfolio.TokenRecord, error)
	Snapshot() portfolio.Snapshot
	Lookup(ctx context.Context, mint solana.PublicKey) (portfolio.TokenRecord, bool, error)
}

// Model - экран списка токенов.
type Model struct {
	dashboard Dashboard
	logs      *logger.LogBuffer
	logger    *zap.Logger

	keys    KeyMap
	styles  style.Styles
	table   table.Model
	input   textinput.Model
	spinner spinner.Model
	help    help.Model

	width     int
	height    int
	inputMode bool
	loading   bool
	lookingUp bool
	showLogs  bool
	phase     portfolio.Phase
	snapshot  portfolio.Snapshot

	status     string
	statusKind StatusKind
	statusID   int
}

// NewModel создаёт экран. logs может быть nil.
func NewModel(dashboard Dashboard, logs *logger.LogBuffer, log *zap.Logger) Model {
	columns := []table.Column{
		{Title: "Symbol", Width: 10},
		{Title: "Name", Width: 22},
		{Title: "Balance", Width: 18},
		{Title: "Dec", Width: 4},
		{Title: "Source", Width: 15},
		{Title: "Creator", Width: 7},
		{Title: "Mint", Width: 12},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	ts.Selected = ts.Selected.
		Foreground(style.Base2).
		Background(style.Magenta).
		Bold(false)
	t.SetStyles(ts)

	in := textinput.New()
	in.Placeholder = "mint address"
	in.CharLimit = 44
	in.Width = 48

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		dashboard: dashboard,
		logs:      logs,
		logger:    log.Named("ui"),
		keys:      DefaultKeyMap(),
		styles:    style.DefaultStyles(),
		table:     t,
		input:     in,
		spinner:   sp,
		help:      help.New(),
		showLogs:  logs != nil,
		loading:   true,
		snapshot:  dashboard.Snapshot(),
	}
}

// Init запускает первое обновление. NewModel уже выставил loading.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refreshCmd(m.dashboard), pollPhase())
}

func (m *Model) startRefresh() tea.Cmd {
	m.loading = true
	return tea.Batch(refreshCmd(m.dashboard), pollPhase())
}

func refreshCmd(d Dashboard) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		_, err := d.Refresh(ctx)
		return RefreshDoneMsg{Snapshot: d.Snapshot(), Err: err}
	}
}

func lookupCmd(d Dashboard, mint solana.PublicKey) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		rec, added, err := d.Lookup(ctx, mint)
		return LookupDoneMsg{Record: rec, Added: added, Err: err}
	}
}

func pollPhase() tea.Cmd {
	return tea.Tick(phasePollRate, func(t time.Time) tea.Msg { return phaseTickMsg(t) })
}

// setStatus показывает сообщение и планирует его скрытие.
func (m *Model) setStatus(text string, kind StatusKind) tea.Cmd {
	m.statusID++
	m.status = text
	m.statusKind = kind
	id := m.statusID
	return tea.Tick(statusTTL, func(time.Time) tea.Msg { return clearStatusMsg{id: id} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		h := msg.Height - 12
		if m.showLogs {
			h -= logLines + 2
		}
		m.table.SetHeight(max(h, 3))
		return m, nil

	case tea.KeyMsg:
		if m.inputMode {
			return m.updateInput(msg)
		}
		return m.updateTable(msg)

	case RefreshDoneMsg:
		m.loading = false
		m.snapshot = msg.Snapshot
		m.phase = msg.Snapshot.Phase
		m.table.SetRows(rows(msg.Snapshot.Tokens, msg.Snapshot.Owner))
		if msg.Err != nil {
			m.logger.Warn("Refresh failed", zap.Error(msg.Err))
			return m, m.setStatus("Refresh failed, showing the previous list", StatusError)
		}
		return m, m.setStatus(fmt.Sprintf("Loaded %d tokens", len(msg.Snapshot.Tokens)), StatusSuccess)

	case LookupDoneMsg:
		m.lookingUp = false
		if msg.Err != nil {
			m.logger.Warn("Lookup failed", zap.Error(msg.Err))
			if types.IsValidationError(msg.Err) {
				return m, m.setStatus(msg.Err.Error(), StatusError)
			}
			return m, m.setStatus("Token not found or network error", StatusError)
		}
		m.snapshot = m.dashboard.Snapshot()
		m.table.SetRows(rows(m.snapshot.Tokens, m.snapshot.Owner))
		label := displaySymbol(msg.Record)
		if !msg.Added {
			return m, m.setStatus(label+" is already in the list", StatusInfo)
		}
		return m, m.setStatus("Added "+label, StatusSuccess)

	case phaseTickMsg:
		if !m.loading {
			return m, nil
		}
		m.phase = m.dashboard.Snapshot().Phase
		return m, pollPhase()

	case clearStatusMsg:
		if msg.id == m.statusID {
			m.status = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		if m.loading {
			return m, nil
		}
		return m, m.startRefresh()
	case key.Matches(msg, m.keys.Lookup):
		m.inputMode = true
		m.input.SetValue("")
		m.table.Blur()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.ToggleLogs):
		if m.logs != nil {
			m.showLogs = !m.showLogs
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.closeInput()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		raw := strings.TrimSpace(m.input.Value())
		mint, err := types.ParseAddress("mint", raw)
		if err != nil {
			return m, m.setStatus("Invalid mint address", StatusError)
		}
		m.closeInput()
		m.lookingUp = true
		return m, tea.Batch(lookupCmd(m.dashboard, mint), m.setStatus("Looking up "+logger.ShortenAddress(raw)+"...", StatusInfo))
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) closeInput() {
	m.inputMode = false
	m.input.Blur()
	m.table.Focus()
}

func rows(records []portfolio.TokenRecord, owner string) []table.Row {
	out := make([]table.Row, 0, len(records))
	for _, r := range records {
		creator := ""
		if r.IsCreator(owner) {
			creator = "✓"
		}
		name := r.Name
		if !r.HasMetadata {
			name = noMetadataLabel
		}
		out = append(out, table.Row{
			r.Symbol,
			name,
			r.UIBalance(),
			strconv.Itoa(int(r.Decimals)),
			r.Source.String(),
			creator,
			logger.ShortenAddress(r.Mint),
		})
	}
	return out
}

// Метка для токенов без аккаунта метаданных.
const noMetadataLabel = "(no metadata)"

func displaySymbol(r portfolio.TokenRecord) string {
	if r.HasMetadata && r.Symbol != "" {
		return r.Symbol
	}
	return logger.ShortenAddress(r.Mint)
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Solana Launchpad · Tokens"))
	b.WriteString("\n")
	b.WriteString(m.styles.Owner.Render("Wallet " + m.dashboard.Owner().String()))
	b.WriteString("\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " " + m.styles.Phase.Render(phaseLabel(m.phase)))
	case m.lookingUp:
		b.WriteString(m.spinner.View() + " " + m.styles.Phase.Render("Looking up token"))
	case !m.snapshot.RefreshedAt.IsZero():
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("%d tokens · updated %s",
			len(m.snapshot.Tokens), m.snapshot.RefreshedAt.Format("15:04:05"))))
	}
	b.WriteString("\n\n")

	if len(m.snapshot.Tokens) == 0 && !m.loading {
		b.WriteString(m.styles.Muted.Render("No tokens found. Press a to add one by mint address."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	if m.inputMode {
		b.WriteString(m.styles.Input.Render(m.input.View()))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString(m.statusStyle().Render(m.status))
		b.WriteString("\n")
	}

	if m.showLogs && m.logs != nil {
		b.WriteString(m.styles.Logs.Render(m.recentLogs()))
		b.WriteString("\n")
	}

	if m.inputMode {
		b.WriteString(m.help.View(inputHelp{k: m.keys}))
	} else {
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

func (m Model) statusStyle() lipgloss.Style {
	switch m.statusKind {
	case StatusSuccess:
		return m.styles.Success
	case StatusError:
		return m.styles.Error
	default:
		return m.styles.Info
	}
}

func (m Model) recentLogs() string {
	entries := m.logs.GetRecentLogs(logLines)
	if len(entries) == 0 {
		return m.styles.Muted.Render("No logs yet")
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		line := fmt.Sprintf("%s %-5s %s", e.Timestamp.Format("15:04:05"), strings.ToUpper(e.Level), e.Message)
		if e.Level == "error" || e.Level == "warn" {
			line = m.styles.Error.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func phaseLabel(p portfolio.Phase) string {
	switch p {
	case portfolio.PhaseFetchingSources:
		return "Scanning wallet and authority history"
	case portfolio.PhaseEnriching:
		return "Loading token details"
	default:
		return "Refreshing"
	}
}
