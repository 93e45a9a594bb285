package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/internal/cli/hooks"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/workflow"
)

const listHeightMargin = 4

const (
	phaseInitializing = "Initializing..."
	phaseComplete     = "Complete"
)

// Model represents the state of the TUI application.
// It holds UI components (list, spinner), layout dimensions, aggregated summary
// statistics, and the batches planned by every actor in the current pass.
type Model struct {
	list    list.Model
	spinner spinner.Model
	version string

	width       int
	height      int
	initialized bool

	// batchItems is keyed by itemKey(actor, ordinal) through itemMap.
	batchItems []listItem
	itemMap    map[string]int

	summary      Summary
	phaseMessage string
	// runErrors holds one line per actor whose run ended with a systemic error.
	runErrors []string
	quitting  bool

	debounceTimer *time.Timer
}

// listItem represents a single batch in the TUI list.
type listItem struct {
	actor    string
	ordinal  int
	files    int
	status   workflow.BatchStatus
	message  string
	duration time.Duration
}

// Summary holds the aggregated statistics displayed in the TUI footer.
type Summary struct {
	TotalFiles         int
	TotalBatches       int
	SucceededCount     int
	QuarantinedCount   int
	QuarantineFailures int
	ReportsGenerated   int
	StartTime          time.Time
}

// AllRunsCompleteMsg signals that every selected actor has finished the current pass.
type AllRunsCompleteMsg struct{}

// UpdateListMsg signals that the list component should update its items.
type UpdateListMsg struct{}

const listUpdateDebounceDuration = 50 * time.Millisecond

// NewModel creates the initial model for the TUI.
func NewModel(version string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorStatusProcessing)

	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.ShowDescription = true
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorSelectedFg).
		Background(ColorSelectedBg).
		Bold(true).
		Padding(0, 0, 0, 1)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorSelectedDescFg).
		Background(ColorSelectedBg).
		Padding(0, 0, 0, 1)
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.
		Foreground(ColorNormalFg).Padding(0, 0, 0, 1)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.
		Foreground(ColorNormalDescFg).Padding(0, 0, 0, 1)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	if version == "" {
		version = "dev"
	}

	return Model{
		list:         l,
		spinner:      s,
		version:      version,
		summary:      Summary{StartTime: time.Now()},
		phaseMessage: phaseInitializing,
		batchItems:   make([]listItem, 0, 64),
		itemMap:      make(map[string]int),
	}
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles user input and hook events.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listHeight := m.height - listHeightMargin
		if listHeight < 1 {
			listHeight = 1
		}
		m.list.SetSize(m.width, listHeight)
		m.initialized = true

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
		var listCmd tea.Cmd
		m.list, listCmd = m.list.Update(msg)
		cmds = append(cmds, listCmd)

	case spinner.TickMsg:
		if m.quitting {
			return m, nil
		}
		var spinnerCmd tea.Cmd
		m.spinner, spinnerCmd = m.spinner.Update(msg)
		cmds = append(cmds, spinnerCmd)

	case hooks.RunStartMsg:
		for _, b := range msg.Plan.Batches {
			key := itemKey(msg.Actor, b.Ordinal)
			if _, exists := m.itemMap[key]; exists {
				continue
			}
			m.batchItems = append(m.batchItems, listItem{
				actor:   msg.Actor,
				ordinal: b.Ordinal,
				files:   b.Size(),
				status:  workflow.BatchPending,
			})
			m.itemMap[key] = len(m.batchItems) - 1
			m.summary.TotalBatches++
			m.summary.TotalFiles += b.Size()
		}
		m.phaseMessage = fmt.Sprintf("Processing %s...", msg.Actor)
		cmds = append(cmds, m.debounceListUpdate())

	case hooks.BatchStatusUpdateMsg:
		key := itemKey(msg.Actor, msg.Batch.Ordinal)
		idx, ok := m.itemMap[key]
		if !ok {
			m.batchItems = append(m.batchItems, listItem{
				actor:   msg.Actor,
				ordinal: msg.Batch.Ordinal,
				files:   msg.Batch.Size(),
				status:  workflow.BatchPending,
			})
			idx = len(m.batchItems) - 1
			m.itemMap[key] = idx
			m.summary.TotalBatches++
			m.summary.TotalFiles += msg.Batch.Size()
		}
		item := &m.batchItems[idx]
		if msg.Status.IsFinal() && !item.status.IsFinal() {
			m.incrementSummaryCount(msg.Status)
		}
		item.status = msg.Status
		item.message = msg.Message
		item.duration = msg.Duration
		cmds = append(cmds, m.debounceListUpdate())

	case hooks.RunCompleteMsg:
		m.summary.QuarantineFailures += msg.Summary.QuarantineFailures
		if msg.Summary.ReportsGenerated {
			m.summary.ReportsGenerated++
		}
		if msg.Summary.SystemicError != "" {
			m.runErrors = append(m.runErrors, fmt.Sprintf("%s: %s", msg.Actor, msg.Summary.SystemicError))
		}

	case AllRunsCompleteMsg:
		m.phaseMessage = phaseComplete

	case UpdateListMsg:
		items := make([]list.Item, len(m.batchItems))
		for i, item := range m.batchItems {
			items[i] = item
		}
		cmds = append(cmds, m.list.SetItems(items))
	}

	return m, tea.Batch(cmds...)
}

// View renders the current state of the TUI model.
func (m *Model) View() string {
	if m.quitting {
		return "Exiting...\n"
	}
	if !m.initialized {
		return phaseInitializing
	}

	headerLeft := fmt.Sprintf("EES Analytics v%s", m.version)
	headerRight := m.phaseMessage
	if m.phaseMessage != phaseComplete && m.phaseMessage != phaseInitializing {
		headerRight = m.spinner.View() + " " + m.phaseMessage
	}
	headerCenter := ""
	if w := m.width - lipgloss.Width(headerLeft) - lipgloss.Width(headerRight); w > 0 {
		headerCenter = lipgloss.PlaceHorizontal(w, lipgloss.Center, " ")
	}
	header := HeaderStyle.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, headerLeft, headerCenter, headerRight))

	elapsed := time.Since(m.summary.StartTime).Round(time.Millisecond)
	footerLeft := fmt.Sprintf(
		"Batches: %d | Succeeded: %d | Quarantined: %d | Files: %d | Reports: %d | Elapsed: %s",
		m.summary.TotalBatches,
		m.summary.SucceededCount,
		m.summary.QuarantinedCount,
		m.summary.TotalFiles,
		m.summary.ReportsGenerated,
		elapsed,
	)
	footerRight := "q: quit"
	footerCenter := ""
	if w := m.width - lipgloss.Width(footerLeft) - lipgloss.Width(footerRight); w > 0 {
		footerCenter = lipgloss.PlaceHorizontal(w, lipgloss.Center, " ")
	}
	footer := FooterStyle.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Bottom, footerLeft, footerCenter, footerRight))

	parts := []string{header, m.list.View()}
	if len(m.runErrors) > 0 {
		parts = append(parts, StatusStyleQuarantined.Render(strings.Join(m.runErrors, "\n")))
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func itemKey(actor string, ordinal int) string {
	return fmt.Sprintf("%s/%d", actor, ordinal)
}

func (m *Model) incrementSummaryCount(status workflow.BatchStatus) {
	switch status {
	case workflow.BatchSucceeded:
		m.summary.SucceededCount++
	case workflow.BatchQuarantined:
		m.summary.QuarantinedCount++
	}
}

// FilterValue implements the list.Item interface.
func (i listItem) FilterValue() string { return i.Title() }

// Title implements the list.Item interface.
func (i listItem) Title() string {
	return fmt.Sprintf("%s batch %d", i.actor, i.ordinal)
}

// Description implements the list.Item interface.
func (i listItem) Description() string {
	var statusStyle lipgloss.Style
	var statusIcon string
	switch i.status {
	case workflow.BatchSucceeded:
		statusStyle, statusIcon = StatusStyleSucceeded, "✓"
	case workflow.BatchQuarantined:
		statusStyle, statusIcon = StatusStyleQuarantined, "✗"
	case workflow.BatchProcessing:
		statusStyle, statusIcon = StatusStyleProcessing, "…"
	case workflow.BatchMoving:
		statusStyle, statusIcon = StatusStyleMoving, "»"
	default:
		statusStyle, statusIcon = StatusStylePending, " "
	}

	details := fmt.Sprintf("%d files", i.files)
	switch i.status {
	case workflow.BatchQuarantined:
		if i.message != "" {
			details += " " + i.message
		}
	case workflow.BatchSucceeded:
		if d := formatDuration(i.duration); d != "" {
			details += " " + d
		}
	}
	return fmt.Sprintf("%s %s", statusStyle.Render(fmt.Sprintf("[%s]", statusIcon)), details)
}

func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return ""
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// debounceListUpdate returns a command that emits UpdateListMsg once status changes settle.
func (m *Model) debounceListUpdate() tea.Cmd {
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	timer := time.NewTimer(listUpdateDebounceDuration)
	m.debounceTimer = timer
	return func() tea.Msg {
		<-timer.C
		return UpdateListMsg{}
	}
}

const (
	ColorHeaderFg = lipgloss.Color("252")
	ColorHeaderBg = lipgloss.Color("62")

	ColorFooterFg = lipgloss.Color("252")
	ColorFooterBg = lipgloss.Color("56")

	ColorNormalFg     = lipgloss.Color("250")
	ColorNormalDescFg = lipgloss.Color("244")

	ColorSelectedFg     = lipgloss.Color("255")
	ColorSelectedBg     = lipgloss.Color("56")
	ColorSelectedDescFg = lipgloss.Color("248")

	ColorStatusSucceeded   = lipgloss.Color("40")
	ColorStatusQuarantined = lipgloss.Color("196")
	ColorStatusMoving      = lipgloss.Color("39")
	ColorStatusPending     = lipgloss.Color("244")
	ColorStatusProcessing  = lipgloss.Color("205")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorHeaderFg).
			Background(ColorHeaderBg).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorFooterFg).
			Background(ColorFooterBg).
			Padding(0, 1)

	StatusStyleSucceeded   = lipgloss.NewStyle().Foreground(ColorStatusSucceeded)
	StatusStyleQuarantined = lipgloss.NewStyle().Foreground(ColorStatusQuarantined)
	StatusStyleMoving      = lipgloss.NewStyle().Foreground(ColorStatusMoving)
	StatusStylePending     = lipgloss.NewStyle().Foreground(ColorStatusPending)
	StatusStyleProcessing  = lipgloss.NewStyle().Foreground(ColorStatusProcessing)
)
