package board

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/shiftalert/internal/model"
)

// Lines per item in the list view (title + subtitle + blank separator).
const itemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
	viewMessage
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(16)

	detailValueStyle = lipgloss.NewStyle()

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	messageBodyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))
)

type boardModel struct {
	all           []model.JobRecord
	inBucket      []model.JobRecord
	bucket        model.Bucket
	message       string
	leftViewport  viewport.Model
	rightViewport viewport.Model
	activePane    int // 0=left, 1=right
	leftCursor    int
	rightCursor   int
	width         int
	height        int
	ready         bool

	view           viewState
	detail         model.JobRecord
	detailViewport viewport.Model

	wantQuit bool
}

func newBoardModel(all []model.JobRecord, bucket model.Bucket, message string) boardModel {
	var in []model.JobRecord
	for _, rec := range all {
		if rec.Bucket() == bucket {
			in = append(in, rec)
		}
	}
	return boardModel{
		all:        all,
		inBucket:   in,
		bucket:     bucket,
		message:    message,
		activePane: 1,
	}
}

func (m boardModel) Init() tea.Cmd {
	return nil
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view != viewList {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.overlayContent())
		}
		return m, nil

	case tea.KeyMsg:
		if m.view != viewList {
			return m.updateOverlay(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m boardModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		m.wantQuit = false
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetail()
	case "m":
		return m.openOverlay(viewMessage), nil
	}

	// Forward other keys (pgup/pgdn/home/end) to the active viewport.
	var cmd tea.Cmd
	if m.activePane == 0 {
		m.leftViewport, cmd = m.leftViewport.Update(msg)
	} else {
		m.rightViewport, cmd = m.rightViewport.Update(msg)
	}
	return m, cmd
}

func (m boardModel) updateOverlay(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "m":
		if m.view == viewMessage {
			m.view = viewList
			return m, nil
		}
		return m.openOverlay(viewMessage), nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m boardModel) openDetail() (tea.Model, tea.Cmd) {
	records := m.activeRecords()
	if len(records) == 0 {
		return m, nil
	}
	m.detail = records[m.activeCursor()]
	return m.openOverlay(viewDetail), nil
}

func (m boardModel) openOverlay(v viewState) boardModel {
	m.view = v
	m.detailViewport = viewport.New(max(m.width-4, 20), max(m.height-4, 5))
	m.detailViewport.SetContent(m.overlayContent())
	return m
}

func (m *boardModel) moveCursor(delta int) {
	if m.activePane == 0 {
		m.leftCursor = clamp(m.leftCursor+delta, 0, max(len(m.all)-1, 0))
	} else {
		m.rightCursor = clamp(m.rightCursor+delta, 0, max(len(m.inBucket)-1, 0))
	}
}

func (m *boardModel) ensureCursorVisible() {
	vp := &m.leftViewport
	cursor := m.leftCursor
	if m.activePane == 1 {
		vp = &m.rightViewport
		cursor = m.rightCursor
	}

	top := cursor * itemHeight
	bottom := top + itemHeight - 1

	if top < vp.YOffset {
		vp.SetYOffset(top)
	} else if bottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(bottom - vp.Height + 1)
	}
}

func (m *boardModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.leftViewport = viewport.New(paneWidth, paneHeight)
		m.rightViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.leftViewport.Width = paneWidth
		m.leftViewport.Height = paneHeight
		m.rightViewport.Width = paneWidth
		m.rightViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *boardModel) recalcContent() {
	m.leftViewport.SetContent(renderRecords(m.all, m.leftCursor, m.activePane == 0))
	m.rightViewport.SetContent(renderRecords(m.inBucket, m.rightCursor, m.activePane == 1))
}

func (m boardModel) activeRecords() []model.JobRecord {
	if m.activePane == 0 {
		return m.all
	}
	return m.inBucket
}

func (m boardModel) activeCursor() int {
	if m.activePane == 0 {
		return m.leftCursor
	}
	return m.rightCursor
}

func (m boardModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	switch m.view {
	case viewDetail:
		return m.viewOverlay("Job Details")
	case viewMessage:
		return m.viewOverlay("Broadcast Preview")
	}
	return m.viewList()
}

func (m boardModel) viewList() string {
	paneWidth := m.leftViewport.Width

	leftHeader := fmt.Sprintf(" All Listings (%d)", len(m.all))
	rightHeader := fmt.Sprintf(" %s (%d)", bucketTitle(m.bucket), len(m.inBucket))

	leftHeaderStyle, rightHeaderStyle := inactiveHeaderStyle, activeHeaderStyle
	leftBorder, rightBorder := inactiveBorderStyle, activeBorderStyle
	if m.activePane == 0 {
		leftHeaderStyle, rightHeaderStyle = activeHeaderStyle, inactiveHeaderStyle
		leftBorder, rightBorder = activeBorderStyle, inactiveBorderStyle
	}

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(paneWidth+2).Render(leftHeaderStyle.Render(leftHeader)),
		" ",
		lipgloss.NewStyle().Width(paneWidth+2).Render(rightHeaderStyle.Render(rightHeader)),
	)

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		leftBorder.Width(paneWidth).Render(m.leftViewport.View()),
		" ",
		rightBorder.Width(paneWidth).Render(m.rightViewport.View()),
	)

	statusText := fmt.Sprintf(" %d listed | %d %s    ←/→/Tab switch  ↑/↓ cursor  Enter detail  m message  Esc back  q quit",
		len(m.all), len(m.inBucket), m.bucket)
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m boardModel) viewOverlay(title string) string {
	content := activeBorderStyle.Width(m.width - 2).Render(m.detailViewport.View())
	statusBar := statusBarStyle.Width(m.width).Render(" m message  esc/backspace back  ↑/↓ scroll  q quit")
	return detailTitleStyle.Render(title) + "\n" + content + "\n" + statusBar
}

func (m boardModel) overlayContent() string {
	if m.view == viewMessage {
		return messageBodyStyle.Render(m.message)
	}
	return renderDetail(m.detail)
}

func renderDetail(r model.JobRecord) string {
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}

	addField("Title", r.Title)
	addField("Job ID", r.ID)
	addField("Job Type", r.JobType)
	addField("Employment", r.EmploymentType)
	addField("Bucket", r.Bucket().String())

	b.WriteByte('\n')
	addField("City", r.City)
	addField("State", r.State)
	addField("Pay", formatPayRange(r.PayRateMin, r.PayRateMax))

	return b.String()
}

// formatPayRange renders an hourly range; zero bounds are unknown.
func formatPayRange(lo, hi float64) string {
	switch {
	case lo == 0 && hi == 0:
		return ""
	case hi == 0 || lo == hi:
		return fmt.Sprintf("£%.2f/hr", max(lo, hi))
	case lo == 0:
		return fmt.Sprintf("up to £%.2f/hr", hi)
	default:
		return fmt.Sprintf("£%.2f - £%.2f/hr", lo, hi)
	}
}

func renderRecords(records []model.JobRecord, cursor int, isActive bool) string {
	if len(records) == 0 {
		return "  (no jobs)"
	}

	var b strings.Builder
	for i, r := range records {
		titleSt, subtitleSt, prefix := titleStyle, subtitleStyle, "  "
		if isActive && i == cursor {
			titleSt, subtitleSt, prefix = selectedTitleStyle, selectedSubtitleStyle, "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(r.Title))
		b.WriteByte('\n')

		sub := r.City
		if r.JobType != "" {
			sub += " · " + r.JobType
		}
		if pay := formatPayRange(r.PayRateMin, r.PayRateMax); pay != "" {
			sub += " · " + pay
		}
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(sub))
		b.WriteByte('\n')

		if i < len(records)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func bucketTitle(b model.Bucket) string {
	switch b {
	case model.BucketPartTime:
		return "Part-time"
	case model.BucketFullTime:
		return "Full-time"
	default:
		return "Other"
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RunBoardTUI launches the split-pane board for one bucket. message is the
// broadcast the current board would produce.
// Returns wantQuit=true if the user pressed q/ctrl+c, false if they pressed
// esc to return to the picker.
func RunBoardTUI(all []model.JobRecord, bucket model.Bucket, message string) (bool, error) {
	p := tea.NewProgram(newBoardModel(all, bucket, message), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	final := result.(boardModel)
	return final.wantQuit, nil
}
