package board

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/shiftalert/internal/classify"
	"github.com/amishk599/shiftalert/internal/model"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

var pickerBuckets = []model.Bucket{model.BucketPartTime, model.BucketFullTime, model.BucketOther}

type pickerModel struct {
	summary classify.Summary
	winning model.Bucket
	hasWin  bool
	cursor  int
	chosen  int // -1 = no choice yet, -2 = quit
}

func newPickerModel(summary classify.Summary) pickerModel {
	m := pickerModel{summary: summary, chosen: -1}
	m.winning, m.hasWin = summary.Winning()
	// Start on the bucket that would be broadcast.
	for i, b := range pickerBuckets {
		if m.hasWin && b == m.winning {
			m.cursor = i
		}
	}
	return m
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.chosen = -2
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(pickerBuckets)-1 {
				m.cursor++
			}
		case "enter":
			m.chosen = m.cursor
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) count(b model.Bucket) int {
	switch b {
	case model.BucketPartTime:
		return m.summary.PartTime
	case model.BucketFullTime:
		return m.summary.FullTime
	default:
		return m.summary.Other
	}
}

func (m pickerModel) View() string {
	s := pickerTitleStyle.Render("Job Board: select a bucket")
	s += "\n"

	for i, b := range pickerBuckets {
		label := fmt.Sprintf("%s (%d)", b, m.count(b))
		if m.hasWin && b == m.winning {
			label += "  ← broadcast"
		}
		if i == m.cursor {
			s += pickerSelectedStyle.Render("> "+label) + "\n"
		} else {
			s += pickerItemStyle.Render(label) + "\n"
		}
	}

	s += pickerHintStyle.Render("↑/↓/j/k navigate  enter select  q quit")
	return s
}

// RunBucketPicker shows an interactive bucket selector. ok is false if the
// user quit.
func RunBucketPicker(summary classify.Summary) (bucket model.Bucket, ok bool, err error) {
	p := tea.NewProgram(newPickerModel(summary))
	result, err := p.Run()
	if err != nil {
		return model.BucketOther, false, err
	}

	final := result.(pickerModel)
	if final.chosen < 0 {
		return model.BucketOther, false, nil
	}
	return pickerBuckets[final.chosen], true, nil
}
