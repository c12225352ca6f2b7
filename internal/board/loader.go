package board

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/shiftalert/internal/model"
)

type fetchDoneMsg struct {
	records []model.JobRecord
	err     error
}

type loaderModel struct {
	source  string
	fetchFn func(ctx context.Context) ([]model.JobRecord, error)
	spinner spinner.Model
	result  []model.JobRecord
	err     error
	done    bool
}

func newLoaderModel(source string, fetchFn func(ctx context.Context) ([]model.JobRecord, error)) loaderModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	return loaderModel{source: source, fetchFn: fetchFn, spinner: sp}
}

func (m loaderModel) Init() tea.Cmd {
	return tea.Batch(m.doFetch(), m.spinner.Tick)
}

func (m loaderModel) doFetch() tea.Cmd {
	fetchFn := m.fetchFn
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		records, err := fetchFn(ctx)
		return fetchDoneMsg{records: records, err: err}
	}
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case fetchDoneMsg:
		m.result = msg.records
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = fmt.Errorf("cancelled")
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m loaderModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s Fetching jobs from %s...\n", m.spinner.View(), m.source)
}

// RunLoader shows a spinner while fetching. It renders inline (no alt screen).
func RunLoader(source string, fetchFn func(ctx context.Context) ([]model.JobRecord, error)) ([]model.JobRecord, error) {
	p := tea.NewProgram(newLoaderModel(source, fetchFn))
	result, err := p.Run()
	if err != nil {
		return nil, err
	}
	final := result.(loaderModel)
	return final.result, final.err
}
