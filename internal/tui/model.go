package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sz-labs/randombark/internal/app"
	"github.com/sz-labs/randombark/internal/fetchstate"
	"github.com/sz-labs/randombark/pkg/dogapi"
)

// Source is the screen contract the terminal view consumes.
type Source interface {
	State() app.DogState
	BeginFetch() (string, error)
	Subscribe() (<-chan app.DogState, func(), error)
}

// stateMsg carries a state read from the screen subscription.
type stateMsg struct{ state app.DogState }

// closedMsg signals the screen subscription has ended.
type closedMsg struct{}

// Model renders the latest dog state and forwards fetch requests.
type Model struct {
	src     Source
	updates <-chan app.DogState
	cancel  func()
	keys    KeyMap
	spinner spinner.Model
	state   app.DogState
	notice  string
	width   int
}

// NewModel subscribes to src. Call Close once the program exits.
func NewModel(src Source) (*Model, error) {
	updates, cancel, err := src.Subscribe()
	if err != nil {
		return nil, err
	}
	return &Model{
		src:     src,
		updates: updates,
		cancel:  cancel,
		keys:    DefaultKeyMap(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		state:   src.State(),
	}, nil
}

// Close releases the screen subscription.
func (m *Model) Close() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// waitForState blocks on the subscription for the next state.
func waitForState(updates <-chan app.DogState) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return stateMsg{state: st}
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitForState(m.updates), m.spinner.Tick)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case stateMsg:
		m.state = msg.state
		if m.state.IsLoading() {
			return m, tea.Batch(waitForState(m.updates), m.spinner.Tick)
		}
		return m, waitForState(m.updates)

	case closedMsg:
		return m, nil

	case spinner.TickMsg:
		if !m.state.IsLoading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.ForceQuit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Fetch):
		if _, err := m.src.BeginFetch(); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.notice = ""
		m.state = m.src.State()
		return m, m.spinner.Tick
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("randombark"))
	b.WriteString("\n")

	switch m.state.Status() {
	case fetchstate.StatusLoading:
		b.WriteString(m.spinner.View())
		b.WriteString(" fetching a dog...")

	case fetchstate.StatusError:
		b.WriteString(errorStyle.Render("Could not fetch a dog"))
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(describeError(m.state.Err())))

	case fetchstate.StatusSuccess:
		dog, _ := m.state.Value()
		b.WriteString("Breed: ")
		b.WriteString(breedStyle.Render(dog.Breed))
		b.WriteString("\n")
		b.WriteString(urlStyle.Render(dog.ImageURL))
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.notice))
	}

	help := []string{
		m.keys.Fetch.Help().Key + " " + m.keys.Fetch.Help().Desc,
		m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc,
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(strings.Join(help, " • ")))

	frame := frameStyle
	if m.width > 4 {
		frame = frame.MaxWidth(m.width)
	}
	return frame.Render(b.String())
}

func describeError(err error) string {
	if err == nil {
		return "unknown error"
	}
	if kind := dogapi.Kind(err); kind != "" {
		return kind + " error: " + err.Error()
	}
	return err.Error()
}
