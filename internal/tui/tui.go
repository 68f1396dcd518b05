// Package tui is a terminal client for the task API built on Bubble Tea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/s1natex/todo-master/internal/apiclient"
	"github.com/s1natex/todo-master/internal/board"
	"github.com/s1natex/todo-master/internal/tasks"
)

const requestTimeout = 10 * time.Second

// doneMsg reports the end of one board round trip.
type doneMsg struct {
	op  string
	err error
}

// taskItem adapts a task to bubbles/list.
type taskItem struct{ tasks.Task }

func (i taskItem) FilterValue() string { return i.Title }

type itemDelegate struct {
	st          *styles
	interactive bool
}

func (d itemDelegate) Height() int                         { return 1 }
func (d itemDelegate) Spacing() int                        { return 0 }
func (d itemDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, _ := item.(taskItem)

	box, title := d.st.muted.Render(boxUnchecked), it.Title
	if it.Completed {
		box, title = d.st.success.Render(boxChecked), d.st.done.Render(it.Title)
	}
	line := box + " " + title + "  " + d.st.muted.Render("📅 "+it.Date)
	if !d.interactive {
		badge := d.st.pending.Render("⏳ Pending")
		if it.Completed {
			badge = d.st.success.Render("✅ Done")
		}
		line += "  " + badge
	}

	prefix := "  "
	if index == m.Index() {
		prefix = d.st.selected.Render("> ")
	}
	fmt.Fprint(w, prefix+line)
}

type Model struct {
	board *board.Board
	ctx   context.Context

	snap   board.Snapshot
	st     *styles
	list   list.Model
	input  textinput.Model
	help   help.Model
	keys   keyMap
	adding bool
	busy   bool
	err    string
	width  int
	height int
}

func New(ctx context.Context, b *board.Board) Model {
	st := newStyles(false)

	l := list.New(nil, itemDelegate{st: &st, interactive: true}, 80, 16)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(true)
	l.DisableQuitKeybindings()

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "What needs to be done?"
	ti.CharLimit = tasks.MaxTitleLen

	return Model{
		board:  b,
		ctx:    ctx,
		snap:   b.Snapshot(),
		st:     &st,
		list:   l,
		input:  ti,
		help:   help.New(),
		keys:   defaultKeys(),
		width:  80,
		height: 24,
	}
}

// Run starts the interactive client against the API at baseURL.
func Run(ctx context.Context, baseURL string) error {
	b := board.New(apiclient.New(baseURL), time.Now())
	_, err := tea.NewProgram(New(ctx, b), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return m.do("refresh", m.board.Refresh)
}

// do runs fn off the UI goroutine and reports back with a doneMsg.
func (m Model) do(op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()
		return doneMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.resize()
		return m, nil

	case doneMsg:
		m.busy = false
		m.err = ""
		if msg.err != nil {
			m.err = errorText(msg.err)
		}
		if msg.op == "add" && msg.err == nil {
			m.adding = false
			m.input.Reset()
			m.input.Blur()
		}
		return m, m.sync()
	}

	if m.adding {
		return m.updateAdding(msg)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(km, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(km, m.keys.Day):
		return m.start("view", func(ctx context.Context) error { return m.board.SetView(ctx, board.ViewDay) })
	case key.Matches(km, m.keys.Week):
		return m.start("view", func(ctx context.Context) error { return m.board.SetView(ctx, board.ViewWeek) })
	case key.Matches(km, m.keys.Month):
		return m.start("view", func(ctx context.Context) error { return m.board.SetView(ctx, board.ViewMonth) })
	case key.Matches(km, m.keys.Prev):
		return m.start("date", func(ctx context.Context) error { return m.board.Step(ctx, -1) })
	case key.Matches(km, m.keys.Next):
		return m.start("date", func(ctx context.Context) error { return m.board.Step(ctx, 1) })
	case key.Matches(km, m.keys.Today):
		today := time.Now().Format("2006-01-02")
		return m.start("date", func(ctx context.Context) error { return m.board.SetDate(ctx, today) })
	case key.Matches(km, m.keys.Reload):
		return m.start("refresh", m.board.Refresh)
	case key.Matches(km, m.keys.Theme):
		m.board.ToggleTheme()
		return m, m.sync()
	case key.Matches(km, m.keys.Add):
		if m.snap.View != board.ViewDay {
			return m, nil
		}
		m.adding = true
		m.err = ""
		m.input.SetValue(m.snap.Draft)
		m.resize()
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(km, m.keys.Toggle):
		if t, ok := m.selected(); ok {
			return m.start("toggle", func(ctx context.Context) error { return m.board.Toggle(ctx, t.ID) })
		}
		return m, nil
	case key.Matches(km, m.keys.Delete):
		if t, ok := m.selected(); ok {
			return m.start("delete", func(ctx context.Context) error { return m.board.Delete(ctx, t.ID) })
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateAdding(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "enter":
			if m.busy {
				return m, nil
			}
			m.board.SetDraft(m.input.Value())
			if strings.TrimSpace(m.input.Value()) == "" {
				m.err = "Title cannot be empty"
				return m, nil
			}
			return m.start("add", m.board.Add)
		case "esc":
			m.board.SetDraft(m.input.Value())
			m.adding = false
			m.input.Blur()
			m.resize()
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) start(op string, fn func(context.Context) error) (tea.Model, tea.Cmd) {
	m.busy = true
	return m, m.do(op, fn)
}

// sync copies the board state into the list and styles.
func (m *Model) sync() tea.Cmd {
	m.snap = m.board.Snapshot()
	*m.st = newStyles(m.snap.Dark)

	current := m.snap.Tasks()
	items := make([]list.Item, 0, len(current))
	for _, t := range current {
		items = append(items, taskItem{t})
	}
	m.list.SetDelegate(itemDelegate{st: m.st, interactive: m.snap.View == board.ViewDay})
	if m.list.Index() >= len(items) && len(items) > 0 {
		m.list.Select(len(items) - 1)
	}
	m.resize()
	return m.list.SetItems(items)
}

func (m *Model) resize() {
	reserved := 9
	if m.snap.View != board.ViewDay {
		reserved += 2
	}
	if m.adding {
		reserved += 4
	}
	h := m.height - reserved
	if h < 3 {
		h = 3
	}
	m.list.SetSize(m.width-4, h)
}

func (m Model) selected() (tasks.Task, bool) {
	if m.snap.View != board.ViewDay || m.busy {
		return tasks.Task{}, false
	}
	it, ok := m.list.SelectedItem().(taskItem)
	return it.Task, ok
}

func (m Model) View() string {
	st := m.st
	var b strings.Builder

	b.WriteString(st.title.Render("📝 Todo Master"))
	theme := "🌙"
	if m.snap.Dark {
		theme = "☀️"
	}
	b.WriteString("  " + theme + "\n\n")

	for _, v := range []board.View{board.ViewDay, board.ViewWeek, board.ViewMonth} {
		label := strings.ToUpper(string(v[:1])) + string(v[1:])
		if v == m.snap.View {
			b.WriteString(st.tabOn.Render(label))
		} else {
			b.WriteString(st.tab.Render(label))
		}
	}
	b.WriteString("  " + st.accent.Render("📅 "+m.snap.Date) + "\n\n")

	if m.snap.View == board.ViewDay {
		if len(m.snap.Day) == 0 {
			b.WriteString(st.muted.Render("📝 No tasks for this day. Press a to add one."))
		} else {
			b.WriteString(m.list.View())
		}
	} else {
		heading := "📊 Weekly Summary"
		if m.snap.View == board.ViewMonth {
			heading = "📈 Monthly Summary"
		}
		b.WriteString(st.title.Render(heading) + "  " + st.muted.Render(m.snap.Start+" → "+m.snap.End) + "\n")
		b.WriteString(m.statsLine() + "\n\n")
		if len(m.snap.Summary) == 0 {
			b.WriteString(st.muted.Render("📭 No tasks for this " + string(m.snap.View)))
		} else {
			b.WriteString(m.list.View())
		}
	}

	if m.adding {
		box := st.panel.Render("Add new task\n" + m.input.View())
		b.WriteString("\n" + box)
	}
	if m.err != "" {
		b.WriteString("\n" + st.err.Render("✖ "+m.err))
	}
	b.WriteString("\n" + m.help.View(m.keys))

	return st.panel.Width(max(m.width-2, 20)).Render(b.String())
}

func (m Model) statsLine() string {
	s := m.snap.Stats
	parts := []string{
		m.st.success.Render(fmt.Sprintf("✅ %d Completed", s.Completed)),
		m.st.pending.Render(fmt.Sprintf("⏳ %d Pending", s.Pending)),
		m.st.accent.Render(fmt.Sprintf("📝 %d Total", s.Total)),
	}
	if pct, ok := s.Progress(); ok {
		parts = append(parts, m.st.title.Render(fmt.Sprintf("🎯 %d%% Progress", pct)))
	}
	return strings.Join(parts, "   ")
}

func errorText(err error) string {
	var apiErr *apiclient.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Reason != "":
		return apiErr.Reason
	case errors.Is(err, board.ErrEmptyDraft):
		return "Title cannot be empty"
	case errors.Is(err, context.DeadlineExceeded):
		return "server did not respond"
	}
	return err.Error()
}
