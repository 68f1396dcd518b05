package tui

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s1natex/todo-master/internal/apiclient"
	"github.com/s1natex/todo-master/internal/board"
	"github.com/s1natex/todo-master/internal/tasks"
)

func newTestModel(t *testing.T) (Model, *tasks.InMemoryRepo) {
	m, repo, _ := newTestServer(t)
	return m, repo
}

func newTestServer(t *testing.T) (Model, *tasks.InMemoryRepo, *httptest.Server) {
	t.Helper()
	repo := tasks.NewInMemoryRepo()
	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		tasks.RegisterRoutes(api, repo, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	b := board.New(apiclient.New(srv.URL), time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC))
	return New(context.Background(), b), repo, srv
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// finish runs a board command and feeds its result back into the model.
func finish(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	done, ok := cmd().(doneMsg)
	require.True(t, ok, "expected a board round trip")
	m, _ = update(m, done)
	return m
}

func TestModel_EmptyDay(t *testing.T) {
	m, _ := newTestModel(t)
	m = finish(t, m, m.Init())

	assert.Empty(t, m.err)
	assert.Contains(t, m.View(), "No tasks for this day")
	assert.Contains(t, m.View(), "2024-06-12")
}

func TestModel_AddToggleSummarize(t *testing.T) {
	m, repo := newTestModel(t)
	m = finish(t, m, m.Init())

	m, _ = update(m, runes("a"))
	require.True(t, m.adding)
	m, _ = update(m, runes("Write report"))
	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyEnter})
	m = finish(t, m, cmd)

	assert.False(t, m.adding)
	require.Len(t, m.snap.Day, 1)
	assert.Equal(t, "Write report", m.snap.Day[0].Title)
	assert.Contains(t, m.View(), "Write report")

	m, cmd = update(m, tea.KeyMsg{Type: tea.KeySpace})
	m = finish(t, m, cmd)
	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.True(t, bool(all[0].Completed))

	m, cmd = update(m, runes("w"))
	m = finish(t, m, cmd)
	assert.Equal(t, board.ViewWeek, m.snap.View)
	view := m.View()
	assert.Contains(t, view, "Weekly Summary")
	assert.Contains(t, view, "100% Progress")
	assert.Contains(t, view, "Done")

	// summary lists are read-only
	_, cmd = update(m, runes("x"))
	assert.Nil(t, cmd)
}

func TestModel_BlankTitleStaysLocal(t *testing.T) {
	m, repo := newTestModel(t)
	m = finish(t, m, m.Init())

	m, _ = update(m, runes("a"))
	m, _ = update(m, runes("   "))
	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.True(t, m.adding)
	assert.Equal(t, "Title cannot be empty", m.err)
	all, _ := repo.List(context.Background())
	assert.Empty(t, all)
}

func TestModel_ServerErrorKeepsForm(t *testing.T) {
	m, _, srv := newTestServer(t)
	m = finish(t, m, m.Init())

	m, _ = update(m, runes("a"))
	m, _ = update(m, runes("Write report"))
	srv.Close()
	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyEnter})
	m = finish(t, m, cmd)

	assert.NotEmpty(t, m.err)
	assert.True(t, m.adding, "a failed add keeps the form open")
	assert.Equal(t, "Write report", m.snap.Draft)
}

func TestModel_ThemeAndQuit(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = update(m, runes("t"))
	assert.True(t, m.snap.Dark)
	assert.Contains(t, m.View(), "☀️")

	_, cmd := update(m, runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
