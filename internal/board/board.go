// Package board holds the client-side view state: which view is active,
// the selected date, the fetched task lists and the add-form draft.
// Lists change only after a server round trip completes.
package board

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/s1natex/todo-master/internal/tasks"
)

const dateLayout = "2006-01-02"

type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

var (
	ErrEmptyDraft  = errors.New("task title is empty")
	ErrUnknownView = errors.New("unknown view")
	ErrNotInDay    = errors.New("tasks can only be changed from the day view")
)

// API is the subset of the task service the board talks to.
type API interface {
	ListByDate(ctx context.Context, date string) ([]tasks.Task, error)
	Summary(ctx context.Context, kind, start, end string) ([]tasks.Task, error)
	Create(ctx context.Context, title, date string) (tasks.Task, error)
	Update(ctx context.Context, t tasks.Task) (tasks.Task, error)
	Delete(ctx context.Context, id int64) error
}

// Stats are derived from the list the active view shows.
type Stats struct {
	Completed int
	Pending   int
	Total     int
}

// Progress is the rounded completion percentage. ok is false for an empty list.
func (s Stats) Progress() (pct int, ok bool) {
	if s.Total == 0 {
		return 0, false
	}
	return int(math.Round(float64(s.Completed) / float64(s.Total) * 100)), true
}

func StatsOf(list []tasks.Task) Stats {
	var s Stats
	for _, t := range list {
		if t.Completed {
			s.Completed++
		}
	}
	s.Total = len(list)
	s.Pending = s.Total - s.Completed
	return s
}

// Snapshot is a copy of the board state for rendering.
type Snapshot struct {
	View    View
	Date    string
	Day     []tasks.Task
	Summary []tasks.Task
	Stats   Stats
	Draft   string
	Dark    bool
	Start   string
	End     string
}

// Tasks is the list the active view shows.
func (s Snapshot) Tasks() []tasks.Task {
	if s.View == ViewDay {
		return s.Day
	}
	return s.Summary
}

type Board struct {
	api API

	mu      sync.Mutex
	view    View
	date    time.Time
	day     []tasks.Task
	summary []tasks.Task
	draft   string
	dark    bool
	gen     uint64
}

// New starts on the day view for date.
func New(api API, date time.Time) *Board {
	return &Board{
		api:     api,
		view:    ViewDay,
		date:    truncateDay(date),
		day:     []tasks.Task{},
		summary: []tasks.Task{},
	}
}

func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	start, end := b.rangeLocked()
	snap := Snapshot{
		View:    b.view,
		Date:    b.date.Format(dateLayout),
		Day:     append([]tasks.Task(nil), b.day...),
		Summary: append([]tasks.Task(nil), b.summary...),
		Draft:   b.draft,
		Dark:    b.dark,
		Start:   start,
		End:     end,
	}
	snap.Stats = StatsOf(snap.Tasks())
	return snap
}

// Refresh reloads the active view's list. A response that arrives after
// the view or date changed again is dropped.
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	b.gen++
	gen, view := b.gen, b.view
	date := b.date.Format(dateLayout)
	start, end := b.rangeLocked()
	b.mu.Unlock()

	var (
		list []tasks.Task
		err  error
	)
	if view == ViewDay {
		list, err = b.api.ListByDate(ctx, date)
	} else {
		list, err = b.api.Summary(ctx, string(view), start, end)
	}
	if err != nil {
		return err
	}
	if list == nil {
		list = []tasks.Task{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen {
		return nil
	}
	if view == ViewDay {
		b.day = list
	} else {
		b.summary = list
	}
	return nil
}

func (b *Board) SetView(ctx context.Context, v View) error {
	switch v {
	case ViewDay, ViewWeek, ViewMonth:
	default:
		return ErrUnknownView
	}
	b.mu.Lock()
	b.view = v
	b.mu.Unlock()
	return b.Refresh(ctx)
}

// SetDate selects a YYYY-MM-DD date and reloads.
func (b *Board) SetDate(ctx context.Context, date string) error {
	if !tasks.ValidDate(date) {
		return tasks.ErrInvalidDate
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return tasks.ErrInvalidDate
	}
	b.mu.Lock()
	b.date = d
	b.mu.Unlock()
	return b.Refresh(ctx)
}

// Step moves the selected date n days, weeks or months depending on the
// active view, then reloads.
func (b *Board) Step(ctx context.Context, n int) error {
	b.mu.Lock()
	switch b.view {
	case ViewWeek:
		b.date = b.date.AddDate(0, 0, 7*n)
	case ViewMonth:
		first, _ := MonthRange(b.date)
		b.date = first.AddDate(0, n, 0)
	default:
		b.date = b.date.AddDate(0, 0, n)
	}
	b.mu.Unlock()
	return b.Refresh(ctx)
}

func (b *Board) SetDraft(s string) {
	b.mu.Lock()
	b.draft = s
	b.mu.Unlock()
}

// Add creates a task from the draft on the selected date. The draft is
// cleared only once the server accepted it.
func (b *Board) Add(ctx context.Context) error {
	b.mu.Lock()
	title := strings.TrimSpace(b.draft)
	date := b.date.Format(dateLayout)
	view := b.view
	b.mu.Unlock()

	if title == "" {
		return ErrEmptyDraft
	}
	if view != ViewDay {
		return ErrNotInDay
	}
	if _, err := b.api.Create(ctx, title, date); err != nil {
		return err
	}
	b.SetDraft("")
	return b.Refresh(ctx)
}

// Toggle flips the completion of the day task with id.
func (b *Board) Toggle(ctx context.Context, id int64) error {
	t, err := b.dayTask(id)
	if err != nil {
		return err
	}
	t.Completed = !t.Completed
	if _, err := b.api.Update(ctx, t); err != nil {
		return err
	}
	return b.Refresh(ctx)
}

func (b *Board) Delete(ctx context.Context, id int64) error {
	if _, err := b.dayTask(id); err != nil {
		return err
	}
	if err := b.api.Delete(ctx, id); err != nil {
		return err
	}
	return b.Refresh(ctx)
}

// ToggleTheme is local only.
func (b *Board) ToggleTheme() {
	b.mu.Lock()
	b.dark = !b.dark
	b.mu.Unlock()
}

func (b *Board) dayTask(id int64) (tasks.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.view != ViewDay {
		return tasks.Task{}, ErrNotInDay
	}
	for _, t := range b.day {
		if t.ID == id {
			return t, nil
		}
	}
	return tasks.Task{}, tasks.ErrInvalidID
}

func (b *Board) rangeLocked() (string, string) {
	var start, end time.Time
	switch b.view {
	case ViewWeek:
		start, end = WeekRange(b.date)
	case ViewMonth:
		start, end = MonthRange(b.date)
	default:
		start, end = b.date, b.date
	}
	return start.Format(dateLayout), end.Format(dateLayout)
}

// WeekRange is the Sunday..Saturday week containing d.
func WeekRange(d time.Time) (time.Time, time.Time) {
	d = truncateDay(d)
	start := d.AddDate(0, 0, -int(d.Weekday()))
	return start, start.AddDate(0, 0, 6)
}

// MonthRange is the first..last day of d's calendar month.
func MonthRange(d time.Time) (time.Time, time.Time) {
	start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

func truncateDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
