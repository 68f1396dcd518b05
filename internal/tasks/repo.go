package tasks

import (
	"context"
	"sort"
	"sync"
)

// Repository is the task store. Update and Delete of an unknown id are
// no-ops that report success.
type Repository interface {
	Create(ctx context.Context, title, date string) (Task, error)
	List(ctx context.Context) ([]Task, error)
	ListByDate(ctx context.Context, date string) ([]Task, error)
	ListRange(ctx context.Context, start, end string) ([]Task, error)
	Update(ctx context.Context, t Task) (Task, error)
	Delete(ctx context.Context, id int64) error
}

type InMemoryRepo struct {
	mu    sync.Mutex
	seq   int64
	store map[int64]Task
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		store: make(map[int64]Task),
	}
}

func (r *InMemoryRepo) Create(_ context.Context, title, date string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	t := Task{
		ID:    r.seq,
		Title: title,
		Date:  date,
	}
	r.store[t.ID] = t
	return t, nil
}

func (r *InMemoryRepo) List(_ context.Context) ([]Task, error) {
	return r.filter(func(Task) bool { return true }), nil
}

func (r *InMemoryRepo) ListByDate(_ context.Context, date string) ([]Task, error) {
	return r.filter(func(t Task) bool { return t.Date == date }), nil
}

func (r *InMemoryRepo) ListRange(_ context.Context, start, end string) ([]Task, error) {
	return r.filter(func(t Task) bool { return t.Date >= start && t.Date <= end }), nil
}

func (r *InMemoryRepo) Update(_ context.Context, t Task) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store[t.ID]; ok {
		r.store[t.ID] = t
	}
	return t, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.store, id)
	return nil
}

// filter returns matching tasks in id order, like the SQLite repo.
func (r *InMemoryRepo) filter(keep func(Task) bool) []Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Task, 0, len(r.store))
	for _, t := range r.store {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
