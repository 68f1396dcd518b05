package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("github.com/s1natex/todo-master/internal/tasks")

type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(dsn string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Reasonable pragmas for an app server
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) Close() error { return r.db.Close() }

// Create implements Repository.Create. Inputs are validated by the caller.
func (r *SQLiteRepo) Create(ctx context.Context, title, date string) (t Task, err error) {
	ctx, span := startSpan(ctx, "tasks.create", attribute.String("task.date", date))
	defer func() { endSpan(span, err) }()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (title, date, completed)
		VALUES (?, ?, 0)
	`, title, date)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Task{}, fmt.Errorf("insert task id: %w", err)
	}
	return Task{
		ID:    id,
		Title: title,
		Date:  date,
	}, nil
}

func (r *SQLiteRepo) List(ctx context.Context) (out []Task, err error) {
	ctx, span := startSpan(ctx, "tasks.list")
	defer func() { endSpan(span, err) }()

	return r.query(ctx, `SELECT id, title, date, completed FROM tasks ORDER BY id ASC`)
}

func (r *SQLiteRepo) ListByDate(ctx context.Context, date string) (out []Task, err error) {
	ctx, span := startSpan(ctx, "tasks.list_by_date", attribute.String("task.date", date))
	defer func() { endSpan(span, err) }()

	return r.query(ctx, `
		SELECT id, title, date, completed
		FROM tasks
		WHERE date = ?
		ORDER BY id ASC
	`, date)
}

// ListRange is inclusive on both ends. The date column is fixed-width
// YYYY-MM-DD text, so BETWEEN on strings orders like dates.
func (r *SQLiteRepo) ListRange(ctx context.Context, start, end string) (out []Task, err error) {
	ctx, span := startSpan(ctx, "tasks.list_range",
		attribute.String("range.start", start),
		attribute.String("range.end", end),
	)
	defer func() { endSpan(span, err) }()

	return r.query(ctx, `
		SELECT id, title, date, completed
		FROM tasks
		WHERE date BETWEEN ? AND ?
		ORDER BY id ASC
	`, start, end)
}

func (r *SQLiteRepo) Update(ctx context.Context, t Task) (_ Task, err error) {
	ctx, span := startSpan(ctx, "tasks.update", attribute.Int64("task.id", t.ID))
	defer func() { endSpan(span, err) }()

	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, date = ?, completed = ?
		WHERE id = ?
	`, t.Title, t.Date, bool(t.Completed), t.ID)
	if err != nil {
		return Task{}, fmt.Errorf("update task %d: %w", t.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		span.SetAttributes(attribute.Int64("db.rows_affected", n))
	}
	return t, nil
}

func (r *SQLiteRepo) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := startSpan(ctx, "tasks.delete", attribute.Int64("task.id", id))
	defer func() { endSpan(span, err) }()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepo) query(ctx context.Context, q string, args ...any) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		var t Task
		var completed bool
		if err := rows.Scan(&t.ID, &t.Title, &t.Date, &completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Completed = Flag(completed)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ApplyMigrations ensures schema exists
func (r *SQLiteRepo) ApplyMigrations(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	date TEXT NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tasks_date ON tasks (date);
	`)
	return err
}

// Helper to build DSN like: file:/absolute/path?_pragma=busy_timeout(5000)
// The parent directory is created if missing.
func SQLiteFileDSN(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return "file:" + filepath.ToSlash(abs) + "?_pragma=busy_timeout(5000)", nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs, attribute.String("db.system", "sqlite"))...),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
