package tasks

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type createTaskRequest struct {
	Title string `json:"title"`
	Date  string `json:"date"`
}

type updateTaskRequest struct {
	Title     string          `json:"title"`
	Date      string          `json:"date"`
	Completed json.RawMessage `json:"completed"`
}

type errResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

var errTrailingData = errors.New("trailing data after JSON value")

const (
	reasonInvalidJSON = "invalid JSON"
	reasonTooLarge    = "payload too large"
	reasonInternal    = "internal server error"
)

// RegisterRoutes mounts the task and summary endpoints on r.
func RegisterRoutes(r chi.Router, repo Repository, logger *slog.Logger) {
	h := &handler{repo: repo, logger: logger}
	r.Get("/tasks", h.listTasks)
	r.Post("/tasks", h.createTask)
	r.Put("/tasks/{id}", h.updateTask)
	r.Delete("/tasks/{id}", h.deleteTask)
	r.Get("/summary/week", h.summary)
	r.Get("/summary/month", h.summary)
}

type handler struct {
	repo   Repository
	logger *slog.Logger
}

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	var (
		list []Task
		err  error
	)
	if date := r.URL.Query().Get("date"); date != "" {
		if !ValidDate(date) {
			writeError(w, http.StatusBadRequest, ErrInvalidDate.Error())
			return
		}
		list, err = h.repo.ListByDate(r.Context(), date)
	} else {
		list, err = h.repo.List(r.Context())
	}
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	title, err := NormalizeTitle(req.Title)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ValidDate(req.Date) {
		writeError(w, http.StatusBadRequest, ErrInvalidDate.Error())
		return
	}

	t, err := h.repo.Create(r.Context(), title, req.Date)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	title, err := NormalizeTitle(req.Title)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ValidDate(req.Date) {
		writeError(w, http.StatusBadRequest, ErrInvalidDate.Error())
		return
	}
	var completed Flag
	if err := completed.UnmarshalJSON(req.Completed); err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidCompleted.Error())
		return
	}

	t, err := h.repo.Update(r.Context(), Task{ID: id, Title: title, Date: req.Date, Completed: completed})
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// summary serves both week and month; callers compute the bounds.
func (h *handler) summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if !ValidDate(start) || !ValidDate(end) {
		writeError(w, http.StatusBadRequest, ErrInvalidRange.Error())
		return
	}

	list, err := h.repo.ListRange(r.Context(), start, end)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) storeError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("store_error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("req_id", chimw.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, reasonInternal)
}

// parseID accepts ASCII digits only; ParseInt alone would let "+5" through.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 || strings.TrimLeft(raw, "0123456789") != "" {
		writeError(w, http.StatusBadRequest, ErrInvalidID.Error())
		return 0, false
	}
	return id, true
}

// decodeBody reads exactly one JSON value. Anything but whitespace after it
// is rejected, and the whole body is read so the size cap applies to it.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(v)
	if err == nil {
		if err = dec.Decode(&struct{}{}); err == io.EOF {
			return true
		} else if err == nil {
			err = errTrailingData
		}
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, reasonTooLarge)
		return false
	}
	writeError(w, http.StatusBadRequest, reasonInvalidJSON)
	return false
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, errResponse{Error: reason})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
