package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/btouchard/choreboard/internal/board"
	"github.com/btouchard/choreboard/internal/task"
)

type taskResponse struct {
	Message string    `json:"message"`
	Task    task.Task `json:"task"`
}

type tasksResponse struct {
	Message string      `json:"message"`
	Tasks   []task.Task `json:"tasks"`
}

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Board.Tasks())
}

// toggleTask handles POST /weekend-tasks/{id}/toggle.
func (h *handler) toggleTask(w http.ResponseWriter, r *http.Request) {
	var item board.Item
	if err := decodeBody(w, r, &item); err != nil {
		writeError(w, r, err)
		return
	}
	item.ID = chi.URLParam(r, "id")
	item.Title = ""
	h.applyToggle(w, r, item)
}

// toggleLegacy handles POST /weekend-tasks/toggle, where the target is named
// in the body by id or title.
func (h *handler) toggleLegacy(w http.ResponseWriter, r *http.Request) {
	var item board.Item
	if err := decodeBody(w, r, &item); err != nil {
		writeError(w, r, err)
		return
	}
	h.applyToggle(w, r, item)
}

func (h *handler) applyToggle(w http.ResponseWriter, r *http.Request, item board.Item) {
	req, err := item.ToggleRequest()
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.deps.Board.Toggle(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{Message: fmt.Sprintf("Toggled %s", t.Title), Task: t})
}

func (h *handler) reset(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.deps.Board.Reset(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasksResponse{Message: "Board reset", Tasks: tasks})
}

func (h *handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var ps board.PushSubscription
	if err := decodeBody(w, r, &ps); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.deps.Board.Subscribe(r.Context(), ps.Endpoint, ps.Keys)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Subscribed",
		"id":      sub.ID,
	})
}

func (h *handler) vapidPublicKey(w http.ResponseWriter, r *http.Request) {
	if h.deps.VAPIDPublicKey == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "push notifications are disabled"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.deps.VAPIDPublicKey})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if h.deps.Hub != nil {
		resp["viewers"] = h.deps.Hub.Count()
	}

	if h.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Store.Ping(ctx); err != nil {
			resp["status"] = "degraded"
			resp["store"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
