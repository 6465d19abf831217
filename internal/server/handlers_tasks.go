package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/workflow"
)

// sseKeepAlive is how often an idle log stream sends a comment.
const sseKeepAlive = 15 * time.Second

type createTaskRequest struct {
	// Channel is a channel ID or slug.
	Channel string `json:"channel"`
	Title   string `json:"title,omitempty"`
	Brief   string `json:"brief"`
}

type executeStepRequest struct {
	Params map[string]string `json:"params,omitempty"`
}

type abortRequest struct {
	Reason string `json:"reason,omitempty"`
}

type taskListResponse struct {
	Tasks  []types.WritingTask `json:"tasks"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Channel == "" {
		s.writeError(w, r, &ErrValidation{Field: "channel", Message: "is required"})
		return
	}
	channel, err := s.catalog.ResolveChannel(r.Context(), req.Channel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if channel == nil {
		s.writeError(w, r, &types.RecordNotFoundError{Kind: "channel", Key: req.Channel})
		return
	}

	task, err := s.controller.CreateTask(r.Context(), workflow.CreateTaskInput{
		ChannelID: channel.ID,
		Title:     req.Title,
		Brief:     req.Brief,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/tasks/"+task.ID.String())
	s.jsonResponse(w, http.StatusCreated, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter types.TaskFilter

	if ref := q.Get("channel"); ref != "" {
		channel, err := s.catalog.ResolveChannel(r.Context(), ref)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if channel == nil {
			s.writeError(w, r, &types.RecordNotFoundError{Kind: "channel", Key: ref})
			return
		}
		filter.ChannelID = &channel.ID
	}
	if raw := q.Get("status"); raw != "" {
		status := types.TaskStatus(raw)
		filter.Status = &status
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit", workflow.DefaultListLimit); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		s.writeError(w, r, err)
		return
	}

	tasks, err := s.controller.ListTasks(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []types.WritingTask{}
	}
	limit := min(filter.Limit, workflow.MaxListLimit)
	s.jsonResponse(w, http.StatusOK, taskListResponse{Tasks: tasks, Limit: limit, Offset: filter.Offset})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	task, err := s.controller.GetTask(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.controller.DeleteTask(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExecuteStep(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	step, err := strconv.Atoi(r.PathValue("step"))
	if err != nil {
		s.writeError(w, r, &ErrValidation{Field: "step", Message: "must be an integer"})
		return
	}
	var req executeStepRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}

	result, err := s.controller.ExecuteStep(r.Context(), id, step, req.Params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var in types.Confirmation
	if !s.decodeOptional(w, r, &in) {
		return
	}
	task, err := s.controller.ConfirmCheckpoint(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, task)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req abortRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	task, err := s.controller.AbortTask(r.Context(), id, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, task)
}

func (s *Server) handleListSteps(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.controller.Registry().Definitions())
}

// handleTaskLog serves the task log. By default it is an SSE stream that
// replays entries after Last-Event-ID (or ?after) and follows new ones until
// the task is terminal. With ?follow=false it returns a JSON array.
func (s *Server) handleTaskLog(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	after, err := replayCursor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	follow, err := queryBool(r, "follow", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if !follow {
		entries, err := s.controller.Logs(r.Context(), id, after)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if entries == nil {
			entries = []types.LogEntry{}
		}
		s.jsonResponse(w, http.StatusOK, entries)
		return
	}

	entries, err := s.controller.StreamLog(r.Context(), id, after)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.streamSSE(r, sse, id, entries)
}

func (s *Server) streamSSE(r *http.Request, sse *SSEWriter, id uuid.UUID, entries <-chan types.LogEntry) {
	ctx := r.Context()
	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case entry, open := <-entries:
			if !open {
				if ctx.Err() != nil {
					return
				}
				task, err := s.controller.GetTask(ctx, id)
				if err != nil {
					sse.WriteError(err.Error())
					return
				}
				_ = sse.WriteEvent(0, "end", task)
				return
			}
			if err := sse.WriteEvent(entry.Seq, "log", entry); err != nil {
				return
			}
		case <-keepAlive.C:
			if err := sse.WriteComment("keep-alive"); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
