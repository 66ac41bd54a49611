package task

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/taskhive/internal/auth"
	"github.com/redmonkez12/taskhive/internal/group"
	"github.com/redmonkez12/taskhive/internal/httputil"
	"github.com/redmonkez12/taskhive/internal/logging"
)

// Handler contains HTTP handlers for task endpoints
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// CreateTaskRequest represents the task creation request body
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
}

// UpdateTaskRequest represents the task update request body
type UpdateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateStatusRequest represents the status change request body
type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

// AssignTaskRequest represents the assignment request body
type AssignTaskRequest struct {
	AssigneeID uuid.UUID `json:"assignee_id"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Create handles task creation
// @Summary      Create a task
// @Description  Create a task in a group. Assigning at creation requires the assignment feature and a group-member assignee; the task then starts in PENDING_ACCEPTANCE.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        request body CreateTaskRequest true "Task fields"
// @Success      201 {object} Task
// @Failure      400 {object} ErrorResponse "Invalid request, validation error, or feature disabled"
// @Failure      403 {object} ErrorResponse "Not a member"
// @Security     BearerAuth
// @Router       /groups/{groupID}/tasks [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid group ID", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid create task request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	created, err := h.service.Create(r.Context(), actorID, groupID, req.Title, req.Description, req.AssigneeID)
	if err != nil {
		h.respondTaskError(w, logger, err, "failed to create task")
		return
	}

	logger.Info("task created", "task_id", created.ID, "group_id", groupID)

	httputil.RespondJSON(w, created, http.StatusCreated)
}

// List handles listing a group's tasks
// @Summary      List tasks
// @Description  List all tasks of a group. Members only.
// @Tags         tasks
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Success      200 {array} Task
// @Failure      403 {object} ErrorResponse "Not a member"
// @Security     BearerAuth
// @Router       /groups/{groupID}/tasks [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid group ID", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	tasks, err := h.service.ListForGroup(r.Context(), actorID, groupID)
	if err != nil {
		h.respondTaskError(w, logger, err, "failed to list tasks")
		return
	}

	httputil.RespondJSON(w, tasks, http.StatusOK)
}

// Get handles fetching a single task
// @Summary      Get a task
// @Description  Get a task by ID. Group members only.
// @Tags         tasks
// @Produce      json
// @Param        taskID path string true "Task ID"
// @Success      200 {object} Task
// @Failure      404 {object} ErrorResponse "Task not found"
// @Security     BearerAuth
// @Router       /tasks/{taskID} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, taskID, ok := h.actorAndTask(w, r)
	if !ok {
		return
	}

	t, err := h.service.GetByID(r.Context(), actorID, taskID)
	if err != nil {
		h.respondTaskError(w, logger, err, "failed to get task")
		return
	}

	httputil.RespondJSON(w, t, http.StatusOK)
}

// UpdateStatus handles lifecycle moves
// @Summary      Update task status
// @Description  Move a task along its lifecycle. Any group member may move a task; acceptance has its own endpoint.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        taskID path string true "Task ID"
// @Param        request body UpdateStatusRequest true "Target status"
// @Success      200 {object} Task
// @Failure      400 {object} ErrorResponse "Unknown status or invalid transition"
// @Security     BearerAuth
// @Router       /tasks/{taskID}/status [patch]
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, taskID, ok := h.actorAndTask(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid update status request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	updated, err := h.service.UpdateStatus(r.Context(), actorID, taskID, req.Status)
	if err != nil {
		h.respondTaskError(w, logger, err, "failed to update task status")
		return
	}

	logger.Info("task status updated", "task_id", taskID, "status", updated.Status)

	httputil.RespondJSON(w, updated, http.StatusOK)
}

// Accept handles the assignment handshake
// @Summary      Accept a task
// @Description  Accept a pending task. Assignee only; moves the task to OPEN and stamps the acceptance time.
// @Tags         tasks
// @Produce      json
// @Param        taskID path string true "Task ID"
// @Success      200 {object} Task
// @Failure      400 {object} ErrorResponse "Task is not pending acceptance"
// @Failure      403 {object} ErrorResponse "Not the assignee"
// @Security     BearerAuth
// @Router       /tasks/{taskID}/accept [post]
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, taskID, ok := h.actorAndTask(w, r)
	if !ok {
		return
	}

	accepted, err := h.service.Accept(r.Context(), actorID, taskID)
	if err != nil {
		h.respondTaskError(w, logger, err, "failed to accept task")
		return
	}

	logger.Info("task accepted", "task_id", taskID)

	httputil.RespondJSON(w, accepted, http.StatusOK)
}

// Assign handles reassignment
// @Summary      Assign a task
// @Description  Point a task at a new assignee. Creator only; restarts the acceptance handshake.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        taskID path string true "Task ID"
// @Param        request body AssignTaskRequest true "New assignee"
// @Success      200 {object} Task
// @Failure      400 {object} ErrorResponse "Task is closed or feature disabled"
// @Failure      403 {object} ErrorResponse "Not the creator"
// @Security     BearerAuth
// @Router       /tasks/{taskID}/assign [post]
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, taskID, ok := h.actorAndTask(w, r)
	if !ok {
		return
	}

	var req AssignTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid assign task request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}
	if req.AssigneeID == uuid.Nil {
		httputil.RespondErrorWithCode(w, "assignee_id is required", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	updated, err := h.service.Assign(r.Context(), actorID, taskID, req.AssigneeID)
	if err != nil {
		h.respondTaskError(w, logger, err, "failed to assign task")
		return
	}

	logger.Info("task assigned", "task_id", taskID, "assignee_id", req.AssigneeID)

	httputil.RespondJSON(w, updated, http.StatusOK)
}

// Update handles editing a task's fields
// @Summary      Update a task
// @Description  Rewrite a task's title and description. Creator only.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        taskID path string true "Task ID"
// @Param        request body UpdateTaskRequest true "New fields"
// @Success      200 {object} Task
// @Failure      403 {object} ErrorResponse "Not the creator"
// @Security     BearerAuth
// @Router       /tasks/{taskID} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, taskID, ok := h.actorAndTask(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid update task request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	updated, err := h.service.Update(r.Context(), actorID, taskID, req.Title, req.Description)
	if err != nil {
		h.respondTaskError(w, logger, err, "failed to update task")
		return
	}

	httputil.RespondJSON(w, updated, http.StatusOK)
}

// Delete handles task deletion
// @Summary      Delete a task
// @Description  Soft-delete a task. Creator only.
// @Tags         tasks
// @Produce      json
// @Param        taskID path string true "Task ID"
// @Success      200 {object} map[string]string
// @Failure      403 {object} ErrorResponse "Not the creator"
// @Security     BearerAuth
// @Router       /tasks/{taskID} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, taskID, ok := h.actorAndTask(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), actorID, taskID); err != nil {
		h.respondTaskError(w, logger, err, "failed to delete task")
		return
	}

	logger.Info("task deleted", "task_id", taskID)

	httputil.RespondJSON(w, map[string]string{"message": "task deleted"}, http.StatusOK)
}

func (h *Handler) actorAndTask(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	actorID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}

	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid task ID", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}

	return actorID, taskID, true
}

// respondTaskError maps shared task errors onto HTTP responses
func (h *Handler) respondTaskError(w http.ResponseWriter, logger *logging.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, ErrTitleRequired):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeTitleRequired, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidStatus):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidRequestBody, http.StatusBadRequest)
	case errors.Is(err, ErrTaskNotFound):
		httputil.RespondErrorWithCode(w, "task not found", httputil.CodeTaskNotFound, http.StatusNotFound)
	case errors.Is(err, group.ErrNotAMember):
		httputil.RespondErrorWithCode(w, "you are not a member of this group", httputil.CodeNotAMember, http.StatusForbidden)
	case errors.Is(err, ErrAssigneeNotMember):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeNotAMember, http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeForbidden, http.StatusForbidden)
	case errors.Is(err, ErrFeatureDisabled):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeFeatureDisabled, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidTransition):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidTransition, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidState):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidState, http.StatusBadRequest)
	default:
		logger.Error(fallback, "error", err.Error())
		httputil.RespondErrorWithCode(w, fallback, httputil.CodeInternalError, http.StatusInternalServerError)
	}
}
