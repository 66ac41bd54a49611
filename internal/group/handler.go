package group

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/taskhive/internal/auth"
	"github.com/redmonkez12/taskhive/internal/httputil"
	"github.com/redmonkez12/taskhive/internal/logging"
)

// Handler contains HTTP handlers for group endpoints
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// CreateGroupRequest represents the group creation request body
type CreateGroupRequest struct {
	Name string `json:"name"`
}

// AddMemberRequest represents the member enrollment request body
type AddMemberRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Create handles group creation
// @Summary      Create a group
// @Description  Create a new group. The creator becomes its first admin.
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        request body CreateGroupRequest true "Group name"
// @Success      201 {object} Group
// @Failure      400 {object} ErrorResponse "Invalid request or validation error"
// @Failure      401 {object} ErrorResponse "Missing or invalid authentication"
// @Security     BearerAuth
// @Router       /groups [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid create group request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	newGroup, err := h.service.Create(r.Context(), actorID, req.Name)
	if err != nil {
		if errors.Is(err, ErrNameRequired) {
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeGroupNameRequired, http.StatusBadRequest)
			return
		}
		logger.Error("failed to create group", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to create group", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("group created", "group_id", newGroup.ID)

	httputil.RespondJSON(w, newGroup, http.StatusCreated)
}

// List handles listing the caller's groups
// @Summary      List groups
// @Description  List all groups the authenticated user belongs to
// @Tags         groups
// @Produce      json
// @Success      200 {array} Group
// @Failure      401 {object} ErrorResponse "Missing or invalid authentication"
// @Security     BearerAuth
// @Router       /groups [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	groups, err := h.service.ListForUser(r.Context(), actorID)
	if err != nil {
		logger.Error("failed to list groups", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to list groups", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, groups, http.StatusOK)
}

// Get handles fetching a single group
// @Summary      Get a group
// @Description  Get a group by ID. Members only.
// @Tags         groups
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Success      200 {object} Group
// @Failure      403 {object} ErrorResponse "Not a member"
// @Failure      404 {object} ErrorResponse "Group not found"
// @Security     BearerAuth
// @Router       /groups/{groupID} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	foundGroup, err := h.service.Get(r.Context(), actorID, groupID)
	if err != nil {
		h.respondGroupError(w, logger, err, "failed to get group")
		return
	}

	httputil.RespondJSON(w, foundGroup, http.StatusOK)
}

// ListMembers handles listing a group's members
// @Summary      List group members
// @Description  List all members of a group. Members only.
// @Tags         groups
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Success      200 {array} Member
// @Failure      403 {object} ErrorResponse "Not a member"
// @Security     BearerAuth
// @Router       /groups/{groupID}/members [get]
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(r.Context(), actorID, groupID)
	if err != nil {
		h.respondGroupError(w, logger, err, "failed to list members")
		return
	}

	httputil.RespondJSON(w, members, http.StatusOK)
}

// AddMember handles enrolling a user into a group
// @Summary      Add a group member
// @Description  Enroll a user into a group. Admins only.
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        request body AddMemberRequest true "User and role"
// @Success      201 {object} Member
// @Failure      403 {object} ErrorResponse "Not an admin"
// @Failure      404 {object} ErrorResponse "User not found"
// @Failure      409 {object} ErrorResponse "Already a member"
// @Security     BearerAuth
// @Router       /groups/{groupID}/members [post]
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid add member request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}
	if req.UserID == uuid.Nil {
		httputil.RespondErrorWithCode(w, "user_id is required", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	member, err := h.service.AddMember(r.Context(), actorID, groupID, req.UserID, req.Role)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httputil.RespondErrorWithCode(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		if errors.Is(err, ErrAlreadyMember) {
			httputil.RespondErrorWithCode(w, "user is already a member", httputil.CodeAlreadyMember, http.StatusConflict)
			return
		}
		if errors.Is(err, ErrInvalidRole) {
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidRequestBody, http.StatusBadRequest)
			return
		}
		h.respondGroupError(w, logger, err, "failed to add member")
		return
	}

	logger.Info("member added", "group_id", groupID, "user_id", req.UserID)

	httputil.RespondJSON(w, member, http.StatusCreated)
}

// RemoveMember handles removing a user from a group
// @Summary      Remove a group member
// @Description  Remove a user from a group. Members may remove themselves; removing others requires admin. The last admin can never be removed.
// @Tags         groups
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        userID path string true "User ID"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Last admin removal refused"
// @Failure      403 {object} ErrorResponse "Not allowed"
// @Security     BearerAuth
// @Router       /groups/{groupID}/members/{userID} [delete]
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid user ID", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if err := h.service.RemoveMember(r.Context(), actorID, groupID, targetID); err != nil {
		if errors.Is(err, ErrLastAdminRemoval) {
			httputil.RespondErrorWithCode(w, "cannot remove the last admin", httputil.CodeLastAdminRemoval, http.StatusBadRequest)
			return
		}
		h.respondGroupError(w, logger, err, "failed to remove member")
		return
	}

	logger.Info("member removed", "group_id", groupID, "user_id", targetID)

	httputil.RespondJSON(w, map[string]string{"message": "member removed"}, http.StatusOK)
}

func (h *Handler) actorAndGroup(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	actorID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}

	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid group ID", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}

	return actorID, groupID, true
}

// respondGroupError maps shared group errors onto HTTP responses
func (h *Handler) respondGroupError(w http.ResponseWriter, logger *logging.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotAMember):
		httputil.RespondErrorWithCode(w, "you are not a member of this group", httputil.CodeNotAMember, http.StatusForbidden)
	case errors.Is(err, ErrNotAdmin):
		httputil.RespondErrorWithCode(w, "admin role required", httputil.CodeNotAdmin, http.StatusForbidden)
	case errors.Is(err, ErrGroupNotFound):
		httputil.RespondErrorWithCode(w, "group not found", httputil.CodeGroupNotFound, http.StatusNotFound)
	default:
		logger.Error(fallback, "error", err.Error())
		httputil.RespondErrorWithCode(w, fallback, httputil.CodeInternalError, http.StatusInternalServerError)
	}
}
