package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type assignRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type setStatusRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

func pathUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		newErrorResponse(c, http.StatusBadRequest, "Invalid user id")

		return uuid.Nil, false
	}

	return id, true
}

// GET /admin/users
func (h *Handler) GetAllUsers(c *gin.Context) {
	const op = "handler.GetAllUsers"

	log := h.log.With(slog.String("op", op))

	users, err := h.serviceLayer.ListUsers(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, log, err)

		return
	}

	newResponse(c, http.StatusOK, "Users retrieved successfully", users)
}

// PUT /admin/users/:id/role
func (h *Handler) AssignRole(c *gin.Context) {
	const op = "handler.AssignRole"

	log := h.log.With(slog.String("op", op))

	id, ok := pathUserID(c)
	if !ok {
		return
	}

	var req assignRoleRequest
	if ok := bindJSON(c, log, &req, "Please provide a role"); !ok {
		return
	}

	if err := h.serviceLayer.AssignRole(c.Request.Context(), id, req.Role); err != nil {
		h.writeServiceError(c, log, err)

		return
	}

	newResponse(c, http.StatusOK, "Role updated successfully", gin.H{"id": id, "role": req.Role})
}

// PUT /admin/users/:id/status
func (h *Handler) SetStatus(c *gin.Context) {
	const op = "handler.SetStatus"

	log := h.log.With(slog.String("op", op))

	id, ok := pathUserID(c)
	if !ok {
		return
	}

	var req setStatusRequest
	if ok := bindJSON(c, log, &req, "Please provide isActive"); !ok {
		return
	}

	if err := h.serviceLayer.SetActive(c.Request.Context(), id, *req.IsActive); err != nil {
		h.writeServiceError(c, log, err)

		return
	}

	newResponse(c, http.StatusOK, "Account status updated successfully", gin.H{"id": id, "isActive": *req.IsActive})
}
