package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"auth_api/internal/images"
	"auth_api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// currentUserID reads the identity set by RequireAuth.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	identity, ok := identityFrom(c)
	if !ok || identity.UserID == uuid.Nil {
		newErrorResponse(c, http.StatusUnauthorized, msgUnauthorized)

		return uuid.Nil, false
	}

	return identity.UserID, true
}

// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	const op = "handler.Register"

	log := h.log.With(slog.String("op", op))

	var req registerRequest
	if ok := bindJSON(c, log, &req, "Please provide email, password, and name"); !ok {
		return
	}

	if ok := IsValidEmail(req.Email); !ok {
		log.Debug("given invalid email", slog.String("email", req.Email))

		newErrorResponse(c, http.StatusBadRequest, "Please provide a valid email")

		return
	}

	if ok := IsValidPassword(req.Password); !ok {
		newErrorResponse(c, http.StatusBadRequest, "Password must be at least 6 characters")

		return
	}

	result, err := h.serviceLayer.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.writeServiceError(c, log, err)

		return
	}

	newResponse(c, http.StatusCreated, "User registered successfully", result)
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	var req loginRequest
	if ok := bindJSON(c, log, &req, "Please provide email and password"); !ok {
		return
	}

	result, err := h.serviceLayer.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(c, log, err)

		return
	}

	newResponse(c, http.StatusOK, "Login successful", result)
}

// POST /auth/refresh-token
func (h *Handler) RefreshToken(c *gin.Context) {
	const op = "handler.RefreshToken"

	log := h.log.With(slog.String("op", op))

	var req refreshRequest
	if ok := bindJSON(c, log, &req, "Refresh token is required"); !ok {
		return
	}

	accessToken, err := h.serviceLayer.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeServiceError(c, log, err)

		return
	}

	newResponse(c, http.StatusOK, "Token refreshed successfully", gin.H{"accessToken": accessToken})
}

// POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	const op = "handler.Logout"

	log := h.log.With(slog.String("op", op))

	id, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.serviceLayer.Logout(c.Request.Context(), id); err != nil {
		h.writeServiceError(c, log, err)

		return
	}

	newResponse(c, http.StatusOK, "Logged out successfully", gin.H{"message": "Logged out successfully"})
}

// GET /auth/profile
func (h *Handler) GetProfile(c *gin.Context) {
	const op = "handler.GetProfile"

	log := h.log.With(slog.String("op", op))

	id, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.serviceLayer.GetProfile(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, log, err)

		return
	}

	newResponse(c, http.StatusOK, "Profile retrieved successfully", user)
}

// PUT /auth/profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	const op = "handler.UpdateProfile"

	log := h.log.With(slog.String("op", op))

	id, ok := currentUserID(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if ok := bindJSON(c, log, &req, ""); !ok {
		return
	}

	if req.Email != nil && !IsValidEmail(*req.Email) {
		newErrorResponse(c, http.StatusBadRequest, "Please provide a valid email")

		return
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		newErrorResponse(c, http.StatusBadRequest, "Name cannot be empty")

		return
	}

	user, err := h.serviceLayer.UpdateProfile(c.Request.Context(), id, models.ProfileUpdate{Name: req.Name, Email: req.Email})
	if err != nil {
		h.writeServiceError(c, log, err)

		return
	}

	newResponse(c, http.StatusOK, "Profile updated successfully", user)
}

// PUT /auth/change-password
func (h *Handler) ChangePassword(c *gin.Context) {
	const op = "handler.ChangePassword"

	log := h.log.With(slog.String("op", op))

	id, ok := currentUserID(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if ok := bindJSON(c, log, &req, "Please provide old password and new password"); !ok {
		return
	}

	if ok := IsValidPassword(req.NewPassword); !ok {
		newErrorResponse(c, http.StatusBadRequest, "New password must be at least 6 characters")

		return
	}

	if err := h.serviceLayer.ChangePassword(c.Request.Context(), id, req.OldPassword, req.NewPassword); err != nil {
		h.writeServiceError(c, log, err)

		return
	}

	newResponse(c, http.StatusOK, "Password changed successfully", gin.H{"message": "Password changed successfully"})
}

// POST /auth/upload-image
func (h *Handler) UploadImage(c *gin.Context) {
	const op = "handler.UploadImage"

	id, ok := currentUserID(c)
	if !ok {
		return
	}

	log := h.log.With(slog.String("op", op), slog.String("user_id", id.String()))
	ctx := c.Request.Context()

	// room for the multipart framing around the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImageSize+1<<20)

	file, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeServiceError(c, log, images.ErrTooLarge)

			return
		}

		newErrorResponse(c, http.StatusBadRequest, "Please upload an image file")

		return
	}

	contentType := file.Header.Get("Content-Type")
	if err := images.Validate(file.Filename, contentType, file.Size, h.maxImageSize); err != nil {
		log.Warn("image upload rejected", slog.String("filename", file.Filename), slog.String("mimetype", contentType), slog.Int64("size", file.Size))

		h.writeServiceError(c, log, err)

		return
	}

	current, err := h.serviceLayer.GetProfile(ctx, id)
	if err != nil {
		h.writeServiceError(c, log, err)

		return
	}

	src, err := file.Open()
	if err != nil {
		h.writeServiceError(c, log, err)

		return
	}
	defer src.Close()

	relPath, err := h.images.Save(ctx, images.FileName(id.String(), file.Filename, time.Now()), src, file.Size, contentType)
	if err != nil {
		h.writeServiceError(c, log, err)

		return
	}

	updated, err := h.serviceLayer.UpdateImage(ctx, id, &relPath)
	if err != nil {
		h.deleteImage(c, log, relPath)
		h.writeServiceError(c, log, err)

		return
	}

	if current.Image != nil {
		h.deleteImage(c, log, *current.Image)
	}

	log.Info("profile image updated", slog.String("path", relPath), slog.Int64("size", file.Size))

	newResponse(c, http.StatusOK, "Profile image uploaded successfully", gin.H{
		"user":     updated,
		"imageUrl": h.images.URL(requestBaseURL(c), relPath),
	})
}

// DELETE /auth/delete-image
func (h *Handler) DeleteImage(c *gin.Context) {
	const op = "handler.DeleteImage"

	id, ok := currentUserID(c)
	if !ok {
		return
	}

	log := h.log.With(slog.String("op", op), slog.String("user_id", id.String()))
	ctx := c.Request.Context()

	user, err := h.serviceLayer.GetProfile(ctx, id)
	if err != nil {
		h.writeServiceError(c, log, err)

		return
	}

	if user.Image == nil {
		newErrorResponse(c, http.StatusBadRequest, "No profile image to delete")

		return
	}

	if _, err := h.serviceLayer.UpdateImage(ctx, id, nil); err != nil {
		h.writeServiceError(c, log, err)

		return
	}

	h.deleteImage(c, log, *user.Image)

	log.Info("profile image deleted")

	newResponse(c, http.StatusOK, "Profile image deleted successfully", nil)
}

// deleteImage removes a stored file; failures are logged, never returned.
func (h *Handler) deleteImage(c *gin.Context, log *slog.Logger, relPath string) {
	if err := h.images.Delete(c.Request.Context(), relPath); err != nil {
		log.Error("failed to delete image", slog.String("path", relPath), slog.Any("error", err))
	}
}

func requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + c.Request.Host
}
