package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"streakbuddy/config"
	"streakbuddy/internal/delivery/api/middleware"
	"streakbuddy/internal/delivery/api/response"
	domainerrors "streakbuddy/internal/domain/errors"
	"streakbuddy/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const pictureField = "picture"

// ProfileHandlerParams holds dependencies for ProfileHandler, injected by Fx.
type ProfileHandlerParams struct {
	fx.In

	ProfileUC      usecase.ProfileUsecase
	NotificationUC usecase.NotificationUsecase
	Config         *config.Config
	Logger         *slog.Logger
}

// ProfileHandler serves the caller's profile, user search and push token registration.
type ProfileHandler struct {
	profileUC      usecase.ProfileUsecase
	notificationUC usecase.NotificationUsecase
	maxAssetSize   int64
	logger         *slog.Logger
}

// NewProfileHandler is the constructor for ProfileHandler
func NewProfileHandler(params ProfileHandlerParams) *ProfileHandler {
	return &ProfileHandler{
		profileUC:      params.ProfileUC,
		notificationUC: params.NotificationUC,
		maxAssetSize:   int64(params.Config.Blob.MaxAssetSize),
		logger:         params.Logger,
	}
}

// EnsureProfileRequest optionally picks a username on first sign-in
type EnsureProfileRequest struct {
	Username string `json:"username" validate:"omitempty,max=30"`
}

// PushTokenRequest represents a device token registration
type PushTokenRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}

// EnsureProfile creates the caller's profile if it does not exist yet
func (h *ProfileHandler) EnsureProfile(c echo.Context) error {
	identity, err := middleware.GetIdentity(c)
	if err != nil {
		return err
	}

	var req EnsureProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.profileUC.EnsureUser(c.Request().Context(), identity, req.Username)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, user)
}

// GetProfile returns the caller's profile
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	user, err := h.profileUC.GetUser(c.Request().Context(), actor.UserID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, user)
}

// SearchUsers finds users by username prefix
func (h *ProfileHandler) SearchUsers(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return domainerrors.ErrValidationFailed.WithDetails("limit must be a positive integer")
		}
	}

	users, err := h.profileUC.SearchUsers(c.Request().Context(), c.QueryParam("prefix"), limit)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Page(c, users, "")
}

// UploadPicture replaces the caller's profile picture. It accepts a multipart "picture"
// field or a raw image body.
func (h *ProfileHandler) UploadPicture(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	data, contentType, err := h.readPicture(c)
	if err != nil {
		return err
	}

	user, err := h.profileUC.UploadProfilePicture(c.Request().Context(), actor.UserID, data, contentType)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, user)
}

func (h *ProfileHandler) readPicture(c echo.Context) ([]byte, string, error) {
	req := c.Request()
	contentType := req.Header.Get(echo.HeaderContentType)

	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		file, err := c.FormFile(pictureField)
		if err != nil {
			return nil, "", domainerrors.ErrValidationFailed.WithDetails("picture is required")
		}

		return readUpload(file, h.maxAssetSize)
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, h.maxAssetSize+1))
	if err != nil {
		return nil, "", errors.WithStack(err)
	}

	if int64(len(data)) > h.maxAssetSize {
		return nil, "", domainerrors.ErrValidationFailed.WithDetails("file is too large")
	}

	if contentType == "" || contentType == echo.MIMEOctetStream {
		contentType = http.DetectContentType(data)
	}

	return data, contentType, nil
}

// PairingQR returns the caller's pairing QR code as a PNG
func (h *ProfileHandler) PairingQR(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	png, err := h.profileUC.PairingQR(c.Request().Context(), actor.UserID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return c.Blob(http.StatusOK, "image/png", png)
}

// RegisterPushToken stores the caller's device token
func (h *ProfileHandler) RegisterPushToken(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	var req PushTokenRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.notificationUC.RegisterPushToken(c.Request().Context(), actor.UserID, req.Token, req.Platform); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Push token registered"})
}

// RemovePushToken forgets the caller's device token
func (h *ProfileHandler) RemovePushToken(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	if err := h.notificationUC.RemovePushToken(c.Request().Context(), actor.UserID); err != nil {
		return response.HandleAppError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
