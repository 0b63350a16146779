package handler

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"streakbuddy/config"
	"streakbuddy/internal/delivery/api/middleware"
	"streakbuddy/internal/delivery/api/response"
	deliverycontext "streakbuddy/internal/delivery/context"
	"streakbuddy/internal/domain/entity"
	domainerrors "streakbuddy/internal/domain/errors"
	"streakbuddy/internal/domain/service"
	"streakbuddy/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const proofAssetField = "asset"

// HabitHandlerParams holds dependencies for HabitHandler, injected by Fx.
type HabitHandlerParams struct {
	fx.In

	HabitUC        usecase.HabitUsecase
	NotificationUC usecase.NotificationUsecase
	QRCodeSvc      service.QRCodeService
	Config         *config.Config
	Logger         *slog.Logger
}

// HabitHandler serves habits, invites, proofs and nudges.
type HabitHandler struct {
	habitUC        usecase.HabitUsecase
	notificationUC usecase.NotificationUsecase
	qrCodeSvc      service.QRCodeService
	maxAssetSize   int64
	logger         *slog.Logger
}

// NewHabitHandler is the constructor for HabitHandler
func NewHabitHandler(params HabitHandlerParams) *HabitHandler {
	return &HabitHandler{
		habitUC:        params.HabitUC,
		notificationUC: params.NotificationUC,
		qrCodeSvc:      params.QRCodeSvc,
		maxAssetSize:   int64(params.Config.Blob.MaxAssetSize),
		logger:         params.Logger,
	}
}

// CreateHabitRequest represents the request body for creating a habit
type CreateHabitRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// InviteBuddyRequest names the invitee directly or through a scanned pairing code
type InviteBuddyRequest struct {
	InviteeID   string `json:"inviteeId" validate:"required_without=PairingCode"`
	PairingCode string `json:"pairingCode" validate:"required_without=InviteeID"`
}

// RespondInviteRequest represents the answer to an invite
type RespondInviteRequest struct {
	Response string `json:"response" validate:"required,oneof=accepted rejected"`
}

// SubmitProofRequest is the JSON form of a text-only proof
type SubmitProofRequest struct {
	Note string `json:"note" validate:"required,max=1000"`
}

// NudgeRequest names the buddy to remind
type NudgeRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// InviteBuddyResponse reports whether a new invite was created
type InviteBuddyResponse struct {
	Invite  *entity.Invite `json:"invite"`
	Created bool           `json:"created"`
}

// MaintenanceResponse reports what the sign-in maintenance changed
type MaintenanceResponse struct {
	Reset   int `json:"reset"`
	Decayed int `json:"decayed"`
}

// CreateHabit handles habit creation
func (h *HabitHandler) CreateHabit(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	var req CreateHabitRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	habit, err := h.habitUC.CreateHabit(c.Request().Context(), actor, req.Name)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, habit)
}

// GetHabit returns a habit the caller belongs to
func (h *HabitHandler) GetHabit(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	habit, err := h.habitUC.GetHabit(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, habit)
}

// InviteBuddy invites a user to the habit
func (h *HabitHandler) InviteBuddy(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	var req InviteBuddyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	inviteeID := req.InviteeID
	if inviteeID == "" {
		inviteeID, err = h.qrCodeSvc.ParsePairingQR(req.PairingCode)
		if err != nil {
			return domainerrors.ErrValidationFailed.WithDetails("invalid pairing code")
		}
	}

	ctx := c.Request().Context()

	invite, err := h.habitUC.InviteBuddy(ctx, actor, c.Param("id"), inviteeID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	if invite == nil {
		return response.Success(c, http.StatusOK, InviteBuddyResponse{})
	}

	h.notificationUC.AnnounceInvite(ctx, invite)

	return response.Success(c, http.StatusCreated, InviteBuddyResponse{Invite: invite, Created: true})
}

// RespondToInvite accepts or rejects an invite addressed to the caller
func (h *HabitHandler) RespondToInvite(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	var req RespondInviteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()

	result, err := h.habitUC.RespondToInvite(ctx, actor, c.Param("id"), c.Param("inviteId"), entity.InviteStatus(req.Response))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	if result.Changed && result.Invite.Status == entity.InviteStatusAccepted {
		h.notificationUC.AnnounceInviteAccepted(ctx, result.Invite)
	}

	return response.Success(c, http.StatusOK, result)
}

// ListPendingInvites returns the invites waiting for the caller
func (h *HabitHandler) ListPendingInvites(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	invites, err := h.habitUC.ListPendingInvites(c.Request().Context(), actor)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Page(c, invites, "")
}

// SubmitProof records today's proof, either a multipart asset with an optional note or a JSON note
func (h *HabitHandler) SubmitProof(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	asset, err := h.readProofAsset(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	habitID := c.Param("id")

	proof, err := h.habitUC.SubmitProof(ctx, actor, habitID, asset)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	habit, err := h.habitUC.GetHabit(ctx, actor, habitID)
	if err != nil {
		deliverycontext.GetLoggerOrDefault(ctx, h.logger).Warn("Skipping proof announcement",
			slog.String("habit_id", habitID),
			slog.Any("error", err),
		)
	} else {
		h.notificationUC.AnnounceProofSubmitted(ctx, habit, proof)
	}

	return response.Success(c, http.StatusCreated, proof)
}

func (h *HabitHandler) readProofAsset(c echo.Context) (entity.ProofAsset, error) {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		var req SubmitProofRequest
		if err := bindAndValidate(c, &req); err != nil {
			return entity.ProofAsset{}, err
		}

		return entity.ProofAsset{Note: req.Note}, nil
	}

	asset := entity.ProofAsset{Note: strings.TrimSpace(c.FormValue("note"))}

	file, err := c.FormFile(proofAssetField)
	switch {
	case err == nil:
		data, fileType, err := readUpload(file, h.maxAssetSize)
		if err != nil {
			return entity.ProofAsset{}, err
		}

		asset.Data = data
		asset.ContentType = fileType
	case !errors.Is(err, http.ErrMissingFile):
		return entity.ProofAsset{}, domainerrors.ErrValidationFailed.WithDetails("invalid multipart form")
	}

	return asset, nil
}

// ListProofs pages through the habit's proofs, newest first
func (h *HabitHandler) ListProofs(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return domainerrors.ErrValidationFailed.WithDetails("limit must be a positive integer")
		}
	}

	page, err := h.habitUC.ListProofs(c.Request().Context(), actor, c.Param("id"), limit, c.QueryParam("cursor"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Page(c, page.Proofs, page.NextCursor)
}

// ApproveProof approves a buddy's pending proof
func (h *HabitHandler) ApproveProof(c echo.Context) error {
	return h.review(c, h.habitUC.ApproveProof)
}

// RejectProof rejects a buddy's pending proof
func (h *HabitHandler) RejectProof(c echo.Context) error {
	return h.review(c, h.habitUC.RejectProof)
}

type reviewFunc func(ctx context.Context, actor entity.Actor, habitID, proofID string) (*usecase.ReviewResult, error)

func (h *HabitHandler) review(c echo.Context, fn reviewFunc) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()

	result, err := fn(ctx, actor, c.Param("id"), c.Param("proofId"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	if result.Changed {
		h.notificationUC.AnnounceReview(ctx, result.Habit, result.Proof)
	}

	return response.Success(c, http.StatusOK, result)
}

// Nudge reminds a buddy to submit today's proof
func (h *HabitHandler) Nudge(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	var req NudgeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.notificationUC.Nudge(c.Request().Context(), actor, c.Param("id"), req.UserID); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Accepted(c, map[string]string{"message": "Nudge sent"})
}

// DailyReset runs the sign-in maintenance for the caller
func (h *HabitHandler) DailyReset(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()

	reset, err := h.habitUC.DailyReset(ctx, actor)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	decayed, err := h.habitUC.CheckAndResetStreaks(ctx, actor)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, MaintenanceResponse{Reset: reset, Decayed: decayed})
}

// readUpload reads at most limit bytes of an uploaded file.
func readUpload(file *multipart.FileHeader, limit int64) ([]byte, string, error) {
	if file.Size > limit {
		return nil, "", domainerrors.ErrValidationFailed.WithDetails("file is too large")
	}

	src, err := file.Open()
	if err != nil {
		return nil, "", domainerrors.ErrValidationFailed.WithDetails("cannot read uploaded file")
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, "", domainerrors.ErrValidationFailed.WithDetails("cannot read uploaded file")
	}

	if int64(len(data)) > limit {
		return nil, "", domainerrors.ErrValidationFailed.WithDetails("file is too large")
	}

	contentType := file.Header.Get(echo.HeaderContentType)
	if contentType == "" || contentType == echo.MIMEOctetStream {
		contentType = http.DetectContentType(data)
	}

	return data, contentType, nil
}
