package impl

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"streakbuddy/config"
	"streakbuddy/internal/domain/entity"
	domainerrors "streakbuddy/internal/domain/errors"
	"streakbuddy/internal/domain/repository"
	"streakbuddy/internal/domain/service"
	"streakbuddy/internal/errors"
	"streakbuddy/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 50
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,29}$`)

// ProfileServiceParams defines the dependencies of the profile use case.
type ProfileServiceParams struct {
	fx.In

	UserRepo  repository.UserRepository
	BlobStore service.BlobStore
	QRCodeSvc service.QRCodeService
	Clock     service.Clock
	Config    *config.Config
	Logger    *slog.Logger
}

type profileService struct {
	userRepo     repository.UserRepository
	blobStore    service.BlobStore
	qrCodeSvc    service.QRCodeService
	clock        service.Clock
	logger       *slog.Logger
	maxAssetSize int
}

// NewProfileService creates a new profile service instance
func NewProfileService(params ProfileServiceParams) usecase.ProfileUsecase {
	return &profileService{
		userRepo:     params.UserRepo,
		blobStore:    params.BlobStore,
		qrCodeSvc:    params.QRCodeSvc,
		clock:        params.Clock,
		logger:       params.Logger,
		maxAssetSize: params.Config.Blob.MaxAssetSize,
	}
}

// EnsureUser creates the profile on first sign-in.
func (s *profileService) EnsureUser(ctx context.Context, identity *entity.Identity, username string) (*entity.User, error) {
	existing, err := s.userRepo.FindByID(ctx, identity.UserID)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, storeError(err, "ensure user")
	}

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		username = entity.DefaultUsername(identity.Email)
	}

	if !usernamePattern.MatchString(username) {
		return nil, validationError("username must be 2-30 characters of a-z, 0-9, '.', '_' or '-'")
	}

	now := s.clock.Now()
	user := &entity.User{
		ID:        identity.UserID,
		Email:     identity.Email,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.userRepo.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateUser) {
		// A concurrent sign-in created it first.
		return s.GetUser(ctx, identity.UserID)
	}

	if err != nil {
		s.logger.Error("Failed to create profile", "error", err, "userID", identity.UserID)

		return nil, storeError(err, "ensure user")
	}

	s.logger.Info("Profile created", "userID", user.ID, "username", user.Username)

	return user, nil
}

// GetUser returns a profile by id.
func (s *profileService) GetUser(ctx context.Context, userID string) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "get user")
	}

	return user, nil
}

// SearchUsers returns profiles whose username starts with prefix.
func (s *profileService) SearchUsers(ctx context.Context, prefix string, limit int) ([]*entity.User, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, validationError("search prefix is required")
	}

	if limit <= 0 {
		limit = defaultSearchLimit
	}

	users, err := s.userRepo.SearchByUsernamePrefix(ctx, prefix, min(limit, maxSearchLimit))
	if err != nil {
		return nil, storeError(err, "search users")
	}

	return users, nil
}

// UploadProfilePicture stores a new picture and points the profile at it.
func (s *profileService) UploadProfilePicture(ctx context.Context, userID string, data []byte, contentType string) (*entity.User, error) {
	if len(data) == 0 {
		return nil, validationError("picture is empty")
	}

	if len(data) > s.maxAssetSize {
		return nil, validationError(fmt.Sprintf("picture exceeds %d bytes", s.maxAssetSize))
	}

	if !strings.HasPrefix(contentType, "image/") {
		return nil, validationError("picture must be an image")
	}

	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	key := objectKey(contentType, "avatars", userID, uuid.NewString())

	url, err := s.blobStore.Upload(ctx, key, data, contentType)
	if err != nil {
		s.logger.Error("Failed to upload profile picture", "error", err, "userID", userID)

		return nil, errors.Wrapf(domainerrors.ErrExternalService, "upload picture: %v", err)
	}

	if err := s.userRepo.UpdateProfilePic(ctx, userID, url); err != nil {
		return nil, storeError(err, "update profile picture")
	}

	return s.GetUser(ctx, userID)
}

// PairingQR renders the invite QR code of an existing user.
func (s *profileService) PairingQR(ctx context.Context, userID string) ([]byte, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	png, err := s.qrCodeSvc.GeneratePairingQR(userID)
	if err != nil {
		s.logger.Error("Failed to generate pairing QR", "error", err, "userID", userID)

		return nil, errors.Wrap(domainerrors.ErrInternalError, err.Error())
	}

	return png, nil
}
