package repository

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"streakbuddy/internal/domain/entity"

	"github.com/pkg/errors"
)

var (
	// ErrProofNotFound is returned when a proof does not exist.
	ErrProofNotFound = errors.New("proof not found")
	// ErrInvalidCursor is returned when a pagination cursor cannot be decoded.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// ProofCursor marks the last proof of a page. Proofs are ordered by timestamp desc, then id desc.
type ProofCursor struct {
	Timestamp time.Time
	ID        string
}

// Encode renders the cursor as an opaque URL-safe token.
func (c ProofCursor) Encode() string {
	raw := strconv.FormatInt(c.Timestamp.UnixNano(), 10) + "|" + c.ID

	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeProofCursor parses a token produced by Encode.
func DecodeProofCursor(token string) (*ProofCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidCursor, err.Error())
	}

	nanos, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}

	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidCursor, err.Error())
	}

	return &ProofCursor{Timestamp: time.Unix(0, n).UTC(), ID: id}, nil
}

// ProofPageQuery selects one page of a habit's proofs.
type ProofPageQuery struct {
	Limit  int
	Cursor *ProofCursor
}

// ProofRepository defines the operations on a habit's proofs.
type ProofRepository interface {
	// Create persists a new pending proof.
	Create(ctx context.Context, proof *entity.Proof) error

	// FindByID retrieves one proof of a habit.
	FindByID(ctx context.Context, habitID, proofID string) (*entity.Proof, error)

	// ListByHabit returns proofs newest first, starting after the cursor when set.
	ListByHabit(ctx context.Context, habitID string, query ProofPageQuery) ([]*entity.Proof, error)

	// LatestApprovedBy returns the newest approved proof submitted by submitterID.
	LatestApprovedBy(ctx context.Context, habitID, submitterID string) (*entity.Proof, error)

	// UpdateStatusIfPending moves a pending proof to a terminal status. It reports false,
	// without error, when the proof had already left pending.
	UpdateStatusIfPending(ctx context.Context, habitID, proofID string, status entity.ProofStatus, reviewerID string, at time.Time) (bool, error)
}
