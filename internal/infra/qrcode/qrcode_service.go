// Package qrcode renders and reads the pairing codes buddies scan to invite each other.
package qrcode

import (
	"fmt"
	"net/url"
	"strings"

	"streakbuddy/config"
	"streakbuddy/internal/domain/service"

	"github.com/skip2/go-qrcode"
)

const (
	defaultBaseURL = "streakbuddy://invite"
	userParam      = "user"
)

type qrcodeService struct {
	size                 int
	errorCorrectionLevel qrcode.RecoveryLevel
	baseURL              string
}

// New builds the service from the qrcode config section.
func New(cfg *config.Config) service.QRCodeService {
	if cfg.QRCode == nil {
		return NewQRCodeService(256, "M", "")
	}

	return NewQRCodeService(cfg.QRCode.Size, cfg.QRCode.ErrorCorrectionLevel, cfg.QRCode.BaseURL)
}

// NewQRCodeService creates a new QR code service instance
func NewQRCodeService(size int, errorCorrectionLevel, baseURL string) service.QRCodeService {
	var level qrcode.RecoveryLevel
	switch errorCorrectionLevel {
	case "L":
		level = qrcode.Low
	case "M":
		level = qrcode.Medium
	case "Q":
		level = qrcode.High
	case "H":
		level = qrcode.Highest
	default:
		level = qrcode.Medium
	}

	if size <= 0 {
		size = 256
	}

	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &qrcodeService{
		size:                 size,
		errorCorrectionLevel: level,
		baseURL:              baseURL,
	}
}

// GeneratePairingQR encodes <baseURL>?user=<id> as a PNG.
func (s *qrcodeService) GeneratePairingQR(userID string) ([]byte, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	link := s.baseURL + "?" + url.Values{userParam: {userID}}.Encode()

	qrCode, err := qrcode.New(link, s.errorCorrectionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	pngBytes, err := qrCode.PNG(s.size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PNG: %w", err)
	}

	return pngBytes, nil
}

// ParsePairingQR reads the user id back out of a scanned deep link.
func (s *qrcodeService) ParsePairingQR(qrData string) (string, error) {
	link, err := url.Parse(strings.TrimSpace(qrData))
	if err != nil {
		return "", fmt.Errorf("failed to parse QR code data: %w", err)
	}

	base, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	if link.Scheme != base.Scheme || link.Host != base.Host || link.Path != base.Path {
		return "", fmt.Errorf("not a pairing code: %s", qrData)
	}

	userID := link.Query().Get(userParam)
	if userID == "" {
		return "", fmt.Errorf("pairing code has no user id")
	}

	return userID, nil
}
