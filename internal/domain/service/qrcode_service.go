package service

// QRCodeService defines the interface for QR code generation and parsing services
type QRCodeService interface {
	// GeneratePairingQR renders a PNG QR code encoding the deep link that invites userID.
	GeneratePairingQR(userID string) ([]byte, error)

	// ParsePairingQR extracts the user id from decoded QR code data.
	ParsePairingQR(qrData string) (string, error)
}
