package notification

import (
	"context"
	"log/slog"

	"streakbuddy/internal/domain/service"
)

// logService stands in for FCM in development: every message is logged and counted as delivered.
type logService struct {
	logger *slog.Logger
}

// NewLogService creates a gateway that only logs.
func NewLogService(logger *slog.Logger) service.NotificationService {
	return &logService{logger: logger.With("component", "push")}
}

func (s *logService) SendSingleNotification(ctx context.Context, token, title, body string, data map[string]string) error {
	s.logger.InfoContext(ctx, "Push notification", "token", token, "title", title, "body", body, "data", data)

	return nil
}

func (s *logService) SendBatchNotification(ctx context.Context, tokens []string, title, body string, data map[string]string) (int, int, []string, error) {
	s.logger.InfoContext(ctx, "Push notification batch", "tokens", len(tokens), "title", title, "body", body, "data", data)

	return len(tokens), 0, nil, nil
}
