package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"streakbuddy/config"
	"streakbuddy/internal/delivery/api/middleware"
	deliverycontext "streakbuddy/internal/delivery/context"
	domainerrors "streakbuddy/internal/domain/errors"
	"streakbuddy/internal/usecase"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const maxClientMessageSize = 4 << 10

// Frame types written to live clients.
const (
	FrameView  = "view"
	FrameError = "error"
)

// LiveFrame is one JSON message on the live connection.
type LiveFrame struct {
	Type  string               `json:"type"`
	View  *usecase.SessionView `json:"view,omitempty"`
	Code  string               `json:"code,omitempty"`
	Error string               `json:"error,omitempty"`
}

// SessionHandlerParams holds dependencies for SessionHandler, injected by Fx.
type SessionHandlerParams struct {
	fx.In

	Lc        fx.Lifecycle
	SessionUC usecase.SessionUsecase
	Config    *config.Config
	Logger    *slog.Logger
}

// SessionHandler streams the merged live view over a WebSocket.
type SessionHandler struct {
	sessionUC    usecase.SessionUsecase
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger

	shutdown     chan struct{}
	shutdownOnce sync.Once
	active       sync.WaitGroup
}

// NewSessionHandler is the constructor for SessionHandler. Open connections are closed on shutdown.
func NewSessionHandler(params SessionHandlerParams) *SessionHandler {
	h := &SessionHandler{
		sessionUC: params.SessionUC,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Mobile clients send no Origin; authentication is by token.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingInterval: params.Config.Session.PingInterval,
		writeTimeout: params.Config.Session.WriteTimeout,
		logger:       params.Logger,
		shutdown:     make(chan struct{}),
	}

	params.Lc.Append(fx.Hook{
		OnStop: h.stop,
	})

	return h
}

func (h *SessionHandler) stop(ctx context.Context) error {
	h.shutdownOnce.Do(func() { close(h.shutdown) })

	drained := make(chan struct{})
	go func() {
		h.active.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

// Live upgrades the request and writes a view frame whenever the merged list changes.
// The connection ends when the client goes away, the token expires or the server stops.
func (h *SessionHandler) Live(c echo.Context) error {
	actor, err := middleware.GetActor(c)
	if err != nil {
		return err
	}

	identity, err := middleware.GetIdentity(c)
	if err != nil {
		return err
	}

	select {
	case <-h.shutdown:
		return domainerrors.ErrExternalService.WithDetails("server is shutting down")
	default:
	}

	h.active.Add(1)
	defer h.active.Done()

	ctx := c.Request().Context()
	logger := deliverycontext.GetLoggerOrDefault(ctx, h.logger)

	session, err := h.sessionUC.Open(ctx, actor)
	if err != nil {
		return err //nolint:wrapcheck // rendered by the error middleware
	}
	defer session.Close()

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.Warn("WebSocket upgrade failed", slog.Any("error", err))

		return nil
	}
	defer conn.Close()

	clientGone := h.readPump(conn)

	var expired <-chan time.Time
	if !identity.ExpiresAt.IsZero() {
		timer := time.NewTimer(time.Until(identity.ExpiresAt))
		defer timer.Stop()
		expired = timer.C
	}

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case view, ok := <-session.Updates():
			if !ok {
				h.closeWithError(conn, session.Err(), logger)

				return nil
			}

			if err := h.write(conn, LiveFrame{Type: FrameView, View: view}); err != nil {
				logger.Debug("Live write failed", slog.Any("error", err))

				return nil
			}
		case <-session.Done():
			h.closeWithError(conn, session.Err(), logger)

			return nil
		case <-ping.C:
			deadline := time.Now().Add(h.writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return nil
			}
		case <-expired:
			h.close(conn, websocket.ClosePolicyViolation, "token expired")

			return nil
		case <-h.shutdown:
			h.close(conn, websocket.CloseGoingAway, "server shutting down")

			return nil
		case <-clientGone:
			return nil
		}
	}
}

// readPump drains client frames so control frames are processed; the returned channel
// closes when the client disconnects or stops answering pings.
func (h *SessionHandler) readPump(conn *websocket.Conn) <-chan struct{} {
	gone := make(chan struct{})
	readTimeout := 2 * h.pingInterval

	conn.SetReadLimit(maxClientMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go func() {
		defer close(gone)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	return gone
}

func (h *SessionHandler) write(conn *websocket.Conn, frame LiveFrame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(conn.WriteJSON(frame))
}

func (h *SessionHandler) closeWithError(conn *websocket.Conn, err error, logger *slog.Logger) {
	if err == nil {
		h.close(conn, websocket.CloseNormalClosure, "")

		return
	}

	logger.Warn("Live session stopped", slog.Any("error", err))

	frame := LiveFrame{Type: FrameError, Code: domainerrors.ErrInternalError.ErrorCode(), Error: "session stopped"}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		frame.Code = appErr.ErrorCode()
		frame.Error = appErr.Message()
	}

	_ = h.write(conn, frame)
	h.close(conn, websocket.CloseInternalServerErr, frame.Code)
}

func (h *SessionHandler) close(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeTimeout))
}
