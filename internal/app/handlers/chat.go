package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linemk/parfume-shop/internal/chat"
	"github.com/linemk/parfume-shop/internal/jwt-new/jwtmiddleware"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

// ChatWSHandler чат по товару: /ws/chat/{item_id}?token=JWT.
// Соединение принимается до проверки токена, чтобы клиент получил код 4001.
func ChatWSHandler(log *slog.Logger, auth jwtmiddleware.Authenticator, hub *chat.Hub, writeTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ChatWSHandler"
		logger := log.With(slog.String("op", op))

		itemID, err := idParam(r, "item_id")
		if err != nil {
			writeError(logger, w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade уже ответил клиенту
			logger.Warn("websocket upgrade failed", slog.Any("error", err))
			return
		}
		// таймаут чтения http.Server не должен обрывать долгоживущий чат
		_ = conn.SetReadDeadline(time.Time{})
		client := chat.NewClient(conn, writeTimeout)

		user, err := auth.Authenticate(r.Context(), r.URL.Query().Get("token"))
		if err != nil {
			logger.Warn("chat auth failed", slog.Any("error", err))
			_ = client.CloseWithCode(chat.CloseUnauthorized, "unauthorized")
			return
		}

		ctx := r.Context()
		defer client.Close()
		defer hub.Disconnect(itemID, user.ID, client)

		if err := hub.Connect(ctx, itemID, user.ID, client); err != nil {
			logger.Error("chat connect failed", slog.Any("error", err))
			return
		}

		for {
			payload, err := client.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warn("chat read failed", slog.Any("error", err))
				}
				return
			}
			if err := hub.HandleIncoming(ctx, itemID, user.ID, client, payload); err != nil {
				logger.Error("failed to handle chat message", slog.Any("error", err))
				return
			}
		}
	}
}

// ChatHistoryHandler REST-история канала, от старых к новым
func ChatHistoryHandler(log *slog.Logger, hub *chat.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ChatHistoryHandler"
		logger := log.With(slog.String("op", op))

		if _, err := currentUser(r); err != nil {
			writeError(logger, w, err)
			return
		}
		itemID, err := idParam(r, "item_id")
		if err != nil {
			writeError(logger, w, err)
			return
		}
		limit, err := intQuery(r, "limit", chat.DefaultHistoryLimit, 1, chat.DefaultHistoryLimit)
		if err != nil {
			writeError(logger, w, err)
			return
		}

		msgs, err := hub.History(r.Context(), itemID, limit)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, msgs)
	}
}

func MarkReadHandler(log *slog.Logger, hub *chat.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.MarkReadHandler"
		logger := log.With(slog.String("op", op))

		user, err := currentUser(r)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		itemID, err := idParam(r, "item_id")
		if err != nil {
			writeError(logger, w, err)
			return
		}

		n, err := hub.MarkRead(r.Context(), itemID, user.ID)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, map[string]int64{"marked": n})
	}
}
