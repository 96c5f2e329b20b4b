package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/omihq/omi-gateway/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Devices connect from arbitrary networks; origin checks don't apply
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// HandleAudioWS streams binary audio chunks over a WebSocket into the
// accumulator. Binary frames are chunks, text frames are keepalives. When
// the device disconnects the session is flushed and ended immediately
// instead of waiting out the idle window.
func (h *Handler) HandleAudioWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sid")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	sampleRate := h.cfg.AudioSampleRate
	if raw := r.URL.Query().Get("sample_rate"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			sampleRate = parsed
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger := observability.GetLogger()
		logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	log := observability.GetLogger().With().
		Str("session_id", sessionID).
		Str("remote", r.RemoteAddr).
		Logger()

	log.Info().Int("sample_rate", sampleRate).Msg("Audio stream connected")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("Audio stream closed unexpectedly")
			} else {
				log.Info().Msg("Audio stream disconnected")
			}
			break
		}

		switch msgType {
		case websocket.BinaryMessage:
			h.acc.ReceiveChunk(sessionID, data, sampleRate)
		case websocket.TextMessage:
			// Keepalive: refresh activity without buffering anything
			h.acc.ReceiveChunk(sessionID, nil, sampleRate)
		}
	}

	h.acc.EndSession(sessionID)
}
