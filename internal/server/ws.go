package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/net/websocket"

	"github.com/mhrezaei/newsrag/internal/session"
	"github.com/mhrezaei/newsrag/internal/telemetry"
	"github.com/mhrezaei/newsrag/models"
)

const streamSegmentRunes = 48

// wsInbound is what clients send: {"event":"user_message","text":"..."}.
type wsInbound struct {
	Event string `json:"event"`
	Text  string `json:"text"`
}

// wsOutbound carries bot_chunk (partial text in Data) and bot_done (the
// stored message in Message) events.
type wsOutbound struct {
	Event   string              `json:"event"`
	Data    string              `json:"data,omitempty"`
	Message *models.ChatMessage `json:"message,omitempty"`
}

// websocket upgrades the connection and relays chat over it. The session is
// pinned at connect time via the sessionId query parameter; a missing id
// starts a fresh session.
func (h *ChatHandler) websocket(c echo.Context) error {
	sessionID := c.QueryParam("sessionId")
	if sessionID == "" {
		sessionID = session.NewSessionID()
	}
	h.Logger.Printf("socket connected: %s", sessionID)

	websocket.Handler(func(ws *websocket.Conn) {
		defer ws.Close()
		for {
			var in wsInbound
			if err := websocket.JSON.Receive(ws, &in); err != nil {
				h.Logger.Printf("socket disconnected: %s", sessionID)
				return
			}
			if in.Event != "user_message" || in.Text == "" {
				continue
			}
			h.relayMessage(c.Request().Context(), ws, sessionID, in.Text)
		}
	}).ServeHTTP(c.Response(), c.Request())
	return nil
}

// relayMessage persists the user message, answers it and streams the answer
// back in paced segments before the final bot_done event.
func (h *ChatHandler) relayMessage(ctx context.Context, ws *websocket.Conn, sessionID, text string) {
	telemetry.ChatRequests.Inc()
	start := time.Now()

	userMsg := models.ChatMessage{Role: models.RoleUser, Content: text, Timestamp: time.Now().UnixMilli()}
	if err := h.Sessions.Append(ctx, sessionID, userMsg); err != nil {
		h.Logger.Printf("ERROR saving user message for %s: %v", sessionID, err)
		return
	}

	answer, _, err := h.RAG.Answer(ctx, text)
	if err != nil {
		h.Logger.Printf("ERROR answering on socket %s: %v", sessionID, err)
		_ = websocket.JSON.Send(ws, wsOutbound{Event: "bot_done", Message: &models.ChatMessage{
			Role:      models.RoleBot,
			Content:   "Sorry, something went wrong.",
			Timestamp: time.Now().UnixMilli(),
		}})
		return
	}

	for _, segment := range splitSegments(answer, streamSegmentRunes) {
		if err := websocket.JSON.Send(ws, wsOutbound{Event: "bot_chunk", Data: segment}); err != nil {
			return
		}
		time.Sleep(h.StreamPace)
	}

	botMsg := models.ChatMessage{Role: models.RoleBot, Content: answer, Timestamp: time.Now().UnixMilli()}
	if err := h.Sessions.Append(ctx, sessionID, botMsg); err != nil {
		h.Logger.Printf("ERROR saving bot message for %s: %v", sessionID, err)
	}
	_ = websocket.JSON.Send(ws, wsOutbound{Event: "bot_done", Message: &botMsg})
	telemetry.ChatDuration.Observe(time.Since(start).Seconds())
}

// splitSegments cuts s into rune-safe pieces of at most n runes.
func splitSegments(s string, n int) []string {
	if s == "" {
		return nil
	}
	var segments []string
	runes := []rune(s)
	for start := 0; start < len(runes); start += n {
		end := start + n
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, string(runes[start:end]))
	}
	return segments
}
