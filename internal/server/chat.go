package server

import (
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mhrezaei/newsrag/internal/session"
	"github.com/mhrezaei/newsrag/internal/telemetry"
	"github.com/mhrezaei/newsrag/models"
)

// ChatHandler serves the REST chat surface and the websocket relay.
type ChatHandler struct {
	Sessions session.Store
	RAG      Answerer
	Logger   *log.Logger

	// StreamPace spaces bot_chunk events on the websocket. Tests set 0.
	StreamPace time.Duration
}

func (h *ChatHandler) Register(e *echo.Echo) {
	if h.StreamPace == 0 {
		h.StreamPace = 50 * time.Millisecond
	}
	api := e.Group("/api")
	api.POST("/chat", h.chat)
	api.GET("/chat/history", h.history)
	api.POST("/chat/reset", h.reset)

	api.POST("/session", h.createSession)
	api.GET("/session/:sessionId/history", h.sessionHistory)
	api.DELETE("/session/:sessionId", h.deleteSession)

	e.GET("/ws", h.websocket)
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Query     string `json:"query"`
}

type chatResponse struct {
	Success   bool            `json:"success"`
	SessionID string          `json:"sessionId"`
	Answer    string          `json:"answer"`
	Sources   []models.Source `json:"sources"`
}

func (h *ChatHandler) chat(c echo.Context) error {
	start := time.Now()
	telemetry.ChatRequests.Inc()

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.NewSessionID()
	}

	ctx := c.Request().Context()
	if err := h.Sessions.Append(ctx, sessionID, models.ChatMessage{
		Role:      models.RoleUser,
		Content:   req.Query,
		Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		return err
	}

	answer, sources, err := h.RAG.Answer(ctx, req.Query)
	if err != nil {
		return err
	}

	if err := h.Sessions.Append(ctx, sessionID, models.ChatMessage{
		Role:      models.RoleBot,
		Content:   answer,
		Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		return err
	}

	telemetry.ChatDuration.Observe(time.Since(start).Seconds())
	if sources == nil {
		sources = []models.Source{}
	}
	return c.JSON(http.StatusOK, chatResponse{
		Success:   true,
		SessionID: sessionID,
		Answer:    answer,
		Sources:   sources,
	})
}

func (h *ChatHandler) history(c echo.Context) error {
	sessionID := c.QueryParam("sessionId")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sessionId is required")
	}
	messages, err := h.Sessions.History(c.Request().Context(), sessionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messages)
}

type resetRequest struct {
	SessionID string `json:"sessionId"`
}

func (h *ChatHandler) reset(c echo.Context) error {
	var req resetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sessionId is required")
	}
	if err := h.Sessions.Clear(c.Request().Context(), req.SessionID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Session cleared"})
}

func (h *ChatHandler) createSession(c echo.Context) error {
	sessionID := session.NewSessionID()
	// a fresh id cannot have history, but clearing keeps the operation
	// idempotent if a client retries with its own id scheme someday
	if err := h.Sessions.Clear(c.Request().Context(), sessionID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"sessionId": sessionID})
}

func (h *ChatHandler) sessionHistory(c echo.Context) error {
	messages, err := h.Sessions.History(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messages)
}

func (h *ChatHandler) deleteSession(c echo.Context) error {
	if err := h.Sessions.Clear(c.Request().Context(), c.Param("sessionId")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
