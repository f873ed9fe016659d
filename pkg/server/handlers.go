package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/go-go-golems/tablebot/pkg/inference/session"
	"github.com/go-go-golems/tablebot/pkg/inference/toolloop"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

type errorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

type ChatRequest struct {
	Message   *string `json:"message"`
	SessionID string  `json:"session_id"`
}

type ChatResponse struct {
	Response          string           `json:"response"`
	RestaurantsToShow []string         `json:"restaurants_to_show"`
	SessionID         string           `json:"session_id"`
	Outcome           toolloop.Outcome `json:"outcome"`
	Status            string           `json:"status"`
}

type ResetRequest struct {
	SessionID string `json:"session_id"`
}

type HistoryEntry struct {
	ID         int                     `json:"id"`
	Type       string                  `json:"type"`
	Content    string                  `json:"content"`
	ToolCalls  []conversation.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string                  `json:"tool_call_id,omitempty"`
	Timestamp  string                  `json:"timestamp"`
}

type HistoryResponse struct {
	History           []HistoryEntry `json:"history"`
	SessionID         string         `json:"session_id"`
	TotalMessages     int            `json:"total_messages"`
	ApproximateTokens *int           `json:"approximate_tokens,omitempty"`
	Status            string         `json:"status"`
}

func sessionID(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return session.DefaultSessionID
	}
	return id
}

// GET /api/health
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Restaurant AI Agent API is running",
	})
}

// Chat runs one turn. Turn-level failures still answer 200 with the fallback text;
// the outcome field tells them apart.
// POST /api/chat
func (s *Server) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil || req.Message == nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Message is required", Status: statusError})
	}
	msg := strings.TrimSpace(*req.Message)
	if msg == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Message cannot be empty", Status: statusError})
	}
	id := sessionID(req.SessionID)

	log.Info().Str("session_id", id).Str("message", msg).Msg("received message")
	reply, err := s.sessions.GetOrCreate(id).Send(c.Request().Context(), msg)
	if err != nil && reply.Outcome == "" {
		return errors.Wrap(err, "chat turn")
	}
	log.Info().Str("session_id", id).Str("outcome", string(reply.Outcome)).Str("response", reply.Text).Msg("assistant response")

	text, ids := SplitTrailer(reply.Text)
	return c.JSON(http.StatusOK, ChatResponse{
		Response:          text,
		RestaurantsToShow: ids,
		SessionID:         id,
		Outcome:           reply.Outcome,
		Status:            statusSuccess,
	})
}

// POST /api/chat/reset
func (s *Server) Reset(c echo.Context) error {
	var req ResetRequest
	// an empty or missing body resets the default session
	_ = c.Bind(&req)
	id := sessionID(req.SessionID)

	s.sessions.Reset(id)
	log.Info().Str("session_id", id).Msg("chat history reset")
	return c.JSON(http.StatusOK, map[string]string{
		"message":    "Chat history reset successfully",
		"session_id": id,
		"status":     statusSuccess,
	})
}

// GET /api/chat/history?session_id=
func (s *Server) History(c echo.Context) error {
	id := sessionID(c.QueryParam("session_id"))

	var history conversation.Conversation
	if sess, ok := s.sessions.Get(id); ok {
		history = sess.History()
	}

	entries := make([]HistoryEntry, 0, len(history))
	for i, m := range history {
		entries = append(entries, HistoryEntry{
			ID:         i + 1,
			Type:       messageType(m.Role),
			Content:    m.Text,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
			Timestamp:  m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	resp := HistoryResponse{
		History:       entries,
		SessionID:     id,
		TotalMessages: len(entries),
		Status:        statusSuccess,
	}
	if s.counter != nil {
		n := s.counter.Count(history)
		resp.ApproximateTokens = &n
	}
	return c.JSON(http.StatusOK, resp)
}

// Cuisines calls the cuisine capability directly. Anything that is not a JSON list
// yields an empty list.
// GET /api/restaurants/cuisines
func (s *Server) Cuisines(c echo.Context) error {
	out, err := s.toolbox.CuisineTypes(c.Request().Context())
	if err != nil {
		return errors.Wrap(err, "cuisine types")
	}
	cuisines := []string{}
	if jerr := json.Unmarshal([]byte(out), &cuisines); jerr != nil {
		cuisines = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"cuisine_types": cuisines,
		"status":        statusSuccess,
	})
}

func messageType(role conversation.Role) string {
	switch role {
	case conversation.RoleUser:
		return "user"
	case conversation.RoleAssistant:
		return "ai"
	default:
		return string(role)
	}
}
