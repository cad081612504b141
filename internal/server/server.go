// ABOUTME: HTTP API for the assistant backend: session creation and the chat endpoint.
// ABOUTME: Routes messages to specialist agents and persists each exchange.

package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/propfix/propfix-assistant/internal/agents"
	"github.com/propfix/propfix-assistant/internal/store"
)

const (
	// historyContextLimit is how many prior messages are handed to the responder.
	historyContextLimit = 10

	// historyResponseLimit caps GET history responses.
	historyResponseLimit = 100

	// sessionListLimit caps GET /api/sessions responses.
	sessionListLimit = 50

	// maxUploadBytes bounds multipart request memory.
	maxUploadBytes = 16 << 20
)

// CreateSessionRequest is the JSON request body for POST /api/chat/session.
type CreateSessionRequest struct {
	UserName string `json:"user_name"`
}

// CreateSessionResponse is the JSON response for POST /api/chat/session.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	Response  string `json:"response"`
	AgentUsed string `json:"agent_used"`
	Timestamp string `json:"timestamp"`
}

// HistoryMessage is one entry in the GET history response.
type HistoryMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Agent     string `json:"agent,omitempty"`
	Timestamp string `json:"timestamp"`
	HasImage  bool   `json:"has_image,omitempty"`
}

// HistoryResponse is the JSON response for GET /api/chat/history/{session_id}.
type HistoryResponse struct {
	Messages []HistoryMessage `json:"messages"`
}

// SessionInfo is one entry in the GET /api/sessions response.
type SessionInfo struct {
	SessionID string `json:"session_id"`
	UserName  string `json:"user_name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// SessionListResponse is the JSON response for GET /api/sessions.
type SessionListResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// Handler serves the chat API.
type Handler struct {
	store     store.Store
	router    *agents.Router
	responder agents.Responder
	logger    *slog.Logger
}

// NewHandler creates a Handler. Pass nil logger for default.
func NewHandler(st store.Store, router *agents.Router, responder agents.Responder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:     st,
		router:    router,
		responder: responder,
		logger:    logger.With("component", "server"),
	}
}

// RegisterRoutes registers the API routes on the given chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleRoot)
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat/session", h.handleCreateSession)
		r.Post("/chat", h.handleChat)
		r.Get("/chat/history/{sessionID}", h.handleHistory)
		r.Get("/sessions", h.handleListSessions)
	})
}

// handleRoot handles GET / with a service identification message.
func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Multi-Agent Real Estate Chatbot API"})
}

// handleCreateSession handles POST /api/chat/session.
// The user name defaults to "Guest" when omitted.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserName == "" {
		req.UserName = "Guest"
	}

	now := time.Now().UTC()
	session := &store.Session{
		SessionID: uuid.New().String(),
		UserName:  req.UserName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateSession(r.Context(), session); err != nil {
		h.logger.Error("failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.logger.Info("session created", "session_id", session.SessionID, "user_name", session.UserName)
	writeJSON(w, http.StatusOK, CreateSessionResponse{SessionID: session.SessionID})
}

// handleChat handles POST /api/chat. The request is a multipart form with
// session_id, message (may be empty), and at most one image file part.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id required")
		return
	}
	message := r.FormValue("message")

	ctx := r.Context()
	if _, err := h.store.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("failed to load session", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	// Read the image part if one was sent.
	var hasImage bool
	if file, _, err := r.FormFile("image"); err == nil {
		data, readErr := io.ReadAll(file)
		file.Close()
		if readErr != nil {
			writeError(w, http.StatusBadRequest, "reading image")
			return
		}
		hasImage = len(data) > 0
	} else if !errors.Is(err, http.ErrMissingFile) {
		writeError(w, http.StatusBadRequest, "invalid image part")
		return
	}

	selection := h.router.Select(message, hasImage)

	history, err := h.historyContext(r, sessionID)
	if err != nil {
		h.logger.Error("failed to load history", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	reply, err := h.responder.Respond(ctx, &agents.Request{
		Selection: selection,
		Message:   message,
		HasImage:  hasImage,
		History:   history,
	})
	if err != nil {
		h.logger.Error("responder failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "failed to generate response")
		return
	}

	agentName := selection.Name()

	// Both sides of the exchange share one timestamp.
	now := time.Now().UTC()
	userMsg := &store.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      "user",
		Content:   message,
		HasImage:  hasImage,
		CreatedAt: now,
	}
	assistantMsg := &store.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      "assistant",
		Content:   reply,
		Agent:     agentName,
		CreatedAt: now,
	}
	if err := h.store.SaveMessage(ctx, userMsg); err != nil {
		h.logger.Error("failed to save user message", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "failed to save message")
		return
	}
	if err := h.store.SaveMessage(ctx, assistantMsg); err != nil {
		h.logger.Error("failed to save assistant message", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "failed to save message")
		return
	}
	if err := h.store.TouchSession(ctx, sessionID, now); err != nil {
		// The exchange is already saved; log and keep going.
		h.logger.Warn("failed to touch session", "error", err, "session_id", sessionID)
	}

	h.logger.Debug("chat exchange complete",
		"session_id", sessionID,
		"agent", agentName,
		"has_image", hasImage)

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:  reply,
		AgentUsed: agentName,
		Timestamp: now.Format(time.RFC3339),
	})
}

// handleHistory handles GET /api/chat/history/{sessionID}.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.store.GetSessionMessages(r.Context(), sessionID, historyResponseLimit)
	if err != nil {
		h.logger.Error("failed to load history", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	resp := HistoryResponse{Messages: make([]HistoryMessage, 0, len(messages))}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, HistoryMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			Agent:     msg.Agent,
			Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339),
			HasImage:  msg.HasImage,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListSessions handles GET /api/sessions.
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListSessions(r.Context(), sessionListLimit)
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	resp := SessionListResponse{Sessions: make([]SessionInfo, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, SessionInfo{
			SessionID: s.SessionID,
			UserName:  s.UserName,
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt: s.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// historyContext loads the prior messages handed to the responder as context.
func (h *Handler) historyContext(r *http.Request, sessionID string) ([]agents.Exchange, error) {
	messages, err := h.store.GetSessionMessages(r.Context(), sessionID, historyContextLimit)
	if err != nil {
		return nil, err
	}
	history := make([]agents.Exchange, 0, len(messages))
	for _, msg := range messages {
		history = append(history, agents.Exchange{Role: msg.Role, Content: msg.Content})
	}
	return history, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
