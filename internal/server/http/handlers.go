package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"twin/internal/chat"
	apperrors "twin/internal/errors"
	"twin/internal/logging"
)

// maxChatBodySize bounds a /chat body well above a maximum-length message
// encoded as JSON.
const maxChatBodySize = 64 << 10

type handler struct {
	chat   ChatService
	logger logging.Logger
}

type chatRequest struct {
	Message   string  `json:"message"`
	SessionID *string `json:"session_id"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type messageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type conversationResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []messageResponse `json:"messages"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (h *handler) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}

func (h *handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}

func (h *handler) handleChat(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxChatBodySize)

	var body chatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Detail: "Request body too large"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: "Request body must be JSON with a message field"})
		return
	}
	req := chat.Request{Message: body.Message, ClientID: clientIdentity(c)}
	if body.SessionID != nil {
		req.SessionID = *body.SessionID
	}

	reply, err := h.chat.Chat(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chatResponse{Response: reply.Response, SessionID: reply.SessionID})
}

func (h *handler) handleConversation(c *gin.Context) {
	sessionID, turns, err := h.chat.Conversation(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	messages := make([]messageResponse, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, messageResponse{
			Role:      string(turn.Role),
			Content:   turn.Content,
			Timestamp: turn.Timestamp,
		})
	}
	c.JSON(http.StatusOK, conversationResponse{SessionID: sessionID, Messages: messages})
}

func (h *handler) writeError(c *gin.Context, err error) {
	status := apperrors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(h.logger, c.Request.Context()).Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, errorResponse{Detail: apperrors.PublicMessage(err)})
}
