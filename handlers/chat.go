// File: handlers/chat.go
package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	conversationRepo "hellocity/database/repository/conversation"
	"hellocity/models"
	"hellocity/services/assistant"
	"hellocity/services/stream"
	"hellocity/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatStreamDeps are the collaborators of the streaming chat endpoint.
// Conversations may be nil, which disables turn persistence.
type ChatStreamDeps struct {
	Engine        *assistant.Engine
	Translator    *stream.Translator
	Conversations conversationRepo.ConversationRepository
}

// NewChatStreamHandler handles POST /chat/:sessionID: it runs one turn of the
// routing engine and streams the translated wire events as SSE frames.
func NewChatStreamHandler(deps ChatStreamDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := utils.GetLogger()
		sessionID := c.Param("sessionID")

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Error("Invalid chat request", zap.String("correlationID", correlationID), zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
			return
		}
		if len(req.Messages) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "messages must not be empty"})
			return
		}

		// A request carrying only the latest user message relies on the
		// stored conversation for context. A failed lookup degrades to the
		// bare request rather than failing the turn.
		msgs := req.Messages
		if deps.Conversations != nil && len(msgs) == 1 {
			hist, err := deps.Conversations.History(c.Request.Context(), sessionID)
			if err != nil {
				logger.Warn("Failed to load conversation history",
					zap.String("sessionID", sessionID), zap.Error(err))
			} else if len(hist) > 0 {
				msgs = append(append([]models.Message{}, hist...), msgs...)
			}
		}

		logger.Info("Chat stream started",
			zap.String("correlationID", correlationID),
			zap.String("sessionID", sessionID),
			zap.Int("messageCount", len(msgs)))

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		ctx := c.Request.Context()
		signals := make(chan assistant.Signal, 32)
		events := make(chan stream.Event, 32)

		var appended []models.Message
		go func() {
			defer close(signals)
			delta, err := deps.Engine.RunTurn(ctx, sessionID, msgs, func(s assistant.Signal) {
				signals <- s
			})
			if err != nil {
				logger.Error("Chat turn failed",
					zap.String("correlationID", correlationID),
					zap.String("sessionID", sessionID),
					zap.Error(err))
				return
			}
			appended = delta
		}()

		go deps.Translator.Run(ctx, sessionID, msgs, signals, events)

		c.Stream(func(w io.Writer) bool {
			ev, ok := <-events
			if !ok {
				return false
			}
			_, _ = io.WriteString(w, ev.Frame())
			return true
		})

		// The events channel is closed, so the engine goroutine is done and
		// appended is safe to read.
		if deps.Conversations != nil && len(appended) > 0 {
			turn := append([]models.Message{req.Messages[len(req.Messages)-1]}, appended...)
			persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := deps.Conversations.AppendTurn(persistCtx, sessionID, turn); err != nil {
				logger.Warn("Failed to persist conversation turn",
					zap.String("sessionID", sessionID), zap.Error(err))
			}
		}

		logger.Info("Chat stream finished",
			zap.String("correlationID", correlationID),
			zap.String("sessionID", sessionID))
	}
}
