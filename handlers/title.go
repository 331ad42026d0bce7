package handlers

import (
	"net/http"
	"strings"

	"hellocity/models"
	"hellocity/services/capability"
	"hellocity/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const titlePrompt = `Based on the user's message, generate a concise title of 10-20 characters.

Requirements:
1. Summarize the main topic without being too broad.
2. Use the same language as the user's message.
3. Do not include quotation marks or special symbols.
4. Return only the title, with no extra content.

User message: `

// NewGenerateTitleHandler handles POST /generate-title: a short conversation
// title from the user's first message. Failures fall back to a truncation of
// the message itself, never an error response.
func NewGenerateTitleHandler(titler capability.Completer) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := utils.GetLogger()

		var req models.GenerateTitleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Error("Invalid title request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
			return
		}

		reply, err := titler.Complete(c.Request.Context(), "",
			[]capability.ChatMessage{{Role: models.RoleUser, Content: titlePrompt + req.Message}}, nil)
		if err != nil {
			logger.Warn("Title generation failed, using fallback", zap.Error(err))
			c.JSON(http.StatusOK, models.GenerateTitleResponse{Title: fallbackTitle(req.Message)})
			return
		}

		title := strings.TrimSpace(reply.Content)
		title = strings.Trim(title, `"'`)
		title = truncateRunes(title, 30, 27)
		if title == "" {
			title = fallbackTitle(req.Message)
		}

		c.JSON(http.StatusOK, models.GenerateTitleResponse{Title: title})
	}
}

func fallbackTitle(message string) string {
	return truncateRunes(message, 20, 20)
}

// truncateRunes caps a string at max runes, cutting to keep runes and
// appending an ellipsis when it was too long.
func truncateRunes(s string, max, keep int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:keep]) + "..."
}
