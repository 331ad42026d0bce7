// File: handlers/bundle.go
package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Chat endpoints
	ChatStreamHandler    gin.HandlerFunc
	GenerateTitleHandler gin.HandlerFunc

	// Task endpoints
	SubmitTaskHandler gin.HandlerFunc
	TaskStatusHandler gin.HandlerFunc
}
