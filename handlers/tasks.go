package handlers

import (
	"errors"
	"net/http"

	"hellocity/models"
	"hellocity/services/checklist"
	"hellocity/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TaskDeps are the collaborators of the task management endpoints.
type TaskDeps struct {
	Correlator *checklist.Correlator
	Store      checklist.TaskStore
}

// NewSubmitTaskHandler handles POST /tasks/submit: enqueue a checklist
// generation job outside the chat flow, for retries and debugging.
func NewSubmitTaskHandler(deps TaskDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := utils.GetLogger()

		var req models.TaskSubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Error("Invalid task submit request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
			return
		}
		if req.ConversationID == "" || len(req.Messages) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId and messages are required"})
			return
		}

		taskID, stableID, err := deps.Correlator.Submit(c.Request.Context(), req.ConversationID, req.Messages)
		if err != nil {
			logger.Error("Failed to submit task", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit task: " + err.Error()})
			return
		}

		logger.Info("Task submitted",
			zap.String("taskID", taskID),
			zap.String("stableID", stableID),
			zap.String("conversationID", req.ConversationID))

		c.JSON(http.StatusOK, models.TaskSubmitResponse{TaskID: taskID, Status: "pending"})
	}
}

// NewTaskStatusHandler handles GET /tasks/:taskID/status, an idempotent read
// of the task record.
func NewTaskStatusHandler(deps TaskDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := utils.GetLogger()
		taskID := c.Param("taskID")

		rec, err := deps.Store.Get(c.Request.Context(), taskID)
		if errors.Is(err, checklist.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		if err != nil {
			logger.Error("Failed to get task status", zap.String("taskID", taskID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get task status: " + err.Error()})
			return
		}

		c.JSON(http.StatusOK, models.TaskStatusResponse{
			TaskID: rec.TaskID,
			Status: rec.Status,
			Result: rec.Result,
			Error:  rec.Error,
		})
	}
}
