package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Joyuchen/flow-state-board/internal/middleware"
	"github.com/Joyuchen/flow-state-board/internal/model"
	"github.com/Joyuchen/flow-state-board/internal/realtime"
	"github.com/Joyuchen/flow-state-board/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// currentUserID pulls the authenticated caller's uuid set by the auth
// middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(middleware.UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

type TaskHandler struct {
	taskRepo *repository.TaskRepository
	hub      *realtime.Hub
}

func NewTaskHandler(taskRepo *repository.TaskRepository, hub *realtime.Hub) *TaskHandler {
	return &TaskHandler{taskRepo: taskRepo, hub: hub}
}

type TaskRequest struct {
	Title        string     `json:"title" binding:"required"`
	Description  string     `json:"description"`
	Status       string     `json:"status" binding:"omitempty,oneof=todo in_progress done"`
	Priority     string     `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate      *time.Time `json:"due_date"`
	Tags         []string   `json:"tags"`
	TimeEstimate *int       `json:"time_estimate" binding:"omitempty,min=0"`
	Position     *int       `json:"position"`
}

type TaskUpdateRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Status       *string    `json:"status" binding:"omitempty,oneof=todo in_progress done"`
	Priority     *string    `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate      *time.Time `json:"due_date"`
	Tags         []string   `json:"tags"`
	TimeEstimate *int       `json:"time_estimate" binding:"omitempty,min=0"`
}

type TaskMoveRequest struct {
	Status   string `json:"status" binding:"required,oneof=todo in_progress done"`
	Position int    `json:"position" binding:"min=0"`
}

// GetAll godoc
// @Summary  List the caller's tasks in board order
// @Tags     Tasks
// @Produce  json
// @Security BearerAuth
// @Success  200 {array} model.Task
// @Router   /tasks [get]
func (h *TaskHandler) GetAll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	tasks, err := h.taskRepo.GetByOwner(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve tasks"})
		return
	}

	c.JSON(http.StatusOK, tasks)
}

// Create godoc
// @Summary  Create a task
// @Tags     Tasks
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    input body TaskRequest true "Task data"
// @Success  201 {object} model.Task
// @Router   /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	task := &model.Task{
		Title:        req.Title,
		Description:  req.Description,
		Status:       model.StatusTodo,
		Priority:     model.PriorityMedium,
		DueDate:      req.DueDate,
		Tags:         pq.StringArray(req.Tags),
		TimeEstimate: req.TimeEstimate,
	}
	if req.Status != "" {
		task.Status = model.Status(req.Status)
	}
	if req.Priority != "" {
		task.Priority = model.Priority(req.Priority)
	}
	if req.Position != nil {
		task.Position = *req.Position
	}

	if err := h.taskRepo.CreateForOwner(c.Request.Context(), userID, task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	h.hub.Publish(userID, realtime.Event{Action: "created", TaskID: task.ID})
	c.JSON(http.StatusCreated, task)
}

// GetByID godoc
// @Summary  Get one task
// @Tags     Tasks
// @Produce  json
// @Security BearerAuth
// @Param    id path string true "Task ID"
// @Success  200 {object} model.Task
// @Router   /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	task, err := h.taskRepo.GetOwned(c.Request.Context(), userID, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// Update godoc
// @Summary  Partially update a task
// @Tags     Tasks
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    id path string true "Task ID"
// @Param    input body TaskUpdateRequest true "Fields to change"
// @Success  200 {object} model.Task
// @Router   /tasks/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	var req TaskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	changes := map[string]interface{}{}
	if req.Title != nil {
		changes["title"] = *req.Title
	}
	if req.Description != nil {
		changes["description"] = *req.Description
	}
	if req.Status != nil {
		changes["status"] = *req.Status
	}
	if req.Priority != nil {
		changes["priority"] = *req.Priority
	}
	if req.DueDate != nil {
		changes["due_date"] = *req.DueDate
	}
	if req.Tags != nil {
		changes["tags"] = pq.StringArray(req.Tags)
	}
	if req.TimeEstimate != nil {
		changes["time_estimate"] = *req.TimeEstimate
	}
	if len(changes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	task, err := h.taskRepo.UpdateOwned(c.Request.Context(), userID, taskID, changes)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}

	h.hub.Publish(userID, realtime.Event{Action: "updated", TaskID: task.ID})
	c.JSON(http.StatusOK, task)
}

// Delete godoc
// @Summary  Delete a task
// @Tags     Tasks
// @Security BearerAuth
// @Param    id path string true "Task ID"
// @Success  204
// @Router   /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	if err := h.taskRepo.DeleteOwned(c.Request.Context(), userID, taskID); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
		return
	}

	h.hub.Publish(userID, realtime.Event{Action: "deleted", TaskID: taskID})
	c.Status(http.StatusNoContent)
}

// Move godoc
// @Summary  Move a task to a status column position
// @Tags     Tasks
// @Accept   json
// @Security BearerAuth
// @Param    id path string true "Task ID"
// @Param    input body TaskMoveRequest true "Target status and position"
// @Success  200 {object} model.Task
// @Router   /tasks/{id}/move [post]
func (h *TaskHandler) Move(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return
	}

	var req TaskMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.taskRepo.Move(c.Request.Context(), userID, taskID, model.Status(req.Status), req.Position); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to move task"})
		return
	}

	task, err := h.taskRepo.GetOwned(c.Request.Context(), userID, taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		return
	}

	h.hub.Publish(userID, realtime.Event{Action: "updated", TaskID: taskID})
	c.JSON(http.StatusOK, task)
}

// Stats godoc
// @Summary  Aggregated board metrics for dashboards
// @Tags     Tasks
// @Produce  json
// @Security BearerAuth
// @Success  200 {object} repository.TaskStats
// @Router   /tasks/stats [get]
func (h *TaskHandler) Stats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	stats, err := h.taskRepo.StatsForOwner(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Events godoc
// @Summary  Task change notifications as an event stream
// @Tags     Tasks
// @Produce  text/event-stream
// @Security BearerAuth
// @Router   /tasks/events [get]
func (h *TaskHandler) Events(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	ch, cancel := h.hub.Subscribe(userID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case ev := <-ch:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
			c.Writer.Flush()
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()
		}
	}
}
