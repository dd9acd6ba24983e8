package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Joyuchen/flow-state-board/internal/ai"
	"github.com/Joyuchen/flow-state-board/internal/model"
	"github.com/Joyuchen/flow-state-board/internal/realtime"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TaskStore is the owner-scoped slice of the task repository the AI tools
// are allowed to touch. Every method requires the caller's id; there is no
// way to reach another user's rows through this interface.
type TaskStore interface {
	CreateForOwner(ctx context.Context, owner uuid.UUID, task *model.Task) error
	UpdateOwned(ctx context.Context, owner, id uuid.UUID, changes map[string]interface{}) (*model.Task, error)
	DeleteOwned(ctx context.Context, owner, id uuid.UUID) error
}

// ToolExecutor runs the board actions the model requests during a chat
// turn. Results are JSON strings fed back to the model; failures become
// error-shaped results and never abort the batch.
type ToolExecutor struct {
	store TaskStore
	hub   *realtime.Hub
}

func NewToolExecutor(store TaskStore, hub *realtime.Hub) *ToolExecutor {
	return &ToolExecutor{store: store, hub: hub}
}

type createTaskArgs struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	DueDate     string   `json:"due_date"`
	Tags        []string `json:"tags"`
}

type updateTaskArgs struct {
	TaskID      string   `json:"task_id"`
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Status      *string  `json:"status"`
	Priority    *string  `json:"priority"`
	DueDate     *string  `json:"due_date"`
	Tags        []string `json:"tags"`
}

type deleteTaskArgs struct {
	TaskID string `json:"task_id"`
}

func errResult(msg string) string {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return string(out)
}

func taskResult(task *model.Task) string {
	out, err := json.Marshal(map[string]interface{}{"success": true, "task": task})
	if err != nil {
		return errResult(err.Error())
	}
	return string(out)
}

// Execute runs one tool call on behalf of owner and returns the result
// string for the model.
func (e *ToolExecutor) Execute(ctx context.Context, owner uuid.UUID, call ai.ToolCall) string {
	switch call.Function.Name {
	case ai.ToolCreateTask:
		return e.createTask(ctx, owner, call.Function.Arguments)
	case ai.ToolUpdateTask:
		return e.updateTask(ctx, owner, call.Function.Arguments)
	case ai.ToolDeleteTask:
		return e.deleteTask(ctx, owner, call.Function.Arguments)
	}
	return errResult("Unknown function")
}

func (e *ToolExecutor) createTask(ctx context.Context, owner uuid.UUID, rawArgs string) string {
	var args createTaskArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return errResult("invalid arguments: " + err.Error())
	}
	if args.Title == "" {
		return errResult("title is required")
	}

	task := &model.Task{
		Title:       args.Title,
		Description: args.Description,
		Status:      model.StatusTodo,
		Priority:    model.PriorityMedium,
		Tags:        pq.StringArray(args.Tags),
	}
	if args.Status != "" {
		status := model.Status(args.Status)
		if !status.IsValid() {
			return errResult("invalid status: " + args.Status)
		}
		task.Status = status
	}
	if args.Priority != "" {
		priority := model.Priority(args.Priority)
		if !priority.IsValid() {
			return errResult("invalid priority: " + args.Priority)
		}
		task.Priority = priority
	}
	if args.DueDate != "" {
		due, err := time.Parse("2006-01-02", args.DueDate)
		if err != nil {
			return errResult("invalid due_date: " + args.DueDate)
		}
		task.DueDate = &due
	}

	if err := e.store.CreateForOwner(ctx, owner, task); err != nil {
		return errResult(err.Error())
	}

	e.hub.Publish(owner, realtime.Event{Action: "created", TaskID: task.ID})
	return taskResult(task)
}

func (e *ToolExecutor) updateTask(ctx context.Context, owner uuid.UUID, rawArgs string) string {
	var args updateTaskArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return errResult("invalid arguments: " + err.Error())
	}

	taskID, err := uuid.Parse(args.TaskID)
	if err != nil {
		return errResult("invalid task_id: " + args.TaskID)
	}

	changes := map[string]interface{}{}
	if args.Title != nil {
		changes["title"] = *args.Title
	}
	if args.Description != nil {
		changes["description"] = *args.Description
	}
	if args.Status != nil {
		if !model.Status(*args.Status).IsValid() {
			return errResult("invalid status: " + *args.Status)
		}
		changes["status"] = *args.Status
	}
	if args.Priority != nil {
		if !model.Priority(*args.Priority).IsValid() {
			return errResult("invalid priority: " + *args.Priority)
		}
		changes["priority"] = *args.Priority
	}
	if args.DueDate != nil {
		due, err := time.Parse("2006-01-02", *args.DueDate)
		if err != nil {
			return errResult("invalid due_date: " + *args.DueDate)
		}
		changes["due_date"] = due
	}
	if args.Tags != nil {
		changes["tags"] = pq.StringArray(args.Tags)
	}
	if len(changes) == 0 {
		return errResult("no fields to update")
	}

	task, err := e.store.UpdateOwned(ctx, owner, taskID, changes)
	if err != nil {
		return errResult(err.Error())
	}

	e.hub.Publish(owner, realtime.Event{Action: "updated", TaskID: task.ID})
	return taskResult(task)
}

func (e *ToolExecutor) deleteTask(ctx context.Context, owner uuid.UUID, rawArgs string) string {
	var args deleteTaskArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return errResult("invalid arguments: " + err.Error())
	}

	taskID, err := uuid.Parse(args.TaskID)
	if err != nil {
		return errResult("invalid task_id: " + args.TaskID)
	}

	if err := e.store.DeleteOwned(ctx, owner, taskID); err != nil {
		return errResult(err.Error())
	}

	e.hub.Publish(owner, realtime.Event{Action: "deleted", TaskID: taskID})
	out, _ := json.Marshal(map[string]interface{}{"success": true})
	return string(out)
}
