package ai

const (
	ToolCreateTask = "create_task"
	ToolUpdateTask = "update_task"
	ToolDeleteTask = "delete_task"
)

// TaskTools returns the schemas of the three board actions the model may
// invoke. Schemas are strict: unknown properties are rejected.
func TaskTools() []Tool {
	statusEnum := []string{"todo", "in_progress", "done"}
	priorityEnum := []string{"low", "medium", "high"}

	return []Tool{
		{
			Type: "function",
			Function: Function{
				Name:        ToolCreateTask,
				Description: "Create a new task on the user's Kanban board",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"title":       map[string]interface{}{"type": "string", "description": "Task title"},
						"description": map[string]interface{}{"type": "string", "description": "Task description"},
						"status":      map[string]interface{}{"type": "string", "enum": statusEnum, "description": "Task status column"},
						"priority":    map[string]interface{}{"type": "string", "enum": priorityEnum, "description": "Task priority"},
						"due_date":    map[string]interface{}{"type": "string", "description": "Due date in YYYY-MM-DD format"},
						"tags":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}, "description": "Tags for the task"},
					},
					"required":             []string{"title"},
					"additionalProperties": false,
				},
			},
		},
		{
			Type: "function",
			Function: Function{
				Name:        ToolUpdateTask,
				Description: "Update an existing task. Use the task title or context to find the right task ID from the user's tasks list.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"task_id":     map[string]interface{}{"type": "string", "description": "The UUID of the task to update"},
						"title":       map[string]interface{}{"type": "string"},
						"description": map[string]interface{}{"type": "string"},
						"status":      map[string]interface{}{"type": "string", "enum": statusEnum},
						"priority":    map[string]interface{}{"type": "string", "enum": priorityEnum},
						"due_date":    map[string]interface{}{"type": "string"},
						"tags":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					},
					"required":             []string{"task_id"},
					"additionalProperties": false,
				},
			},
		},
		{
			Type: "function",
			Function: Function{
				Name:        ToolDeleteTask,
				Description: "Delete a task from the user's board",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"task_id": map[string]interface{}{"type": "string", "description": "The UUID of the task to delete"},
					},
					"required":             []string{"task_id"},
					"additionalProperties": false,
				},
			},
		},
	}
}
