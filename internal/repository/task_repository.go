package repository

import (
	"context"
	"errors"

	"github.com/Joyuchen/flow-state-board/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskRepository is the only path to the tasks table. Every method takes the
// owner's id and filters on it, so a caller holding someone else's task id
// gets ErrTaskNotFound instead of their row. There is deliberately no
// unscoped variant: the AI tool executor runs with the service connection
// and this filter is its entire isolation story.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// GetByOwner returns all of a user's tasks ordered for board rendering.
func (r *TaskRepository) GetByOwner(ctx context.Context, owner uuid.UUID) ([]model.Task, error) {
	var tasks []model.Task
	result := r.db.WithContext(ctx).
		Where("user_id = ?", owner).
		Order("status").
		Order("position").
		Find(&tasks)
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}

// GetOwned retrieves a single task owned by the user.
func (r *TaskRepository) GetOwned(ctx context.Context, owner, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	result := r.db.WithContext(ctx).First(&task, "id = ? AND user_id = ?", id, owner)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

// CreateForOwner inserts a new task for the user. A task created without an
// explicit position lands at the end of its status column.
func (r *TaskRepository) CreateForOwner(ctx context.Context, owner uuid.UUID, task *model.Task) error {
	task.UserID = owner
	if task.Position == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Task{}).
			Where("user_id = ? AND status = ?", owner, task.Status).
			Count(&count).Error; err != nil {
			return err
		}
		task.Position = int(count)
	}
	return r.db.WithContext(ctx).Create(task).Error
}

// UpdateOwned applies a partial update to a task the user owns. Unknown or
// cross-owner ids affect zero rows and surface as ErrTaskNotFound.
func (r *TaskRepository) UpdateOwned(ctx context.Context, owner, id uuid.UUID, changes map[string]interface{}) (*model.Task, error) {
	result := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND user_id = ?", id, owner).
		Updates(changes)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrTaskNotFound
	}
	return r.GetOwned(ctx, owner, id)
}

// DeleteOwned removes a task the user owns.
func (r *TaskRepository) DeleteOwned(ctx context.Context, owner, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ?", owner).
		Delete(&model.Task{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Move updates the status and/or position of a task, shifting its column
// neighbours so positions stay dense.
func (r *TaskRepository) Move(ctx context.Context, owner, taskID uuid.UUID, status model.Status, newPosition int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.Task
		if err := tx.First(&task, "id = ? AND user_id = ?", taskID, owner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return err
		}

		oldStatus := task.Status
		oldPosition := task.Position

		if oldStatus != status {
			// Close the gap in the old column
			if err := tx.Model(&model.Task{}).
				Where("user_id = ? AND status = ? AND position > ?", owner, oldStatus, oldPosition).
				Update("position", gorm.Expr("position - 1")).Error; err != nil {
				return err
			}

			// Make room in the new column
			if err := tx.Model(&model.Task{}).
				Where("user_id = ? AND status = ? AND position >= ?", owner, status, newPosition).
				Update("position", gorm.Expr("position + 1")).Error; err != nil {
				return err
			}

			task.Status = status
			task.Position = newPosition
		} else if oldPosition != newPosition {
			if oldPosition < newPosition {
				// Moving down: shift the tasks in between up
				if err := tx.Model(&model.Task{}).
					Where("user_id = ? AND status = ? AND position > ? AND position <= ?", owner, status, oldPosition, newPosition).
					Update("position", gorm.Expr("position - 1")).Error; err != nil {
					return err
				}
			} else {
				// Moving up: shift the tasks in between down
				if err := tx.Model(&model.Task{}).
					Where("user_id = ? AND status = ? AND position >= ? AND position < ?", owner, status, newPosition, oldPosition).
					Update("position", gorm.Expr("position + 1")).Error; err != nil {
					return err
				}
			}

			task.Position = newPosition
		}

		return tx.Save(&task).Error
	})
}

// TaskStats aggregates the numbers the dashboard and time views render.
type TaskStats struct {
	Total            int64                    `json:"total"`
	ByStatus         map[model.Status]int64   `json:"by_status"`
	ByPriority       map[model.Priority]int64 `json:"by_priority"`
	TotalEstimate    int64                    `json:"total_estimate"`
	EstimateByStatus map[model.Status]int64   `json:"estimate_by_status"`
}

// StatsForOwner computes per-status and per-priority counts plus time
// estimate sums for one user's board.
func (r *TaskRepository) StatsForOwner(ctx context.Context, owner uuid.UUID) (*TaskStats, error) {
	stats := &TaskStats{
		ByStatus:         make(map[model.Status]int64),
		ByPriority:       make(map[model.Priority]int64),
		EstimateByStatus: make(map[model.Status]int64),
	}

	type statusRow struct {
		Status   model.Status
		Count    int64
		Estimate int64
	}
	var statusRows []statusRow
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(time_estimate), 0) AS estimate").
		Where("user_id = ?", owner).
		Group("status").
		Scan(&statusRows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range statusRows {
		stats.ByStatus[row.Status] = row.Count
		stats.EstimateByStatus[row.Status] = row.Estimate
		stats.Total += row.Count
		stats.TotalEstimate += row.Estimate
	}

	type priorityRow struct {
		Priority model.Priority
		Count    int64
	}
	var priorityRows []priorityRow
	err = r.db.WithContext(ctx).Model(&model.Task{}).
		Select("priority, COUNT(*) AS count").
		Where("user_id = ?", owner).
		Group("priority").
		Scan(&priorityRows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range priorityRows {
		stats.ByPriority[row.Priority] = row.Count
	}

	return stats, nil
}
