package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskType classifies a task.
type TaskType string

const (
	TaskContactNow  TaskType = "contact_now"
	TaskFollowUp    TaskType = "follow_up"
	TaskRescue      TaskType = "rescue"
	TaskCallOutcome TaskType = "call_outcome"
	TaskManual      TaskType = "manual"
)

// TaskStatus is the progress of a task. The lifecycle engine only creates open tasks.
type TaskStatus string

const (
	TaskOpen      TaskStatus = "open"
	TaskDone      TaskStatus = "done"
	TaskSnoozed   TaskStatus = "snoozed"
	TaskCancelled TaskStatus = "cancelled"
)

// Task is a unit of work proposed to a human.
type Task struct {
	ID                uuid.UUID
	LeadID            uuid.UUID
	OwnerID           uuid.UUID
	DueAt             time.Time
	Status            TaskStatus
	Type              TaskType
	RequiresHumanSend bool
	Channel           *string
	TemplateID        *uuid.UUID
	SequenceStepID    *uuid.UUID
	CreatedAt         time.Time
}

// NewTask describes a task to insert.
type NewTask struct {
	LeadID            uuid.UUID
	OwnerID           uuid.UUID
	DueAt             time.Time
	Type              TaskType
	RequiresHumanSend bool
	Channel           *string
	TemplateID        *uuid.UUID
	SequenceStepID    *uuid.UUID
	CreatedAt         time.Time
}
