package workflow

import (
	"time"

	"github.com/google/uuid"
)

// ActionType classifies one recorded agent action for the activity feed.
type ActionType string

const (
	ActionThinking     ActionType = "THINKING"
	ActionPlanning     ActionType = "PLANNING"
	ActionInstall      ActionType = "INSTALL"
	ActionRead         ActionType = "READ"
	ActionWrite        ActionType = "WRITE"
	ActionEdit         ActionType = "EDIT"
	ActionBuild        ActionType = "BUILD"
	ActionFixing       ActionType = "FIXING"
	ActionCommand      ActionType = "COMMAND"
	ActionComplete     ActionType = "COMPLETE"
	ActionPlanGenerate ActionType = "PLAN_GENERATE"
	ActionSearch       ActionType = "SEARCH"
	ActionResearch     ActionType = "RESEARCH"
	ActionTaskStart    ActionType = "TASK_START"
	ActionTaskComplete ActionType = "TASK_COMPLETE"
	ActionTaskFail     ActionType = "TASK_FAIL"
	ActionValidating   ActionType = "VALIDATING"
)

// AIAction is one recorded step inside a task.
type AIAction struct {
	Type      ActionType `json:"type"`
	Target    string     `json:"target,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// TaskStatus is the lifecycle state of a task. Transitions are monotonic:
// PENDING → IN_PROGRESS → COMPLETED or FAILED, never back.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
)

// AITask is the unit of work spanning one user request, from its first
// action through finish or failure.
type AITask struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Actions     []AIAction `json:"actions"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newTask(description string) *AITask {
	return &AITask{
		ID:          uuid.NewString(),
		Description: description,
		Status:      TaskPending,
		CreatedAt:   time.Now().UTC(),
	}
}

// State is the sequencing state of the engine within one task.
type State string

const (
	StateAwaitingPlan State = "AWAITING_PLAN"
	StatePlanning     State = "PLANNING"
	StateExecuting    State = "EXECUTING"
	StateVerifying    State = "VERIFYING"
	StateDone         State = "DONE"
	StateChatting     State = "CHATTING"
)

// ProtocolViolation records a mismatch between expected and actual tool-call
// sequencing. Violations are logged and surfaced but never block the call:
// the engine cannot compel the model, it can only account for it.
type ProtocolViolation struct {
	TaskID string    `json:"task_id"`
	Tool   string    `json:"tool"`
	Reason string    `json:"reason"`
	Time   time.Time `json:"time"`
}

// EventType labels one entry on the task event stream.
type EventType string

const (
	EventTaskOpened    EventType = "task_opened"
	EventActionApplied EventType = "action_applied"
	EventStateChanged  EventType = "state_changed"
	EventViolation     EventType = "protocol_violation"
	EventTaskClosed    EventType = "task_closed"
)

// Event is published to websocket subscribers as the engine sequences a task.
type Event struct {
	Type      EventType          `json:"event_type"`
	TaskID    string             `json:"task_id"`
	State     State              `json:"state,omitempty"`
	Action    *AIAction          `json:"action,omitempty"`
	Violation *ProtocolViolation `json:"violation,omitempty"`
	Images    []string           `json:"images,omitempty"`
	Time      time.Time          `json:"time"`
}
