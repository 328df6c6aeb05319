package domain

import "time"

// Provider selects which external coding-agent CLI executes a job.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderCodex  Provider = "codex"
)

// JobStatus tracks the lifecycle state of a single agent job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether a status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// JobView is the externally visible projection of a supervised job.
// It never carries the live process handle.
type JobView struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	TicketID       string    `json:"ticketId"`
	AgentID        string    `json:"agentId"`
	AgentName      string    `json:"agentName"`
	ProjectPath    string    `json:"projectPath"`
	Provider       Provider  `json:"provider"`
	Status         JobStatus `json:"status"`
	Output         string    `json:"output"`
	StartedAt      time.Time `json:"startedAt"`
}

// Ticket statuses the orchestrator interacts with. The board's full state
// machine lives in the UI; the orchestrator only ever requests in_review.
const (
	TicketStatusTodo       = "todo"
	TicketStatusInProgress = "in_progress"
	TicketStatusInReview   = "in_review"
	TicketStatusDone       = "done"
)

// Ticket is one unit of delegable work on the board.
type Ticket struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	ProjectPath string    `json:"projectPath"`
	AssigneeID  string    `json:"assigneeId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	DataDir         string   `json:"dataDir"`
	DatabasePath    string   `json:"databasePath"`
	ProvidersPath   string   `json:"providersPath"`
	DefaultProvider Provider `json:"defaultProvider"`
}
