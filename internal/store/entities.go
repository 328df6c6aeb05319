package store

import "time"

// Ticket is the persisted board ticket row.
type Ticket struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Title       string    `gorm:"size:255;not null"`
	Description string    `gorm:"type:text"`
	Status      string    `gorm:"index;size:20;not null"`
	ProjectPath string    `gorm:"size:512"`
	AssigneeID  string    `gorm:"index;size:36"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// Conversation is the durable record of one agent job: its prompt, status,
// and extracted commit hash.
type Conversation struct {
	ID          string `gorm:"primaryKey;size:36"`
	TicketID    string `gorm:"index;size:36;not null"`
	AgentID     string `gorm:"size:36"`
	Provider    string `gorm:"size:20"`
	Prompt      string `gorm:"type:text"`
	Status      string `gorm:"index;size:20;not null"`
	CommitHash  string `gorm:"size:40"`
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// ConversationMessage is one ordered streamed chunk or system note. The
// auto-increment id preserves per-stream arrival order.
type ConversationMessage struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ConversationID string `gorm:"index;size:36;not null"`
	Kind           string `gorm:"size:10;not null"`
	Content        string `gorm:"type:text"`
	CreatedAt      time.Time
}

// Activity is one audit feed entry.
type Activity struct {
	ID        string `gorm:"primaryKey;size:36"`
	TicketID  string `gorm:"index;size:36"`
	ActorID   string `gorm:"size:36"`
	EventKind string `gorm:"size:40;not null"`
	Detail    string `gorm:"type:text"`
	NewValue  string `gorm:"size:255"`
	CreatedAt time.Time
}
