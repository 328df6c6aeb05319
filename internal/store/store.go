package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agent-deck/internal/domain"
)

// ErrNotFound is returned for lookups of unknown records.
var ErrNotFound = errors.New("record not found")

// Store is the dashboard's local relational store. It backs the thin CRUD
// surface and implements the orchestrator's collaborator interfaces.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if err := db.AutoMigrate(
		&Ticket{},
		&Conversation{},
		&ConversationMessage{},
		&Activity{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// CreateTicket persists a new ticket, generating id and default status.
func (s *Store) CreateTicket(ticket domain.Ticket) (domain.Ticket, error) {
	if strings.TrimSpace(ticket.ID) == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusTodo
	}

	row := ticketRow(ticket)
	if err := s.db.Create(&row).Error; err != nil {
		return domain.Ticket{}, err
	}
	return ticketView(row), nil
}

// Tickets returns all tickets, most recently updated first.
func (s *Store) Tickets() ([]domain.Ticket, error) {
	var rows []Ticket
	if err := s.db.Order("updated_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}

	tickets := make([]domain.Ticket, 0, len(rows))
	for _, row := range rows {
		tickets = append(tickets, ticketView(row))
	}
	return tickets, nil
}

// Ticket returns one ticket by id.
func (s *Store) Ticket(id string) (domain.Ticket, error) {
	var row Ticket
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Ticket{}, fmt.Errorf("ticket %s: %w", id, ErrNotFound)
		}
		return domain.Ticket{}, err
	}
	return ticketView(row), nil
}

// SetTicketStatus moves a ticket to a new workflow state and records the
// transition in the activity feed.
func (s *Store) SetTicketStatus(id, status, actorID string) error {
	result := s.db.Model(&Ticket{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("ticket %s: %w", id, ErrNotFound)
	}

	return s.Record(id, actorID, "ticket_status", "Ticket status changed", status)
}

// CreateConversation opens the durable record for one agent job.
func (s *Store) CreateConversation(ticketID, agentID string, provider domain.Provider, prompt string) (string, error) {
	row := Conversation{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		AgentID:   agentID,
		Provider:  string(provider),
		Prompt:    prompt,
		Status:    string(domain.JobStatusRunning),
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return "", err
	}
	return row.ID, nil
}

// Conversation returns one conversation by id.
func (s *Store) Conversation(id string) (Conversation, error) {
	var row Conversation
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Conversation{}, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
		}
		return Conversation{}, err
	}
	return row, nil
}

// ConversationsForTicket returns a ticket's conversations, newest first.
func (s *Store) ConversationsForTicket(ticketID string) ([]Conversation, error) {
	var rows []Conversation
	err := s.db.
		Where("ticket_id = ?", ticketID).
		Order("created_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AppendMessage persists one ordered conversation message.
func (s *Store) AppendMessage(conversationID, text, kind string) error {
	return s.db.Create(&ConversationMessage{
		ConversationID: conversationID,
		Kind:           kind,
		Content:        text,
		CreatedAt:      time.Now(),
	}).Error
}

// Messages returns a conversation's messages in append order.
func (s *Store) Messages(conversationID string) ([]ConversationMessage, error) {
	var rows []ConversationMessage
	err := s.db.
		Where("conversation_id = ?", conversationID).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FinalizeConversation records a job's terminal outcome.
func (s *Store) FinalizeConversation(conversationID string, status domain.JobStatus, commitHash string) error {
	now := time.Now()
	result := s.db.Model(&Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{
			"status":       string(status),
			"commit_hash":  commitHash,
			"completed_at": &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	return nil
}

// Record appends one audit entry to the activity feed.
func (s *Store) Record(ticketID, actorID, eventKind, detail, newValue string) error {
	return s.db.Create(&Activity{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		ActorID:   actorID,
		EventKind: eventKind,
		Detail:    detail,
		NewValue:  newValue,
		CreatedAt: time.Now(),
	}).Error
}

// Activities returns a ticket's audit entries, most recent first.
func (s *Store) Activities(ticketID string) ([]Activity, error) {
	var rows []Activity
	err := s.db.
		Where("ticket_id = ?", ticketID).
		Order("created_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ticketRow maps the domain ticket onto its persisted row.
func ticketRow(t domain.Ticket) Ticket {
	return Ticket{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		ProjectPath: t.ProjectPath,
		AssigneeID:  t.AssigneeID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// ticketView maps a persisted row back to the domain ticket.
func ticketView(row Ticket) domain.Ticket {
	return domain.Ticket{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Status:      row.Status,
		ProjectPath: row.ProjectPath,
		AssigneeID:  row.AssigneeID,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
