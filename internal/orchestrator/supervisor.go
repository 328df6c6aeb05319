package orchestrator

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	"agent-deck/internal/config"
	"agent-deck/internal/domain"
	"agent-deck/internal/worklog"
)

// ErrTicketBusy is returned when launching against a ticket that already
// has a running job.
var ErrTicketBusy = errors.New("ticket already has a running job")

// terminalRetention is how long completed and failed jobs stay queryable
// before eviction, so polling clients observe the terminal state at least
// once. Cancelled jobs are evicted immediately.
const terminalRetention = 60 * time.Second

// commitPattern captures the first referenced commit hash in agent output.
var commitPattern = regexp.MustCompile(`(?i)\bcommit\s+([0-9a-f]{7,40})\b`)

// Message kinds persisted to a conversation.
const (
	MessageKindSystem = "system"
	MessageKindLog    = "log"
	MessageKindError  = "error"
)

// Activity event kinds recorded for the team feed.
const (
	ActivityAgentCompleted = "agent_completed"
	ActivityAgentFailed    = "agent_failed"
	ActivityAgentCancelled = "agent_cancelled"
)

// TicketStore exposes the ticket operations the orchestrator drives.
type TicketStore interface {
	Ticket(id string) (domain.Ticket, error)
	SetTicketStatus(id, status, actorID string) error
}

// ConversationStore persists the durable record of a job's prompt, output,
// and outcome. Terminal states are written here before registry eviction,
// so eviction never loses history.
type ConversationStore interface {
	AppendMessage(conversationID, text, kind string) error
	FinalizeConversation(conversationID string, status domain.JobStatus, commitHash string) error
}

// ActivityLog records audit entries referencing tickets and agents.
type ActivityLog interface {
	Record(ticketID, actorID, eventKind, detail, newValue string) error
}

// WorkLogWriter appends a human-readable entry to the project work log.
type WorkLogWriter interface {
	Write(entry worklog.Entry) error
}

// LaunchRequest carries everything needed to start one agent job.
type LaunchRequest struct {
	JobID          string
	ConversationID string
	TicketID       string
	AgentID        string
	AgentName      string
	AgentAvatar    string
	ProjectPath    string
	Prompt         string
	Profile        config.ProviderProfile
}

// Supervisor owns the job registry and drives every job from launch through
// its single terminal transition. It is the only component that touches the
// live process handles.
type Supervisor struct {
	registry *Registry
	launcher Launcher
	tickets  TicketStore
	convs    ConversationStore
	activity ActivityLog
	worklog  WorkLogWriter
	events   *EventBus

	retention time.Duration
	schedule  func(d time.Duration, fn func())
	logf      func(format string, args ...any)

	hookMu sync.Mutex
	hook   func(Event)
}

// NewSupervisor wires the orchestrator with production defaults.
func NewSupervisor(
	launcher Launcher,
	tickets TicketStore,
	convs ConversationStore,
	activity ActivityLog,
	workLog WorkLogWriter,
	events *EventBus,
) *Supervisor {
	return &Supervisor{
		registry:  NewRegistry(),
		launcher:  launcher,
		tickets:   tickets,
		convs:     convs,
		activity:  activity,
		worklog:   workLog,
		events:    events,
		retention: terminalRetention,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
		logf: log.Printf,
	}
}

// Launch registers a new running job and spawns its agent process. It never
// blocks on the process: completion is observed through later queries or
// the conversation log. Spawn failures surface through the same
// asynchronous failure path as post-spawn errors, not as a launch error.
func (s *Supervisor) Launch(req LaunchRequest) (domain.JobView, error) {
	job := &Job{
		id:             req.JobID,
		conversationID: req.ConversationID,
		ticketID:       req.TicketID,
		agentID:        req.AgentID,
		agentName:      req.AgentName,
		agentAvatar:    req.AgentAvatar,
		projectPath:    req.ProjectPath,
		provider:       req.Profile.Name,
		startedAt:      time.Now(),
		status:         domain.JobStatusRunning,
	}
	if !s.registry.RegisterIfTicketIdle(job) {
		return domain.JobView{}, ErrTicketBusy
	}

	started := fmt.Sprintf("%s started working (%s)", req.AgentName, req.Profile.Name)
	s.persistMessage(job, started, MessageKindSystem)
	s.publish(Event{
		JobID:    job.id,
		TicketID: job.ticketID,
		Type:     EventTypeStarted,
		Status:   domain.JobStatusRunning,
		Message:  started,
	})

	handle, err := s.launcher.Launch(LaunchSpec{
		Profile:     req.Profile,
		Prompt:      req.Prompt,
		ProjectPath: req.ProjectPath,
	}, Callbacks{
		OnStdout: func(chunk string) { s.accumulate(job, chunk, "stdout") },
		OnStderr: func(chunk string) { s.accumulate(job, chunk, "stderr") },
		OnExit:   func(exitCode int) { s.finishJob(job, exitCode) },
		OnError:  func(procErr error) { s.failJob(job, procErr) },
	})
	if err != nil {
		s.failJob(job, fmt.Errorf("spawn %s: %w", req.Profile.Command, err))
		return job.View(), nil
	}

	job.setHandle(handle)
	return job.View(), nil
}

// Cancel terminates a running job and finalizes it as cancelled. The job is
// removed from the registry immediately; the killed process's eventual exit
// event is a no-op. Returns false for unknown or already-terminal jobs.
func (s *Supervisor) Cancel(id string) bool {
	job := s.registry.Get(id)
	if job == nil {
		return false
	}

	handle, ok := job.cancel()
	if !ok {
		return false
	}
	if handle != nil {
		if err := handle.Kill(); err != nil {
			s.logf("kill job %s: %v", id, err)
		}
	}

	note := "Job cancelled by user"
	job.append("\n[cancelled] " + note + "\n")
	s.persistMessage(job, note, MessageKindSystem)
	s.finalizeConversation(job, domain.JobStatusCancelled, "")
	s.recordActivity(job, ActivityAgentCancelled, note, "")
	s.publish(Event{
		JobID:    job.id,
		TicketID: job.ticketID,
		Type:     EventTypeStatus,
		Status:   domain.JobStatusCancelled,
		Message:  note,
	})

	s.registry.Remove(id)
	return true
}

// Jobs returns projections of all active and recently finished jobs.
func (s *Supervisor) Jobs() []domain.JobView {
	return s.registry.List()
}

// Job returns the projection for one job id.
func (s *Supervisor) Job(id string) (domain.JobView, bool) {
	job := s.registry.Get(id)
	if job == nil {
		return domain.JobView{}, false
	}
	return job.View(), true
}

// JobForTicket returns the first job tracked for the ticket.
func (s *Supervisor) JobForTicket(ticketID string) (domain.JobView, bool) {
	job := s.registry.FindByTicket(ticketID)
	if job == nil {
		return domain.JobView{}, false
	}
	return job.View(), true
}

// accumulate appends one output chunk to the job buffer and persists it as
// an ordered conversation message. Chunks arriving after the job reached a
// terminal state belong to a killed process and are dropped.
func (s *Supervisor) accumulate(job *Job, chunk, stream string) {
	if job.Status().IsTerminal() {
		return
	}

	kind := MessageKindLog
	if stream == "stderr" {
		kind = MessageKindError
		job.append("[stderr] " + chunk)
	} else {
		job.append(chunk)
	}

	s.persistMessage(job, chunk, kind)
	s.publish(Event{
		JobID:    job.id,
		TicketID: job.ticketID,
		Type:     EventTypeOutput,
		Stream:   stream,
		Message:  chunk,
	})
}

// finishJob handles a process exit: classifies the outcome, finalizes the
// conversation, updates the ticket on success, writes the work log, and
// schedules registry cleanup. A job that was already finalized (for
// example cancelled before exit) is left untouched.
func (s *Supervisor) finishJob(job *Job, exitCode int) {
	success := exitCode == 0
	status := domain.JobStatusFailed
	if success {
		status = domain.JobStatusCompleted
	}
	if !job.finalize(status) {
		return
	}

	output := job.View().Output
	commitHash := ExtractCommitHash(output)

	s.finalizeConversation(job, status, commitHash)

	if success {
		banner := "✅ Task completed"
		if commitHash != "" {
			banner += fmt.Sprintf(" (commit %s)", commitHash)
		}
		s.persistMessage(job, banner, MessageKindSystem)
		s.recordActivity(job, ActivityAgentCompleted, banner, commitHash)

		if err := s.tickets.SetTicketStatus(job.ticketID, domain.TicketStatusInReview, job.agentID); err != nil {
			s.logf("move ticket %s to review: %v", job.ticketID, err)
		}
	} else {
		banner := fmt.Sprintf("❌ Task failed (exit code %d)", exitCode)
		s.persistMessage(job, banner, MessageKindError)
		s.recordActivity(job, ActivityAgentFailed, banner, "")
	}

	s.writeWorkLog(job, success, commitHash, output)

	s.publish(Event{
		JobID:      job.id,
		TicketID:   job.ticketID,
		Type:       EventTypeResult,
		Status:     status,
		CommitHash: commitHash,
	})
	s.scheduleCleanup(job.id)
}

// failJob handles a process-level error: the process could not be spawned
// or crashed without an exit code.
func (s *Supervisor) failJob(job *Job, procErr error) {
	if !job.finalize(domain.JobStatusFailed) {
		return
	}

	msg := "agent process error: " + procErr.Error()
	job.append("[stderr] " + msg + "\n")
	s.persistMessage(job, msg, MessageKindError)
	s.finalizeConversation(job, domain.JobStatusFailed, "")
	s.recordActivity(job, ActivityAgentFailed, msg, "")
	s.publish(Event{
		JobID:    job.id,
		TicketID: job.ticketID,
		Type:     EventTypeError,
		Status:   domain.JobStatusFailed,
		Message:  msg,
	})
	s.scheduleCleanup(job.id)
}

// writeWorkLog appends the run summary to the project work log. Failures
// here never affect the job's terminal status.
func (s *Supervisor) writeWorkLog(job *Job, success bool, commitHash, output string) {
	title := job.ticketID
	if ticket, err := s.tickets.Ticket(job.ticketID); err == nil && ticket.Title != "" {
		title = ticket.Title
	}

	err := s.worklog.Write(worklog.Entry{
		ProjectPath: job.projectPath,
		AgentName:   job.agentName,
		AgentAvatar: job.agentAvatar,
		TicketTitle: title,
		Success:     success,
		CommitHash:  commitHash,
		Output:      output,
	})
	if err != nil {
		s.logf("write work log for job %s: %v", job.id, err)
	}
}

// scheduleCleanup evicts the job after the retention window.
func (s *Supervisor) scheduleCleanup(id string) {
	s.schedule(s.retention, func() {
		s.registry.Remove(id)
	})
}

// persistMessage appends a conversation message, logging store failures.
func (s *Supervisor) persistMessage(job *Job, text, kind string) {
	if err := s.convs.AppendMessage(job.conversationID, text, kind); err != nil {
		s.logf("append message to conversation %s: %v", job.conversationID, err)
	}
}

// finalizeConversation records the job's terminal outcome durably.
func (s *Supervisor) finalizeConversation(job *Job, status domain.JobStatus, commitHash string) {
	if err := s.convs.FinalizeConversation(job.conversationID, status, commitHash); err != nil {
		s.logf("finalize conversation %s: %v", job.conversationID, err)
	}
}

// recordActivity emits an audit entry, logging store failures.
func (s *Supervisor) recordActivity(job *Job, eventKind, detail, newValue string) {
	if err := s.activity.Record(job.ticketID, job.agentID, eventKind, detail, newValue); err != nil {
		s.logf("record activity for ticket %s: %v", job.ticketID, err)
	}
}

// SetEventHook registers a callback invoked for every published event,
// used to push updates to the UI in addition to the polled bus.
func (s *Supervisor) SetEventHook(hook func(Event)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hook = hook
}

// publish forwards an event to the bus and the optional hook.
func (s *Supervisor) publish(event Event) {
	if s.events != nil {
		event = s.events.Publish(event)
	}

	s.hookMu.Lock()
	hook := s.hook
	s.hookMu.Unlock()
	if hook != nil {
		hook(event)
	}
}

// ExtractCommitHash returns the first commit hash referenced in output, or
// an empty string when none is present.
func ExtractCommitHash(output string) string {
	match := commitPattern.FindStringSubmatch(output)
	if match == nil {
		return ""
	}
	return match[1]
}
