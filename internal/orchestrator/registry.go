package orchestrator

import (
	"strings"
	"sync"
	"time"

	"agent-deck/internal/domain"
)

// Job is one supervised execution of an external agent process. The live
// process handle is owned exclusively by the job and never leaves the
// orchestrator; external callers only ever see JobView projections.
type Job struct {
	mu sync.Mutex

	id             string
	conversationID string
	ticketID       string
	agentID        string
	agentName      string
	agentAvatar    string
	projectPath    string
	provider       domain.Provider
	startedAt      time.Time

	status domain.JobStatus
	output strings.Builder
	handle ProcessHandle
}

// View returns the externally visible snapshot of the job.
func (j *Job) View() domain.JobView {
	j.mu.Lock()
	defer j.mu.Unlock()

	return domain.JobView{
		ID:             j.id,
		ConversationID: j.conversationID,
		TicketID:       j.ticketID,
		AgentID:        j.agentID,
		AgentName:      j.agentName,
		ProjectPath:    j.projectPath,
		Provider:       j.provider,
		Status:         j.status,
		Output:         j.output.String(),
		StartedAt:      j.startedAt,
	}
}

// Status returns the current lifecycle state.
func (j *Job) Status() domain.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// append grows the output buffer. The buffer is append-only.
func (j *Job) append(text string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.output.WriteString(text)
}

// setHandle attaches the spawned process unless the job already finished,
// which can happen when a process exits before Launch returns.
func (j *Job) setHandle(handle ProcessHandle) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.IsTerminal() {
		return
	}
	j.handle = handle
}

// finalize transitions the job to a terminal status exactly once and drops
// the process handle. It reports false when the job was already terminal,
// which makes duplicate terminal events (exit after cancel) no-ops.
func (j *Job) finalize(status domain.JobStatus) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.IsTerminal() {
		return false
	}
	j.status = status
	j.handle = nil
	return true
}

// cancel atomically claims a running job for cancellation and releases the
// process handle to the caller so the kill happens outside the lock.
func (j *Job) cancel() (ProcessHandle, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.IsTerminal() {
		return nil, false
	}
	j.status = domain.JobStatusCancelled
	handle := j.handle
	j.handle = nil
	return handle, true
}

// Registry is the single source of truth for active and recently finished
// jobs. All mutations go through the mutex so completion and cancellation
// callbacks from different process goroutines cannot corrupt it.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Register adds a job under its id, replacing any stale entry.
func (r *Registry) Register(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.id] = job
}

// RegisterIfTicketIdle atomically registers the job unless its ticket
// already has a non-terminal job. Check and insert share one write lock so
// concurrent launches for one ticket cannot both pass the guard.
func (r *Registry) RegisterIfTicketIdle(job *Job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.jobs {
		if existing.ticketID == job.ticketID && !existing.Status().IsTerminal() {
			return false
		}
	}
	r.jobs[job.id] = job
	return true
}

// Get returns the job for id, or nil when unknown.
func (r *Registry) Get(id string) *Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jobs[id]
}

// FindByTicket returns the first job associated with ticketID, or nil.
// With multiple retained jobs for one ticket the choice is arbitrary.
func (r *Registry) FindByTicket(ticketID string) *Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, job := range r.jobs {
		if job.ticketID == ticketID {
			return job
		}
	}
	return nil
}

// RunningByTicket returns the running job for ticketID, or nil.
func (r *Registry) RunningByTicket(ticketID string) *Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, job := range r.jobs {
		if job.ticketID == ticketID && !job.Status().IsTerminal() {
			return job
		}
	}
	return nil
}

// List returns projections of every tracked job.
func (r *Registry) List() []domain.JobView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]domain.JobView, 0, len(r.jobs))
	for _, job := range r.jobs {
		views = append(views, job.View())
	}
	return views
}

// Remove deletes the job for id. Unknown ids are ignored, so a retention
// timer firing after an explicit cancellation removal is harmless.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}
