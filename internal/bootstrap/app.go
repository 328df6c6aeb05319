package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"agent-deck/internal/config"
	"agent-deck/internal/diagnostics"
	"agent-deck/internal/domain"
	"agent-deck/internal/orchestrator"
	"agent-deck/internal/store"
	"agent-deck/internal/worklog"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// ErrJobNotFound is returned by job queries for unknown ids.
var ErrJobNotFound = errors.New("job not found")

// App wires configuration, storage, the orchestrator, and UI runtime
// callbacks into one bound backend.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	DB          *store.Store
	Supervisor  *orchestrator.Supervisor
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	events      *orchestrator.EventBus

	mu         sync.Mutex
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup checks.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	cfgStore := config.NewJSONStore(filepath.Join(homeDir, ".agent-deck", "settings.json"))
	settings, err := cfgStore.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	if err := os.MkdirAll(settings.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := store.Open(settings.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	events := orchestrator.NewEventBus(2000)
	supervisor := orchestrator.NewSupervisor(
		orchestrator.NewExecLauncher(),
		db,
		db,
		db,
		worklog.NewWriter(),
		events,
	)

	app := &App{
		Settings:    settings,
		Store:       cfgStore,
		DB:          db,
		Supervisor:  supervisor,
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		events:      events,
	}
	supervisor.SetEventHook(app.pushEvent)
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Agent Deck",
		Width:       1280,
		Height:      820,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores the Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns startup checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.Diagnostics = a.checker.Run(settings)
	report := a.Diagnostics
	a.mu.Unlock()
	return report, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// CreateTicket adds a new board ticket.
func (a *App) CreateTicket(ticket domain.Ticket) (domain.Ticket, error) {
	if strings.TrimSpace(ticket.Title) == "" {
		return domain.Ticket{}, fmt.Errorf("ticket title is required")
	}
	return a.DB.CreateTicket(ticket)
}

// Tickets lists all board tickets.
func (a *App) Tickets() ([]domain.Ticket, error) {
	return a.DB.Tickets()
}

// StartAgentJob delegates a ticket to an agent CLI: it opens the durable
// conversation, then launches a supervised job. The returned view reflects
// the job at spawn time; completion is observed through later queries.
func (a *App) StartAgentJob(ticketID, agentID, agentName, agentAvatar string, provider domain.Provider, prompt string) (domain.JobView, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.JobView{}, fmt.Errorf("prompt is required")
	}

	ticket, err := a.DB.Ticket(ticketID)
	if err != nil {
		return domain.JobView{}, err
	}
	if strings.TrimSpace(ticket.ProjectPath) == "" {
		return domain.JobView{}, fmt.Errorf("ticket %s has no project path", ticketID)
	}

	profile, err := a.resolveProfile(provider)
	if err != nil {
		return domain.JobView{}, err
	}

	conversationID, err := a.DB.CreateConversation(ticketID, agentID, profile.Name, prompt)
	if err != nil {
		return domain.JobView{}, fmt.Errorf("create conversation: %w", err)
	}

	view, err := a.Supervisor.Launch(orchestrator.LaunchRequest{
		JobID:          uuid.NewString(),
		ConversationID: conversationID,
		TicketID:       ticketID,
		AgentID:        agentID,
		AgentName:      agentName,
		AgentAvatar:    agentAvatar,
		ProjectPath:    ticket.ProjectPath,
		Prompt:         prompt,
		Profile:        profile,
	})
	if err != nil {
		// The job never started; close the conversation so it cannot
		// linger as a running record.
		if ferr := a.DB.FinalizeConversation(conversationID, domain.JobStatusCancelled, ""); ferr != nil {
			log.Printf("finalize rejected conversation %s: %v", conversationID, ferr)
		}
		return domain.JobView{}, err
	}
	return view, nil
}

// CancelAgentJob cancels a running job; false means nothing cancellable.
func (a *App) CancelAgentJob(jobID string) bool {
	return a.Supervisor.Cancel(jobID)
}

// AgentJobs lists all active and recently finished jobs.
func (a *App) AgentJobs() []domain.JobView {
	return a.Supervisor.Jobs()
}

// AgentJob returns one job projection by id.
func (a *App) AgentJob(jobID string) (domain.JobView, error) {
	view, ok := a.Supervisor.Job(jobID)
	if !ok {
		return domain.JobView{}, fmt.Errorf("job %s: %w", jobID, ErrJobNotFound)
	}
	return view, nil
}

// AgentJobForTicket returns the job tracked for a ticket, if any.
func (a *App) AgentJobForTicket(ticketID string) (domain.JobView, error) {
	view, ok := a.Supervisor.JobForTicket(ticketID)
	if !ok {
		return domain.JobView{}, fmt.Errorf("ticket %s: %w", ticketID, ErrJobNotFound)
	}
	return view, nil
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []orchestrator.Event {
	return a.events.Since(sinceSeq)
}

// ConversationMessages returns a conversation's ordered message log.
func (a *App) ConversationMessages(conversationID string) ([]store.ConversationMessage, error) {
	return a.DB.Messages(conversationID)
}

// TicketConversations returns a ticket's conversations, newest first.
func (a *App) TicketConversations(ticketID string) ([]store.Conversation, error) {
	return a.DB.ConversationsForTicket(ticketID)
}

// TicketActivity returns a ticket's audit feed, most recent first.
func (a *App) TicketActivity(ticketID string) ([]store.Activity, error) {
	return a.DB.Activities(ticketID)
}

// resolveProfile loads the provider catalog and selects a profile, falling
// back to the configured default provider when none is given.
func (a *App) resolveProfile(provider domain.Provider) (config.ProviderProfile, error) {
	a.mu.Lock()
	settings := a.Settings
	a.mu.Unlock()

	if provider == "" {
		provider = settings.DefaultProvider
	}

	profiles, err := config.LoadProfiles(settings.ProvidersPath)
	if err != nil {
		return config.ProviderProfile{}, fmt.Errorf("load provider catalog: %w", err)
	}

	profile, ok := profiles[provider]
	if !ok {
		return config.ProviderProfile{}, fmt.Errorf("unknown provider: %s", provider)
	}
	return profile, nil
}

// pushEvent forwards orchestrator events to the UI over the Wails runtime.
func (a *App) pushEvent(event orchestrator.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", event)
	}
}

// normalizeSettings trims user inputs and fills defaults for empty fields.
func normalizeSettings(settings domain.Settings) domain.Settings {
	defaults := config.DefaultSettings()

	settings.DataDir = strings.TrimSpace(settings.DataDir)
	if settings.DataDir == "" {
		settings.DataDir = defaults.DataDir
	}
	settings.DatabasePath = strings.TrimSpace(settings.DatabasePath)
	if settings.DatabasePath == "" {
		settings.DatabasePath = filepath.Join(settings.DataDir, "agent-deck.db")
	}
	settings.ProvidersPath = strings.TrimSpace(settings.ProvidersPath)
	if settings.ProvidersPath == "" {
		settings.ProvidersPath = filepath.Join(settings.DataDir, "providers.yaml")
	}
	if settings.DefaultProvider == "" {
		settings.DefaultProvider = defaults.DefaultProvider
	}
	return settings
}

// ensureLocalBinOnPATH prepends the app's local bin directory to PATH so
// user-local agent CLI installs are found.
func ensureLocalBinOnPATH(homeDir string) error {
	binDir := filepath.Join(homeDir, ".agent-deck", "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}
