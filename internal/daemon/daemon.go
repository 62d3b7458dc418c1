// Package daemon wires folio's components together and runs them.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kartikay/folio/internal/config"
	"github.com/kartikay/folio/internal/logger"
	"github.com/kartikay/folio/internal/metrics"
	"github.com/kartikay/folio/internal/observability"
	"github.com/kartikay/folio/internal/tracing"
	"github.com/kartikay/folio/pkg/agent"
	"github.com/kartikay/folio/pkg/coretools"
	"github.com/kartikay/folio/pkg/gateway"
	"github.com/kartikay/folio/pkg/profile"
	"github.com/kartikay/folio/pkg/scheduler"
	"github.com/kartikay/folio/pkg/toolexecutor"
)

// Options selects which surfaces a daemon runs
type Options struct {
	// Approver answers confirmation prompts. Nil queues them for gateway
	// clients.
	Approver toolexecutor.ApprovalHandler

	// Gateway serves the WebSocket and HTTP RPC gateway
	Gateway bool

	// PIDFile records the process in <data_dir>/folio.pid while running
	PIDFile bool

	// OnMessage observes every session message
	OnMessage func(sessionID string, msg agent.AgentMessage)
}

// Status describes a daemon
type Status struct {
	Running   bool          `json:"running"`
	StartTime time.Time     `json:"start_time,omitempty"`
	Uptime    time.Duration `json:"uptime"`
	Tasks     int           `json:"tasks"`
	Clients   int           `json:"clients"`
}

// Daemon owns the tool registry, the scheduler, the agent sessions and the
// optional gateway
type Daemon struct {
	config  *config.Config
	logger  *logger.Logger
	log     zerolog.Logger
	options Options

	metrics   *metrics.Metrics
	profiles  *profile.Store
	watcher   *profile.Watcher
	tools     *toolexecutor.ToolExecutor
	policy    *toolexecutor.ToolPolicy
	approvals *toolexecutor.PendingApprovals
	runner    *agent.Runner
	manager   *agent.Manager
	scheduler *scheduler.Service
	gateway   *gateway.Server
	lifecycle *LifecycleManager

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// Version is reported in traces and status output
var Version = "0.1.0"

var newProvider = agent.NewProvider

// New builds a daemon from cfg without starting anything
func New(cfg *config.Config, log *logger.Logger, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	d := &Daemon{
		config:  cfg,
		logger:  log,
		log:     log.Component("daemon"),
		options: opts,
		metrics: metrics.NewMetrics(),
		policy: &toolexecutor.ToolPolicy{
			Allow: cfg.Tools.Allow,
			Deny:  cfg.Tools.Deny,
		},
	}

	if err := tracing.InitOpenTelemetry("folio", Version); err != nil {
		d.log.Warn().Err(err).Msg("Failed to initialize tracing")
	}

	if err := d.initializeTools(); err != nil {
		return nil, fmt.Errorf("failed to initialize tools: %w", err)
	}
	if err := d.initializeAgent(); err != nil {
		return nil, fmt.Errorf("failed to initialize agent: %w", err)
	}
	if err := d.initializeScheduler(); err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	if opts.Gateway {
		if err := d.initializeGateway(); err != nil {
			return nil, fmt.Errorf("failed to initialize gateway: %w", err)
		}
	}
	if opts.PIDFile {
		d.lifecycle = NewLifecycleManager(cfg.DataDir, log.Component("lifecycle"))
	}

	return d, nil
}

// initializeTools loads the profile and registers the core tools
func (d *Daemon) initializeTools() error {
	profiles, err := profile.NewStore(d.config.Profile.Path)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	d.profiles = profiles
	d.log.Info().Str("name", profiles.Get().Name).Str("path", profiles.Path()).Msg("Profile loaded")

	d.tools = toolexecutor.New()
	d.tools.SetObserver(d.metrics)

	if err := coretools.RegisterCoreTools(d.tools, coretools.Options{Profiles: profiles}); err != nil {
		return fmt.Errorf("failed to register core tools: %w", err)
	}
	d.log.Info().Int("count", d.tools.GetToolCount()).Strs("confirm", d.tools.ConfirmationRequired()).Msg("Core tools registered")

	for _, warning := range config.NewValidator().ValidateConfig(d.config, d.tools.ListTools()) {
		d.log.Warn().Err(warning).Msg("Configuration warning")
	}

	handler := d.options.Approver
	if handler == nil {
		d.approvals = toolexecutor.NewPendingApprovals()
		handler = d.approvals
	}
	approvalManager := toolexecutor.NewApprovalManager(handler)
	approvalManager.SetDefaultTimeout(d.config.Tools.ApprovalTimeout())
	d.tools.SetApprovalManager(approvalManager)

	return nil
}

// initializeAgent creates the runner, when credentials exist, and the
// session manager
func (d *Daemon) initializeAgent() error {
	if d.config.HasCredentials() {
		provider, err := newProvider(d.config.Agent.Provider, d.config.Agent.APIKey)
		if err != nil {
			return fmt.Errorf("failed to create provider: %w", err)
		}

		runner, err := agent.NewRunner(agent.Config{
			Provider:     provider,
			ToolExecutor: d.tools,
			Agent: agent.AgentConfig{
				Model:         d.config.Agent.Model,
				Temperature:   d.config.Agent.Temperature,
				MaxTokens:     d.config.Agent.MaxTokens,
				SystemPrompt:  d.config.Agent.SystemPrompt,
				MaxIterations: d.config.Agent.MaxIterations,
				ToolTimeout:   d.config.Tools.Timeout(),
			},
			ToolPolicy: d.policy,
			Observer:   d.metrics,
			Logger:     d.logger.Component("agent"),
		})
		if err != nil {
			return fmt.Errorf("failed to create agent runner: %w", err)
		}
		d.runner = runner
		d.log.Info().Str("provider", provider.Provider()).Str("model", d.config.Agent.Model).Msg("Agent runner initialized")
	} else {
		d.log.Warn().Msg("No API key configured, chat is disabled and scheduled tasks are only recorded")
	}

	d.manager = agent.NewManager(agent.ManagerConfig{
		Runner:    d.runner,
		OnMessage: d.options.OnMessage,
	})

	return nil
}

// initializeScheduler opens the task store and binds the scheduler to the
// session manager
func (d *Daemon) initializeScheduler() error {
	path := d.config.Scheduler.Path
	if path == "" {
		name := "tasks.json"
		if d.config.Scheduler.Store == "sqlite" {
			name = "tasks.db"
		}
		path = filepath.Join(d.config.DataDir, name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create task store directory: %w", err)
	}

	store, err := scheduler.OpenStore(d.config.Scheduler.Store, path)
	if err != nil {
		return fmt.Errorf("failed to open task store: %w", err)
	}

	location := time.Local
	if tz := d.config.Scheduler.Timezone; tz != "" {
		location, err = time.LoadLocation(tz)
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("invalid timezone %s: %w", tz, err)
		}
	}

	svc, err := scheduler.NewService(scheduler.Options{
		Store:    store,
		Dispatch: d.manager.Dispatch,
		OnEvent:  d.onTaskEvent,
		Location: location,
	})
	if err != nil {
		_ = store.Close()
		return err
	}
	d.scheduler = svc
	d.manager.SetScheduler(svc)

	d.log.Info().Str("store", d.config.Scheduler.Store).Str("path", path).Msg("Scheduler initialized")

	return nil
}

// initializeGateway creates the gateway server
func (d *Daemon) initializeGateway() error {
	server, err := gateway.NewServer(gateway.Config{
		Host:           d.config.Gateway.Host,
		Port:           d.config.Gateway.Port,
		SharedSecret:   d.config.Gateway.SharedSecret,
		TickInterval:   30 * time.Second,
		Tools:          d.tools,
		ToolPolicy:     d.policy,
		ToolTimeout:    d.config.Tools.Timeout(),
		Approvals:      d.approvals,
		Tasks:          d.scheduler,
		Sessions:       d.manager,
		DefaultSession: d.config.Agent.ID,
		Metrics:        d.metrics.Handler(),
		Observer:       d.metrics,
		Logger:         d.logger.Component("gateway"),
	})
	if err != nil {
		return err
	}
	d.gateway = server

	if d.config.Gateway.SharedSecret == "" {
		d.log.Warn().Str("addr", d.config.Gateway.Addr()).Msg("Gateway shared secret is empty, clients are not authenticated")
	}

	return nil
}

// onTaskEvent feeds scheduler events to metrics, the audit trail and
// gateway clients
func (d *Daemon) onTaskEvent(evt scheduler.Event) {
	d.metrics.ObserveSchedulerEvent(evt)

	status := evt.Status
	if status == "" {
		status = "ok"
	}
	metadata := map[string]interface{}{}
	if evt.Callback != "" {
		metadata["callback"] = evt.Callback
	}
	if evt.Error != "" {
		metadata["error"] = evt.Error
	}
	observability.RecordTaskAudit(context.Background(), string(evt.Action), evt.AgentID, evt.TaskID, status, metadata)

	if d.gateway != nil {
		d.gateway.PublishTaskEvent(evt)
	}
}

// Start arms persisted tasks and starts the configured surfaces
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon is already running")
	}

	if d.lifecycle != nil {
		if err := d.lifecycle.Start(); err != nil {
			return err
		}
	}

	if path := d.config.Logging.AuditFile; path != "" {
		if err := observability.InitAuditLogger(path); err != nil {
			d.log.Warn().Err(err).Str("path", path).Msg("Failed to open audit log, audit trail disabled")
		}
	}

	if err := d.scheduler.Start(ctx); err != nil {
		d.stopLifecycle()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	d.metrics.SetTasksPending(len(d.scheduler.List("")))

	if d.config.Profile.Watch && d.profiles.Path() != "" {
		watcher, err := profile.NewWatcher(d.profiles, d.logger.Component("profile"), func(p *profile.Profile) {
			d.log.Info().Str("name", p.Name).Msg("Profile reloaded")
		})
		if err != nil {
			d.log.Warn().Err(err).Msg("Failed to watch profile, hot reload disabled")
		} else {
			d.watcher = watcher
		}
	}

	if d.gateway != nil {
		if err := d.gateway.Start(); err != nil {
			d.stopWatcher()
			_ = d.scheduler.Stop()
			d.stopLifecycle()
			return fmt.Errorf("failed to start gateway: %w", err)
		}
	}

	d.running = true
	d.startTime = time.Now()

	d.log.Info().Bool("gateway", d.gateway != nil).Bool("chat", d.runner != nil).Msg("Daemon started")

	return nil
}

// Stop shuts everything down. Persisted tasks survive for the next start.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return fmt.Errorf("daemon is not running")
	}
	d.running = false

	d.log.Info().Msg("Stopping daemon")

	var firstErr error
	if d.gateway != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := d.gateway.Stop(ctx); err != nil {
			d.log.Error().Err(err).Msg("Failed to stop gateway")
			firstErr = err
		}
		cancel()
	}

	d.stopWatcher()

	if err := d.scheduler.Stop(); err != nil {
		d.log.Error().Err(err).Msg("Failed to stop scheduler")
		if firstErr == nil {
			firstErr = err
		}
	}

	if d.config.Logging.AuditFile != "" {
		if err := observability.CloseAuditLogger(); err != nil {
			d.log.Error().Err(err).Msg("Failed to close audit log")
		}
	}

	d.stopLifecycle()

	d.log.Info().Msg("Daemon stopped")

	return firstErr
}

func (d *Daemon) stopWatcher() {
	if d.watcher == nil {
		return
	}
	if err := d.watcher.Stop(); err != nil {
		d.log.Error().Err(err).Msg("Failed to stop profile watcher")
	}
	d.watcher = nil
}

func (d *Daemon) stopLifecycle() {
	if d.lifecycle == nil {
		return
	}
	if err := d.lifecycle.Stop(); err != nil {
		d.log.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}
}

// Run starts the daemon and blocks until ctx ends or SIGINT/SIGTERM arrives
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		d.log.Info().Str("signal", sig.String()).Msg("Received signal")
	case <-ctx.Done():
	}

	return d.Stop()
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
		Tasks:   len(d.scheduler.List("")),
	}
	if d.running {
		status.StartTime = d.startTime
		status.Uptime = time.Since(d.startTime)
	}
	if d.gateway != nil {
		status.Clients = len(d.gateway.GetConnectedClients())
	}

	return status
}

// ExecutionContext returns the tool execution context of a session
func (d *Daemon) ExecutionContext(sessionID string) *toolexecutor.ExecutionContext {
	sess := d.manager.Session(sessionID)
	return &toolexecutor.ExecutionContext{
		Agent:      sess,
		SessionKey: sess.ID(),
		Timeout:    d.config.Tools.Timeout(),
		ToolPolicy: d.policy,
	}
}

// CallTool runs a tool for a session, asking for approval when the tool
// requires confirmation
func (d *Daemon) CallTool(ctx context.Context, sessionID string, name string, params map[string]interface{}) toolexecutor.ToolResult {
	execCtx := d.ExecutionContext(sessionID)

	result := d.tools.Execute(ctx, name, params, execCtx)
	if result.Failed(toolexecutor.ErrorKindConfirmationRequired) {
		result = d.tools.ExecuteConfirmed(ctx, name, params, execCtx)
	}
	return result
}

// Tools returns the tool registry
func (d *Daemon) Tools() *toolexecutor.ToolExecutor {
	return d.tools
}

// Policy returns the configured tool policy
func (d *Daemon) Policy() *toolexecutor.ToolPolicy {
	return d.policy
}

// Manager returns the session manager
func (d *Daemon) Manager() *agent.Manager {
	return d.manager
}

// Scheduler returns the task scheduler
func (d *Daemon) Scheduler() *scheduler.Service {
	return d.scheduler
}

// Gateway returns the gateway server, nil unless enabled
func (d *Daemon) Gateway() *gateway.Server {
	return d.gateway
}

// Metrics returns the metrics registry
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.metrics
}

// Config returns the daemon configuration
func (d *Daemon) Config() *config.Config {
	return d.config
}
