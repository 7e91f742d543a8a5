package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"shelver/internal/classifier"
	"shelver/internal/config"
	"shelver/internal/events"
	"shelver/internal/history"
	"shelver/internal/logging"
	"shelver/internal/notifications"
	"shelver/internal/registry"
	"shelver/internal/session"
)

const (
	noticeCapacity = 512
	recordTimeout  = 5 * time.Second
)

var (
	ErrAlreadyRunning = errors.New("daemon already running")
	ErrLocked         = errors.New("another shelver daemon instance is already running")
)

// SweepReport summarizes one completed backlog sweep.
type SweepReport struct {
	Dir        string
	Processed  int
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	SessionState string
	WatchDir     string
	RunID        string
	Sweeping     bool
	Categories   int
	LockFilePath string
	HistoryPath  string
	LogPath      string
	PID          int
	LastSweep    *SweepReport
	History      *history.Summary
}

// Daemon owns one monitor session for the configured watch directory.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry
	session  *session.Session
	hub      *events.Hub
	store    *history.Store
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	sweepMu   sync.Mutex
	lastSweep *SweepReport
}

// New constructs a daemon. store may be nil when history is disabled.
func New(cfg *config.Config, store *history.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		registry: reg,
		hub:      events.NewHub(noticeCapacity),
		store:    store,
		notifier: notifications.NewService(cfg),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.session = session.New(reg, events.Multi(events.NewLogSink(logger), d.hub),
		session.WithLogger(logger),
		session.WithSettleDelay(cfg.SettleDelay()),
		session.WithSweepWorkers(cfg.Watcher.SweepWorkers),
		session.WithRecorder(d.handleResult),
		session.WithFailureHook(d.handleWatcherFailure),
	)
	return d, nil
}

// Start acquires the daemon lock, starts watching and, when configured,
// sweeps the existing backlog in the background. A running daemon whose
// watcher failed resumes watching instead.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		if d.session.State() == session.Idle {
			return d.session.Start(d.cfg.Paths.WatchDir)
		}
		return ErrAlreadyRunning
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}

	if err := d.session.Start(d.cfg.Paths.WatchDir); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.running.Store(true)
	d.pruneHistory(d.ctx)

	if d.cfg.Watcher.SweepOnStart {
		d.wg.Go(func() {
			if _, err := d.sweep(d.ctx, d.cfg.Paths.WatchDir); err != nil && !errors.Is(err, context.Canceled) {
				logging.WarnWithContext(d.logger, "start-up sweep failed", "startup_sweep_failed",
					logging.Error(err),
					logging.String(logging.FieldPath, d.cfg.Paths.WatchDir),
					logging.String(logging.FieldImpact, "existing files stay in place until the next sweep"),
					logging.String(logging.FieldErrorHint, "run shelver sweep once the directory is readable"),
				)
			}
		})
	}

	d.logger.Info("shelver daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldPath, d.cfg.Paths.WatchDir),
	)
	return nil
}

// Stop stops the session, waits for in-flight sweeps and releases the lock.
// A *session.StopWarning is returned when the watcher did not confirm
// termination within the configured timeout.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return nil
	}

	var stopErr error
	if d.session.State() == session.Running {
		stopErr = d.session.Stop(d.cfg.StopTimeout())
		if errors.Is(stopErr, session.ErrNotRunning) {
			stopErr = nil
		}
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()

	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next daemon start may report a stale lock"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("shelver daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	return stopErr
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	stopErr := d.Stop()
	if d.store != nil {
		return errors.Join(stopErr, d.store.Close())
	}
	return stopErr
}

// Sweep classifies the backlog of dir, or of the watch directory when dir
// is empty. It works whether or not the session is watching.
func (d *Daemon) Sweep(ctx context.Context, dir string) (SweepReport, error) {
	if strings.TrimSpace(dir) == "" {
		dir = d.cfg.Paths.WatchDir
	}
	return d.sweep(ctx, dir)
}

func (d *Daemon) sweep(ctx context.Context, dir string) (SweepReport, error) {
	report := SweepReport{Dir: dir, StartedAt: time.Now().UTC()}
	processed, err := d.session.SweepBacklog(ctx, dir)
	report.Processed = processed
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		report.Error = err.Error()
	}
	if errors.Is(err, session.ErrSweepInProgress) {
		return report, err
	}

	d.sweepMu.Lock()
	d.lastSweep = &report
	d.sweepMu.Unlock()

	if err == nil {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()
		if nerr := d.notifier.NotifySweepCompleted(notifyCtx, dir, processed, report.FinishedAt.Sub(report.StartedAt)); nerr != nil {
			d.warnNotify(nerr)
		}
	}
	return report, err
}

// Notices returns buffered session notices newer than since.
func (d *Daemon) Notices(ctx context.Context, since uint64, limit int, wait bool) ([]events.Notice, uint64, error) {
	if since == 0 && !wait {
		notices, next := d.hub.Tail(limit)
		return notices, next, nil
	}
	return d.hub.Fetch(ctx, since, limit, wait)
}

// Registry returns the registry built from the configured categories.
func (d *Daemon) Registry() *registry.Registry {
	return d.registry
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.cfg.DaemonLogPath()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		SessionState: d.session.State().String(),
		WatchDir:     d.cfg.Paths.WatchDir,
		RunID:        d.session.ID(),
		Sweeping:     d.session.Sweeping(),
		Categories:   d.registry.Len(),
		LockFilePath: d.lockPath,
		LogPath:      d.cfg.DaemonLogPath(),
		PID:          os.Getpid(),
	}
	d.sweepMu.Lock()
	if d.lastSweep != nil {
		last := *d.lastSweep
		status.LastSweep = &last
	}
	d.sweepMu.Unlock()

	if d.store != nil {
		status.HistoryPath = d.store.Path()
		if summary, err := d.store.Summary(ctx); err == nil {
			status.History = &summary
		} else {
			d.logger.Debug("history summary unavailable", logging.Error(err))
		}
	}
	return status
}

func (d *Daemon) handleResult(source string, result classifier.Result) {
	if result.Outcome == classifier.Unclassified {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if d.store != nil {
		entry := history.EntryFromResult(result, source)
		entry.RunID = d.session.ID()
		if _, err := d.store.Record(ctx, entry); err != nil {
			logging.WarnWithContext(d.logger, "history record failed", "history_record_failed",
				logging.Error(err),
				logging.String(logging.FieldPath, result.Source),
				logging.String(logging.FieldImpact, "the move is not listed in shelver history"),
				logging.String(logging.FieldErrorHint, "check that history.path is writable"),
			)
		}
	}

	if result.Outcome == classifier.Failed && !errors.Is(result.Err, classifier.ErrSourceVanished) {
		if err := d.notifier.NotifyMoveFailed(ctx, result.Source, result.Category, result.Err); err != nil {
			d.warnNotify(err)
		}
	}
}

func (d *Daemon) handleWatcherFailure(base string, failure error) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := d.notifier.NotifyWatcherStopped(ctx, base, failure); err != nil {
		d.warnNotify(err)
	}
}

func (d *Daemon) pruneHistory(ctx context.Context) {
	days := d.cfg.Logging.RetentionDays
	if d.store == nil || days <= 0 {
		return
	}
	removed, err := d.store.Prune(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		logging.WarnWithContext(d.logger, "history prune failed", "history_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "old history rows remain"),
		)
		return
	}
	if removed > 0 {
		d.logger.Info("history pruned", logging.Int64("removed_count", removed))
	}
}

func (d *Daemon) warnNotify(err error) {
	logging.WarnWithContext(d.logger, "notification failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "push notification not delivered"),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network reachability"),
	)
}
