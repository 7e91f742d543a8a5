package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"shelver/internal/daemon"
	"shelver/internal/logging"
	"shelver/internal/logs"
	"shelver/internal/session"
)

const maxNoticeWait = 30 * time.Second

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(serviceName, &service{daemon: d, logger: logger, ctx: serverCtx}); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until Close is called or the
// context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Go(func() {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Go(func() {
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
			})
		}
	})
	go func() {
		<-s.ctx.Done()
		_ = s.listener.Close()
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun shelver stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "watching started"
	s.logger.Info("daemon started via IPC", logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	err := s.daemon.Stop()
	resp.Stopped = true
	var warning *session.StopWarning
	if errors.As(err, &warning) {
		resp.Warning = warning.Error()
	} else if err != nil {
		return err
	}
	s.logger.Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	*resp = StatusResponse{
		Running:      status.Running,
		SessionState: status.SessionState,
		WatchDir:     status.WatchDir,
		RunID:        status.RunID,
		Sweeping:     status.Sweeping,
		Categories:   status.Categories,
		LockPath:     status.LockFilePath,
		HistoryPath:  status.HistoryPath,
		LogPath:      status.LogPath,
		PID:          status.PID,
	}
	if status.LastSweep != nil {
		summary := toSweepSummary(*status.LastSweep)
		resp.LastSweep = &summary
	}
	if status.History != nil {
		resp.History = &HistorySummary{
			Total:      status.History.Total,
			ByOutcome:  status.History.ByOutcome,
			ByCategory: status.History.ByCategory,
		}
	}
	return nil
}

func (s *service) Sweep(req SweepRequest, resp *SweepResponse) error {
	s.logger.Debug("sweep requested", logging.String(logging.FieldPath, req.Dir))
	report, err := s.daemon.Sweep(s.ctx, req.Dir)
	if errors.Is(err, session.ErrSweepInProgress) {
		return err
	}
	resp.Summary = toSweepSummary(report)
	s.logger.Info("sweep completed via IPC",
		logging.String(logging.FieldEventType, "sweep_rpc"),
		logging.Int("processed_count", report.Processed))
	return nil
}

func (s *service) Notices(req NoticesRequest, resp *NoticesResponse) error {
	wait := min(time.Duration(req.WaitMillis)*time.Millisecond, maxNoticeWait)
	ctx := s.ctx
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait)
		defer cancel()
	}
	notices, next, err := s.daemon.Notices(ctx, req.Since, req.Limit, wait > 0)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Next = next
	resp.Notices = make([]Notice, 0, len(notices))
	for _, n := range notices {
		resp.Notices = append(resp.Notices, Notice{Sequence: n.Sequence, Timestamp: n.Timestamp, Message: n.Message})
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, s.daemon.LogPath(), logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
		Match:  req.Match,
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func toSweepSummary(report daemon.SweepReport) SweepSummary {
	return SweepSummary{
		Dir:        report.Dir,
		Processed:  report.Processed,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Error:      report.Error,
	}
}
