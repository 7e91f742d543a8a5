package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"shelver/internal/config"
)

const userAgent = "shelver/0.1.0"

// Service defines the notification surface used by the daemon.
type Service interface {
	NotifyMoveFailed(ctx context.Context, path, category string, err error) error
	NotifySweepCompleted(ctx context.Context, dir string, processed int, duration time.Duration) error
	NotifyWatcherStopped(ctx context.Context, dir string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		gates:    cfg.Notifications,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	gates    config.Notifications
}

func (n *ntfyService) NotifyMoveFailed(ctx context.Context, path, category string, err error) error {
	if !n.gates.MoveFailures {
		return nil
	}
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	return n.send(ctx, payload{
		title:    "shelver - Move Failed",
		message:  fmt.Sprintf("Could not move %s to %s\n%s", filepath.Base(path), category, reason),
		tags:     []string{"shelver", "move", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifySweepCompleted(ctx context.Context, dir string, processed int, duration time.Duration) error {
	if !n.gates.Sweeps {
		return nil
	}
	duration = max(duration.Round(time.Second), 0)
	return n.send(ctx, payload{
		title:   "shelver - Sweep Complete",
		message: fmt.Sprintf("Sorted %d files in %s (%s)", processed, dir, duration),
		tags:    []string{"shelver", "sweep", "completed"},
	})
}

func (n *ntfyService) NotifyWatcherStopped(ctx context.Context, dir string, err error) error {
	if !n.gates.WatcherErrors {
		return nil
	}
	message := fmt.Sprintf("Stopped watching %s", dir)
	if err != nil {
		message = fmt.Sprintf("%s: %s", message, strings.TrimSpace(err.Error()))
	}
	return n.send(ctx, payload{
		title:    "shelver - Watcher Stopped",
		message:  message,
		tags:     []string{"shelver", "watcher", "error"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "shelver - Test",
		message:  "Notification system test",
		tags:     []string{"shelver", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyMoveFailed(context.Context, string, string, error) error          { return nil }
func (noopService) NotifySweepCompleted(context.Context, string, int, time.Duration) error { return nil }
func (noopService) NotifyWatcherStopped(context.Context, string, error) error              { return nil }
func (noopService) TestNotification(context.Context) error                                 { return nil }
