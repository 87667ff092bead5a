package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coachflow/internal/config"
	"coachflow/internal/services"
)

const userAgent = "coachflow/0.1.0"

// Message is a single notification addressed to one recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Service sends student-facing messages.
type Service interface {
	Send(ctx context.Context, msg Message) error
}

// Alerter publishes operator-facing alerts about stage runs.
type Alerter interface {
	NotifyStageFailures(ctx context.Context, stage string, failures int, duration time.Duration, detail string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds the student message channel selected by config.
func NewService(cfg *config.Config) Service {
	n := cfg.Notifications
	switch strings.ToLower(strings.TrimSpace(n.Channel)) {
	case "ntfy":
		if strings.TrimSpace(n.NtfyTopic) == "" {
			return noopService{}
		}
		return newNtfyService(n.NtfyServer, n.NtfyTopic, requestTimeout(n))
	case "smtp":
		return newSMTPService(n)
	default:
		return noopService{}
	}
}

// NewAlerter builds the operator alert channel. Without an alert topic a noop
// implementation is returned.
func NewAlerter(cfg *config.Config) Alerter {
	n := cfg.Notifications
	if strings.TrimSpace(n.AlertTopic) == "" {
		return noopService{}
	}
	return newNtfyService(n.NtfyServer, n.AlertTopic, requestTimeout(n))
}

func requestTimeout(n config.Notifications) time.Duration {
	timeout := time.Duration(n.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return timeout
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
	email    string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func newNtfyService(server, topic string, timeout time.Duration) *ntfyService {
	topic = strings.TrimSpace(topic)
	endpoint := topic
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		endpoint = strings.TrimRight(strings.TrimSpace(server), "/") + "/" + strings.TrimLeft(topic, "/")
	}
	return &ntfyService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (n *ntfyService) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return services.Wrap(services.ErrValidation, "notifications", "send", "recipient is required", nil)
	}
	return n.send(ctx, payload{
		title:   strings.TrimSpace(msg.Subject),
		message: msg.Body,
		tags:    []string{"coachflow", "homework"},
		email:   strings.TrimSpace(msg.To),
	})
}

func (n *ntfyService) NotifyStageFailures(ctx context.Context, stage string, failures int, duration time.Duration, detail string) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	message := fmt.Sprintf("%s finished in %s with %d failure(s)", stage, duration, failures)
	if detail = strings.TrimSpace(detail); detail != "" {
		message += "\n" + detail
	}
	return n.send(ctx, payload{
		title:   fmt.Sprintf("coachflow - %s (with errors)", stage),
		message: message,
		tags:    []string{"coachflow", stage, "warning"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" in ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "coachflow - Error",
		message:  builder.String(),
		tags:     []string{"coachflow", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "coachflow - Test",
		message:  "Notification system test",
		tags:     []string{"coachflow", "test"},
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
	if data.email != "" {
		req.Header.Set("Email", data.email)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "notifications", "ntfy", "send notification", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.HTTPStatusMarker(resp.StatusCode), "notifications", "ntfy",
			fmt.Sprintf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Send(context.Context, Message) error { return nil }
func (noopService) NotifyStageFailures(context.Context, string, int, time.Duration, string) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
