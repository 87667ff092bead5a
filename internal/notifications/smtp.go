package notifications

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"coachflow/internal/config"
	"coachflow/internal/services"
)

type smtpService struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
	now      func() time.Time
}

func newSMTPService(n config.Notifications) *smtpService {
	port := n.SMTPPort
	if port <= 0 {
		port = 587
	}
	return &smtpService{
		host:     strings.TrimSpace(n.SMTPHost),
		port:     port,
		username: strings.TrimSpace(n.SMTPUsername),
		password: n.SMTPPassword,
		from:     strings.TrimSpace(n.FromAddress),
		timeout:  requestTimeout(n),
		now:      time.Now,
	}
}

func (s *smtpService) Send(ctx context.Context, msg Message) error {
	to, err := mail.ParseAddress(strings.TrimSpace(msg.To))
	if err != nil {
		return services.Wrap(services.ErrValidation, "notifications", "smtp", "invalid recipient "+msg.To, err)
	}
	from, err := mail.ParseAddress(s.from)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "notifications", "smtp", "invalid from_address", err)
	}
	body, err := s.compose(from, to, msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return services.Wrap(services.ErrTransient, "notifications", "smtp", "dial "+addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return services.Wrap(services.ErrTransient, "notifications", "smtp", "handshake", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
			return services.Wrap(services.ErrTransient, "notifications", "smtp", "starttls", err)
		}
	}
	if s.username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return services.Wrap(services.ErrUnauthorized, "notifications", "smtp", "authenticate", err)
		}
	}
	if err := client.Mail(from.Address); err != nil {
		return services.Wrap(services.ErrTransient, "notifications", "smtp", "mail from", err)
	}
	if err := client.Rcpt(to.Address); err != nil {
		return services.Wrap(services.ErrValidation, "notifications", "smtp", "recipient rejected", err)
	}
	writer, err := client.Data()
	if err != nil {
		return services.Wrap(services.ErrTransient, "notifications", "smtp", "data", err)
	}
	if _, err := writer.Write(body); err != nil {
		_ = writer.Close()
		return services.Wrap(services.ErrTransient, "notifications", "smtp", "write message", err)
	}
	if err := writer.Close(); err != nil {
		return services.Wrap(services.ErrTransient, "notifications", "smtp", "finish message", err)
	}
	return client.Quit()
}

func (s *smtpService) compose(from, to *mail.Address, msg Message) ([]byte, error) {
	var buf bytes.Buffer
	header := func(key, value string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", key, value)
	}
	header("From", from.String())
	header("To", to.String())
	header("Subject", mime.QEncoding.Encode("utf-8", strings.TrimSpace(msg.Subject)))
	header("Date", s.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	header("Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))); err != nil {
		return nil, fmt.Errorf("encode message body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("encode message body: %w", err)
	}
	return buf.Bytes(), nil
}
