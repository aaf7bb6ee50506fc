// Package mail delivers plain-text and HTML notifications over SMTP.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"akatsuki/api/internal/config"
	"akatsuki/api/internal/core/domain"
	"akatsuki/api/internal/logging"
)

// Transport modes for MAIL_ENCRYPTION.
const (
	EncryptionTLS      = "tls"      // implicit TLS from the first byte
	EncryptionSTARTTLS = "starttls" // plaintext dial, upgraded before auth
	EncryptionNone     = "none"
)

// defaultTimeout bounds a session when MAIL_TIMEOUT is unset.
const defaultTimeout = 30 * time.Second

type SMTPMailer struct {
	cfg    config.MailConfig
	logger *slog.Logger
	now    func() time.Time
}

var _ domain.Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(cfg config.MailConfig, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger, now: time.Now}
}

// Send delivers msg. msg.To overrides the configured destination.
func (m *SMTPMailer) Send(ctx context.Context, msg domain.MailMessage) error {
	to := m.cfg.SendTo
	if msg.To != "" {
		to = msg.To
	}

	if !m.cfg.Configured(to) {
		m.logger.InfoContext(ctx, "mail send skipped: transport not configured")
		return domain.ErrMailNotConfigured
	}

	if err := m.deliver(ctx, to, msg); err != nil {
		logging.Critical(ctx, m.logger, "mail send failed",
			slog.String("to", to),
			slog.String("subject", msg.Subject),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: %v", domain.ErrMailDelivery, err)
	}
	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, to string, msg domain.MailMessage) error {
	timeout := m.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	mode := m.mode()

	conn, err := m.dial(ctx, addr, mode)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("greeting: %w", err)
	}
	defer client.Close()

	if m.cfg.LocalDomain != "" {
		if err := client.Hello(m.cfg.LocalDomain); err != nil {
			return fmt.Errorf("hello: %w", err)
		}
	}

	if mode == EncryptionSTARTTLS {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		if err := client.Auth(m.auth(mode)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(m.compose(to, msg)); err != nil {
		w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("end data: %w", err)
	}

	return client.Quit()
}

func (m *SMTPMailer) mode() string {
	switch m.cfg.Encryption {
	case EncryptionTLS, EncryptionSTARTTLS, EncryptionNone:
		return m.cfg.Encryption
	}
	// A local mailhog catcher speaks plain SMTP only.
	if m.cfg.Host == "mailhog" {
		return EncryptionNone
	}
	return EncryptionSTARTTLS
}

// auth picks the PLAIN mechanism. smtp.PlainAuth refuses unencrypted
// sessions to remote hosts, so mode none uses plaintextAuth instead.
func (m *SMTPMailer) auth(mode string) smtp.Auth {
	if mode == EncryptionNone {
		return plaintextAuth{username: m.cfg.Username, password: m.cfg.Password}
	}
	return smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
}

// plaintextAuth is RFC 4616 PLAIN without the TLS requirement.
type plaintextAuth struct {
	username, password string
}

func (a plaintextAuth) Start(_ *smtp.ServerInfo) (string, []byte, error) {
	return "PLAIN", []byte("\x00" + a.username + "\x00" + a.password), nil
}

func (a plaintextAuth) Next(_ []byte, more bool) ([]byte, error) {
	if more {
		return nil, errors.New("unexpected server challenge")
	}
	return nil, nil
}

func (m *SMTPMailer) dial(ctx context.Context, addr, mode string) (net.Conn, error) {
	if mode == EncryptionTLS {
		d := &tls.Dialer{Config: &tls.Config{ServerName: m.cfg.Host}}
		return d.DialContext(ctx, "tcp", addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// compose renders an RFC 5322 message with a base64 UTF-8 body.
func (m *SMTPMailer) compose(to string, msg domain.MailMessage) []byte {
	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}

	domainPart := m.cfg.LocalDomain
	if domainPart == "" {
		domainPart = "localhost"
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString(foldHeader("Subject", mime.QEncoding.Encode("utf-8", msg.Subject)))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.NewString(), domainPart)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(msg.Body))
	for len(encoded) > 76 {
		b.WriteString(encoded[:76] + "\r\n")
		encoded = encoded[76:]
	}
	if encoded != "" {
		b.WriteString(encoded + "\r\n")
	}
	return b.Bytes()
}

// maxHeaderLine is the RFC 5322 recommended line length, CRLF excluded.
const maxHeaderLine = 78

// foldHeader renders "name: value" CRLF-terminated, breaking at spaces so
// lines stay within maxHeaderLine. Long encoded subjects come out of
// mime.QEncoding as space-separated encoded words, which gives it a break
// point at least every 75 octets.
func foldHeader(name, value string) string {
	var b strings.Builder
	b.WriteString(name + ":")
	lineLen := len(name) + 1
	for i, word := range strings.Split(value, " ") {
		if i > 0 && lineLen+1+len(word) > maxHeaderLine {
			b.WriteString("\r\n")
			lineLen = 0
		}
		b.WriteString(" " + word)
		lineLen += 1 + len(word)
	}
	b.WriteString("\r\n")
	return b.String()
}
