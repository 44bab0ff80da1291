package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/users-api/internal/config"
	"github.com/elskow/users-api/internal/verification"
)

// SMTPSender delivers pins through an SMTP relay using STARTTLS and PLAIN auth.
type SMTPSender struct {
	cfg      *config.SMTPConfig
	log      *zap.Logger
	validity time.Duration
	dialer   net.Dialer
}

func NewSMTPSender(cfg *config.SMTPConfig, log *zap.Logger, validity time.Duration) *SMTPSender {
	return &SMTPSender{
		cfg:      cfg,
		log:      log,
		validity: validity,
		dialer:   net.Dialer{Timeout: 10 * time.Second},
	}
}

func (s *SMTPSender) SendPin(ctx context.Context, recipient, code string, purpose verification.Purpose) error {
	msg, err := buildMessage(s.cfg.From, recipient, code, purpose, s.validity)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("smtp starttls: %w", err)
	}
	if s.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}

	if err := client.Quit(); err != nil {
		s.log.Warn("smtp quit failed", zap.Error(err))
	}

	s.log.Info("pin email sent", zap.String("email", recipient), zap.String("purpose", string(purpose)))
	return nil
}
