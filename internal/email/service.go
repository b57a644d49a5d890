package email

import (
	"crypto/tls"
	"fmt"
	"net/smtp"

	"ipv-vendor-gateway/config"
	"ipv-vendor-gateway/internal/events"
	"ipv-vendor-gateway/internal/logging"
)

// Service sends customer notification emails
type Service struct {
	config config.SMTPConfig
	logger *logging.Logger
}

// NewService creates a new email service
func NewService(cfg config.SMTPConfig, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		config: cfg,
		logger: logger.WithComponent("email"),
	}
}

// IsConfigured reports whether SMTP is enabled and usable
func (s *Service) IsConfigured() bool {
	return s.config.Enabled && s.config.Host != "" && s.config.From != ""
}

// SendEmail sends an email using the configured SMTP server
func (s *Service) SendEmail(to, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("SMTP is not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	message := []byte(
		"From: " + from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			body + "\r\n",
	)

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	addr := s.config.Host + ":" + s.config.Port

	s.logger.Debug("sending email", "to", to, "subject", subject)

	var err error
	// Port 465 is implicit TLS, 587/25 use STARTTLS or plain
	if s.config.Port == "465" {
		err = s.sendEmailTLS(addr, auth, s.config.From, []string{to}, message)
	} else {
		err = smtp.SendMail(addr, auth, s.config.From, []string{to}, message)
	}

	if err != nil {
		s.logger.Error("failed to send email", "to", to, "error", err)
		return fmt.Errorf("SMTP error: %w", err)
	}
	return nil
}

// sendEmailTLS sends over an implicit TLS connection
func (s *Service) sendEmailTLS(addr string, auth smtp.Auth, from string, to []string, message []byte) error {
	tlsConfig := &tls.Config{ServerName: s.config.Host}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return err
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(message); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// SubscribeToEvents wires license and credit notifications to the
// event bus
func (s *Service) SubscribeToEvents(bus *events.Bus) {
	bus.Subscribe(events.LicenseCreated, func(e events.Event) {
		email, _ := e.Data["customer_email"].(string)
		key, _ := e.Data["license_key"].(string)
		plan, _ := e.Data["plan"].(string)
		if email == "" || key == "" || !s.IsConfigured() {
			return
		}
		body := fmt.Sprintf(
			"<p>Your %s license is ready.</p><p>License key: <strong>%s</strong></p><p>Enter it on the plugin settings page to activate this site.</p>",
			plan, key)
		if err := s.SendEmail(email, "Your license key", body); err != nil {
			s.logger.Warn("license key delivery failed", "error", err)
		}
	})

	bus.Subscribe(events.CreditsLow, func(e events.Event) {
		email, _ := e.Data["customer_email"].(string)
		remaining, _ := e.Data["remaining"].(int)
		if email == "" || !s.IsConfigured() {
			return
		}
		body := fmt.Sprintf(
			"<p>Your video production credits are running low.</p><p>Remaining credits: <strong>%d</strong></p><p>Purchase extra credits or wait for your monthly reset to continue generating content.</p>",
			remaining)
		if err := s.SendEmail(email, "Your credits are running low", body); err != nil {
			s.logger.Warn("low credits notice failed", "error", err)
		}
	})

	bus.Subscribe(events.CreditsDepleted, func(e events.Event) {
		email, _ := e.Data["customer_email"].(string)
		if email == "" || !s.IsConfigured() {
			return
		}
		body := "<p>Your video production credits are used up for this period.</p><p>Purchase extra credits to keep generating content, or wait for your monthly reset.</p>"
		if err := s.SendEmail(email, "Your credits are depleted", body); err != nil {
			s.logger.Warn("depleted credits notice failed", "error", err)
		}
	})

	bus.Subscribe(events.CreditsReset, func(e events.Event) {
		email, _ := e.Data["customer_email"].(string)
		remaining, _ := e.Data["remaining"].(int)
		if email == "" || !s.IsConfigured() {
			return
		}
		body := fmt.Sprintf(
			"<p>Your monthly credits have been renewed.</p><p>Available credits: <strong>%d</strong></p>",
			remaining)
		if err := s.SendEmail(email, "Your monthly credits have been renewed", body); err != nil {
			s.logger.Warn("credit reset notice failed", "error", err)
		}
	})
}
