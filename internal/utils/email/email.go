package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/card-vault/internal/config"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending security notification emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendCardSecurityNotice notifies a user that one of their tokenized
// cards was revoked or deleted. The body carries only the masked card
// number, never the raw PAN.
func (s *Sender) SendCardSecurityNotice(to, username, maskedNumber, event string, when time.Time) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Card %s Notification", event)

	body := fmt.Sprintf(
		"Dear %s,\n\n", username,
	)
	body += fmt.Sprintf(
		"Your tokenized card %s was %s on %s.\n"+
			"If you did not request this, please contact support immediately.\n",
		maskedNumber, event, when.Format("2006-01-02 15:04:05"),
	)
	body += "\nBest regards,\nCard Vault"
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
