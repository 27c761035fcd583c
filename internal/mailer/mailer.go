package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
)

type Config struct {
	Host     string
	Port     string
	From     string
	Password string
}

// SendProfileUpdateLink mails the private update link to an attendee. The
// link carries the hash code, which grants profile-update rights only.
func SendProfileUpdateLink(log *zerolog.Logger, cfg Config, name, recipientEmail, updateURL string) error {
	subject := "Your profile update link"
	body := fmt.Sprintf(
		"Hello %s!\n\nUse the link below to update your attendee profile:\n\n%s\n\nKeep this link private: anyone with it can edit your profile.",
		name, updateURL,
	)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		cfg.From, recipientEmail, subject, body,
	)

	addr := cfg.Host + ":" + cfg.Port
	auth := smtp.PlainAuth("", cfg.From, cfg.Password, cfg.Host)

	if err := smtp.SendMail(addr, auth, cfg.From, []string{recipientEmail}, []byte(msg)); err != nil {
		log.Warn().Msgf("failed to send profile update link to %s: %v", recipientEmail, err)
		return fmt.Errorf("send email: %w", err)
	}

	log.Info().Msgf("Profile update link sent to %s", recipientEmail)
	return nil
}
