package emails

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/config"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

func SMTPFromConfig(cfg *config.Config) SMTPConfig {
	return SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
	}
}

func SendSMTP(cfg SMTPConfig, email *Email) error {
	auth := smtp.PlainAuth(
		"",
		cfg.Username,
		cfg.Password,
		cfg.Host,
	)

	headers := map[string]string{
		"From":         email.From,
		"To":           strings.Join(email.To, ", "),
		"Subject":      email.Subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=\"UTF-8\"",
	}

	msg := ""
	for k, v := range headers {
		msg += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	msg += "\r\n" + email.HtmlBody

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return smtp.SendMail(addr, auth, email.From, email.To, []byte(msg))
}
