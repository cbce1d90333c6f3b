package localidp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog/log"
)

const codeDigits = 6

// CodeSender delivers a confirmation code out of band.
type CodeSender interface {
	SendConfirmationCode(ctx context.Context, email, code string) error
}

// LogCodeSender writes codes to the log. Development only.
type LogCodeSender struct{}

func (LogCodeSender) SendConfirmationCode(_ context.Context, email, code string) error {
	log.Info().Str("email", email).Str("code", code).Msg("local idp: confirmation code")
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPCodeSender mails codes through a plain-auth SMTP relay.
type SMTPCodeSender struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPCodeSender(cfg SMTPConfig) *SMTPCodeSender {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPCodeSender{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *SMTPCodeSender) SendConfirmationCode(_ context.Context, email, code string) error {
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := s.cfg.Host + ":" + s.cfg.Port

	msg := strings.Join([]string{
		"To: " + email,
		"From: " + s.cfg.From,
		"Subject: Your verification code",
		"MIME-version: 1.0;",
		"Content-Type: text/plain; charset=\"UTF-8\";",
		"",
		fmt.Sprintf("Your verification code is %s", code),
	}, "\r\n")

	if err := s.sendMail(addr, auth, s.cfg.From, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("send confirmation code: %w", err)
	}
	return nil
}

// generateCode returns a zero-padded numeric code.
func generateCode() (string, error) {
	limit := big.NewInt(1)
	for range codeDigits {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
