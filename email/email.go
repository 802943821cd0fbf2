// Package email sends password reset mail over SMTP with gomail.
package email

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/url"

	"gopkg.in/gomail.v2"
)

const (
	DefaultResetSubject  = "[EPIK] 비밀번호 재설정 안내"
	DefaultResetLinkBase = "epik://reset-password"
)

// Sender delivers a composed message.
type Sender interface {
	DialAndSend(...*gomail.Message) error
}

// SMTPConfig holds the SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Option customizes a Mailer.
type Option func(*Mailer)

// WithSMTP dials the given server.
func WithSMTP(cfg SMTPConfig) Option {
	return func(m *Mailer) {
		m.sender = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
}

// WithSender replaces the SMTP dialer.
func WithSender(sender Sender) Option {
	return func(m *Mailer) {
		m.sender = sender
	}
}

// WithResetLinkBase sets the deep link the reset token is appended to.
func WithResetLinkBase(base string) Option {
	return func(m *Mailer) {
		if base != "" {
			m.linkBase = base
		}
	}
}

// WithSubject overrides the reset mail subject.
func WithSubject(subject string) Option {
	return func(m *Mailer) {
		if subject != "" {
			m.subject = subject
		}
	}
}

// Mailer implements auth.EmailSender.
type Mailer struct {
	from     string
	subject  string
	linkBase string
	sender   Sender
}

// New creates a Mailer sending from the given address.
func New(from string, opts ...Option) (*Mailer, error) {
	m := &Mailer{
		from:     from,
		subject:  DefaultResetSubject,
		linkBase: DefaultResetLinkBase,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.from == "" {
		return nil, errors.New("email: missing from address")
	}
	if m.sender == nil {
		return nil, errors.New("email: missing smtp configuration")
	}
	return m, nil
}

// ResetLink returns the deep link for token.
func (m *Mailer) ResetLink(token string) string {
	return m.linkBase + "?token=" + url.QueryEscape(token)
}

// SendPasswordReset implements auth.EmailSender.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := resetTemplate.Execute(&body, resetData{Link: m.ResetLink(token)}); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", m.subject)
	msg.SetBody("text/html", body.String())

	return m.sender.DialAndSend(msg)
}

type resetData struct {
	Link string
}

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body>
<p>안녕하세요, EPIK입니다.</p>
<p>아래 버튼을 눌러 비밀번호를 재설정해 주세요. 링크는 일정 시간 후 만료됩니다.</p>
<p><a href="{{.Link}}">비밀번호 재설정하기</a></p>
<p>본인이 요청하지 않았다면 이 메일을 무시하셔도 됩니다.</p>
</body>
</html>
`))
