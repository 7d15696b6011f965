// internal/mail/session.go
package mail

import (
	"strings"

	"gopkg.in/gomail.v2"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
)

// Settings is the connection profile for one sender account.
type Settings struct {
	Host string
	Port int
	SSL  bool // implicit TLS on connect; false means STARTTLS
}

// SettingsFor picks host/port/TLS from the sender's domain. Well-known
// providers map to known combinations; unknown domains get a guessed host on
// the submission port. Explicit overrides win, with port 465 implying SSL.
func SettingsFor(sender, hostOverride string, portOverride int) Settings {
	if hostOverride != "" {
		port := portOverride
		if port == 0 {
			port = 587
		}
		return Settings{Host: hostOverride, Port: port, SSL: port == 465}
	}

	domain := ""
	if at := strings.LastIndex(sender, "@"); at >= 0 {
		domain = strings.ToLower(sender[at+1:])
	}
	switch {
	case strings.Contains(domain, "gmail.com"):
		return Settings{Host: "smtp.gmail.com", Port: 465, SSL: true}
	case domain == "outlook.com" || domain == "hotmail.com" || domain == "live.com":
		return Settings{Host: "smtp-mail.outlook.com", Port: 587}
	case domain == "":
		return Settings{Host: "smtp.gmail.com", Port: 587}
	default:
		return Settings{Host: "smtp." + domain, Port: 587}
	}
}

// Session is one authenticated mail connection. It accepts one submission at
// a time and must never be used concurrently.
type Session interface {
	Submit(m *gomail.Message) error
	Close() error
}

// SessionFactory opens and authenticates a session. A factory error is fatal
// to the whole batch: nothing gets sent.
type SessionFactory func() (Session, error)

type smtpSession struct {
	sc gomail.SendCloser
}

func (s *smtpSession) Submit(m *gomail.Message) error {
	return gomail.Send(s.sc, m)
}

func (s *smtpSession) Close() error {
	return s.sc.Close()
}

// WrapSendCloser adapts any gomail transport into a Session. Tests use it
// with fake transports.
func WrapSendCloser(sc gomail.SendCloser) Session {
	return &smtpSession{sc: sc}
}

// Connect dials and authenticates. Dial covers both the TCP/TLS handshake
// and the login, so connect and auth failures share one fatal error path.
func Connect(settings Settings, username, password string) (Session, error) {
	d := gomail.NewDialer(settings.Host, settings.Port, username, password)
	d.SSL = settings.SSL
	sc, err := d.Dial()
	if err != nil {
		return nil, appErrors.NewConnect(settings.Host, settings.Port, err)
	}
	return WrapSendCloser(sc), nil
}

// Factory binds settings and credentials into a SessionFactory for the
// dispatch engine.
func Factory(settings Settings, username, password string) SessionFactory {
	return func() (Session, error) {
		return Connect(settings, username, password)
	}
}
