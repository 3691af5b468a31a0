package mail

import (
	"context"
	"crypto/tls"
	"fmt"

	"gopkg.in/gomail.v2"
)

// RelayConfig describes the outbound SMTP relay.
type RelayConfig struct {
	Host string
	Port int
	// SSL forces implicit TLS. Port 465 implies it; otherwise STARTTLS is
	// used whenever the relay advertises it.
	SSL                bool
	InsecureSkipVerify bool
	// LocalName is sent with HELO/EHLO. Empty means "localhost".
	LocalName string
}

// Credentials authenticate one sender account. Address doubles as the
// login name and the envelope sender.
type Credentials struct {
	Address  string
	Name     string
	Password string
}

// Message is a single plain-text message to one recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Session is an authenticated relay connection.
type Session interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Connector opens relay sessions.
type Connector interface {
	Connect(ctx context.Context, creds Credentials) (Session, error)
	GetHost() string
	GetPort() int
}

// Dialer connects to the relay with gomail.
type Dialer struct {
	relay RelayConfig
}

func NewDialer(relay RelayConfig) *Dialer {
	return &Dialer{relay: relay}
}

func (d *Dialer) GetHost() string {
	return d.relay.Host
}

func (d *Dialer) GetPort() int {
	return d.relay.Port
}

func (d *Dialer) gomailDialer(creds Credentials) *gomail.Dialer {
	gd := gomail.NewDialer(d.relay.Host, d.relay.Port, creds.Address, creds.Password)
	if d.relay.SSL {
		gd.SSL = true
	}
	if d.relay.InsecureSkipVerify {
		gd.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: d.relay.Host} // #nosec G402 -- opt-in for test relays
	}
	if d.relay.LocalName != "" {
		gd.LocalName = d.relay.LocalName
	}
	return gd
}

// Connect dials the relay, upgrades to TLS where possible and logs in.
// Returned errors are *SendError of kind ErrAuth or ErrTransport.
func (d *Dialer) Connect(ctx context.Context, creds Credentials) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SendError{Kind: ErrTransport, Err: err}
	}
	sc, err := d.gomailDialer(creds).Dial()
	if err != nil {
		return nil, classifyConnect(fmt.Errorf("connect %s:%d: %w", d.relay.Host, d.relay.Port, err))
	}
	return &session{sc: sc, from: creds.Address, name: creds.Name}, nil
}

type session struct {
	sc   gomail.SendCloser
	from string
	name string
}

func (s *session) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return &SendError{Kind: ErrTransport, Err: err}
	}
	m := gomail.NewMessage()
	if s.name != "" {
		m.SetAddressHeader("From", s.from, s.name)
	} else {
		m.SetHeader("From", s.from)
	}
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	// SendCloser.Send keeps the relay's *textproto.Error intact, which
	// gomail.Send would flatten into a string.
	if err := s.sc.Send(s.from, []string{msg.To}, m); err != nil {
		return classifySend(err)
	}
	return nil
}

func (s *session) Close() error {
	return s.sc.Close()
}
