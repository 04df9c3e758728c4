// Package smtp relays messages to an SMTP server. Credentials are revealed
// through scy from an encrypted resource.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"reflect"
	"strconv"
	"time"

	"github.com/viant/mediaflow/internal/clock"
	"github.com/viant/mediaflow/service/mail"
	"github.com/viant/scy"
	"github.com/viant/scy/cred"
)

// Config describes the relay
type Config struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	From     string `json:"from" yaml:"from"`
	FromName string `json:"fromName" yaml:"fromName"`
	// EnableTLS requires the session to be upgraded with STARTTLS
	EnableTLS bool `json:"enableTLS" yaml:"enableTLS"`
	// CredentialsURL points at a scy-encrypted basic credential, empty for no auth
	CredentialsURL string `json:"credentialsURL,omitempty" yaml:"credentialsURL,omitempty"`
	// Key is the scy key, e.g. blowfish://default
	Key string `json:"key,omitempty" yaml:"key,omitempty"`
}

// ErrTLSUnavailable is returned when TLS is required but the server does not offer STARTTLS
var ErrTLSUnavailable = errors.New("smtp: server does not offer STARTTLS")

// Credentials resolves the user name and password used for PLAIN auth
type Credentials func(ctx context.Context) (user, password string, err error)

// Sender relays messages over SMTP
type Sender struct {
	config      Config
	credentials Credentials
	dialer      net.Dialer
}

var _ mail.Sender = (*Sender)(nil)

// Option customises Sender
type Option func(s *Sender)

// WithCredentials overrides credential resolution
func WithCredentials(credentials Credentials) Option {
	return func(s *Sender) { s.credentials = credentials }
}

// New creates an SMTP sender
func New(config Config, options ...Option) (*Sender, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if config.Port == 0 {
		config.Port = 587
	}
	ret := &Sender{config: config}
	if config.CredentialsURL != "" {
		ret.credentials = scyCredentials(scy.New(), config.CredentialsURL, config.Key)
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret, nil
}

func scyCredentials(service *scy.Service, URL, key string) Credentials {
	return func(ctx context.Context) (string, string, error) {
		resource := scy.NewResource(reflect.TypeOf(cred.Basic{}), URL, key)
		secret, err := service.Load(ctx, resource)
		if err != nil {
			return "", "", fmt.Errorf("failed to load smtp credentials from %s: %w", URL, err)
		}
		basic, ok := secret.Target.(*cred.Basic)
		if !ok {
			return "", "", fmt.Errorf("unexpected smtp credential type %T", secret.Target)
		}
		return basic.Username, basic.Password, nil
	}
}

// Send delivers one message; ctx bounds the whole SMTP session
func (s *Sender) Send(ctx context.Context, to, subject, htmlBody string) error {
	message := &mail.Message{From: s.config.From, FromName: s.config.FromName, To: to, Subject: subject, HTMLBody: htmlBody, Date: clock.Now()}
	if err := message.Validate(); err != nil {
		return err
	}
	address := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	conn, err := s.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(time.Minute))
	}
	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to start smtp session: %w", err)
	}
	defer client.Close()
	if err = s.deliver(ctx, client, message); err != nil {
		return err
	}
	return client.Quit()
}

func (s *Sender) deliver(ctx context.Context, client *smtp.Client, message *mail.Message) error {
	if s.config.EnableTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("%w: %s", ErrTLSUnavailable, s.config.Host)
		}
		if err := client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			return fmt.Errorf("starttls failed: %w", err)
		}
	}
	if s.credentials != nil {
		user, password, err := s.credentials(ctx)
		if err != nil {
			return err
		}
		if err = client.Auth(smtp.PlainAuth("", user, password, s.config.Host)); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}
	if err := client.Mail(message.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(message.To); err != nil {
		return fmt.Errorf("smtp RCPT TO %s failed: %w", message.To, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err = w.Write(message.Bytes()); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("smtp DATA rejected: %w", err)
	}
	return nil
}
