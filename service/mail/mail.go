// Package mail defines the outbound mail transport used by the notification
// dispatcher, plus the message rendering shared by its implementations.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"
)

// ErrNoRecipient is returned when a message has no usable address.
var ErrNoRecipient = errors.New("mail: recipient is required")

// Vendor names a transport implementation
type Vendor string

const (
	VendorSMTP   Vendor = "smtp"
	VendorFS     Vendor = "fs"
	VendorMemory Vendor = "memory"
)

// Sender delivers a single HTML message. Delivery outcome is only used for
// logging by callers.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Message is a rendered outbound message
type Message struct {
	From     string    `json:"from"`
	FromName string    `json:"fromName,omitempty"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	HTMLBody string    `json:"htmlBody"`
	Date     time.Time `json:"date"`
}

// Validate checks addresses
func (m *Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("mail: invalid recipient %q: %w", m.To, err)
	}
	if _, err := mail.ParseAddress(m.From); err != nil {
		return fmt.Errorf("mail: invalid sender %q: %w", m.From, err)
	}
	return nil
}

// Bytes renders the message in RFC 5322 form with an HTML body
func (m *Message) Bytes() []byte {
	from := (&mail.Address{Name: m.FromName, Address: m.From}).String()
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "From: %s\r\n", from)
	fmt.Fprintf(buf, "To: %s\r\n", m.To)
	fmt.Fprintf(buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(buf, "Date: %s\r\n", m.Date.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(m.HTMLBody, "\n", "\r\n"))
	return buf.Bytes()
}
