// Package fs provides a pickup-folder mail transport: every message is
// written as an .eml file to a folder URL instead of being relayed.
package fs

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/mediaflow/internal/clock"
	"github.com/viant/mediaflow/internal/idgen"
	"github.com/viant/mediaflow/service/mail"
)

// Sender writes messages to a pickup folder
type Sender struct {
	fs       afs.Service
	baseURL  string
	from     string
	fromName string
}

var _ mail.Sender = (*Sender)(nil)

// New creates a pickup-folder sender; baseURL may be a local path or any afs URL
func New(ctx context.Context, fs afs.Service, baseURL, from, fromName string) (*Sender, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("pickup folder cannot be empty")
	}
	if url.Scheme(baseURL, "") == "" {
		baseURL = url.Normalize(baseURL, file.Scheme)
	}
	exists, _ := fs.Exists(ctx, baseURL)
	if !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create pickup folder: %w", err)
		}
	}
	return &Sender{fs: fs, baseURL: baseURL, from: from, fromName: fromName}, nil
}

// Send writes one message file
func (s *Sender) Send(ctx context.Context, to, subject, htmlBody string) error {
	message := &mail.Message{From: s.from, FromName: s.fromName, To: to, Subject: subject, HTMLBody: htmlBody, Date: clock.Now()}
	if err := message.Validate(); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%s.eml", message.Date.Format("20060102T150405.000"), idgen.New())
	location := url.Join(s.baseURL, name)
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(message.Bytes())); err != nil {
		return fmt.Errorf("failed to write message %s: %w", path.Base(location), err)
	}
	return nil
}
