package mediaflow

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"github.com/viant/mediaflow/service/dao/request"
	rfs "github.com/viant/mediaflow/service/dao/request/fs"
	rmemory "github.com/viant/mediaflow/service/dao/request/memory"
	"github.com/viant/mediaflow/service/dao/request/sqlite"
	"github.com/viant/mediaflow/service/directory"
	dmemory "github.com/viant/mediaflow/service/directory/memory"
	"github.com/viant/mediaflow/service/emailaction"
	"github.com/viant/mediaflow/service/mail"
	mfs "github.com/viant/mediaflow/service/mail/fs"
	mmemory "github.com/viant/mediaflow/service/mail/memory"
	"github.com/viant/mediaflow/service/mail/smtp"
	qmemory "github.com/viant/mediaflow/service/messaging/memory"
	"github.com/viant/mediaflow/service/notify"
	"github.com/viant/mediaflow/service/workflow"
	"github.com/viant/mediaflow/tracing"
)

// Version is reported as the tracing service version
const Version = "0.1.0"

// Service wires storage, directory, mail and the workflow engine together
type Service struct {
	config    *Config
	logger    *logrus.Entry
	store     request.Store
	directory directory.Service
	sender    mail.Sender
	runtime   *Runtime
}

// New creates a service. Components not supplied through options are built
// from the configuration.
func New(ctx context.Context, options ...Option) (*Service, error) {
	ret := &Service{config: DefaultConfig()}
	if err := ret.init(ctx, options); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Service) init(ctx context.Context, options []Option) error {
	for _, option := range options {
		option(s)
	}
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if s.logger == nil {
		s.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if tracingConfig := s.config.Tracing; tracingConfig.Enabled {
		if err := tracing.Init(tracingConfig.ServiceName, Version, tracingConfig.OutputFile); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
	}
	if err := s.ensureBaseSetup(ctx); err != nil {
		return err
	}

	issuer := emailaction.NewIssuer(s.store, emailaction.Config{BaseURL: s.config.Notify.BaseURL, TTL: s.config.Workflow.TokenTTL})
	dispatcher := notify.New(s.directory, s.sender,
		notify.WithConfig(s.notifyConfig()),
		notify.WithLinkIssuer(issuer),
		notify.WithLogger(s.logger.WithField("component", "notify")))

	s.runtime = &Runtime{store: s.store, dispatcher: dispatcher}
	var notifier notify.Notifier = dispatcher
	if s.config.Notify.Async {
		queueConfig := qmemory.DefaultConfig()
		queueConfig.QueueBuffer = s.config.Notify.QueueBuffer
		s.runtime.queue = qmemory.NewQueue[notify.Job](queueConfig)
		s.runtime.worker = notify.NewWorker(s.runtime.queue, dispatcher, s.logger.WithField("component", "notify.worker"))
		notifier = notify.NewPublisher(s.runtime.queue, s.config.Notify.Timeout, s.logger.WithField("component", "notify"))
	}
	s.runtime.workflow = workflow.New(s.store,
		workflow.WithNotifier(notifier),
		workflow.WithDirectory(s.directory),
		workflow.WithLogger(s.logger.WithField("component", "workflow")),
		workflow.WithRequestPrefix(s.config.Workflow.RequestPrefix))
	s.runtime.actions = emailaction.New(s.runtime.workflow, emailaction.WithLogger(s.logger.WithField("component", "emailaction")))
	return nil
}

func (s *Service) notifyConfig() notify.Config {
	ret := notify.DefaultConfig()
	config := s.config.Notify
	if config.BaseURL != "" {
		ret.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		ret.Timeout = config.Timeout
	}
	if config.SecurityGroup != "" {
		ret.SecurityGroup = config.SecurityGroup
	}
	if config.ITGroup != "" {
		ret.ITGroup = config.ITGroup
	}
	ret.GroupActionLinks = config.GroupActionLinks
	return ret
}

func (s *Service) ensureBaseSetup(ctx context.Context) error {
	var err error
	if s.store == nil {
		if s.store, err = s.newStore(ctx); err != nil {
			return err
		}
	}
	if s.directory == nil {
		if URL := s.config.Directory.URL; URL != "" {
			if s.directory, err = dmemory.Load(ctx, afs.New(), URL); err != nil {
				return err
			}
		} else {
			s.directory = dmemory.Default()
		}
	}
	if s.sender == nil {
		if s.sender, err = s.newSender(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) newStore(ctx context.Context) (request.Store, error) {
	config := s.config.Store
	switch config.Vendor {
	case request.VendorFS:
		return rfs.New(ctx, config.URL)
	case request.VendorSQLite:
		return sqlite.Open(ctx, config.URL)
	case request.VendorMemory, "":
		return rmemory.New(), nil
	}
	return nil, fmt.Errorf("unsupported store vendor: %s", config.Vendor)
}

func (s *Service) newSender(ctx context.Context) (mail.Sender, error) {
	config := s.config.Mail
	switch config.Vendor {
	case mail.VendorSMTP:
		return smtp.New(smtp.Config{
			Host:           config.Host,
			Port:           config.Port,
			From:           config.From,
			FromName:       config.FromName,
			EnableTLS:      config.EnableTLS,
			CredentialsURL: config.CredentialsURL,
			Key:            config.Key,
		})
	case mail.VendorFS:
		return mfs.New(ctx, afs.New(), config.PickupURL, config.From, config.FromName)
	case mail.VendorMemory, "":
		return mmemory.New(config.From), nil
	}
	return nil, fmt.Errorf("unsupported mail vendor: %s", config.Vendor)
}

// Runtime returns the operations facade
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration
func (s *Service) Config() *Config {
	return s.config
}

// Sender returns the mail transport in use
func (s *Service) Sender() mail.Sender {
	return s.sender
}

// Directory returns the identity directory in use
func (s *Service) Directory() directory.Service {
	return s.directory
}

// Close stops the runtime and releases the store when it holds resources
func (s *Service) Close(ctx context.Context) error {
	if err := s.runtime.Shutdown(ctx); err != nil {
		return err
	}
	if closer, ok := s.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
