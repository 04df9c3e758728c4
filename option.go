package mediaflow

import (
	"github.com/sirupsen/logrus"
	"github.com/viant/mediaflow/service/dao/request"
	"github.com/viant/mediaflow/service/directory"
	"github.com/viant/mediaflow/service/mail"
	"github.com/viant/mediaflow/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises Service
type Option func(s *Service)

// WithConfig sets the configuration; nil keeps DefaultConfig
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithLogger sets the logger shared by every component
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Service) { s.logger = logger }
}

// WithStore sets the request store, overriding config.Store
func WithStore(store request.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithDirectory sets the identity directory, overriding config.Directory
func WithDirectory(dir directory.Service) Option {
	return func(s *Service) { s.directory = dir }
}

// WithMailSender sets the mail transport, overriding config.Mail
func WithMailSender(sender mail.Sender) Option {
	return func(s *Service) { s.sender = sender }
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The function is
// safe to call multiple times – the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter, for example
// OTLP, Jaeger or Zipkin. The first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
