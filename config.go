package mediaflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/viant/afs"
	"github.com/viant/mediaflow/service/dao/request"
	"github.com/viant/mediaflow/service/mail"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MEDIAFLOW_STORE_VENDOR
const EnvPrefix = "MEDIAFLOW_"

// Config is a serialisable representation of the service configuration. It
// can be populated from YAML, JSON or environment variables. The zero-value
// of every section inherits its package defaults.
type Config struct {
	Store     StoreConfig     `json:"store" yaml:"store" envPrefix:"STORE_"`
	Directory DirectoryConfig `json:"directory" yaml:"directory" envPrefix:"DIRECTORY_"`
	Mail      MailConfig      `json:"mail" yaml:"mail" envPrefix:"MAIL_"`
	Notify    NotifyConfig    `json:"notify" yaml:"notify" envPrefix:"NOTIFY_"`
	Workflow  WorkflowConfig  `json:"workflow" yaml:"workflow" envPrefix:"WORKFLOW_"`
	Tracing   TracingConfig   `json:"tracing" yaml:"tracing" envPrefix:"TRACING_"`
}

// StoreConfig selects the request store
type StoreConfig struct {
	// Vendor is memory, fs or sqlite
	Vendor request.Vendor `json:"vendor" yaml:"vendor" env:"VENDOR"`
	// URL is the fs base folder or the sqlite database path
	URL string `json:"url,omitempty" yaml:"url,omitempty" env:"URL"`
}

// DirectoryConfig locates the identity directory seed
type DirectoryConfig struct {
	// URL of a YAML users file; empty uses the built-in development directory
	URL string `json:"url,omitempty" yaml:"url,omitempty" env:"URL"`
}

// MailConfig selects and configures the mail transport
type MailConfig struct {
	// Vendor is smtp, fs or memory
	Vendor    mail.Vendor `json:"vendor" yaml:"vendor" env:"VENDOR"`
	Host      string      `json:"host,omitempty" yaml:"host,omitempty" env:"HOST"`
	Port      int         `json:"port,omitempty" yaml:"port,omitempty" env:"PORT"`
	EnableTLS bool        `json:"enableTLS,omitempty" yaml:"enableTLS,omitempty" env:"ENABLE_TLS"`
	From      string      `json:"from" yaml:"from" env:"FROM"`
	FromName  string      `json:"fromName,omitempty" yaml:"fromName,omitempty" env:"FROM_NAME"`
	// PickupURL is the folder written by the fs vendor
	PickupURL      string `json:"pickupURL,omitempty" yaml:"pickupURL,omitempty" env:"PICKUP_URL"`
	CredentialsURL string `json:"credentialsURL,omitempty" yaml:"credentialsURL,omitempty" env:"CREDENTIALS_URL"`
	Key            string `json:"key,omitempty" yaml:"key,omitempty" env:"KEY"`
}

// NotifyConfig controls message links, recipients and delivery mode
type NotifyConfig struct {
	BaseURL          string        `json:"baseURL" yaml:"baseURL" env:"BASE_URL"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT"`
	SecurityGroup    string        `json:"securityGroup" yaml:"securityGroup" env:"SECURITY_GROUP"`
	ITGroup          string        `json:"itGroup" yaml:"itGroup" env:"IT_GROUP"`
	GroupActionLinks bool          `json:"groupActionLinks" yaml:"groupActionLinks" env:"GROUP_ACTION_LINKS"`
	// Async dispatches through a queue worker instead of inline
	Async       bool `json:"async" yaml:"async" env:"ASYNC"`
	QueueBuffer int  `json:"queueBuffer" yaml:"queueBuffer" env:"QUEUE_BUFFER"`
}

// WorkflowConfig controls request numbering and email tokens
type WorkflowConfig struct {
	TokenTTL      time.Duration `json:"tokenTTL" yaml:"tokenTTL" env:"TOKEN_TTL"`
	RequestPrefix string        `json:"requestPrefix" yaml:"requestPrefix" env:"REQUEST_PREFIX"`
}

// TracingConfig enables the stdout span exporter
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	ServiceName string `json:"serviceName" yaml:"serviceName" env:"SERVICE_NAME"`
	OutputFile  string `json:"outputFile,omitempty" yaml:"outputFile,omitempty" env:"OUTPUT_FILE"`
}

// DefaultConfig returns a Config suitable for local development: memory
// storage, the built-in directory and a recording mail transport.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{Vendor: request.VendorMemory},
		Mail:  MailConfig{Vendor: mail.VendorMemory, From: "noreply@localhost", FromName: "Media Access Portal"},
		Notify: NotifyConfig{
			BaseURL:       "http://localhost:8080",
			Timeout:       5 * time.Second,
			SecurityGroup: "RM_Security",
			ITGroup:       "RM_ITAdmins",
			QueueBuffer:   100,
		},
		Workflow: WorkflowConfig{TokenTTL: 48 * time.Hour, RequestPrefix: "RM"},
		Tracing:  TracingConfig{ServiceName: "mediaflow"},
	}
}

// LoadConfig reads a YAML document from URL over DefaultConfig and applies
// MEDIAFLOW_* environment overrides. An empty URL only applies the overrides.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	ret := DefaultConfig()
	if URL != "" {
		data, err := afs.New().DownloadWithURL(ctx, URL)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", URL, err)
		}
		if err = yaml.Unmarshal(data, ret); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", URL, err)
		}
	}
	if err := env.ParseWithOptions(ret, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return ret, ret.Validate()
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	switch c.Store.Vendor {
	case request.VendorMemory:
	case request.VendorFS, request.VendorSQLite:
		if c.Store.URL == "" {
			errs = append(errs, fmt.Errorf("store.url is required for %s", c.Store.Vendor))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported store.vendor %q", c.Store.Vendor))
	}
	switch c.Mail.Vendor {
	case mail.VendorMemory:
	case mail.VendorFS:
		if c.Mail.PickupURL == "" {
			errs = append(errs, fmt.Errorf("mail.pickupURL is required for %s", c.Mail.Vendor))
		}
	case mail.VendorSMTP:
		if c.Mail.Host == "" {
			errs = append(errs, fmt.Errorf("mail.host is required for %s", c.Mail.Vendor))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported mail.vendor %q", c.Mail.Vendor))
	}
	if c.Mail.From == "" {
		errs = append(errs, fmt.Errorf("mail.from is required"))
	}
	if c.Notify.Timeout < 0 {
		errs = append(errs, fmt.Errorf("notify.timeout must be >= 0"))
	}
	if c.Notify.Async && c.Notify.QueueBuffer <= 0 {
		errs = append(errs, fmt.Errorf("notify.queueBuffer must be > 0 when async"))
	}
	if c.Workflow.TokenTTL < 0 {
		errs = append(errs, fmt.Errorf("workflow.tokenTTL must be >= 0"))
	}
	return errors.Join(errs...)
}
