// Package notify maps completed transitions onto outbound mail. Delivery is
// best effort: every recipient is attempted independently, failures are
// logged and reported, and nothing here can undo a transition.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/viant/mediaflow/internal/metrics"
	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/directory"
	"github.com/viant/mediaflow/service/mail"
	"github.com/viant/mediaflow/tracing"
)

// Notifier accepts events once their transition is durable
type Notifier interface {
	Notify(ctx context.Context, event Event) *Report
}

// LinkIssuer issues email action links for a stage decision on a request
type LinkIssuer interface {
	Issue(ctx context.Context, requestID int64, stage model.Stage) (*model.ActionLinks, error)
}

// Config controls recipients and message links
type Config struct {
	// BaseURL prefixes every link placed in a message
	BaseURL string `json:"baseURL" yaml:"baseURL"`
	// Timeout bounds a single send
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
	SecurityGroup string        `json:"securityGroup" yaml:"securityGroup"`
	ITGroup       string        `json:"itGroup" yaml:"itGroup"`
	// GroupActionLinks adds approve/reject links to security and IT messages
	GroupActionLinks bool `json:"groupActionLinks" yaml:"groupActionLinks"`
}

// DefaultConfig returns the default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://localhost:8080",
		Timeout:       5 * time.Second,
		SecurityGroup: string(model.RoleSecurity),
		ITGroup:       string(model.RoleITAdmin),
	}
}

// Delivery is the outcome of one recipient
type Delivery struct {
	Recipient string `json:"recipient,omitempty"`
	Principal string `json:"principal,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Err       error  `json:"-"`
}

// Report collects the per-recipient outcomes of one event
type Report struct {
	Event      Kind        `json:"event"`
	Request    string      `json:"request"`
	Queued     bool        `json:"queued,omitempty"`
	Deliveries []*Delivery `json:"deliveries,omitempty"`
}

// Sent returns the number of successful deliveries
func (r *Report) Sent() int {
	count := 0
	for _, delivery := range r.Deliveries {
		if !delivery.Skipped && delivery.Err == nil {
			count++
		}
	}
	return count
}

// Failed returns the failed deliveries
func (r *Report) Failed() []*Delivery {
	var ret []*Delivery
	for _, delivery := range r.Deliveries {
		if delivery.Err != nil {
			ret = append(ret, delivery)
		}
	}
	return ret
}

// Skipped returns deliveries that were not attempted
func (r *Report) Skipped() []*Delivery {
	var ret []*Delivery
	for _, delivery := range r.Deliveries {
		if delivery.Skipped {
			ret = append(ret, delivery)
		}
	}
	return ret
}

// Dispatcher resolves recipients and sends messages synchronously
type Dispatcher struct {
	config    Config
	directory directory.Service
	sender    mail.Sender
	issuer    LinkIssuer
	links     links
	logger    *logrus.Entry
}

var _ Notifier = (*Dispatcher)(nil)

// Option customises Dispatcher
type Option func(d *Dispatcher)

// WithConfig sets the configuration
func WithConfig(config Config) Option {
	return func(d *Dispatcher) { d.config = config }
}

// WithLinkIssuer enables approve/reject links in stage review messages
func WithLinkIssuer(issuer LinkIssuer) Option {
	return func(d *Dispatcher) { d.issuer = issuer }
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Entry) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// New creates a dispatcher
func New(dir directory.Service, sender mail.Sender, options ...Option) *Dispatcher {
	ret := &Dispatcher{
		config:    DefaultConfig(),
		directory: dir,
		sender:    sender,
		logger:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.config.Timeout <= 0 {
		ret.config.Timeout = DefaultConfig().Timeout
	}
	ret.links = links{baseURL: strings.TrimRight(ret.config.BaseURL, "/")}
	return ret
}

// Notify fans event out to its recipients; it never fails as a whole
func (d *Dispatcher) Notify(ctx context.Context, event Event) *Report {
	r := event.Request()
	report := &Report{Event: event.Kind(), Request: r.Number}
	ctx, span := tracing.StartSpan(ctx, "notify."+string(event.Kind()), "PRODUCER")
	span.WithAttributes(map[string]string{"request": r.Number})
	defer func() {
		var err error
		if failed := report.Failed(); len(failed) > 0 {
			err = fmt.Errorf("%d of %d deliveries failed", len(failed), len(report.Deliveries))
		}
		tracing.EndSpan(span, err)
	}()

	switch actual := event.(type) {
	case *Submitted:
		d.toRequester(ctx, report, r, requesterSubmitted, nil)
		d.toManager(ctx, report, r)
	case *ManagerApproved:
		d.toRequester(ctx, report, r, requesterManagerApproved, nil)
		d.toGroup(ctx, report, r, d.config.SecurityGroup, model.StageSecurity, securityReview)
	case *SecurityApproved:
		d.toRequester(ctx, report, r, requesterSecurityApproved, nil)
		d.toGroup(ctx, report, r, d.config.ITGroup, model.StageIT, itAction)
	case *Completed:
		d.toRequester(ctx, report, r, requesterCompleted, nil)
	case *Rejected:
		d.toRequester(ctx, report, r, requesterRejected, func(c *content) {
			c.By = actual.By.DisplayName()
			c.Notes = strings.TrimSpace(actual.Notes)
		})
	}
	return report
}

func (d *Dispatcher) toRequester(ctx context.Context, report *Report, r *model.Request, msg *message, customize func(c *content)) {
	principal, err := d.directory.Lookup(ctx, r.CreatedBy)
	if err != nil {
		d.unresolved(report, r.CreatedBy, err)
		return
	}
	c := d.content(r, principal, d.links.details(r.ID))
	if customize != nil {
		customize(c)
	}
	d.deliver(ctx, report, principal, msg, c)
}

func (d *Dispatcher) toManager(ctx context.Context, report *Report, r *model.Request) {
	managerID, err := d.directory.ManagerOf(ctx, r.CreatedBy)
	if err != nil {
		d.unresolved(report, r.CreatedBy, err)
		return
	}
	if managerID == "" {
		d.skip(report, &Delivery{Principal: r.CreatedBy, Reason: "no manager"})
		return
	}
	manager, err := d.directory.Lookup(ctx, managerID)
	if err != nil {
		d.unresolved(report, managerID, err)
		return
	}
	requester, err := d.directory.Lookup(ctx, r.CreatedBy)
	if err != nil {
		requester = &model.Principal{ID: r.CreatedBy, DisplayName: r.Details.Name, Department: r.Details.Department}
	}
	c := d.content(r, manager, d.links.inbox(model.StageManager))
	c.Requester = requester.DisplayName
	c.Department = requester.Department
	if manager.Email != "" {
		c.Links = d.issue(ctx, report, r, model.StageManager)
		c.ApproveAs = "Approve"
	}
	d.deliver(ctx, report, manager, managerReview, c)
}

func (d *Dispatcher) toGroup(ctx context.Context, report *Report, r *model.Request, group string, stage model.Stage, msg *message) {
	members, err := d.directory.MembersOf(ctx, group)
	if err != nil {
		d.fail(report, &Delivery{Principal: group, Subject: fmt.Sprintf(msg.subject, r.Number)}, fmt.Errorf("failed to resolve group %s: %w", group, err))
		return
	}
	var actionLinks *model.ActionLinks
	if d.config.GroupActionLinks && len(members) > 0 {
		actionLinks = d.issue(ctx, report, r, stage)
	}
	for _, member := range members {
		c := d.content(r, member, d.links.inbox(stage))
		c.Links = actionLinks
		c.ApproveAs = "Approve"
		if stage == model.StageIT {
			c.ApproveAs = "Complete"
		}
		d.deliver(ctx, report, member, msg, c)
	}
}

func (d *Dispatcher) issue(ctx context.Context, report *Report, r *model.Request, stage model.Stage) *model.ActionLinks {
	if d.issuer == nil {
		return nil
	}
	ret, err := d.issuer.Issue(ctx, r.ID, stage)
	if err != nil {
		d.logger.WithFields(logrus.Fields{"request": r.Number, "event": report.Event, "stage": stage}).
			WithError(err).Warn("failed to issue email action links, falling back to inbox link")
		return nil
	}
	return ret
}

func (d *Dispatcher) content(r *model.Request, recipient *model.Principal, link string) *content {
	ret := &content{Name: recipient.DisplayName, Number: r.Number, Link: link}
	if ret.Name == "" {
		ret.Name = recipient.ID
	}
	if r.StartDate != nil {
		ret.StartDate = r.StartDate.Format(dateLayout)
	}
	if r.EndDate != nil {
		ret.EndDate = r.EndDate.Format(dateLayout)
	}
	return ret
}

func (d *Dispatcher) deliver(ctx context.Context, report *Report, recipient *model.Principal, msg *message, c *content) {
	delivery := &Delivery{Principal: recipient.ID, Recipient: recipient.Email}
	if strings.TrimSpace(recipient.Email) == "" {
		delivery.Reason = "no email"
		d.skip(report, delivery)
		return
	}
	subject, body, err := msg.render(c)
	delivery.Subject = subject
	if err != nil {
		d.fail(report, delivery, err)
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()
	started := time.Now()
	err = d.sender.Send(sendCtx, recipient.Email, subject, body)
	elapsed := time.Since(started)
	if err != nil {
		metrics.Notification(string(report.Event), "failed", elapsed)
		d.fail(report, delivery, err)
		return
	}
	metrics.Notification(string(report.Event), "sent", elapsed)
	report.Deliveries = append(report.Deliveries, delivery)
	d.logger.WithFields(logrus.Fields{"request": report.Request, "event": report.Event, "recipient": recipient.Email}).
		Debug("notification sent")
}

func (d *Dispatcher) unresolved(report *Report, principal string, err error) {
	delivery := &Delivery{Principal: principal}
	if errors.Is(err, directory.ErrUnknownPrincipal) {
		delivery.Reason = "unknown principal"
		d.skip(report, delivery)
		return
	}
	d.fail(report, delivery, fmt.Errorf("failed to resolve %s: %w", principal, err))
}

func (d *Dispatcher) skip(report *Report, delivery *Delivery) {
	delivery.Skipped = true
	report.Deliveries = append(report.Deliveries, delivery)
	metrics.Notification(string(report.Event), "skipped", 0)
	d.logger.WithFields(logrus.Fields{"request": report.Request, "event": report.Event, "recipient": delivery.Principal}).
		Warnf("notification skipped: %s", delivery.Reason)
}

func (d *Dispatcher) fail(report *Report, delivery *Delivery, err error) {
	delivery.Err = err
	report.Deliveries = append(report.Deliveries, delivery)
	recipient := delivery.Recipient
	if recipient == "" {
		recipient = delivery.Principal
	}
	d.logger.WithFields(logrus.Fields{"request": report.Request, "event": report.Event, "recipient": recipient}).
		WithError(err).Error("notification delivery failed")
}
