package contact

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"towing-contact/api/pkg/clients/email"
)

// RelayConfig identifies the relay service, template and account. All three
// IDs must be set for a submission to reach the provider.
type RelayConfig struct {
	ServiceID  string
	TemplateID string
	UserID     string
	// Timeout bounds a single relay call. Zero means no bound.
	Timeout time.Duration
}

// Complete reports whether every identifier is present.
func (c RelayConfig) Complete() bool {
	return c.ServiceID != "" && c.TemplateID != "" && c.UserID != ""
}

type options struct {
	labels     Labels
	resetDelay time.Duration
	afterFunc  AfterFunc
}

// Option customises a Form.
type Option func(*options)

// WithLabels overrides the submit control texts.
func WithLabels(l Labels) Option {
	return func(o *options) { o.labels = l }
}

// WithResetDelay overrides how long success and error labels stay up.
func WithResetDelay(d time.Duration) Option {
	return func(o *options) { o.resetDelay = d }
}

// WithAfterFunc replaces the timer used for the label reset.
func WithAfterFunc(f AfterFunc) Option {
	return func(o *options) { o.afterFunc = f }
}

// State is everything needed to render the form.
type State struct {
	Fields Fields   `json:"fields"`
	Status Snapshot `json:"status"`
}

// Outcome is the result of a Submit call.
type Outcome struct {
	SubmissionID string   `json:"submissionId,omitempty"`
	Status       Snapshot `json:"status"`
}

// Form is one visitor's contact form: the field record plus the submit
// control status. It is safe for concurrent use.
type Form struct {
	mu     sync.Mutex
	fields Fields

	status *Indicator
	client email.Client
	relay  RelayConfig
}

// NewForm creates an empty form that relays through client.
func NewForm(client email.Client, relay RelayConfig, opts ...Option) (*Form, error) {
	if client == nil {
		return nil, fmt.Errorf("contact: email client cannot be nil")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Form{
		status: NewIndicator(o.labels, o.resetDelay, o.afterFunc),
		client: client,
		relay:  relay,
	}, nil
}

// Change sets one field by name. The status is not affected.
func (f *Form) Change(name, value string) error {
	return f.Apply(Change{Field: name, Value: value})
}

// Apply reduces every change in order and stores the result only if all of
// them succeed; on error the record is left as it was.
func (f *Form) Apply(changes ...Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.fields
	for _, c := range changes {
		var err error
		if next, err = Reduce(next, c); err != nil {
			return err
		}
	}
	f.fields = next
	return nil
}

// SelectService sets the service type.
func (f *Form) SelectService(st ServiceType) error {
	return f.Change(FieldServiceType, string(st))
}

// Fields returns a copy of the current record.
func (f *Form) Fields() Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// Snapshot returns the submit control state.
func (f *Form) Snapshot() Snapshot {
	return f.status.Snapshot()
}

// Labels returns the submit control texts.
func (f *Form) Labels() Labels {
	return f.status.Labels()
}

// State returns fields and status together.
func (f *Form) State() State {
	return State{Fields: f.Fields(), Status: f.status.Snapshot()}
}

// Subscribe streams status snapshots; see Indicator.Subscribe.
func (f *Form) Subscribe() (<-chan Snapshot, func()) {
	return f.status.Subscribe()
}

// Submit validates the record and relays it.
//
// A record that fails validation returns ValidationErrors without touching
// the status. Otherwise the status moves to sending before the relay is
// called; a second Submit during that window gets ErrInFlight. On success
// the record is cleared and the status is success. On any failure,
// including missing relay configuration, the record is kept, the status is
// error and the returned error wraps ErrSubmissionFailed. Both labels revert
// to idle after the reset delay.
//
// The relay call ignores cancellation of ctx: once started it runs until
// the provider answers or the relay timeout expires.
func (f *Form) Submit(ctx context.Context) (Outcome, error) {
	fields := f.Fields()
	if err := fields.Validate(); err != nil {
		return Outcome{Status: f.status.Snapshot()}, err
	}

	if err := f.status.Begin(); err != nil {
		return Outcome{Status: f.status.Snapshot()}, err
	}

	id := uuid.NewString()
	slog.Debug("submitting contact form", "submissionId", id, "serviceType", fields.ServiceType)

	if err := f.send(ctx, fields); err != nil {
		slog.Error("error sending email", "submissionId", id, "error", err)
		f.status.Finish(false)
		return Outcome{SubmissionID: id, Status: f.status.Snapshot()},
			fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	f.mu.Lock()
	f.fields = Fields{}
	f.mu.Unlock()
	f.status.Finish(true)

	slog.Info("contact form sent", "submissionId", id)
	return Outcome{SubmissionID: id, Status: f.status.Snapshot()}, nil
}

func (f *Form) send(ctx context.Context, fields Fields) error {
	if !f.relay.Complete() {
		return ErrMissingConfig
	}

	ctx = context.WithoutCancel(ctx)
	if f.relay.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.relay.Timeout)
		defer cancel()
	}

	_, err := f.client.Send(ctx, email.Request{
		ServiceID:  f.relay.ServiceID,
		TemplateID: f.relay.TemplateID,
		UserID:     f.relay.UserID,
		Params:     fields.TemplateParams(),
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Factory builds forms that share a client and relay configuration.
type Factory struct {
	client email.Client
	relay  RelayConfig
	opts   []Option
}

// NewFactory checks the client once so New cannot fail.
func NewFactory(client email.Client, relay RelayConfig, opts ...Option) (*Factory, error) {
	if client == nil {
		return nil, fmt.Errorf("contact: email client cannot be nil")
	}
	return &Factory{client: client, relay: relay, opts: opts}, nil
}

// New returns a fresh empty form.
func (fc *Factory) New() *Form {
	f, _ := NewForm(fc.client, fc.relay, fc.opts...)
	return f
}
