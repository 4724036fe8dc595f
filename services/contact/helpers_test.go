package contact_test

import (
	"context"
	"sync"
	"time"

	"towing-contact/api/pkg/clients/email"
	"towing-contact/api/services/contact"
)

// fakeTimer records a scheduled reset so tests can fire it by hand.
type fakeTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// Fire runs the callback unless the timer was stopped, like a real timer
// whose Stop won the race.
func (t *fakeTimer) Fire() {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if !stopped {
		t.fn()
	}
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) contact.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *fakeClock) Last() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return nil
	}
	return c.timers[len(c.timers)-1]
}

// mockEmailClient counts calls and can hold a send open until released.
type mockEmailClient struct {
	mu      sync.Mutex
	calls   []email.Request
	err     error
	entered chan struct{}
	release chan struct{}
	ctxErr  error
}

func (m *mockEmailClient) Send(ctx context.Context, req email.Request) (*email.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}

	m.mu.Lock()
	m.ctxErr = ctx.Err()
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	return &email.Result{DeliveryStatus: "OK", Sent: true}, nil
}

func (m *mockEmailClient) Calls() []email.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]email.Request, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ email.Client = (*mockEmailClient)(nil)

var fullRelay = contact.RelayConfig{
	ServiceID:  "service_abc",
	TemplateID: "template_xyz",
	UserID:     "user_123",
	Timeout:    5 * time.Second,
}

func validFields() contact.Fields {
	return contact.Fields{
		Name:        "Jovana Petrović",
		Email:       "jovana@example.com",
		Phone:       "+381 64 123 4567",
		ServiceType: contact.ServiceTowing,
		Message:     "Potrebna mi je vuča sa Ibarske magistrale.",
	}
}

// fill writes every field of want into the form through Change.
func fill(f *contact.Form, want contact.Fields) error {
	for _, name := range contact.FieldNames {
		v, err := want.Get(name)
		if err != nil {
			return err
		}
		if err := f.Change(name, v); err != nil {
			return err
		}
	}
	return nil
}
