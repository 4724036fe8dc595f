package contact_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"towing-contact/api/services/contact"
)

func newTestForm(t *testing.T, client *mockEmailClient, relay contact.RelayConfig) (*contact.Form, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	f, err := contact.NewForm(client, relay, contact.WithAfterFunc(clock.AfterFunc))
	require.NoError(t, err)
	return f, clock
}

func TestNewForm_NilClient(t *testing.T) {
	_, err := contact.NewForm(nil, fullRelay)
	assert.Error(t, err)

	_, err = contact.NewFactory(nil, fullRelay)
	assert.Error(t, err)
}

func TestForm_StartsEmpty(t *testing.T) {
	t.Parallel()
	f, _ := newTestForm(t, &mockEmailClient{}, fullRelay)

	state := f.State()
	assert.True(t, state.Fields.IsZero())
	assert.Equal(t, contact.StatusIdle, state.Status.Status)
	assert.Equal(t, "Pošaljite poruku", state.Status.Label)
}

func TestForm_SubmitSuccess(t *testing.T) {
	t.Parallel()
	client := &mockEmailClient{}
	f, clock := newTestForm(t, client, fullRelay)
	require.NoError(t, fill(f, validFields()))

	out, err := f.Submit(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, out.SubmissionID)
	assert.Equal(t, contact.StatusSuccess, out.Status.Status)
	assert.Equal(t, "Poruka je uspešno poslata!", out.Status.Label)

	assert.True(t, f.Fields().IsZero(), "fields should be cleared after success")

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "service_abc", calls[0].ServiceID)
	assert.Equal(t, "template_xyz", calls[0].TemplateID)
	assert.Equal(t, "user_123", calls[0].UserID)
	assert.Equal(t, validFields().TemplateParams(), calls[0].Params)

	timer := clock.Last()
	require.NotNil(t, timer)
	assert.Equal(t, contact.DefaultResetDelay, timer.delay)
	timer.Fire()
	assert.Equal(t, "Pošaljite poruku", f.Snapshot().Label)
}

func TestForm_SubmitFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		relay     contact.RelayConfig
		sendErr   error
		wantCalls int
		wantErr   error
	}{
		{
			name:      "provider rejects",
			relay:     fullRelay,
			sendErr:   errors.New("EmailJS returned 400: The service ID is invalid"),
			wantCalls: 1,
		},
		{
			name:    "missing service id",
			relay:   contact.RelayConfig{TemplateID: "t", UserID: "u"},
			wantErr: contact.ErrMissingConfig,
		},
		{
			name:    "missing template id",
			relay:   contact.RelayConfig{ServiceID: "s", UserID: "u"},
			wantErr: contact.ErrMissingConfig,
		},
		{
			name:    "missing account id",
			relay:   contact.RelayConfig{ServiceID: "s", TemplateID: "t"},
			wantErr: contact.ErrMissingConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := &mockEmailClient{err: tt.sendErr}
			f, clock := newTestForm(t, client, tt.relay)
			require.NoError(t, fill(f, validFields()))

			out, err := f.Submit(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, contact.ErrSubmissionFailed)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			assert.Len(t, client.Calls(), tt.wantCalls)
			assert.Equal(t, contact.StatusError, out.Status.Status)
			assert.Equal(t, "Došlo je do greške", out.Status.Label)
			assert.Equal(t, validFields(), f.Fields(), "fields must be kept after a failure")

			timer := clock.Last()
			require.NotNil(t, timer)
			assert.Equal(t, contact.DefaultResetDelay, timer.delay)
			timer.Fire()
			assert.Equal(t, contact.StatusIdle, f.Snapshot().Status)

			// The form stays usable after a failure.
			require.NoError(t, f.Change(contact.FieldMessage, "Drugi pokušaj"))
		})
	}
}

func TestForm_SubmitInvalidNeverReachesRelay(t *testing.T) {
	t.Parallel()
	client := &mockEmailClient{}
	f, clock := newTestForm(t, client, fullRelay)

	want := validFields()
	want.Message = ""
	require.NoError(t, fill(f, want))

	out, err := f.Submit(context.Background())
	var verrs contact.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.True(t, verrs.Has(contact.FieldMessage))
	assert.NotErrorIs(t, err, contact.ErrSubmissionFailed)

	assert.Equal(t, contact.StatusIdle, out.Status.Status, "no status transition on a blocked submit")
	assert.Empty(t, client.Calls())
	assert.Zero(t, clock.Len())
	assert.Equal(t, want, f.Fields())
}

func TestForm_SendingBeforeRelaySettles(t *testing.T) {
	t.Parallel()
	client := &mockEmailClient{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	f, _ := newTestForm(t, client, fullRelay)
	require.NoError(t, fill(f, validFields()))

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(context.Background())
		done <- err
	}()

	<-client.entered
	snap := f.Snapshot()
	assert.Equal(t, contact.StatusSending, snap.Status)
	assert.Equal(t, "Slanje...", snap.Label)
	assert.True(t, snap.Disabled)

	// A second submit while sending is rejected without another call.
	_, err := f.Submit(context.Background())
	assert.ErrorIs(t, err, contact.ErrInFlight)

	close(client.release)
	require.NoError(t, <-done)
	assert.Len(t, client.Calls(), 1)
	assert.Equal(t, contact.StatusSuccess, f.Snapshot().Status)
}

func TestForm_RelayIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()
	client := &mockEmailClient{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	f, _ := newTestForm(t, client, fullRelay)
	require.NoError(t, fill(f, validFields()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(ctx)
		done <- err
	}()

	<-client.entered
	cancel()
	close(client.release)

	require.NoError(t, <-done)
	client.mu.Lock()
	defer client.mu.Unlock()
	assert.NoError(t, client.ctxErr, "relay context should not inherit caller cancellation")
}

func TestForm_RelayTimeout(t *testing.T) {
	t.Parallel()
	client := &mockEmailClient{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	relay := fullRelay
	relay.Timeout = time.Millisecond
	f, _ := newTestForm(t, client, relay)
	require.NoError(t, fill(f, validFields()))

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(context.Background())
		done <- err
	}()

	<-client.entered
	time.Sleep(50 * time.Millisecond)
	close(client.release)
	require.NoError(t, <-done)

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.ErrorIs(t, client.ctxErr, context.DeadlineExceeded)
}

func TestForm_ApplyIsAllOrNothing(t *testing.T) {
	t.Parallel()
	f, _ := newTestForm(t, &mockEmailClient{}, fullRelay)
	require.NoError(t, f.Change(contact.FieldMessage, "Stara poruka"))
	before := f.Fields()

	err := f.Apply(
		contact.Change{Field: contact.FieldName, Value: "Petar"},
		contact.Change{Field: contact.FieldEmail, Value: "petar@example.com"},
		contact.Change{Field: contact.FieldServiceType, Value: "helicopter"},
		contact.Change{Field: contact.FieldMessage, Value: "Nova poruka"},
	)
	assert.ErrorIs(t, err, contact.ErrUnknownServiceType)
	assert.Equal(t, before, f.Fields(), "a rejected batch must not change any field")

	require.NoError(t, f.Apply(
		contact.Change{Field: contact.FieldName, Value: "Petar"},
		contact.Change{Field: contact.FieldServiceType, Value: string(contact.ServiceVehicleRecovery)},
	))
	want := before
	want.Name = "Petar"
	want.ServiceType = contact.ServiceVehicleRecovery
	assert.Equal(t, want, f.Fields())
}

func TestForm_SelectServiceLeavesOtherFields(t *testing.T) {
	t.Parallel()
	f, _ := newTestForm(t, &mockEmailClient{}, fullRelay)
	start := validFields()
	start.ServiceType = contact.ServiceUnset
	require.NoError(t, fill(f, start))

	for _, opt := range contact.ServiceTypes() {
		require.NoError(t, f.SelectService(opt.Value))
		want := start
		want.ServiceType = opt.Value
		assert.Equal(t, want, f.Fields())
		assert.Equal(t, contact.StatusIdle, f.Snapshot().Status)
	}

	assert.ErrorIs(t, f.SelectService("helicopter"), contact.ErrUnknownServiceType)
}

func TestFactory_NewFormsAreIndependent(t *testing.T) {
	t.Parallel()
	fc, err := contact.NewFactory(&mockEmailClient{}, fullRelay)
	require.NoError(t, err)

	a, b := fc.New(), fc.New()
	require.NoError(t, a.Change(contact.FieldName, "Ana"))
	assert.Equal(t, "Ana", a.Fields().Name)
	assert.Empty(t, b.Fields().Name)
}
