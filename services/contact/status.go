package contact

import (
	"fmt"
	"sync"
	"time"
)

// Status is the state of the submit control.
type Status int

const (
	StatusIdle Status = iota
	StatusSending
	StatusSuccess
	StatusError
)

// DefaultResetDelay is how long the success and error labels stay up.
const DefaultResetDelay = 3 * time.Second

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSending:
		return "sending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = StatusIdle
	case "sending":
		*s = StatusSending
	case "success":
		*s = StatusSuccess
	case "error":
		*s = StatusError
	default:
		return fmt.Errorf("unknown status %q", string(b))
	}
	return nil
}

// Labels is the submit control text for each status.
type Labels struct {
	Idle    string
	Sending string
	Success string
	Error   string
}

// DefaultLabels returns the site's Serbian button texts.
func DefaultLabels() Labels {
	return Labels{
		Idle:    "Pošaljite poruku",
		Sending: "Slanje...",
		Success: "Poruka je uspešno poslata!",
		Error:   "Došlo je do greške",
	}
}

// For returns the label shown for s.
func (l Labels) For(s Status) string {
	switch s {
	case StatusSending:
		return l.Sending
	case StatusSuccess:
		return l.Success
	case StatusError:
		return l.Error
	default:
		return l.Idle
	}
}

// withDefaults fills any blank label from DefaultLabels.
func (l Labels) withDefaults() Labels {
	d := DefaultLabels()
	if l.Idle == "" {
		l.Idle = d.Idle
	}
	if l.Sending == "" {
		l.Sending = d.Sending
	}
	if l.Success == "" {
		l.Success = d.Success
	}
	if l.Error == "" {
		l.Error = d.Error
	}
	return l
}

// Timer is the part of *time.Timer the indicator uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it via RealAfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc wraps time.AfterFunc.
func RealAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Snapshot is the rendered state of the submit control.
type Snapshot struct {
	Status   Status `json:"status"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
	// ResetAfterMs is set on success and error: the label goes back to
	// idle after this many milliseconds.
	ResetAfterMs int64 `json:"resetAfterMs,omitempty"`
}

// Indicator drives the idle → sending → success|error → idle cycle.
// It is safe for concurrent use.
type Indicator struct {
	mu        sync.Mutex
	status    Status
	labels    Labels
	delay     time.Duration
	afterFunc AfterFunc
	timer     Timer
	gen       uint64

	subs    map[int]chan Snapshot
	nextSub int
}

// NewIndicator returns an idle indicator. Blank labels fall back to the
// defaults, a non-positive delay to DefaultResetDelay and a nil afterFunc
// to RealAfterFunc.
func NewIndicator(labels Labels, delay time.Duration, afterFunc AfterFunc) *Indicator {
	if delay <= 0 {
		delay = DefaultResetDelay
	}
	if afterFunc == nil {
		afterFunc = RealAfterFunc
	}
	return &Indicator{
		labels:    labels.withDefaults(),
		delay:     delay,
		afterFunc: afterFunc,
		subs:      make(map[int]chan Snapshot),
	}
}

// Begin moves to sending. It fails with ErrInFlight if a submission is
// already sending, and cancels any pending reset otherwise.
func (i *Indicator) Begin() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.status == StatusSending {
		return ErrInFlight
	}
	i.stopTimerLocked()
	i.status = StatusSending
	i.publishLocked()
	return nil
}

// Finish moves from sending to success or error and arms the reset timer.
// It does nothing unless the indicator is sending.
func (i *Indicator) Finish(ok bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.status != StatusSending {
		return
	}
	if ok {
		i.status = StatusSuccess
	} else {
		i.status = StatusError
	}

	gen := i.gen
	i.timer = i.afterFunc(i.delay, func() { i.reset(gen) })
	i.publishLocked()
}

// reset returns to idle unless a newer transition replaced the timer.
func (i *Indicator) reset(gen uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if gen != i.gen || i.status == StatusSending {
		return
	}
	i.timer = nil
	i.gen++
	i.status = StatusIdle
	i.publishLocked()
}

func (i *Indicator) stopTimerLocked() {
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	i.gen++
}

// Labels returns the texts the indicator shows.
func (i *Indicator) Labels() Labels {
	return i.labels
}

// Status returns the current status.
func (i *Indicator) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// Snapshot returns the current status and label.
func (i *Indicator) Snapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.snapshotLocked()
}

func (i *Indicator) snapshotLocked() Snapshot {
	s := Snapshot{
		Status:   i.status,
		Label:    i.labels.For(i.status),
		Disabled: i.status == StatusSending,
	}
	if i.status == StatusSuccess || i.status == StatusError {
		s.ResetAfterMs = i.delay.Milliseconds()
	}
	return s
}

// Subscribe returns a channel that receives the latest snapshot after every
// transition. Slow readers only see the most recent one. Call cancel to
// release the subscription; it closes the channel.
func (i *Indicator) Subscribe() (<-chan Snapshot, func()) {
	i.mu.Lock()
	defer i.mu.Unlock()

	id := i.nextSub
	i.nextSub++
	ch := make(chan Snapshot, 1)
	i.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			i.mu.Lock()
			defer i.mu.Unlock()
			delete(i.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (i *Indicator) publishLocked() {
	snap := i.snapshotLocked()
	for _, ch := range i.subs {
		select {
		case ch <- snap:
		default:
			// drop the stale value and keep only the newest
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
