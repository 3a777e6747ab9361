package watch

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mail-assistant/internal/model"
)

// PollState represents the current state of the polling loop.
type PollState int

const (
	PollIdle PollState = iota
	PollRunning
	PollAuthFailed
)

// String returns a short label for the status bar.
func (s PollState) String() string {
	switch s {
	case PollRunning:
		return "running"
	case PollAuthFailed:
		return "auth_failed"
	default:
		return "idle"
	}
}

// Status is a snapshot of the poller for the UI header.
type Status struct {
	State    PollState
	LastPoll time.Time
}

// NotificationMsg is a tea.Msg delivering a watcher notification to the
// Bubble Tea runtime.
type NotificationMsg struct {
	Notification model.Notification
}

// pollTimeout bounds a single poll cycle.
const pollTimeout = 30 * time.Second

// Poller drives the Watcher on a fixed interval in a background goroutine
// so mailbox latency never blocks the chat event loop. Poll invocations
// are serialized: one runs to completion before the next fires.
type Poller struct {
	watcher      *Watcher
	interval     time.Duration
	initialDelay time.Duration

	notifyCh  chan model.Notification
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu       gosync.Mutex
	running  bool
	status   Status
}

// NewPoller creates a poller for the given watcher.
func NewPoller(w *Watcher, interval, initialDelay time.Duration) *Poller {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Poller{
		watcher:      w,
		interval:     interval,
		initialDelay: initialDelay,
		notifyCh:     make(chan model.Notification, 16),
		triggerCh:    make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
}

// Start launches the polling goroutine and returns a subscription command
// that waits for the first notification.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return p.waitForNotification()
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForNotification()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false
}

// RefreshNow triggers an immediate poll without waiting for the next tick.
func (p *Poller) RefreshNow() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A poll is already pending.
	}
}

// GetStatus returns the current poll status snapshot.
func (p *Poller) GetStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// loop waits out the initial delay, then polls on every tick or manual
// trigger until stopped.
func (p *Poller) loop() {
	select {
	case <-p.stopCh:
		return
	case <-time.After(p.initialDelay):
	case <-p.triggerCh:
	}

	p.pollOnce()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pollOnce()
		case <-p.triggerCh:
			p.pollOnce()
		}
	}
}

// pollOnce runs a single watcher cycle and forwards its notification.
func (p *Poller) pollOnce() {
	p.setState(PollRunning)

	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	n := p.watcher.Poll(ctx)

	if n != nil && n.Kind == model.NotificationAuthWarning {
		p.setState(PollAuthFailed)
	} else {
		p.setState(PollIdle)
	}

	if n == nil {
		return
	}

	select {
	case p.notifyCh <- *n:
	default:
		// Drop rather than block the poll loop; the next poll
		// re-checks against the advanced head anyway.
	}
}

func (p *Poller) setState(s PollState) {
	p.mu.Lock()
	p.status.State = s
	if s == PollIdle {
		p.status.LastPoll = time.Now()
	}
	p.mu.Unlock()
}

// waitForNotification returns a tea.Cmd that blocks until the next
// notification arrives. The app re-subscribes after handling each one.
func (p *Poller) waitForNotification() tea.Cmd {
	return func() tea.Msg {
		n, ok := <-p.notifyCh
		if !ok {
			return nil
		}
		return NotificationMsg{Notification: n}
	}
}

// WaitForNext re-subscribes for the next notification. Call after
// processing a NotificationMsg.
func (p *Poller) WaitForNext() tea.Cmd {
	return p.waitForNotification()
}
