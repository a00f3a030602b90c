// Package whatsapp tracks the connection lifecycle of Evolution API
// instances: a per-instance state machine driven by polling, with QR code
// refresh while a pairing is in progress.
package whatsapp

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pedrofnts/konver-app-sub001/internal/evolution"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Gateway is the slice of the Evolution client the monitor drives.
type Gateway interface {
	Connect(ctx context.Context, instanceName string) (*evolution.QRCode, error)
	ConnectionState(ctx context.Context, instanceName string) (string, error)
	Logout(ctx context.Context, instanceName string) error
	DeleteInstance(ctx context.Context, instanceName string) error
}

// Intervals tune the polling cadence. Zero values fall back to defaults.
type Intervals struct {
	PollConnecting time.Duration // status poll while pairing
	PollConnected  time.Duration // status poll once linked
	QRCheck        time.Duration // how often QR age is inspected
	QRTTL          time.Duration // QR lifetime before a refresh
}

func DefaultIntervals() Intervals {
	return Intervals{
		PollConnecting: 3 * time.Second,
		PollConnected:  30 * time.Second,
		QRCheck:        5 * time.Second,
		QRTTL:          20 * time.Second,
	}
}

func (i Intervals) withDefaults() Intervals {
	def := DefaultIntervals()
	if i.PollConnecting <= 0 {
		i.PollConnecting = def.PollConnecting
	}
	if i.PollConnected <= 0 {
		i.PollConnected = def.PollConnected
	}
	if i.QRCheck <= 0 {
		i.QRCheck = def.QRCheck
	}
	if i.QRTTL <= 0 {
		i.QRTTL = def.QRTTL
	}
	return i
}

// After this many consecutive QR refresh failures automatic refresh stops
// and the user is told to reconnect manually.
const maxQRRefreshFailures = 3

// NotifyFunc receives user-facing connection notices.
type NotifyFunc func(instanceName, message string)

// Monitor owns the connection state of one instance. All transitions
// happen through explicit actions (Connect, Disconnect, DeleteInstance)
// or poll results; there is no server-push channel. While disconnected no
// polling runs at all.
type Monitor struct {
	gateway   Gateway
	instance  string
	intervals Intervals
	notify    NotifyFunc

	mu             sync.Mutex
	state          State
	qr             *evolution.QRCode
	qrFailures     int
	refreshStopped bool
	cancel         context.CancelFunc
}

func NewMonitor(gateway Gateway, instanceName string, intervals Intervals, notify NotifyFunc) *Monitor {
	if notify == nil {
		notify = func(instanceName, message string) {
			log.Printf("whatsapp instance %s: %s", instanceName, message)
		}
	}
	return &Monitor{
		gateway:   gateway,
		instance:  instanceName,
		intervals: intervals.withDefaults(),
		notify:    notify,
		state:     StateDisconnected,
	}
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// QR returns the current pairing code, or nil outside the connecting state.
func (m *Monitor) QR() *evolution.QRCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.qr
}

// Connect starts a pairing session and the polling loop. Calling it while
// already connecting or connected just returns the current QR code.
func (m *Monitor) Connect(ctx context.Context) (*evolution.QRCode, error) {
	m.mu.Lock()
	if m.state != StateDisconnected {
		qr := m.qr
		m.mu.Unlock()
		return qr, nil
	}
	m.mu.Unlock()

	qr, err := m.gateway.Connect(ctx, m.instance)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.state = StateConnecting
	m.qr = qr
	m.qrFailures = 0
	m.refreshStopped = false

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.loop(loopCtx)

	return qr, nil
}

// Disconnect logs the instance out and suspends polling.
func (m *Monitor) Disconnect(ctx context.Context) error {
	if err := m.gateway.Logout(ctx, m.instance); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.state = StateDisconnected
	m.qr = nil
	return nil
}

// DeleteInstance removes the instance from the gateway and suspends
// polling.
func (m *Monitor) DeleteInstance(ctx context.Context) error {
	if err := m.gateway.DeleteInstance(ctx, m.instance); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.state = StateDisconnected
	m.qr = nil
	return nil
}

// Stop cancels the polling loop and clears pending timers. Used on
// shutdown; the instance state on the gateway is left untouched.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Monitor) stopLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Monitor) pollInterval() time.Duration {
	if m.state == StateConnected {
		return m.intervals.PollConnected
	}
	return m.intervals.PollConnecting
}

func (m *Monitor) loop(ctx context.Context) {
	m.mu.Lock()
	pollTimer := time.NewTimer(m.pollInterval())
	m.mu.Unlock()
	qrTicker := time.NewTicker(m.intervals.QRCheck)
	defer pollTimer.Stop()
	defer qrTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTimer.C:
			if !m.poll(ctx) {
				return
			}
			m.mu.Lock()
			pollTimer.Reset(m.pollInterval())
			m.mu.Unlock()
		case <-qrTicker.C:
			m.maybeRefreshQR(ctx)
		}
	}
}

// poll reads the gateway state and applies the transition. It returns
// false when the loop should stop (instance reported closed). Read
// errors are transient and keep the current state.
func (m *Monitor) poll(ctx context.Context) bool {
	gwState, err := m.gateway.ConnectionState(ctx, m.instance)
	if err != nil {
		log.Printf("whatsapp instance %s: status poll failed: %v", m.instance, err)
		return true
	}

	cont := true
	var notice string
	m.mu.Lock()
	switch gwState {
	case evolution.StateOpen:
		if m.state != StateConnected {
			m.state = StateConnected
			m.qr = nil
			m.qrFailures = 0
			notice = "WhatsApp connected"
		}
	case evolution.StateConnecting:
		m.state = StateConnecting
	default:
		// Closed or unknown: suspend polling until the next explicit action.
		m.state = StateDisconnected
		m.qr = nil
		m.stopLocked()
		cont = false
	}
	m.mu.Unlock()

	if notice != "" {
		m.notify(m.instance, notice)
	}
	return cont
}

func (m *Monitor) maybeRefreshQR(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateConnecting || m.refreshStopped {
		m.mu.Unlock()
		return
	}
	if m.qr != nil && time.Since(m.qr.IssuedAt) < m.intervals.QRTTL {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	qr, err := m.gateway.Connect(ctx, m.instance)

	var notice string
	m.mu.Lock()
	if m.state != StateConnecting {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.qrFailures++
		log.Printf("whatsapp instance %s: QR refresh failed (%d/%d): %v", m.instance, m.qrFailures, maxQRRefreshFailures, err)
		if m.qrFailures >= maxQRRefreshFailures {
			m.refreshStopped = true
			notice = "QR code refresh stopped after repeated failures, please reconnect manually"
		}
	} else {
		m.qr = qr
		m.qrFailures = 0
	}
	m.mu.Unlock()

	if notice != "" {
		m.notify(m.instance, notice)
	}
}
