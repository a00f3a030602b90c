package whatsapp

import "sync"

// Manager hands out one Monitor per instance name and tears them all
// down on shutdown.
type Manager struct {
	gateway   Gateway
	intervals Intervals
	notify    NotifyFunc

	mu       sync.Mutex
	monitors map[string]*Monitor
}

func NewManager(gateway Gateway, intervals Intervals, notify NotifyFunc) *Manager {
	return &Manager{
		gateway:   gateway,
		intervals: intervals,
		notify:    notify,
		monitors:  make(map[string]*Monitor),
	}
}

// Monitor returns the monitor for an instance, creating it on first use.
func (mgr *Manager) Monitor(instanceName string) *Monitor {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	monitor, ok := mgr.monitors[instanceName]
	if !ok {
		monitor = NewMonitor(mgr.gateway, instanceName, mgr.intervals, mgr.notify)
		mgr.monitors[instanceName] = monitor
	}
	return monitor
}

// Remove stops and forgets an instance's monitor, if present.
func (mgr *Manager) Remove(instanceName string) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if monitor, ok := mgr.monitors[instanceName]; ok {
		monitor.Stop()
		delete(mgr.monitors, instanceName)
	}
}

// StopAll cancels every monitor's polling loop. Called on shutdown so no
// timers outlive the server.
func (mgr *Manager) StopAll() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	for _, monitor := range mgr.monitors {
		monitor.Stop()
	}
}
