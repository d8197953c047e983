// Package systemd speaks the sd_notify protocol to the service manager.
// Outside systemd (no NOTIFY_SOCKET) every call is a no-op.
package systemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

const (
	StateReady    = daemon.SdNotifyReady
	StateStopping = daemon.SdNotifyStopping
	StateWatchdog = daemon.SdNotifyWatchdog
)

// Notify sends one state line. sent is false when not running under systemd.
func Notify(state string) (sent bool, err error) {
	return daemon.SdNotify(false, state)
}

// WatchdogInterval returns the WatchdogSec configured for the unit, or 0 when
// the watchdog is disabled.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return d
}
