package systemd

import "testing"

func TestNotifyOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	sent, err := Notify(StateReady)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sent {
		t.Fatal("nothing must be sent without NOTIFY_SOCKET")
	}
	if d := WatchdogInterval(); d != 0 {
		t.Fatalf("WatchdogInterval = %v", d)
	}
}
