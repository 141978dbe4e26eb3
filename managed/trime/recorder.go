package trime

import (
	"sync"
	"time"

	"github.com/wippyai/rime-bridge/internal/osthread"
)

// Notification is one delivered handleRimeNotification call.
type Notification struct {
	Type   string
	Value  string
	Thread osthread.ID
}

// Recorder collects notifications. Its Handle method is a NotificationFunc.
type Recorder struct {
	list []Notification
	fail error
	mu   sync.Mutex
	cond *sync.Cond
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	r := &Recorder{}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// FailWith makes every following delivery throw err to the caller.
// A nil err restores normal delivery.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

// Handle records one notification.
func (r *Recorder) Handle(messageType, messageValue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, Notification{Type: messageType, Value: messageValue, Thread: osthread.Current()})
	r.cond.Broadcast()
	return r.fail
}

// List returns a copy of the notifications so far.
func (r *Recorder) List() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.list...)
}

// WaitFor blocks until a notification of type/value arrives or timeout
// passes, and reports whether it arrived.
func (r *Recorder) WaitFor(messageType, messageValue string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer timer.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		for _, n := range r.list {
			if n.Type == messageType && n.Value == messageValue {
				return true
			}
		}
		if !time.Now().Before(deadline) {
			return false
		}
		r.cond.Wait()
	}
}
