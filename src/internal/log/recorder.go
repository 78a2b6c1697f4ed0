package log

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Recorder collects the messages of a single engine call while forwarding
// them to the process logger. The collected messages form the call's log.
type Recorder struct {
	txn   string
	entry *logrus.Entry

	mu      sync.Mutex
	entries []string
}

// NewRecorder creates a recorder tagging every forwarded entry with txn.
func NewRecorder(txn string) *Recorder {
	return &Recorder{
		txn:     txn,
		entry:   logger.WithField("txn", txn),
		entries: []string{},
	}
}

// Txn returns the transaction id.
func (r *Recorder) Txn() string {
	return r.txn
}

func (r *Recorder) add(level logrus.Level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.entry.Log(level, msg)

	r.mu.Lock()
	r.entries = append(r.entries, msg)
	r.mu.Unlock()
}

// Infof records an informational message.
func (r *Recorder) Infof(format string, args ...interface{}) {
	r.add(logrus.InfoLevel, format, args...)
}

// Warnf records a warning.
func (r *Recorder) Warnf(format string, args ...interface{}) {
	r.add(logrus.WarnLevel, format, args...)
}

// Errorf records an error.
func (r *Recorder) Errorf(format string, args ...interface{}) {
	r.add(logrus.ErrorLevel, format, args...)
}

// Debugf forwards a debug message without recording it.
func (r *Recorder) Debugf(format string, args ...interface{}) {
	r.entry.Debugf(format, args...)
}

// Entries returns a copy of the recorded messages in order.
func (r *Recorder) Entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.entries))
	copy(out, r.entries)
	return out
}
