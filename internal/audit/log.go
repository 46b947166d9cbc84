// Package audit keeps the append-only security event log: authentication
// successes and failures, authorization denials and rate-limit hits. Events
// are newline-delimited JSON in a single file owned by this process.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"clinsalud.org/internal/ids"
	"clinsalud.org/internal/obs"
)

// Event kinds recorded by the auth path.
const (
	KindLoginSuccess   = "auth.login"
	KindLoginFailure   = "auth.login_failed"
	KindRegister       = "auth.register"
	KindLogout         = "auth.logout"
	KindTokenRefreshed = "auth.token_refreshed"
	KindAuthSuccess    = "auth.success"
	KindAuthFailure    = "auth.failure"
	KindAccessDenied   = "authz.denied"
	KindRateLimited    = "ratelimit.exceeded"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Event is one security log record. Seq is assigned monotonically per
// process; ID is globally sortable.
type Event struct {
	Seq       uint64         `json:"seq"`
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"ts"`
	RequestID string         `json:"request_id,omitempty"`
	Kind      string         `json:"event"`
	Fields    map[string]any `json:"fields"`
}

// Log is the append-only security event log. Appends are serialized by a
// single mutex so concurrent writers never interleave partial lines.
type Log struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	seq      atomic.Uint64
	now      func() time.Time
	fallback *log.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Log) {
		if fn != nil {
			l.now = fn
		}
	}
}

// WithFallback overrides the logger used when the event file is unwritable.
func WithFallback(logger *log.Logger) Option {
	return func(l *Log) {
		if logger != nil {
			l.fallback = logger
		}
	}
}

// Open creates or appends to the security log at path.
func Open(path string, opts ...Option) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	l := &Log{
		file:     f,
		path:     path,
		now:      time.Now,
		fallback: obs.Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Close releases the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Record appends one event. A write failure must never block the request
// path: the error is reported on the fallback channel and swallowed.
func (l *Log) Record(ctx context.Context, kind string, fields map[string]any) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return
	}
	event := Event{
		Seq:       l.seq.Add(1),
		ID:        ids.New(),
		Timestamp: l.now().UTC(),
		RequestID: requestIDFromContext(ctx),
		Kind:      kind,
		Fields:    map[string]any{},
	}
	for k, v := range fields {
		event.Fields[k] = v
	}

	data, err := json.Marshal(event)
	if err != nil {
		l.fallback.Printf(`{"level":"error","msg":"security event marshal failed","event":%q}`, kind)
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	_, err = l.file.Write(data)
	l.mu.Unlock()
	if err != nil {
		l.fallback.Printf(`{"level":"error","msg":"security log write failed","event":%q,"error":%q}`, kind, err.Error())
	}
}

// RecentEvents returns up to limit events, most recent first, optionally
// filtered by kind (empty kind matches everything).
func (l *Log) RecentEvents(limit int, kind string) ([]Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	events, err := l.readAll()
	if err != nil {
		return nil, err
	}
	var matched []Event
	for _, e := range events {
		if kind == "" || e.Kind == kind {
			matched = append(matched, e)
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	// Reverse into most-recent-first order.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched, nil
}

// Rotate rewrites the log keeping only events newer than the retention
// period.
func (l *Log) Rotate(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := l.now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	events, err := l.readAll()
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tmp := l.path + ".rotate"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	for _, e := range events {
		if !e.Timestamp.After(cutoff) {
			continue
		}
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return err
	}

	l.file.Close()
	reopened, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	l.file = reopened
	return nil
}

// Report lists clients and target emails with enough failed-auth events in
// the trailing window to look like a brute-force attempt.
type Report struct {
	Window           time.Duration  `json:"window"`
	FlaggedAddresses map[string]int `json:"flagged_addresses"`
	FlaggedEmails    map[string]int `json:"flagged_emails"`
}

const (
	addressFailureThreshold = 10
	emailFailureThreshold   = 5
)

// SuspiciousActivity flags any client address with 10+ failed-auth events,
// or any target email with 5+, within the trailing window.
func (l *Log) SuspiciousActivity(window time.Duration) (Report, error) {
	report := Report{
		Window:           window,
		FlaggedAddresses: map[string]int{},
		FlaggedEmails:    map[string]int{},
	}
	events, err := l.readAll()
	if err != nil {
		return report, err
	}
	cutoff := l.now().UTC().Add(-window)

	byAddress := map[string]int{}
	byEmail := map[string]int{}
	for _, e := range events {
		if e.Kind != KindAuthFailure && e.Kind != KindLoginFailure {
			continue
		}
		if !e.Timestamp.After(cutoff) {
			continue
		}
		if ip, ok := e.Fields["ip"].(string); ok && ip != "" {
			byAddress[ip]++
		}
		if email, ok := e.Fields["email"].(string); ok && email != "" {
			byEmail[email]++
		}
	}
	for ip, n := range byAddress {
		if n >= addressFailureThreshold {
			report.FlaggedAddresses[ip] = n
		}
	}
	for email, n := range byEmail {
		if n >= emailFailureThreshold {
			report.FlaggedEmails[email] = n
		}
	}
	return report, nil
}

func (l *Log) readAll() ([]Event, error) {
	l.mu.Lock()
	data, err := os.ReadFile(l.path)
	l.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var events []Event
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			// A torn or corrupt line must not poison the whole log.
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
