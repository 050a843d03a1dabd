package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type scriptedReply struct {
	status int
	body   string
	err    error
}

// scriptedTransport replays canned replies in order and records every
// request it receives. Once the script runs out the last reply repeats.
type scriptedTransport struct {
	mu       sync.Mutex
	replies  []scriptedReply
	requests []Request
	onCall   func(call int)
}

func newScriptedTransport(replies ...scriptedReply) *scriptedTransport {
	return &scriptedTransport{replies: replies}
}

func reply(body string) scriptedReply {
	return scriptedReply{body: body}
}

func replyStatus(status int, body string) scriptedReply {
	return scriptedReply{status: status, body: body}
}

func failure(err error) scriptedReply {
	return scriptedReply{err: err}
}

func (t *scriptedTransport) Kind() string { return "scripted" }

func (t *scriptedTransport) Request(_ context.Context, req Request) (Response, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	call := len(t.requests)
	var next scriptedReply
	switch {
	case len(t.replies) == 0:
		next = scriptedReply{body: "{}"}
	case call <= len(t.replies):
		next = t.replies[call-1]
	default:
		next = t.replies[len(t.replies)-1]
	}
	hook := t.onCall
	t.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if next.err != nil {
		return Response{}, next.err
	}
	status := next.status
	if status == 0 {
		status = 200
	}
	return Response{StatusCode: status, Body: Value(next.body)}, nil
}

func (t *scriptedTransport) calls() []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Request, len(t.requests))
	copy(out, t.requests)
	return out
}

func encodedParams(t *testing.T, req Request) string {
	t.Helper()
	payload, err := json.Marshal(req.Params)
	if err != nil {
		t.Fatalf("encode params: %v", err)
	}
	return string(payload)
}

type recordingSleeper struct {
	mu      sync.Mutex
	slept   []time.Duration
	onSleep func(count int) error
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.slept = append(s.slept, d)
	count := len(s.slept)
	hook := s.onSleep
	s.mu.Unlock()
	if hook != nil {
		if err := hook(count); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *recordingSleeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slept)
}

func newTestService(t *testing.T, transport Transport, opts ...Option) *Service {
	t.Helper()
	all := append([]Option{WithTransport(transport), WithSleeper(&recordingSleeper{})}, opts...)
	svc, err := NewService(Config{}, all...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) counter(name string) (capturedCounter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.counters {
		if item.name == name {
			return item, true
		}
	}
	return capturedCounter{}, false
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func (l *captureLogger) find(level string, msg string) (capturedLog, bool) {
	for _, record := range l.snapshot() {
		if record.level == level && strings.Contains(record.msg, msg) {
			return record, true
		}
	}
	return capturedLog{}, false
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type memoryApplicationStore struct {
	mu   sync.Mutex
	next int
	byID map[string]StoredApplication
}

func newMemoryApplicationStore() *memoryApplicationStore {
	return &memoryApplicationStore{byID: map[string]StoredApplication{}}
}

func (s *memoryApplicationStore) Save(_ context.Context, app StoredApplication) (StoredApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(app.ID) == "" {
		s.next++
		app.ID = fmt.Sprintf("app_%d", s.next)
		app.CreatedAt = time.Now().UTC()
	}
	app.UpdatedAt = time.Now().UTC()
	s.byID[app.ID] = app
	return app, nil
}

func (s *memoryApplicationStore) Get(_ context.Context, id string) (StoredApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.byID[id]
	if !ok {
		return StoredApplication{}, NewNotFoundError("application not found", map[string]any{"application_id": id})
	}
	return app, nil
}

func (s *memoryApplicationStore) GetByHost(_ context.Context, host string) (StoredApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, app := range s.byID {
		if app.Host == host {
			return app, nil
		}
	}
	return StoredApplication{}, NewNotFoundError("application not found", map[string]any{"host": host})
}

type memoryAccountStore struct {
	mu   sync.Mutex
	next int
	byID map[string]StoredAccount
}

func newMemoryAccountStore() *memoryAccountStore {
	return &memoryAccountStore{byID: map[string]StoredAccount{}}
}

func (s *memoryAccountStore) Save(_ context.Context, account StoredAccount) (StoredAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(account.ID) == "" {
		s.next++
		account.ID = fmt.Sprintf("acct_%d", s.next)
	}
	s.byID[account.ID] = account
	return account, nil
}

func (s *memoryAccountStore) Get(_ context.Context, id string) (StoredAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return StoredAccount{}, NewNotFoundError("account not found", map[string]any{"account_id": id})
	}
	return account, nil
}

func (s *memoryAccountStore) ListByApplication(_ context.Context, applicationID string) ([]StoredAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []StoredAccount{}
	for _, account := range s.byID {
		if account.ApplicationID == applicationID {
			out = append(out, account)
		}
	}
	return out, nil
}

func (s *memoryAccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}
