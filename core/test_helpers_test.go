package core

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testProvider struct {
	id string

	exchangeFn func(ctx context.Context, in ExchangeInput) (CredentialRecord, error)
	refreshFn  func(ctx context.Context, refreshToken string) (CredentialRecord, error)
	listFn     func(ctx context.Context, accessToken string) (ListResult, error)

	mu              sync.Mutex
	exchangeCalls   int
	refreshCalls    int
	lastAccessToken string
}

func (p *testProvider) ID() string { return p.id }

func (p *testProvider) BuildAuthorizeRequest(in AuthorizeInput) (AuthorizationRequest, error) {
	return AuthorizationRequest{
		EndpointURL: "https://auth.example.com/" + p.id + "/authorize",
		ClientParams: url.Values{
			"client_id":    []string{"client-" + p.id},
			"redirect_uri": []string{"http://localhost:3000/callback"},
			"state":        []string{in.State},
		},
		Scopes: []string{"read"},
	}, nil
}

func (p *testProvider) ExchangeCode(ctx context.Context, in ExchangeInput) (CredentialRecord, error) {
	p.mu.Lock()
	p.exchangeCalls++
	p.mu.Unlock()
	if p.exchangeFn != nil {
		return p.exchangeFn(ctx, in)
	}
	return NewCredentialRecord(map[string]any{
		"access_token":  "t1",
		"refresh_token": "r1",
		"expires_in":    1800,
	}, time.Time{})
}

func (p *testProvider) Refresh(ctx context.Context, refreshToken string) (CredentialRecord, error) {
	p.mu.Lock()
	p.refreshCalls++
	p.mu.Unlock()
	if p.refreshFn != nil {
		return p.refreshFn(ctx, refreshToken)
	}
	return NewCredentialRecord(map[string]any{
		"access_token":  "t2",
		"refresh_token": refreshToken,
		"expires_in":    1800,
	}, time.Time{})
}

func (p *testProvider) ListItems(ctx context.Context, accessToken string) (ListResult, error) {
	p.mu.Lock()
	p.lastAccessToken = accessToken
	p.mu.Unlock()
	if p.listFn != nil {
		return p.listFn(ctx, accessToken)
	}
	return ListResult{}, nil
}

func (p *testProvider) Normalize(raw RawItem) IntegrationItem {
	return IntegrationItem{
		ID:   raw.ID,
		Name: fmt.Sprint(raw.Fields["name"]),
		Type: raw.Kind,
	}
}

func (p *testProvider) counts() (exchange int, refresh int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchangeCalls, p.refreshCalls
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// memKV is a TTL map without Take, so the controller uses Get plus Delete.
type memKV struct {
	mu      sync.Mutex
	entries map[string]memEntry
	nowFn   func() time.Time
	puts    map[string]time.Duration
}

func newMemKV(nowFn func() time.Time) *memKV {
	return &memKV{entries: map[string]memEntry{}, nowFn: nowFn, puts: map[string]time.Duration{}}
}

func (m *memKV) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{value: append([]byte(nil), value...), expiresAt: m.nowFn().Add(ttl)}
	m.puts[key] = ttl
	return nil
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.nowFn().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memKV) has(key string) bool {
	_, found, _ := m.Get(context.Background(), key)
	return found
}

func (m *memKV) ttl(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts[key]
}

type takingKV struct {
	*memKV
	takes int
}

func (t *takingKV) Take(ctx context.Context, key string) ([]byte, bool, error) {
	t.memKV.mu.Lock()
	t.takes++
	t.memKV.mu.Unlock()
	value, found, err := t.memKV.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	return value, true, t.memKV.Delete(ctx, key)
}

type sequenceNonce struct {
	mu   sync.Mutex
	next int
}

func (n *sequenceNonce) Generate() (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	return fmt.Sprintf("n%d", n.next), nil
}

type testFixture struct {
	service *Service
	store   *memKV
	clock   *testClock
	logger  *captureLogger
}

func newTestFixture(t *testing.T, runtime Config, providers []Provider, opts ...Option) testFixture {
	t.Helper()
	clock := newTestClock()
	store := newMemKV(clock.Now)
	logger := newCaptureLogger()
	nonce := &sequenceNonce{}
	base := []Option{
		WithProviders(providers...),
		WithKeyValueStore(store),
		WithClock(clock.Now),
		WithStateNonceGenerator(nonce.Generate),
		WithLogger(logger),
		WithLockBackoff(ExponentialBackoffScheduler{Initial: time.Millisecond, Max: 5 * time.Millisecond}),
	}
	svc, err := NewService(runtime, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return testFixture{service: svc, store: store, clock: clock, logger: logger}
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

func (l *captureLogger) find(eventType string, status string) (capturedLog, bool) {
	for _, record := range l.snapshot() {
		if record.fields["event_type"] == eventType && (status == "" || record.fields["status"] == status) {
			return record, true
		}
	}
	return capturedLog{}, false
}
