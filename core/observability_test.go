package core

import (
	"context"
	"sync"
	"testing"
)

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
	for _, counter := range m.counters {
		if counter.name == name {
			return counter, true
		}
	}
	return capturedCounter{}, false
}

func TestServiceObservability_CallbackSuccess(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	fx := newTestFixture(t, Config{}, []Provider{&testProvider{id: "hubspot"}}, WithMetricsRecorder(metrics))
	ctx := context.Background()

	auth, err := fx.service.Authorize(ctx, AuthorizeRequest{Provider: "hubspot", UserID: "u1"})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if _, err := fx.service.Callback(ctx, CallbackRequest{Provider: "hubspot", Code: "secret-code", State: auth.State}); err != nil {
		t.Fatalf("callback: %v", err)
	}

	counter, ok := metrics.counter("integrations.callback.total")
	if !ok {
		t.Fatalf("expected callback counter, got %#v", metrics.counters)
	}
	if counter.tags["status"] != "success" || counter.tags["provider"] != "hubspot" {
		t.Fatalf("unexpected counter tags: %#v", counter.tags)
	}
	if len(metrics.histograms) == 0 {
		t.Fatalf("expected duration histograms")
	}

	record, ok := fx.logger.find("callback", "success")
	if !ok {
		t.Fatalf("expected callback log")
	}
	if record.fields["credential_key"] != "hubspot_credentials:u1" || record.fields["user_id"] != "u1" {
		t.Fatalf("expected traceability fields, got %#v", record.fields)
	}
	for _, entry := range fx.logger.snapshot() {
		for key, value := range entry.fields {
			if value == "secret-code" || value == "t1" || value == "r1" {
				t.Fatalf("expected secrets to be absent from logs, found %s=%v", key, value)
			}
		}
	}
}

func TestServiceObservability_FailureCarriesTextCode(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	fx := newTestFixture(t, Config{}, []Provider{&testProvider{id: "hubspot"}}, WithMetricsRecorder(metrics))

	_, _ = fx.service.ListItems(context.Background(), ListItemsRequest{Provider: "hubspot"})

	counter, ok := metrics.counter("integrations.list_items.total")
	if !ok {
		t.Fatalf("expected list_items counter")
	}
	if counter.tags["status"] != "failure" || counter.tags["text_code"] != ErrorUnauthorized {
		t.Fatalf("unexpected failure tags: %#v", counter.tags)
	}
}

func TestServiceObservability_PartialFailureCounter(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	provider := &testProvider{
		id: "hubspot",
		listFn: func(context.Context, string) (ListResult, error) {
			return ListResult{Failures: []SubCallFailure{{Name: "deals", Err: context.DeadlineExceeded}}}, nil
		},
	}
	fx := newTestFixture(t, Config{}, []Provider{provider}, WithMetricsRecorder(metrics))

	if _, err := fx.service.ListItems(context.Background(), ListItemsRequest{Provider: "hubspot", BearerToken: "t1"}); err != nil {
		t.Fatalf("list items: %v", err)
	}
	counter, ok := metrics.counter("integrations.list_items.partial_failure")
	if !ok || counter.value != 1 {
		t.Fatalf("expected partial failure counter, got %#v", counter)
	}
}

func TestServiceObservability_RefreshOutcomeIsTagged(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	fx := newTestFixture(t, Config{}, []Provider{&testProvider{id: "hubspot"}}, WithMetricsRecorder(metrics))
	authorizeAndConnect(t, fx, "hubspot", "u1", "")

	if _, err := fx.service.GetCredentials(context.Background(), CredentialsRequest{Provider: "hubspot", UserID: "u1"}); err != nil {
		t.Fatalf("get credentials: %v", err)
	}
	counter, ok := metrics.counter("integrations.get_credentials.total")
	if !ok {
		t.Fatalf("expected get_credentials counter, got %#v", metrics.counters)
	}
	if counter.tags["refresh_outcome"] != "refreshed" || counter.tags["provider"] != "hubspot" {
		t.Fatalf("unexpected refresh tags: %#v", counter.tags)
	}
	if _, leaked := counter.tags["credential_key"]; leaked {
		t.Fatalf("expected credential_key to stay out of metric tags: %#v", counter.tags)
	}
	record, ok := fx.logger.find("get_credentials", "success")
	if !ok || record.fields["credential_key"] != "hubspot_credentials:u1" {
		t.Fatalf("expected credential_key in log fields, got %#v", record)
	}
}

func TestOperationEvent_TagsSkipEmptyFields(t *testing.T) {
	event := newOperationEvent("List-Items", 0, nil, map[string]any{
		"provider":        "notion",
		"refresh_outcome": "",
		"text_code":       nil,
		"user_id":         "u1",
	})
	tags := event.tags()
	if tags["operation"] != "list_items" || tags["status"] != "success" || tags["provider"] != "notion" {
		t.Fatalf("unexpected tags: %#v", tags)
	}
	for _, key := range []string{"refresh_outcome", "text_code", "user_id"} {
		if _, ok := tags[key]; ok {
			t.Fatalf("expected %s to be absent from tags: %#v", key, tags)
		}
	}
}
