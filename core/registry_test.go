package core

import "testing"

func TestProviderRegistry_ListDeterministicOrder(t *testing.T) {
	registry, err := NewProviderRegistry(
		&testProvider{id: "notion"},
		&testProvider{id: "airtable"},
		&testProvider{id: "hubspot"},
	)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	listed := registry.List()
	if len(listed) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(listed))
	}

	got := []string{listed[0].ID(), listed[1].ID(), listed[2].ID()}
	want := []string{"airtable", "hubspot", "notion"}
	for idx := range want {
		if got[idx] != want[idx] {
			t.Fatalf("unexpected ordering at index %d: got %v want %v", idx, got, want)
		}
	}
}

func TestProviderRegistry_DuplicateIDRejected(t *testing.T) {
	registry, _ := NewProviderRegistry()
	if err := registry.Register(&testProvider{id: "hubspot"}); err != nil {
		t.Fatalf("register provider: %v", err)
	}
	if err := registry.Register(&testProvider{id: " HubSpot "}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestProviderRegistry_GetNormalizesName(t *testing.T) {
	registry, _ := NewProviderRegistry(&testProvider{id: "hubspot"})
	if _, ok := registry.Get(" HUBSPOT "); !ok {
		t.Fatalf("expected case-insensitive lookup")
	}
	if _, ok := registry.Get("salesforce"); ok {
		t.Fatalf("expected unknown provider lookup to miss")
	}
	if _, ok := registry.Get(""); ok {
		t.Fatalf("expected empty provider lookup to miss")
	}
}

func TestProviderRegistry_RejectsInvalidProvider(t *testing.T) {
	registry, _ := NewProviderRegistry()
	if err := registry.Register(nil); err == nil {
		t.Fatalf("expected nil provider to fail")
	}
	if err := registry.Register(&testProvider{id: "  "}); err == nil {
		t.Fatalf("expected blank provider id to fail")
	}
}
