package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"provider":       "hubspot",
		"user_id":        "u1",
		"credential_key": "hubspot_credentials:u1",
		"access_token":   "secret-token",
		"authorization":  "Bearer secret-token",
		"code":           "abc",
		"nested":         map[string]any{"refresh_token": "refresh", "trace_id": "trace_nested"},
		"events":         []any{map[string]any{"client_secret": "s1"}, map[string]any{"request_id": "req_1"}},
	})

	if redacted["provider"] != "hubspot" || redacted["user_id"] != "u1" {
		t.Fatalf("expected identity fields to remain visible, got %#v", redacted)
	}
	if redacted["credential_key"] != "hubspot_credentials:u1" {
		t.Fatalf("expected credential_key to remain visible, got %#v", redacted["credential_key"])
	}
	for _, key := range []string{"access_token", "authorization", "code"} {
		if redacted[key] != RedactedValue {
			t.Fatalf("expected %s to be redacted, got %#v", key, redacted[key])
		}
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["refresh_token"] != RedactedValue {
		t.Fatalf("expected nested refresh_token to be redacted, got %#v", nested["refresh_token"])
	}
	if nested["trace_id"] != "trace_nested" {
		t.Fatalf("expected nested trace_id to remain visible, got %#v", nested["trace_id"])
	}
	events := redacted["events"].([]any)
	if events[0].(map[string]any)["client_secret"] != RedactedValue {
		t.Fatalf("expected list entries to be redacted")
	}
}

func TestRedactSensitiveMapEmpty(t *testing.T) {
	if got := RedactSensitiveMap(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty map, got %#v", got)
	}
}
