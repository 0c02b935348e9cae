package store

import (
	"encoding/hex"
	"testing"
)

func TestComputeDedupKeyFromID(t *testing.T) {
	body := []byte(`{"id":"evt_123","type":"run.completed"}`)
	got := computeDedupKey(body)
	if got != "evt_123" {
		t.Fatalf("want evt_123, got %s", got)
	}
}

func TestComputeDedupKeyFromHash(t *testing.T) {
	body := []byte(`{"notId":"x"}`)
	got := computeDedupKey(body)
	// hex-encoded first 8 bytes -> 16 hex chars
	b, err := hex.DecodeString(got)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
	if computeDedupKey([]byte(`{"notId":"y"}`)) == got {
		t.Fatalf("different payloads share a key")
	}
}

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty(""); v != nil {
		t.Fatalf("empty -> nil expected")
	}
	if v := nullIfEmpty("a"); v != "a" {
		t.Fatalf("non-empty -> value expected, got %v", v)
	}
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"runs", "subscriptions", "webhook_deliveries"} {
		if !containsTable(schemaSQL, table) {
			t.Fatalf("schema misses table %s", table)
		}
	}
}

func containsTable(schema, table string) bool {
	needle := "CREATE TABLE IF NOT EXISTS " + table + " ("
	for i := 0; i+len(needle) <= len(schema); i++ {
		if schema[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
