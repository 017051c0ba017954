package sql

import (
	"testing"
)

func TestCheckValueForInjection(t *testing.T) {
	if r := CheckValueForInjection("customer", "Acme Corp"); r != nil {
		t.Errorf("clean value flagged: %+v", r)
	}

	r := CheckValueForInjection("search", "'; DROP TABLE users--")
	if r == nil {
		t.Fatal("expected injection to be detected")
	}
	if !r.IsSQLi || r.Name != "search" {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestCheckValues(t *testing.T) {
	results := CheckValues(map[string]string{
		"a": "ordinary text",
		"b": "1' OR '1'='1",
	})
	if len(results) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(results))
	}
	if results[0].Name != "b" {
		t.Errorf("expected hit on b, got %s", results[0].Name)
	}
}
