package utils

import (
	"strings"
	"testing"
)

func TestGenerateRunID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateRunID()
		if !strings.HasPrefix(id, "run-") {
			t.Fatalf("expected run- prefix, got %s", id)
		}
		if seen[id] {
			t.Fatalf("duplicate run id %s", id)
		}
		seen[id] = true
	}
}
