package utils

import "testing"

func TestValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "first.last@example.com", " padded@example.com "}
	for _, email := range valid {
		if !ValidEmail(email) {
			t.Errorf("expected %q to be valid", email)
		}
	}

	invalid := []string{"", "plain", "a@b", "a b@c.com", "@example.com"}
	for _, email := range invalid {
		if ValidEmail(email) {
			t.Errorf("expected %q to be invalid", email)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Buyer@Example.COM "); got != "buyer@example.com" {
		t.Fatalf("got %q", got)
	}
}

func TestGetUUIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GetUUID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestGenerateIDLength(t *testing.T) {
	if got := len(GenerateID(12)); got != 12 {
		t.Fatalf("expected length 12, got %d", got)
	}
}
