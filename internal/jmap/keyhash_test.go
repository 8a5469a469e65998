package jmap

import "testing"

// TestKeyHashInjective: the packed key constants used in
// dispatch must be injective over the set of JMAP-recognized keys.
func TestKeyHashInjective(t *testing.T) {
	seen := make(map[keyHash]string)
	for _, lit := range knownKeyLiterals {
		h, err := packKey(lit)
		if err != nil {
			t.Fatalf("packKey(%q): %v", lit, err)
		}
		if prior, ok := seen[h]; ok {
			t.Fatalf("key hash collision: %q and %q pack to the same hash", lit, prior)
		}
		seen[h] = lit
	}
}

func TestPackKeyCaseInsensitive(t *testing.T) {
	a, err := packKey("accountId")
	if err != nil {
		t.Fatalf("packKey: %v", err)
	}
	b, err := packKey("ACCOUNTID")
	if err != nil {
		t.Fatalf("packKey: %v", err)
	}
	if a != b {
		t.Fatalf("expected case-insensitive packing to collide intentionally")
	}
}

func TestPackKeyTooLong(t *testing.T) {
	_, err := packKey("thisKeyIsDefinitelyLongerThanThirtyTwoBytes")
	if err != errKeyTooLong {
		t.Fatalf("expected errKeyTooLong, got %v", err)
	}
}
