package postgres

import "testing"

func TestMetadataRoundTrip(t *testing.T) {
	b, err := encodeMetadata(nil)
	if err != nil || string(b) != "{}" {
		t.Fatalf("expected {} for nil metadata, got %q %v", b, err)
	}
	if decodeMetadata(b) != nil {
		t.Fatalf("expected empty object to decode as nil")
	}
	if decodeMetadata([]byte("not json")) != nil {
		t.Fatalf("expected corrupt metadata to decode as nil")
	}
	b, _ = encodeMetadata(map[string]any{"pages": 3})
	if m := decodeMetadata(b); m["pages"] != float64(3) {
		t.Fatalf("unexpected metadata %v", m)
	}
}

func TestNullStrings(t *testing.T) {
	if nullString("").Valid {
		t.Fatalf("empty string must be NULL")
	}
	if nullStringPtr(nil).Valid {
		t.Fatalf("nil pointer must be NULL")
	}
	empty := ""
	if !nullStringPtr(&empty).Valid {
		t.Fatalf("explicit empty value must be kept")
	}
}
