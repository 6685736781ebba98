package genre

import "testing"

func TestLoadIsValid(t *testing.T) {
	c := Load()
	if len(c.rows) == 0 {
		t.Fatal("expected non-empty genre table")
	}
	seen := make(map[string]bool)
	for _, r := range c.rows {
		primary := primaryName(r)
		if primary == "" {
			t.Fatalf("row with no primary name: %+v", r)
		}
		if seen[primary] {
			t.Fatalf("duplicate primary name %q", primary)
		}
		seen[primary] = true
	}
}

func TestSupportsAndAllSupported(t *testing.T) {
	c := Load()
	all := c.AllSupported()
	if len(all) == 0 {
		t.Fatal("expected at least one supported genre")
	}
	for _, name := range all {
		if !c.Supports(name) {
			t.Errorf("Supports(%q) = false, expected true", name)
		}
	}
	if c.Supports("definitely-not-a-real-genre") {
		t.Error("expected unknown genre to be unsupported")
	}
}

func TestConvert(t *testing.T) {
	c := Load()
	metadataName, ok := c.Convert(Streaming, Metadata, "city-pop")
	if !ok || metadataName != "city pop" {
		t.Errorf("Convert(streaming->metadata, city-pop) = (%q, %v), expected (\"city pop\", true)", metadataName, ok)
	}

	_, ok = c.Convert(Streaming, Metadata, "not-a-genre")
	if ok {
		t.Error("expected Convert to fail for unknown genre")
	}
}

func TestIsStreamingSeed(t *testing.T) {
	c := Load()
	if !c.IsStreamingSeed("shoegaze") {
		t.Error("expected shoegaze to be a streaming seed genre")
	}
	if c.IsStreamingSeed("not-a-genre") {
		t.Error("expected unknown genre to not be a streaming seed")
	}
}
