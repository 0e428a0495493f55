package ingest

import "testing"

func TestLoadRegistry(t *testing.T) {
	reg, err := LoadRegistry("config/sources.yaml")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.Sources) != 4 {
		t.Fatalf("got %d sources, want 4", len(reg.Sources))
	}

	for _, id := range []string{"eskom", "sanral", "transnet", "etenders"} {
		src, err := reg.ByID(id)
		if err != nil {
			t.Errorf("ByID(%q): %v", id, err)
			continue
		}
		if src.Prefix != id {
			t.Errorf("source %q prefix = %q, want the id", id, src.Prefix)
		}
		if src.BaseURL == "" {
			t.Errorf("source %q has no base_url", id)
		}
	}

	if _, err := reg.ByID("unknown"); err == nil {
		t.Error("ByID on an unknown source should fail")
	}
}
