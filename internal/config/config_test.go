package config

import (
	"testing"
	"time"
)

func TestParseOffset(t *testing.T) {
	tests := []struct {
		in      string
		seconds int
		wantErr bool
	}{
		{"+02:00", 2 * 3600, false},
		{"-05:30", -(5*3600 + 30*60), false},
		{"+00:00", 0, false},
		{"02:00", 0, true},
		{"+2:00", 0, true},
		{"+02-00", 0, true},
		{"+ab:cd", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		loc, err := ParseOffset(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseOffset(%q) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseOffset(%q): %v", tt.in, err)
			continue
		}
		_, offset := time.Date(2025, 8, 1, 0, 0, 0, 0, loc).Zone()
		if offset != tt.seconds {
			t.Errorf("ParseOffset(%q) offset = %d, want %d", tt.in, offset, tt.seconds)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TZOffset != "+02:00" {
		t.Errorf("tz offset = %q, want the SAST default", cfg.TZOffset)
	}
	if cfg.PageSize != 50 || cfg.MaxPages != 200 {
		t.Errorf("paging defaults = %d/%d", cfg.PageSize, cfg.MaxPages)
	}
	_, offset := time.Now().In(cfg.Location()).Zone()
	if offset != 2*3600 {
		t.Errorf("location offset = %d, want +02:00", offset)
	}
}
