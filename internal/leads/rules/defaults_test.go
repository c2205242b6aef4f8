package rules

import (
	"os"
	"path/filepath"
	"testing"

	"leadflow_backend/internal/leads/domain"
)

func TestLoadDefaultsFileEmptyPath(t *testing.T) {
	defaults, err := LoadDefaultsFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if defaults != domain.BuiltinDefaults() {
		t.Fatalf("expected built-in defaults, got %+v", defaults)
	}
}

func TestLoadDefaultsFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "stale_rules:\n  active_stale_hours: 72\n  timezone: Europe/Amsterdam\nbroker_stale_hours_for_assigned: 120\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	defaults, err := LoadDefaultsFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if defaults.Stale.ActiveStaleHours != 72 || defaults.Stale.Timezone != "Europe/Amsterdam" || defaults.BrokerStaleHoursForAssigned != 120 {
		t.Fatalf("expected overrides, got %+v", defaults)
	}
	if defaults.Stale.AtRiskThresholdPercent != 80 || defaults.SLA.ResponseTargetMinutes != 60 {
		t.Fatalf("expected untouched built-ins, got %+v", defaults)
	}
}

func TestParseDefaultsRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "stale_rule:\n  active_stale_hours: 1\n",
		"bad percent":   "stale_rules:\n  at_risk_threshold_percent: 150\n",
		"not a mapping": "- 1\n- 2\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseDefaults([]byte(raw)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestParseDefaultsEmptyDocument(t *testing.T) {
	defaults, err := ParseDefaults(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if defaults != domain.BuiltinDefaults() {
		t.Fatal("expected built-in defaults for an empty file")
	}
}
