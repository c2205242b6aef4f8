package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"leadflow_backend/internal/leads/domain"

	"gopkg.in/yaml.v3"
)

// LoadDefaultsFile reads a YAML rule defaults file. Fields left out keep their
// built-in values. An empty path returns the built-in defaults.
//
//	stale_rules:
//	  active_stale_hours: 72
//	sla_rules:
//	  escalation_enabled: true
//	  response_target_minutes: 30
//	broker_stale_hours_for_assigned: 120
func LoadDefaultsFile(path string) (domain.RuleDefaults, error) {
	if path == "" {
		return domain.BuiltinDefaults(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RuleDefaults{}, fmt.Errorf("read rule defaults: %w", err)
	}
	return ParseDefaults(raw)
}

// ParseDefaults decodes YAML rule defaults and merges them over the built-in set.
// Unknown keys are rejected.
func ParseDefaults(raw []byte) (domain.RuleDefaults, error) {
	var parsed domain.RuleDefaults
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&parsed); err != nil && !errors.Is(err, io.EOF) {
		return domain.RuleDefaults{}, fmt.Errorf("parse rule defaults: %w", err)
	}

	merged := parsed.Merge()
	probe := domain.TeamRules{
		Stale:      merged.Stale,
		SLA:        merged.SLA,
		Escalation: domain.EscalationRules{BrokerIntake: domain.BrokerIntake{StaleHoursForAssigned: merged.BrokerStaleHoursForAssigned}},
	}
	if err := probe.Check(); err != nil {
		return domain.RuleDefaults{}, fmt.Errorf("rule defaults: %w", err)
	}
	return merged, nil
}
