package config

import (
	"fmt"
	"strings"

	"github.com/example/agecorpus/internal/balance"
	"github.com/example/agecorpus/internal/speaker"
	"github.com/example/agecorpus/internal/taxonomy"
)

// Accepted values for the policy keys, owned by the packages that act on
// them.
const (
	PolicyTeens        = string(taxonomy.PolicyTeens)
	PolicyTeensSixties = string(taxonomy.PolicyTeensSixties)

	ChildVerbatim   = string(speaker.ChildVerbatim)
	ChildSequential = string(speaker.ChildSequential)

	StrategyDuration   = balance.NameDuration
	StrategySpeakerCap = balance.NameSpeakerCap
)

func NormalizeExclusionPolicy(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return PolicyTeens, nil
	}

	policy, err := taxonomy.ParsePolicy(raw)
	if err != nil {
		return "", fmt.Errorf("invalid exclusion policy: %w", err)
	}

	return string(policy), nil
}

func NormalizeChildPolicy(raw string) (string, error) {
	policy := strings.ToLower(strings.TrimSpace(raw))
	switch policy {
	case "", ChildVerbatim:
		return ChildVerbatim, nil
	case ChildSequential:
		return ChildSequential, nil
	default:
		return "", fmt.Errorf("invalid child policy %q (expected %s|%s)", raw, ChildVerbatim, ChildSequential)
	}
}

func NormalizeBalanceStrategy(raw string) (string, error) {
	strategy := strings.ToLower(strings.TrimSpace(raw))
	switch strategy {
	case "", StrategyDuration:
		return StrategyDuration, nil
	case StrategySpeakerCap, "speaker_cap", "cap":
		return StrategySpeakerCap, nil
	default:
		return "", fmt.Errorf("invalid balance strategy %q (expected %s|cap)", raw, strings.Join(balance.Names(), "|"))
	}
}
