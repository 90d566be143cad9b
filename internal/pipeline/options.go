package pipeline

import (
	"github.com/example/agecorpus/internal/balance"
	"github.com/example/agecorpus/internal/config"
	"github.com/example/agecorpus/internal/reconcile"
	"github.com/example/agecorpus/internal/speaker"
	"github.com/example/agecorpus/internal/taxonomy"
)

// The helpers below translate a loaded config into per-stage options so
// the CLI's single-stage commands behave exactly like the full run.

func NormalizeOptions(cfg config.Config) speaker.Options {
	return speaker.Options{
		TagAge:     cfg.Speakers.TagAge,
		Strategies: speaker.AgeStrategies(speaker.ChildPolicy(cfg.Speakers.ChildPolicy)),
	}
}

func MapOptions(cfg config.Config) (taxonomy.Options, error) {
	policy, err := taxonomy.ParsePolicy(cfg.Taxonomy.ExclusionPolicy)
	if err != nil {
		return taxonomy.Options{}, err
	}

	return taxonomy.Options{Policy: policy, ReservedTokens: cfg.Taxonomy.ReservedTokens}, nil
}

func BalanceOptions(cfg config.Config) balance.Options {
	return balance.Options{
		BudgetSeconds: cfg.Balance.BudgetSeconds,
		SpeakerCap:    cfg.Balance.SpeakerCap,
	}
}

func ReconcileOptions(cfg config.Config) reconcile.Options {
	return reconcile.Options{
		SidecarExtensions: cfg.Reconcile.SidecarExtensions,
		DryRun:            cfg.Reconcile.DryRun,
	}
}
