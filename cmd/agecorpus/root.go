package main

import (
	"fmt"
	"io"

	"github.com/example/agecorpus/internal/config"
	"github.com/example/agecorpus/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
	logCloser io.Closer
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "agecorpus",
		Short:         "Curate age-balanced speech corpora for age-controllable TTS",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}

			closer, err := logging.Setup(logging.Options{Level: loaded.LogLevel, File: loaded.LogFile})
			if err != nil {
				return err
			}

			activeCfg = loaded
			logCloser = closer

			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if logCloser == nil {
				return nil
			}

			err := logCloser.Close()
			logCloser = nil

			return err
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newNormalizeCmd())
	cmd.AddCommand(newMapCmd())
	cmd.AddCommand(newDurationsCmd())
	cmd.AddCommand(newBalanceCmd())
	cmd.AddCommand(newReconcileCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newFilelistCmd())
	cmd.AddCommand(newMergeCmd())
	cmd.AddCommand(newMaterializeCmd())
	cmd.AddCommand(newSidecarsCmd())
	cmd.AddCommand(newAuditCmd())
	cmd.AddCommand(newSynthCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

func requireConfig() (config.Config, error) {
	if activeCfg.Corpus.Name == "" {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}

	return activeCfg, nil
}
