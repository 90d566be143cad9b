package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/example/agecorpus/internal/audio"
	"github.com/example/agecorpus/internal/reconcile"
	"github.com/example/agecorpus/internal/taxonomy"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Corpus    CorpusConfig    `mapstructure:"corpus"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Taxonomy  TaxonomyConfig  `mapstructure:"taxonomy"`
	Speakers  SpeakersConfig  `mapstructure:"speakers"`
	Duration  DurationConfig  `mapstructure:"duration"`
	Balance   BalanceConfig   `mapstructure:"balance"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	LogLevel  string          `mapstructure:"log_level"`
	LogFile   string          `mapstructure:"log_file"`
}

type CorpusConfig struct {
	Name string `mapstructure:"name"`
}

type PathsConfig struct {
	WorkDir       string `mapstructure:"work_dir"`
	ReportDir     string `mapstructure:"report_dir"`
	AudioRoot     string `mapstructure:"audio_root"`
	DurationTable string `mapstructure:"duration_table"`
	SourceDir     string `mapstructure:"source_dir"`
}

type TaxonomyConfig struct {
	ExclusionPolicy string   `mapstructure:"exclusion_policy"`
	ReservedTokens  []string `mapstructure:"reserved_tokens"`
}

type SpeakersConfig struct {
	TagAge      bool   `mapstructure:"tag_age"`
	ChildPolicy string `mapstructure:"child_policy"`
}

type DurationConfig struct {
	Workers int `mapstructure:"workers"`
}

type BalanceConfig struct {
	Strategy      string  `mapstructure:"strategy"`
	SpeakerCap    int     `mapstructure:"speaker_cap"`
	BudgetSeconds float64 `mapstructure:"budget_seconds"`
}

type ReconcileConfig struct {
	DryRun            bool     `mapstructure:"dry_run"`
	SidecarExtensions []string `mapstructure:"sidecar_extensions"`
}

type AudioConfig struct {
	SampleRate int `mapstructure:"sample_rate"`
	Channels   int `mapstructure:"channels"`
	BitDepth   int `mapstructure:"bit_depth"`
}

type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTAPIVersion  uint32 `mapstructure:"ort_api_version"`
	ModelPath      string `mapstructure:"model_path"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Corpus: CorpusConfig{Name: "corpus"},
		Paths: PathsConfig{
			WorkDir:   "work",
			ReportDir: "reports",
		},
		Taxonomy: TaxonomyConfig{
			ExclusionPolicy: PolicyTeens,
			ReservedTokens:  slices.Clone(taxonomy.DefaultReservedTokens),
		},
		Speakers: SpeakersConfig{
			TagAge:      true,
			ChildPolicy: ChildVerbatim,
		},
		Duration: DurationConfig{Workers: 4},
		Balance: BalanceConfig{
			Strategy:   StrategyDuration,
			SpeakerCap: 20,
		},
		Reconcile: ReconcileConfig{
			SidecarExtensions: slices.Clone(reconcile.DefaultSidecarExtensions),
		},
		Audio: AudioConfig{
			SampleRate: audio.DefaultFormat.SampleRate,
			Channels:   audio.DefaultFormat.Channels,
			BitDepth:   audio.DefaultFormat.BitDepth,
		},
		Runtime: RuntimeConfig{
			ORTAPIVersion: 23,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("corpus-name", defaults.Corpus.Name, "Corpus name used in checkpoint and report file names")
	fs.String("paths-work-dir", defaults.Paths.WorkDir, "Directory for stage checkpoints")
	fs.String("paths-report-dir", defaults.Paths.ReportDir, "Directory for divergence reports and run summary")
	fs.String("paths-audio-root", defaults.Paths.AudioRoot, "Per-speaker audio tree root")
	fs.String("paths-duration-table", defaults.Paths.DurationTable, "Side table of clip durations in ms (TSV)")
	fs.String("paths-source-dir", defaults.Paths.SourceDir, "Flat directory of source audio for materialisation")
	fs.String("taxonomy-exclusion-policy", defaults.Taxonomy.ExclusionPolicy, "Excluded age buckets (teens|teens-sixties)")
	fs.StringSlice("taxonomy-reserved-tokens", defaults.Taxonomy.ReservedTokens, "Transcript tokens that drop a row")
	fs.Bool("speakers-tag-age", defaults.Speakers.TagAge, "Append the age-category suffix to canonical speaker ids")
	fs.String("speakers-child-policy", defaults.Speakers.ChildPolicy, "Child id policy (verbatim|sequential)")
	fs.Int("duration-workers", defaults.Duration.Workers, "Concurrent audio probes")
	fs.String("balance-strategy", defaults.Balance.Strategy, "Balancing strategy (duration|speaker-cap)")
	fs.Int("balance-speaker-cap", defaults.Balance.SpeakerCap, "Max utterances per speaker for speaker-cap")
	fs.Float64("balance-budget-seconds", defaults.Balance.BudgetSeconds, "Fixed per-group budget in seconds (0 = scarcest group)")
	fs.Bool("reconcile-dry-run", defaults.Reconcile.DryRun, "Report reconciliation actions without deleting")
	fs.StringSlice("reconcile-sidecar-extensions", defaults.Reconcile.SidecarExtensions, "Sidecar extensions kept next to referenced audio")
	fs.Int("audio-sample-rate", defaults.Audio.SampleRate, "Expected sample rate for audits")
	fs.Int("audio-channels", defaults.Audio.Channels, "Expected channel count for audits")
	fs.Int("audio-bit-depth", defaults.Audio.BitDepth, "Expected bit depth for audits")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.Uint32("runtime-ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version")
	fs.String("runtime-model-path", defaults.Runtime.ModelPath, "Path to the acoustic model ONNX graph")
	fs.String("metrics-textfile", defaults.Metrics.Textfile, "Write Prometheus metrics to this textfile")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("log-file", defaults.LogFile, "Also write logs to this rotating file")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("AGECORPUS")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "AGECORPUS_RUNTIME_ORT_LIBRARY_PATH", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("agecorpus")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, cfg.normalize()
}

// normalize canonicalises the named policy strings in place.
func (c *Config) normalize() error {
	var err error

	if c.Taxonomy.ExclusionPolicy, err = NormalizeExclusionPolicy(c.Taxonomy.ExclusionPolicy); err != nil {
		return err
	}
	if c.Speakers.ChildPolicy, err = NormalizeChildPolicy(c.Speakers.ChildPolicy); err != nil {
		return err
	}
	if c.Balance.Strategy, err = NormalizeBalanceStrategy(c.Balance.Strategy); err != nil {
		return err
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("corpus.name", c.Corpus.Name)
	v.SetDefault("paths.work_dir", c.Paths.WorkDir)
	v.SetDefault("paths.report_dir", c.Paths.ReportDir)
	v.SetDefault("paths.audio_root", c.Paths.AudioRoot)
	v.SetDefault("paths.duration_table", c.Paths.DurationTable)
	v.SetDefault("paths.source_dir", c.Paths.SourceDir)
	v.SetDefault("taxonomy.exclusion_policy", c.Taxonomy.ExclusionPolicy)
	v.SetDefault("taxonomy.reserved_tokens", c.Taxonomy.ReservedTokens)
	v.SetDefault("speakers.tag_age", c.Speakers.TagAge)
	v.SetDefault("speakers.child_policy", c.Speakers.ChildPolicy)
	v.SetDefault("duration.workers", c.Duration.Workers)
	v.SetDefault("balance.strategy", c.Balance.Strategy)
	v.SetDefault("balance.speaker_cap", c.Balance.SpeakerCap)
	v.SetDefault("balance.budget_seconds", c.Balance.BudgetSeconds)
	v.SetDefault("reconcile.dry_run", c.Reconcile.DryRun)
	v.SetDefault("reconcile.sidecar_extensions", c.Reconcile.SidecarExtensions)
	v.SetDefault("audio.sample_rate", c.Audio.SampleRate)
	v.SetDefault("audio.channels", c.Audio.Channels)
	v.SetDefault("audio.bit_depth", c.Audio.BitDepth)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("runtime.model_path", c.Runtime.ModelPath)
	v.SetDefault("metrics.textfile", c.Metrics.Textfile)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("log_file", c.LogFile)
}

// flagKeys maps config keys to the flag that overrides them.
var flagKeys = map[string]string{
	"corpus.name":                  "corpus-name",
	"paths.work_dir":               "paths-work-dir",
	"paths.report_dir":             "paths-report-dir",
	"paths.audio_root":             "paths-audio-root",
	"paths.duration_table":         "paths-duration-table",
	"paths.source_dir":             "paths-source-dir",
	"taxonomy.exclusion_policy":    "taxonomy-exclusion-policy",
	"taxonomy.reserved_tokens":     "taxonomy-reserved-tokens",
	"speakers.tag_age":             "speakers-tag-age",
	"speakers.child_policy":        "speakers-child-policy",
	"duration.workers":             "duration-workers",
	"balance.strategy":             "balance-strategy",
	"balance.speaker_cap":          "balance-speaker-cap",
	"balance.budget_seconds":       "balance-budget-seconds",
	"reconcile.dry_run":            "reconcile-dry-run",
	"reconcile.sidecar_extensions": "reconcile-sidecar-extensions",
	"audio.sample_rate":            "audio-sample-rate",
	"audio.channels":               "audio-channels",
	"audio.bit_depth":              "audio-bit-depth",
	"runtime.ort_library_path":     "runtime-ort-library-path",
	"runtime.ort_api_version":      "runtime-ort-api-version",
	"runtime.model_path":           "runtime-model-path",
	"metrics.textfile":             "metrics-textfile",
	"log_level":                    "log-level",
	"log_file":                     "log-file",
}

// bindFlags binds each key to its flag. Keys are bound individually, not
// aliased, so config file values still apply when the flag is unset.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for key, name := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}

		if key == "runtime.ort_library_path" {
			if alias := fs.Lookup("ort-lib"); alias != nil && alias.Changed && !f.Changed {
				f = alias
			}
		}

		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	return nil
}
