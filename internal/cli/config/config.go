package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/actors"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/requestfile"
	"github.com/dfe-analytical-services/explore-education-statistics-sub068/pkg/workflow"
)

const (
	EnvPrefix         = "EESANALYTICS"
	DefaultConfigName = "ees-analytics"
)

// OutputFormat selects how run summaries are printed when the TUI is off.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Defaults for settings that live outside workflow.Options.
const (
	DefaultDataRoot     = "."
	DefaultTuiEnabled   = true
	DefaultVerbose      = false
	DefaultOutputFormat = OutputFormatText
	DefaultInterval     = time.Duration(0)
)

// Settings is the fully merged CLI configuration.
type Settings struct {
	workflow.Options `mapstructure:",squash"`

	DataRoot        string        `mapstructure:"dataRoot"`
	Actors          []string      `mapstructure:"actors"`
	DatabasePath    string        `mapstructure:"databasePath"`    // Empty means an in-memory DuckDB per run
	DefaultEncoding string        `mapstructure:"defaultEncoding"` // Fallback for undetectable request file encodings
	Interval        time.Duration `mapstructure:"interval"`        // 0 runs once and exits
	MetricsTextfile string        `mapstructure:"metricsTextfile"` // Prometheus textfile collector output
	TuiEnabled      bool          `mapstructure:"tuiEnabled"`
	Verbose         bool          `mapstructure:"verbose"`
	OutputFormat    OutputFormat  `mapstructure:"outputFormat"`

	AppVersion     string `mapstructure:"-"`
	ConfigFilePath string `mapstructure:"-"`
	ProfileName    string `mapstructure:"-"`
}

// flagKeys maps command line flag names to their configuration keys.
var flagKeys = map[string]string{
	"data-root":        "dataRoot",
	"actor":            "actors",
	"batch-size":       "batchSize",
	"concurrency":      "concurrency",
	"no-lock":          "disableLock",
	"database":         "databasePath",
	"default-encoding": "defaultEncoding",
	"interval":         "interval",
	"metrics-textfile": "metricsTextfile",
	"output-format":    "outputFormat",
	"verbose":          "verbose",
}

// LoadAndValidate loads configuration from all sources (defaults, file, profile, env, flags),
// validates the merged result, resolves paths and sets up the logger.
func LoadAndValidate(cfgFile, profileName, appVersion string, flags *pflag.FlagSet) (Settings, *slog.Logger, error) {
	var s Settings
	v := viper.New()

	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			tempLogger.Error("Failed to get user home directory", slog.Any("error", err))
			return s, tempLogger, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
		v.AddConfigPath(filepath.Join(home, "."+DefaultConfigName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			tempLogger.Debug("No configuration file found, using defaults/env/flags.")
		} else {
			used := cfgFile
			if used == "" {
				used = fmt.Sprintf("searched locations for %s.yaml", DefaultConfigName)
			}
			tempLogger.Error("Error reading configuration file", slog.String("path", used), slog.Any("error", err))
			return s, tempLogger, fmt.Errorf("error reading config file '%s': %w", used, err)
		}
	} else {
		s.ConfigFilePath = v.ConfigFileUsed()
	}

	s.ProfileName = profileName
	if profileName != "" {
		profileKey := "profiles." + profileName
		profileSettings := v.Sub(profileKey)
		if profileSettings == nil {
			configPath := v.ConfigFileUsed()
			if configPath == "" {
				configPath = "(no config file found)"
			}
			err := fmt.Errorf("%w: profile '%s' not found in config file '%s'", workflow.ErrConfigValidation, profileName, configPath)
			tempLogger.Error(err.Error())
			return s, tempLogger, err
		}
		if err := v.MergeConfigMap(profileSettings.AllSettings()); err != nil {
			tempLogger.Error("Error merging profile", slog.String("profile", profileName), slog.Any("error", err))
			return s, tempLogger, fmt.Errorf("error merging profile '%s': %w", profileName, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for flagName, key := range flagKeys {
			flag := flags.Lookup(flagName)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				tempLogger.Error("Error binding flag", slog.String("flag", flagName), slog.Any("error", err))
				return s, tempLogger, fmt.Errorf("error binding flag '--%s': %w", flagName, err)
			}
		}
	}

	if err := v.Unmarshal(&s); err != nil {
		tempLogger.Error("Error unmarshalling configuration", slog.Any("error", err))
		return s, tempLogger, fmt.Errorf("%w: %w", workflow.ErrConfigValidation, err)
	}
	s.AppVersion = appVersion

	// Explicit boolean flags always win over file and env values.
	if flags != nil {
		if flags.Changed("verbose") {
			s.Verbose, _ = flags.GetBool("verbose")
		}
		if flags.Changed("no-lock") {
			s.DisableLock, _ = flags.GetBool("no-lock")
		}
		if flags.Changed("no-tui") {
			if noTui, _ := flags.GetBool("no-tui"); noTui {
				s.TuiEnabled = false
			}
		}
	}

	logLevel := slog.LevelInfo
	if s.Verbose {
		logLevel = slog.LevelDebug
	}
	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logHandler)
	s.Logger = logHandler

	if err := validateAndDeriveSettings(&s, logger); err != nil {
		return s, logger, err
	}

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", s.ConfigFilePath),
		slog.String("profile", s.ProfileName),
		slog.String("dataRoot", s.DataRoot),
		slog.Any("actors", s.Actors),
		slog.String("logLevel", logLevel.String()),
	)
	return s, logger, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dataRoot", DefaultDataRoot)
	v.SetDefault("actors", actors.Names())
	v.SetDefault("batchSize", workflow.DefaultBatchSize)
	v.SetDefault("concurrency", workflow.DefaultConcurrency)
	v.SetDefault("disableLock", workflow.DefaultDisableLock)
	v.SetDefault("databasePath", "")
	v.SetDefault("defaultEncoding", "")
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("metricsTextfile", "")
	v.SetDefault("tuiEnabled", DefaultTuiEnabled)
	v.SetDefault("verbose", DefaultVerbose)
	v.SetDefault("outputFormat", string(DefaultOutputFormat))
}

func isValidEnumValue[T ~string](value T, allowedValues []T) bool {
	return slices.Contains(allowedValues, value)
}

func validateAndDeriveSettings(s *Settings, logger *slog.Logger) error {
	fail := func(key string, value any, format string, args ...any) error {
		err := fmt.Errorf("%w: "+format, append([]any{workflow.ErrConfigValidation}, args...)...)
		logger.Error(err.Error(), slog.String("key", key), slog.Any("value", value))
		return err
	}

	if s.DataRoot == "" {
		return fail("dataRoot", s.DataRoot, "data root is required (--data-root)")
	}
	absRoot, err := filepath.Abs(s.DataRoot)
	if err != nil {
		return fail("dataRoot", s.DataRoot, "cannot resolve absolute data root '%s': %w", s.DataRoot, err)
	}
	s.DataRoot = absRoot

	if len(s.Actors) == 0 {
		return fail("actors", s.Actors, "at least one actor is required (--actor). Allowed: %v", actors.Names())
	}
	known := actors.Names()
	selected := make([]string, 0, len(s.Actors))
	for _, name := range s.Actors {
		name = strings.TrimSpace(name)
		if !isValidEnumValue(name, known) {
			return fail("actors", name, "unknown actor '%s' for key 'actors' (flag --actor). Allowed: %v", name, known)
		}
		if !slices.Contains(selected, name) {
			selected = append(selected, name)
		}
	}
	s.Actors = selected

	if s.BatchSize < 0 {
		return fail("batchSize", s.BatchSize, "invalid value '%d' for key 'batchSize' (flag --batch-size). Must be >= 0", s.BatchSize)
	}
	if s.Concurrency < 0 {
		return fail("concurrency", s.Concurrency, "invalid value '%d' for key 'concurrency' (flag --concurrency). Must be >= 0", s.Concurrency)
	}
	if s.Interval < 0 {
		return fail("interval", s.Interval, "invalid value '%s' for key 'interval' (flag --interval). Must be >= 0", s.Interval)
	}

	allowedOutputFormat := []OutputFormat{OutputFormatText, OutputFormatJSON}
	if !isValidEnumValue(s.OutputFormat, allowedOutputFormat) {
		return fail("outputFormat", s.OutputFormat, "invalid value '%s' for key 'outputFormat' (flag --output-format). Allowed: %v", s.OutputFormat, allowedOutputFormat)
	}

	if s.DefaultEncoding != "" && !requestfile.ValidEncoding(s.DefaultEncoding) {
		return fail("defaultEncoding", s.DefaultEncoding, "unknown encoding '%s' for key 'defaultEncoding' (flag --default-encoding)", s.DefaultEncoding)
	}

	for key, p := range map[string]*string{"databasePath": &s.DatabasePath, "metricsTextfile": &s.MetricsTextfile} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fail(key, *p, "cannot resolve absolute path '%s' for key '%s': %w", *p, key, err)
		}
		*p = abs
	}

	if s.Logger == nil {
		return fmt.Errorf("internal setup error: logger handler is nil")
	}
	return nil
}
