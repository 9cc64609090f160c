// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the esgf-harvest CLI. It searches ESGF
// catalog indices, reconciles replicas into logical datasets, and fetches
// their files from mirrors with checksum verification.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/esgf-harvest/internal/logging"
	"github.com/pdiddy/esgf-harvest/internal/secrets"
	"github.com/pdiddy/esgf-harvest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from the secrets directory at startup.
var loadedSecrets map[string]string

var rootCmd = &cobra.Command{
	Use:   "esgf-harvest",
	Short: "Search ESGF indices and fetch verified dataset files",
	Long: `esgf-harvest queries one or more ESGF catalog indices, reconciles the
replicas they report into one row per logical dataset at its newest version,
and downloads the dataset files from the mirrors each index lists.

Every downloaded file is verified against its published checksum before it
appears in the cache.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		logger := logging.New(logging.Config{
			Level:  viper.GetString("log_level"),
			Format: viper.GetString("log_format"),
		})
		ctx := logging.WithLogger(cmd.Context(), logger)
		cmd.SetContext(ctx)

		if f := viper.ConfigFileUsed(); f != "" {
			logger.Debug().Str("file", f).Msg("using config file")
		}

		s, err := secrets.Load(ctx, viper.GetString("secrets_dir"))
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./esgf-harvest.yaml or ~/.config/esgf-harvest/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets", "directory of credential files")
	rootCmd.PersistentFlags().String("catalog", "", "SQLite ledger path")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("secrets_dir", rootCmd.PersistentFlags().Lookup("secrets-dir"))
	viper.BindPFlag("catalog.path", rootCmd.PersistentFlags().Lookup("catalog"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("esgf-harvest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "esgf-harvest"))
		}
	}

	setDefaults(types.DefaultPipelineConfig())

	viper.SetEnvPrefix("ESGF_HARVEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfgFile != "" {
			fmt.Fprintln(os.Stderr, "warning: reading config:", err)
		}
	}
}

// setDefaults registers every config key so environment variables can
// override keys that no config file mentions.
func setDefaults(d types.PipelineConfig) {
	viper.SetDefault("log_level", d.LogLevel)
	viper.SetDefault("log_format", d.LogFormat)
	viper.SetDefault("index.timeout", d.Index.Timeout)
	viper.SetDefault("index.user_agent", d.Index.UserAgent)
	viper.SetDefault("index.endpoints", d.Index.Endpoints)
	viper.SetDefault("index.distrib", d.Index.Distrib)
	viper.SetDefault("index.limit", d.Index.Limit)
	viper.SetDefault("index.max_retries", d.Index.MaxRetries)
	viper.SetDefault("retrieval.timeout", d.Retrieval.Timeout)
	viper.SetDefault("retrieval.user_agent", d.Retrieval.UserAgent)
	viper.SetDefault("retrieval.cache_dir", d.Retrieval.CacheDir)
	viper.SetDefault("retrieval.data_root", d.Retrieval.DataRoot)
	viper.SetDefault("retrieval.workers", d.Retrieval.Workers)
	viper.SetDefault("retrieval.protocol", d.Retrieval.Protocol)
	viper.SetDefault("catalog.path", d.Catalog.Path)
}

// loadConfig decodes the merged flags, environment, and config file into a
// PipelineConfig.
func loadConfig() (types.PipelineConfig, error) {
	cfg := types.DefaultPipelineConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
