package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-optimistic-cache/pkg/di"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "ENTITYCTL"

// app carries what every subcommand shares once the root pre-run has loaded config.
type app struct {
	v      *viper.Viper
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{
		v:      viper.New(),
		logger: slog.New(slog.DiscardHandler),
	}
	var cfgFile string

	root := &cobra.Command{
		Use:           "entityctl",
		Short:         "Inspect and replay the optimistic entity cache",
		Long:          "entityctl replays optimistic transaction scenarios against the entity store, hydrates it from an indexer mirror and derives entity ids.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(cfgFile); err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), a.v.GetString("log.level"), a.v.GetString("log.format"))
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml)")
	flags.String("log-level", "info", "log level: debug|info|warn|error")
	flags.String("log-format", "text", "log format: text|json")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))

	root.AddCommand(newReplayCmd(a), newIDCmd(), newHydrateCmd(a), newMirrorCmd(a))
	return root
}

func (a *app) loadConfig(path string) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	defaults := di.DefaultConfig()
	a.v.SetDefault("store.wait_timeout", defaults.Store.WaitTimeout)
	a.v.SetDefault("store.revert_policy", string(defaults.Store.RevertPolicy))
	a.v.SetDefault("cache.capacity", defaults.Cache.Capacity)
	a.v.SetDefault("cache.num_shards", defaults.Cache.NumShards)
	a.v.SetDefault("cache.ttl", defaults.Cache.TTL)
	a.v.SetDefault("cache.eviction_percentage", defaults.Cache.EvictionPercentage)
	a.v.SetDefault("key_prefix", defaults.KeyPrefix)

	if path == "" {
		return nil
	}
	a.v.SetConfigFile(path)
	if err := a.v.ReadInConfig(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "read config file").
			WithMetadata(map[string]any{"path": path})
	}
	return nil
}

// containerConfig decodes the store, cache and key_prefix sections.
func (a *app) containerConfig() (di.Config, error) {
	cfg := di.DefaultConfig()
	if err := a.v.Unmarshal(&cfg); err != nil {
		return di.Config{}, goerrors.Wrap(err, goerrors.CategoryValidation, "decode config")
	}
	return cfg, nil
}

func (a *app) newContainer() (*di.Container, error) {
	cfg, err := a.containerConfig()
	if err != nil {
		return nil, err
	}
	return di.NewContainer(cfg, di.WithLogger(a.logger))
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q (expected debug|info|warn|error)", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (expected text|json)", format)
	}
}
