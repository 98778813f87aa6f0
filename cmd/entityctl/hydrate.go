package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-optimistic-cache/source"
	"github.com/goliatone/go-optimistic-cache/source/bunsource"
	"github.com/goliatone/go-optimistic-cache/source/redisfeed"
	"github.com/goliatone/go-optimistic-cache/store"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

// addMirrorFlags defines --driver and --dsn. They are bound to viper when the command
// runs, since several commands share the mirror.* keys.
func (a *app) addMirrorFlags(cmd *cobra.Command) {
	cmd.Flags().String("driver", "sqlite", "mirror driver: sqlite|postgres")
	cmd.Flags().String("dsn", "", "mirror data source name")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if err := a.v.BindPFlag("mirror.driver", cmd.Flags().Lookup("driver")); err != nil {
			return err
		}
		return a.v.BindPFlag("mirror.dsn", cmd.Flags().Lookup("dsn"))
	}
}

func (a *app) openMirror(ctx context.Context) (*bun.DB, error) {
	dsn := a.v.GetString("mirror.dsn")
	if dsn == "" {
		return nil, goerrors.New("mirror dsn is required (--dsn or mirror.dsn)", goerrors.CategoryValidation)
	}
	db, err := bunsource.Open(a.v.GetString("mirror.driver"), dsn)
	if err != nil {
		return nil, err
	}
	if err := bunsource.CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newMirrorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror <entities.yaml>",
		Short: "Load entities into the indexer mirror database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var entities []store.Entity
			if err := yaml.Unmarshal(data, &entities); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryValidation, "decode entities").
					WithMetadata(map[string]any{"path": args[0]})
			}

			db, err := a.openMirror(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			repo := bunsource.NewRepository(db)
			for _, e := range entities {
				if err := bunsource.SaveEntity(cmd.Context(), repo, e); err != nil {
					return err
				}
			}
			a.logger.Info("mirror loaded", "entities", len(entities))
			return nil
		},
	}
	a.addMirrorFlags(cmd)
	return cmd
}

func newHydrateCmd(a *app) *cobra.Command {
	var q source.Query

	cmd := &cobra.Command{
		Use:   "hydrate",
		Short: "Hydrate a store from the indexer mirror and print the entities",
		Long: "Runs one hydration query against the mirror database. With --redis-addr the command " +
			"then follows the live update channel and prints every merged update until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.openMirror(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			container, err := a.newContainer()
			if err != nil {
				return err
			}
			syncer := container.NewSynchronizer(bunsource.New(bunsource.NewRepository(db), a.logger))

			entities, err := syncer.Hydrate(ctx, q)
			if err != nil {
				return err
			}
			sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

			out := &documentWriter{enc: yaml.NewEncoder(cmd.OutOrStdout())}
			defer out.Close()
			if err := out.Write(entities); err != nil {
				return err
			}

			addr := a.v.GetString("feed.addr")
			if addr == "" {
				return nil
			}
			return a.follow(ctx, addr, &printingSink{next: syncer, out: out})
		},
	}

	cmd.Flags().StringVar(&q.Namespace, "namespace", "", "namespace to hydrate")
	cmd.Flags().StringVar(&q.Model, "model", "", "model to hydrate (requires --namespace)")
	cmd.Flags().StringSliceVar(&q.EntityIDs, "id", nil, "entity ids to hydrate")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "maximum number of entities")
	cmd.Flags().String("redis-addr", "", "follow live updates from this redis server")
	cmd.Flags().String("channel", "entity-updates", "live update channel")
	cmd.Flags().String("codec", "json", "live update codec: json|msgpack")
	_ = a.v.BindPFlag("feed.addr", cmd.Flags().Lookup("redis-addr"))
	_ = a.v.BindPFlag("feed.channel", cmd.Flags().Lookup("channel"))
	_ = a.v.BindPFlag("feed.codec", cmd.Flags().Lookup("codec"))
	a.addMirrorFlags(cmd)
	return cmd
}

func (a *app) follow(ctx context.Context, addr string, sink redisfeed.Sink) error {
	codec, err := codecByName(a.v.GetString("feed.codec"))
	if err != nil {
		return err
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	feed := redisfeed.New(client, a.v.GetString("feed.channel"), sink,
		redisfeed.WithCodec(codec),
		redisfeed.WithLogger(a.logger),
	)
	if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func codecByName(name string) (redisfeed.Codec, error) {
	switch name {
	case "", "json":
		return redisfeed.JSONCodec{}, nil
	case "msgpack":
		return redisfeed.MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (expected json|msgpack)", name)
	}
}

// documentWriter serializes YAML documents from the hydrate result and the feed goroutine.
type documentWriter struct {
	mu  sync.Mutex
	enc *yaml.Encoder
}

func (w *documentWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

func (w *documentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Close()
}

// printingSink forwards updates and prints the ones the store accepted.
type printingSink struct {
	next redisfeed.Sink
	out  interface{ Write(any) error }
}

func (s *printingSink) HandleUpdate(ctx context.Context, update store.Entity) (bool, error) {
	merged, err := s.next.HandleUpdate(ctx, update)
	if err != nil || !merged {
		return merged, err
	}
	return merged, s.out.Write(update)
}
