// Command smkrecon runs the reconciliation pass over a training log database
// and prints the run report as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/lemmego/smklog"
	"github.com/lemmego/smklog/domain"
	"github.com/lemmego/smklog/internal/config"
	"github.com/lemmego/smklog/internal/logger"
	"github.com/lemmego/smklog/reconcile"
	"github.com/lemmego/smklog/repos"
	"github.com/lemmego/smklog/smkredis"

	_ "github.com/lemmego/smklog/smkbun"
	_ "github.com/lemmego/smklog/smkgorm"
	_ "github.com/lemmego/smklog/smkmongo"
)

func main() {
	configPath := flag.String("config", "smk.yaml", "YAML settings file (skipped when missing)")
	envFile := flag.String("env", ".env", "dotenv file loaded before the environment is read")
	phase := flag.String("phase", "all", "phase to run: all, schema, modules, names or migrate")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(settings.Log.Mode, settings.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, settings, log, *phase, os.Stdout)
	stop()
	if err != nil {
		log.Error("smkrecon failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
	log.Sync()
}

func run(ctx context.Context, settings config.Settings, log *logger.Logger, phase string, out io.Writer) error {
	provider, err := smklog.NewProvider(settings.Database.Provider, settings.Database.Config)
	if err != nil {
		return err
	}
	defer provider.Close()

	if err := provider.Health(); err != nil {
		return err
	}
	info := provider.ProviderInfo()
	log.Info("storage ready", "provider", info.Name, "dialect", string(info.Dialect), "features", info.Features)

	if settings.Database.CreateSchema {
		if err := provider.CreateSchema(ctx, domain.Models()...); err != nil {
			return err
		}
	}

	opts, client, err := cacheOptions(ctx, settings.Cache)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	store := repos.NewStore(provider.Database(), provider.Sequences(), opts...)
	if err := store.Init(ctx); err != nil {
		return err
	}

	engine := reconcile.NewEngine(store, provider.SchemaProbe(repos.KnownTables()), log, settings.Reconcile)
	result, err := runPhase(ctx, engine, phase)
	if result != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil && err == nil {
			err = encErr
		}
	}
	return err
}

func runPhase(ctx context.Context, engine *reconcile.Engine, phase string) (interface{}, error) {
	switch phase {
	case "all", "":
		report, err := engine.Run(ctx)
		return report, err
	case "schema":
		return engine.BackfillSchema(ctx), nil
	case "modules":
		res, err := engine.InferModules(ctx)
		return res, err
	case "names":
		res, err := engine.RepairNames(ctx)
		return res, err
	case "migrate":
		res, err := engine.MigrateLegacy(ctx)
		return res, err
	}
	return nil, smklog.InvalidArgument("phase", fmt.Sprintf("unknown phase %q", phase))
}

// cacheOptions backs the store's caches with Redis when configured.
func cacheOptions(ctx context.Context, s config.CacheSettings) ([]repos.Option, *redis.Client, error) {
	if s.Backend != "redis" {
		return nil, nil, nil
	}
	client, err := smkredis.Connect(ctx, smkredis.Options{
		Addr:     s.Addr,
		Password: s.Password,
		DB:       s.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	return []repos.Option{
		repos.WithModuleCache(smkredis.New[[]domain.Module](client, s.Prefix+"modules:", s.TTL)),
		repos.WithSpecializationCache(smkredis.New[domain.Specialization](client, s.Prefix+"specializations:", s.TTL)),
	}, client, nil
}
