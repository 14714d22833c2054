package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/songzhibin97/gkit/generator"
	"github.com/tidwall/pretty"

	"github.com/songzhibin97/jsonforge/config"
	"github.com/songzhibin97/jsonforge/llm"
	"github.com/songzhibin97/jsonforge/logger"
	"github.com/songzhibin97/jsonforge/rules"
	"github.com/songzhibin97/jsonforge/storage"
	"github.com/songzhibin97/jsonforge/validator"
	"github.com/songzhibin97/jsonforge/workflow"
)

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// app owns everything a convergence run needs and how to release it.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	engine  *workflow.Engine
	closers []func() error
}

func newApp(ctx context.Context) (_ *app, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{cfg: cfg, log: logger.NewZapAdapter(zl)}
	a.closers = append(a.closers, func() error {
		_ = zl.Sync()
		return nil
	})
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	v, err := validator.NewFromName(cfg.Validation.Backend)
	if err != nil {
		return nil, err
	}
	policy, err := rules.NewPolicy(rules.NewExprEvaluator(), cfg.Engine.CheapFixRule)
	if err != nil {
		return nil, err
	}
	collab, err := llm.NewFromConfig(ctx, cfg.LLM, a.log.With(map[string]interface{}{"component": "llm"}))
	if err != nil {
		return nil, err
	}

	opts := []workflow.Option{
		workflow.WithLogger(a.log),
		workflow.WithValidator(v),
		workflow.WithPolicy(policy),
		workflow.WithMaxRounds(cfg.Engine.MaxRounds),
		workflow.WithRetries(cfg.Engine.CollaboratorRetries, cfg.Engine.RetryDelay()),
		workflow.WithCallTimeout(cfg.Engine.CallTimeout()),
		workflow.WithParallelism(cfg.Batch.Parallelism),
	}
	if cfg.Storage.Driver == "redis" {
		store, err := storage.NewRedisStorage(storage.RedisOptions{
			Addr:     cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			PoolSize: cfg.Storage.Redis.PoolSize,
			Prefix:   cfg.Storage.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		opts = append(opts, workflow.WithStorage(store))
	}

	snowflake := generator.NewSnowflake(time.Now().Add(-1*time.Second), 1)
	engine, err := workflow.NewEngine(snowflake, collab, opts...)
	if err != nil {
		return nil, err
	}
	a.engine = engine
	a.closers = append(a.closers, func() error {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return engine.Stop(stopCtx)
	})

	if cfg.Metrics.Enabled {
		a.serveMetrics(cfg.Metrics.Address)
	}
	return a, nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("metrics server stopped", map[string]interface{}{"address": addr})
		}
	}()
	a.log.Info("serving metrics", map[string]interface{}{"address": addr})
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// readInput reads a file, or stdin for "-".
func readInput(path string) (string, error) {
	if path == "" {
		return "", errors.New("no input file given")
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return printRaw(w, string(data))
}

func printRaw(w io.Writer, jsonText string) error {
	out := []byte(jsonText)
	if compact {
		out = pretty.Ugly(out)
	} else {
		out = pretty.Pretty(out)
	}
	_, err := fmt.Fprintln(w, strings.TrimRight(string(out), "\n"))
	return err
}
