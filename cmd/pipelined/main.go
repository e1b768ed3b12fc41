// Package main is the entry point for the pipeline execution engine.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/go-github/v69/github"

	"github.com/nugget/pipelined/internal/api"
	"github.com/nugget/pipelined/internal/buildinfo"
	"github.com/nugget/pipelined/internal/config"
	"github.com/nugget/pipelined/internal/history"
	"github.com/nugget/pipelined/internal/httpkit"
	"github.com/nugget/pipelined/internal/manifest"
	"github.com/nugget/pipelined/internal/mqttsink"
	"github.com/nugget/pipelined/internal/node"
	"github.com/nugget/pipelined/internal/node/plugins"
	"github.com/nugget/pipelined/internal/node/plugins/branch"
	"github.com/nugget/pipelined/internal/node/plugins/cast"
	"github.com/nugget/pipelined/internal/node/plugins/sink"
	"github.com/nugget/pipelined/internal/node/plugins/source"
	"github.com/nugget/pipelined/internal/node/plugins/transform"
	"github.com/nugget/pipelined/internal/observer"
	"github.com/nugget/pipelined/internal/pipeline"
	"github.com/nugget/pipelined/internal/resource"
	"github.com/nugget/pipelined/internal/resource/kinds"
	"github.com/nugget/pipelined/internal/store"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() == 0 {
		printUsage()
		return
	}

	switch flag.Arg(0) {
	case "serve":
		runServe(logger, *configPath)
	case "init":
		dir := "."
		if flag.NArg() > 1 {
			dir = flag.Arg(1)
		}
		if err := runInit(os.Stdout, dir); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "status":
		runStatus(logger, *configPath)
	case "plugins":
		if flag.NArg() < 2 || flag.Arg(1) != "sync" {
			fmt.Fprintln(os.Stderr, "usage: pipelined plugins sync")
			os.Exit(1)
		}
		runPluginsSync(logger, *configPath)
	case "version":
		fmt.Println(buildinfo.String())
		for k, v := range buildinfo.BuildInfo() {
			fmt.Printf("  %-12s %s\n", k+":", v)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("pipelined - Pipeline execution engine with a versioned resource store")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve          Start the control API server")
	fmt.Println("  init [dir]     Initialize a working directory with example config")
	fmt.Println("  status         Query a running instance's status over HTTP")
	fmt.Println("  plugins sync   Refresh plugin catalog metadata from GitHub releases")
	fmt.Println("  version        Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

// pluginCatalog describes, for each registered node kind, the metadata
// the control API's /v1/nodes endpoint and plugin docs renderer serve.
// githubRepo, if non-empty, is attached to every entry so plugins sync
// can look up the engine's own release tag for all built-in kinds.
func pluginCatalog(githubRepo string) *manifest.Catalog {
	return manifest.NewCatalog(
		manifest.Entry{
			Kind:        source.Kind,
			Summary:     "Captures a frame from an image source into an image resource.",
			Description: "# source\n\nCaptures one frame per tick and publishes it as an `image.v1` resource.",
			SourceRepo:  githubRepo,
		},
		manifest.Entry{
			Kind:        transform.Kind,
			Summary:     "Applies a fixed-threshold binarization to an image resource.",
			Description: "# binarize\n\nReads an image resource and writes a thresholded copy.",
			SourceRepo:  githubRepo,
		},
		manifest.Entry{
			Kind:        cast.Kind,
			Summary:     "Projects a resource field through a named scalar transform.",
			Description: "# cast\n\nApplies one of a fixed set of scalar transforms (uppercase, lowercase, to_string, length, threshold) to a resource field.",
			SourceRepo:  githubRepo,
		},
		manifest.Entry{
			Kind:        sink.Kind,
			Summary:     "Counts ticks and exposes the running total as a number resource.",
			Description: "# counter\n\nIncrements a counter resource by one on every execute.",
			SourceRepo:  githubRepo,
		},
		manifest.Entry{
			Kind:        branch.Kind,
			Summary:     "Routes execution to one of two next nodes.",
			Description: "# branch\n\nPicks between true_index and false_index at random, taking true_index with the configured probability.",
			SourceRepo:  githubRepo,
		},
	)
}

func runServe(logger *slog.Logger, configPath string) {
	logger.Info("starting pipelined", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "branch", buildinfo.GitBranch, "built", buildinfo.BuildTime)

	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	logger.Info("config loaded", "path", cfgPath, "port", cfg.Listen.Port, "data_dir", cfg.DataDir)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	fileStore, err := store.NewLocal(cfg.Store.Dir, cfg.Store.BaseURL)
	if err != nil {
		logger.Error("failed to open file store", "dir", cfg.Store.Dir, "error", err)
		os.Exit(1)
	}

	hub := observer.New(cfg.Observer.QueueCapacity, time.Duration(cfg.Observer.SendTimeoutMS)*time.Millisecond, logger)

	var mqttSink *mqttsink.Sink
	if cfg.MQTT.Enabled {
		mqttSink = mqttsink.New(mqttsink.Config{
			BrokerURL:  cfg.MQTT.BrokerURL,
			ClientID:   cfg.MQTT.ClientID,
			TopicBase:  cfg.MQTT.TopicBase,
			InstanceID: cfg.MQTT.InstanceID,
		}, logger)
		if err := mqttSink.Start(context.Background()); err != nil {
			logger.Error("failed to start mqtt sink", "error", err)
			os.Exit(1)
		}
		hub.Subscribe("mqtt", mqttSink)
		logger.Info("mqtt sink enabled", "broker", cfg.MQTT.BrokerURL, "topic_base", cfg.MQTT.TopicBase)
	}

	var historyStore *history.Store
	if cfg.History.Enabled {
		db, err := sql.Open(cfg.History.Driver, cfg.History.Path)
		if err != nil {
			logger.Error("failed to open history database", "path", cfg.History.Path, "error", err)
			os.Exit(1)
		}

		historyStore, err = history.New(db)
		if err != nil {
			logger.Error("failed to create history store", "error", err)
			os.Exit(1)
		}
		defer historyStore.Close()
		logger.Info("history store opened", "path", cfg.History.Path, "driver", cfg.History.Driver)
	}

	build := func(creator *resource.Creator, registry *node.Registry) {
		plugins.RegisterAll(registry)
		kinds.RegisterAll(creator, fileStore, kinds.NewUnknownSerializers())
	}

	manager := pipeline.New(logger, fileStore, hub, build)

	catalog := pluginCatalog(cfg.Manifest.GitHubRepo)

	server := api.New(cfg.Listen.Address, cfg.Listen.Port, manager, hub, catalog, historyStore, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		_ = manager.Stop()
		if mqttSink != nil {
			_ = mqttSink.Stop(context.Background())
		}
		cancel()
		_ = server.Shutdown(context.Background())
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("pipelined stopped")
}

func runStatus(logger *slog.Logger, configPath string) {
	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	addr := cfg.Listen.Address
	if addr == "" {
		addr = "localhost"
	}
	url := fmt.Sprintf("http://%s:%d/v1/status", addr, cfg.Listen.Port)

	resp, err := httpkit.NewClient(httpkit.WithTimeout(5 * time.Second)).Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Fprintf(os.Stderr, "decode status: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(body)
}

func runPluginsSync(logger *slog.Logger, configPath string) {
	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	if cfg.Manifest.GitHubRepo == "" {
		fmt.Fprintln(os.Stderr, "manifest.github_repo is not configured")
		os.Exit(1)
	}

	catalog := pluginCatalog(cfg.Manifest.GitHubRepo)

	client := github.NewClient(httpkit.NewClient(httpkit.WithTimeout(15 * time.Second)))
	syncer := manifest.NewSyncer(client, logger)

	if err := syncer.Sync(context.Background(), catalog); err != nil {
		logger.Error("plugin sync failed", "error", err)
		os.Exit(1)
	}

	for _, e := range catalog.List() {
		fmt.Printf("%-12s %s (%s)\n", e.Kind, e.Summary, e.SourceTag)
	}
}
