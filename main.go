package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"salesagent/pkg/agent"
	"salesagent/pkg/catalog"
	"salesagent/pkg/channels"
	_ "salesagent/pkg/channels/autoload" // registers channel factories
	"salesagent/pkg/config"
	"salesagent/pkg/gateway"
	"salesagent/pkg/inventory"
	"salesagent/pkg/llm"
	_ "salesagent/pkg/llm/autoload" // registers LLM providers
	"salesagent/pkg/llm/ollama"
	"salesagent/pkg/monitor"
	"salesagent/pkg/retrieval"
	"salesagent/pkg/tools"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	configPath := flag.String("config", "config.json", "application config file")
	systemPath := flag.String("system", "system.json", "engine parameters file")
	seedPath := flag.String("seed", "", "JSON array of catalog entries to index into the SQLite catalog, then exit")
	flag.Parse()

	cfg, sys, err := config.Load(*configPath, *systemPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v\n", err)
	}

	monitor.SetupSlog(sys.LogLevel)
	monitor.PrintBanner()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	embedder, err := newEmbedder(cfg.Embedding, sys)
	if err != nil {
		log.Fatalf("❌ Failed to init embedder: %v\n", err)
	}

	if *seedPath != "" {
		if err := seedCatalog(ctx, cfg.Catalog, embedder, *seedPath); err != nil {
			log.Fatalf("❌ Seeding failed: %v\n", err)
		}
		return
	}

	// --- 1. Reasoning engine ---
	client, err := llm.NewFromConfig(cfg.LLM, sys)
	if err != nil {
		log.Fatalf("❌ Failed to init LLM client: %v\n", err)
	}

	// --- 2. Catalog + retrieval ---
	store, err := catalog.Open(ctx, cfg.Catalog)
	if err != nil {
		slog.Warn("Catalog store unavailable, searches will use fallback products", "type", cfg.Catalog.Type, "error", err)
		store = catalog.Unavailable(err)
	}
	defer store.Close()

	searchEngine := retrieval.NewEngine(store, embedder)

	// --- 3. Inventory ---
	var inv inventory.Adapter
	if httpInv, err := inventory.NewHTTPAdapter(inventory.Config{
		URL:               cfg.Inventory.URL,
		Token:             cfg.Inventory.Token,
		RequestsPerSecond: cfg.Inventory.RequestsPerSecond,
		Burst:             cfg.Inventory.Burst,
	}); err != nil {
		slog.Warn("Inventory lookups disabled", "error", err)
		inv = inventory.Disabled(err)
	} else {
		inv = httpInv
	}

	// --- 4. Tools ---
	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewSearchTool(searchEngine), tools.NewInventoryTool(inv)); err != nil {
		log.Fatalf("❌ Failed to register tools: %v\n", err)
	}

	// --- 5. Orchestrator ---
	engine := agent.NewAgentEngine(client, registry, cfg, sys, agent.WithLiveCatalog(searchEngine.Live()))

	// --- 6. Gateway ---
	gw, err := gateway.NewGatewayBuilder().
		WithMonitor(monitor.NewCLIMonitor()).
		WithChannel(channels.LoadFromConfig(cfg.Channels, sys)...).
		WithAgentEngine(engine).
		Build()
	if err != nil {
		log.Fatalf("Failed to build gateway: %v\n", err)
	}

	go func() {
		for next := range config.WatchSystemConfig(ctx, *systemPath) {
			monitor.SetLevel(next.LogLevel)
			slog.Info("Log level reloaded", "level", next.LogLevel)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal. Stopping services...")

	cancel()
	gw.StopAll()
	log.Println("Bye!")
}

// newEmbedder returns the query embedder selected by cfg.
func newEmbedder(cfg config.EmbeddingConfig, sys *config.SystemConfig) (retrieval.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = sys.OllamaDefaultURL
		}
		return ollama.NewEmbedder(cfg.Model, baseURL, sys.EmbeddingDimensions)
	default:
		return retrieval.NewHashEmbedder(sys.EmbeddingDimensions), nil
	}
}

// seedCatalog indexes the entries in path and upserts them into the
// SQLite catalog.
func seedCatalog(ctx context.Context, cfg config.CatalogConfig, embedder retrieval.Embedder, path string) error {
	if cfg.Type != "sqlite" {
		return fmt.Errorf("-seed requires catalog.type \"sqlite\", got %q", cfg.Type)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var entries []catalog.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return err
	}

	indexed, err := retrieval.Index(ctx, embedder, entries)
	if err != nil {
		return err
	}

	store, err := catalog.NewSQLiteStore(cfg.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Upsert(ctx, indexed); err != nil {
		return err
	}
	slog.Info("Catalog seeded", "entries", len(indexed), "path", cfg.Path)
	return nil
}
