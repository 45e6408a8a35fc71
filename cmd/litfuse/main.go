package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/litfuse/litfuse/internal/circuit"
	"github.com/litfuse/litfuse/internal/citegraph"
	"github.com/litfuse/litfuse/internal/config"
	"github.com/litfuse/litfuse/internal/enrich"
	"github.com/litfuse/litfuse/internal/entity"
	"github.com/litfuse/litfuse/internal/landmark"
	"github.com/litfuse/litfuse/internal/logging"
	"github.com/litfuse/litfuse/internal/models"
	"github.com/litfuse/litfuse/internal/pipeline"
	"github.com/litfuse/litfuse/internal/providers"
	"github.com/litfuse/litfuse/internal/query"
	"github.com/litfuse/litfuse/internal/ratelimit"
	"github.com/litfuse/litfuse/internal/search"
	"github.com/litfuse/litfuse/internal/telemetry"
	"github.com/litfuse/litfuse/internal/timeline"
	"github.com/litfuse/litfuse/internal/tools"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "litfuse",
	Short:   "litfuse - biomedical literature search aggregator",
	Long:    `litfuse federates PubMed, Europe PMC, OpenAlex, Semantic Scholar and friends behind one deduplicated, ranked search surface with citation graphs, timelines and declarative pipelines.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(toolsCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON-RPC tool server",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("litfuse %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tool surface",
	Run: func(cmd *cobra.Command, args []string) {
		executor, _, cleanup, err := buildExecutor()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		for _, t := range executor.ListTools() {
			fmt.Printf("%-26s %s\n", t.Name, t.Description)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// providerLimits are the default per-provider token buckets. PubMed moves
// from the anonymous 3 req/s to 10 req/s when an NCBI API key is present.
func providerLimits(cfg *config.Config) map[string]ratelimit.Limit {
	pubmedRate := 3.0
	if cfg.NCBIAPIKey != "" {
		pubmedRate = 10.0
	}
	return map[string]ratelimit.Limit{
		string(models.ProviderPubMed):          {Rate: pubmedRate, Burst: int(pubmedRate)},
		string(models.ProviderEuropePMC):       {Rate: 5, Burst: 5},
		string(models.ProviderOpenAlex):        {Rate: 10, Burst: 10},
		string(models.ProviderSemanticScholar): {Rate: 1, Burst: 1},
		string(models.ProviderCrossref):        {Rate: 2, Burst: 2},
		string(models.ProviderICite):           {Rate: 3, Burst: 3},
		string(models.ProviderUnpaywall):       {Rate: 10, Burst: 10},
		string(models.ProviderPubTator):        {Rate: 3, Burst: 3},
		string(models.ProviderBioRxiv):         {Rate: 1, Burst: 1},
		string(models.ProviderClinicalTrials):  {Rate: 3, Burst: 3},
	}
}

// buildExecutor wires the full dependency graph and returns the tool
// executor, the loaded config, and a cleanup function.
func buildExecutor() (*tools.Executor, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "litfuse",
	})

	limiters := ratelimit.NewRegistry(providerLimits(cfg))
	breakers := circuit.NewRegistry(circuit.DefaultConfig())
	deps := providers.NewDeps(limiters, breakers)

	pubmed := providers.NewPubMed(deps, cfg.NCBIAPIKey)
	europepmc := providers.NewEuropePMC(deps)
	openalex := providers.NewOpenAlex(deps, cfg.ContactEmail)
	semantic := providers.NewSemanticScholar(deps, cfg.SemanticAPIKey)
	crossref := providers.NewCrossref(deps, cfg.ContactEmail)
	icite := providers.NewICite(deps)
	unpaywall := providers.NewUnpaywall(deps, cfg.ContactEmail)
	pubtator := providers.NewPubTator(deps)
	biorxiv := providers.NewBioRxiv(deps)
	trials := providers.NewClinicalTrials(deps)

	registry := providers.NewAdapterRegistry()
	registry.Register(pubmed)
	registry.Register(europepmc)
	registry.Register(openalex)
	registry.Register(semantic)
	registry.Register(crossref)
	registry.Register(biorxiv)
	registry.Register(trials)

	resolver := entity.NewResolver(pubtator, cfg.CacheSize, cfg.CacheTTL)
	analyzer := query.NewAnalyzer(resolver)
	enhancer := query.NewEnhancer()

	enricher := enrich.NewEnricher(icite, unpaywall)
	dispatcher := search.NewDispatcher(registry, cfg.ProviderTimeout, cfg.GlobalTimeout)
	relaxer := search.NewRelaxer(dispatcher, cfg.RelaxMinimum)
	svc := search.NewService(analyzer, dispatcher, relaxer, enricher,
		search.DedupStrategy(cfg.DedupStrategy))

	store := pipeline.NewStore(cfg.WorkspaceStoreRoot(), cfg.GlobalStoreRoot())
	if err := store.Watch(); err != nil {
		log.Warn().Err(err).Msg("Pipeline store watch unavailable, saved-pipeline changes need a restart")
	}
	pipelines := pipeline.NewExecutor(pipeline.Deps{
		Search:   svc,
		Enhancer: enhancer,
		Analyzer: analyzer,
		Registry: registry,
		Enricher: enricher,
	})

	executor := tools.NewExecutor(tools.Deps{
		Search:    svc,
		Analyzer:  analyzer,
		Enhancer:  enhancer,
		Registry:  registry,
		Enricher:  enricher,
		Metrics:   icite,
		Fulltext:  providers.NewFulltext(deps, unpaywall),
		Graphs:    citegraph.NewBuilder(registry, models.ProviderPubMed),
		Timelines: timeline.NewBuilder(),
		Landmarks: landmark.NewScorer(cfg.LandmarkVelocityCap),
		Pipelines: pipelines,
		Store:     store,
	})

	cleanup := func() {
		store.Close()
	}
	return executor, cfg, cleanup, nil
}

func runServer() {
	// Baseline logger for early startup; re-initialized from config below.
	logging.Init(logging.Config{Format: "auto", Level: "info", Component: "litfuse"})

	executor, cfg, cleanup, err := buildExecutor()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	defer cleanup()

	log.Info().Str("version", Version).Msg("Starting litfuse aggregator")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startMetricsServer(ctx, cfg.MetricsAddr)

	srv := tools.NewServer(cfg.ListenAddr, executor)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start tool server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	cancel()
	log.Info().Msg("Server stopped")
}

// startMetricsServer exposes Prometheus metrics on its own listener so the
// tool surface and operational scrape traffic never share a port.
func startMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}
