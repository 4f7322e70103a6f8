package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kinegraph/internal/config"
	"kinegraph/internal/generator"
	"kinegraph/internal/logging"
	"kinegraph/internal/pipeline"
	"kinegraph/internal/screener"
	"kinegraph/internal/storage"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "kinegraph",
		Short: "Clinical knowledge graph engine for movement compensation research",
	}
	cfgPath string
	dbPath  string
	query   string
	limit   int
	every   time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the SQLite database (overrides the config)")

	for _, cmd := range []*cobra.Command{cycleCmd, screenCmd, syncCmd} {
		cmd.Flags().StringVarP(&query, "query", "q", "", "Search query (empty runs the standing compensation search)")
		cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum accepted papers (0 uses the configured cap)")
	}
	cycleCmd.Flags().DurationVar(&every, "every", 0, "Repeat the cycle on this interval until interrupted")

	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(screenCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statsCmd)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	return cfg
}

func initStore(cfg *config.Config) *storage.SQLiteStore {
	store, err := storage.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	return store
}

func newScreener(cfg *config.Config) *screener.Screener {
	logger := logging.New(cfg.Log.Level)
	return screener.New(screener.NewClient(cfg.Screener, logger), cfg.Screener, logger)
}

func newPipeline(cfg *config.Config, store storage.Store) *pipeline.Pipeline {
	return pipeline.New(newScreener(cfg), store, cfg, logging.New(cfg.Log.Level))
}

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run a full research cycle: screen, analyze, build, persist, render",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := initStore(cfg)
		defer store.Close()

		p := newPipeline(cfg, store)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if every <= 0 {
			if _, err := p.Cycle(ctx, query, limit); err != nil {
				log.Fatalf("Research cycle failed: %v", err)
			}
			return
		}
		runAutomated(ctx, p, cfg)
	},
}

// runAutomated repeats the research cycle on a fixed interval until the
// process is interrupted. Individual cycle failures are logged and the
// schedule keeps going.
func runAutomated(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("STARTING AUTOMATED COMPENSATION RESEARCH SYSTEM")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Vault Location: %s\n", cfg.Vault.Dir)
	fmt.Printf("Schedule: Every %s\n", every)
	fmt.Println("Focus: Compensation mechanisms via 5WHY methodology")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Println("Running initial research cycle...")
	if _, err := p.Cycle(ctx, query, limit); err != nil {
		log.Printf("Research cycle failed: %v", err)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nSystem stopped by user")
			return
		case <-ticker.C:
			if _, err := p.Cycle(ctx, query, limit); err != nil {
				log.Printf("Research cycle failed: %v", err)
			}
		}
	}
}

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen the literature without touching the graph",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		scr := newScreener(cfg)

		fmt.Println("🔍 Screening for compensation papers...")
		res, err := scr.Screen(context.Background(), query, limit)
		if err != nil {
			log.Fatalf("Screening failed: %v", err)
		}

		fmt.Printf("📊 %d found, %d passed field filter, %d passed quality, %d accepted\n",
			res.Found, res.FieldPass, res.QualityPass, len(res.Papers))
		for i, p := range res.Papers {
			fmt.Printf("%2d. [%.2f] %s (%s, %d)\n", i+1, p.Quality.Overall, p.Title, p.Journal, p.Year)
		}
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the graph and vault from the stored paper corpus",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := initStore(cfg)
		defer store.Close()

		p := newPipeline(cfg, store)
		if _, err := p.Rebuild(context.Background()); err != nil {
			log.Fatalf("Rebuild failed: %v", err)
		}
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render the research vault from the stored graph",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := initStore(cfg)
		defer store.Close()

		ctx := context.Background()
		fmt.Println("🔄 Loading stored knowledge graph...")
		g, err := store.LoadGraph(ctx)
		if err != nil {
			log.Fatalf("Failed to load graph: %v", err)
		}
		if len(g.Nodes) == 0 {
			fmt.Println("📭 Stored graph is empty - run 'kinegraph cycle' first.")
			return
		}
		papers, err := store.Papers(ctx)
		if err != nil {
			log.Fatalf("Failed to load papers: %v", err)
		}

		logger := logging.New(cfg.Log.Level)
		gen := generator.New(cfg.Vault.Dir, logger)
		if err := gen.Generate(g, pipeline.PriorityAreas(papers, g)); err != nil {
			log.Fatalf("Failed to generate vault: %v", err)
		}
		fmt.Printf("✅ Vault generated in '%s' (%d nodes, %d connections).\n",
			cfg.Vault.Dir, len(g.Nodes), len(g.Edges))
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Screen for new papers and fold them into the graph incrementally",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := initStore(cfg)
		defer store.Close()

		ctx := context.Background()
		p := newPipeline(cfg, store)

		fmt.Println("🔄 Restoring pipeline state from stored papers...")
		if err := p.Restore(ctx); err != nil {
			log.Fatalf("Failed to restore state: %v", err)
		}

		fmt.Println("🔍 Screening for new compensation papers...")
		res, err := newScreener(cfg).Screen(ctx, query, limit)
		if err != nil {
			log.Fatalf("Screening failed: %v", err)
		}

		if _, err := p.Sync(ctx, res.Papers); err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print corpus and graph statistics from the store",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := initStore(cfg)
		defer store.Close()

		stats, err := store.Stats(context.Background())
		if err != nil {
			log.Fatalf("Failed to read stats: %v", err)
		}

		fmt.Println("📊 Knowledge Graph Statistics")
		fmt.Printf("   Papers:         %d\n", stats.Papers)
		fmt.Printf("   Nodes:          %d\n", stats.Nodes)
		fmt.Printf("   Connections:    %d\n", stats.Edges)
		fmt.Printf("   Type conflicts: %d\n", stats.Conflicts)
		fmt.Printf("   Mean strength:  %.3f\n", stats.MeanStrength)
		if stats.LastRun != nil {
			fmt.Printf("   Last run:       %s at %s (%d papers accepted)\n",
				stats.LastRun.Kind,
				stats.LastRun.FinishedAt.Local().Format("2006-01-02 15:04"),
				stats.LastRun.PapersAccepted)
		}
	},
}
