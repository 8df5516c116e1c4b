package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"smartbot/internal/domain"
	"smartbot/internal/infrastructure/feed"
	"smartbot/internal/infrastructure/logger"
	"smartbot/internal/infrastructure/storage"
	"smartbot/internal/infrastructure/venue"
	"smartbot/internal/usecase"
)

type Config struct {
	Alpaca struct {
		TradingURL string `yaml:"trading_url"`
		DataURL    string `yaml:"data_url"`
	} `yaml:"alpaca"`
	Screener struct {
		URL string `yaml:"url"`
	} `yaml:"screener"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	apply := flag.Bool("apply", false, "persist the recommendation as the active strategy mode")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger("warn")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		fmt.Printf("Failed to open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	alpaca := venue.NewAlpacaAdapter(
		os.Getenv("APCA_API_KEY_ID"), os.Getenv("APCA_API_SECRET_KEY"),
		cfg.Alpaca.TradingURL, cfg.Alpaca.DataURL, "")
	screener := feed.NewYahooScreener(cfg.Screener.URL, store, log)
	classifier := usecase.NewClassifier(usecase.DefaultLongProfile)
	engine := usecase.NewBiasEngine(alpaca, screener, store, classifier, log)

	ctx := context.Background()
	strategy := engine.Recompute(ctx, domain.DecisionSourceOnDemand)

	components, err := store.ListComponents(ctx)
	if err != nil {
		fmt.Printf("Failed to list components: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Market bias check")
	fmt.Println("-----------------")
	for _, c := range components {
		fmt.Printf("%-12s value=%-6s score=%+d weight=%.2f\n", c.Component, c.LastValue, c.Score, c.Weight)
	}
	fmt.Printf("\nRecommendation: %s\n", strategy)

	if *apply {
		arbiter := usecase.NewStrategyArbiter(store, store, log)
		if err := arbiter.Load(ctx); err != nil {
			fmt.Printf("Failed to load strategy mode: %v\n", err)
			os.Exit(1)
		}
		if err := arbiter.Set(ctx, domain.AutoMode(strategy)); err != nil {
			fmt.Printf("Failed to apply strategy mode: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Applied strategy mode: %s\n", strategy)
	}
}
