package main

import (
	"context"
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

// Standalone momentum scanner: lists symbols up hard off the open and
// pressing their session high. Scans argv symbols when given, otherwise
// the screener output. Read-only, places no orders.
func main() {
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

	ctx := context.Background()
	symbols := os.Args[1:]
	if len(symbols) == 0 {
		symbols, err = screener.FetchCandidates(ctx, domain.StrategyBoth)
		if err != nil {
			fmt.Printf("Failed to fetch candidates: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Scanning %d symbols for momentum...\n\n", len(symbols))
	found := 0
	for _, symbol := range symbols {
		stats, err := usecase.FetchStats(ctx, alpaca, symbol)
		if err != nil {
			continue
		}
		if !usecase.MeetsMomentum(stats) {
			continue
		}
		found++
		change := ((stats.Current - stats.Open) / stats.Open) * 100
		distToHigh := ((stats.High - stats.Current) / stats.High) * 100
		fmt.Printf("%-6s current=%.2f change=%+.2f%% off_high=%.2f%%\n",
			stats.Symbol, stats.Current, change, distToHigh)
	}

	if found == 0 {
		fmt.Println("No momentum setups found")
	}
}
