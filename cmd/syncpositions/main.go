package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"smartbot/internal/infrastructure/storage"
	"smartbot/internal/infrastructure/venue"
)

type Config struct {
	Alpaca struct {
		TradingURL string `yaml:"trading_url"`
		DataURL    string `yaml:"data_url"`
	} `yaml:"alpaca"`
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

// Rebuilds the local positions table from the venue account. Run after a
// crash, a partially filled entry or any tracking mismatch.
func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		fmt.Printf("Failed to open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	alpaca := venue.NewAlpacaAdapter(
		os.Getenv("APCA_API_KEY_ID"), os.Getenv("APCA_API_SECRET_KEY"),
		cfg.Alpaca.TradingURL, cfg.Alpaca.DataURL, "")

	ctx := context.Background()
	positions, err := alpaca.GetPositions(ctx)
	if err != nil {
		fmt.Printf("Failed to fetch venue positions: %v\n", err)
		os.Exit(1)
	}

	if err := store.ReplacePositions(ctx, positions); err != nil {
		fmt.Printf("Failed to replace positions: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Synced %d position(s) from venue\n", len(positions))
	for _, pos := range positions {
		fmt.Printf("  %-6s %-5s qty=%d entry=%.2f current=%.2f\n",
			pos.Symbol, pos.Side, pos.Qty, pos.EntryPrice, pos.CurrentPrice)
	}
}
