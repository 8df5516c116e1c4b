package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"smartbot/internal/infrastructure/logger"
	"smartbot/internal/infrastructure/notify"
	"smartbot/internal/infrastructure/storage"
	"smartbot/internal/infrastructure/venue"
	"smartbot/internal/usecase"
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

// Manual kill switch: liquidate every tracked position immediately.
func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger("info")
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
	manager := usecase.NewPositionManager(alpaca, store, store, notify.NopNotifier{}, log)

	ctx := context.Background()
	if err := manager.Rehydrate(ctx); err != nil {
		fmt.Printf("Failed to load positions: %v\n", err)
		os.Exit(1)
	}

	symbols := manager.OpenSymbols()
	if len(symbols) == 0 {
		fmt.Println("No open positions")
		return
	}

	fmt.Printf("Closing %d position(s): %v\n", len(symbols), symbols)
	manager.CloseAll(ctx, "End of day")

	if remaining := manager.OpenSymbols(); len(remaining) > 0 {
		fmt.Printf("Still open (check retry queue or venue): %v\n", remaining)
		os.Exit(1)
	}
	fmt.Println("All positions closed")
}
