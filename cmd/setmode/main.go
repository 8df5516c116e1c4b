package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"smartbot/internal/domain"
	"smartbot/internal/infrastructure/logger"
	"smartbot/internal/infrastructure/storage"
	"smartbot/internal/usecase"
)

type Config struct {
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

// Explicit strategy mode override. A manual pin sticks until the next
// explicit set; an auto mode hands control back to the bias engine.
func main() {
	manual := flag.Bool("manual", false, "pin the direction so bias recomputes cannot change it")
	flag.Parse()

	direction := domain.Strategy(flag.Arg(0))
	switch direction {
	case domain.StrategyLong, domain.StrategyShort, domain.StrategyBoth:
	default:
		fmt.Println("usage: setmode [-manual] <long|short|both>")
		os.Exit(2)
	}

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

	mode := domain.AutoMode(direction)
	if *manual {
		mode = domain.ManualMode(direction)
	}

	arbiter := usecase.NewStrategyArbiter(store, store, log)
	if err := arbiter.Set(context.Background(), mode); err != nil {
		fmt.Printf("Failed to set strategy mode: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Strategy mode set to %s\n", mode)
}
