package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"smartbot/internal/domain"
	"smartbot/internal/infrastructure/feed"
	"smartbot/internal/infrastructure/logger"
	"smartbot/internal/infrastructure/notify"
	"smartbot/internal/infrastructure/storage"
	"smartbot/internal/infrastructure/venue"
	"smartbot/internal/metrics"
	"smartbot/internal/usecase"
)

type Config struct {
	Alpaca struct {
		TradingURL string `yaml:"trading_url"`
		DataURL    string `yaml:"data_url"`
		StreamURL  string `yaml:"stream_url"`
	} `yaml:"alpaca"`
	Screener struct {
		URL string `yaml:"url"`
	} `yaml:"screener"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Schedule struct {
		EntryIntervalSec   int    `yaml:"entry_interval_sec"`
		MonitorIntervalSec int    `yaml:"monitor_interval_sec"`
		BiasIntervalSec    int    `yaml:"bias_interval_sec"`
		CloseTime          string `yaml:"close_time"`
	} `yaml:"schedule"`
	Email struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		From string `yaml:"from"`
		To   string `yaml:"to"`
	} `yaml:"email"`
	TightSetup bool `yaml:"tight_setup"`
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
	// Secrets come from the environment; .env is optional.
	_ = godotenv.Load()

	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewFileLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	apiKey := os.Getenv("APCA_API_KEY_ID")
	apiSecret := os.Getenv("APCA_API_SECRET_KEY")
	if apiKey == "" || apiSecret == "" {
		log.Fatal("APCA_API_KEY_ID and APCA_API_SECRET_KEY must be set")
	}

	alpaca := venue.NewAlpacaAdapter(apiKey, apiSecret,
		cfg.Alpaca.TradingURL, cfg.Alpaca.DataURL, cfg.Alpaca.StreamURL)
	screener := feed.NewYahooScreener(cfg.Screener.URL, store, log)

	var notifier domain.Notifier = notify.NopNotifier{}
	if cfg.Email.Host != "" {
		notifier = notify.NewEmailNotifier(cfg.Email.Host, cfg.Email.Port,
			os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"),
			cfg.Email.From, cfg.Email.To, log)
	}

	longProfile := usecase.DefaultLongProfile
	if cfg.TightSetup {
		longProfile = usecase.TightLongProfile
	}
	classifier := usecase.NewClassifier(longProfile)

	biasEngine := usecase.NewBiasEngine(alpaca, screener, store, classifier, log)
	arbiter := usecase.NewStrategyArbiter(store, store, log)
	manager := usecase.NewPositionManager(alpaca, store, store, notifier, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Live trade prints refresh tracked prices between monitor ticks. The
	// manager subscribes every tracked symbol (rehydrated or newly entered);
	// the adapter dials on the first subscription.
	if cfg.Alpaca.StreamURL != "" {
		alpaca.OnTradeUpdate(func(symbol string, price float64) {
			manager.UpdateQuote(ctx, symbol, price)
		})
		manager.AttachStream(alpaca)
	}

	if err := arbiter.Load(ctx); err != nil {
		log.Error("Failed to load strategy mode", zap.Error(err))
	}
	if err := manager.Rehydrate(ctx); err != nil {
		log.Error("Failed to rehydrate positions", zap.Error(err))
	}

	if cfg.Metrics.Addr != "" {
		metrics.Serve(cfg.Metrics.Addr)
	}

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorConfig{
		EntryInterval:   time.Duration(cfg.Schedule.EntryIntervalSec) * time.Second,
		MonitorInterval: time.Duration(cfg.Schedule.MonitorIntervalSec) * time.Second,
		BiasInterval:    time.Duration(cfg.Schedule.BiasIntervalSec) * time.Second,
		CloseTime:       cfg.Schedule.CloseTime,
	}, classifier, biasEngine, arbiter, manager, screener, alpaca, store, log)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Info("Shutting down...")
		cancel()
	}()

	log.Info("Bot started",
		zap.String("mode", string(arbiter.Mode())),
		zap.Int("open_positions", len(manager.OpenSymbols())))

	if err := orchestrator.Run(ctx); err != nil {
		log.Fatal("Orchestrator failed", zap.Error(err))
	}
	log.Info("Session complete")
}
