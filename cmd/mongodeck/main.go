package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/redis/go-redis/v9"

	"github.com/saurav-z/mongodeck"
	"github.com/saurav-z/mongodeck/monitoring"
	"github.com/saurav-z/mongodeck/web"
)

type serverConfig struct {
	Addr               string        `koanf:"addr"`
	MetricsPort        int           `koanf:"metrics_port"`
	RedisAddr          string        `koanf:"redis_addr"`
	RedisPassword      string        `koanf:"redis_password"`
	RedisDB            int           `koanf:"redis_db"`
	SessionTTL         time.Duration `koanf:"session_ttl"`
	DefaultFindLimit   int64         `koanf:"default_find_limit"`
	MetricsHistorySize int           `koanf:"metrics_history_size"`
	ImportBatchSize    int           `koanf:"import_batch_size"`
	ImportConcurrency  int           `koanf:"import_concurrency"`
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		Addr:               ":8080",
		MetricsPort:        9090,
		SessionTTL:         24 * time.Hour,
		DefaultFindLimit:   mongodeck.DefaultFindLimit,
		MetricsHistorySize: 1000,
		ImportBatchSize:    500,
		ImportConcurrency:  4,
	}
}

// loadConfig 加载配置：缺省值 < 配置文件（MONGODECK_CONFIG 指定路径）< 环境变量
func loadConfig() (serverConfig, error) {
	cfg := defaultServerConfig()
	k := koanf.New(".")

	if path := os.Getenv("MONGODECK_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, err
		}
	}

	if err := k.Load(env.Provider("MONGODECK_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "MONGODECK_"))
	}), nil); err != nil {
		return cfg, err
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	client := mongodeck.NewAdminClient(mongodeck.ClientConfig{
		DefaultFindLimit:   cfg.DefaultFindLimit,
		EnableMetrics:      true,
		MetricsHistorySize: cfg.MetricsHistorySize,
		ImportBatchSize:    cfg.ImportBatchSize,
		ImportConcurrency:  cfg.ImportConcurrency,
	})

	metrics := monitoring.NewPrometheusMetrics()
	client.WithMetricsReporter(metrics)
	if err := metrics.StartServer(cfg.MetricsPort); err != nil {
		log.Fatalf("start metrics server: %v", err)
	}

	var sessions web.SessionStore
	if cfg.RedisAddr != "" {
		sessions = web.NewRedisSessionStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), cfg.SessionTTL)
	} else {
		sessions = web.NewMemorySessionStore()
	}

	server := web.NewServer(client, sessions)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("mongodeck listening on %s", cfg.Addr)
		errCh <- server.Start(cfg.Addr)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server: %v", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown http server: %v", err)
	}
	if err := metrics.StopServer(); err != nil {
		log.Printf("stop metrics server: %v", err)
	}
	if err := client.Close(shutdownCtx); err != nil {
		log.Printf("close connections: %v", err)
	}
}
