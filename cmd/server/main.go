package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/terragen/internal/api"
	"github.com/annel0/terragen/internal/cache"
	"github.com/annel0/terragen/internal/config"
	"github.com/annel0/terragen/internal/eventbus"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/observability"
	"github.com/annel0/terragen/internal/storage"
	"github.com/annel0/terragen/internal/terrain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $TERRAGEN_CONFIG)")
	flag.Parse()

	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🏔️ Запуск генератора ландшафтов terragen...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	consoleLevel := logging.INFO
	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		consoleLevel = level
		logging.SetDefaultLevels(level, logging.TRACE)
	}
	defer logging.GetLoggerManager().CloseAll()

	// Логгеры компонентов пишут в logs/<component>_*.log
	logging.GetLoggerManager().SetAllLevels(consoleLevel, logging.TRACE)
	terrainLogger := logging.GetTerrainLogger()
	apiLogger := logging.GetAPILogger()
	storageLogger := logging.GetStorageLogger()

	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	logging.Info("📡 Конфигурация сервера: REST API=%s, сетка по умолчанию %dx%d",
		restPort, cfg.Terrain.Width, cfg.Terrain.Height)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТЕЛЕМЕТРИЯ ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled)
	if err != nil {
		logging.Warn("⚠️ OpenTelemetry недоступен: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// === ХРАНИЛИЩЕ ===
	repo, err := openRepo(cfg, storageLogger)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища: %v", err)
	}

	var cacheMetrics func() *cache.CacheMetrics
	if redisURL := cfg.Cache.GetRedisURL(); redisURL != "" {
		redisCache, err := cache.NewRedisCache(&cache.CacheConfig{
			RedisURL:      redisURL,
			RedisPassword: cfg.Cache.Password,
			RedisDB:       cfg.Cache.DB,
			DefaultTTL:    time.Duration(cfg.Cache.TTLSeconds) * time.Second,
			Logger:        storageLogger,
		})
		if err != nil {
			logging.Warn("⚠️ Redis недоступен, кеш в памяти: %v", err)
			cached := cache.NewCachedTerrainRepo(repo, cache.NewMemoryCache(time.Duration(cfg.Cache.TTLSeconds)*time.Second), 0)
			repo, cacheMetrics = cached, cached.Metrics
		} else {
			cached := cache.NewCachedTerrainRepo(repo, redisCache, 0)
			repo, cacheMetrics = cached, cached.Metrics
		}
	}

	// === СОБЫТИЯ ===
	var bus eventbus.EventBus
	if natsURL := cfg.Events.GetNATSURL(); natsURL != "" {
		natsBus, err := eventbus.NewNATSBus(natsURL, cfg.Events.SubjectPrefix)
		if err != nil {
			logging.Warn("⚠️ NATS недоступен, события только локально: %v", err)
		} else {
			bus = natsBus
		}
	}
	if bus == nil {
		bus = eventbus.NewMemoryBus(256)
	}
	if _, err := eventbus.StartLoggingListener(ctx, bus, logging.GetEventsLogger()); err != nil {
		logging.Warn("⚠️ Не удалось подписать логгер событий: %v", err)
	}
	busMetrics, err := eventbus.NewMetricsExporter(bus, registry)
	if err != nil {
		log.Fatalf("❌ Ошибка регистрации метрик шины: %v", err)
	}
	busMetrics.Start(time.Second)

	// === СЕРВИС И REST API ===
	terrainMetrics, err := terrain.NewMetrics(registry)
	if err != nil {
		log.Fatalf("❌ Ошибка регистрации метрик генератора: %v", err)
	}

	service := terrain.NewService(repo,
		terrain.WithEventBus(bus),
		terrain.WithMetrics(terrainMetrics),
		terrain.WithServiceWorkers(cfg.Terrain.Workers),
		terrain.WithLogger(terrainLogger),
	)

	restServer, err := api.NewRestServer(api.Config{
		Port:         restPort,
		Service:      service,
		Defaults:     terrain.RequestFromConfig(cfg.Terrain),
		Registry:     registry,
		CacheMetrics: cacheMetrics,
		Logger:       apiLogger,
	})
	if err != nil {
		log.Fatalf("❌ Ошибка создания REST API: %v", err)
	}
	if err := restServer.Start(); err != nil {
		log.Fatalf("❌ Ошибка запуска REST API: %v", err)
	}

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   ❤️  Health check: http://localhost%s/health", restPort)
	logging.Info("💡 Пример: curl -X POST http://localhost%s/api/terrain -d '{\"width\":128,\"height\":128}'", restPort)

	<-ctx.Done()
	logging.Info("📡 Получен сигнал завершения, остановка...")

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := restServer.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	busMetrics.Stop()
	if err := bus.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия шины событий: %v", err)
	}
	if err := repo.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия хранилища: %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки OpenTelemetry: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
}

// openRepo открывает BadgerDB в data_path или хранилище в памяти, если путь пуст
func openRepo(cfg *config.Config, logger *logging.Logger) (storage.TerrainRepo, error) {
	dataPath := cfg.Storage.GetDataPath()
	if dataPath == "" {
		logger.Warn("⚠️ Каталог данных не задан, ландшафты хранятся в памяти")
		return storage.NewMemoryTerrainRepo(), nil
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, err
	}

	repo, err := storage.NewTerrainStorage(dataPath)
	if err != nil {
		return nil, err
	}
	logger.Info("💾 BadgerDB открыт: %s", dataPath)
	return repo, nil
}
