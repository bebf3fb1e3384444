package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/annel0/terragen/internal/cache"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/middleware"
	"github.com/annel0/terragen/internal/terrain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Version версия REST API
const Version = "v0.1.0"

// RestServer представляет REST API генератора ландшафтов
type RestServer struct {
	router       *gin.Engine
	httpServer   *http.Server
	service      *terrain.Service
	defaults     terrain.Request
	port         string
	metrics      *ServerMetrics
	cacheMetrics func() *cache.CacheMetrics
	logger       *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port     string               // порт для запуска сервера
	Service  *terrain.Service     // сервис генерации
	Defaults terrain.Request      // параметры по умолчанию для POST /api/terrain
	Registry *prometheus.Registry // реестр метрик; при nil создаётся отдельный
	Logger   *logging.Logger

	// CacheMetrics отдаёт метрики горячего кеша для /api/server (опционально)
	CacheMetrics func() *cache.CacheMetrics
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) (*RestServer, error) {
	if config.Service == nil {
		return nil, errors.New("REST сервер требует terrain.Service")
	}
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("terragen"))

	loggerMw := middleware.NewRequestLogger(config.Logger)
	router.Use(loggerMw.Handler())

	promMw, err := middleware.NewPrometheusMiddleware("terragen", config.Registry)
	if err != nil {
		return nil, fmt.Errorf("регистрация HTTP метрик: %w", err)
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Registry)

	server := &RestServer{
		router:       router,
		service:      config.Service,
		defaults:     config.Defaults,
		port:         config.Port,
		metrics:      NewServerMetrics(),
		cacheMetrics: config.CacheMetrics,
		logger:       config.Logger,
	}

	server.setupRoutes()
	return server, nil
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.Use(corsMiddleware())

	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	api.GET("/server", rs.handleServerInfo)

	terrainGroup := api.Group("/terrain")
	{
		terrainGroup.GET("", rs.handleListTerrain)
		terrainGroup.POST("", rs.handleCreateTerrain)
		terrainGroup.POST("/random", rs.handleCreateRandomTerrain)
		terrainGroup.GET("/:id", rs.handleGetTerrain)
		terrainGroup.GET("/:id/heights", rs.handleGetHeights)
		terrainGroup.GET("/:id/height", rs.handleGetHeightAt)
		terrainGroup.GET("/:id/preview.png", rs.handlePreviewPNG)
		terrainGroup.GET("/:id/raw", rs.handleRAW16)
		terrainGroup.DELETE("/:id", rs.handleDeleteTerrain)
	}
}

// Handler возвращает http.Handler (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает HTTP сервер в отдельной горутине
func (rs *RestServer) Start() error {
	rs.httpServer = &http.Server{
		Addr:              rs.port,
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Ошибка bind приходит сразу
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("REST API сервер: %w", err)
		}
	case <-time.After(100 * time.Millisecond):
	}

	rs.info("✅ REST API сервер запущен на http://localhost%s", rs.port)
	rs.info("📋 Доступные эндпоинты:")
	rs.info("   GET    /health                        - Проверка состояния")
	rs.info("   GET    /metrics                       - Prometheus метрики")
	rs.info("   GET    /api/server                    - Информация о сервере")
	rs.info("   GET    /api/terrain                   - Список ландшафтов")
	rs.info("   POST   /api/terrain                   - Сгенерировать ландшафт")
	rs.info("   POST   /api/terrain/random            - Сгенерировать со случайным шумом")
	rs.info("   GET    /api/terrain/:id               - Описание ландшафта")
	rs.info("   GET    /api/terrain/:id/heights       - Сетка высот")
	rs.info("   GET    /api/terrain/:id/height?x=&y=  - Высота вершины")
	rs.info("   GET    /api/terrain/:id/preview.png   - PNG превью")
	rs.info("   GET    /api/terrain/:id/raw           - RAW16 экспорт")
	rs.info("   DELETE /api/terrain/:id               - Удалить ландшафт")
	return nil
}

// Stop корректно останавливает HTTP сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.httpServer == nil {
		return nil
	}

	rs.info("🛑 Остановка REST API сервера...")
	if err := rs.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("остановка HTTP сервера: %w", err)
	}
	rs.info("✅ REST API сервер остановлен")
	return nil
}

// handleHealth проверка состояния
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleServerInfo возвращает информацию о сервере
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	data := gin.H{"server": rs.metrics.Snapshot(Version)}
	if rs.cacheMetrics != nil {
		data["cache"] = rs.cacheMetrics()
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о сервере",
		Data:    data,
	})
}

func (rs *RestServer) info(format string, args ...interface{}) {
	if rs.logger != nil {
		rs.logger.Info(format, args...)
		return
	}
	logging.Info(format, args...)
}
