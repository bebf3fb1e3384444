package config

import (
	"os"
	"strconv"

	"github.com/annel0/terragen/internal/erosion"
	"github.com/annel0/terragen/internal/noise"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.

type Config struct {
	Terrain   TerrainConfig   `yaml:"terrain"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Events    EventsConfig    `yaml:"events"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TerrainConfig содержит размеры сетки и параметры генерации по умолчанию
type TerrainConfig struct {
	Width   int                `yaml:"width"`
	Height  int                `yaml:"height"`
	Depth   float64            `yaml:"depth"`   // Вертикальный масштаб при экспорте
	Seed    int64              `yaml:"seed"`    // 0: сид от текущего времени
	Source  string             `yaml:"source"`  // perlin | simplex
	Workers int                `yaml:"workers"` // Потоки синтеза шума
	Noise   noise.Parameters   `yaml:"noise"`
	Erosion erosion.Parameters `yaml:"erosion"`
}

type StorageConfig struct {
	DataPath string `yaml:"data_path"`
}

type CacheConfig struct {
	RedisURL   string `yaml:"redis_url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type ServerConfig struct {
	RESTPort int `yaml:"rest_port"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default возвращает значения исходного генератора ландшафта
func Default() *Config {
	return &Config{
		Terrain: TerrainConfig{
			Width:   256,
			Height:  256,
			Depth:   50,
			Source:  noise.SourcePerlin,
			Workers: 1,
			Noise:   noise.DefaultParameters(),
			Erosion: erosion.DefaultParameters(),
		},
		Storage:   StorageConfig{DataPath: "data"},
		Cache:     CacheConfig{TTLSeconds: 600},
		Events:    EventsConfig{SubjectPrefix: "terragen"},
		Telemetry: TelemetryConfig{ServiceName: "terragen"},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getIntWithEnvFallback(s.RESTPort, "TERRAGEN_REST_PORT", 8088)
}

// GetDataPath возвращает каталог хранилища: config -> env -> default
func (s *StorageConfig) GetDataPath() string {
	return getStringWithEnvFallback(s.DataPath, "TERRAGEN_DATA", "data")
}

// GetRedisURL возвращает адрес Redis; пустая строка отключает кеш
func (c *CacheConfig) GetRedisURL() string {
	return getStringWithEnvFallback(c.RedisURL, "TERRAGEN_REDIS_URL", "")
}

// GetNATSURL возвращает адрес NATS; пустая строка отключает события
func (e *EventsConfig) GetNATSURL() string {
	return getStringWithEnvFallback(e.NATSURL, "TERRAGEN_NATS_URL", "")
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	// Если значение задано в конфиге и больше 0, используем его
	if configValue > 0 {
		return configValue
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	// Используем дефолтное значение
	return defaultValue
}

func getStringWithEnvFallback(configValue, envVar, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultValue
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV TERRAGEN_CONFIG или возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("TERRAGEN_CONFIG")
		if path == "" {
			return cfg, nil // конфиг не задан, используем дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
