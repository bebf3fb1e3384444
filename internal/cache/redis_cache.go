package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/annel0/terragen/internal/logging"
	"github.com/go-redis/redis/v8"
)

const defaultMaxValueBytes = 64 << 20

// RedisCache хранит закодированные сетки высот в Redis.
// Считает попадания и задержку, ограничивает TTL и размер значения.
type RedisCache struct {
	client  *redis.Client
	config  *CacheConfig
	logger  *logging.Logger
	latency latencyTracker

	requests int64
	hits     int64
	misses   int64
}

// NewRedisCache создаёт новый Redis кеш и проверяет соединение.
func NewRedisCache(config *CacheConfig) (*RedisCache, error) {
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 10 * time.Minute
	}
	if config.MaxTTL == 0 {
		config.MaxTTL = 24 * time.Hour
	}
	if config.MaxValueBytes == 0 {
		config.MaxValueBytes = defaultMaxValueBytes
	}
	if config.MaxConnections == 0 {
		config.MaxConnections = 10
	}
	if config.PoolTimeout == 0 {
		config.PoolTimeout = 30 * time.Second
	}

	opts, err := redisOptions(config)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r := &RedisCache{client: rdb, config: config, logger: config.Logger}
	r.infof("🧊 Redis кеш сеток: %s db=%d (ttl=%v, max=%d байт)", opts.Addr, opts.DB, config.DefaultTTL, config.MaxValueBytes)
	return r, nil
}

// redisOptions принимает и host:port, и redis:// URL
func redisOptions(config *CacheConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: config.RedisURL, DB: config.RedisDB}
	if strings.HasPrefix(config.RedisURL, "redis://") || strings.HasPrefix(config.RedisURL, "rediss://") {
		parsed, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		if parsed.DB == 0 {
			parsed.DB = config.RedisDB
		}
		opts = parsed
	}
	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}

	opts.PoolSize = config.MaxConnections
	opts.PoolTimeout = config.PoolTimeout
	// Сетки крупные: таймауты с запасом на передачу десятков мегабайт
	opts.ReadTimeout = 10 * time.Second
	opts.WriteTimeout = 10 * time.Second
	return opts, nil
}

// Get получает значение по ключу из Redis.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	defer r.latency.observe(time.Now())
	atomic.AddInt64(&r.requests, 1)

	val, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		atomic.AddInt64(&r.hits, 1)
		return val, nil
	}

	atomic.AddInt64(&r.misses, 1)
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	r.errorf("Redis Get %s: %v", key, err)
	return nil, fmt.Errorf("redis get error: %w", err)
}

// Set сохраняет значение в Redis. Слишком большие сетки не кешируются.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if len(value) > r.config.MaxValueBytes {
		return fmt.Errorf("%w: %d > %d байт", ErrValueTooLarge, len(value), r.config.MaxValueBytes)
	}
	defer r.latency.observe(time.Now())

	if ttl <= 0 {
		ttl = r.config.DefaultTTL
	}
	if ttl > r.config.MaxTTL {
		ttl = r.config.MaxTTL
	}

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.errorf("Redis Set %s: %v", key, err)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Delete удаляет ключ из кеша.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	defer r.latency.observe(time.Now())

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.errorf("Redis Delete %s: %v", key, err)
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// Exists проверяет существование ключа в кеше.
func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	defer r.latency.observe(time.Now())

	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists error: %w", err)
	}
	return count > 0, nil
}

// Close закрывает соединение с Redis.
func (r *RedisCache) Close() error {
	if err := r.client.Close(); err != nil {
		r.errorf("Ошибка закрытия Redis: %v", err)
		return err
	}
	r.infof("Redis кеш закрыт")
	return nil
}

// GetMetrics возвращает снимок метрик кеша.
func (r *RedisCache) GetMetrics() *CacheMetrics {
	m := &CacheMetrics{
		TotalRequests: atomic.LoadInt64(&r.requests),
		CacheHits:     atomic.LoadInt64(&r.hits),
		CacheMisses:   atomic.LoadInt64(&r.misses),
		LastUpdate:    time.Now(),
	}
	m.HitRatio = hitRatio(m.CacheHits, m.CacheMisses)
	m.AvgLatencyMs, m.MaxLatencyMs = r.latency.snapshot()
	return m
}

func (r *RedisCache) infof(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Info(format, args...)
		return
	}
	logging.Info(format, args...)
}

func (r *RedisCache) errorf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Error(format, args...)
		return
	}
	logging.Error(format, args...)
}

// latencyTracker копит сумму, число и максимум задержек в наносекундах
type latencyTracker struct {
	sum   int64
	count int64
	max   int64
}

func (l *latencyTracker) observe(start time.Time) {
	d := time.Since(start).Nanoseconds()
	atomic.AddInt64(&l.sum, d)
	atomic.AddInt64(&l.count, 1)

	for {
		cur := atomic.LoadInt64(&l.max)
		if d <= cur || atomic.CompareAndSwapInt64(&l.max, cur, d) {
			return
		}
	}
}

// snapshot возвращает среднюю и максимальную задержку в миллисекундах
func (l *latencyTracker) snapshot() (avg, max float64) {
	count := atomic.LoadInt64(&l.count)
	if count == 0 {
		return 0, 0
	}
	avg = float64(atomic.LoadInt64(&l.sum)) / float64(count) / 1e6
	max = float64(atomic.LoadInt64(&l.max)) / 1e6
	return avg, max
}
