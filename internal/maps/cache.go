package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// CacheService кэширует ответы картографического провайдера в Redis.
// При выключенном кэше все операции становятся no-op, клиент продолжает
// работать напрямую с провайдером.
type CacheService struct {
	redisClient *redis.Client
	ttl         time.Duration
	enabled     bool
}

// NewCacheService создает сервис кэширования
func NewCacheService(redisHost, redisPort string, ttl time.Duration, enabled bool) *CacheService {
	if !enabled {
		return &CacheService{enabled: false}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", redisHost, redisPort),
		Password: "",
		DB:       0,
	})

	return &CacheService{
		redisClient: client,
		ttl:         ttl,
		enabled:     true,
	}
}

// Get получает данные из кэша
func (c *CacheService) Get(ctx context.Context, key string, result interface{}) (bool, error) {
	if !c.enabled {
		return false, nil
	}

	val, err := c.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("ошибка при получении данных из кэша: %w", err)
	}

	if err := json.Unmarshal([]byte(val), result); err != nil {
		return false, fmt.Errorf("ошибка при десериализации данных из кэша: %w", err)
	}

	return true, nil
}

// Set сохраняет данные в кэш
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ошибка при сериализации данных для кэша: %w", err)
	}

	if err := c.redisClient.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка при сохранении данных в кэш: %w", err)
	}

	return nil
}

// GenerateMatrixKey генерирует ключ для кэша матрицы расстояний
func (c *CacheService) GenerateMatrixKey(points []Point) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%.5f,%.5f", p.Lat, p.Lng)
	}
	return "matrix:" + strings.Join(parts, ":")
}

// GenerateGeocodingKey генерирует ключ для кэша геокодирования
func (c *CacheService) GenerateGeocodingKey(query string) string {
	return "geocoding:" + query
}

// GenerateReverseKey генерирует ключ для кэша обратного геокодирования
func (c *CacheService) GenerateReverseKey(lat, lng float64) string {
	return fmt.Sprintf("revgeo:%.5f:%.5f", lat, lng)
}

// Close закрывает соединение с Redis
func (c *CacheService) Close() error {
	if c.enabled {
		return c.redisClient.Close()
	}
	return nil
}
