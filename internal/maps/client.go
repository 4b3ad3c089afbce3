// Package maps содержит клиент картографического провайдера: подсказки
// адресов, матрица расстояний по цепочке точек и обратное геокодирование.
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"taxi-client/internal/metrics"
)

const defaultBaseURL = "https://routing.api.example.com/v1"

// Point координаты одной точки маршрута
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Leg один отрезок маршрута между соседними точками
type Leg struct {
	DistanceMeters  int `json:"distance"`
	DurationSeconds int `json:"duration"`
}

// MatrixResponse ответ провайдера на запрос матрицы расстояний
type MatrixResponse struct {
	Meta struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"meta"`
	Legs []Leg `json:"legs"`
}

// GeocodeItem один результат поиска адреса
type GeocodeItem struct {
	Name     string  `json:"name"`
	FullName string  `json:"full_name"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// GeocodeResponse ответ провайдера на поиск адреса
type GeocodeResponse struct {
	Meta struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"meta"`
	Items []GeocodeItem `json:"items"`
}

// Client клиент картографического провайдера с кэшем и ограничением частоты
type Client struct {
	apiKey        string
	baseURL       string
	httpClient    *http.Client
	cacheService  *CacheService
	rateLimiter   *time.Ticker
	requestsMutex sync.Mutex
	requestsCount int
	requestsLimit int
	resetTime     time.Time
}

// NewClient создает клиент провайдера
func NewClient(apiKey string, cache *CacheService) *Client {
	if cache == nil {
		cache = NewCacheService("", "", 0, false)
	}

	return &Client{
		apiKey:        apiKey,
		baseURL:       defaultBaseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		cacheService:  cache,
		rateLimiter:   time.NewTicker(200 * time.Millisecond), // Максимум 5 запросов в секунду
		requestsLimit: 5000,                                   // Дневной лимит по умолчанию
		resetTime:     time.Now().Add(24 * time.Hour),
	}
}

// SetBaseURL переопределяет адрес провайдера (для тестов)
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// SetDailyLimit переопределяет дневной лимит запросов
func (c *Client) SetDailyLimit(limit int) {
	c.requestsMutex.Lock()
	c.requestsLimit = limit
	c.requestsMutex.Unlock()
}

// checkRateLimit проверяет лимит запросов и ожидает, если необходимо
func (c *Client) checkRateLimit() error {
	c.requestsMutex.Lock()
	defer c.requestsMutex.Unlock()

	// Если прошли сутки, сбрасываем счетчик
	if time.Now().After(c.resetTime) {
		c.requestsCount = 0
		c.resetTime = time.Now().Add(24 * time.Hour)
	}

	if c.requestsCount >= c.requestsLimit {
		return fmt.Errorf("превышен дневной лимит запросов к картографическому провайдеру (%d)", c.requestsLimit)
	}

	<-c.rateLimiter.C

	c.requestsCount++
	return nil
}

// RouteMatrix запрашивает матрицу расстояний по цепочке точек
// (подача → остановка₁ → … → остановкаₙ → назначение)
func (c *Client) RouteMatrix(ctx context.Context, points []Point) (*MatrixResponse, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("для расчета маршрута нужны минимум две точки")
	}

	cacheKey := c.cacheService.GenerateMatrixKey(points)

	var result MatrixResponse
	found, err := c.cacheService.Get(ctx, cacheKey, &result)
	if err != nil {
		log.Printf("Ошибка при получении матрицы из кэша: %v", err)
	} else if found {
		metrics.MapsRequestsTotal.WithLabelValues("matrix", "200", "true").Inc()
		return &result, nil
	}

	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("key", c.apiKey)
	params.Add("mode", "car")
	for _, p := range points {
		params.Add("point", fmt.Sprintf("%f,%f", p.Lat, p.Lng))
	}

	if err := c.getJSON(ctx, "matrix", "/matrix?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	if result.Meta.Code != 0 && result.Meta.Code != http.StatusOK {
		return nil, fmt.Errorf("провайдер вернул код %d: %s", result.Meta.Code, result.Meta.Message)
	}

	if err := c.cacheService.Set(ctx, cacheKey, result); err != nil {
		log.Printf("Ошибка при сохранении матрицы в кэш: %v", err)
	}

	return &result, nil
}

// SearchAddress выполняет поиск адреса для автодополнения
func (c *Client) SearchAddress(ctx context.Context, query string) (*GeocodeResponse, error) {
	cacheKey := c.cacheService.GenerateGeocodingKey(query)

	var result GeocodeResponse
	found, err := c.cacheService.Get(ctx, cacheKey, &result)
	if err != nil {
		log.Printf("Ошибка при получении данных из кэша: %v", err)
	} else if found {
		metrics.MapsRequestsTotal.WithLabelValues("geocode", "200", "true").Inc()
		return &result, nil
	}

	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("key", c.apiKey)

	if err := c.getJSON(ctx, "geocode", "/geocode?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	if err := c.cacheService.Set(ctx, cacheKey, result); err != nil {
		log.Printf("Ошибка при сохранении данных в кэш: %v", err)
	}

	return &result, nil
}

// ReverseGeocode возвращает адрес по координатам
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodeResponse, error) {
	cacheKey := c.cacheService.GenerateReverseKey(lat, lng)

	var result GeocodeResponse
	found, err := c.cacheService.Get(ctx, cacheKey, &result)
	if err != nil {
		log.Printf("Ошибка при получении данных из кэша: %v", err)
	} else if found {
		metrics.MapsRequestsTotal.WithLabelValues("reverse", "200", "true").Inc()
		return &result, nil
	}

	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("point", fmt.Sprintf("%f,%f", lat, lng))
	params.Add("key", c.apiKey)

	if err := c.getJSON(ctx, "reverse", "/reverse?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	if err := c.cacheService.Set(ctx, cacheKey, result); err != nil {
		log.Printf("Ошибка при сохранении данных в кэш: %v", err)
	}

	return &result, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, pathAndQuery string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return fmt.Errorf("ошибка при создании запроса: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.MapsRequestsTotal.WithLabelValues(endpoint, "network_error", "false").Inc()
		return fmt.Errorf("ошибка при выполнении запроса: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка при чтении ответа: %w", err)
	}

	metrics.MapsRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode), "false").Inc()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Провайдер вернул статус %d: %s", resp.StatusCode, string(body))
		return fmt.Errorf("неверный статус ответа: %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("ошибка при декодировании ответа: %w", err)
	}

	return nil
}

// Close закрывает ресурсы клиента
func (c *Client) Close() {
	c.rateLimiter.Stop()
	if c.cacheService != nil {
		c.cacheService.Close()
	}
}
