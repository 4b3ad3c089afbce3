// Package api содержит HTTP-клиент бэкенда такси-сервиса.
//
// Все ответы бэкенда приходят в конверте {message, data, errors}; клиент
// разворачивает конверт и переводит коды ответов в типизированные ошибки.
// Ответ 401 дополнительно дергает обработчик onUnauthorized, чтобы сессия
// была сброшена централизованно, а не в каждом месте вызова.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"taxi-client/internal/metrics"
)

// Envelope стандартный конверт ответа бэкенда
type Envelope struct {
	Message string              `json:"message,omitempty"`
	Data    json.RawMessage     `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string

	onUnauthorized func()
}

// NewClient создает клиент бэкенда
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken устанавливает bearer-токен для последующих запросов
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken сбрасывает bearer-токен
func (c *Client) ClearToken() {
	c.SetToken("")
}

// Token возвращает текущий токен
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// OnUnauthorized регистрирует обработчик ответа 401.
// Обработчик обязан быть идемпотентным: он вызывается на каждый 401.
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// Get выполняет GET запрос и разворачивает ответ в out
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out, nil)
}

// Post выполняет POST запрос с JSON телом
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out, nil)
}

// PostWithHeaders выполняет POST с дополнительными заголовками
func (c *Client) PostWithHeaders(ctx context.Context, path string, body, out interface{}, headers map[string]string) error {
	return c.do(ctx, http.MethodPost, path, body, out, headers)
}

// Put выполняет PUT запрос с JSON телом
func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, body, out, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ошибка при сериализации запроса: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("ошибка при создании запроса: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(method, path, "network_error").Inc()
		return &Error{
			Kind:    KindNetwork,
			Message: "Сервис временно недоступен, попробуйте еще раз",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	metrics.APIRequestsTotal.WithLabelValues(method, path, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.APIRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{
			Kind:    KindNetwork,
			Message: "Ошибка при чтении ответа сервера",
			Err:     err,
		}
	}

	var env Envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			// Бэкенд иногда отвечает без конверта; тогда data — все тело
			env = Envelope{Data: raw}
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return &Error{
			Kind:       KindAuthorization,
			StatusCode: resp.StatusCode,
			Message:    "Сессия истекла, войдите заново",
		}
	}

	if resp.StatusCode >= 500 {
		log.Printf("Бэкенд вернул статус %d для %s %s", resp.StatusCode, method, path)
		return &Error{
			Kind:       KindServer,
			StatusCode: resp.StatusCode,
			Message:    "Ошибка на стороне сервера, попробуйте позже",
		}
	}

	if resp.StatusCode >= 400 {
		return &Error{
			Kind:       KindConflict,
			StatusCode: resp.StatusCode,
			Message:    ConsolidateErrors(env.Message, env.Errors),
			Fields:     env.Errors,
		}
	}

	if out != nil {
		payload := env.Data
		if len(payload) == 0 {
			payload = raw
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, out); err != nil {
				return fmt.Errorf("ошибка при декодировании ответа: %w", err)
			}
		}
	}

	return nil
}
