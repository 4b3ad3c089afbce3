package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит настройки клиентского приложения
type Config struct {
	APIBaseURL string // Базовый URL бэкенда
	WSBaseURL  string // Базовый URL для WebSocket подключений

	MapsAPIKey string // Ключ для картографического провайдера

	RedisHost    string
	RedisPort    string
	CacheEnabled bool

	StateDir string // Директория для сохраненного состояния клиента

	LocationPushInterval time.Duration // Минимальный интервал отправки геопозиции
	LocationTimeout      time.Duration // Тайм-аут получения геопозиции
	EmailRetryDelay      time.Duration // Задержка повторной отправки чека
}

// Load загружает конфигурацию из .env файла и переменных окружения
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используем переменные окружения")
	}

	return &Config{
		APIBaseURL:           getEnv("API_BASE_URL", "http://localhost:8080/api"),
		WSBaseURL:            getEnv("WS_BASE_URL", "ws://localhost:8080"),
		MapsAPIKey:           os.Getenv("MAPS_API_KEY"),
		RedisHost:            getEnv("REDIS_HOST", "localhost"),
		RedisPort:            getEnv("REDIS_PORT", "6379"),
		CacheEnabled:         os.Getenv("CACHE_ENABLED") == "true",
		StateDir:             getEnv("STATE_DIR", ".taxi-client"),
		LocationPushInterval: getDurationSeconds("LOCATION_PUSH_INTERVAL_SECONDS", 7),
		LocationTimeout:      getDurationSeconds("LOCATION_TIMEOUT_SECONDS", 10),
		EmailRetryDelay:      getDurationSeconds("EMAIL_RETRY_DELAY_SECONDS", 3),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDurationSeconds(key string, fallback int) time.Duration {
	if val, err := strconv.Atoi(os.Getenv(key)); err == nil && val > 0 {
		return time.Duration(val) * time.Second
	}
	return time.Duration(fallback) * time.Second
}
