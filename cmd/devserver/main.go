// Dev-сервер: бэкенд-стенд в памяти для разработки клиента.
// Реализует REST-поверхность настоящего бэкенда без базы и внешних
// сервисов, включая симуляцию платежного провайдера.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taxi-client/internal/fare"
	"taxi-client/internal/models"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "taxi_devserver",
		Name:      "http_requests_total",
		Help:      "Общее количество HTTP запросов",
	},
	[]string{"method", "endpoint", "status"},
)

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		requestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// locationWSHandler принимает поток геопозиций водителя
func locationWSHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("Ошибка при обновлении до websocket: %v", err)
			return
		}
		defer conn.Close()

		for {
			var pos models.Position
			if err := conn.ReadJSON(&pos); err != nil {
				return
			}
			store.mu.Lock()
			store.positions = append(store.positions, pos)
			store.mu.Unlock()
		}
	}
}

// estimateHandler серверная оценка поездки; на стенде считает по
// детерминированной офлайн-формуле клиента
func estimateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RideRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failJSON(c, http.StatusBadRequest, "Неверный формат данных", nil)
			return
		}

		basePrice, ok := models.BasePrices[req.VehicleClass]
		if !ok {
			failJSON(c, http.StatusUnprocessableEntity, "Неизвестный класс автомобиля", nil)
			return
		}

		distance, duration := fare.FallbackEstimate(len(req.Stops))
		okJSON(c, gin.H{
			"distance_km":      distance,
			"duration_minutes": duration,
			"fare":             fare.Fare(basePrice, distance, duration),
		})
	}
}

func main() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используем переменные окружения")
	}

	store := newMemStore()

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(metricsMiddleware())
	r.SetTrustedProxies([]string{"127.0.0.1"})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.GET("/ws/driver/location", locationWSHandler(store))

	api := r.Group("/api")
	{
		api.POST("/login", loginHandler(store))
		api.POST("/register", registerHandler(store))
	}

	protected := api.Group("")
	protected.Use(jwtAuth())
	{
		protected.POST("/logout", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		protected.GET("/user", currentUserHandler(store))
		protected.PUT("/user/profile", updateProfileHandler(store))

		protected.POST("/rides/estimate", estimateHandler())
		protected.POST("/rides/request", requestRideHandler(store))
		protected.GET("/rides/available", availableRidesHandler(store))
		protected.GET("/rides/active", activeRideHandler(store))
		protected.GET("/rides/:id", getRideHandler(store))
		protected.POST("/rides/:id/accept", rideTransitionHandler(store, "accept"))
		protected.POST("/rides/:id/start", rideTransitionHandler(store, "start"))
		protected.POST("/rides/:id/complete", rideTransitionHandler(store, "complete"))
		protected.POST("/rides/:id/cancel", rideTransitionHandler(store, "cancel"))

		protected.POST("/payments/ride/:id/checkout-session", checkoutSessionHandler(store))
		protected.GET("/payments/session/:id/status", checkoutStatusHandler(store))
		protected.POST("/payments/ride/:id/process", processPaymentHandler(store))

		protected.PUT("/driver/availability", availabilityHandler(store))
		protected.GET("/driver/earnings", earningsHandler(store))
		protected.POST("/driver/register", driverRegisterHandler(store))
		protected.POST("/driver/location", pushLocationHandler(store))

		admin := protected.Group("/admin")
		admin.Use(requireRole(models.RoleAdmin))
		{
			admin.GET("/drivers", adminDriversHandler(store))
			admin.GET("/drivers/:id", adminDriverHandler(store))
			admin.PUT("/drivers/:id/verify", adminVerifyDriverHandler(store))
			admin.GET("/rides", adminRidesHandler(store))
			admin.GET("/users", adminUsersHandler(store))
			admin.GET("/promotions", adminPromotionsHandler(store))
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Dev-сервер запущен на порту %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ошибка запуска сервера: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Получен сигнал завершения, закрываем соединения...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Ошибка при graceful shutdown: %s", err)
	}

	log.Println("Сервер корректно завершил работу")
}
