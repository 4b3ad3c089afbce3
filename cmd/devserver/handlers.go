package main

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"taxi-client/internal/auth"
	"taxi-client/internal/models"
)

func jwtSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret"
	}
	return []byte(secret)
}

// generateToken выпускает токен с ролью в полезной нагрузке
func generateToken(userID uint, role string) (string, error) {
	claims := auth.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

// jwtAuth проверяет bearer-токен и кладет user_id и role в контекст
func jwtAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Отсутствует токен авторизации"})
			c.Abort()
			return
		}

		claims := &auth.Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			return jwtSecret(), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Недействительный токен"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != role {
			c.JSON(http.StatusForbidden, gin.H{"message": "Недостаточно прав"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func okJSON(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func failJSON(c *gin.Context, status int, message string, errors map[string][]string) {
	body := gin.H{"message": message}
	if len(errors) > 0 {
		body["errors"] = errors
	}
	c.JSON(status, body)
}

type loginRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// loginHandler вход по телефону и коду; на стенде принимается код 0000
func loginHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failJSON(c, http.StatusBadRequest, "Неверный формат данных", nil)
			return
		}
		if req.Code != "0000" {
			failJSON(c, http.StatusBadRequest, "Неверный код подтверждения", nil)
			return
		}

		user := store.userByPhone(req.Phone)
		if user == nil {
			failJSON(c, http.StatusBadRequest, "Пользователь не найден, зарегистрируйтесь", nil)
			return
		}

		token, err := generateToken(user.ID, user.Role)
		if err != nil {
			failJSON(c, http.StatusInternalServerError, "Ошибка при создании токена", nil)
			return
		}
		okJSON(c, auth.AuthResponse{Token: token, User: user})
	}
}

func registerHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req auth.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.FirstName == "" || req.Phone == "" {
			failJSON(c, http.StatusBadRequest, "Неверный формат данных", nil)
			return
		}

		user := store.createUser(req.FirstName, req.LastName, req.Phone, req.Email, req.Role)
		token, err := generateToken(user.ID, user.Role)
		if err != nil {
			failJSON(c, http.StatusInternalServerError, "Ошибка при создании токена", nil)
			return
		}
		okJSON(c, auth.AuthResponse{Token: token, User: user})
	}
}

func currentUserHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := store.user(c.GetUint("user_id"))
		if user == nil {
			failJSON(c, http.StatusUnauthorized, "Пользователь не найден", nil)
			return
		}
		okJSON(c, user)
	}
}

func updateProfileHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var update models.ProfileUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			failJSON(c, http.StatusBadRequest, "Неверный формат данных", nil)
			return
		}

		user := store.user(c.GetUint("user_id"))
		if user == nil {
			failJSON(c, http.StatusUnauthorized, "Пользователь не найден", nil)
			return
		}

		store.mu.Lock()
		if update.FirstName != "" {
			user.FirstName = update.FirstName
		}
		if update.LastName != "" {
			user.LastName = update.LastName
		}
		if update.Email != "" {
			user.Email = update.Email
		}
		if update.PhotoUrl != "" {
			user.PhotoUrl = update.PhotoUrl
		}
		user.UpdatedAt = time.Now()
		store.mu.Unlock()

		okJSON(c, user)
	}
}

// requestRideHandler создает поездку; валидация повторяет серверные
// правила, чтобы клиентский preflight можно было проверить на стенде
func requestRideHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RideRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failJSON(c, http.StatusBadRequest, "Неверный формат данных", nil)
			return
		}

		errors := make(map[string][]string)
		if req.PickupAddress == "" {
			errors["pickup_address"] = []string{"Не указан адрес подачи"}
		}
		if req.DropoffAddress == "" {
			errors["dropoff_address"] = []string{"Не указан адрес назначения"}
		}
		if !models.ValidVehicleClass(req.VehicleClass) {
			errors["vehicle_class"] = []string{"Неизвестный класс автомобиля"}
		}
		if req.Scheduled && req.ScheduledAt == nil {
			errors["scheduled_at"] = []string{"Не указано время запланированной поездки"}
		}
		if len(errors) > 0 {
			failJSON(c, http.StatusUnprocessableEntity, "Проверьте данные поездки", errors)
			return
		}

		userID := c.GetUint("user_id")
		ride := &models.Ride{
			PickupAddress:   req.PickupAddress,
			DropoffAddress:  req.DropoffAddress,
			PickupLat:       req.PickupLat,
			PickupLng:       req.PickupLng,
			DropoffLat:      req.DropoffLat,
			DropoffLng:      req.DropoffLng,
			Stops:           req.Stops,
			VehicleClass:    req.VehicleClass,
			Fare:            req.EstimatedFare,
			DistanceKm:      req.DistanceKm,
			DurationMinutes: req.DurationMinutes,
			PaymentMethod:   req.PaymentMethod,
			GuestName:       req.GuestName,
			GuestPhone:      req.GuestPhone,
			GuestEmail:      req.GuestEmail,
			Scheduled:       req.Scheduled,
			ScheduledAt:     req.ScheduledAt,
		}
		if userID != 0 {
			ride.PassengerID = &userID
		}

		okJSON(c, store.createRide(ride))
	}
}

func getRideHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ride := rideFromParam(c, store)
		if ride == nil {
			return
		}
		okJSON(c, ride)
	}
}

func availableRidesHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		if page < 1 {
			page = 1
		}
		okJSON(c, store.requestedRides(page, 10))
	}
}

func activeRideHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ride := store.activeRideForDriver(c.GetUint("user_id"))
		if ride == nil {
			failJSON(c, http.StatusNotFound, "Активной поездки нет", nil)
			return
		}
		okJSON(c, ride)
	}
}

// rideTransitionHandler один переход статуса поездки; неправильный
// исходный статус — конфликт бизнес-правила, состояние не меняется
func rideTransitionHandler(store *memStore, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ride := rideFromParam(c, store)
		if ride == nil {
			return
		}

		driverID := c.GetUint("user_id")
		now := time.Now()

		store.mu.Lock()
		defer store.mu.Unlock()

		switch action {
		case "accept":
			if ride.Status != models.RideStatusRequested {
				failJSON(c, http.StatusConflict, "Поездку уже забрал другой водитель", nil)
				return
			}
			ride.Status = models.RideStatusAccepted
			ride.DriverID = &driverID
			ride.AcceptedAt = &now
		case "start":
			if ride.Status != models.RideStatusAccepted {
				failJSON(c, http.StatusConflict, "Поездку нельзя начать из текущего статуса", nil)
				return
			}
			ride.Status = models.RideStatusInProgress
			ride.StartedAt = &now
		case "complete":
			if ride.Status != models.RideStatusInProgress {
				failJSON(c, http.StatusConflict, "Поездку нельзя завершить из текущего статуса", nil)
				return
			}
			ride.Status = models.RideStatusCompleted
			ride.CompletedAt = &now
		case "cancel":
			var body struct {
				Reason string `json:"reason"`
			}
			if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Reason) == "" {
				failJSON(c, http.StatusUnprocessableEntity, "Укажите причину отмены", nil)
				return
			}
			if ride.Terminal() {
				failJSON(c, http.StatusConflict, "Поездку уже нельзя отменить", nil)
				return
			}
			ride.Status = models.RideStatusCancelled
			ride.CancellationReason = body.Reason
			ride.CancelledAt = &now
		}

		ride.UpdatedAt = now
		okJSON(c, ride)
	}
}

// checkoutSessionHandler создает платежную сессию симулируемого провайдера
func checkoutSessionHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ride := rideFromParam(c, store)
		if ride == nil {
			return
		}

		sessionID := "cs_" + uuid.NewString()
		store.mu.Lock()
		store.checkouts[sessionID] = &checkoutState{RideID: ride.ID}
		ride.PaymentMethod = models.PaymentMethodCard
		store.mu.Unlock()

		okJSON(c, models.CheckoutSession{
			SessionID:    sessionID,
			ClientSecret: sessionID + "_secret_" + uuid.NewString(),
			CheckoutURL:  "https://checkout.example.com/" + sessionID,
			RideID:       ride.ID,
		})
	}
}

// checkoutStatusHandler сверка оплаты: первый опрос завершает оплату, но
// чек еще "в очереди"; со второго опроса чек отправлен
func checkoutStatusHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")

		store.mu.Lock()
		checkout, ok := store.checkouts[sessionID]
		if !ok {
			store.mu.Unlock()
			failJSON(c, http.StatusNotFound, "Платежная сессия не найдена", nil)
			return
		}
		checkout.StatusPolls++
		ride := store.rides[checkout.RideID]
		ride.PaymentStatus = models.PaymentStatusPaid
		conf := models.PaymentConfirmation{
			CheckoutStatus:      models.CheckoutStatusComplete,
			PaymentIntentStatus: "succeeded",
			PaymentStatus:       models.PaymentStatusPaid,
			EmailSent:           checkout.StatusPolls > 1,
			RideID:              checkout.RideID,
		}
		store.mu.Unlock()

		okJSON(c, conf)
	}
}

// processPaymentHandler фиксация оплаты (наличные)
func processPaymentHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ride := rideFromParam(c, store)
		if ride == nil {
			return
		}

		var body struct {
			Method     models.PaymentMethod `json:"method"`
			GuestPhone string               `json:"guest_phone"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Method == "" {
			failJSON(c, http.StatusBadRequest, "Не указан способ оплаты", nil)
			return
		}

		store.mu.Lock()
		ride.PaymentMethod = body.Method
		if body.Method == models.PaymentMethodCash && body.GuestPhone != "" {
			ride.GuestPhone = body.GuestPhone
		}
		ride.UpdatedAt = time.Now()
		store.mu.Unlock()

		okJSON(c, ride)
	}
}

func availabilityHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Available bool `json:"available"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			failJSON(c, http.StatusBadRequest, "Неверный формат данных", nil)
			return
		}

		store.mu.Lock()
		store.available[c.GetUint("user_id")] = body.Available
		store.mu.Unlock()

		okJSON(c, gin.H{"available": body.Available})
	}
}

func earningsHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		okJSON(c, store.driverEarnings(c.GetUint("user_id")))
	}
}

func driverRegisterHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := store.user(c.GetUint("user_id"))
		if user == nil {
			failJSON(c, http.StatusUnauthorized, "Пользователь не найден", nil)
			return
		}

		store.mu.Lock()
		user.Role = models.RoleDriver
		user.Verified = false
		user.UpdatedAt = time.Now()
		store.mu.Unlock()

		okJSON(c, user)
	}
}

func pushLocationHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var pos models.Position
		if err := c.ShouldBindJSON(&pos); err != nil {
			failJSON(c, http.StatusBadRequest, "Неверный формат данных", nil)
			return
		}

		store.mu.Lock()
		store.positions = append(store.positions, pos)
		store.mu.Unlock()

		c.Status(http.StatusNoContent)
	}
}

func adminDriversHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		okJSON(c, store.drivers())
	}
}

func adminDriverHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			failJSON(c, http.StatusBadRequest, "Неверный идентификатор", nil)
			return
		}
		user := store.user(uint(id))
		if user == nil || user.Role != models.RoleDriver {
			failJSON(c, http.StatusNotFound, "Водитель не найден", nil)
			return
		}
		okJSON(c, user)
	}
}

func adminVerifyDriverHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			failJSON(c, http.StatusBadRequest, "Неверный идентификатор", nil)
			return
		}

		var body struct {
			Verified bool `json:"verified"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			failJSON(c, http.StatusBadRequest, "Неверный формат данных", nil)
			return
		}

		user := store.user(uint(id))
		if user == nil || user.Role != models.RoleDriver {
			failJSON(c, http.StatusNotFound, "Водитель не найден", nil)
			return
		}

		store.mu.Lock()
		user.Verified = body.Verified
		user.UpdatedAt = time.Now()
		store.mu.Unlock()

		okJSON(c, user)
	}
}

func adminRidesHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		store.mu.Lock()
		rides := make([]models.Ride, 0, len(store.rides))
		for id := uint(1); id < store.nextRideID; id++ {
			if ride, ok := store.rides[id]; ok {
				rides = append(rides, *ride)
			}
		}
		store.mu.Unlock()
		okJSON(c, rides)
	}
}

func adminUsersHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		store.mu.Lock()
		users := make([]models.User, 0, len(store.users))
		for id := uint(1); id < store.nextUserID; id++ {
			if user, ok := store.users[id]; ok {
				users = append(users, *user)
			}
		}
		store.mu.Unlock()
		okJSON(c, users)
	}
}

func adminPromotionsHandler(store *memStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		store.mu.Lock()
		promotions := make([]models.Promotion, len(store.promotions))
		copy(promotions, store.promotions)
		store.mu.Unlock()
		okJSON(c, promotions)
	}
}

func rideFromParam(c *gin.Context, store *memStore) *models.Ride {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		failJSON(c, http.StatusBadRequest, "Неверный идентификатор поездки", nil)
		return nil
	}
	ride := store.ride(uint(id))
	if ride == nil {
		failJSON(c, http.StatusNotFound, "Поездка не найдена", nil)
		return nil
	}
	return ride
}
