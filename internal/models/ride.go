package models

import (
	"time"
)

type RideStatus string

const (
	RideStatusRequested  RideStatus = "requested"   // Поездка запрошена, ждет водителя
	RideStatusAccepted   RideStatus = "accepted"    // Водитель принял поездку
	RideStatusInProgress RideStatus = "in_progress" // Поездка началась
	RideStatusCompleted  RideStatus = "completed"   // Завершенная поездка
	RideStatusCancelled  RideStatus = "cancelled"   // Отмененная поездка
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"  // Оплата не зафиксирована
	PaymentStatusPaid     PaymentStatus = "paid"     // Оплата получена
	PaymentStatusFailed   PaymentStatus = "failed"   // Оплата не прошла
	PaymentStatusRefunded PaymentStatus = "refunded" // Оплата возвращена
)

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash" // Наличными водителю
	PaymentMethodCard PaymentMethod = "card" // Картой через платежный провайдер
)

type VehicleClass string

const (
	VehicleClassEconomy  VehicleClass = "economy"
	VehicleClassComfort  VehicleClass = "comfort"
	VehicleClassBusiness VehicleClass = "business"
)

// BasePrices базовые тарифы по классам автомобилей
var BasePrices = map[VehicleClass]float64{
	VehicleClassEconomy:  10,
	VehicleClassComfort:  15,
	VehicleClassBusiness: 25,
}

// ValidVehicleClass проверяет, что класс автомобиля известен
func ValidVehicleClass(class VehicleClass) bool {
	_, ok := BasePrices[class]
	return ok
}

// Stop промежуточная остановка маршрута
type Stop struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Ride представляет поездку. Источник истины по статусу — бэкенд,
// клиент хранит только копию последнего ответа сервера.
// Статус поездки и статус оплаты отслеживаются независимо: поездка может
// быть completed с payment_status=pending (наличные еще не зафиксированы)
// или accepted с payment_status=paid (карта списана до подачи машины).
type Ride struct {
	ID                 uint          `json:"id"`
	PassengerID        *uint         `json:"passenger_id,omitempty"`
	DriverID           *uint         `json:"driver_id,omitempty"`
	PickupAddress      string        `json:"pickup_address"`
	DropoffAddress     string        `json:"dropoff_address"`
	PickupLat          float64       `json:"pickup_lat"`
	PickupLng          float64       `json:"pickup_lng"`
	DropoffLat         float64       `json:"dropoff_lat"`
	DropoffLng         float64       `json:"dropoff_lng"`
	Stops              []Stop        `json:"stops,omitempty"`
	VehicleClass       VehicleClass  `json:"vehicle_class"`
	Fare               float64       `json:"fare"`
	DistanceKm         float64       `json:"distance_km"`
	DurationMinutes    float64       `json:"duration_minutes"`
	Status             RideStatus    `json:"status"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	PaymentMethod      PaymentMethod `json:"payment_method"`
	GuestName          string        `json:"guest_name,omitempty"`
	GuestPhone         string        `json:"guest_phone,omitempty"`
	GuestEmail         string        `json:"guest_email,omitempty"`
	Scheduled          bool          `json:"scheduled"`
	ScheduledAt        *time.Time    `json:"scheduled_at,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	AcceptedAt         *time.Time    `json:"accepted_at,omitempty"`
	StartedAt          *time.Time    `json:"started_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Terminal сообщает, достигла ли поездка конечного состояния
func (r *Ride) Terminal() bool {
	return r.Status == RideStatusCompleted || r.Status == RideStatusCancelled
}

// RideRequest полностью денормализованный запрос на создание поездки
type RideRequest struct {
	PickupAddress   string        `json:"pickup_address" validate:"required"`
	DropoffAddress  string        `json:"dropoff_address" validate:"required"`
	PickupLat       float64       `json:"pickup_lat"`
	PickupLng       float64       `json:"pickup_lng"`
	DropoffLat      float64       `json:"dropoff_lat"`
	DropoffLng      float64       `json:"dropoff_lng"`
	Stops           []Stop        `json:"stops,omitempty"`
	VehicleClass    VehicleClass  `json:"vehicle_class" validate:"required"`
	DistanceKm      float64       `json:"distance_km"`
	DurationMinutes float64       `json:"duration_minutes"`
	EstimatedFare   float64       `json:"estimated_fare"`
	PaymentMethod   PaymentMethod `json:"payment_method" validate:"required,oneof=cash card"`
	Scheduled       bool          `json:"scheduled"`
	ScheduledAt     *time.Time    `json:"scheduled_at,omitempty"`
	PromoCode       string        `json:"promo_code,omitempty"`

	// Контакты гостя; заполняются только при отсутствии аккаунта
	GuestName  string `json:"guest_name,omitempty"`
	GuestPhone string `json:"guest_phone,omitempty"`
	GuestEmail string `json:"guest_email,omitempty"`
}

// AvailableRidesPage страница списка свободных поездок для водителя
type AvailableRidesPage struct {
	Rides      []Ride `json:"rides"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	TotalPages int    `json:"total_pages"`
	Total      int    `json:"total"`
}
