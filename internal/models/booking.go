package models

import (
	"time"
)

type BookingStage string

const (
	BookingStageEstimation   BookingStage = "estimation"   // Подбор маршрута и расчет цены
	BookingStageConfirmation BookingStage = "confirmation" // Подтверждение данных пассажира
	BookingStagePayment      BookingStage = "payment"      // Выбор и проведение оплаты
	BookingStageCompleted    BookingStage = "completed"    // Поездка создана и оплата запущена
)

// stageOrder порядок этапов; этап движется только вперед
var stageOrder = map[BookingStage]int{
	BookingStageEstimation:   0,
	BookingStageConfirmation: 1,
	BookingStagePayment:      2,
	BookingStageCompleted:    3,
}

// StageRank возвращает порядковый номер этапа (-1 для неизвестного)
func StageRank(s BookingStage) int {
	if rank, ok := stageOrder[s]; ok {
		return rank
	}
	return -1
}

// RideDetails результат расчета поездки внутри сессии бронирования
type RideDetails struct {
	PickupAddress   string       `json:"pickup_address"`
	DropoffAddress  string       `json:"dropoff_address"`
	PickupLat       *float64     `json:"pickup_lat,omitempty"`
	PickupLng       *float64     `json:"pickup_lng,omitempty"`
	DropoffLat      *float64     `json:"dropoff_lat,omitempty"`
	DropoffLng      *float64     `json:"dropoff_lng,omitempty"`
	Stops           []Stop       `json:"stops,omitempty"`
	VehicleClass    VehicleClass `json:"vehicle_class"`
	Scheduled       bool         `json:"scheduled"`
	ScheduledAt     *time.Time   `json:"scheduled_at,omitempty"`
	DistanceKm      float64      `json:"distance_km"`
	DurationMinutes float64      `json:"duration_minutes"`
	EstimatedFare   float64      `json:"estimated_fare"`
}

// PassengerInfo данные пассажира; для гостя имя и телефон обязательны
type PassengerInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// BookingSession сессия бронирования одного пассажира.
// Живет от первого расчета цены до завершения поездки, переживает
// перезагрузку страницы через сохраненный снимок.
type BookingSession struct {
	Stage         BookingStage  `json:"stage"`
	RideDetails   *RideDetails  `json:"ride_details,omitempty"`
	PassengerInfo PassengerInfo `json:"passenger_info"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	PromoCode     string        `json:"promo_code,omitempty"`
	CurrentRide   *Ride         `json:"current_ride,omitempty"`
}
