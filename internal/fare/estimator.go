// Package fare рассчитывает стоимость поездки: основной путь через
// матрицу расстояний картографического провайдера и детерминированный
// офлайн-фолбэк, когда провайдер недоступен.
package fare

import (
	"context"
	"fmt"
	"log"
	"math"

	"taxi-client/internal/booking"
	"taxi-client/internal/maps"
	"taxi-client/internal/models"
)

// Коэффициенты тарифа: за километр и за минуту
const (
	perKmRate     = 1.5
	perMinuteRate = 0.3
)

// MatrixProvider часть клиента карт, нужная эстиматору
type MatrixProvider interface {
	RouteMatrix(ctx context.Context, points []maps.Point) (*maps.MatrixResponse, error)
}

// Estimator рассчитывает цену и записывает результат в сессию бронирования
type Estimator struct {
	provider MatrixProvider
	session  *booking.Session
	prices   map[models.VehicleClass]float64
}

// NewEstimator создает эстиматор с тарифной таблицей по умолчанию
func NewEstimator(provider MatrixProvider, session *booking.Session) *Estimator {
	return &Estimator{
		provider: provider,
		session:  session,
		prices:   models.BasePrices,
	}
}

// SetBasePrices переопределяет тарифную таблицу
func (e *Estimator) SetBasePrices(prices map[models.VehicleClass]float64) {
	e.prices = prices
}

// Fare считает стоимость по формуле тарифа, округляя до копеек.
// Стоимость никогда не опускается ниже базовой цены класса.
func Fare(basePrice, distanceKm, durationMinutes float64) float64 {
	fare := basePrice + distanceKm*perKmRate + durationMinutes*perMinuteRate
	if fare < basePrice {
		fare = basePrice
	}
	return math.Round(fare*100) / 100
}

// FallbackEstimate детерминированная офлайн-оценка: чистая функция от
// количества остановок
func FallbackEstimate(stopCount int) (distanceKm, durationMinutes float64) {
	distanceKm = 10 + 5*float64(stopCount)
	durationMinutes = 2 * distanceKm
	return distanceKm, durationMinutes
}

// Estimate рассчитывает поездку и переводит сессию на этап confirmation.
// Ошибки провайдера не видны пользователю: фолбэк срабатывает всегда.
func (e *Estimator) Estimate(ctx context.Context, details models.RideDetails) (models.RideDetails, error) {
	basePrice, ok := e.prices[details.VehicleClass]
	if !ok {
		return models.RideDetails{}, fmt.Errorf("неизвестный класс автомобиля: %s", details.VehicleClass)
	}

	distanceKm, durationMinutes, err := e.routeEstimate(ctx, details)
	if err != nil {
		log.Printf("Провайдер маршрутов недоступен, используем офлайн-оценку: %v", err)
		distanceKm, durationMinutes = FallbackEstimate(len(details.Stops))
	}

	details.DistanceKm = distanceKm
	details.DurationMinutes = durationMinutes
	details.EstimatedFare = Fare(basePrice, distanceKm, durationMinutes)

	e.session.SetRideDetails(details)
	if err := e.session.Advance(models.BookingStageConfirmation); err != nil {
		log.Printf("Сессия уже прошла этап confirmation: %v", err)
	}

	return details, nil
}

// routeEstimate основной путь: суммирует отрезки цепочки
// подача → остановки → назначение по матрице провайдера
func (e *Estimator) routeEstimate(ctx context.Context, details models.RideDetails) (float64, float64, error) {
	if details.PickupLat == nil || details.PickupLng == nil ||
		details.DropoffLat == nil || details.DropoffLng == nil {
		return 0, 0, fmt.Errorf("нет координат подачи или назначения")
	}

	points := []maps.Point{{Lat: *details.PickupLat, Lng: *details.PickupLng}}
	for _, stop := range details.Stops {
		if stop.Lat != nil && stop.Lng != nil {
			points = append(points, maps.Point{Lat: *stop.Lat, Lng: *stop.Lng})
		}
	}
	points = append(points, maps.Point{Lat: *details.DropoffLat, Lng: *details.DropoffLng})

	matrix, err := e.provider.RouteMatrix(ctx, points)
	if err != nil {
		return 0, 0, err
	}
	if len(matrix.Legs) == 0 {
		return 0, 0, fmt.Errorf("провайдер вернул пустой маршрут")
	}

	var meters, seconds int
	for _, leg := range matrix.Legs {
		meters += leg.DistanceMeters
		seconds += leg.DurationSeconds
	}

	return float64(meters) / 1000, float64(seconds) / 60, nil
}
