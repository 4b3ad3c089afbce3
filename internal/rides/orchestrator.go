// Package rides содержит оркестратор запроса поездки: предварительную
// проверку, создание поездки на бэкенде и ветвление по способу оплаты.
package rides

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"taxi-client/internal/api"
	"taxi-client/internal/auth"
	"taxi-client/internal/booking"
	"taxi-client/internal/models"
	"taxi-client/internal/payment"
)

// Orchestrator проводит готовую сессию бронирования через создание
// поездки и запуск оплаты. Повторная отправка во время выполняющегося
// запроса блокируется busy-флагом.
type Orchestrator struct {
	client      *api.Client
	session     *booking.Session
	authSession *auth.Session
	validate    *validator.Validate

	mu   sync.Mutex
	busy bool
}

// NewOrchestrator создает оркестратор запроса поездки
func NewOrchestrator(client *api.Client, session *booking.Session, authSession *auth.Session) *Orchestrator {
	return &Orchestrator{
		client:      client,
		session:     session,
		authSession: authSession,
		validate:    validator.New(),
	}
}

// RequestRideWithPayment создает поездку и запускает выбранный способ
// оплаты. Для оплаты картой возвращается платежная сессия провайдера;
// этап бронирования остается payment до возврата с оплаты. Для наличных
// этап сразу переводится в completed: фиксация наличной оплаты не
// блокирует поездку.
func (o *Orchestrator) RequestRideWithPayment(ctx context.Context, payload models.RideRequest, method models.PaymentMethod) (*models.Ride, *models.CheckoutSession, error) {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return nil, nil, &api.Error{
			Kind:    api.KindValidation,
			Message: "Запрос поездки уже выполняется",
		}
	}
	o.busy = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	payload.PaymentMethod = method

	// Предварительная проверка до любого сетевого вызова
	if err := o.preflight(payload); err != nil {
		return nil, nil, err
	}

	var ride models.Ride
	headers := map[string]string{"Idempotency-Key": uuid.NewString()}
	if err := o.client.PostWithHeaders(ctx, "/rides/request", payload, &ride, headers); err != nil {
		// Бэкенд создает поездку атомарно: при отказе частичной записи нет
		return nil, nil, err
	}

	o.session.SetCurrentRide(&ride)
	if err := o.session.Advance(models.BookingStagePayment); err != nil {
		log.Printf("Сессия бронирования не перешла на этап payment: %v", err)
	}

	switch method {
	case models.PaymentMethodCash:
		if err := payment.ProcessCashPayment(ctx, o.client, ride.ID, payload.GuestPhone); err != nil {
			log.Printf("Ошибка фиксации наличной оплаты: %v", err)
		}
		if err := o.session.Advance(models.BookingStageCompleted); err != nil {
			log.Printf("Сессия бронирования не перешла на этап completed: %v", err)
		}
		return &ride, nil, nil

	case models.PaymentMethodCard:
		var checkout models.CheckoutSession
		path := fmt.Sprintf("/payments/ride/%d/checkout-session", ride.ID)
		if err := o.client.Post(ctx, path, nil, &checkout); err != nil {
			// Карточная оплата блокирует продвижение: без исхода оплаты
			// этап бронирования остается payment
			return &ride, nil, err
		}
		return &ride, &checkout, nil

	default:
		return &ride, nil, &api.Error{
			Kind:    api.KindValidation,
			Message: fmt.Sprintf("Неизвестный способ оплаты: %s", method),
		}
	}
}

// preflight проверяет запрос до обращения к сети и возвращает
// человекочитаемую причину отказа
func (o *Orchestrator) preflight(payload models.RideRequest) error {
	if !models.ValidVehicleClass(payload.VehicleClass) {
		return &api.Error{
			Kind:    api.KindValidation,
			Message: fmt.Sprintf("Неизвестный класс автомобиля: %s", payload.VehicleClass),
		}
	}
	if payload.PickupAddress == "" {
		return &api.Error{
			Kind:    api.KindValidation,
			Message: "Не указан адрес подачи",
		}
	}
	if payload.DropoffAddress == "" {
		return &api.Error{
			Kind:    api.KindValidation,
			Message: "Не указан адрес назначения",
		}
	}
	if payload.Scheduled && payload.ScheduledAt == nil {
		return &api.Error{
			Kind:    api.KindValidation,
			Message: "Не указано время запланированной поездки",
		}
	}
	if !o.authSession.IsAuthenticated() && (payload.GuestName == "" || payload.GuestPhone == "") {
		return &api.Error{
			Kind:    api.KindValidation,
			Message: "Не указаны данные гостя: нужны имя и телефон",
		}
	}

	if err := o.validate.Struct(payload); err != nil {
		return &api.Error{
			Kind:    api.KindValidation,
			Message: fmt.Sprintf("Неверные данные запроса: %v", err),
			Err:     err,
		}
	}

	return nil
}

// Ride перечитывает поездку с бэкенда, например чтобы показать
// актуальный payment_status после возврата с оплаты
func (o *Orchestrator) Ride(ctx context.Context, id uint) (*models.Ride, error) {
	var ride models.Ride
	if err := o.client.Get(ctx, fmt.Sprintf("/rides/%d", id), &ride); err != nil {
		return nil, err
	}
	return &ride, nil
}

// Busy сообщает, выполняется ли сейчас запрос поездки
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}
