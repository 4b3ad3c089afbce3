// Package driver управляет текущей поездкой водителя: принятие, начало,
// завершение и отмена с защитными предикатами, а также потоковая отправка
// геопозиции, пока водитель на линии или везет пассажира.
package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"taxi-client/internal/api"
	"taxi-client/internal/models"
)

// Controller контроллер жизненного цикла поездки одного водителя.
// Следующее состояние не вычисляется локально: после каждого перехода
// локальная копия заменяется авторитетным ответом сервера, поэтому
// оптимистичные догадки не расходятся с истиной бэкенда.
type Controller struct {
	client   *api.Client
	streamer *LocationStreamer

	mu        sync.Mutex
	ride      *models.Ride
	available bool
	busy      bool
}

// NewController создает контроллер водителя
func NewController(client *api.Client, streamer *LocationStreamer) *Controller {
	return &Controller{client: client, streamer: streamer}
}

// CurrentRide возвращает копию текущей поездки или nil
func (c *Controller) CurrentRide() *models.Ride {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ride == nil {
		return nil
	}
	ride := *c.ride
	return &ride
}

// Available сообщает, на линии ли водитель
func (c *Controller) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

// CanStart поездку можно начать только из accepted
func (c *Controller) CanStart() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ride != nil && c.ride.Status == models.RideStatusAccepted
}

// CanComplete поездку можно завершить только из in_progress
func (c *Controller) CanComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ride != nil && c.ride.Status == models.RideStatusInProgress
}

// CanCancel отмена доступна из requested, accepted и in_progress
func (c *Controller) CanCancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ride != nil && !c.ride.Terminal()
}

// FetchActive загружает активную поездку водителя с бэкенда
func (c *Controller) FetchActive(ctx context.Context) (*models.Ride, error) {
	var ride models.Ride
	if err := c.client.Get(ctx, "/rides/active", &ride); err != nil {
		return nil, err
	}
	c.replaceRide(&ride)
	return c.CurrentRide(), nil
}

// AvailableRides возвращает страницу свободных поездок. После успешного
// принятия поездки клиент просто перезапрашивает страницу и доверяет
// бэкенду, что занятая поездка из нее исчезла.
func (c *Controller) AvailableRides(ctx context.Context, page int) (*models.AvailableRidesPage, error) {
	if page < 1 {
		page = 1
	}
	var result models.AvailableRidesPage
	if err := c.client.Get(ctx, fmt.Sprintf("/rides/available?page=%d", page), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Accept принимает поездку из списка свободных
func (c *Controller) Accept(ctx context.Context, rideID uint) (*models.Ride, error) {
	return c.transition(ctx, rideID, "accept", nil)
}

// Start начинает принятую поездку
func (c *Controller) Start(ctx context.Context) (*models.Ride, error) {
	if !c.CanStart() {
		return nil, &api.Error{
			Kind:    api.KindValidation,
			Message: "Поездку можно начать только после принятия",
		}
	}
	return c.transition(ctx, c.mustRideID(), "start", nil)
}

// Complete завершает начатую поездку
func (c *Controller) Complete(ctx context.Context) (*models.Ride, error) {
	if !c.CanComplete() {
		return nil, &api.Error{
			Kind:    api.KindValidation,
			Message: "Поездку можно завершить только после начала",
		}
	}
	return c.transition(ctx, c.mustRideID(), "complete", nil)
}

// Cancel отменяет поездку с обязательной причиной. Пустая причина
// отклоняется на клиенте без сетевого вызова.
func (c *Controller) Cancel(ctx context.Context, reason string) (*models.Ride, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &api.Error{
			Kind:    api.KindValidation,
			Message: "Укажите причину отмены",
		}
	}
	if !c.CanCancel() {
		return nil, &api.Error{
			Kind:    api.KindValidation,
			Message: "Поездку уже нельзя отменить",
		}
	}
	body := map[string]string{"reason": strings.TrimSpace(reason)}
	return c.transition(ctx, c.mustRideID(), "cancel", body)
}

// transition выполняет один переход статуса: единственный вызов бэкенда,
// идемпотентный при успехе, ответ которого замещает локальную копию
func (c *Controller) transition(ctx context.Context, rideID uint, action string, body interface{}) (*models.Ride, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, &api.Error{
			Kind:    api.KindValidation,
			Message: "Предыдущее действие еще выполняется",
		}
	}
	c.busy = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	var ride models.Ride
	path := fmt.Sprintf("/rides/%d/%s", rideID, action)
	if err := c.client.Post(ctx, path, body, &ride); err != nil {
		// Состояние не трогаем: сервер отклонил переход, локальная копия
		// осталась прежней
		return nil, err
	}

	c.replaceRide(&ride)
	return c.CurrentRide(), nil
}

// SetAvailability переключает статус "на линии" и потоковую геопозицию
func (c *Controller) SetAvailability(ctx context.Context, available bool) error {
	body := map[string]bool{"available": available}
	if err := c.client.Put(ctx, "/driver/availability", body, nil); err != nil {
		return err
	}

	c.mu.Lock()
	c.available = available
	c.mu.Unlock()

	c.updateStreaming()
	return nil
}

// Earnings возвращает сводку заработка водителя
func (c *Controller) Earnings(ctx context.Context) (*models.DriverEarnings, error) {
	var earnings models.DriverEarnings
	if err := c.client.Get(ctx, "/driver/earnings", &earnings); err != nil {
		return nil, err
	}
	return &earnings, nil
}

// RegisterDriver подает заявку на регистрацию водителем
func (c *Controller) RegisterDriver(ctx context.Context, application map[string]string) error {
	return c.client.Post(ctx, "/driver/register", application, nil)
}

func (c *Controller) mustRideID() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ride == nil {
		return 0
	}
	return c.ride.ID
}

func (c *Controller) replaceRide(ride *models.Ride) {
	c.mu.Lock()
	if ride != nil && ride.Terminal() {
		c.ride = nil
	} else {
		c.ride = ride
	}
	c.mu.Unlock()

	c.updateStreaming()
}

// updateStreaming включает поток геопозиции, пока водитель на линии или
// есть активная поездка, и немедленно выключает, когда оба условия пропали
func (c *Controller) updateStreaming() {
	if c.streamer == nil {
		return
	}

	c.mu.Lock()
	shouldStream := c.available || c.ride != nil
	c.mu.Unlock()

	if shouldStream {
		c.streamer.Start()
	} else {
		c.streamer.Stop()
	}
}
