// Package booking владеет сессией бронирования пассажира: единственной
// изменяемой записью, которая ведет бронирование от расчета цены до
// завершения и переживает перезагрузку через снимок в хранилище.
package booking

import (
	"fmt"
	"log"
	"sync"

	"taxi-client/internal/models"
	"taxi-client/internal/storage"
)

// Session сессия бронирования. Все мутации проходят через методы под
// мьютексом, после каждой мутации состояние сохраняется в хранилище.
// Одновременные вкладки вне рамок задачи: снимок перезаписывается по
// принципу "последняя запись побеждает".
type Session struct {
	mu    sync.Mutex
	state models.BookingSession
	store storage.Store
}

// NewSession создает сессию, восстанавливая снимок из хранилища если он есть
func NewSession(store storage.Store) *Session {
	s := &Session{
		store: store,
		state: models.BookingSession{Stage: models.BookingStageEstimation},
	}

	var saved models.BookingSession
	if found, err := store.Read(storage.KeyBooking, &saved); err != nil {
		log.Printf("Ошибка при чтении сессии бронирования: %v", err)
	} else if found && models.StageRank(saved.Stage) >= 0 {
		s.state = saved
	}

	return s
}

// Snapshot возвращает копию текущего состояния сессии
func (s *Session) Snapshot() models.BookingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stage возвращает текущий этап
func (s *Session) Stage() models.BookingStage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Stage
}

// Advance переводит сессию на следующий этап. Этап движется только
// вперед; откат возможен только через Reset. Этап completed достижим
// только после того, как бэкенд создал поездку.
func (s *Session) Advance(to models.BookingStage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	toRank := models.StageRank(to)
	if toRank < 0 {
		return fmt.Errorf("неизвестный этап бронирования: %s", to)
	}
	if toRank < models.StageRank(s.state.Stage) {
		return fmt.Errorf("этап бронирования не может вернуться с %s на %s", s.state.Stage, to)
	}
	if to == models.BookingStageCompleted && s.state.CurrentRide == nil {
		return fmt.Errorf("этап completed недоступен до создания поездки")
	}

	s.state.Stage = to
	s.persist()
	return nil
}

// SetRideDetails записывает результат расчета поездки
func (s *Session) SetRideDetails(details models.RideDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.RideDetails = &details
	s.persist()
}

// RideDetails возвращает копию расчета поездки, если он есть
func (s *Session) RideDetails() *models.RideDetails {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.RideDetails == nil {
		return nil
	}
	details := *s.state.RideDetails
	return &details
}

// SetPassengerInfo записывает данные пассажира
func (s *Session) SetPassengerInfo(info models.PassengerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PassengerInfo = info
	s.persist()
}

// PassengerInfo возвращает данные пассажира
func (s *Session) PassengerInfo() models.PassengerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PassengerInfo
}

// SetPaymentMethod выбирает способ оплаты
func (s *Session) SetPaymentMethod(method models.PaymentMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PaymentMethod = method
	s.persist()
}

// PaymentMethod возвращает выбранный способ оплаты
func (s *Session) PaymentMethod() models.PaymentMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PaymentMethod
}

// SetPromoCode записывает промокод
func (s *Session) SetPromoCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PromoCode = code
	s.persist()
}

// SetCurrentRide сохраняет созданную бэкендом поездку
func (s *Session) SetCurrentRide(ride *models.Ride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentRide = ride
	s.persist()
}

// CurrentRide возвращает копию текущей поездки, если она есть
func (s *Session) CurrentRide() *models.Ride {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentRide == nil {
		return nil
	}
	ride := *s.state.CurrentRide
	return &ride
}

// ClearBooking сбрасывает поля бронирования (расчет, пассажир, оплата,
// промокод), но сохраняет ссылку на текущую поездку
func (s *Session) ClearBooking() {
	s.mu.Lock()
	defer s.mu.Unlock()
	ride := s.state.CurrentRide
	s.state = models.BookingSession{
		Stage:       models.BookingStageEstimation,
		CurrentRide: ride,
	}
	s.persist()
}

// Reset полностью сбрасывает сессию, включая ссылку на поездку
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = models.BookingSession{Stage: models.BookingStageEstimation}
	if err := s.store.Delete(storage.KeyBooking); err != nil {
		log.Printf("Ошибка при удалении сессии бронирования: %v", err)
	}
}

// persist вызывается только под мьютексом
func (s *Session) persist() {
	if err := s.store.Write(storage.KeyBooking, s.state); err != nil {
		log.Printf("Ошибка при сохранении сессии бронирования: %v", err)
	}
}
