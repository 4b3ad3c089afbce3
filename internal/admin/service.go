// Package admin содержит административный кабинет: проверку водителей
// и аудит поездок и платежей. Действие проверки бинарное и применяется
// оптимистично с откатом при отказе сервера.
package admin

import (
	"context"
	"fmt"
	"sync"

	"taxi-client/internal/api"
	"taxi-client/internal/models"
)

// Service клиент административного кабинета с локальным списком
// водителей для оптимистичных обновлений
type Service struct {
	client *api.Client

	mu      sync.Mutex
	drivers map[uint]*models.User
}

// NewService создает сервис администратора
func NewService(client *api.Client) *Service {
	return &Service{
		client:  client,
		drivers: make(map[uint]*models.User),
	}
}

// ListDrivers загружает список водителей и обновляет локальный кэш
func (s *Service) ListDrivers(ctx context.Context, page int) ([]models.User, error) {
	if page < 1 {
		page = 1
	}
	var drivers []models.User
	if err := s.client.Get(ctx, fmt.Sprintf("/admin/drivers?page=%d", page), &drivers); err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i := range drivers {
		driver := drivers[i]
		s.drivers[driver.ID] = &driver
	}
	s.mu.Unlock()

	return drivers, nil
}

// Driver возвращает водителя из локального кэша
func (s *Service) Driver(id uint) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if driver, ok := s.drivers[id]; ok {
		copied := *driver
		return &copied
	}
	return nil
}

// GetDriver загружает карточку водителя с бэкенда
func (s *Service) GetDriver(ctx context.Context, id uint) (*models.User, error) {
	var driver models.User
	if err := s.client.Get(ctx, fmt.Sprintf("/admin/drivers/%d", id), &driver); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.drivers[id] = &driver
	s.mu.Unlock()

	copied := driver
	return &copied, nil
}

// SetDriverVerified проставляет решение по водителю оптимистично:
// локальный флаг меняется сразу, а при отказе сервера возвращается
// к снимку
func (s *Service) SetDriverVerified(ctx context.Context, id uint, verified bool) error {
	s.mu.Lock()
	driver, ok := s.drivers[id]
	s.mu.Unlock()
	if !ok {
		return &api.Error{
			Kind:    api.KindValidation,
			Message: fmt.Sprintf("Водитель %d не загружен", id),
		}
	}

	snapshot := driver.Verified

	tx := Transaction{
		Apply: func() {
			s.mu.Lock()
			driver.Verified = verified
			s.mu.Unlock()
		},
		Remote: func() error {
			body := map[string]bool{"verified": verified}
			return s.client.Put(ctx, fmt.Sprintf("/admin/drivers/%d/verify", id), body, nil)
		},
		Rollback: func() {
			s.mu.Lock()
			driver.Verified = snapshot
			s.mu.Unlock()
		},
	}

	return tx.Run()
}

// VerifyDriver подтверждает водителя
func (s *Service) VerifyDriver(ctx context.Context, id uint) error {
	return s.SetDriverVerified(ctx, id, true)
}

// RejectDriver отклоняет водителя
func (s *Service) RejectDriver(ctx context.Context, id uint) error {
	return s.SetDriverVerified(ctx, id, false)
}

// ListRides аудит поездок
func (s *Service) ListRides(ctx context.Context, page int) ([]models.Ride, error) {
	if page < 1 {
		page = 1
	}
	var rides []models.Ride
	if err := s.client.Get(ctx, fmt.Sprintf("/admin/rides?page=%d", page), &rides); err != nil {
		return nil, err
	}
	return rides, nil
}

// ListUsers аудит пользователей
func (s *Service) ListUsers(ctx context.Context, page int) ([]models.User, error) {
	if page < 1 {
		page = 1
	}
	var users []models.User
	if err := s.client.Get(ctx, fmt.Sprintf("/admin/users?page=%d", page), &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListPromotions список промокодов
func (s *Service) ListPromotions(ctx context.Context, page int) ([]models.Promotion, error) {
	if page < 1 {
		page = 1
	}
	var promotions []models.Promotion
	if err := s.client.Get(ctx, fmt.Sprintf("/admin/promotions?page=%d", page), &promotions); err != nil {
		return nil, err
	}
	return promotions, nil
}
