package main

import (
	"sync"
	"time"

	"taxi-client/internal/models"
)

// memStore состояние dev-сервера в памяти. Это локальный стенд для
// разработки клиента, а не настоящий бэкенд: никакой базы, все теряется
// при перезапуске.
type memStore struct {
	mu sync.Mutex

	nextUserID uint
	nextRideID uint

	users      map[uint]*models.User
	byPhone    map[string]uint
	rides      map[uint]*models.Ride
	checkouts  map[string]*checkoutState
	positions  []models.Position
	available  map[uint]bool
	promotions []models.Promotion
}

// checkoutState платежная сессия симулируемого провайдера.
// Первый опрос статуса завершает оплату, но чек "еще в очереди";
// со второго опроса чек считается отправленным — это воспроизводит
// асинхронную отправку квитанции настоящим бэкендом.
type checkoutState struct {
	RideID      uint
	StatusPolls int
}

func newMemStore() *memStore {
	return &memStore{
		nextUserID: 1,
		nextRideID: 1,
		users:      make(map[uint]*models.User),
		byPhone:    make(map[string]uint),
		rides:      make(map[uint]*models.Ride),
		checkouts:  make(map[string]*checkoutState),
		available:  make(map[uint]bool),
		promotions: []models.Promotion{
			{ID: 1, Code: "WELCOME10", DiscountPercent: 10, Active: true, CreatedAt: time.Now()},
			{ID: 2, Code: "SUMMER25", DiscountPercent: 25, Active: false, CreatedAt: time.Now()},
		},
	}
}

func (s *memStore) createUser(firstName, lastName, phone, email, role string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byPhone[phone]; ok {
		return s.users[id]
	}

	if role == "" {
		role = models.RoleUser
	}
	user := &models.User{
		ID:        s.nextUserID,
		FirstName: firstName,
		LastName:  lastName,
		Phone:     phone,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.nextUserID++
	s.users[user.ID] = user
	s.byPhone[phone] = user.ID
	return user
}

func (s *memStore) userByPhone(phone string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byPhone[phone]; ok {
		return s.users[id]
	}
	return nil
}

func (s *memStore) user(id uint) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *memStore) createRide(ride *models.Ride) *models.Ride {
	s.mu.Lock()
	defer s.mu.Unlock()

	ride.ID = s.nextRideID
	s.nextRideID++
	ride.Status = models.RideStatusRequested
	ride.PaymentStatus = models.PaymentStatusPending
	ride.CreatedAt = time.Now()
	ride.UpdatedAt = time.Now()
	s.rides[ride.ID] = ride
	return ride
}

func (s *memStore) ride(id uint) *models.Ride {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rides[id]
}

func (s *memStore) requestedRides(page, perPage int) models.AvailableRidesPage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var requested []models.Ride
	for id := uint(1); id < s.nextRideID; id++ {
		if ride, ok := s.rides[id]; ok && ride.Status == models.RideStatusRequested {
			requested = append(requested, *ride)
		}
	}

	total := len(requested)
	totalPages := (total + perPage - 1) / perPage
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	return models.AvailableRidesPage{
		Rides:      requested[start:end],
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Total:      total,
	}
}

func (s *memStore) activeRideForDriver(driverID uint) *models.Ride {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ride := range s.rides {
		if ride.DriverID != nil && *ride.DriverID == driverID && !ride.Terminal() {
			return ride
		}
	}
	return nil
}

func (s *memStore) driverEarnings(driverID uint) models.DriverEarnings {
	s.mu.Lock()
	defer s.mu.Unlock()

	earnings := models.DriverEarnings{Period: "all"}
	for _, ride := range s.rides {
		if ride.DriverID != nil && *ride.DriverID == driverID && ride.Status == models.RideStatusCompleted {
			earnings.TotalRides++
			earnings.TotalEarnings += ride.Fare
		}
	}
	return earnings
}

func (s *memStore) drivers() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	var drivers []models.User
	for id := uint(1); id < s.nextUserID; id++ {
		if user, ok := s.users[id]; ok && user.Role == models.RoleDriver {
			drivers = append(drivers, *user)
		}
	}
	return drivers
}
