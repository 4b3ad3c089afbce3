// Package auth владеет сессией пользователя: восстановлением после
// перезапуска (bootstrap), входом/выходом и централизованным сбросом
// по ответу 401 от любого вызова API.
package auth

import (
	"context"
	"log"
	"sync"

	"taxi-client/internal/api"
	"taxi-client/internal/metrics"
	"taxi-client/internal/models"
	"taxi-client/internal/storage"
)

// StoredAuth снимок учетных данных в хранилище
type StoredAuth struct {
	Token string       `json:"token"`
	User  *models.User `json:"user,omitempty"`
}

// LoginRequest запрос на вход
type LoginRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// RegisterRequest запрос на регистрацию
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
}

// AuthResponse ответ бэкенда на вход или регистрацию
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Session сессия пользователя. Токен без загруженного пользователя —
// допустимое переходное состояние ("bootstrapping"), отличное и от
// аутентифицированного, и от анонимного.
type Session struct {
	mu                 sync.Mutex
	user               *models.User
	token              string
	isLoading          bool
	bootstrapAttempted bool
	invalidateOnce     *sync.Once
	subscribers        []func()

	client *api.Client
	store  storage.Store
}

// NewSession создает сессию, восстанавливая сохраненный токен.
// Пользователь при этом не считается загруженным: его профиль
// перечитывается через Bootstrap.
func NewSession(client *api.Client, store storage.Store) *Session {
	s := &Session{
		client:         client,
		store:          store,
		invalidateOnce: &sync.Once{},
	}

	var saved StoredAuth
	if found, err := store.Read(storage.KeyAuth, &saved); err != nil {
		log.Printf("Ошибка при чтении сохраненной сессии: %v", err)
	} else if found && saved.Token != "" {
		s.token = saved.Token
		s.isLoading = true
		client.SetToken(saved.Token)
	}

	client.OnUnauthorized(s.Invalidate)
	return s
}

// HasStoredToken сообщает, есть ли сохраненный токен
func (s *Session) HasStoredToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// IsAuthenticated сообщает, что сессия полностью подтверждена:
// есть и токен, и загруженный пользователь
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && s.user != nil
}

// IsLoading сообщает, идет ли восстановление сессии
func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoading
}

// User возвращает загруженного пользователя или nil
func (s *Session) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

// Subscribe регистрирует подписчика на сброс сессии.
// Подписчики вызываются ровно один раз за время жизни одного входа.
func (s *Session) Subscribe(fn func()) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

// Bootstrap выполняет не более одной попытки восстановления за монтирование:
// если токен есть, а пользователь еще не загружен, запрашивает профиль.
// Ошибка запроса гасится локально — решение о редиректе принимает гейт.
func (s *Session) Bootstrap(ctx context.Context) {
	s.mu.Lock()
	if s.token == "" || s.user != nil || s.bootstrapAttempted {
		s.isLoading = false
		s.mu.Unlock()
		if s.token == "" {
			metrics.BootstrapTotal.WithLabelValues("anonymous").Inc()
		}
		return
	}
	s.bootstrapAttempted = true
	s.mu.Unlock()

	var user models.User
	err := s.client.Get(ctx, "/user", &user)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.isLoading = false
	if err != nil {
		// 401 уже сбросил сессию через Invalidate; прочие ошибки гасим
		log.Printf("Не удалось восстановить сессию: %v", err)
		metrics.BootstrapTotal.WithLabelValues("failed").Inc()
		return
	}
	if s.token == "" {
		// Сессию успели сбросить, пока шел запрос
		return
	}
	s.user = &user
	metrics.BootstrapTotal.WithLabelValues("restored").Inc()
	s.persist()
}

// Login выполняет вход и открывает новую эпоху сессии
func (s *Session) Login(ctx context.Context, req LoginRequest) (*models.User, error) {
	var resp AuthResponse
	if err := s.client.Post(ctx, "/login", req, &resp); err != nil {
		return nil, err
	}
	s.adopt(resp)
	return resp.User, nil
}

// Register регистрирует пользователя и сразу открывает сессию
func (s *Session) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	var resp AuthResponse
	if err := s.client.Post(ctx, "/register", req, &resp); err != nil {
		return nil, err
	}
	s.adopt(resp)
	return resp.User, nil
}

// Logout завершает сессию; ошибка бэкенда не мешает локальному сбросу
func (s *Session) Logout(ctx context.Context) {
	if err := s.client.Post(ctx, "/logout", nil, nil); err != nil {
		log.Printf("Ошибка при выходе на бэкенде: %v", err)
	}
	s.Invalidate()
}

// UpdateProfile обновляет профиль и локальную копию пользователя
func (s *Session) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error) {
	var user models.User
	if err := s.client.Put(ctx, "/user/profile", update, &user); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.user = &user
	s.persist()
	s.mu.Unlock()
	return &user, nil
}

// Invalidate атомарно сбрасывает токен и пользователя и уведомляет
// подписчиков. Повторные вызовы в рамках одной эпохи — no-op, поэтому
// несколько одновременных 401 дают ровно одно уведомление.
func (s *Session) Invalidate() {
	s.mu.Lock()
	once := s.invalidateOnce
	s.mu.Unlock()

	once.Do(func() {
		s.mu.Lock()
		s.token = ""
		s.user = nil
		s.isLoading = false
		s.bootstrapAttempted = false
		subscribers := make([]func(), len(s.subscribers))
		copy(subscribers, s.subscribers)
		s.mu.Unlock()

		s.client.ClearToken()
		if err := s.store.Delete(storage.KeyAuth); err != nil {
			log.Printf("Ошибка при удалении сохраненной сессии: %v", err)
		}

		for _, fn := range subscribers {
			fn()
		}
	})
}

// adopt принимает новую пару токен+пользователь и открывает новую эпоху
func (s *Session) adopt(resp AuthResponse) {
	s.mu.Lock()
	s.token = resp.Token
	s.user = resp.User
	s.isLoading = false
	s.bootstrapAttempted = false
	s.invalidateOnce = &sync.Once{}
	s.persist()
	s.mu.Unlock()

	s.client.SetToken(resp.Token)
}

// persist вызывается только под мьютексом
func (s *Session) persist() {
	if err := s.store.Write(storage.KeyAuth, StoredAuth{Token: s.token, User: s.user}); err != nil {
		log.Printf("Ошибка при сохранении сессии: %v", err)
	}
}
