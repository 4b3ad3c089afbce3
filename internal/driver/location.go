package driver

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"taxi-client/internal/api"
	"taxi-client/internal/metrics"
	"taxi-client/internal/models"
)

// LocationSource источник геопозиции устройства. Реализация обязана
// закрыть канал при отмене контекста.
type LocationSource interface {
	Watch(ctx context.Context) (<-chan models.Position, error)
}

// LocationStreamer отправляет позицию водителя на бэкенд: по WebSocket,
// а при проблемах с соединением — обычным POST. Отправка ограничена
// одним пушем в interval независимо от частоты источника: это лимит
// записи на бэкенде, а не прореживание слежения.
type LocationStreamer struct {
	client         *api.Client
	wsURL          string
	source         LocationSource
	interval       time.Duration
	acquireTimeout time.Duration

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	lastPush time.Time
	conn     *websocket.Conn
}

// NewLocationStreamer создает стример геопозиции
func NewLocationStreamer(client *api.Client, wsURL string, source LocationSource, interval, acquireTimeout time.Duration) *LocationStreamer {
	return &LocationStreamer{
		client:         client,
		wsURL:          wsURL,
		source:         source,
		interval:       interval,
		acquireTimeout: acquireTimeout,
	}
}

// Start запускает поток. Повторный запуск — no-op: вторая подписка на
// источник геопозиции была бы утечкой ресурса.
func (s *LocationStreamer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	go s.loop(ctx)
}

// Stop немедленно останавливает поток
func (s *LocationStreamer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.cancel()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Running сообщает, идет ли поток
func (s *LocationStreamer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *LocationStreamer) loop(ctx context.Context) {
	positions, err := s.source.Watch(ctx)
	if err != nil {
		log.Printf("Не удалось подписаться на геопозицию: %v", err)
		s.Stop()
		return
	}

	// Ограниченное ожидание первой позиции: по истечении считаем
	// местоположение недоступным, а не висим без ответа
	acquire := time.NewTimer(s.acquireTimeout)
	defer acquire.Stop()

	var first models.Position
	select {
	case <-ctx.Done():
		return
	case <-acquire.C:
		log.Printf("Местоположение недоступно: нет данных за %s", s.acquireTimeout)
		s.Stop()
		return
	case pos, ok := <-positions:
		if !ok {
			return
		}
		first = pos
	}

	s.push(ctx, first)

	for {
		select {
		case <-ctx.Done():
			return
		case pos, ok := <-positions:
			if !ok {
				return
			}
			s.mu.Lock()
			tooSoon := time.Since(s.lastPush) < s.interval
			s.mu.Unlock()
			if tooSoon {
				metrics.LocationPushesTotal.WithLabelValues("dropped").Inc()
				continue
			}
			s.push(ctx, pos)
		}
	}
}

// push отправляет позицию, ошибки гасятся: телеметрия по возможности,
// следующий тик повторит отправку сам
func (s *LocationStreamer) push(ctx context.Context, pos models.Position) {
	s.mu.Lock()
	s.lastPush = time.Now()
	s.mu.Unlock()

	if err := s.pushWS(pos); err == nil {
		metrics.LocationPushesTotal.WithLabelValues("sent").Inc()
		return
	}

	if err := s.client.Post(ctx, "/driver/location", pos, nil); err != nil {
		log.Printf("Отправка геопозиции не удалась: %v", err)
		metrics.LocationPushesTotal.WithLabelValues("failed").Inc()
		return
	}
	metrics.LocationPushesTotal.WithLabelValues("sent").Inc()
}

// pushWS отправляет позицию по WebSocket, при ошибке соединение
// закрывается и следующий вызов попробует переподключиться
func (s *LocationStreamer) pushWS(pos models.Position) error {
	if s.wsURL == "" {
		return fmt.Errorf("websocket не настроен")
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
		header := map[string][]string{}
		if token := s.client.Token(); token != "" {
			header["Authorization"] = []string{"Bearer " + token}
		}
		newConn, _, err := dialer.Dial(s.wsURL+"/ws/driver/location", header)
		if err != nil {
			return fmt.Errorf("ошибка подключения websocket: %w", err)
		}
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			newConn.Close()
			return fmt.Errorf("поток остановлен")
		}
		s.conn = newConn
		conn = newConn
		s.mu.Unlock()
	}

	if err := conn.WriteJSON(pos); err != nil {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		conn.Close()
		return fmt.Errorf("ошибка отправки по websocket: %w", err)
	}

	return nil
}
