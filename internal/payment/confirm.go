// Package payment реализует протокол подтверждения оплаты: сверку
// локального состояния с авторитетным статусом платежного провайдера
// через бэкенд и повтор отправки чека не более одного раза.
//
// Оплата наличными и картой намеренно несимметричны: ошибка сети при
// наличной оплате не откатывает уже созданную поездку (расчет переносится
// на месте), ошибка карточной оплаты блокирует продвижение. Решение
// зафиксировано продуктом, см. DESIGN.md.
package payment

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"taxi-client/internal/api"
	"taxi-client/internal/booking"
	"taxi-client/internal/metrics"
	"taxi-client/internal/models"
)

// State состояние экрана подтверждения
type State string

const (
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// EmailState состояние отправки чека после успешной оплаты
type EmailState string

const (
	EmailStatePending        EmailState = "pending_email"   // Чек не отправлен, повтор запланирован
	EmailStateSent           EmailState = "sent"            // Чек отправлен
	EmailStateRetryExhausted EmailState = "retry_exhausted" // Единственный повтор не помог
)

// Confirmer ведет одну попытку подтверждения оплаты: живет столько же,
// сколько экран подтверждения, и уничтожается через Close при уходе с него
type Confirmer struct {
	client     *api.Client
	session    *booking.Session
	retryDelay time.Duration

	mu             sync.Mutex
	state          State
	emailState     EmailState
	errorMessage   string
	confirmation   *models.PaymentConfirmation
	checkoutID     string
	retryScheduled bool
	closed         bool
	timer          *time.Timer
}

// NewConfirmer создает подтверждение для одного экрана
func NewConfirmer(client *api.Client, session *booking.Session, retryDelay time.Duration) *Confirmer {
	return &Confirmer{
		client:     client,
		session:    session,
		retryDelay: retryDelay,
		state:      StateLoading,
	}
}

// State возвращает текущее состояние экрана
func (c *Confirmer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EmailState возвращает состояние отправки чека
func (c *Confirmer) EmailState() EmailState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emailState
}

// ErrorMessage возвращает сообщение для пользователя в состоянии error
func (c *Confirmer) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorMessage
}

// Confirmation возвращает последний результат сверки
func (c *Confirmer) Confirmation() *models.PaymentConfirmation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.confirmation == nil {
		return nil
	}
	conf := *c.confirmation
	return &conf
}

// Confirm сверяет оплату по идентификатору платежной сессии из URL
// возврата. Бэкенд сам опрашивает провайдера, обновляет payment_status
// поездки и при необходимости отправляет чек — клиент провайдера напрямую
// не трогает, единственным писателем payment_status остается бэкенд.
func (c *Confirmer) Confirm(ctx context.Context, checkoutID string) {
	if checkoutID == "" || strings.Contains(checkoutID, "{") {
		// Заглушка вместо идентификатора: фатально, повтор бессмысленен
		c.mu.Lock()
		c.state = StateError
		c.errorMessage = "Не передан идентификатор платежной сессии"
		c.mu.Unlock()
		metrics.PaymentConfirmationsTotal.WithLabelValues("error").Inc()
		return
	}

	c.mu.Lock()
	c.checkoutID = checkoutID
	c.mu.Unlock()

	var conf models.PaymentConfirmation
	err := c.client.Get(ctx, "/payments/session/"+checkoutID+"/status", &conf)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		// Пользователь ушел с экрана, поздний ответ не применяем
		return
	}

	if err != nil {
		c.state = StateError
		c.errorMessage = err.Error()
		metrics.PaymentConfirmationsTotal.WithLabelValues("error").Inc()
		return
	}

	c.confirmation = &conf

	if !conf.Paid() {
		c.state = StateError
		c.errorMessage = fmt.Sprintf("Оплата не завершена, статус: %s", conf.PaymentIntentStatus)
		metrics.PaymentConfirmationsTotal.WithLabelValues("error").Inc()
		return
	}

	c.state = StateSuccess
	metrics.PaymentConfirmationsTotal.WithLabelValues("success").Inc()

	if err := c.session.Advance(models.BookingStageCompleted); err != nil {
		log.Printf("Не удалось завершить сессию бронирования: %v", err)
	}

	if conf.EmailSent {
		c.emailState = EmailStateSent
		return
	}

	// Чек не отправлен: планируем ровно один отложенный повтор на время
	// жизни экрана. Повтор — только побочный эффект, исход оплаты он не
	// пересматривает.
	c.emailState = EmailStatePending
	if !c.retryScheduled {
		c.retryScheduled = true
		c.timer = time.AfterFunc(c.retryDelay, c.replayEmail)
	}
}

// replayEmail повторно вызывает подтверждение ради отправки чека
func (c *Confirmer) replayEmail() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	checkoutID := c.checkoutID
	c.mu.Unlock()

	metrics.EmailRetriesTotal.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var conf models.PaymentConfirmation
	err := c.client.Get(ctx, "/payments/session/"+checkoutID+"/status", &conf)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if err != nil {
		log.Printf("Повторная отправка чека не удалась: %v", err)
		c.emailState = EmailStateRetryExhausted
		return
	}

	c.confirmation = &conf
	if conf.EmailSent {
		c.emailState = EmailStateSent
	} else {
		c.emailState = EmailStateRetryExhausted
	}
}

// RetryEmail ручной повтор отправки чека. Идемпотентен: если чек уже
// отправлен, бэкенд ничего не делает, а мы лишь обновляем локальный флаг.
func (c *Confirmer) RetryEmail(ctx context.Context) error {
	c.mu.Lock()
	checkoutID := c.checkoutID
	closed := c.closed
	c.mu.Unlock()

	if closed || checkoutID == "" {
		return fmt.Errorf("подтверждение оплаты не инициализировано")
	}

	var conf models.PaymentConfirmation
	if err := c.client.Get(ctx, "/payments/session/"+checkoutID+"/status", &conf); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.confirmation = &conf
	if conf.EmailSent {
		c.emailState = EmailStateSent
	}
	return nil
}

// Close останавливает отложенные эффекты при уходе с экрана.
// Запросы не отменяются, но их поздние ответы отбрасываются.
func (c *Confirmer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
}
