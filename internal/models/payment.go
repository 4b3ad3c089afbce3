package models

type CheckoutStatus string

const (
	CheckoutStatusOpen     CheckoutStatus = "open"     // Сессия оплаты открыта
	CheckoutStatusComplete CheckoutStatus = "complete" // Оплата завершена
	CheckoutStatusExpired  CheckoutStatus = "expired"  // Сессия истекла
)

// CheckoutSession ответ бэкенда на создание платежной сессии у провайдера
type CheckoutSession struct {
	SessionID    string `json:"session_id"`
	ClientSecret string `json:"client_secret"`
	CheckoutURL  string `json:"checkout_url,omitempty"`
	RideID       uint   `json:"ride_id"`
}

// PaymentConfirmation результат сверки оплаты; существует только на время
// экрана подтверждения и каждый раз выводится заново из опроса бэкенда
type PaymentConfirmation struct {
	CheckoutStatus      CheckoutStatus `json:"checkout_status"`
	PaymentIntentStatus string         `json:"payment_intent_status"`
	PaymentStatus       PaymentStatus  `json:"payment_status"`
	EmailSent           bool           `json:"email_sent"`
	RideID              uint           `json:"ride_id"`
}

// Paid сообщает, считается ли оплата успешной
func (p *PaymentConfirmation) Paid() bool {
	return p.PaymentStatus == PaymentStatusPaid || p.PaymentIntentStatus == "succeeded"
}

// Position геопозиция устройства водителя
type Position struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Timestamp int64   `json:"timestamp"`
}
