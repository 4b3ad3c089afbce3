package payment

import (
	"context"
	"fmt"
	"log"

	"taxi-client/internal/api"
	"taxi-client/internal/models"
)

// cashPaymentRequest тело запроса фиксации наличной оплаты
type cashPaymentRequest struct {
	Method     models.PaymentMethod `json:"method"`
	GuestPhone string               `json:"guest_phone,omitempty"`
}

// ProcessCashPayment фиксирует наличную оплату поездки. Вызов намеренно
// не блокирующий: поездка уже создана и остается действительной с
// payment_status=pending, расчет произойдет на месте. Транспортная ошибка
// логируется и не возвращается наверх.
func ProcessCashPayment(ctx context.Context, client *api.Client, rideID uint, guestPhone string) error {
	req := cashPaymentRequest{
		Method:     models.PaymentMethodCash,
		GuestPhone: guestPhone,
	}

	path := fmt.Sprintf("/payments/ride/%d/process", rideID)
	if err := client.Post(ctx, path, req, nil); err != nil {
		log.Printf("Фиксация наличной оплаты не удалась, расчет на месте: %v", err)
		return nil
	}

	return nil
}
