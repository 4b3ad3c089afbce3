package rides

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"taxi-client/internal/api"
	"taxi-client/internal/auth"
	"taxi-client/internal/booking"
	"taxi-client/internal/models"
	"taxi-client/internal/storage"
)

type backend struct {
	server *httptest.Server

	requests     int32
	idempotency  string
	cashProcess  int32
	checkoutFail bool
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}

	mux := http.NewServeMux()
	mux.HandleFunc("/rides/request", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.requests, 1)
		b.idempotency = r.Header.Get("Idempotency-Key")

		var req models.RideRequest
		json.NewDecoder(r.Body).Decode(&req)
		ride := models.Ride{
			ID:             42,
			PickupAddress:  req.PickupAddress,
			DropoffAddress: req.DropoffAddress,
			VehicleClass:   req.VehicleClass,
			Fare:           req.EstimatedFare,
			Status:         models.RideStatusRequested,
			PaymentStatus:  models.PaymentStatusPending,
			PaymentMethod:  req.PaymentMethod,
		}
		data, _ := json.Marshal(ride)
		w.Write([]byte(`{"data":` + string(data) + `}`))
	})
	mux.HandleFunc("/payments/ride/42/process", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.requests, 1)
		atomic.AddInt32(&b.cashProcess, 1)
		w.Write([]byte(`{"message":"Оплата зафиксирована"}`))
	})
	mux.HandleFunc("/rides/42", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.requests, 1)
		w.Write([]byte(`{"data":{"id":42,"status":"requested","payment_status":"paid"}}`))
	})
	mux.HandleFunc("/payments/ride/42/checkout-session", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.requests, 1)
		if b.checkoutFail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data":{"session_id":"cs_test_1","client_secret":"secret","ride_id":42}}`))
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) requestCount() int32 {
	return atomic.LoadInt32(&b.requests)
}

func newOrchestrator(t *testing.T, b *backend) (*Orchestrator, *booking.Session) {
	t.Helper()
	client := api.NewClient(b.server.URL)
	session := booking.NewSession(storage.NewMemoryStore())
	authSession := auth.NewSession(client, storage.NewMemoryStore())
	return NewOrchestrator(client, session, authSession), session
}

func validGuestRequest() models.RideRequest {
	return models.RideRequest{
		PickupAddress:  "Астана, проспект Мангилик Ел 55",
		DropoffAddress: "Астана, улица Достык 5",
		VehicleClass:   models.VehicleClassComfort,
		EstimatedFare:  39,
		GuestName:      "Айдар",
		GuestPhone:     "+77010000001",
	}
}

func TestGuestWithoutPhoneRejectedBeforeNetwork(t *testing.T) {
	b := newBackend(t)
	orchestrator, _ := newOrchestrator(t, b)

	payload := validGuestRequest()
	payload.GuestPhone = ""

	_, _, err := orchestrator.RequestRideWithPayment(context.Background(), payload, models.PaymentMethodCash)
	if api.ErrorKindOf(err) != api.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "имя и телефон") {
		t.Fatalf("unexpected message: %v", err)
	}
	if b.requestCount() != 0 {
		t.Fatalf("preflight rejection must not hit the network, got %d requests", b.requestCount())
	}
}

func TestPreflightRejections(t *testing.T) {
	b := newBackend(t)
	orchestrator, _ := newOrchestrator(t, b)

	cases := []struct {
		name   string
		mutate func(*models.RideRequest)
	}{
		{"unknown vehicle class", func(r *models.RideRequest) { r.VehicleClass = "limo" }},
		{"missing pickup", func(r *models.RideRequest) { r.PickupAddress = "" }},
		{"missing dropoff", func(r *models.RideRequest) { r.DropoffAddress = "" }},
		{"scheduled without time", func(r *models.RideRequest) { r.Scheduled = true }},
	}

	for _, tc := range cases {
		payload := validGuestRequest()
		tc.mutate(&payload)
		_, _, err := orchestrator.RequestRideWithPayment(context.Background(), payload, models.PaymentMethodCash)
		if api.ErrorKindOf(err) != api.KindValidation {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}

	if b.requestCount() != 0 {
		t.Fatalf("preflight rejections must not hit the network, got %d requests", b.requestCount())
	}
}

func TestCashRideCompletesBooking(t *testing.T) {
	b := newBackend(t)
	orchestrator, session := newOrchestrator(t, b)

	ride, checkout, err := orchestrator.RequestRideWithPayment(context.Background(), validGuestRequest(), models.PaymentMethodCash)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if checkout != nil {
		t.Fatal("cash ride must not open a checkout session")
	}
	if ride.ID != 42 || ride.Status != models.RideStatusRequested {
		t.Fatalf("unexpected ride: %+v", ride)
	}
	if b.idempotency == "" {
		t.Fatal("ride request must carry an Idempotency-Key")
	}
	if atomic.LoadInt32(&b.cashProcess) != 1 {
		t.Fatal("cash payment must be recorded on the backend")
	}
	if session.Stage() != models.BookingStageCompleted {
		t.Fatalf("cash booking must complete, stage %s", session.Stage())
	}
	if current := session.CurrentRide(); current == nil || current.ID != 42 {
		t.Fatal("created ride must be stored in the booking session")
	}
}

func TestCashRecordingFailureDoesNotBlock(t *testing.T) {
	// Отказ фиксации наличных не откатывает уже созданную поездку
	mux := http.NewServeMux()
	mux.HandleFunc("/rides/request", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":42,"status":"requested","payment_status":"pending"}}`))
	})
	mux.HandleFunc("/payments/ride/42/process", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	failing := httptest.NewServer(mux)
	defer failing.Close()

	client := api.NewClient(failing.URL)
	session := booking.NewSession(storage.NewMemoryStore())
	orchestrator := NewOrchestrator(client, session, auth.NewSession(client, storage.NewMemoryStore()))

	ride, _, err := orchestrator.RequestRideWithPayment(context.Background(), validGuestRequest(), models.PaymentMethodCash)
	if err != nil {
		t.Fatalf("cash recording failure must not fail the request: %v", err)
	}
	if ride == nil || session.Stage() != models.BookingStageCompleted {
		t.Fatalf("booking must still complete, stage %s", session.Stage())
	}
}

func TestCardRideOpensCheckout(t *testing.T) {
	b := newBackend(t)
	orchestrator, session := newOrchestrator(t, b)

	ride, checkout, err := orchestrator.RequestRideWithPayment(context.Background(), validGuestRequest(), models.PaymentMethodCard)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if checkout == nil || checkout.SessionID != "cs_test_1" {
		t.Fatalf("unexpected checkout: %+v", checkout)
	}
	if ride.ID != 42 {
		t.Fatalf("unexpected ride: %+v", ride)
	}
	// Исход карточной оплаты еще неизвестен: этап остается payment
	if session.Stage() != models.BookingStagePayment {
		t.Fatalf("card booking must stay at payment, stage %s", session.Stage())
	}
}

func TestRideRefetch(t *testing.T) {
	b := newBackend(t)
	orchestrator, _ := newOrchestrator(t, b)

	ride, err := orchestrator.Ride(context.Background(), 42)
	if err != nil {
		t.Fatalf("ride fetch failed: %v", err)
	}
	if ride.ID != 42 || ride.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("unexpected ride: %+v", ride)
	}
}

func TestCardCheckoutFailureBlocks(t *testing.T) {
	b := newBackend(t)
	b.checkoutFail = true
	orchestrator, session := newOrchestrator(t, b)

	ride, checkout, err := orchestrator.RequestRideWithPayment(context.Background(), validGuestRequest(), models.PaymentMethodCard)
	if err == nil {
		t.Fatal("checkout failure must surface as an error")
	}
	if checkout != nil {
		t.Fatal("no checkout session on failure")
	}
	if ride == nil {
		t.Fatal("the created ride is still returned")
	}
	if session.Stage() != models.BookingStagePayment {
		t.Fatalf("stage must stay at payment, got %s", session.Stage())
	}
}
