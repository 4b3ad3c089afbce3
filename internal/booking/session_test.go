package booking

import (
	"testing"

	"taxi-client/internal/models"
	"taxi-client/internal/storage"
)

func TestStageNeverRegresses(t *testing.T) {
	session := NewSession(storage.NewMemoryStore())

	if err := session.Advance(models.BookingStagePayment); err != nil {
		t.Fatalf("forward advance failed: %v", err)
	}
	if err := session.Advance(models.BookingStageEstimation); err == nil {
		t.Fatal("expected error on stage regression")
	}
	if session.Stage() != models.BookingStagePayment {
		t.Fatalf("stage changed on rejected regression: %s", session.Stage())
	}
}

func TestCompletedRequiresRide(t *testing.T) {
	session := NewSession(storage.NewMemoryStore())

	if err := session.Advance(models.BookingStageCompleted); err == nil {
		t.Fatal("expected error: completed without a ride")
	}

	session.SetCurrentRide(&models.Ride{ID: 7, Status: models.RideStatusRequested})
	if err := session.Advance(models.BookingStageCompleted); err != nil {
		t.Fatalf("advance to completed failed: %v", err)
	}
}

func TestSessionPersistsAcrossLoads(t *testing.T) {
	store := storage.NewMemoryStore()

	first := NewSession(store)
	first.SetPassengerInfo(models.PassengerInfo{Name: "Гость", Phone: "+77001112233"})
	first.SetPaymentMethod(models.PaymentMethodCard)
	if err := first.Advance(models.BookingStageConfirmation); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	second := NewSession(store)
	if second.Stage() != models.BookingStageConfirmation {
		t.Fatalf("stage not restored: %s", second.Stage())
	}
	if second.PassengerInfo().Phone != "+77001112233" {
		t.Fatal("passenger info not restored")
	}
	if second.PaymentMethod() != models.PaymentMethodCard {
		t.Fatal("payment method not restored")
	}
}

func TestClearBookingKeepsRide(t *testing.T) {
	session := NewSession(storage.NewMemoryStore())
	session.SetRideDetails(models.RideDetails{PickupAddress: "A", DropoffAddress: "B"})
	session.SetPromoCode("PROMO10")
	session.SetCurrentRide(&models.Ride{ID: 3})

	session.ClearBooking()

	if session.RideDetails() != nil {
		t.Fatal("ride details must be cleared")
	}
	if session.Stage() != models.BookingStageEstimation {
		t.Fatalf("stage must reset to estimation, got %s", session.Stage())
	}
	if ride := session.CurrentRide(); ride == nil || ride.ID != 3 {
		t.Fatal("clearBooking must keep the in-flight ride")
	}
}

func TestResetDropsEverything(t *testing.T) {
	store := storage.NewMemoryStore()
	session := NewSession(store)
	session.SetCurrentRide(&models.Ride{ID: 3})

	session.Reset()

	if session.CurrentRide() != nil {
		t.Fatal("reset must drop the ride reference")
	}

	restored := NewSession(store)
	if restored.CurrentRide() != nil || restored.Stage() != models.BookingStageEstimation {
		t.Fatal("reset must clear the persisted snapshot")
	}
}
