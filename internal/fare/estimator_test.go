package fare

import (
	"context"
	"fmt"
	"testing"

	"taxi-client/internal/booking"
	"taxi-client/internal/maps"
	"taxi-client/internal/models"
	"taxi-client/internal/storage"
)

type fakeProvider struct {
	legs  []maps.Leg
	err   error
	calls int
}

func (f *fakeProvider) RouteMatrix(ctx context.Context, points []maps.Point) (*maps.MatrixResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &maps.MatrixResponse{Legs: f.legs}, nil
}

func newSession(t *testing.T) *booking.Session {
	t.Helper()
	return booking.NewSession(storage.NewMemoryStore())
}

func TestFareScenarioA(t *testing.T) {
	// базовая 15, 12 км, 20 мин => max(15, 15+18+6) = 39.00
	got := Fare(15, 12, 20)
	if got != 39.00 {
		t.Fatalf("expected 39.00, got %v", got)
	}
}

func TestFareNeverBelowBasePrice(t *testing.T) {
	if got := Fare(25, 0, 0); got != 25 {
		t.Fatalf("expected base price 25, got %v", got)
	}
}

func TestFareMonotonic(t *testing.T) {
	prev := 0.0
	for d := 1.0; d <= 50; d += 1.5 {
		got := Fare(10, d, d*2)
		if got < prev {
			t.Fatalf("fare decreased: %v after %v at distance %v", got, prev, d)
		}
		if got < 10 {
			t.Fatalf("fare %v below base price", got)
		}
		prev = got
	}
}

func TestFallbackDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		d, dur := FallbackEstimate(2)
		if d != 20 || dur != 40 {
			t.Fatalf("expected 20km/40min, got %v/%v", d, dur)
		}
	}
	d, dur := FallbackEstimate(0)
	if d != 10 || dur != 20 {
		t.Fatalf("expected 10km/20min, got %v/%v", d, dur)
	}
}

func TestEstimatePrimaryPath(t *testing.T) {
	provider := &fakeProvider{legs: []maps.Leg{
		{DistanceMeters: 8000, DurationSeconds: 600},
		{DistanceMeters: 4000, DurationSeconds: 600},
	}}
	session := newSession(t)
	estimator := NewEstimator(provider, session)

	lat, lng := 51.1, 71.4
	details, err := estimator.Estimate(context.Background(), models.RideDetails{
		PickupAddress:  "A",
		DropoffAddress: "B",
		PickupLat:      &lat, PickupLng: &lng,
		DropoffLat: &lat, DropoffLng: &lng,
		VehicleClass: models.VehicleClassComfort,
	})
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	if details.DistanceKm != 12 || details.DurationMinutes != 20 {
		t.Fatalf("expected 12km/20min, got %v/%v", details.DistanceKm, details.DurationMinutes)
	}
	if details.EstimatedFare != 39.00 {
		t.Fatalf("expected fare 39.00, got %v", details.EstimatedFare)
	}
	if session.Stage() != models.BookingStageConfirmation {
		t.Fatalf("expected stage confirmation, got %s", session.Stage())
	}
}

func TestEstimateFallsBackOnProviderError(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("provider down")}
	session := newSession(t)
	estimator := NewEstimator(provider, session)

	lat, lng := 51.1, 71.4
	details, err := estimator.Estimate(context.Background(), models.RideDetails{
		PickupAddress:  "A",
		DropoffAddress: "B",
		PickupLat:      &lat, PickupLng: &lng,
		DropoffLat: &lat, DropoffLng: &lng,
		Stops:        []models.Stop{{Address: "C"}},
		VehicleClass: models.VehicleClassEconomy,
	})
	if err != nil {
		t.Fatalf("fallback must not fail: %v", err)
	}
	// 1 остановка: 15 км, 30 мин
	if details.DistanceKm != 15 || details.DurationMinutes != 30 {
		t.Fatalf("expected 15km/30min, got %v/%v", details.DistanceKm, details.DurationMinutes)
	}
	if details.EstimatedFare != Fare(10, 15, 30) {
		t.Fatalf("unexpected fare %v", details.EstimatedFare)
	}
}

func TestEstimateFallsBackWithoutCoordinates(t *testing.T) {
	provider := &fakeProvider{legs: []maps.Leg{{DistanceMeters: 1000, DurationSeconds: 60}}}
	session := newSession(t)
	estimator := NewEstimator(provider, session)

	details, err := estimator.Estimate(context.Background(), models.RideDetails{
		PickupAddress:  "A",
		DropoffAddress: "B",
		VehicleClass:   models.VehicleClassEconomy,
	})
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("provider must not be called without coordinates")
	}
	if details.DistanceKm != 10 {
		t.Fatalf("expected fallback distance 10, got %v", details.DistanceKm)
	}
}

func TestEstimateUnknownClass(t *testing.T) {
	session := newSession(t)
	estimator := NewEstimator(&fakeProvider{}, session)

	if _, err := estimator.Estimate(context.Background(), models.RideDetails{
		PickupAddress:  "A",
		DropoffAddress: "B",
		VehicleClass:   "limo",
	}); err == nil {
		t.Fatal("expected error for unknown vehicle class")
	}
}
