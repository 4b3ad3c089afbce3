// Демонстрационный сценарий клиента: проходит путь пассажира
// (расчет → подтверждение → оплата) или водителя (на линию → принять →
// начать → завершить) против бэкенда из API_BASE_URL, например
// локального dev-сервера из cmd/devserver.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"taxi-client/internal/api"
	"taxi-client/internal/auth"
	"taxi-client/internal/booking"
	"taxi-client/internal/config"
	"taxi-client/internal/driver"
	"taxi-client/internal/fare"
	"taxi-client/internal/maps"
	"taxi-client/internal/models"
	"taxi-client/internal/payment"
	"taxi-client/internal/rides"
	"taxi-client/internal/storage"
)

// simulatedSource источник геопозиции для демонстрации: движется по
// прямой с шагом раз в секунду
type simulatedSource struct{}

func (s *simulatedSource) Watch(ctx context.Context) (<-chan models.Position, error) {
	ch := make(chan models.Position)
	go func() {
		defer close(ch)
		lat, lng := 51.1282, 71.4304
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				lat += 0.0005
				lng += 0.0003
				select {
				case ch <- models.Position{Lat: lat, Lng: lng, Timestamp: time.Now().Unix()}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func main() {
	mode := flag.String("mode", "rider", "сценарий: rider или driver")
	flag.Parse()

	cfg := config.Load()

	store, err := storage.NewFileStore(cfg.StateDir)
	if err != nil {
		log.Fatalf("Ошибка при создании хранилища состояния: %v", err)
	}

	client := api.NewClient(cfg.APIBaseURL)
	authSession := auth.NewSession(client, store)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Восстанавливаем сессию до любых защищенных экранов
	authSession.Bootstrap(ctx)

	switch *mode {
	case "rider":
		runRider(ctx, cfg, client, store, authSession)
	case "driver":
		runDriver(ctx, cfg, client, authSession)
	default:
		log.Fatalf("Неизвестный сценарий: %s", *mode)
	}
}

func runRider(ctx context.Context, cfg *config.Config, client *api.Client, store storage.Store, authSession *auth.Session) {
	gate := auth.NewGate(authSession, models.RoleUser)
	if decision, _ := gate.Evaluate(); decision == auth.DecisionRedirectLogin {
		user, err := authSession.Register(ctx, auth.RegisterRequest{
			FirstName: "Айдар",
			LastName:  "Касымов",
			Phone:     "+77010000001",
		})
		if err != nil {
			log.Fatalf("Ошибка при регистрации: %v", err)
		}
		log.Printf("Зарегистрирован пассажир %s", user.FullName())
	}

	session := booking.NewSession(store)

	cache := maps.NewCacheService(cfg.RedisHost, cfg.RedisPort, 24*time.Hour, cfg.CacheEnabled)
	mapsClient := maps.NewClient(cfg.MapsAPIKey, cache)
	defer mapsClient.Close()

	estimator := fare.NewEstimator(mapsClient, session)

	pickupLat, pickupLng := 51.1282, 71.4304
	dropoffLat, dropoffLng := 51.0909, 71.4183
	details, err := estimator.Estimate(ctx, models.RideDetails{
		PickupAddress:  "Астана, проспект Мангилик Ел 55",
		DropoffAddress: "Астана, улица Достык 5",
		PickupLat:      &pickupLat,
		PickupLng:      &pickupLng,
		DropoffLat:     &dropoffLat,
		DropoffLng:     &dropoffLng,
		VehicleClass:   models.VehicleClassComfort,
	})
	if err != nil {
		log.Fatalf("Ошибка при расчете поездки: %v", err)
	}
	log.Printf("Оценка: %.1f км, %.0f мин, %.2f", details.DistanceKm, details.DurationMinutes, details.EstimatedFare)

	session.SetPassengerInfo(models.PassengerInfo{Name: "Айдар", Phone: "+77010000001"})
	session.SetPaymentMethod(models.PaymentMethodCash)

	orchestrator := rides.NewOrchestrator(client, session, authSession)
	ride, _, err := orchestrator.RequestRideWithPayment(ctx, models.RideRequest{
		PickupAddress:   details.PickupAddress,
		DropoffAddress:  details.DropoffAddress,
		PickupLat:       pickupLat,
		PickupLng:       pickupLng,
		DropoffLat:      dropoffLat,
		DropoffLng:      dropoffLng,
		VehicleClass:    details.VehicleClass,
		DistanceKm:      details.DistanceKm,
		DurationMinutes: details.DurationMinutes,
		EstimatedFare:   details.EstimatedFare,
	}, models.PaymentMethodCash)
	if err != nil {
		log.Fatalf("Ошибка при создании поездки: %v", err)
	}

	log.Printf("Поездка %d создана, статус %s, этап бронирования %s", ride.ID, ride.Status, session.Stage())

	// Вторая поездка — картой: создаем платежную сессию и сверяем оплату
	// так же, как это делает экран возврата с hosted-checkout
	session.Reset()
	if _, err := estimator.Estimate(ctx, details); err != nil {
		log.Fatalf("Ошибка при расчете второй поездки: %v", err)
	}
	session.SetPassengerInfo(models.PassengerInfo{Name: "Айдар", Phone: "+77010000001"})
	session.SetPaymentMethod(models.PaymentMethodCard)

	cardRide, checkout, err := orchestrator.RequestRideWithPayment(ctx, models.RideRequest{
		PickupAddress:   details.PickupAddress,
		DropoffAddress:  details.DropoffAddress,
		PickupLat:       pickupLat,
		PickupLng:       pickupLng,
		DropoffLat:      dropoffLat,
		DropoffLng:      dropoffLng,
		VehicleClass:    details.VehicleClass,
		DistanceKm:      details.DistanceKm,
		DurationMinutes: details.DurationMinutes,
		EstimatedFare:   details.EstimatedFare,
	}, models.PaymentMethodCard)
	if err != nil {
		log.Fatalf("Ошибка при создании поездки картой: %v", err)
	}
	log.Printf("Поездка %d ждет оплату картой, сессия %s", cardRide.ID, checkout.SessionID)

	confirmer := payment.NewConfirmer(client, session, cfg.EmailRetryDelay)
	defer confirmer.Close()
	confirmer.Confirm(ctx, checkout.SessionID)
	log.Printf("Сверка оплаты: %s, чек: %s", confirmer.State(), confirmer.EmailState())

	if updated, err := orchestrator.Ride(ctx, cardRide.ID); err == nil {
		log.Printf("Поездка %d: статус %s, оплата %s", updated.ID, updated.Status, updated.PaymentStatus)
	}
}

func runDriver(ctx context.Context, cfg *config.Config, client *api.Client, authSession *auth.Session) {
	user, err := authSession.Register(ctx, auth.RegisterRequest{
		FirstName: "Бекзат",
		LastName:  "Омаров",
		Phone:     "+77020000002",
		Role:      models.RoleDriver,
	})
	if err != nil {
		log.Fatalf("Ошибка при регистрации водителя: %v", err)
	}
	log.Printf("Водитель %s на связи", user.FullName())

	streamer := driver.NewLocationStreamer(client, cfg.WSBaseURL, &simulatedSource{}, cfg.LocationPushInterval, cfg.LocationTimeout)
	controller := driver.NewController(client, streamer)

	if err := controller.SetAvailability(ctx, true); err != nil {
		log.Fatalf("Ошибка при выходе на линию: %v", err)
	}

	page, err := controller.AvailableRides(ctx, 1)
	if err != nil {
		log.Fatalf("Ошибка при получении свободных поездок: %v", err)
	}
	if len(page.Rides) == 0 {
		log.Println("Свободных поездок нет")
		return
	}

	ride, err := controller.Accept(ctx, page.Rides[0].ID)
	if err != nil {
		log.Fatalf("Ошибка при принятии поездки: %v", err)
	}
	// Список перезапрашивается: бэкенд уже убрал занятую поездку для всех
	if _, err := controller.AvailableRides(ctx, 1); err != nil {
		log.Printf("Ошибка при обновлении списка: %v", err)
	}

	if ride, err = controller.Start(ctx); err != nil {
		log.Fatalf("Ошибка при начале поездки: %v", err)
	}
	log.Printf("Поездка %d началась", ride.ID)

	time.Sleep(2 * time.Second) // даем стримеру отправить позицию

	if ride, err = controller.Complete(ctx); err != nil {
		log.Fatalf("Ошибка при завершении поездки: %v", err)
	}
	log.Printf("Поездка %d завершена, оплата %s", ride.ID, ride.PaymentStatus)

	if err := controller.SetAvailability(ctx, false); err != nil {
		log.Printf("Ошибка при уходе с линии: %v", err)
	}

	earnings, err := controller.Earnings(ctx)
	if err != nil {
		log.Printf("Ошибка при получении заработка: %v", err)
		return
	}
	log.Printf("Заработок: %d поездок, %.2f", earnings.TotalRides, earnings.TotalEarnings)
}
