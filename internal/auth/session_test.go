package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"taxi-client/internal/api"
	"taxi-client/internal/models"
	"taxi-client/internal/storage"
)

func storeWithToken(t *testing.T, token string) storage.Store {
	t.Helper()
	store := storage.NewMemoryStore()
	if err := store.Write(storage.KeyAuth, StoredAuth{Token: token}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return store
}

func userServer(t *testing.T, user models.User, fetches *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(fetches, 1)
		data, _ := json.Marshal(user)
		w.Write([]byte(`{"data":` + string(data) + `}`))
	})
	return httptest.NewServer(mux)
}

func TestBootstrapRestoresUser(t *testing.T) {
	var fetches int32
	server := userServer(t, models.User{ID: 1, FirstName: "Айдар", Role: models.RoleUser}, &fetches)
	defer server.Close()

	client := api.NewClient(server.URL)
	session := NewSession(client, storeWithToken(t, "tok"))

	if !session.IsLoading() || session.IsAuthenticated() {
		t.Fatal("session with a stored token must start in loading state")
	}

	session.Bootstrap(context.Background())

	if !session.IsAuthenticated() || session.IsLoading() {
		t.Fatal("bootstrap must resolve the session")
	}
	if user := session.User(); user == nil || user.ID != 1 {
		t.Fatalf("user not loaded: %+v", session.User())
	}
}

func TestBootstrapSingleAttempt(t *testing.T) {
	var fetches int32
	server := userServer(t, models.User{ID: 1, Role: models.RoleUser}, &fetches)
	defer server.Close()

	client := api.NewClient(server.URL)
	session := NewSession(client, storeWithToken(t, "tok"))

	session.Bootstrap(context.Background())
	session.Bootstrap(context.Background())
	session.Bootstrap(context.Background())

	if got := atomic.LoadInt32(&fetches); got != 1 {
		t.Fatalf("expected exactly one profile fetch, got %d", got)
	}
}

func TestBootstrapAnonymousNoFetch(t *testing.T) {
	var fetches int32
	server := userServer(t, models.User{}, &fetches)
	defer server.Close()

	client := api.NewClient(server.URL)
	session := NewSession(client, storage.NewMemoryStore())

	session.Bootstrap(context.Background())

	if atomic.LoadInt32(&fetches) != 0 {
		t.Fatal("anonymous session must not fetch the profile")
	}
	if session.IsLoading() {
		t.Fatal("anonymous session must resolve immediately")
	}
}

func TestInvalidSessionClearedExactlyOnce(t *testing.T) {
	// Просроченный токен: каждый вызов отвечает 401
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthenticated."}`))
	}))
	defer server.Close()

	store := storeWithToken(t, "expired")
	client := api.NewClient(server.URL)
	session := NewSession(client, store)

	notified := 0
	session.Subscribe(func() { notified++ })

	session.Bootstrap(context.Background())
	// Запоздавшие вызовы с тем же токеном тоже получают 401
	client.Get(context.Background(), "/rides/active", nil)
	client.Get(context.Background(), "/rides/active", nil)

	if notified != 1 {
		t.Fatalf("subscribers must be notified exactly once per login epoch, got %d", notified)
	}
	if session.IsAuthenticated() || session.HasStoredToken() {
		t.Fatal("session must be fully invalidated")
	}
	if client.Token() != "" {
		t.Fatal("client token must be cleared")
	}

	var saved StoredAuth
	if found, _ := store.Read(storage.KeyAuth, &saved); found {
		t.Fatal("stored credentials must be deleted")
	}

	// Все гейты сходятся к редиректу на вход
	for _, gate := range []*Gate{NewGate(session, models.RoleUser), NewGate(session, models.RoleDriver)} {
		if decision, route := gate.Evaluate(); decision != DecisionRedirectLogin || route != LoginRoute {
			t.Fatalf("gate decision %s/%s, want redirect to login", decision, route)
		}
	}
}

func TestNewLoginOpensNewEpoch(t *testing.T) {
	unauthorized := true
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if unauthorized {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":{"id":2,"role":"user"}}`))
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"token":"fresh","user":{"id":2,"role":"user"}}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := api.NewClient(server.URL)
	session := NewSession(client, storeWithToken(t, "expired"))

	notified := 0
	session.Subscribe(func() { notified++ })

	session.Bootstrap(context.Background()) // 401, эпоха закрыта
	if notified != 1 {
		t.Fatalf("first epoch must notify once, got %d", notified)
	}

	unauthorized = false
	if _, err := session.Login(context.Background(), LoginRequest{Phone: "+77010000001", Code: "0000"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !session.IsAuthenticated() {
		t.Fatal("session must be authenticated after login")
	}

	// Новая эпоха: следующий сброс снова уведомляет
	session.Invalidate()
	if notified != 2 {
		t.Fatalf("new epoch must notify again, got %d", notified)
	}
}

func TestGateGraceRender(t *testing.T) {
	client := api.NewClient("http://127.0.0.1:0")
	session := NewSession(client, storeWithToken(t, "tok"))

	gate := NewGate(session, models.RoleUser)
	if decision, _ := gate.Evaluate(); decision != DecisionRenderGrace {
		t.Fatalf("stored token without a user must render in grace mode, got %s", decision)
	}
}

func TestGateRoleMismatchRedirectsHome(t *testing.T) {
	var fetches int32
	server := userServer(t, models.User{ID: 3, Role: models.RoleDriver}, &fetches)
	defer server.Close()

	client := api.NewClient(server.URL)
	session := NewSession(client, storeWithToken(t, "tok"))
	session.Bootstrap(context.Background())

	gate := NewGate(session, models.RoleAdmin)
	decision, route := gate.Evaluate()
	if decision != DecisionRedirectHome || route != "/driver" {
		t.Fatalf("got %s/%s, want redirect to /driver", decision, route)
	}

	allowed := NewGate(session, models.RoleDriver, models.RoleAdmin)
	if decision, _ := allowed.Evaluate(); decision != DecisionRender {
		t.Fatalf("matching role must render, got %s", decision)
	}
}

func TestParseClaims(t *testing.T) {
	// Подпись клиентом не проверяется, только содержимое
	token := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." +
		"eyJ1c2VyX2lkIjo3LCJyb2xlIjoiZHJpdmVyIn0." +
		"x"
	claims, err := ParseClaims(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.UserID != 7 || claims.Role != models.RoleDriver {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}
