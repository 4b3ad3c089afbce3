package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientUnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"ok","data":{"name":"Айдар"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var out struct {
		Name string `json:"name"`
	}
	if err := client.Get(context.Background(), "/user", &out); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if out.Name != "Айдар" {
		t.Fatalf("envelope not unwrapped: %+v", out)
	}
}

func TestClientAcceptsBareBody(t *testing.T) {
	// Некоторые ответы приходят без конверта
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_rides":4,"total_earnings":120.5}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var out struct {
		TotalRides int `json:"total_rides"`
	}
	if err := client.Get(context.Background(), "/driver/earnings", &out); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if out.TotalRides != 4 {
		t.Fatalf("bare body not decoded: %+v", out)
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetToken("abc")
	if err := client.Get(context.Background(), "/user", nil); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if gotAuth != "Bearer abc" {
		t.Fatalf("unexpected Authorization header: %q", gotAuth)
	}
}

func TestClientFiresUnauthorizedHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthenticated."}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	fired := 0
	client.OnUnauthorized(func() { fired++ })

	err := client.Get(context.Background(), "/user", nil)
	if !IsAuthorization(err) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if fired != 1 {
		t.Fatalf("handler fired %d times", fired)
	}

	client.Get(context.Background(), "/user", nil)
	if fired != 2 {
		t.Fatalf("handler must fire on every 401, fired %d times", fired)
	}
}

func TestClientValidationErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Неверные данные","errors":{"phone":["Телефон обязателен"],"email":["Неверный формат"]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Post(context.Background(), "/register", map[string]string{}, nil)

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Kind != KindConflict || apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	// Поля склеиваются детерминированно, по алфавиту ключей
	want := "Неверные данные: Неверный формат; Телефон обязателен"
	if apiErr.Message != want {
		t.Fatalf("message %q, want %q", apiErr.Message, want)
	}
	if len(apiErr.Fields["phone"]) != 1 {
		t.Fatalf("field errors lost: %+v", apiErr.Fields)
	}
}

func TestClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Get(context.Background(), "/rides/active", nil)
	if ErrorKindOf(err) != KindServer {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestClientNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // соединение заведомо недоступно

	client := NewClient(server.URL)
	err := client.Get(context.Background(), "/user", nil)
	if !IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestConsolidateErrors(t *testing.T) {
	got := ConsolidateErrors("Ошибка", map[string][]string{
		"b": {"второе"},
		"a": {"первое", "еще"},
	})
	want := "Ошибка: первое; еще; второе"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if got := ConsolidateErrors("Только сообщение", nil); got != "Только сообщение" {
		t.Fatalf("got %q", got)
	}
}
