package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"    // Ошибка предварительной проверки, запрос не отправлялся
	KindAuthorization ErrorKind = "authorization" // 401: сессия недействительна
	KindConflict      ErrorKind = "conflict"      // Сервер отклонил операцию по бизнес-правилу
	KindNetwork       ErrorKind = "network"       // Транспортная ошибка, можно повторить
	KindProcessor     ErrorKind = "processor"     // Платежный провайдер не подтвердил оплату
	KindServer        ErrorKind = "server"        // 5xx на стороне бэкенда
)

// Error типизированная ошибка клиента API
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Fields     map[string][]string
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKindOf возвращает вид ошибки или пустую строку для чужих ошибок
func ErrorKindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsAuthorization сообщает, что ошибка означает недействительную сессию
func IsAuthorization(err error) bool {
	return ErrorKindOf(err) == KindAuthorization
}

// IsNetwork сообщает, что ошибка транспортная и запрос можно повторить
func IsNetwork(err error) bool {
	return ErrorKindOf(err) == KindNetwork
}

// ConsolidateErrors склеивает пофилдовые ошибки сервера в одно сообщение.
// Порядок полей фиксируется сортировкой, чтобы сообщение было стабильным.
func ConsolidateErrors(message string, fields map[string][]string) string {
	if len(fields) == 0 {
		return message
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		if len(fields[k]) > 0 {
			parts = append(parts, strings.Join(fields[k], "; "))
		}
	}

	joined := strings.Join(parts, "; ")
	if message == "" {
		return joined
	}
	if joined == "" {
		return message
	}
	return fmt.Sprintf("%s: %s", message, joined)
}
