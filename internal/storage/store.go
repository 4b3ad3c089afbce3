// Package storage реализует сохраненное состояние клиента: небольшие
// JSON-снимки с версией схемы, переживающие перезапуск приложения.
// Хранилище может быть недоступно (нет прав на запись, битый файл),
// поэтому каждый вызов защищен и ошибка чтения равносильна отсутствию данных.
package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// SchemaVersion версия схемы снимков; при несовпадении снимок отбрасывается
const SchemaVersion = 1

// Ключи снимков
const (
	KeyAuth    = "auth"    // Учетные данные + снимок пользователя
	KeyBooking = "booking" // Сессия бронирования
)

// Store абстракция key-value хранилища клиента
type Store interface {
	// Read читает снимок по ключу; false — данных нет или они непригодны
	Read(key string, out interface{}) (bool, error)
	// Write сохраняет снимок по ключу
	Write(key string, value interface{}) error
	// Delete удаляет снимок
	Delete(key string) error
}

type snapshot struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// FileStore хранилище снимков в файлах внутри одной директории
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore создает хранилище в указанной директории
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ошибка при создании директории состояния: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) Read(key string, out interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка при чтении состояния %s: %w", key, err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Printf("Снимок %s поврежден, отбрасываем: %v", key, err)
		return false, nil
	}
	if snap.Version != SchemaVersion {
		log.Printf("Снимок %s имеет версию %d вместо %d, отбрасываем", key, snap.Version, SchemaVersion)
		return false, nil
	}
	if err := json.Unmarshal(snap.Data, out); err != nil {
		log.Printf("Снимок %s не декодируется, отбрасываем: %v", key, err)
		return false, nil
	}
	return true, nil
}

func (s *FileStore) Write(key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ошибка при сериализации состояния %s: %w", key, err)
	}
	snap, err := json.Marshal(snapshot{Version: SchemaVersion, Data: data})
	if err != nil {
		return fmt.Errorf("ошибка при сериализации снимка %s: %w", key, err)
	}

	// Пишем во временный файл и переименовываем, чтобы не оставить
	// полузаписанный снимок при падении процесса
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, snap, 0o644); err != nil {
		return fmt.Errorf("ошибка при записи состояния %s: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("ошибка при сохранении состояния %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка при удалении состояния %s: %w", key, err)
	}
	return nil
}

// MemoryStore хранилище в памяти для тестов и окружений без диска
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Read(key string, out interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Write(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}
