package models

import (
	"time"
)

type User struct {
	ID        uint      `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	PhotoUrl  string    `json:"photoUrl,omitempty"`
	Role      string    `json:"role"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName возвращает отображаемое имя пользователя
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Роли пользователей
const (
	RoleUser   = "user"
	RoleDriver = "driver"
	RoleAdmin  = "admin"
)

// ProfileUpdate структура для обновления профиля
type ProfileUpdate struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	PhotoUrl  string `json:"photoUrl,omitempty"`
}

// DriverEarnings сводка заработка водителя
type DriverEarnings struct {
	TotalRides    int     `json:"total_rides"`
	TotalEarnings float64 `json:"total_earnings"`
	Period        string  `json:"period"`
}
