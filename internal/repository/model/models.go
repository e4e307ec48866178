package model

import (
	"time"
)

type User struct {
	ID        string    `gorm:"size:64;primaryKey"`
	Name      string    `gorm:"size:255;not null"`
	Email     *string   `gorm:"size:255;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
