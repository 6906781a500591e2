package domain

import (
	"time"
)

// SymbolInfo represents persisted metadata for a watched currency pair
type SymbolInfo struct {
	Symbol       string    `gorm:"primaryKey" json:"symbol"`
	JPName       string    `json:"jp_name"`
	Digits       int       `json:"digits"`
	IconPath     string    `json:"icon_path"`
	IsActive     bool      `json:"is_active" gorm:"index"`   // Currently watched
	IsFavorite   bool      `json:"is_favorite" gorm:"index"` // User favorite status
	LastSyncedAt time.Time `json:"last_synced_at"`           // Last icon sync time
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AppConfig represents user-specific configuration (Key-Value)
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
