package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"market_voice/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists watched-pair metadata and user settings. Spoken
// message history is deliberately not stored.
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a SQLite storage instance at the default OS path.
func NewStorage() (*Storage, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB path: %w", err)
	}
	return NewStorageAt(dbPath)
}

// NewStorageAt creates a SQLite storage instance at an explicit path.
func NewStorageAt(dbPath string) (*Storage, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.SymbolInfo{}, &domain.AppConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "MarketVoice", "data", "market_voice.db"), nil
}

// ======================================================================================
// Symbol Operations
// ======================================================================================

// UpsertSymbol creates or updates pair metadata
func (s *Storage) UpsertSymbol(info *domain.SymbolInfo) error {
	return s.db.Save(info).Error
}

// GetSymbol retrieves pair metadata by symbol
func (s *Storage) GetSymbol(symbol string) (*domain.SymbolInfo, error) {
	var info domain.SymbolInfo
	err := s.db.First(&info, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &info, err
}

// GetAllSymbols retrieves all known pairs
func (s *Storage) GetAllSymbols() ([]domain.SymbolInfo, error) {
	var infos []domain.SymbolInfo
	err := s.db.Find(&infos).Error
	return infos, err
}

// ToggleFavorite toggles the favorite status of a pair
func (s *Storage) ToggleFavorite(symbol string) (bool, error) {
	var info domain.SymbolInfo
	if err := s.db.First(&info, "symbol = ?", symbol).Error; err != nil {
		return false, err
	}

	info.IsFavorite = !info.IsFavorite
	err := s.db.Save(&info).Error
	return info.IsFavorite, err
}

// DeactivateMissing marks every pair not in keep as inactive. Used when
// the watch list shrinks between runs.
func (s *Storage) DeactivateMissing(keep []string) error {
	if len(keep) == 0 {
		return s.db.Model(&domain.SymbolInfo{}).Where("is_active = ?", true).Update("is_active", false).Error
	}
	return s.db.Model(&domain.SymbolInfo{}).Where("symbol NOT IN ?", keep).Update("is_active", false).Error
}

// DeleteSymbol deletes a pair from the database
func (s *Storage) DeleteSymbol(symbol string) error {
	return s.db.Where("symbol = ?", symbol).Delete(&domain.SymbolInfo{}).Error
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves a user configuration
func (s *Storage) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&config).Error
}

// LoadConfigMap loads all user configurations as a map
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}
