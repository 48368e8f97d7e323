package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// credentialRecord is the persisted form of a credential.
type credentialRecord struct {
	Name         string `gorm:"primaryKey;size:191"`
	AccessToken  string
	TokenType    string
	RefreshToken string
	Expiry       time.Time
	UpdatedAt    time.Time
}

func (credentialRecord) TableName() string { return "credentials" }

// SQLStore persists the credential in a relational database through gorm.
// Several named credentials can share one table.
type SQLStore struct {
	db   *gorm.DB
	name string
}

// OpenSQLite opens (or creates) a SQLite database for SQLStore.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("credential: open sqlite %s: %w", path, err)
	}
	return db, nil
}

// NewSQLStore migrates the credentials table and returns a store for the
// credential called name (DefaultKey when empty).
func NewSQLStore(db *gorm.DB, name string) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("credential: database is nil")
	}
	if name == "" {
		name = DefaultKey
	}

	if err := db.AutoMigrate(&credentialRecord{}); err != nil {
		return nil, fmt.Errorf("credential: migrate: %w", err)
	}

	return &SQLStore{db: db, name: name}, nil
}

// Get loads the credential row.
func (s *SQLStore) Get(ctx context.Context) (*oauth2.Token, error) {
	var rec credentialRecord
	err := s.db.WithContext(ctx).Where("name = ?", s.name).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("credential: load %s: %w", s.name, err)
	}

	return &oauth2.Token{
		AccessToken:  rec.AccessToken,
		TokenType:    rec.TokenType,
		RefreshToken: rec.RefreshToken,
		Expiry:       rec.Expiry,
	}, nil
}

// Set upserts the credential row. A nil token deletes it.
func (s *SQLStore) Set(ctx context.Context, token *oauth2.Token) error {
	if token == nil {
		return s.Clear(ctx)
	}

	rec := credentialRecord{
		Name:         s.name,
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("credential: save %s: %w", s.name, err)
	}
	return nil
}

// Clear deletes the credential row.
func (s *SQLStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Where("name = ?", s.name).Delete(&credentialRecord{}).Error
	if err != nil {
		return fmt.Errorf("credential: delete %s: %w", s.name, err)
	}
	return nil
}
