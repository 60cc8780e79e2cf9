//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	oa "github.com/panyam/credauth"
)

// AutoMigrate runs database migrations for the accounts table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountModel{})
}

// Open connects to a sqlite or postgres database.  TranslateError is turned
// on so unique violations surface as gorm.ErrDuplicatedKey on every driver.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, errors.Wrapf(oa.ErrConfiguration, "unsupported sql driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(oa.ErrStoreUnavailable, "open %s: %v", driver, err)
	}
	return db, nil
}

// Store implements oa.AccountStore using GORM
type Store struct {
	db *gorm.DB
}

var _ oa.AccountLister = (*Store)(nil)

// New migrates the schema and returns a store over db
func New(db *gorm.DB) (*Store, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, errors.Wrap(err, "migrate accounts")
	}
	return &Store{db: db}, nil
}

func (s *Store) Insert(ctx context.Context, account *oa.Account) error {
	err := s.db.WithContext(ctx).Create(AccountToModel(account)).Error
	if err == nil {
		return nil
	}
	if isDuplicate(err) {
		return errors.Wrapf(oa.ErrDuplicateIdentifier, "identifier %s", account.Identifier)
	}
	return unavailable(err)
}

func (s *Store) FindByID(ctx context.Context, id string) (*oa.Account, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (*oa.Account, error) {
	return s.first(ctx, "identifier = ?", identifier)
}

func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*oa.Account, error) {
	if externalID == "" {
		return nil, oa.ErrAccountNotFound
	}
	return s.first(ctx, "external_id = ?", externalID)
}

// ListByProvider returns accounts created through provider, oldest first
func (s *Store) ListByProvider(ctx context.Context, provider string) ([]*oa.Account, error) {
	var models []AccountModel
	if err := s.db.WithContext(ctx).Where("provider = ?", provider).Order("created_at").Find(&models).Error; err != nil {
		return nil, unavailable(err)
	}
	accounts := make([]*oa.Account, 0, len(models))
	for i := range models {
		accounts = append(accounts, models[i].ToAccount())
	}
	return accounts, nil
}

func (s *Store) first(ctx context.Context, query string, arg string) (*oa.Account, error) {
	var model AccountModel
	if err := s.db.WithContext(ctx).First(&model, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, oa.ErrAccountNotFound
		}
		return nil, unavailable(err)
	}
	return model.ToAccount(), nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// older sqlite builds are not covered by the translator
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func unavailable(err error) error {
	return errors.Wrapf(oa.ErrStoreUnavailable, "%v", err)
}
