//go:build !wasm
// +build !wasm

package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	oa "github.com/panyam/credauth"
)

// JSONMap is a helper type for storing JSON maps in GORM
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value any) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// AccountModel is the GORM model for accounts.  ExternalID is a pointer so
// local accounts store NULL, which unique indexes do not compare.
type AccountModel struct {
	ID         string    `gorm:"primaryKey;size:64"`
	Identifier string    `gorm:"size:320;uniqueIndex"`
	Strategy   string    `gorm:"size:32"`
	Credential string    `gorm:"size:512"`
	ExternalID *string   `gorm:"size:320;uniqueIndex"`
	Provider   string    `gorm:"size:32"`
	Profile    JSONMap   `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func (m *AccountModel) ToAccount() *oa.Account {
	a := &oa.Account{
		ID:         m.ID,
		Identifier: m.Identifier,
		Strategy:   oa.Strategy(m.Strategy),
		Credential: m.Credential,
		Provider:   m.Provider,
		Profile:    m.Profile,
		CreatedAt:  m.CreatedAt.UTC(),
	}
	if m.ExternalID != nil {
		a.ExternalID = *m.ExternalID
	}
	return a
}

func AccountToModel(a *oa.Account) *AccountModel {
	m := &AccountModel{
		ID:         a.ID,
		Identifier: a.Identifier,
		Strategy:   string(a.Strategy),
		Credential: a.Credential,
		Provider:   a.Provider,
		Profile:    JSONMap(a.Profile),
		CreatedAt:  a.CreatedAt,
	}
	if a.ExternalID != "" {
		ext := a.ExternalID
		m.ExternalID = &ext
	}
	return m
}
