//go:build !wasm
// +build !wasm

package gae

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/datastore"

	oa "github.com/panyam/credauth"
)

// AccountEntity is the Datastore entity for accounts
type AccountEntity struct {
	Key        *datastore.Key `datastore:"__key__"`
	Identifier string         `datastore:"identifier"`
	Strategy   string         `datastore:"strategy,noindex"`
	Credential string         `datastore:"credential,noindex"`
	ExternalID string         `datastore:"external_id"`
	Provider   string         `datastore:"provider"`
	Profile    []byte         `datastore:"profile,noindex"` // JSON encoded
	CreatedAt  time.Time      `datastore:"created_at"`
}

// IndexEntity maps an identifier or external id to its owning account
type IndexEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	AccountID string         `datastore:"account_id,noindex"`
	CreatedAt time.Time      `datastore:"created_at,noindex"`
}

func (e *AccountEntity) ToAccount() *oa.Account {
	var profile map[string]any
	if e.Profile != nil {
		json.Unmarshal(e.Profile, &profile)
	}
	return &oa.Account{
		ID:         e.Key.Name,
		Identifier: e.Identifier,
		Strategy:   oa.Strategy(e.Strategy),
		Credential: e.Credential,
		ExternalID: e.ExternalID,
		Provider:   e.Provider,
		Profile:    profile,
		CreatedAt:  e.CreatedAt.UTC(),
	}
}

func AccountToEntity(a *oa.Account, key *datastore.Key) *AccountEntity {
	var profileBytes []byte
	if a.Profile != nil {
		profileBytes, _ = json.Marshal(a.Profile)
	}
	return &AccountEntity{
		Key:        key,
		Identifier: a.Identifier,
		Strategy:   string(a.Strategy),
		Credential: a.Credential,
		ExternalID: a.ExternalID,
		Provider:   a.Provider,
		Profile:    profileBytes,
		CreatedAt:  a.CreatedAt,
	}
}
