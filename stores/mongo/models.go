package mongo

import (
	"time"

	oa "github.com/panyam/credauth"
)

// AccountDocument is the stored shape of an account
type AccountDocument struct {
	ID         string         `bson:"_id"`
	Identifier string         `bson:"identifier"`
	Strategy   string         `bson:"strategy,omitempty"`
	Credential string         `bson:"credential,omitempty"`
	ExternalID string         `bson:"external_id,omitempty"`
	Provider   string         `bson:"provider"`
	Profile    map[string]any `bson:"profile,omitempty"`
	CreatedAt  time.Time      `bson:"created_at"`
}

func (d *AccountDocument) ToAccount() *oa.Account {
	return &oa.Account{
		ID:         d.ID,
		Identifier: d.Identifier,
		Strategy:   oa.Strategy(d.Strategy),
		Credential: d.Credential,
		ExternalID: d.ExternalID,
		Provider:   d.Provider,
		Profile:    d.Profile,
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

func AccountToDocument(a *oa.Account) *AccountDocument {
	return &AccountDocument{
		ID:         a.ID,
		Identifier: a.Identifier,
		Strategy:   string(a.Strategy),
		Credential: a.Credential,
		ExternalID: a.ExternalID,
		Provider:   a.Provider,
		Profile:    a.Profile,
		CreatedAt:  a.CreatedAt,
	}
}
