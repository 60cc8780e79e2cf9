// Package mem provides an in-memory AccountStore.  Data lives as long as the
// process; it is meant for tests and local development.
package mem

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	oa "github.com/panyam/credauth"
)

// Store keeps accounts in maps indexed by ID, identifier and external ID
type Store struct {
	mu           sync.RWMutex
	byID         map[string]*oa.Account
	byIdentifier map[string]string
	byExternalID map[string]string
}

var _ oa.AccountLister = (*Store)(nil)

func New() *Store {
	return &Store{
		byID:         make(map[string]*oa.Account),
		byIdentifier: make(map[string]string),
		byExternalID: make(map[string]string),
	}
}

func (s *Store) Insert(ctx context.Context, account *oa.Account) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(oa.ErrStoreUnavailable, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byIdentifier[account.Identifier]; ok {
		return errors.Wrapf(oa.ErrDuplicateIdentifier, "identifier %s", account.Identifier)
	}
	if account.ExternalID != "" {
		if _, ok := s.byExternalID[account.ExternalID]; ok {
			return errors.Wrapf(oa.ErrDuplicateIdentifier, "external id %s", account.ExternalID)
		}
	}
	if _, ok := s.byID[account.ID]; ok {
		return errors.Wrapf(oa.ErrDuplicateIdentifier, "account id %s", account.ID)
	}

	stored := clone(account)
	s.byID[stored.ID] = stored
	s.byIdentifier[stored.Identifier] = stored.ID
	if stored.ExternalID != "" {
		s.byExternalID[stored.ExternalID] = stored.ID
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*oa.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(oa.ErrStoreUnavailable, err.Error())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (*oa.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(oa.ErrStoreUnavailable, err.Error())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(s.byIdentifier[identifier])
}

func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*oa.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(oa.ErrStoreUnavailable, err.Error())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(s.byExternalID[externalID])
}

// ListByProvider returns accounts created through provider, oldest first
func (s *Store) ListByProvider(ctx context.Context, provider string) ([]*oa.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(oa.ErrStoreUnavailable, err.Error())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*oa.Account
	for _, a := range s.byID {
		if a.Provider == provider {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Len returns the number of stored accounts
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Store) get(id string) (*oa.Account, error) {
	account, ok := s.byID[id]
	if !ok || id == "" {
		return nil, oa.ErrAccountNotFound
	}
	return clone(account), nil
}

// clone keeps callers from mutating stored records
func clone(a *oa.Account) *oa.Account {
	out := *a
	if a.Profile != nil {
		out.Profile = make(map[string]any, len(a.Profile))
		for k, v := range a.Profile {
			out.Profile[k] = v
		}
	}
	return &out
}
