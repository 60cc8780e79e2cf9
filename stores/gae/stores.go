//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"

	oa "github.com/panyam/credauth"
)

// Kind constants for Datastore entities
const (
	KindAccount           = "Account"
	KindAccountIdentifier = "AccountIdentifier"
	KindAccountExternal   = "AccountExternal"
)

// Store implements oa.AccountStore using Google Cloud Datastore
type Store struct {
	client    *datastore.Client
	namespace string
}

var _ oa.AccountLister = (*Store)(nil)

// New creates a Datastore backed store in the given namespace
func New(client *datastore.Client, namespace string) *Store {
	return &Store{client: client, namespace: namespace}
}

func (s *Store) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *Store) Insert(ctx context.Context, account *oa.Account) error {
	accountKey := s.namespacedKey(KindAccount, account.ID)
	keys := []*datastore.Key{s.namespacedKey(KindAccountIdentifier, account.Identifier)}
	if account.ExternalID != "" {
		keys = append(keys, s.namespacedKey(KindAccountExternal, account.ExternalID))
	}

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		for _, key := range keys {
			var existing IndexEntity
			err := tx.Get(key, &existing)
			if err == nil {
				return errors.Wrapf(oa.ErrDuplicateIdentifier, "%s %s", key.Kind, key.Name)
			}
			if err != datastore.ErrNoSuchEntity {
				return err
			}
		}

		now := time.Now()
		for _, key := range keys {
			if _, err := tx.Put(key, &IndexEntity{Key: key, AccountID: account.ID, CreatedAt: now}); err != nil {
				return err
			}
		}
		_, err := tx.Put(accountKey, AccountToEntity(account, accountKey))
		return err
	})
	if err == nil || errors.Is(err, oa.ErrDuplicateIdentifier) {
		return err
	}
	if err == datastore.ErrConcurrentTransaction {
		// the competing transaction committed the same index keys
		return errors.Wrapf(oa.ErrDuplicateIdentifier, "identifier %s", account.Identifier)
	}
	return errors.Wrapf(oa.ErrStoreUnavailable, "insert account: %v", err)
}

func (s *Store) FindByID(ctx context.Context, id string) (*oa.Account, error) {
	if id == "" {
		return nil, oa.ErrAccountNotFound
	}
	key := s.namespacedKey(KindAccount, id)
	var entity AccountEntity
	if err := s.client.Get(ctx, key, &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, oa.ErrAccountNotFound
		}
		return nil, errors.Wrapf(oa.ErrStoreUnavailable, "get account: %v", err)
	}
	return entity.ToAccount(), nil
}

func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (*oa.Account, error) {
	return s.findIndexed(ctx, KindAccountIdentifier, identifier)
}

func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*oa.Account, error) {
	return s.findIndexed(ctx, KindAccountExternal, externalID)
}

func (s *Store) findIndexed(ctx context.Context, kind, name string) (*oa.Account, error) {
	if name == "" {
		return nil, oa.ErrAccountNotFound
	}
	var idx IndexEntity
	if err := s.client.Get(ctx, s.namespacedKey(kind, name), &idx); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, oa.ErrAccountNotFound
		}
		return nil, errors.Wrapf(oa.ErrStoreUnavailable, "get %s: %v", kind, err)
	}
	return s.FindByID(ctx, idx.AccountID)
}

// ListByProvider returns accounts created through a provider, oldest first
func (s *Store) ListByProvider(ctx context.Context, provider string) ([]*oa.Account, error) {
	query := datastore.NewQuery(KindAccount).
		FilterField("provider", "=", provider)
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}

	var accounts []*oa.Account
	it := s.client.Run(ctx, query)
	for {
		var entity AccountEntity
		_, err := it.Next(&entity)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(oa.ErrStoreUnavailable, "list accounts: %v", err)
		}
		accounts = append(accounts, entity.ToAccount())
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].CreatedAt.Before(accounts[j].CreatedAt) })
	return accounts, nil
}
