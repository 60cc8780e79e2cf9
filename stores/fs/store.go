// Package fs provides a filesystem backed AccountStore that keeps each
// account as a JSON file.  Suitable for development and small single node
// deployments.
//
// # File Structure
//
//	{StoragePath}/
//	├── accounts/
//	│   └── {account id}.json
//	├── identifiers/
//	│   └── {sha256(identifier)}     # contains the account id
//	└── external/
//	    └── {sha256(external id)}    # contains the account id
//
// # Concurrency Model
//
// Index files are created with O_EXCL so two processes sharing a directory
// cannot both claim an identifier.  Account files are written atomically
// (temp file + rename).
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	oa "github.com/panyam/credauth"
)

// Store keeps accounts as JSON files
type Store struct {
	StoragePath string
}

var _ oa.AccountLister = (*Store)(nil)

func New(storagePath string) *Store {
	return &Store{StoragePath: storagePath}
}

func (s *Store) accountPath(id string) string {
	// filepath.Base prevents path traversal through crafted ids
	return filepath.Join(s.StoragePath, "accounts", filepath.Base(id)+".json")
}

func (s *Store) indexPath(kind, key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.StoragePath, kind, hex.EncodeToString(sum[:]))
}

func (s *Store) Insert(ctx context.Context, account *oa.Account) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(oa.ErrStoreUnavailable, err.Error())
	}
	for _, dir := range []string{"accounts", "identifiers", "external"} {
		if err := os.MkdirAll(filepath.Join(s.StoragePath, dir), 0755); err != nil {
			return errors.Wrapf(oa.ErrStoreUnavailable, "mkdir %s: %v", dir, err)
		}
	}

	// claim the indexes first so a losing writer never touches account files
	idxPath := s.indexPath("identifiers", account.Identifier)
	if err := createExclusive(idxPath, []byte(account.ID)); err != nil {
		if os.IsExist(err) {
			return errors.Wrapf(oa.ErrDuplicateIdentifier, "identifier %s", account.Identifier)
		}
		return errors.Wrapf(oa.ErrStoreUnavailable, "claim identifier: %v", err)
	}

	var extPath string
	if account.ExternalID != "" {
		extPath = s.indexPath("external", account.ExternalID)
		if err := createExclusive(extPath, []byte(account.ID)); err != nil {
			os.Remove(idxPath)
			if os.IsExist(err) {
				return errors.Wrapf(oa.ErrDuplicateIdentifier, "external id %s", account.ExternalID)
			}
			return errors.Wrapf(oa.ErrStoreUnavailable, "claim external id: %v", err)
		}
	}

	data, err := json.MarshalIndent(account, "", "  ")
	if err == nil {
		err = writeAtomicFile(s.accountPath(account.ID), data)
	}
	if err != nil {
		os.Remove(idxPath)
		if extPath != "" {
			os.Remove(extPath)
		}
		return errors.Wrapf(oa.ErrStoreUnavailable, "write account: %v", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*oa.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(oa.ErrStoreUnavailable, err.Error())
	}
	if id == "" {
		return nil, oa.ErrAccountNotFound
	}
	data, err := os.ReadFile(s.accountPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, oa.ErrAccountNotFound
		}
		return nil, errors.Wrapf(oa.ErrStoreUnavailable, "read account: %v", err)
	}

	var account oa.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, errors.Wrapf(err, "corrupt account file %s", id)
	}
	return &account, nil
}

func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (*oa.Account, error) {
	return s.findIndexed(ctx, "identifiers", identifier)
}

func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*oa.Account, error) {
	return s.findIndexed(ctx, "external", externalID)
}

func (s *Store) findIndexed(ctx context.Context, kind, key string) (*oa.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(oa.ErrStoreUnavailable, err.Error())
	}
	data, err := os.ReadFile(s.indexPath(kind, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, oa.ErrAccountNotFound
		}
		return nil, errors.Wrapf(oa.ErrStoreUnavailable, "read index: %v", err)
	}
	return s.FindByID(ctx, strings.TrimSpace(string(data)))
}

// ListByProvider scans the accounts directory.  Unreadable files are skipped.
func (s *Store) ListByProvider(ctx context.Context, provider string) ([]*oa.Account, error) {
	entries, err := os.ReadDir(filepath.Join(s.StoragePath, "accounts"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(oa.ErrStoreUnavailable, "list accounts: %v", err)
	}

	var out []*oa.Account
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		account, err := s.FindByID(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			if errors.Is(err, oa.ErrStoreUnavailable) {
				return nil, err
			}
			continue
		}
		if account.Provider == provider {
			out = append(out, account)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
