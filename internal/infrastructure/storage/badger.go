package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
)

const chainKeyPrefix = "chain/"

// BadgerStore keeps each chain as one JSON snapshot under chain/<id>.
type BadgerStore struct {
	db *badger.DB
}

type BadgerOptions struct {
	Path     string
	InMemory bool
	ReadOnly bool
}

func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("badger: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithReadOnly(opts.ReadOnly)
	if opts.InMemory {
		bopts = bopts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func chainKey(id string) []byte {
	return []byte(chainKeyPrefix + id)
}

func (s *BadgerStore) SaveChain(ctx context.Context, chain *domain.Chain) error {
	raw, err := json.Marshal(chain)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		var stored int64
		item, err := txn.Get(chainKey(chain.ID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			var prev domain.Chain
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &prev) }); err != nil {
				return err
			}
			stored = prev.Version
		}
		if chain.Version != stored+1 {
			return fmt.Errorf("chain %s stored at version %d, snapshot %d: %w", chain.ID, stored, chain.Version, domain.ErrVersionConflict)
		}
		return txn.Set(chainKey(chain.ID), raw)
	})
}

func (s *BadgerStore) LoadChain(ctx context.Context, id string) (*domain.Chain, error) {
	var chain domain.Chain
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chainKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &chain) })
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("chain %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	normalize(&chain)
	return &chain, nil
}

func (s *BadgerStore) LoadActiveChains(ctx context.Context) ([]*domain.Chain, error) {
	return s.scan(ctx, func(c *domain.Chain) bool { return c.Status == domain.ChainActive })
}

func (s *BadgerStore) ListChains(ctx context.Context) ([]*domain.Chain, error) {
	return s.scan(ctx, func(*domain.Chain) bool { return true })
}

func (s *BadgerStore) scan(ctx context.Context, keep func(*domain.Chain) bool) ([]*domain.Chain, error) {
	var out []*domain.Chain
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(chainKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var c domain.Chain
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &c) }); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if keep(&c) {
				normalize(&c)
				out = append(out, &c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func normalize(c *domain.Chain) {
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	c.TotalProfit = c.RealizedProfit()
}
