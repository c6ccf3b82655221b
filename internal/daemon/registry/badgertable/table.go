// Package badgertable stores the code-mapping table in BadgerDB.
package badgertable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/grovetools/pulse/internal/daemon/registry"
	"github.com/grovetools/pulse/pkg/models"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "code/"

// Config holds configuration for the Badger-backed table.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory disables disk persistence. Tests only.
	InMemory bool

	// SyncWrites fsyncs every append before it returns.
	SyncWrites bool

	// Logger receives badger's internal logs. Nil silences them.
	Logger *logrus.Entry
}

// DefaultConfig returns a durable configuration rooted at path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// Table persists registry rows as JSON values under code/<letter>/<seq>.
type Table struct {
	db       *badger.DB
	inMemory bool
}

type row struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// Open opens the database described by cfg.
func Open(cfg Config) (*Table, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		// *logrus.Entry already has Errorf/Warningf/Infof/Debugf.
		opts = opts.WithLogger(cfg.Logger)
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Table{db: db, inMemory: cfg.InMemory}, nil
}

func entryKey(c models.Category, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s/%012d", keyPrefix, c, seq))
}

func parseKey(k []byte) (models.Category, int, error) {
	var (
		letter string
		seq    int
	)
	s := string(k)
	if len(s) < len(keyPrefix)+3 {
		return "", 0, fmt.Errorf("short key %q", s)
	}
	letter = s[len(keyPrefix) : len(keyPrefix)+1]
	if _, err := fmt.Sscanf(s[len(keyPrefix)+2:], "%d", &seq); err != nil {
		return "", 0, fmt.Errorf("parse key %q: %w", s, err)
	}
	return models.Category(letter), seq, nil
}

// Load implements registry.Table.
func (t *Table) Load(ctx context.Context) ([]registry.Entry, error) {
	var out []registry.Entry
	err := t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			category, seq, err := parseKey(item.KeyCopy(nil))
			if err != nil {
				return err
			}
			var r row
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return fmt.Errorf("decode %s%d: %w", category, seq, err)
			}
			out = append(out, registry.Entry{
				Category:  category,
				Seq:       seq,
				Key:       r.Key,
				CreatedAt: r.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load code map: %w", err)
	}
	return out, nil
}

// ErrDuplicate is returned when the code is already stored.
var ErrDuplicate = errors.New("code map row already exists")

// Append implements registry.Table.
func (t *Table) Append(ctx context.Context, e registry.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(row{Key: e.Key, CreatedAt: e.CreatedAt.UTC()})
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Code(), err)
	}
	key := entryKey(e.Category, e.Seq)
	err = t.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("append %s: %w", e.Code(), err)
	}
	return nil
}

// Flush syncs the value log to disk.
func (t *Table) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.inMemory {
		return nil
	}
	return t.db.Sync()
}

// Close implements registry.Table.
func (t *Table) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}

var (
	_ registry.Table   = (*Table)(nil)
	_ registry.Flusher = (*Table)(nil)
)
