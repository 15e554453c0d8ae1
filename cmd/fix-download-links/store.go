package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/thesavant42/fix-download-links/internal/config"
	"github.com/thesavant42/fix-download-links/internal/db"
	"github.com/thesavant42/fix-download-links/internal/fixer"
	"github.com/thesavant42/fix-download-links/internal/mongostore"
)

// ErrUnsupportedStore is returned for store URIs no backend handles
var ErrUnsupportedStore = errors.New("unsupported store")

const disconnectTimeout = 5 * time.Second

type storeKind int

const (
	storeMongo storeKind = iota
	storeSQLite
	storePostgres
)

func (k storeKind) String() string {
	switch k {
	case storeSQLite:
		return "sqlite"
	case storePostgres:
		return "postgres"
	default:
		return "mongodb"
	}
}

// parseStoreURI picks a backend from the URI scheme and returns the
// backend-specific connection target
func parseStoreURI(raw string) (storeKind, string, error) {
	uri := strings.TrimSpace(raw)
	switch {
	case uri == "":
		return 0, "", fmt.Errorf("%w: store uri is empty", ErrUnsupportedStore)
	case strings.HasPrefix(uri, "mongodb://"), strings.HasPrefix(uri, "mongodb+srv://"):
		return storeMongo, uri, nil
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		return storePostgres, uri, nil
	case strings.HasPrefix(uri, "sqlite://"):
		path := strings.TrimPrefix(uri, "sqlite://")
		if path == "" {
			return 0, "", fmt.Errorf("%w: sqlite uri has no path", ErrUnsupportedStore)
		}
		return storeSQLite, path, nil
	case uri == ":memory:", !strings.Contains(uri, "://") && (strings.HasSuffix(uri, ".db") || strings.HasSuffix(uri, ".sqlite")):
		return storeSQLite, uri, nil
	}
	return 0, "", fmt.Errorf("%w: %s", ErrUnsupportedStore, redact(uri))
}

// storeHandle is an opened backend plus what the commands need around it
type storeHandle struct {
	fixer.Store
	kind  storeKind
	name  string
	sql   *db.DB // nil unless the backend is SQL
	close func() error
}

func (h *storeHandle) String() string {
	return h.name
}

func (h *storeHandle) Close() error {
	if h == nil || h.close == nil {
		return nil
	}
	return h.close()
}

// openStore connects to the backend named by cfg.StoreURI
func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (*storeHandle, error) {
	kind, target, err := parseStoreURI(cfg.StoreURI)
	if err != nil {
		return nil, err
	}
	logger.Debug("Opening store", "kind", kind, "collection", cfg.Collection)

	switch kind {
	case storeMongo:
		m, err := mongostore.New(ctx, mongostore.Config{
			URI:        target,
			Database:   cfg.Database,
			Collection: cfg.Collection,
		})
		if err != nil {
			return nil, err
		}
		return &storeHandle{
			Store: m,
			kind:  kind,
			name:  m.String(),
			close: func() error {
				ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
				defer cancel()
				return m.Close(ctx)
			},
		}, nil

	case storePostgres:
		d, err := db.NewPostgres(target, cfg.Collection)
		if err != nil {
			return nil, err
		}
		return &storeHandle{Store: d, kind: kind, name: d.String(), sql: d, close: d.Close}, nil

	default:
		d, err := db.New(target, cfg.Collection)
		if err != nil {
			return nil, err
		}
		return &storeHandle{Store: d, kind: kind, name: d.String(), sql: d, close: d.Close}, nil
	}
}

// redact hides credentials in a URI for error messages
func redact(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return uri
	}
	return scheme + "://***@" + rest[at+1:]
}
