package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/store/memory"
	"github.com/warp/commission-engine/store/postgres"
	"github.com/warp/commission-engine/store/sqlite"
)

// bookEnv is a Book over the configured store.
type bookEnv struct {
	Book  *commission.Book
	close func() error
}

func (e *bookEnv) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

func initStore(ctx context.Context) (commission.Store, func() error, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, nil, eris.Wrap(err, "create database directory")
			}
		}
		st, err := sqlite.New(path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "postgres":
		st, err := postgres.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "memory":
		return memory.New(), nil, nil
	default:
		return nil, nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initBook(ctx context.Context) (*bookEnv, error) {
	st, closeFn, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	engine := commission.NewEngine(cfg.EngineConfig(), cfg.IDGenerator(), zap.L())
	book := commission.NewBook(st, engine)
	book.MaxRetries = cfg.Reconcile.MaxRetries

	zap.L().Debug("book opened", zap.String("driver", cfg.Store.Driver))
	return &bookEnv{Book: book, close: closeFn}, nil
}
