// Package backend selects and builds the configured session store.
package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"twin/internal/session"
	"twin/internal/session/filestore"
	"twin/internal/session/memstore"
	"twin/internal/session/pgstore"
	"twin/internal/session/redisstore"
	"twin/internal/session/s3store"
)

const (
	File     = "file"
	S3       = "s3"
	Redis    = "redis"
	Postgres = "postgres"
	Memory   = "memory"
)

// Config selects a backend and carries its settings.
type Config struct {
	Backend  string
	Dir      string
	S3Bucket string
	S3Prefix string
	RedisTTL time.Duration
}

// Clients carries the network clients a backend may need. Only the client
// for the selected backend must be set.
type Clients struct {
	S3       s3store.ObjectAPI
	Redis    redis.Cmdable
	Postgres pgstore.Pool
}

// Names lists the supported backends.
func Names() []string {
	return []string{File, S3, Redis, Postgres, Memory}
}

// NewStore builds the store named by cfg.Backend. An empty name selects
// the filesystem backend.
func NewStore(ctx context.Context, cfg Config, clients Clients) (session.Store, error) {
	var (
		store session.Store
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", File:
		dir := cfg.Dir
		if dir == "" {
			dir = "../memory"
		}
		var fs *filestore.Store
		if fs, err = filestore.New(dir); err == nil {
			store = fs
		}
	case S3:
		var s3s *s3store.Store
		if s3s, err = s3store.New(clients.S3, cfg.S3Bucket, s3store.WithPrefix(cfg.S3Prefix)); err == nil {
			store = s3s
		}
	case Redis:
		var rs *redisstore.Store
		if rs, err = redisstore.New(clients.Redis, cfg.RedisTTL); err == nil {
			store = rs
		}
	case Postgres:
		var ps *pgstore.Store
		if ps, err = pgstore.New(clients.Postgres); err == nil {
			if err = ps.EnsureSchema(ctx); err == nil {
				store = ps
			}
		}
	case Memory:
		store = memstore.New()
	default:
		err = fmt.Errorf("unknown session backend %q (supported: %s)", cfg.Backend, strings.Join(Names(), ", "))
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
