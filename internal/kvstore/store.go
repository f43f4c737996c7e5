// Package kvstore is the per-profile key-value blob store that holds viewer-local
// state (visibility selections, drafts) plus the change signal that lets other
// open sessions of the same profile reload it.
package kvstore

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Change announces that a key of one profile was written or removed
type Change struct {
	Profile string `json:"profile"`
	Key     string `json:"key"`
}

// Store reads and writes opaque values under string keys
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Backend is a multi-profile store that can also broadcast changes
type Backend interface {
	Store
	Publish(ctx context.Context, change Change) error
	// Subscribe delivers every published change until ctx is cancelled
	// or the returned cancel func is called.
	Subscribe(ctx context.Context) (<-chan Change, func(), error)
}

// ProfileKey is the physical key for a logical key of one profile
func ProfileKey(profile, key string) string {
	return "profile:" + profile + ":" + key
}

// scoped narrows a Backend to one profile and signals every write
type scoped struct {
	backend Backend
	profile string
}

// Scoped returns a Store whose keys live under the given profile.
// Every Set and Delete publishes a Change for that profile.
func Scoped(backend Backend, profile string) Store {
	return &scoped{backend: backend, profile: profile}
}

func (s *scoped) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.backend.Get(ctx, ProfileKey(s.profile, key))
}

func (s *scoped) Set(ctx context.Context, key string, value []byte) error {
	if err := s.backend.Set(ctx, ProfileKey(s.profile, key), value); err != nil {
		return err
	}
	// the signal is best effort; the write itself succeeded
	_ = s.backend.Publish(ctx, Change{Profile: s.profile, Key: key})
	return nil
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, ProfileKey(s.profile, key)); err != nil {
		return err
	}
	_ = s.backend.Publish(ctx, Change{Profile: s.profile, Key: key})
	return nil
}

// Open connects to Redis at url. An empty url yields an in-process Memory
// backend, which only serves a single server instance. The returned func
// releases the backend.
func Open(ctx context.Context, url string, logger *logrus.Logger) (Backend, func() error, error) {
	if url == "" {
		logger.Warn("REDIS_URL is empty, keeping profile state in memory")
		return NewMemory(), func() error { return nil }, nil
	}

	r, err := NewRedis(ctx, url, logger)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}
