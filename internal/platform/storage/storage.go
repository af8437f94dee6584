// Package storage keeps generated documents such as payslips and exported
// reports on local disk or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"schoolerp/internal/platform/crypto"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+key)), "/")
	if key == "" || key == "." {
		return "", ErrInvalidKey
	}
	return key, nil
}

type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Put(_ context.Context, key string, data []byte, _ string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Encrypted seals objects before handing them to the underlying store.
type Encrypted struct {
	Store
	crypto *crypto.Service
}

func NewEncrypted(inner Store, svc *crypto.Service) Store {
	if !svc.Configured() {
		return inner
	}
	return &Encrypted{Store: inner, crypto: svc}
}

func (e *Encrypted) Put(ctx context.Context, key string, data []byte, contentType string) error {
	sealed, err := e.crypto.Seal(data)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", key, err)
	}
	return e.Store.Put(ctx, key, sealed, "application/octet-stream")
}

func (e *Encrypted) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := e.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.crypto.Open(sealed)
}
