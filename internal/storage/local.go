package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// SidecarSuffix is appended to a data file's path for the transport's
// metadata descriptor that travels alongside it.
const SidecarSuffix = ".info"

// LocalStorage implements ObjectStore on the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a local storage backend rooted at basePath
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		log.Error().Err(err).Str("path", basePath).Msg("failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	log.Info().Str("path", basePath).Msg("local storage initialized")
	return &LocalStorage{basePath: basePath}, nil
}

// Kind identifies the backend
func (ls *LocalStorage) Kind() string { return "local" }

// GenerateKey derives the canonical destination for an upload
func (ls *LocalStorage) GenerateKey(clientCode, projectName, filename string) string {
	return GenerateKey(clientCode, projectName, filename)
}

// Exists checks for a file at key via stat
func (ls *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(filepath.Join(ls.basePath, key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return true, nil
}

// Move renames the data file from src to dst, creating the destination
// directory first. The transport's sidecar descriptor is moved along with the
// data; a sidecar failure is logged but non-fatal since the data itself has
// already landed.
func (ls *LocalStorage) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	srcPath := filepath.Join(ls.basePath, src)
	dstPath := filepath.Join(ls.basePath, dst)

	if _, err := os.Stat(srcPath); err != nil {
		if os.IsNotExist(err) {
			// Already relocated by a prior attempt
			if ok, _ := ls.Exists(ctx, dst); ok {
				log.Debug().Str("src", src).Str("dst", dst).Msg("source already relocated")
				return nil
			}
			return fmt.Errorf("source %s does not exist: %w", src, err)
		}
		return fmt.Errorf("failed to stat source %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	if err := os.Rename(srcPath, dstPath); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	if err := os.Rename(srcPath+SidecarSuffix, dstPath+SidecarSuffix); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("src", src).Msg("failed to move sidecar descriptor")
	}

	log.Info().Str("src", src).Str("dst", dst).Msg("file relocated")
	return nil
}

// ReadAll returns the full content at key
func (ls *LocalStorage) ReadAll(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(ls.basePath, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", key)
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Store writes content at key, creating intermediate directories
func (ls *LocalStorage) Store(ctx context.Context, key string, content io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath := filepath.Join(ls.basePath, key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", key, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes the data file and its sidecar; absent files are a no-op
func (ls *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath := filepath.Join(ls.basePath, key)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	if err := os.Remove(fullPath + SidecarSuffix); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("key", key).Msg("failed to delete sidecar descriptor")
	}
	return nil
}
