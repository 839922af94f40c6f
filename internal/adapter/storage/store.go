// Package storage 在本地文件系统上管理 bundle 目录，并负责 zip 打包与解包。
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
	"github.com/spf13/afero"
)

const (
	stagingDir = ".staging"
	tempDir    = ".tmp"
)

var _ port.BundleStore = (*Store)(nil)

type Store struct {
	fs   afero.Fs
	root string
}

// NewStore 以 root 为存储根目录。以 "." 开头的子目录保留给暂存与临时文件，不会与合法 namespace 冲突。
func NewStore(fsys afero.Fs, root string) (*Store, error) {
	root = filepath.Clean(root)
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{fs: fsys, root: root}, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) Dir(namespace, appName string) string {
	return filepath.Join(s.root, namespace, appName)
}

// Locate 把调用方给出的路径规范化为存储根目录内的绝对路径，不检查目录是否存在。
func (s *Store) Locate(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: path is required", domain.ErrInvalidInput)
	}
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q is outside the bundle storage", domain.ErrInvalidInput, path)
	}
	return p, nil
}

func (s *Store) Resolve(path string) (string, error) {
	p, err := s.Locate(path)
	if err != nil {
		return "", err
	}
	if !s.Exists(p) {
		return "", fmt.Errorf("%w: %s", domain.ErrBundleNotFound, path)
	}
	return p, nil
}

// Reset 删除已有 bundle 后重建空目录。
func (s *Store) Reset(namespace, appName string) (string, error) {
	dir := s.Dir(namespace, appName)
	if err := s.fs.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("remove bundle dir: %w", err)
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create bundle dir: %w", err)
	}
	return dir, nil
}

func (s *Store) Exists(dir string) bool {
	ok, err := afero.DirExists(s.fs, dir)
	return err == nil && ok
}

func (s *Store) WriteFile(dir, name string, data []byte) error {
	return afero.WriteFile(s.fs, filepath.Join(dir, name), data, 0o644)
}

func (s *Store) ReadFile(dir, name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBundleNotFound, filepath.Join(dir, name))
	}
	return data, err
}

func (s *Store) WriteMetadata(dir string, meta *domain.Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return s.WriteFile(dir, domain.MetadataFile, data)
}

func (s *Store) ReadMetadata(dir string) (*domain.Metadata, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(dir, domain.MetadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrMetadataNotFound, dir)
	}
	if err != nil {
		return nil, err
	}
	var meta domain.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrInvalidInput, domain.MetadataFile, err)
	}
	return &meta, nil
}

func (s *Store) CreateTemp(pattern string, r io.Reader) (string, func(), error) {
	dir := filepath.Join(s.root, tempDir)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", nil, err
	}
	f, err := afero.TempFile(s.fs, dir, pattern)
	if err != nil {
		return "", nil, err
	}
	name := f.Name()
	cleanup := func() { _ = s.fs.Remove(name) }
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return name, cleanup, nil
}

func (s *Store) RemoveAll(path string) error {
	return s.fs.RemoveAll(path)
}

// Promote 删除旧 bundle 并把暂存目录移动到 bundle 位置。
func (s *Store) Promote(staging, namespace, appName string) (string, error) {
	target := s.Dir(namespace, appName)
	if err := s.fs.RemoveAll(target); err != nil {
		return "", fmt.Errorf("remove bundle dir: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create namespace dir: %w", err)
	}
	if err := s.fs.Rename(staging, target); err != nil {
		return "", fmt.Errorf("move bundle into place: %w", err)
	}
	return target, nil
}
