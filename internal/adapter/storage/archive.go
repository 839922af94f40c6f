package storage

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Archive 把 bundle 目录中的文件以相对路径写入 zip。
func (s *Store) Archive(ctx context.Context, dir string, w io.Writer) error {
	if !s.Exists(dir) {
		return fmt.Errorf("%w: %s", domain.ErrBundleNotFound, dir)
	}
	zw := zip.NewWriter(w)
	err := afero.Walk(s.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate

		dst, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		src, err := s.fs.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(dst, src)
		return err
	})
	if err != nil {
		return fmt.Errorf("archive bundle: %w", err)
	}
	return zw.Close()
}

// Stage 把 zip 解包到暂存目录，拒绝绝对路径和 ".." 条目。失败时清理暂存目录。
func (s *Store) Stage(ctx context.Context, archivePath string) (string, error) {
	f, err := s.fs.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("%w: failed to extract zip file: %v", domain.ErrInvalidInput, err)
	}

	staging := filepath.Join(s.root, stagingDir, uuid.NewString())
	if err := s.fs.MkdirAll(staging, 0o755); err != nil {
		return "", err
	}
	if err := s.extract(ctx, zr, staging); err != nil {
		_ = s.fs.RemoveAll(staging)
		return "", err
	}
	return staging, nil
}

func (s *Store) extract(ctx context.Context, zr *zip.Reader, dest string) error {
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := path.Clean(strings.ReplaceAll(f.Name, `\`, "/"))
		if path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
			return fmt.Errorf("%w: failed to extract zip file: illegal entry %q", domain.ErrInvalidInput, f.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(name))
		if f.FileInfo().IsDir() {
			if err := s.fs.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := s.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := s.extractFile(f, target); err != nil {
			return fmt.Errorf("%w: failed to extract zip file: %v", domain.ErrInvalidInput, err)
		}
	}
	return nil
}

func (s *Store) extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return afero.WriteReader(s.fs, target, rc)
}
