package oci

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
)

func newRegistry(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(registry.New())
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse registry url: %v", err)
	}
	return u.Host
}

func writeArchive(t *testing.T, tag string) (string, string) {
	t.Helper()
	img, err := random.Image(1024, 2)
	if err != nil {
		t.Fatalf("random image: %v", err)
	}
	ref, err := name.NewTag(tag)
	if err != nil {
		t.Fatalf("parse tag: %v", err)
	}
	path := filepath.Join(t.TempDir(), domain.ArchiveFileName(tag))
	if err := tarball.WriteToFile(path, ref, img); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	cfg, err := img.ConfigName()
	if err != nil {
		t.Fatalf("config name: %v", err)
	}
	return path, cfg.String()
}

func TestEngine_LoadTagPush(t *testing.T) {
	host := newRegistry(t)
	archive, configDigest := writeArchive(t, "myapp:latest")
	e := NewEngine([]string{host})
	ctx := context.Background()

	if err := e.Login(ctx, port.RegistryCredentials{Registry: host}); err != nil {
		t.Fatalf("login: %v", err)
	}
	loaded, err := e.Load(ctx, archive)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || !strings.Contains(loaded[0], "myapp") {
		t.Fatalf("loaded = %v", loaded)
	}

	target := host + "/library/myapp:latest"
	if err := e.Tag(ctx, "myapp", target); err != nil {
		t.Fatalf("tag: %v", err)
	}
	if err := e.Push(ctx, target); err != nil {
		t.Fatalf("push: %v", err)
	}

	ref, err := name.ParseReference(target, name.Insecure)
	if err != nil {
		t.Fatalf("parse target: %v", err)
	}
	pushed, err := remote.Image(ref)
	if err != nil {
		t.Fatalf("fetch pushed image: %v", err)
	}
	got, err := pushed.ConfigName()
	if err != nil {
		t.Fatalf("config name: %v", err)
	}
	if got.String() != configDigest {
		t.Errorf("pushed config = %s, want %s", got, configDigest)
	}
}

func TestEngine_PullSave(t *testing.T) {
	host := newRegistry(t)
	img, err := random.Image(512, 1)
	if err != nil {
		t.Fatalf("random image: %v", err)
	}
	source := host + "/team/api:v1"
	ref, err := name.ParseReference(source, name.Insecure)
	if err != nil {
		t.Fatalf("parse source: %v", err)
	}
	if err := remote.Write(ref, img); err != nil {
		t.Fatalf("seed registry: %v", err)
	}

	e := NewEngine([]string{host})
	ctx := context.Background()
	if err := e.Pull(ctx, source); err != nil {
		t.Fatalf("pull: %v", err)
	}

	archive := filepath.Join(t.TempDir(), domain.ArchiveFileName(source))
	if err := e.Save(ctx, source, archive); err != nil {
		t.Fatalf("save: %v", err)
	}

	manifest, err := tarball.LoadManifest(func() (io.ReadCloser, error) { return os.Open(archive) })
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if len(manifest) != 1 || len(manifest[0].RepoTags) != 1 || !strings.Contains(manifest[0].RepoTags[0], "team/api:v1") {
		t.Fatalf("manifest = %+v", manifest)
	}

	// 归档可以被重新加载
	loaded, err := NewEngine(nil).Load(ctx, archive)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(loaded) != 1 {
		t.Errorf("loaded = %v", loaded)
	}
}

func TestEngine_TagUnknownImage(t *testing.T) {
	e := NewEngine(nil)
	err := e.Tag(context.Background(), "missing:latest", "sealos.hub:5000/library/missing:latest")
	if !errors.Is(err, domain.ErrExternalCommand) {
		t.Errorf("expected ErrExternalCommand, got %v", err)
	}
}

func TestEngine_LoadInvalidArchive(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.Load(context.Background(), filepath.Join(t.TempDir(), "missing.tar"))
	if !errors.Is(err, domain.ErrExternalCommand) {
		t.Errorf("expected ErrExternalCommand, got %v", err)
	}
}
