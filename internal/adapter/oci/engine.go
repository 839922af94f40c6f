// Package oci 实现不依赖 docker daemon 的镜像引擎，直接读写 docker save 格式归档并调用仓库 API。
package oci

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
)

var _ port.ImageEngine = (*Engine)(nil)

// Engine 在内存中维护一个类似 daemon 镜像库的暂存区，key 为规范化后的镜像引用。
// 暂存的镜像是惰性的，层数据在 Save/Push 时才读取。
type Engine struct {
	insecure map[string]bool

	mu     sync.Mutex
	auth   map[string]authn.Authenticator
	images map[string]v1.Image
}

func NewEngine(insecureRegistries []string) *Engine {
	e := &Engine{
		insecure: make(map[string]bool),
		auth:     make(map[string]authn.Authenticator),
		images:   make(map[string]v1.Image),
	}
	for _, r := range insecureRegistries {
		e.insecure[registryKey(r)] = true
	}
	return e
}

// Login 记录仓库凭据，后续对该仓库的读写都会使用。
func (e *Engine) Login(_ context.Context, creds port.RegistryCredentials) error {
	var a authn.Authenticator = authn.Anonymous
	if creds.Username != "" {
		a = &authn.Basic{Username: creds.Username, Password: creds.Password}
	}
	e.mu.Lock()
	e.auth[registryKey(creds.Registry)] = a
	e.mu.Unlock()
	return nil
}

func (e *Engine) Pull(ctx context.Context, image string) error {
	ref, err := e.parse(image)
	if err != nil {
		return err
	}
	img, err := remote.Image(ref, e.remoteOptions(ctx, ref)...)
	if err != nil {
		return commandError("pull", image, err)
	}
	e.put(ref.Name(), img)
	return nil
}

func (e *Engine) Save(_ context.Context, image, archivePath string) error {
	ref, err := e.parse(image)
	if err != nil {
		return err
	}
	img, err := e.get(ref.Name())
	if err != nil {
		return err
	}
	if err := tarball.WriteToFile(archivePath, ref, img); err != nil {
		return commandError("save", image, err)
	}
	return nil
}

// Load 读取归档 manifest 中的所有 RepoTags 并放入暂存区。
func (e *Engine) Load(_ context.Context, archivePath string) ([]string, error) {
	opener := func() (io.ReadCloser, error) { return os.Open(archivePath) }
	manifest, err := tarball.LoadManifest(opener)
	if err != nil {
		return nil, commandError("load", archivePath, err)
	}

	var loaded []string
	for _, desc := range manifest {
		for _, repoTag := range desc.RepoTags {
			tag, err := name.NewTag(repoTag, name.WeakValidation)
			if err != nil {
				return nil, commandError("load", archivePath, err)
			}
			img, err := tarball.Image(opener, &tag)
			if err != nil {
				return nil, commandError("load", archivePath, err)
			}
			e.put(tag.Name(), img)
			loaded = append(loaded, repoTag)
		}
	}
	if len(loaded) == 0 {
		return nil, fmt.Errorf("%w: load did not report a loaded image: %s has no tagged image", domain.ErrExternalCommand, archivePath)
	}
	return loaded, nil
}

func (e *Engine) Tag(_ context.Context, source, target string) error {
	src, err := e.parse(source)
	if err != nil {
		return err
	}
	dst, err := e.parse(target)
	if err != nil {
		return err
	}
	img, err := e.get(src.Name())
	if err != nil {
		return err
	}
	e.put(dst.Name(), img)
	return nil
}

// Push 推送暂存区中的镜像，成功后从暂存区移除。
func (e *Engine) Push(ctx context.Context, image string) error {
	ref, err := e.parse(image)
	if err != nil {
		return err
	}
	img, err := e.get(ref.Name())
	if err != nil {
		return err
	}
	if err := remote.Write(ref, img, e.remoteOptions(ctx, ref)...); err != nil {
		return commandError("push", image, err)
	}
	e.mu.Lock()
	delete(e.images, ref.Name())
	e.mu.Unlock()
	return nil
}

func (e *Engine) parse(image string) (name.Reference, error) {
	ref, err := name.ParseReference(image, name.WeakValidation)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidImageName, image, err)
	}
	if e.insecure[ref.Context().RegistryStr()] {
		return name.ParseReference(image, name.WeakValidation, name.Insecure)
	}
	return ref, nil
}

func (e *Engine) remoteOptions(ctx context.Context, ref name.Reference) []remote.Option {
	e.mu.Lock()
	a, ok := e.auth[ref.Context().RegistryStr()]
	e.mu.Unlock()
	if !ok {
		a = authn.Anonymous
	}
	return []remote.Option{remote.WithContext(ctx), remote.WithAuth(a)}
}

func (e *Engine) put(key string, img v1.Image) {
	e.mu.Lock()
	e.images[key] = img
	e.mu.Unlock()
}

func (e *Engine) get(key string) (v1.Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	img, ok := e.images[key]
	if !ok {
		return nil, fmt.Errorf("%w: image %s is not loaded", domain.ErrExternalCommand, key)
	}
	return img, nil
}

func registryKey(addr string) string {
	addr = strings.TrimPrefix(strings.TrimPrefix(addr, "https://"), "http://")
	addr = strings.TrimRight(addr, "/")
	if r, err := name.NewRegistry(addr, name.WeakValidation); err == nil {
		return r.RegistryStr()
	}
	return addr
}

func commandError(step, subject string, err error) error {
	return &domain.CommandError{Command: step + " " + subject, Err: err}
}
