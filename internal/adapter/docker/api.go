package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/google/go-containerregistry/pkg/name"
)

var _ port.ImageEngine = (*APIEngine)(nil)

// APIEngine 通过 Docker Engine API 操作 daemon，不依赖 docker 命令行。
type APIEngine struct {
	cli client.APIClient

	mu   sync.RWMutex
	auth map[string]string // registry host -> X-Registry-Auth
}

// NewEnvClient 按 DOCKER_HOST 等环境变量创建 client，并协商 API 版本。
func NewEnvClient() (*client.Client, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

func NewAPIEngine(cli client.APIClient) *APIEngine {
	return &APIEngine{cli: cli, auth: make(map[string]string)}
}

func (e *APIEngine) Login(ctx context.Context, creds port.RegistryCredentials) error {
	if creds.Username == "" {
		return nil
	}
	cfg := registry.AuthConfig{
		Username:      creds.Username,
		Password:      creds.Password,
		ServerAddress: creds.Registry,
	}
	if _, err := e.cli.RegistryLogin(ctx, cfg); err != nil {
		return apiError("docker login", err)
	}
	encoded, err := registry.EncodeAuthConfig(cfg)
	if err != nil {
		return fmt.Errorf("encode registry auth: %w", err)
	}
	e.mu.Lock()
	e.auth[registryHost(creds.Registry)] = encoded
	e.mu.Unlock()
	return nil
}

func (e *APIEngine) Pull(ctx context.Context, ref string) error {
	rc, err := e.cli.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: e.authFor(ref)})
	if err != nil {
		return apiError("docker pull", err)
	}
	defer rc.Close()
	if err := jsonmessage.DisplayJSONMessagesStream(rc, io.Discard, 0, false, nil); err != nil {
		return apiError("docker pull", err)
	}
	return nil
}

func (e *APIEngine) Save(ctx context.Context, ref, archivePath string) error {
	rc, err := e.cli.ImageSave(ctx, []string{ref})
	if err != nil {
		return apiError("docker save", err)
	}
	defer rc.Close()

	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return apiError("docker save", err)
	}
	return f.Close()
}

func (e *APIEngine) Load(ctx context.Context, archivePath string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	resp, err := e.cli.ImageLoad(ctx, f, client.ImageLoadWithQuiet(true))
	if err != nil {
		return nil, apiError("docker load", err)
	}
	defer resp.Body.Close()

	output, err := readLoadOutput(resp.Body, resp.JSON)
	if err != nil {
		return nil, apiError("docker load", err)
	}
	return ParseLoadReport(output)
}

func (e *APIEngine) Tag(ctx context.Context, source, target string) error {
	if err := e.cli.ImageTag(ctx, source, target); err != nil {
		return apiError("docker tag", err)
	}
	return nil
}

func (e *APIEngine) Push(ctx context.Context, ref string) error {
	rc, err := e.cli.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: e.authFor(ref)})
	if err != nil {
		return apiError("docker push", err)
	}
	defer rc.Close()
	if err := jsonmessage.DisplayJSONMessagesStream(rc, io.Discard, 0, false, nil); err != nil {
		return apiError("docker push", err)
	}
	return nil
}

// authFor 返回镜像所在仓库的认证头，未登录的仓库使用空凭据。
func (e *APIEngine) authFor(ref string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if r, err := name.ParseReference(ref, name.WeakValidation); err == nil {
		if v, ok := e.auth[r.Context().RegistryStr()]; ok {
			return v
		}
	}
	anonymous, _ := registry.EncodeAuthConfig(registry.AuthConfig{})
	return anonymous
}

func registryHost(addr string) string {
	addr = strings.TrimPrefix(strings.TrimPrefix(addr, "https://"), "http://")
	addr = strings.TrimRight(addr, "/")
	if r, err := name.NewRegistry(addr, name.WeakValidation); err == nil {
		return r.RegistryStr()
	}
	return addr
}

// readLoadOutput 把 ImageLoad 的响应还原为 docker load 的文本输出。
func readLoadOutput(r io.Reader, isJSON bool) (string, error) {
	if !isJSON {
		b, err := io.ReadAll(r)
		return string(b), err
	}
	var out strings.Builder
	dec := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return out.String(), nil
			}
			return "", err
		}
		if msg.Error != nil {
			return "", msg.Error
		}
		out.WriteString(msg.Stream)
	}
}

func apiError(step string, err error) error {
	return &domain.CommandError{Command: step, Err: err}
}
