package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/chiwei-platform/app-bundler/internal/adapter/storage"
	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
	"github.com/spf13/afero"
)

const testRoot = "/data/bundles"

// --- shared stubs ---

type stubEngine struct {
	mu     sync.Mutex
	calls  []string
	loaded []string
	// failOn 以 "<step> <arg>" 前缀匹配，命中时返回错误。
	failOn string
}

func (e *stubEngine) record(call string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
	if e.failOn != "" && strings.HasPrefix(call, e.failOn) {
		return &domain.CommandError{Command: call, ExitCode: 1, Stderr: "boom"}
	}
	return nil
}

func (e *stubEngine) Login(_ context.Context, c port.RegistryCredentials) error {
	return e.record("login " + c.Registry)
}
func (e *stubEngine) Pull(_ context.Context, image string) error { return e.record("pull " + image) }
func (e *stubEngine) Save(_ context.Context, image, path string) error {
	return e.record("save " + image + " " + path)
}
func (e *stubEngine) Load(_ context.Context, path string) ([]string, error) {
	if err := e.record("load " + path); err != nil {
		return nil, err
	}
	return e.loaded, nil
}
func (e *stubEngine) Tag(_ context.Context, src, dst string) error {
	return e.record("tag " + src + " " + dst)
}
func (e *stubEngine) Push(_ context.Context, image string) error { return e.record("push " + image) }

type stubCluster struct {
	namespaces []string
	nsErr      error
	applyErr   error
	appliedNS  string
	applied    []byte
}

func (c *stubCluster) EnsureNamespace(_ context.Context, ns string) error {
	c.namespaces = append(c.namespaces, ns)
	return c.nsErr
}

func (c *stubCluster) Apply(_ context.Context, ns string, manifest []byte) error {
	c.appliedNS = ns
	c.applied = manifest
	return c.applyErr
}

type stubOperationRepo struct {
	saved []*domain.Operation
	err   error
}

func (r *stubOperationRepo) Save(_ context.Context, op *domain.Operation) error {
	r.saved = append(r.saved, op)
	return r.err
}

func (r *stubOperationRepo) FindAll(_ context.Context, _ port.OperationFilter) ([]*domain.Operation, error) {
	return r.saved, nil
}

func newMemStore(t *testing.T) (*storage.Store, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	s, err := storage.NewStore(fsys, testRoot)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, fsys
}

func hasCall(calls []string, want string) bool {
	for _, c := range calls {
		if c == want {
			return true
		}
	}
	return false
}

func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

const demoManifest = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: demo
  labels:
    app: demo
    cloud.sealos.io/app-deploy-manager: demo
spec:
  selector:
    matchLabels:
      app: demo
  template:
    metadata:
      labels:
        app: demo
    spec:
      containers:
        - name: web
          image: myapp
          env:
            - name: HOST
              value: web.CLUSTER_DOMAIN
---
apiVersion: v1
kind: Service
metadata:
  name: demo
spec:
  type: NodePort
  selector:
    app: demo
  ports:
    - port: 8080
`
