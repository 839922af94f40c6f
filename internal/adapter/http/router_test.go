package http

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chiwei-platform/app-bundler/internal/adapter/storage"
	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/port"
	"github.com/chiwei-platform/app-bundler/internal/service"
	"github.com/spf13/afero"
)

type fakeEngine struct {
	pushed []string
	loaded []string
}

func (e *fakeEngine) Login(context.Context, port.RegistryCredentials) error { return nil }
func (e *fakeEngine) Pull(context.Context, string) error                   { return nil }
func (e *fakeEngine) Save(context.Context, string, string) error           { return nil }
func (e *fakeEngine) Load(context.Context, string) ([]string, error)       { return e.loaded, nil }
func (e *fakeEngine) Tag(context.Context, string, string) error            { return nil }
func (e *fakeEngine) Push(_ context.Context, image string) error {
	e.pushed = append(e.pushed, image)
	return nil
}

type fakeCluster struct {
	applied []byte
	pingErr error
}

func (c *fakeCluster) EnsureNamespace(context.Context, string) error { return domain.ErrNamespaceExists }
func (c *fakeCluster) Apply(_ context.Context, _ string, m []byte) error {
	c.applied = m
	return nil
}
func (c *fakeCluster) Snapshot(context.Context) (domain.ResourceSnapshot, error) {
	return domain.ResourceSnapshot{}, nil
}
func (c *fakeCluster) ListWorkloads(context.Context) ([]domain.Workload, error) { return nil, nil }
func (c *fakeCluster) Ping(context.Context) error                               { return c.pingErr }

const routerManifest = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: demo
spec:
  template:
    spec:
      containers:
        - name: web
          image: myapp
---
apiVersion: v1
kind: Service
metadata:
  name: demo
spec:
  type: NodePort
  ports:
    - port: 8080
`

type testServer struct {
	handler http.Handler
	engine  *fakeEngine
	cluster *fakeCluster
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.NewStore(afero.NewMemMapFs(), "/data/bundles")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	engine := &fakeEngine{loaded: []string{"busybox:latest"}}
	cluster := &fakeCluster{}
	target := port.RegistryCredentials{Registry: "sealos.hub:5000"}
	locks := service.NewBundleLocks()
	history := service.NewOperationService(nil, nil)

	exportSvc := service.NewExportService(store, engine, target, "http://example.com:5002", locks, history)
	redeploySvc := service.NewRedeployService(store, service.NewImageTransfer(engine, target), cluster,
		service.RedeployConfig{Placeholder: "CLUSTER_DOMAIN", ClusterDomain: "example.com", ConsoleURL: "http://example.com:32293"},
		locks, history)
	imageSvc := service.NewImageService(store, engine, target, history)

	h := NewRouter(
		NewBundleHandler(exportSvc, redeploySvc),
		NewImageHandler(imageSvc),
		NewOperationHandler(history),
		NewHealthHandler(cluster),
		RouterConfig{MaxUploadBytes: 1 << 20},
	)
	return &testServer{handler: h, engine: engine, cluster: cluster}
}

func (s *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
	}
	return rec, body
}

func jsonRequest(method, target string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func checkStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("got status %d, want %d: %s", rec.Code, want, rec.Body.String())
	}
}

func checkField(t *testing.T, body map[string]any, key, want string) {
	t.Helper()
	got, _ := body[key].(string)
	if !strings.Contains(got, want) {
		t.Errorf("%s = %q, want it to contain %q", key, got, want)
	}
}

func TestRouter_ExportDownloadDeploy(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, jsonRequest(http.MethodPost, "/api/exportApp?appname=demo&namespace=ns1", map[string]any{
		"yaml":   routerManifest,
		"images": []map[string]string{{"name": "myapp"}},
	}))
	checkStatus(t, rec, http.StatusOK)
	if body["message"] != "Application exported successfully" {
		t.Errorf("message = %v", body["message"])
	}
	if body["path"] != "/data/bundles/ns1/demo" {
		t.Errorf("path = %v", body["path"])
	}
	checkField(t, body, "url", "/api/downloadApp?appname=demo&namespace=ns1")

	rec, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/api/downloadApp?appname=demo&namespace=ns1", nil))
	checkStatus(t, rec, http.StatusOK)
	if got := rec.Header().Get("Content-Type"); got != "application/zip" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=demo.zip" {
		t.Errorf("Content-Disposition = %q", got)
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("invalid zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Errorf("zip entries = %d, want 2", len(zr.File))
	}

	rec, body = s.do(t, jsonRequest(http.MethodPost, "/api/deployAppWithImage", map[string]any{
		"path":  "/data/bundles/ns1/demo",
		"ports": map[string]any{},
	}))
	checkStatus(t, rec, http.StatusBadRequest)
	checkField(t, body, "error", "external port for internal port 8080 is required")
	if s.cluster.applied != nil {
		t.Error("manifest applied despite port error")
	}

	rec, body = s.do(t, jsonRequest(http.MethodPost, "/api/deployAppWithImage", map[string]any{
		"path":  "/data/bundles/ns1/demo",
		"ports": map[string]any{"8080": "abc"},
	}))
	checkStatus(t, rec, http.StatusBadRequest)
	checkField(t, body, "error", "should be an integer")

	rec, body = s.do(t, jsonRequest(http.MethodPost, "/api/deployAppWithImage", map[string]any{
		"path":  "/data/bundles/ns1/demo",
		"ports": map[string]any{"8080": 30080},
	}))
	checkStatus(t, rec, http.StatusOK)
	if body["message"] != "Application deployed successfully" {
		t.Errorf("message = %v", body["message"])
	}
	checkField(t, body, "url", "namespace=ns1")
	checkField(t, body, "url", "name=demo")
	applied := string(s.cluster.applied)
	for _, want := range []string{"nodePort: 30080", "image: library/myapp:latest"} {
		if !strings.Contains(applied, want) {
			t.Errorf("applied manifest missing %q:\n%s", want, applied)
		}
	}
	if len(s.engine.pushed) != 1 || s.engine.pushed[0] != "sealos.hub:5000/library/myapp:latest" {
		t.Errorf("pushed = %v", s.engine.pushed)
	}
}

func TestRouter_ValidationErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantError  string
	}{
		{
			name:       "export without yaml",
			req:        jsonRequest(http.MethodPost, "/api/exportApp?appname=demo&namespace=ns1", map[string]any{"images": []any{}}),
			wantStatus: http.StatusBadRequest,
			wantError:  "yaml is required",
		},
		{
			name: "export flag-like image",
			req: jsonRequest(http.MethodPost, "/api/exportApp?appname=demo&namespace=ns1", map[string]any{
				"yaml":   routerManifest,
				"images": []map[string]string{{"name": "--help"}},
			}),
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid image name",
		},
		{
			name:       "deploy without path",
			req:        jsonRequest(http.MethodPost, "/api/deployAppWithImage", map[string]any{"ports": map[string]any{}}),
			wantStatus: http.StatusBadRequest,
			wantError:  "path is required",
		},
		{
			name:       "download missing bundle",
			req:        httptest.NewRequest(http.MethodGet, "/api/downloadApp?appname=none&namespace=ns1", nil),
			wantStatus: http.StatusNotFound,
			wantError:  "not found",
		},
		{
			name:       "download without appname",
			req:        httptest.NewRequest(http.MethodGet, "/api/downloadApp?namespace=ns1", nil),
			wantStatus: http.StatusBadRequest,
			wantError:  "appname is required",
		},
		{
			name:       "upload without multipart",
			req:        httptest.NewRequest(http.MethodPost, "/api/uploadApp", strings.NewReader("x")),
			wantStatus: http.StatusBadRequest,
			wantError:  "no file part in the request",
		},
		{
			name:       "upload with truncated multipart",
			req:        truncatedMultipart("/api/uploadApp"),
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid multipart body",
		},
		{
			name:       "load and push with truncated multipart",
			req:        truncatedMultipart("/api/loadAndPushImage"),
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid multipart body",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(t, tt.req)
			checkStatus(t, rec, tt.wantStatus)
			checkField(t, body, "error", tt.wantError)
		})
	}
	if len(s.engine.pushed) != 0 {
		t.Errorf("pushed = %v", s.engine.pushed)
	}
}

// truncatedMultipart 声明了 boundary，但请求体没有结束分隔符。
func truncatedMultipart(target string) *http.Request {
	body := "--XYZ\r\nContent-Disposition: form-data; name=\"image_name\"\r\n\r\nbusybox"
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=XYZ")
	return req
}

func multipartRequest(t *testing.T, target string, fields map[string]string, fileField, fileName string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRouter_UploadApp(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, multipartRequest(t, "/api/uploadApp", nil, "file", "", []byte("x")))
	checkStatus(t, rec, http.StatusBadRequest)
	checkField(t, body, "error", "no file selected for uploading")

	rec, body = s.do(t, multipartRequest(t, "/api/uploadApp", nil, "file", "bundle.zip", []byte("not a zip")))
	checkStatus(t, rec, http.StatusBadRequest)
	checkField(t, body, "error", "failed to extract zip file")

	var zbuf bytes.Buffer
	zw := zip.NewWriter(&zbuf)
	for name, content := range map[string]string{
		domain.ManifestFile: strings.Replace(routerManifest, "    - port: 8080\n", "    - port: 8080\n      nodePort: 30090\n", 1),
		domain.MetadataFile: `{"name":"demo","namespace":"ns1","images":[{"name":"myapp","path":"myapp.tar"}],"nodeports":[]}`,
		"myapp.tar":         "layers",
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	rec, body = s.do(t, multipartRequest(t, "/api/uploadApp", nil, "file", "bundle.zip", zbuf.Bytes()))
	checkStatus(t, rec, http.StatusOK)
	if body["message"] != "Application deployed successfully" {
		t.Errorf("message = %v", body["message"])
	}
	if !strings.Contains(string(s.cluster.applied), "nodePort: 30090") {
		t.Errorf("declared nodePort lost:\n%s", s.cluster.applied)
	}
}

func TestRouter_LoadAndPushImage(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, multipartRequest(t, "/api/loadAndPushImage",
		map[string]string{"image_name": "busybox", "tag": "v1", "namespace": "team-a"},
		"image_file", "busybox.tar", []byte("tarball")))
	checkStatus(t, rec, http.StatusOK)
	if body["message"] != "Image sealos.hub:5000/team-a/busybox:v1 loaded, tagged, and pushed successfully" {
		t.Errorf("message = %v", body["message"])
	}

	rec, body = s.do(t, multipartRequest(t, "/api/loadAndPushImage",
		map[string]string{"image_name": "busybox", "tag": "v1", "namespace": "team-a"}, "", "", nil))
	checkStatus(t, rec, http.StatusBadRequest)
	checkField(t, body, "error", "image_file is required")

	rec, body = s.do(t, multipartRequest(t, "/api/loadAndPushImage",
		map[string]string{"image_name": "Busy Box", "tag": "v1", "namespace": "team-a"},
		"image_file", "busybox.tar", []byte("tarball")))
	checkStatus(t, rec, http.StatusBadRequest)
	checkField(t, body, "error", "invalid image name")

	if len(s.engine.pushed) != 1 {
		t.Errorf("pushed = %v", s.engine.pushed)
	}
}

func TestRouter_HealthAndOperations(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	checkStatus(t, rec, http.StatusOK)

	rec, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	checkStatus(t, rec, http.StatusOK)

	s.cluster.pingErr = errors.New("connection refused")
	rec, body := s.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	checkStatus(t, rec, http.StatusServiceUnavailable)
	checkField(t, body, "error", "connection refused")

	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/operations?namespace=ns1", nil))
	checkStatus(t, rec, http.StatusOK)
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}

	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/operations?limit=-1", nil))
	checkStatus(t, rec, http.StatusBadRequest)
}
