package http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/chiwei-platform/app-bundler/internal/domain"
	"github.com/chiwei-platform/app-bundler/internal/service"
)

type BundleHandler struct {
	export   *service.ExportService
	redeploy *service.RedeployService
}

func NewBundleHandler(export *service.ExportService, redeploy *service.RedeployService) *BundleHandler {
	return &BundleHandler{export: export, redeploy: redeploy}
}

type exportResponse struct {
	Message string `json:"message"`
	Path    string `json:"path"`
	URL     string `json:"url"`
}

type deployResponse struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

func (h *BundleHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req service.ExportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.AppName = r.URL.Query().Get("appname")
	req.Namespace = r.URL.Query().Get("namespace")

	res, err := h.export.Export(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{
		Message: "Application exported successfully",
		Path:    res.Path,
		URL:     res.URL,
	})
}

func (h *BundleHandler) Download(w http.ResponseWriter, r *http.Request) {
	appName := r.URL.Query().Get("appname")
	namespace := r.URL.Query().Get("namespace")

	zw := &zipResponseWriter{w: w, filename: appName + ".zip"}
	err := h.redeploy.Download(r.Context(), namespace, appName, zw)
	if err == nil {
		return
	}
	if !zw.started {
		writeError(w, err)
		return
	}
	// 响应头已发出，只能中断连接
	slog.Error("download interrupted", "namespace", namespace, "app", appName, "error", err)
	panic(http.ErrAbortHandler)
}

// zipResponseWriter 在第一次写入时才发出 zip 响应头，之前的错误仍可返回 JSON。
type zipResponseWriter struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (z *zipResponseWriter) Write(p []byte) (int, error) {
	if !z.started {
		z.started = true
		z.w.Header().Set("Content-Type", "application/zip")
		z.w.Header().Set("Content-Disposition", "attachment; filename="+z.filename)
		z.w.WriteHeader(http.StatusOK)
	}
	return z.w.Write(p)
}

func (h *BundleHandler) Upload(w http.ResponseWriter, r *http.Request) {
	file, err := filePart(r, "file")
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.redeploy.Upload(r.Context(), file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deployResponse{Message: "Application deployed successfully", URL: res.URL})
}

func (h *BundleHandler) DeployWithImage(w http.ResponseWriter, r *http.Request) {
	var req service.RedeployRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.Namespace = r.URL.Query().Get("namespace")
	req.AppName = r.URL.Query().Get("appname")

	res, err := h.redeploy.Redeploy(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deployResponse{Message: "Application deployed successfully", URL: res.URL})
}

// filePart 流式读取 multipart 请求，返回名为 field 的文件部分，不落盘缓冲整个请求。
func filePart(r *http.Request, field string) (io.Reader, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errNoFilePart
	}
	for {
		part, err := mr.NextPart()
		// 正常结束时返回未包装的 io.EOF，截断的请求体返回包装后的错误
		if err == io.EOF {
			return nil, errNoFilePart
		}
		if err != nil {
			return nil, malformedBody("multipart body", err)
		}
		if part.FormName() != field {
			_ = part.Close()
			continue
		}
		if part.FileName() == "" {
			return nil, errNoFileSelected
		}
		return part, nil
	}
}

var (
	errNoFilePart     = fmt.Errorf("%w: no file part in the request", domain.ErrInvalidInput)
	errNoFileSelected = fmt.Errorf("%w: no file selected for uploading", domain.ErrInvalidInput)
)
