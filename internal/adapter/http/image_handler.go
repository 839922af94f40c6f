package http

import (
	"errors"
	"net/http"

	"github.com/chiwei-platform/app-bundler/internal/service"
)

// 超出的部分由 mime/multipart 写入临时文件。
const multipartMemory = 32 << 20

type ImageHandler struct {
	svc *service.ImageService
}

func NewImageHandler(svc *service.ImageService) *ImageHandler {
	return &ImageHandler{svc: svc}
}

func (h *ImageHandler) LoadAndPush(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, malformedBody("multipart body", err))
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	req := service.LoadAndPushRequest{
		ImageName: r.FormValue("image_name"),
		Tag:       r.FormValue("tag"),
		Namespace: r.FormValue("namespace"),
	}
	if file, _, err := r.FormFile("image_file"); err == nil {
		defer file.Close()
		req.Archive = file
	}

	res, err := h.svc.LoadAndPush(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
