package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/harrylevesque/photobooth/internal/booth"
	"github.com/harrylevesque/photobooth/internal/compose"
	"github.com/harrylevesque/photobooth/internal/files"
	"github.com/harrylevesque/photobooth/internal/models"
	"github.com/harrylevesque/photobooth/internal/utils"
)

// Multipart field names.
const (
	overlaysField = "overlays"
	photoField    = "photo"
	frameField    = "frame"
)

// multipartMemory is how much of a form ParseMultipartForm keeps in memory
// before spilling file parts to disk.
const multipartMemory = 32 << 20

// Health reports liveness.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, models.Status{OK: true})
}

func (s *Server) NotFound(w http.ResponseWriter, r *http.Request) {
	utils.WriteError(w, utils.New(http.StatusNotFound, "not found"))
}

// ListOverlays returns {"overlays": [...]}, newest first.
func (s *Server) ListOverlays(w http.ResponseWriter, r *http.Request) {
	overlays, err := s.booth.ListOverlays(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.OverlayList{Overlays: overlays})
}

// AddOverlays accepts up to booth.MaxOverlaysPerUpload files in the
// "overlays" field.
func (s *Server) AddOverlays(w http.ResponseWriter, r *http.Request) {
	// room for one file over the limit so TooMany is reported instead of a size error
	r.Body = http.MaxBytesReader(w, r.Body, s.limits.OverlayBytes*(booth.MaxOverlaysPerUpload+1)+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.fail(w, r, badForm(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[overlaysField]
	if len(headers) > booth.MaxOverlaysPerUpload {
		s.fail(w, r, booth.ErrTooMany)
		return
	}

	uploads := make([]booth.Upload, 0, len(headers))
	for _, fh := range headers {
		up, err := readPart(fh, s.limits.OverlayBytes)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		uploads = append(uploads, up)
	}

	added, err := s.booth.AddOverlays(r.Context(), uploads)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.UploadResult{Uploaded: added})
}

// RemoveOverlay deletes /api/overlays/{name}.
func (s *Server) RemoveOverlay(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.booth.RemoveOverlay(r.Context(), name); err != nil {
		s.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.Status{OK: true})
}

// SubmitPhoto stores a composited photo from the "photo" field and returns
// its address and QR code.
func (s *Server) SubmitPhoto(w http.ResponseWriter, r *http.Request) {
	up, ok := s.singleFile(w, r, photoField)
	if !ok {
		return
	}
	res, err := s.booth.SubmitPhoto(r.Context(), up)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

// Compose builds the photo on the server from a raw camera still in
// "frame", the overlay name in "overlay" and an optional "mirror" flag.
func (s *Server) Compose(w http.ResponseWriter, r *http.Request) {
	up, ok := s.singleFile(w, r, frameField)
	if !ok {
		return
	}
	mirror := false
	if v := r.FormValue("mirror"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.fail(w, r, utils.Wrap(http.StatusBadRequest, "mirror must be a boolean", err))
			return
		}
		mirror = b
	}
	frame, err := compose.DecodeSource(up.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.booth.ComposePhoto(r.Context(), frame, r.FormValue("overlay"), mirror)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) singleFile(w http.ResponseWriter, r *http.Request, field string) (booth.Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.limits.PhotoBytes+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.fail(w, r, badForm(err))
		return booth.Upload{}, false
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		s.fail(w, r, utils.New(http.StatusBadRequest, fmt.Sprintf("missing %q file", field)))
		return booth.Upload{}, false
	}
	up, err := readPart(headers[0], s.limits.PhotoBytes)
	if err != nil {
		s.fail(w, r, err)
		return booth.Upload{}, false
	}
	return up, true
}

func readPart(fh *multipart.FileHeader, limit int64) (booth.Upload, error) {
	if fh.Size > limit {
		return booth.Upload{}, utils.New(http.StatusRequestEntityTooLarge, fmt.Sprintf("%s exceeds %d bytes", fh.Filename, limit))
	}
	f, err := fh.Open()
	if err != nil {
		return booth.Upload{}, err
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return booth.Upload{}, err
	}
	if int64(len(content)) > limit {
		return booth.Upload{}, utils.New(http.StatusRequestEntityTooLarge, fmt.Sprintf("%s exceeds %d bytes", fh.Filename, limit))
	}
	return booth.Upload{Filename: fh.Filename, Content: content}, nil
}

func badForm(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return utils.Wrap(http.StatusRequestEntityTooLarge, "request too large", err)
	}
	return utils.Wrap(http.StatusBadRequest, "expected multipart form data", err)
}

// ServeOverlay serves stored overlay bytes uncached. The ETag allows
// revalidation.
func (s *Server) ServeOverlay(w http.ResponseWriter, r *http.Request) {
	s.serveObject(w, r, s.booth.OverlayObject)
}

// ServePhoto serves stored photos uncached.
func (s *Server) ServePhoto(w http.ResponseWriter, r *http.Request) {
	s.serveObject(w, r, s.booth.PhotoObject)
}

func (s *Server) serveObject(w http.ResponseWriter, r *http.Request, get func(context.Context, string) (files.Object, error)) {
	obj, err := get(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("ETag", `"`+obj.Digest+`"`)
	http.ServeContent(w, r, obj.Name, obj.ModTime, bytes.NewReader(obj.Content))
}

// fail maps err to a status and writes it. Unexpected errors are logged and
// reported to Sentry.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	he := classify(err)
	if he.Code >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		captureException(r, err)
	} else {
		s.log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	utils.WriteError(w, he)
}
