package api

import (
	"errors"
	"net/http"

	"github.com/harrylevesque/photobooth/internal/auth"
	"github.com/harrylevesque/photobooth/internal/booth"
	"github.com/harrylevesque/photobooth/internal/compose"
	"github.com/harrylevesque/photobooth/internal/files"
	"github.com/harrylevesque/photobooth/internal/qr"
	"github.com/harrylevesque/photobooth/internal/utils"
)

// classify picks the status and client message for err. Compose errors
// come first since they wrap the store error that caused them.
func classify(err error) *utils.HTTPError {
	var he *utils.HTTPError
	if errors.As(err, &he) {
		return he
	}

	for _, m := range []struct {
		target  error
		code    int
		message string
	}{
		{auth.ErrUnauthorized, http.StatusUnauthorized, auth.UnauthorizedMessage},
		{booth.ErrTooMany, http.StatusBadRequest, booth.ErrTooMany.Error()},
		{booth.ErrNoUploads, http.StatusBadRequest, "no files uploaded"},
		{booth.ErrUnsupportedType, http.StatusUnsupportedMediaType, "only png, jpeg and webp images are accepted"},
		{compose.ErrInvalidSource, http.StatusUnprocessableEntity, "camera frame is not ready"},
		{compose.ErrOverlayUnavailable, http.StatusUnprocessableEntity, "overlay unavailable"},
		{files.ErrInvalidName, http.StatusBadRequest, "invalid name"},
		{files.ErrNotFound, http.StatusNotFound, "not found"},
		{qr.ErrEncodingFailed, http.StatusInternalServerError, "could not encode photo link"},
	} {
		if errors.Is(err, m.target) {
			return utils.Wrap(m.code, m.message, err)
		}
	}
	return utils.Wrap(http.StatusInternalServerError, "internal error", err)
}
