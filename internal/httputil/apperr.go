package httputil

import (
	"net/http"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
)

// WriteAppError writes err using apperr's taxonomy-to-status mapping.
func WriteAppError(w http.ResponseWriter, err error) {
	WriteError(w, apperr.Status(err), apperr.Code(err), apperr.Message(err))
}
