// Package network administers Source rows (remote and local media origins),
// grounded on the teacher's connection-settings handlers, rewritten against
// the new Store/source.Pool/CredentialCipher stack.
package network

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JustinTDCT/mediaserver/internal/httputil"
	"github.com/JustinTDCT/mediaserver/internal/models"
	"github.com/JustinTDCT/mediaserver/internal/source"
	"github.com/JustinTDCT/mediaserver/internal/store"
)

const defaultDiscoverTimeout = 3 * time.Second

type Handlers struct {
	store  *store.Store
	pool   *source.Pool
	cipher *source.CredentialCipher
}

func NewHandlers(st *store.Store, pool *source.Pool, cipher *source.CredentialCipher) *Handlers {
	return &Handlers{store: st, pool: pool, cipher: cipher}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/sources", h.List)
	r.Post("/sources", h.Create)
	r.Put("/sources/{id}", h.Update)
	r.Delete("/sources/{id}", h.Delete)
	r.Post("/sources/{id}/test", h.Test)
	r.Get("/sources/{id}/browse", h.Browse)
	r.Post("/discover", h.Discover)
}

type sourceRequest struct {
	Name     string  `json:"name"`
	Protocol string  `json:"protocol"`
	Host     string  `json:"host"`
	Port     *int    `json:"port,omitempty"`
	Username string  `json:"username,omitempty"`
	Password string  `json:"password,omitempty"`
	BasePath string  `json:"basePath,omitempty"`
	Domain   *string `json:"domain,omitempty"`
	Enabled  *bool   `json:"enabled,omitempty"`
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.ListSources()
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"sources": sources})
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := httputil.ReadJSON(r, &req); err != nil || req.Name == "" || req.Protocol == "" {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "name and protocol are required")
		return
	}

	enc, err := h.cipher.Encrypt(source.Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	src := &models.Source{
		Name:                req.Name,
		Protocol:            models.ProtocolKind(req.Protocol),
		Host:                req.Host,
		Port:                req.Port,
		EncryptedCredential: enc,
		Domain:              req.Domain,
		Enabled:             true,
	}
	if req.Username != "" {
		src.Username = &req.Username
	}
	if req.BasePath != "" {
		src.BasePath = &req.BasePath
	}
	if req.Enabled != nil {
		src.Enabled = *req.Enabled
	}

	if err := h.store.CreateSource(src); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, src)
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	existing, err := h.store.GetSource(id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	var req sourceRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "invalid request body")
		return
	}

	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Protocol != "" {
		existing.Protocol = models.ProtocolKind(req.Protocol)
	}
	if req.Host != "" {
		existing.Host = req.Host
	}
	if req.Port != nil {
		existing.Port = req.Port
	}
	if req.BasePath != "" {
		existing.BasePath = &req.BasePath
	}
	if req.Domain != nil {
		existing.Domain = req.Domain
	}
	if req.Enabled != nil {
		existing.Enabled = *req.Enabled
	}
	if req.Username != "" || req.Password != "" {
		enc, err := h.cipher.Encrypt(source.Credentials{Username: req.Username, Password: req.Password})
		if err != nil {
			httputil.WriteAppError(w, err)
			return
		}
		existing.EncryptedCredential = enc
		if req.Username != "" {
			existing.Username = &req.Username
		}
	}

	if err := h.store.UpdateSource(existing); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	// Credentials or host may have changed; drop any pooled connections so
	// the next Acquire dials fresh ones against the updated settings.
	h.pool.Evict(id)
	httputil.WriteJSON(w, http.StatusOK, existing)
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteSource(id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	h.pool.Evict(id)
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handlers) Test(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	client, err := h.loadClient(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	defer client.Disconnect()

	if err := client.Connect(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"ok": false, "message": err.Error()})
		return
	}
	ok2, msg := client.TestConnection(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"ok": ok2, "message": msg})
}

func (h *Handlers) Browse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}

	client, err := h.pool.Acquire(r.Context(), id, path)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	entries, err := client.List(r.Context(), path)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (h *Handlers) Discover(w http.ResponseWriter, r *http.Request) {
	timeout := defaultDiscoverTimeout
	if v := r.URL.Query().Get("timeout"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	devices, err := source.Discover(r.Context(), timeout)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

// loadClient builds a standalone ProtocolClient for a Test call, bypassing
// the Pool so a failing credential check never leaves a bad connection
// pinned to the source's rendezvous ring.
func (h *Handlers) loadClient(ctx context.Context, id int64) (source.ProtocolClient, error) {
	src, err := h.store.GetSource(id)
	if err != nil {
		return nil, err
	}
	creds, err := h.cipher.Decrypt(src.EncryptedCredential)
	if err != nil {
		return nil, err
	}
	return source.BuildClient(src, creds)
}

func pathInt64(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "invalid id")
		return 0, false
	}
	return id, true
}
