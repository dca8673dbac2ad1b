package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"codebin/cfg"
	"codebin/pkg/domain"
	"codebin/svc/svc"
	"codebin/svc/util"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"
)

const (
	// A content byte can take up to six bytes on the wire (\u00XX).
	maxEscapeFactor  = 6
	envelopeOverhead = 64 * 1024
)

type Hdl struct {
	paste *svc.Paste
	cfg   *cfg.Cfg
}

type SaveReq struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Pin     string `json:"pin"`
}

type SaveResp struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type GetReq struct {
	ID  string `json:"id"`
	Pin string `json:"pin"`
}

type GetResp struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Hdl) Save(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	var req SaveReq
	if err := h.decode(w, r, &req); err != nil {
		log.Warn().Err(err).Msg("invalid save request")
		writeErr(w, r, domain.ErrInvalidRequest)
		return
	}
	content := strings.TrimSpace(req.Content)
	if int64(len(content)) > h.cfg.MaxContentSize {
		log.Warn().Int("content_length", len(content)).Msg("content exceeds maximum size")
		writeErr(w, r, domain.ErrInvalidRequest)
		return
	}
	paste, err := h.paste.Save(r.Context(), domain.SaveParams{
		Title:   strings.TrimSpace(req.Title),
		Content: content,
		Pin:     strings.TrimSpace(req.Pin),
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	log.Info().
		Str("paste_id", paste.ID).
		Bool("pin_protected", strings.TrimSpace(req.Pin) != "").
		Msg("paste saved")
	writeJSON(w, http.StatusOK, SaveResp{ID: paste.ID, URL: h.cfg.PasteURL(paste.ID)})
}

func (h *Hdl) Get(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	var req GetReq
	if err := h.decode(w, r, &req); err != nil {
		log.Warn().Err(err).Msg("invalid get request")
		writeErr(w, r, domain.ErrInvalidRequest)
		return
	}
	id := strings.TrimSpace(req.ID)
	paste, err := h.paste.Get(r.Context(), id, strings.TrimSpace(req.Pin))
	if err != nil {
		if errors.Is(err, domain.ErrPinRejected) {
			log.Warn().Str("paste_id", id).Msg("pin rejected")
		}
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GetResp{
		ID:        paste.ID,
		Title:     paste.Title,
		Content:   paste.Content,
		CreatedAt: paste.CreatedAt,
	})
}

// decode reads a JSON body sized for fully escaped content of the configured size;
// the content limit itself is checked after decoding. An empty body decodes to the
// zero request so that missing fields surface as validation errors.
func (h *Hdl) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxEscapeFactor*h.cfg.MaxContentSize+envelopeOverhead)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		return errors.Wrap(err, "decode body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.Warn().Err(err).Msg("failed to write response")
	}
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.Status(err)
	if status >= http.StatusInternalServerError {
		util.Error().
			Err(err).
			Str("request_id", util.GetRequestID(r.Context())).
			Str("kind", domain.KindOf(err).String()).
			Msg("request failed")
	}
	writeJSON(w, status, domain.ToResp(err))
}
