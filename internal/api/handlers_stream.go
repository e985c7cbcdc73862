package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/service"
	"github.com/wallet-sync/internal/types"
)

// handleStreamPush handles POST /streams/{chain} - a live notification
// delivery. The x-signature header must carry the hex HMAC-SHA256 of the
// raw body under the shared secret; a mismatch is rejected before any
// processing happens.
func (s *Server) handleStreamPush(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chain := types.ChainID(vars["chain"])

	if !types.IsSupportedChain(chain) {
		respondErrorCode(w, http.StatusBadRequest, "INVALID_INPUT", "Unsupported chain: "+string(chain))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondErrorCode(w, http.StatusBadRequest, "INVALID_INPUT", "Failed to read body")
		return
	}
	defer r.Body.Close()

	if !validSignature(body, r.Header.Get("x-signature"), s.config.WebhookSecret) {
		s.logger.WithField("chain", chain).Warn("Rejected webhook delivery with bad signature")
		respondError(w, errors.NewUnauthorizedError("invalid webhook signature"))
		return
	}

	result, err := s.ingestService.Ingest(r.Context(), chain, body)
	if err != nil {
		s.logger.WithError(err).WithField("chain", chain).Warn("Webhook ingestion failed")
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// validSignature compares the delivery signature against the HMAC-SHA256
// of the raw body in constant time.
func validSignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}

// handleCreateStream handles POST /api/streams - register a webhook
// subscription.
func (s *Server) handleCreateStream(w http.ResponseWriter, r *http.Request) {
	var req service.CreateStreamInput
	if err := parseJSONBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
		return
	}

	stream, err := s.streamService.CreateStream(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, stream)
}

// handleListStreams handles GET /api/streams.
func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	streams, err := s.streamService.ListStreams(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"streams": streams,
	})
}

// handleDeleteStream handles DELETE /api/streams/{id}.
func (s *Server) handleDeleteStream(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	if err := s.streamService.DeleteStream(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
		"id":     id,
	})
}
