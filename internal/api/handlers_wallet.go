package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wallet-sync/internal/service"
	"github.com/wallet-sync/internal/types"
)

// handleAddWallet handles POST /api/wallets - register a wallet for
// tracking. An existing (address, chain) pair is a 409 conflict.
func (s *Server) handleAddWallet(w http.ResponseWriter, r *http.Request) {
	var req service.AddWalletInput
	if err := parseJSONBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body")
		return
	}

	result, err := s.walletService.AddWallet(r.Context(), &req)
	if err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"address": req.Address,
			"chain":   req.Chain,
		}).Warn("AddWallet failed")
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// handleGetWallet handles GET /api/wallets/{chain}/{address} - valued
// wallet with one page of its transactions.
func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chain := types.ChainID(vars["chain"])
	address := vars["address"]

	if !types.IsSupportedChain(chain) {
		respondErrorCode(w, http.StatusBadRequest, "INVALID_INPUT", "Unsupported chain: "+string(chain))
		return
	}

	result, err := s.walletService.GetWallet(r.Context(), chain, address, pageParam(r))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleListWallets handles GET /api/wallets/{chain} - valued wallets on
// one chain, paged.
func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chain := types.ChainID(vars["chain"])

	page := pageParam(r)
	wallets, total, err := s.walletService.ListWallets(r.Context(), chain, page)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"wallets":    wallets,
		"page":       page,
		"totalCount": total,
	})
}

// pageParam parses the page query parameter, defaulting to 1.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
