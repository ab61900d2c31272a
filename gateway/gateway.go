package gateway

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"poolvault/native/vault"
)

// Gateway is the read-only HTTP surface over the vault engine: pool and user
// balances, fee totals, health and metrics. All mutation goes through the
// engine API directly; nothing here writes.
type Gateway struct {
	engine *vault.Engine
}

// New builds a gateway bound to the engine.
func New(engine *vault.Engine) *Gateway {
	return &Gateway{engine: engine}
}

// Router assembles the chi route tree.
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/pools/{poolID}", g.handlePool)
		r.Get("/pools/{poolID}/tokens", g.handlePoolTokens)
		r.Get("/pools/{poolID}/balances/{token}", g.handlePoolBalance)
		r.Get("/users/{user}/balances/{token}", g.handleUserBalance)
		r.Get("/fees/{token}", g.handleCollectedFees)
	})

	return r
}

func parsePoolID(raw string) (vault.PoolID, error) {
	decoded, err := hex.DecodeString(raw)
	if err != nil || len(decoded) != 32 {
		return vault.PoolID{}, vault.ErrInvalidPoolID
	}
	var word [32]byte
	copy(word[:], decoded)
	return vault.DecodePoolID(word)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch err {
	case vault.ErrPoolNotRegistered:
		return http.StatusNotFound
	case vault.ErrInvalidPoolID:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (g *Gateway) handlePool(w http.ResponseWriter, r *http.Request) {
	id, err := parsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pool, err := g.engine.GetPool(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"poolId":     pool.ID.String(),
		"controller": pool.Controller.Hex(),
		"strategy":   uint16(pool.Strategy),
		"index":      pool.ID.Index,
	})
}

func (g *Gateway) handlePoolTokens(w http.ResponseWriter, r *http.Request) {
	id, err := parsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tokens, err := g.engine.PoolTokens(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	hexed := make([]string, len(tokens))
	for i, token := range tokens {
		hexed[i] = token.Hex()
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": hexed})
}

func (g *Gateway) handlePoolBalance(w http.ResponseWriter, r *http.Request) {
	id, err := parsePoolID(chi.URLParam(r, "poolID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token := common.HexToAddress(chi.URLParam(r, "token"))
	balance, err := g.engine.GetPoolBalance(id, token)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"cash":    balance.Cash().String(),
		"managed": balance.Managed().String(),
		"total":   balance.Total().String(),
	})
}

func (g *Gateway) handleUserBalance(w http.ResponseWriter, r *http.Request) {
	user := common.HexToAddress(chi.URLParam(r, "user"))
	token := common.HexToAddress(chi.URLParam(r, "token"))
	balance, err := g.engine.UserBalanceOf(user, token)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

func (g *Gateway) handleCollectedFees(w http.ResponseWriter, r *http.Request) {
	token := common.HexToAddress(chi.URLParam(r, "token"))
	collected, err := g.engine.CollectedFees(token)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"collected": collected.String()})
}
