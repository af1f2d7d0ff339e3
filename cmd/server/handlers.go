package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"coinwatch/internal/auth"
	"coinwatch/internal/coinlist"
	"coinwatch/internal/domain"
	"coinwatch/internal/market"
	"coinwatch/internal/observability"
	"coinwatch/internal/portfolio"
	"coinwatch/internal/storage"
)

const (
	defaultPageSize  = 50
	defaultChartDays = 30
)

// apiServer adapts HTTP to the repositories and view-models. It owns no
// state of its own.
type apiServer struct {
	coins     *market.CoinRepository
	global    *market.GlobalRepository
	charts    *market.ChartRepository
	list      *coinlist.ViewModel
	portfolio *portfolio.ViewModel
	watcher   *auth.Watcher
	logger    *slog.Logger
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())

	mux.HandleFunc("GET /api/coins", s.handleListCoins)
	mux.HandleFunc("GET /api/coins/top", s.handleTopCoins)
	mux.HandleFunc("GET /api/coins/search", s.handleSearch)
	mux.HandleFunc("GET /api/coins/{id}/chart", s.handleChart)
	mux.HandleFunc("GET /api/global", s.handleGlobal)
	mux.HandleFunc("GET /api/prices", s.handlePrices)

	mux.HandleFunc("GET /api/list", s.handleListState)
	mux.HandleFunc("POST /api/list/load", s.handleListLoad)
	mux.HandleFunc("POST /api/list/load-more", s.handleListLoadMore)

	mux.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	mux.HandleFunc("POST /api/portfolio/assets", s.handleAddAsset)
	mux.HandleFunc("PUT /api/portfolio/assets/{id}", s.handleUpdateAsset)
	mux.HandleFunc("DELETE /api/portfolio/assets/{id}", s.handleRemoveAsset)
	mux.HandleFunc("DELETE /api/portfolio", s.handleClearPortfolio)
	mux.HandleFunc("POST /api/portfolio/refresh", s.handleForceRefresh)
	mux.HandleFunc("GET /api/portfolio/history", s.handleHistory)
	mux.HandleFunc("GET /api/portfolio/form", s.handleForm)
	mux.HandleFunc("POST /api/portfolio/form/add", s.handleOpenAddForm)
	mux.HandleFunc("POST /api/portfolio/form/edit/{id}", s.handleOpenEditForm)
	mux.HandleFunc("DELETE /api/portfolio/form", s.handleCloseForm)

	mux.HandleFunc("POST /api/session", s.handleSignIn)
	mux.HandleFunc("DELETE /api/session", s.handleSignOut)

	return mux
}

func (s *apiServer) handleListCoins(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", defaultPageSize)

	coins, err := s.coins.ListCoins(r.Context(), page, perPage)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, coins)
}

func (s *apiServer) handleTopCoins(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)

	coins, err := s.coins.TopCoins(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, coins)
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.list.SetSearchText(r.URL.Query().Get("q"))
	s.list.SetScope(parseScope(r.URL.Query().Get("scope")))

	coins, err := s.list.FilteredCoins(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, coins)
}

func (s *apiServer) handleChart(w http.ResponseWriter, r *http.Request) {
	coinID := r.PathValue("id")
	days := queryInt(r, "days", defaultChartDays)

	points, err := s.charts.GetChartData(r.Context(), coinID, days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, points)
}

func (s *apiServer) handleGlobal(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.global.GetGlobalData(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, snapshot)
}

func (s *apiServer) handlePrices(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		http.Error(w, "ids query parameter is required", http.StatusBadRequest)
		return
	}

	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	prices, err := s.coins.SimplePrices(r.Context(), ids)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, prices)
}

// listStateResponse is the JSON shape of the coin list screen state.
type listStateResponse struct {
	Kind    string        `json:"kind"`
	Message string        `json:"message,omitempty"`
	Coins   []domain.Coin `json:"coins,omitempty"`
}

func (s *apiServer) handleListState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, toListStateResponse(s.list.State()))
}

func (s *apiServer) handleListLoad(w http.ResponseWriter, r *http.Request) {
	s.list.Load(r.Context())
	s.writeJSON(w, toListStateResponse(s.list.State()))
}

func (s *apiServer) handleListLoadMore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AnchorID string `json:"anchor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	state := s.list.State()
	for _, c := range state.Coins {
		if c.ID == req.AnchorID {
			s.list.LoadMoreIfNeeded(r.Context(), c)
			break
		}
	}
	s.writeJSON(w, toListStateResponse(s.list.State()))
}

func toListStateResponse(st coinlist.State) listStateResponse {
	resp := listStateResponse{Coins: st.Coins, Message: st.Message}
	switch st.Kind {
	case coinlist.StateLoading:
		resp.Kind = "loading"
	case coinlist.StateError:
		resp.Kind = "error"
	case coinlist.StateEmpty:
		resp.Kind = "empty"
	case coinlist.StateContent:
		resp.Kind = "content"
	}
	return resp
}

// portfolioResponse is the JSON shape of the portfolio view.
type portfolioResponse struct {
	Holdings   []domain.UserAsset `json:"holdings"`
	TotalValue decimal.Decimal    `json:"total_value"`
}

func (s *apiServer) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, portfolioResponse{
		Holdings:   s.portfolio.Holdings(),
		TotalValue: s.portfolio.TotalValue(),
	})
}

func (s *apiServer) handleAddAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Coin   domain.Coin     `json:"coin"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Coin.ID == "" {
		http.Error(w, "coin.id is required", http.StatusBadRequest)
		return
	}

	if err := s.portfolio.AddAsset(r.Context(), req.Coin, req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *apiServer) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.portfolio.UpdateAsset(r.Context(), r.PathValue("id"), req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleRemoveAsset(w http.ResponseWriter, r *http.Request) {
	if err := s.portfolio.RemoveAsset(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleClearPortfolio(w http.ResponseWriter, r *http.Request) {
	if err := s.portfolio.ClearAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleForceRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.portfolio.ForceRefreshPrices(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, portfolioResponse{
		Holdings:   s.portfolio.Holdings(),
		TotalValue: s.portfolio.TotalValue(),
	})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	points, err := s.portfolio.ValuationHistory(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, points)
}

// formResponse is the JSON shape of the asset form state.
type formResponse struct {
	Kind  string            `json:"kind"`
	Coin  *domain.Coin      `json:"coin,omitempty"`
	Asset *domain.UserAsset `json:"asset,omitempty"`
}

func toFormResponse(f domain.FormMode) formResponse {
	resp := formResponse{Coin: f.Coin, Asset: f.Asset}
	switch f.Kind {
	case domain.FormAdd:
		resp.Kind = "add"
	case domain.FormEdit:
		resp.Kind = "edit"
	default:
		resp.Kind = "idle"
	}
	return resp
}

func (s *apiServer) handleForm(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, toFormResponse(s.portfolio.Form()))
}

func (s *apiServer) handleOpenAddForm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Coin domain.Coin `json:"coin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Coin.ID == "" {
		http.Error(w, "coin is required", http.StatusBadRequest)
		return
	}
	s.portfolio.OpenAddForm(req.Coin)
	s.writeJSON(w, toFormResponse(s.portfolio.Form()))
}

func (s *apiServer) handleOpenEditForm(w http.ResponseWriter, r *http.Request) {
	if err := s.portfolio.OpenEditForm(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, toFormResponse(s.portfolio.Form()))
}

func (s *apiServer) handleCloseForm(w http.ResponseWriter, r *http.Request) {
	s.portfolio.CloseForm()
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	s.watcher.Notify(auth.Event{Kind: auth.EventSignedIn, Email: req.Email, Name: req.Name})
	w.WriteHeader(http.StatusAccepted)
}

func (s *apiServer) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.watcher.Notify(auth.Event{Kind: auth.EventSignedOut})
	w.WriteHeader(http.StatusAccepted)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError maps domain and storage errors onto HTTP status codes.
func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, portfolio.ErrNoUser):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, portfolio.ErrNotOwner):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, portfolio.ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrDuplicateKey):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, market.ErrInvalidURL):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, market.ErrServerError), errors.Is(err, market.ErrInvalidData):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func parseScope(s string) coinlist.Scope {
	switch strings.ToLower(s) {
	case "top10":
		return coinlist.ScopeTop10
	case "defi":
		return coinlist.ScopeDeFi
	case "ai":
		return coinlist.ScopeAI
	default:
		return coinlist.ScopeAll
	}
}
