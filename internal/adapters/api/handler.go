package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/floroz/auctioneer/internal/adapters/cache"
	"github.com/floroz/auctioneer/internal/domain/auction"
	"github.com/floroz/auctioneer/internal/domain/ledger"
	"github.com/floroz/auctioneer/pkg/auth"
)

// EngineHandler exposes the auction engine's operations over JSON. The
// caller account always comes from the validated bearer token, never from
// the request body.
type EngineHandler struct {
	engine      *auction.Engine
	profitCache *cache.ProfitCache // optional
	logger      *slog.Logger
}

func NewEngineHandler(engine *auction.Engine, profitCache *cache.ProfitCache, logger *slog.Logger) *EngineHandler {
	return &EngineHandler{
		engine:      engine,
		profitCache: profitCache,
		logger:      logger,
	}
}

// RegisterRoutes registers the engine's routes with the provided router.
func (h *EngineHandler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/items", h.registerItem)
	r.Get("/v1/items/{itemID}", h.getItem)
	r.Post("/v1/items/{itemID}/auction", h.startAuction)
	r.Post("/v1/items/{itemID}/bids", h.placeBid)
	r.Post("/v1/items/{itemID}/end", h.endAuction)
	r.Post("/v1/items/{itemID}/withdrawals", h.withdraw)
	r.Get("/v1/items/{itemID}/bids/{account}", h.getBidRecord)
	r.Get("/v1/profit", h.getProfit)
}

type registerItemRequest struct {
	ItemID uuid.UUID `json:"item_id"`
}

type startAuctionRequest struct {
	StartPrice int64 `json:"start_price"`
}

type placeBidRequest struct {
	Amount int64 `json:"amount"`
}

type itemResponse struct {
	ItemID        uuid.UUID  `json:"item_id"`
	Owner         uuid.UUID  `json:"owner"`
	HighestBid    int64      `json:"highest_bid"`
	HighestBidder *uuid.UUID `json:"highest_bidder,omitempty"`
	Active        bool       `json:"active"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type bidRecordResponse struct {
	ItemID  uuid.UUID `json:"item_id"`
	Account uuid.UUID `json:"account"`
	Amount  int64     `json:"amount"`
}

type withdrawResponse struct {
	ItemID  uuid.UUID `json:"item_id"`
	Account uuid.UUID `json:"account"`
	Amount  int64     `json:"amount"`
}

type profitResponse struct {
	Account uuid.UUID `json:"account"`
	Profit  int64     `json:"profit"`
}

func (h *EngineHandler) registerItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.AccountFromContext(r.Context())
	if !ok {
		h.writeError(w, auction.ErrInvalidCaller)
		return
	}

	var req registerItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == uuid.Nil {
		http.Error(w, "invalid item_id", http.StatusBadRequest)
		return
	}

	item, err := h.engine.RegisterItem(r.Context(), auction.RegisterItemCommand{
		ItemID: req.ItemID,
		Owner:  caller,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, mapItem(item))
}

func (h *EngineHandler) getItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}

	item, err := h.engine.GetItem(r.Context(), itemID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, mapItem(item))
}

func (h *EngineHandler) startAuction(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.AccountFromContext(r.Context())
	if !ok {
		h.writeError(w, auction.ErrInvalidCaller)
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}

	var req startAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.engine.StartAuction(r.Context(), auction.StartAuctionCommand{
		ItemID:     itemID,
		Caller:     caller,
		StartPrice: req.StartPrice,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, mapItem(item))
}

func (h *EngineHandler) placeBid(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.AccountFromContext(r.Context())
	if !ok {
		h.writeError(w, auction.ErrInvalidCaller)
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.engine.PlaceBid(r.Context(), auction.PlaceBidCommand{
		ItemID: itemID,
		Bidder: caller,
		Amount: req.Amount,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.invalidateProfit(r, caller)
	h.writeJSON(w, http.StatusOK, mapItem(item))
}

func (h *EngineHandler) endAuction(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.AccountFromContext(r.Context())
	if !ok {
		h.writeError(w, auction.ErrInvalidCaller)
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}

	item, err := h.engine.EndAuction(r.Context(), auction.EndAuctionCommand{
		ItemID: itemID,
		Caller: caller,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.invalidateProfit(r, caller)
	h.writeJSON(w, http.StatusOK, mapItem(item))
}

func (h *EngineHandler) withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.AccountFromContext(r.Context())
	if !ok {
		h.writeError(w, auction.ErrInvalidCaller)
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}

	amount, err := h.engine.Withdraw(r.Context(), auction.WithdrawCommand{
		ItemID: itemID,
		Caller: caller,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.invalidateProfit(r, caller)
	h.writeJSON(w, http.StatusOK, withdrawResponse{
		ItemID:  itemID,
		Account: caller,
		Amount:  amount,
	})
}

func (h *EngineHandler) getBidRecord(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return
	}
	account, err := uuid.Parse(chi.URLParam(r, "account"))
	if err != nil {
		http.Error(w, "invalid account", http.StatusBadRequest)
		return
	}

	amount, err := h.engine.GetBidRecord(r.Context(), itemID, account)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, bidRecordResponse{
		ItemID:  itemID,
		Account: account,
		Amount:  amount,
	})
}

func (h *EngineHandler) getProfit(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.AccountFromContext(r.Context())
	if !ok {
		h.writeError(w, auction.ErrInvalidCaller)
		return
	}

	if h.profitCache != nil {
		if profit, hit, err := h.profitCache.Get(r.Context(), caller); err == nil && hit {
			h.writeJSON(w, http.StatusOK, profitResponse{Account: caller, Profit: profit})
			return
		} else if err != nil {
			h.logger.Warn("Profit cache read failed", "error", err)
		}
	}

	profit, err := h.engine.GetProfit(r.Context(), caller)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.profitCache != nil {
		if err := h.profitCache.Set(r.Context(), caller, profit); err != nil {
			h.logger.Warn("Profit cache write failed", "error", err)
		}
	}

	h.writeJSON(w, http.StatusOK, profitResponse{Account: caller, Profit: profit})
}

func (h *EngineHandler) invalidateProfit(r *http.Request, accounts ...uuid.UUID) {
	if h.profitCache == nil {
		return
	}
	if err := h.profitCache.Invalidate(r.Context(), accounts...); err != nil {
		h.logger.Warn("Profit cache invalidation failed", "error", err)
	}
}

func (h *EngineHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// writeError maps the engine's error taxonomy onto HTTP status codes.
func (h *EngineHandler) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, auction.ErrInvalidCaller),
		errors.Is(err, auction.ErrInvalidPrice):
		status = http.StatusBadRequest
	case errors.Is(err, auction.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auction.ErrNotOwner),
		errors.Is(err, auction.ErrSelfBid),
		errors.Is(err, auction.ErrOwnerCannotWithdraw),
		errors.Is(err, auction.ErrHighestBidderCannotWithdraw):
		status = http.StatusForbidden
	case errors.Is(err, auction.ErrAlreadyRegistered),
		errors.Is(err, auction.ErrAuctionAlreadyActive),
		errors.Is(err, auction.ErrAuctionNotActive),
		errors.Is(err, auction.ErrAuctionStillActive),
		errors.Is(err, auction.ErrBidTooLow):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrArithmeticOverflow),
		errors.Is(err, ledger.ErrArithmeticUnderflow):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, auction.ErrTransferFailed):
		status = http.StatusBadGateway
	default:
		h.logger.Error("Unhandled engine error", "error", err)
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func mapItem(item *auction.Item) itemResponse {
	resp := itemResponse{
		ItemID:     item.ID,
		Owner:      item.Owner,
		HighestBid: item.HighestBid,
		Active:     item.Active,
		UpdatedAt:  item.UpdatedAt,
	}
	if item.HasBidder() {
		bidder := item.HighestBidder
		resp.HighestBidder = &bidder
	}
	return resp
}
