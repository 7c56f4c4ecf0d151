package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	marketplaceservice "tokenmart/contexts/trading-core/marketplace-service"
	marketplacedomainerrors "tokenmart/contexts/trading-core/marketplace-service/domain/errors"
	marketplacehttp "tokenmart/contexts/trading-core/marketplace-service/transport/http"
	"tokenmart/contexts/trading-core/marketplace-service/ports"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "tokenmart/internal/platform/httpserver/docs"
)

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	addr        string
	marketplace marketplaceservice.Module
	feed        *EventFeed
}

// New builds the process HTTP surface. The subscriber is optional; when set,
// the live event feed is exposed on /v1/market/events.
func New(
	marketplace marketplaceservice.Module,
	subscriber ports.EventSubscriber,
	eventsTopic string,
	logger *slog.Logger,
	addr string,
) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:         http.NewServeMux(),
		logger:      logger,
		addr:        addr,
		marketplace: marketplace,
	}
	if subscriber != nil {
		feed, err := NewEventFeed(subscriber, eventsTopic, logger)
		if err != nil {
			return nil, err
		}
		s.feed = feed
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/market/listings/multi-unit", s.handleRegisterMultiUnit)
	s.mux.HandleFunc("POST /v1/market/listings/unique", s.handleRegisterUnique)
	s.mux.HandleFunc("POST /v1/market/purchases", s.handleBuy)
	s.mux.HandleFunc("GET /v1/market/listings", s.handleListListings)
	s.mux.HandleFunc("GET /v1/market/listings/{asset_contract}/{asset_id}", s.handleGetListing)
	s.mux.HandleFunc("GET /v1/market/assets/{asset_id}/listing", s.handleFindByAssetID)
	s.mux.HandleFunc("DELETE /v1/market/listings/{asset_contract}/{asset_id}", s.handleCancelListing)

	if s.feed != nil {
		s.mux.HandleFunc("GET /v1/market/events", s.feed.Handle)
	}
}

func (s *Server) handleRegisterMultiUnit(w http.ResponseWriter, r *http.Request) {
	seller := r.Header.Get("X-User-Id")
	if seller == "" {
		writeMarketError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req marketplacehttp.RegisterMultiUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMarketError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.marketplace.Handler.RegisterMultiUnitHandler(
		r.Context(),
		seller,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRegisterUnique(w http.ResponseWriter, r *http.Request) {
	seller := r.Header.Get("X-User-Id")
	if seller == "" {
		writeMarketError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req marketplacehttp.RegisterUniqueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMarketError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.marketplace.Handler.RegisterUniqueHandler(
		r.Context(),
		seller,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	buyer := r.Header.Get("X-User-Id")
	if buyer == "" {
		writeMarketError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req marketplacehttp.BuyListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMarketError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.marketplace.Handler.BuyHandler(
		r.Context(),
		buyer,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := marketplacehttp.ListListingsRequest{
		SellerAddress: query.Get("seller"),
		AssetContract: query.Get("asset_contract"),
		Kind:          query.Get("kind"),
	}
	if pageRaw := query.Get("page"); pageRaw != "" {
		page, err := strconv.Atoi(pageRaw)
		if err != nil {
			writeMarketError(w, http.StatusBadRequest, "invalid_page", "page must be an integer")
			return
		}
		req.Page = page
	}
	if limitRaw := query.Get("limit"); limitRaw != "" {
		limit, err := strconv.Atoi(limitRaw)
		if err != nil {
			writeMarketError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		req.Limit = limit
	}

	resp, err := s.marketplace.Handler.ListListingsHandler(r.Context(), req)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	resp, err := s.marketplace.Handler.GetListingHandler(
		r.Context(),
		r.PathValue("asset_contract"),
		r.PathValue("asset_id"),
	)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFindByAssetID(w http.ResponseWriter, r *http.Request) {
	resp, err := s.marketplace.Handler.FindByAssetIDHandler(r.Context(), r.PathValue("asset_id"))
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelListing(w http.ResponseWriter, r *http.Request) {
	seller := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if seller == "" {
		writeMarketError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.marketplace.Handler.CancelHandler(
		r.Context(),
		seller,
		r.Header.Get("Idempotency-Key"),
		r.PathValue("asset_contract"),
		r.PathValue("asset_id"),
	)
	if err != nil {
		writeMarketDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeMarketDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, marketplacedomainerrors.ErrListingNotFound),
		errors.Is(err, marketplacedomainerrors.ErrAssetNotFound),
		errors.Is(err, marketplacedomainerrors.ErrLedgerNotFound):
		writeMarketError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, marketplacedomainerrors.ErrInsufficientAssetBalance),
		errors.Is(err, marketplacedomainerrors.ErrInsufficientInventory),
		errors.Is(err, marketplacedomainerrors.ErrListingAlreadyActive),
		errors.Is(err, marketplacedomainerrors.ErrPriceMismatch),
		errors.Is(err, marketplacedomainerrors.ErrIdempotencyKeyConflict):
		writeMarketError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, marketplacedomainerrors.ErrPaymentInsufficient):
		writeMarketError(w, http.StatusPaymentRequired, "payment_insufficient", err.Error())
	case errors.Is(err, marketplacedomainerrors.ErrNotOwner),
		errors.Is(err, marketplacedomainerrors.ErrNotSeller),
		errors.Is(err, marketplacedomainerrors.ErrOperatorNotApproved):
		writeMarketError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, marketplacedomainerrors.ErrInvalidPaymentToken),
		errors.Is(err, marketplacedomainerrors.ErrWrongPaymentToken),
		errors.Is(err, marketplacedomainerrors.ErrInvalidRequest),
		errors.Is(err, marketplacedomainerrors.ErrIdempotencyKeyRequired):
		writeMarketError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, marketplacedomainerrors.ErrTransferFailed):
		writeMarketError(w, http.StatusBadGateway, "transfer_failed", err.Error())
	default:
		writeMarketError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeMarketError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, marketplacehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
