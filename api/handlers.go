/*
handlers.go - HTTP API handlers for the rewards ledger

PURPOSE:
  Exposes the rewards ledger via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Holders:
    GET    /api/holders                    List all holders
    POST   /api/holders                    Register holder
    GET    /api/holders/{id}               Get holder details
    GET    /api/holders/{id}/wallet        Wallet position
    GET    /api/holders/{id}/transactions  Wallet ledger entries
    GET    /api/holders/{id}/allocations   Inventory positions
    GET    /api/holders/{id}/invoices      Invoices sent or received

  Products:
    GET    /api/products                   List catalog
    POST   /api/products                   Create/update product
    GET    /api/products/{code}            Get product

  Invoices:
    POST   /api/invoices                   Post invoice (atomic)
    GET    /api/invoices/{id}              Get invoice
    POST   /api/invoices/batch             CSV batch ingestion

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown holder, product, or invoice
  - 422: Business rejection (insufficient allocation/balance, reward caps)
  - 500: Internal errors
  Every rejection carries a human-readable reason.

SECURITY NOTE:
  Currently NO authentication or authorization. The performed_by field is
  caller-supplied and recorded as-is.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/rewards-ledger/catalog"
	"github.com/warp/rewards-ledger/invoice"
	"github.com/warp/rewards-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    ledger.TxStore
	Invoices *invoice.Service
	Wallets  *ledger.WalletLedger

	// DefaultDealerRewardLimit is applied to dealers registered without an
	// explicit reward_limit. Zero means uncapped.
	DefaultDealerRewardLimit decimal.Decimal
}

// NewHandler creates a new handler over the given transactional store.
func NewHandler(store ledger.TxStore) *Handler {
	return &Handler{
		Store:    store,
		Invoices: invoice.NewService(store),
		Wallets:  ledger.NewWalletLedger(store),
	}
}

// =============================================================================
// HOLDER HANDLERS
// =============================================================================

// ListHolders returns all registered holders.
func (h *Handler) ListHolders(w http.ResponseWriter, r *http.Request) {
	holders, err := h.Store.ListHolders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holders", err)
		return
	}

	dtos := make([]HolderDTO, len(holders))
	for i, hld := range holders {
		dtos[i] = toHolderDTO(hld)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetHolder returns a single holder.
func (h *Handler) GetHolder(w http.ResponseWriter, r *http.Request) {
	id := ledger.HolderID(chi.URLParam(r, "id"))

	holder, err := h.Store.GetHolder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get holder", err)
		return
	}
	if holder == nil {
		writeError(w, http.StatusNotFound, "Holder not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toHolderDTO(*holder))
}

// CreateHolder registers a holder in the hierarchy.
func (h *Handler) CreateHolder(w http.ResponseWriter, r *http.Request) {
	var req CreateHolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.ID == "" || req.Code == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id, code, and name are required", nil)
		return
	}

	role := ledger.Role(strings.ToLower(req.Role))
	switch role {
	case ledger.RoleCompany, ledger.RoleDistributor, ledger.RoleDealer:
	default:
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unknown role %q (use company, distributor, or dealer)", req.Role), nil)
		return
	}

	rewardLimit := decimal.Zero
	if req.RewardLimit != "" {
		var err error
		rewardLimit, err = decimal.NewFromString(req.RewardLimit)
		if err != nil || rewardLimit.IsNegative() {
			writeError(w, http.StatusBadRequest, "Invalid reward_limit", err)
			return
		}
	} else if role == ledger.RoleDealer {
		rewardLimit = h.DefaultDealerRewardLimit
	}

	holder := ledger.Holder{
		ID:          ledger.HolderID(req.ID),
		Code:        req.Code,
		Name:        req.Name,
		Role:        role,
		RewardLimit: rewardLimit,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.Store.SaveHolder(r.Context(), holder); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create holder", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolderDTO(holder))
}

// =============================================================================
// WALLET AND ALLOCATION HANDLERS
// =============================================================================

// GetWallet returns the holder's current point position. A holder that has
// never transacted gets a zero wallet back rather than a 404.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	id := ledger.HolderID(chi.URLParam(r, "id"))
	ctx := r.Context()

	holder, err := h.Store.GetHolder(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get holder", err)
		return
	}
	if holder == nil {
		writeError(w, http.StatusNotFound, "Holder not found", nil)
		return
	}

	wallet, err := h.Store.GetWallet(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get wallet", err)
		return
	}
	if wallet == nil {
		wallet = &ledger.Wallet{HolderID: id}
	}
	writeJSON(w, http.StatusOK, toWalletDTO(*wallet))
}

// GetTransactions returns the holder's wallet ledger entries, oldest first.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := ledger.HolderID(chi.URLParam(r, "id"))

	txs, err := h.Wallets.Transactions(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAllocations returns the holder's inventory positions.
func (h *Handler) GetAllocations(w http.ResponseWriter, r *http.Request) {
	id := ledger.HolderID(chi.URLParam(r, "id"))

	allocations, err := h.Store.ListAllocations(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get allocations", err)
		return
	}

	dtos := make([]AllocationDTO, len(allocations))
	for i, a := range allocations {
		dtos[i] = toAllocationDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProduct returns one catalog entry.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	product, err := h.Store.GetProduct(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get product", err)
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*product))
}

// CreateProduct creates or updates a catalog entry.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	product, err := productFromDTO(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := product.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if err := h.Store.SaveProduct(r.Context(), *product); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(*product))
}

func productFromDTO(req ProductDTO) (*catalog.Product, error) {
	p := catalog.Product{
		Code:        req.Code,
		Description: req.Description,
	}

	if req.SalesUOM != "" {
		uom, err := catalog.NormalizeUnit(req.SalesUOM)
		if err != nil {
			return nil, err
		}
		p.SalesUOM = uom
	}

	var err error
	if p.BoxQty, err = parseDecimal(req.BoxQty, "box_qty"); err != nil {
		return nil, err
	}
	if p.CartonQty, err = parseDecimal(req.CartonQty, "carton_qty"); err != nil {
		return nil, err
	}
	if p.RewardsPerPiece, err = parseDecimal(req.RewardsPerPiece, "rewards_per_piece"); err != nil {
		return nil, err
	}
	if p.RewardsPerDozen, err = parseNullDecimal(req.RewardsPerDozen, "rewards_per_dozen"); err != nil {
		return nil, err
	}
	if p.RewardsPerBox, err = parseNullDecimal(req.RewardsPerBox, "rewards_per_box"); err != nil {
		return nil, err
	}
	if p.RewardsPerCarton, err = parseNullDecimal(req.RewardsPerCarton, "rewards_per_carton"); err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// CreateInvoice validates and atomically posts one invoice.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := invoice.CreateInput{
		SenderID:    ledger.HolderID(req.SenderID),
		ReceiverID:  ledger.HolderID(req.ReceiverID),
		PerformedBy: req.PerformedBy,
	}

	for i, l := range req.Lines {
		qty, err := decimal.NewFromString(l.Qty)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Line %d: invalid qty %q", i+1, l.Qty), nil)
			return
		}
		amount := decimal.Zero
		if l.Amount != "" {
			amount, err = decimal.NewFromString(l.Amount)
			if err != nil {
				writeError(w, http.StatusBadRequest,
					fmt.Sprintf("Line %d: invalid amount %q", i+1, l.Amount), nil)
				return
			}
		}
		in.Lines = append(in.Lines, invoice.LineInput{
			ProductCode: l.ProductCode,
			Qty:         qty,
			Unit:        l.Unit,
			Amount:      amount,
		})
	}

	if req.RequestedReward != "" {
		reward, err := decimal.NewFromString(req.RequestedReward)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid requested_reward", err)
			return
		}
		in.RequestedReward = decimal.NullDecimal{Decimal: reward, Valid: true}
	}

	if req.InvoiceDate != "" {
		date, err := time.Parse("2006-01-02", req.InvoiceDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid invoice_date format (use YYYY-MM-DD)", err)
			return
		}
		in.InvoiceDate = date
	}

	inv, err := h.Invoices.Create(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(*inv))
}

// GetInvoice returns one posted invoice.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inv, err := h.Invoices.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(*inv))
}

// ListInvoicesByHolder returns invoices where the holder is sender or
// receiver.
func (h *Handler) ListInvoicesByHolder(w http.ResponseWriter, r *http.Request) {
	id := ledger.HolderID(chi.URLParam(r, "id"))

	invoices, err := h.Invoices.ListByHolder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// IngestBatch accepts a CSV batch and creates one invoice per row. Row
// failures are reported in the result, not as an HTTP error.
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.SenderID == "" {
		writeError(w, http.StatusBadRequest, "sender_id is required", nil)
		return
	}
	if req.CSV == "" {
		writeError(w, http.StatusBadRequest, "csv is required", nil)
		return
	}

	result, err := h.Invoices.IngestBatch(r.Context(),
		ledger.HolderID(req.SenderID), req.PerformedBy, strings.NewReader(req.CSV))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP status codes: input
// validation 400, missing references 404, business rejections 422,
// everything else 500.
func writeDomainError(w http.ResponseWriter, err error) {
	var validation *invoice.ValidationError
	var unsupported *catalog.UnsupportedUnitError

	switch {
	case errors.As(err, &validation), errors.As(err, &unsupported):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case ledger.IsClientError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func parseDecimal(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", field, s)
	}
	return d, nil
}

func parseNullDecimal(s, field string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid %s %q", field, s)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}
