package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rewards-ledger/api"
	"github.com/warp/rewards-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	handler := api.NewHandler(store.NewTxMemory())
	srv := httptest.NewServer(api.NewRouter(handler, nil))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	if out != nil {
		defer resp.Body.Close()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// seedChain registers the three-tier hierarchy and one product.
func seedChain(t *testing.T, srv *httptest.Server) {
	t.Helper()

	holders := []api.CreateHolderRequest{
		{ID: "company", Code: "CO", Name: "Acme", Role: "company"},
		{ID: "dist-1", Code: "D001", Name: "Northern", Role: "distributor"},
		{ID: "dealer-1", Code: "DL001", Name: "Main Street", Role: "dealer", RewardLimit: "40"},
	}
	for _, h := range holders {
		resp := postJSON(t, srv, "/api/holders", h)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := postJSON(t, srv, "/api/products", api.ProductDTO{
		Code:            "P",
		BoxQty:          "24",
		CartonQty:       "144",
		RewardsPerPiece: "5",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func createInvoice(t *testing.T, srv *httptest.Server, sender, receiver, qty, unit string) api.InvoiceDTO {
	t.Helper()
	resp := postJSON(t, srv, "/api/invoices", api.CreateInvoiceRequest{
		SenderID:   sender,
		ReceiverID: receiver,
		Lines: []api.InvoiceLineRequest{
			{ProductCode: "P", Qty: qty, Unit: unit},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var dto api.InvoiceDTO
	decodeBody(t, resp, &dto)
	return dto
}

// =============================================================================
// HOLDERS AND PRODUCTS
// =============================================================================

func TestAPI_CreateAndGetHolder(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/api/holders", api.CreateHolderRequest{
		ID: "dist-1", Code: "D001", Name: "Northern", Role: "Distributor",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	var dto api.HolderDTO
	resp = getJSON(t, srv, "/api/holders/dist-1", &dto)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Northern", dto.Name)
	assert.Equal(t, "distributor", dto.Role, "role is normalized to lower case")
}

func TestAPI_CreateHolder_Validation(t *testing.T) {
	srv := newTestServer(t)

	cases := []api.CreateHolderRequest{
		{ID: "x", Code: "X", Name: "X", Role: "wholesaler"}, // unknown role
		{ID: "", Code: "X", Name: "X", Role: "dealer"},      // missing id
		{ID: "x", Code: "X", Name: "X", Role: "dealer", RewardLimit: "-5"},
	}
	for i, c := range cases {
		resp := postJSON(t, srv, "/api/holders", c)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "case %d", i)
		resp.Body.Close()
	}
}

func TestAPI_GetHolder_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := getJSON(t, srv, "/api/holders/ghost", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CreateProduct_UnknownSalesUOM(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/api/products", api.ProductDTO{
		Code: "P", SalesUOM: "PALLET", RewardsPerPiece: "1",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// INVOICES
// =============================================================================

func TestAPI_InvoiceLifecycle(t *testing.T) {
	srv := newTestServer(t)
	seedChain(t, srv)

	inv := createInvoice(t, srv, "company", "dist-1", "10", "PIECE")
	assert.Equal(t, "50", inv.TotalReward)
	require.Len(t, inv.Lines, 1)
	assert.Equal(t, "PIECE", inv.Lines[0].UOM)

	// The invoice is readable back.
	var fetched api.InvoiceDTO
	resp := getJSON(t, srv, "/api/invoices/"+inv.ID, &fetched)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, inv.ID, fetched.ID)

	// Wallets reflect the posting.
	var wallet api.WalletDTO
	getJSON(t, srv, "/api/holders/dist-1/wallet", &wallet)
	assert.Equal(t, "50", wallet.Balance)

	getJSON(t, srv, "/api/holders/company/wallet", &wallet)
	assert.Equal(t, "-50", wallet.Balance)

	// Allocation landed on the receiver.
	var allocations []api.AllocationDTO
	getJSON(t, srv, "/api/holders/dist-1/allocations", &allocations)
	require.Len(t, allocations, 1)
	assert.Equal(t, "10", allocations[0].Qty)

	// Transaction history shows the single credit.
	var txs []api.TransactionDTO
	getJSON(t, srv, "/api/holders/dist-1/transactions", &txs)
	require.Len(t, txs, 1)
	assert.Equal(t, "credit", txs[0].Direction)
	assert.Equal(t, inv.ID, txs[0].InvoiceID)

	// Both parties list the invoice.
	var invs []api.InvoiceDTO
	getJSON(t, srv, "/api/holders/company/invoices", &invs)
	assert.Len(t, invs, 1)
}

func TestAPI_InvoiceErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	seedChain(t, srv)

	// 400: validation (dealer cannot invoice upward).
	resp := postJSON(t, srv, "/api/invoices", api.CreateInvoiceRequest{
		SenderID: "dealer-1", ReceiverID: "dist-1",
		Lines: []api.InvoiceLineRequest{{ProductCode: "P", Qty: "1", Unit: "PIECE"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// 404: unknown holder.
	resp = postJSON(t, srv, "/api/invoices", api.CreateInvoiceRequest{
		SenderID: "ghost", ReceiverID: "dist-1",
		Lines: []api.InvoiceLineRequest{{ProductCode: "P", Qty: "1", Unit: "PIECE"}},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// 422: business rejection (distributor has no stock yet).
	resp = postJSON(t, srv, "/api/invoices", api.CreateInvoiceRequest{
		SenderID: "dist-1", ReceiverID: "dealer-1",
		Lines: []api.InvoiceLineRequest{{ProductCode: "P", Qty: "1", Unit: "PIECE"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var errResp api.ErrorResponse
	decodeBody(t, resp, &errResp)
	assert.Contains(t, errResp.Error, "exceeds available stock")

	// 404: unknown invoice.
	resp = getJSON(t, srv, "/api/invoices/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_RequestedRewardPassThrough(t *testing.T) {
	srv := newTestServer(t)
	seedChain(t, srv)

	createInvoice(t, srv, "company", "dist-1", "10", "PIECE")

	resp := postJSON(t, srv, "/api/invoices", api.CreateInvoiceRequest{
		SenderID: "dist-1", ReceiverID: "dealer-1",
		Lines:           []api.InvoiceLineRequest{{ProductCode: "P", Qty: "10", Unit: "PIECE"}},
		RequestedReward: "30",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var inv api.InvoiceDTO
	decodeBody(t, resp, &inv)
	assert.Equal(t, "30", inv.TotalReward)

	var wallet api.WalletDTO
	getJSON(t, srv, "/api/holders/dealer-1/wallet", &wallet)
	assert.Equal(t, "30", wallet.Balance)
}

// =============================================================================
// BATCH INGESTION
// =============================================================================

func TestAPI_BatchIngestion(t *testing.T) {
	srv := newTestServer(t)
	seedChain(t, srv)

	csv := strings.Join([]string{
		"item_code,counterparty_code,qty,unit,amount,invoice_date",
		"P,D001,10,PIECE,100.00,2025-06-01",
		"GHOST,D001,5,PIECE,50.00,2025-06-01",
		"P,D001,2,BOX,200.00,2025-06-02",
	}, "\n")

	resp := postJSON(t, srv, "/api/invoices/batch", api.BatchRequest{
		SenderID: "company",
		CSV:      csv,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		SuccessCount int `json:"success_count"`
		FailedCount  int `json:"failed_count"`
		Failed       []struct {
			Row    int    `json:"row"`
			Reason string `json:"reason"`
		} `json:"failed"`
	}
	decodeBody(t, resp, &result)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 2, result.Failed[0].Row)
	assert.Contains(t, result.Failed[0].Reason, "GHOST")
}

func TestAPI_BatchValidation(t *testing.T) {
	srv := newTestServer(t)
	seedChain(t, srv)

	for name, req := range map[string]api.BatchRequest{
		"missing sender": {CSV: "P,D001,1,PIECE,0,2025-06-01"},
		"missing csv":    {SenderID: "company"},
	} {
		resp := postJSON(t, srv, "/api/invoices/batch", req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
		resp.Body.Close()
	}
}

// =============================================================================
// HEALTH
// =============================================================================

func TestAPI_Health(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(fmt.Sprintf("%s/healthz", srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
