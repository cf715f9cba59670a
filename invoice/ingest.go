/*
ingest.go - Batch invoice ingestion from tabular files

PURPOSE:
  Operators upload a spreadsheet export (CSV) of invoices; each row becomes
  one single-line invoice through the same Create path. Rows are processed
  sequentially and independently: one bad row is recorded and skipped, the
  rest of the batch proceeds.

ROW FORMAT (header optional, detected by the first cell):
  item_code, counterparty_code, qty, unit, amount, invoice_date

  The sender is fixed for the whole batch (the uploading holder); each
  row's counterparty code resolves to the receiver.

RESULT:
  IngestBatch folds the rows into a BatchResult listing successes and
  per-row failures for operator review. There is no all-or-nothing
  semantics across rows.

SEE ALSO:
  - service.go: Per-row invoice creation (atomic per row)
*/
package invoice

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rewards-ledger/ledger"
)

// Row is one parsed batch line before resolution.
type Row struct {
	ItemCode         string
	CounterpartyCode string
	Qty              string
	Unit             string
	Amount           string
	InvoiceDate      string
}

// RowFailure records why one row was rejected.
type RowFailure struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// BatchResult is the fold of a whole batch: successes and failures side by
// side, never exceptions-as-control-flow.
type BatchResult struct {
	SuccessCount int          `json:"success_count"`
	FailedCount  int          `json:"failed_count"`
	Success      []string     `json:"success"`
	Failed       []RowFailure `json:"failed"`
}

// dateLayouts accepted in the invoice_date column.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "01/02/2006", time.RFC3339}

// IngestBatch reads CSV rows from r and creates one invoice per row on
// behalf of sender. Row numbering in failures is 1-based over data rows.
// Truncated rows fail individually like any other bad row; only a CSV the
// reader cannot parse at all rejects the batch.
func (s *Service) IngestBatch(ctx context.Context, senderID ledger.HolderID, performedBy string, r io.Reader) (*BatchResult, error) {
	rows, err := parseRows(r)
	if err != nil {
		return nil, err
	}
	return s.ingestRows(ctx, senderID, performedBy, rows)
}

func (s *Service) ingestRows(ctx context.Context, senderID ledger.HolderID, performedBy string, rows []batchRow) (*BatchResult, error) {
	result := &BatchResult{}

	for _, br := range rows {
		err := br.err
		var id string
		if err == nil {
			id, err = s.ingestRow(ctx, senderID, performedBy, br.row)
		}
		if err != nil {
			result.FailedCount++
			result.Failed = append(result.Failed, RowFailure{Row: br.num, Reason: err.Error()})
			continue
		}
		result.SuccessCount++
		result.Success = append(result.Success, id)
	}

	return result, nil
}

func (s *Service) ingestRow(ctx context.Context, senderID ledger.HolderID, performedBy string, row Row) (string, error) {
	qty, err := decimal.NewFromString(strings.TrimSpace(row.Qty))
	if err != nil {
		return "", fmt.Errorf("invalid quantity %q", row.Qty)
	}

	amount := decimal.Zero
	if a := strings.TrimSpace(row.Amount); a != "" {
		amount, err = decimal.NewFromString(a)
		if err != nil {
			return "", fmt.Errorf("invalid amount %q", row.Amount)
		}
	}

	receiver, err := s.store.GetHolderByCode(ctx, strings.TrimSpace(row.CounterpartyCode))
	if err != nil {
		return "", err
	}
	if receiver == nil {
		return "", fmt.Errorf("counterparty %q: %w", row.CounterpartyCode, ledger.ErrHolderNotFound)
	}

	// Reject unknown products here so the failure names the missing code.
	product, err := s.store.GetProduct(ctx, strings.TrimSpace(row.ItemCode))
	if err != nil {
		return "", err
	}
	if product == nil {
		return "", fmt.Errorf("product %q: %w", row.ItemCode, ledger.ErrProductNotFound)
	}

	invoiceDate, err := parseDate(row.InvoiceDate)
	if err != nil {
		return "", err
	}

	inv, err := s.Create(ctx, CreateInput{
		SenderID:   senderID,
		ReceiverID: receiver.ID,
		Lines: []LineInput{{
			ProductCode: product.Code,
			Qty:         qty,
			Unit:        row.Unit,
			Amount:      amount,
		}},
		InvoiceDate: invoiceDate,
		PerformedBy: performedBy,
	})
	if err != nil {
		return "", err
	}
	return inv.ID, nil
}

// batchRow is one data row with its 1-based position. A row the parser
// rejects carries err and no Row; it fails individually in the result.
type batchRow struct {
	num int
	row Row
	err error
}

func parseRows(r io.Reader) ([]batchRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid CSV: %v", err)}
	}

	var rows []batchRow
	num := 0
	for i, rec := range records {
		if i == 0 && isHeader(rec) {
			continue
		}
		num++
		if len(rec) < 6 {
			rows = append(rows, batchRow{num: num, err: fmt.Errorf(
				"expected 6 columns, got %d", len(rec))})
			continue
		}
		rows = append(rows, batchRow{num: num, row: Row{
			ItemCode:         rec[0],
			CounterpartyCode: rec[1],
			Qty:              rec[2],
			Unit:             rec[3],
			Amount:           rec[4],
			InvoiceDate:      rec[5],
		}})
	}
	return rows, nil
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(rec[0]))
	return first == "item_code" || first == "item code" || first == "itemcode"
}

func parseDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid invoice date %q", raw)
}
