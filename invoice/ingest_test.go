package invoice_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rewards-ledger/invoice"
	"github.com/warp/rewards-ledger/ledger"
)

// =============================================================================
// BATCH INGESTION
// =============================================================================

func TestIngestBatch_PartialFailure(t *testing.T) {
	// GIVEN: 3 rows where row 2 references an unknown product code
	// WHEN: The company ingests the batch
	// THEN: successCount=2, failedCount=1, and the failure names the
	//       missing product; the good rows posted normally

	f := newFixture(t)
	ctx := context.Background()

	csv := strings.Join([]string{
		"item_code,counterparty_code,qty,unit,amount,invoice_date",
		"P,D001,10,PIECE,100.00,2025-06-01",
		"GHOST,D001,5,PIECE,50.00,2025-06-01",
		"P,D001,2,BOX,200.00,2025-06-02",
	}, "\n")

	result, err := f.service.IngestBatch(ctx, "company", "ops", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 2, result.Failed[0].Row, "row numbering is 1-based over data rows")
	assert.Contains(t, result.Failed[0].Reason, "GHOST")

	// The two good rows landed: 10 pieces + 2 boxes (48 pieces).
	a := f.allocation(t, "dist-1", "P")
	require.NotNil(t, a)
	assert.True(t, a.Pieces.Equal(dec("58")))

	invs, err := f.service.ListByHolder(ctx, "dist-1")
	require.NoError(t, err)
	assert.Len(t, invs, 2)
	for _, id := range result.Success {
		inv, err := f.service.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ledger.HolderID("dist-1"), inv.ReceiverID)
	}
}

func TestIngestBatch_RowIsolation(t *testing.T) {
	// One bad row must not abort the rest, whatever the failure mode.

	f := newFixture(t)
	ctx := context.Background()

	csv := strings.Join([]string{
		"P,D001,abc,PIECE,0,2025-06-01",   // bad quantity
		"P,NOBODY,1,PIECE,0,2025-06-01",   // unknown counterparty
		"P,D001,1,PALLET,0,2025-06-01",    // unknown unit
		"P,D001,1,PIECE,0,31-31-2025",     // bad date
		"P,D001,3,PIECE,30.00,2025-06-01", // fine
	}, "\n")

	result, err := f.service.IngestBatch(ctx, "company", "ops", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 4, result.FailedCount)

	rows := make([]int, len(result.Failed))
	for i, failure := range result.Failed {
		rows[i] = failure.Row
		assert.NotEmpty(t, failure.Reason)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, rows)
}

func TestIngestBatch_HeaderOptional(t *testing.T) {
	// The same rows parse identically with and without the header line.

	csvBody := "P,D001,1,PIECE,10.00,2025-06-01"

	for name, csv := range map[string]string{
		"with header":    "item_code,counterparty_code,qty,unit,amount,invoice_date\n" + csvBody,
		"without header": csvBody,
	} {
		f := newFixture(t)
		result, err := f.service.IngestBatch(context.Background(), "company", "ops",
			strings.NewReader(csv))
		require.NoError(t, err, name)
		assert.Equal(t, 1, result.SuccessCount, name)
		assert.Zero(t, result.FailedCount, name)
	}
}

func TestIngestBatch_TruncatedRowIsolated(t *testing.T) {
	// GIVEN: A batch where row 2 is cut short mid-export
	// WHEN: The company ingests the batch
	// THEN: The truncated row fails on its own; the surrounding rows post

	f := newFixture(t)
	ctx := context.Background()

	csv := strings.Join([]string{
		"P,D001,10,PIECE,100.00,2025-06-01",
		"P,D001,5",
		"P,D001,2,BOX,200.00,2025-06-02",
	}, "\n")

	result, err := f.service.IngestBatch(ctx, "company", "ops", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 2, result.Failed[0].Row)
	assert.Contains(t, result.Failed[0].Reason, "expected 6 columns")

	a := f.allocation(t, "dist-1", "P")
	require.NotNil(t, a)
	assert.True(t, a.Pieces.Equal(dec("58")), "good rows around the truncated one still land")
}

func TestIngestBatch_UnparseableCSV(t *testing.T) {
	// A file the CSV reader cannot tokenize at all (stray quote) rejects
	// the whole batch, unlike per-row failures.

	f := newFixture(t)

	_, err := f.service.IngestBatch(context.Background(), "company", "ops",
		strings.NewReader("P,D0\"01,1,PIECE,0,2025-06-01\n"))
	require.Error(t, err)

	var validation *invoice.ValidationError
	assert.ErrorAs(t, err, &validation)
}
