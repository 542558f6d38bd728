package archive

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

func TestToFormulaLogRecordsEncodesInputs(t *testing.T) {
	at := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	records, err := toFormulaLogRecords([]domain.FormulaExecutionLog{{
		LogID:          "log-1",
		OrganizationID: "org-1",
		RunID:          "run-1",
		EmployeeID:     "emp-1",
		ComponentCode:  "BONUS",
		Expression:     "base_salary * 0.1",
		Inputs:         map[string]decimal.Decimal{"base_salary": decimal.NewFromInt(5000)},
		Result:         decimal.NewFromInt(500),
		DurationMicros: 42,
		ExecutedAt:     at,
	}})
	require.NoError(t, err)
	require.Len(t, records, 1)

	var inputs map[string]string
	require.NoError(t, json.Unmarshal([]byte(records[0].Inputs), &inputs))
	assert.Equal(t, "5000", inputs["base_salary"])
	assert.Equal(t, "log-1", records[0].LogID)
	assert.True(t, records[0].Result.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, at, records[0].ExecutedAt)
}

func TestToConversionRecordKeepsApprovalReference(t *testing.T) {
	reqID := "req-9"
	record := toConversionRecord(domain.CurrencyConversion{
		ConversionID:      "conv-1",
		FromCurrencyCode:  "EUR",
		ToCurrencyCode:    "USD",
		SourceAmount:      decimal.RequireFromString("100.00"),
		ConvertedAmount:   decimal.RequireFromString("108.50"),
		Rate:              decimal.RequireFromString("1.085"),
		ApprovalRequestID: &reqID,
	})
	assert.Equal(t, "conv-1", record.ConversionID)
	require.NotNil(t, record.ApprovalRequestID)
	assert.Equal(t, "req-9", *record.ApprovalRequestID)
	assert.Equal(t, "currency_conversions", record.TableName())
}

func TestNoopArchiveAcceptsEverything(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, Noop{}.ArchiveFormulaLogs(ctx, nil))
	assert.NoError(t, Noop{}.ArchiveConversion(ctx, domain.CurrencyConversion{}))
}

func TestArchiveFormulaLogsSkipsEmptyBatch(t *testing.T) {
	var a MySQLArchive
	assert.NoError(t, a.ArchiveFormulaLogs(context.Background(), nil))
}
