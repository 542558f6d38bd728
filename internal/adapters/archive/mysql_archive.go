package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
)

const archiveBatchSize = 200

// FormulaLogRecord is the archived copy of a formula execution log.
type FormulaLogRecord struct {
	LogID          string          `gorm:"column:log_id;primaryKey;size:64"`
	OrganizationID string          `gorm:"column:organization_id;size:64;index:idx_formula_run,priority:1"`
	RunID          string          `gorm:"column:run_id;size:64;index:idx_formula_run,priority:2"`
	EmployeeID     string          `gorm:"column:employee_id;size:64"`
	ComponentCode  string          `gorm:"column:component_code;size:50"`
	Expression     string          `gorm:"column:expression;type:text"`
	Inputs         string          `gorm:"column:inputs;type:json"`
	Result         decimal.Decimal `gorm:"column:result;type:decimal(20,4)"`
	DurationMicros int64           `gorm:"column:duration_micros"`
	ExecutedAt     time.Time       `gorm:"column:executed_at"`
}

func (FormulaLogRecord) TableName() string { return "formula_execution_logs" }

// ConversionRecord is the archived copy of a currency conversion.
type ConversionRecord struct {
	ConversionID      string          `gorm:"column:conversion_id;primaryKey;size:64"`
	OrganizationID    string          `gorm:"column:organization_id;size:64;index"`
	ExchangeRateID    string          `gorm:"column:exchange_rate_id;size:64"`
	FromCurrencyCode  string          `gorm:"column:from_currency_code;size:3"`
	ToCurrencyCode    string          `gorm:"column:to_currency_code;size:3"`
	SourceAmount      decimal.Decimal `gorm:"column:source_amount;type:decimal(20,4)"`
	ConvertedAmount   decimal.Decimal `gorm:"column:converted_amount;type:decimal(20,4)"`
	Rate              decimal.Decimal `gorm:"column:rate;type:decimal(20,10)"`
	ApprovalRequestID *string         `gorm:"column:approval_request_id;size:64"`
	SourceRef         string          `gorm:"column:source_ref;size:200"`
	ConvertedAt       time.Time       `gorm:"column:converted_at"`
}

func (ConversionRecord) TableName() string { return "currency_conversions" }

// MySQLArchive mirrors compliance records into a MySQL archive database.
// Writes are idempotent: a record already archived is left untouched.
type MySQLArchive struct {
	db *gorm.DB
}

var _ portssvc.AuditArchive = (*MySQLArchive)(nil)

// NewMySQLArchive opens the archive database and creates its tables.
func NewMySQLArchive(dsn string) (*MySQLArchive, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit archive: %w", err)
	}
	if err := db.AutoMigrate(&FormulaLogRecord{}, &ConversionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit archive: %w", err)
	}
	return &MySQLArchive{db: db}, nil
}

// ArchiveFormulaLogs stores logs, skipping ones archived by an earlier pass.
func (a *MySQLArchive) ArchiveFormulaLogs(ctx context.Context, logs []domain.FormulaExecutionLog) error {
	if len(logs) == 0 {
		return nil
	}
	records, err := toFormulaLogRecords(logs)
	if err != nil {
		return err
	}
	err = a.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(records, archiveBatchSize).Error
	if err != nil {
		return fmt.Errorf("failed to archive formula logs: %w", err)
	}
	return nil
}

// ArchiveConversion stores one conversion record.
func (a *MySQLArchive) ArchiveConversion(ctx context.Context, conversion domain.CurrencyConversion) error {
	record := toConversionRecord(conversion)
	err := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to archive conversion %s: %w", conversion.ConversionID, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (a *MySQLArchive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toFormulaLogRecords(logs []domain.FormulaExecutionLog) ([]FormulaLogRecord, error) {
	records := make([]FormulaLogRecord, 0, len(logs))
	for _, l := range logs {
		inputs, err := json.Marshal(l.Inputs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode inputs of formula log %s: %w", l.LogID, err)
		}
		records = append(records, FormulaLogRecord{
			LogID:          l.LogID,
			OrganizationID: l.OrganizationID,
			RunID:          l.RunID,
			EmployeeID:     l.EmployeeID,
			ComponentCode:  l.ComponentCode,
			Expression:     l.Expression,
			Inputs:         string(inputs),
			Result:         l.Result,
			DurationMicros: l.DurationMicros,
			ExecutedAt:     l.ExecutedAt,
		})
	}
	return records, nil
}

func toConversionRecord(c domain.CurrencyConversion) ConversionRecord {
	return ConversionRecord{
		ConversionID:      c.ConversionID,
		OrganizationID:    c.OrganizationID,
		ExchangeRateID:    c.ExchangeRateID,
		FromCurrencyCode:  c.FromCurrencyCode,
		ToCurrencyCode:    c.ToCurrencyCode,
		SourceAmount:      c.SourceAmount,
		ConvertedAmount:   c.ConvertedAmount,
		Rate:              c.Rate,
		ApprovalRequestID: c.ApprovalRequestID,
		SourceRef:         c.SourceRef,
		ConvertedAt:       c.ConvertedAt,
	}
}

// Noop discards archive writes. It is used when no archive DSN is configured.
type Noop struct{}

var _ portssvc.AuditArchive = Noop{}

func (Noop) ArchiveFormulaLogs(context.Context, []domain.FormulaExecutionLog) error { return nil }
func (Noop) ArchiveConversion(context.Context, domain.CurrencyConversion) error     { return nil }
