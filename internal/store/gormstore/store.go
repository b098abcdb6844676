package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tradewatch/internal/snapshot"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// tradeLogCap bounds the persisted trade log, newest kept.
const tradeLogCap = 100

type seriesPointModel struct {
	ID        uint      `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time
}

func (seriesPointModel) TableName() string { return "series_points" }

type cycleModel struct {
	ID        uint   `gorm:"primaryKey"`
	Strategy  string `gorm:"index"`
	Degraded  bool
	Reasoning string `gorm:"type:text"`
	Decisions datatypes.JSON
	Summary   datatypes.JSON
	Positions datatypes.JSON
	Warnings  datatypes.JSON
	CreatedAt time.Time `gorm:"index"`
}

func (cycleModel) TableName() string { return "cycles" }

type tradeRecordModel struct {
	ID             uint      `gorm:"primaryKey"`
	Timestamp      time.Time `gorm:"uniqueIndex;not null"`
	PortfolioValue string
	Decisions      datatypes.JSON
	Reasoning      string `gorm:"type:text"`
	CreatedAt      time.Time
}

func (tradeRecordModel) TableName() string { return "trade_records" }

// Store persists the value series, per-cycle snapshots and the trade log in
// SQLite through Gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&seriesPointModel{}, &cycleModel{}, &tradeRecordModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for HTTP reads without lock churn.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordCycle archives one completed snapshot: the cycle row, the merged
// value series, and the capped trade log.
func (s *Store) RecordCycle(ctx context.Context, snap *snapshot.Snapshot) error {
	if s == nil || s.db == nil || snap == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := cycleModel{
			Strategy:  snap.Strategy,
			Degraded:  snap.Degraded,
			Reasoning: snap.Reasoning,
			Decisions: marshalJSON(snap.Decisions),
			Summary:   marshalJSON(snap.PortfolioSummary),
			Positions: marshalJSON(snap.Positions),
			Warnings:  marshalJSON(snap.Warnings),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := upsertSeries(tx, snap.History); err != nil {
			return err
		}
		return upsertTrades(tx, snap.TradeLog)
	})
}

// UpsertSeries merges points into the persisted series, last write wins per
// timestamp.
func (s *Store) UpsertSeries(ctx context.Context, points []snapshot.HistoryPoint) error {
	if s == nil || s.db == nil || len(points) == 0 {
		return nil
	}
	return upsertSeries(s.db.WithContext(ctx), points)
}

func upsertSeries(tx *gorm.DB, points []snapshot.HistoryPoint) error {
	if len(points) == 0 {
		return nil
	}
	models := make([]seriesPointModel, 0, len(points))
	for _, p := range points {
		models = append(models, seriesPointModel{Timestamp: p.Timestamp.UTC(), Value: p.Value.String()})
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models).Error
}

func upsertTrades(tx *gorm.DB, trades []snapshot.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	models := make([]tradeRecordModel, 0, len(trades))
	for _, t := range trades {
		models = append(models, tradeRecordModel{
			Timestamp:      t.Timestamp.UTC(),
			PortfolioValue: t.PortfolioValue.String(),
			Decisions:      marshalJSON(t.Decisions),
			Reasoning:      t.Reasoning,
		})
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{"portfolio_value", "decisions", "reasoning"}),
	}).Create(&models).Error; err != nil {
		return err
	}
	return tx.Exec(
		"DELETE FROM trade_records WHERE id NOT IN (SELECT id FROM trade_records ORDER BY timestamp DESC LIMIT ?)",
		tradeLogCap,
	).Error
}

// LoadSeries returns the persisted series ascending, for seeding the
// accumulator at startup.
func (s *Store) LoadSeries(ctx context.Context) ([]snapshot.HistoryPoint, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	var rows []seriesPointModel
	if err := s.db.WithContext(ctx).Order("timestamp asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]snapshot.HistoryPoint, 0, len(rows))
	for _, row := range rows {
		val, err := decimal.NewFromString(row.Value)
		if err != nil {
			continue
		}
		out = append(out, snapshot.HistoryPoint{Timestamp: row.Timestamp.UTC(), Value: val})
	}
	return out, nil
}

// ListTrades returns the newest trades first, up to limit.
func (s *Store) ListTrades(ctx context.Context, limit int) ([]snapshot.TradeRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	if limit <= 0 || limit > tradeLogCap {
		limit = tradeLogCap
	}
	var rows []tradeRecordModel
	if err := s.db.WithContext(ctx).Order("timestamp desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]snapshot.TradeRecord, 0, len(rows))
	for _, row := range rows {
		rec := snapshot.TradeRecord{
			Timestamp: row.Timestamp.UTC(),
			Reasoning: row.Reasoning,
		}
		if val, err := decimal.NewFromString(row.PortfolioValue); err == nil {
			rec.PortfolioValue = val
		}
		if len(row.Decisions) > 0 {
			_ = json.Unmarshal(row.Decisions, &rec.Decisions)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListCycles returns recent cycle rows, newest first.
func (s *Store) ListCycles(ctx context.Context, limit int) ([]CycleRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []cycleModel
	if err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]CycleRecord, 0, len(rows))
	for _, row := range rows {
		rec := CycleRecord{
			Strategy:  row.Strategy,
			Degraded:  row.Degraded,
			Reasoning: row.Reasoning,
			CreatedAt: row.CreatedAt.UTC(),
		}
		if len(row.Decisions) > 0 {
			_ = json.Unmarshal(row.Decisions, &rec.Decisions)
		}
		out = append(out, rec)
	}
	return out, nil
}

// CycleRecord is the read model for archived cycles.
type CycleRecord struct {
	Strategy  string              `json:"strategy"`
	Degraded  bool                `json:"degraded"`
	Reasoning string              `json:"reasoning"`
	Decisions []snapshot.Decision `json:"decisions"`
	CreatedAt time.Time           `json:"created_at"`
}

func marshalJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
