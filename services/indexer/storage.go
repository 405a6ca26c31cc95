package indexer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rfqsettle/native/rfq"
)

// ErrPathRequired is returned when the backing store path is missing.
var ErrPathRequired = errors.New("indexer storage path must be configured")

// Settlement is the persisted form of a settlement record. Amounts and event
// identifiers are stored as decimal text so the full unsigned range survives
// databases without unsigned integers.
type Settlement struct {
	ID                uint      `gorm:"primaryKey"`
	RecordID          uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	RunID             uuid.UUID `gorm:"type:uuid;index"`
	EventID           string    `gorm:"not null"`
	Maker             string    `gorm:"index;not null"`
	TakerMint         string    `gorm:"not null"`
	MakerMint         string    `gorm:"not null"`
	FilledTakerAmount string    `gorm:"not null"`
	FilledMakerAmount string    `gorm:"not null"`
	CreatedAt         time.Time
}

// Storage persists settlement records.
type Storage struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema.
func Open(dsn string) (*Storage, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := gorm.Open(dialector(trimmed), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Settlement{}); err != nil {
		return nil, errors.Join(fmt.Errorf("apply schema: %w", err), closeDB(db))
	}
	return &Storage{db: db}, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Close releases database resources.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return closeDB(s.db)
}

// Record persists one settlement record under run.
func (s *Storage) Record(ctx context.Context, run uuid.UUID, rec rfq.SettlementRecord) (*Settlement, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage not configured")
	}
	row := &Settlement{
		RecordID:          uuid.New(),
		RunID:             run,
		EventID:           strconv.FormatUint(rec.EventID, 10),
		Maker:             rec.Maker.String(),
		TakerMint:         rec.TakerMint.String(),
		MakerMint:         rec.MakerMint.String(),
		FilledTakerAmount: strconv.FormatUint(rec.FilledTakerAmount, 10),
		FilledMakerAmount: strconv.FormatUint(rec.FilledMakerAmount, 10),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("insert settlement: %w", err)
	}
	return row, nil
}

// Query narrows a Records lookup. Zero fields match everything.
type Query struct {
	Maker solana.PublicKey
	RunID uuid.UUID
}

// Records returns the matching settlements in insertion order.
func (s *Storage) Records(ctx context.Context, q Query) ([]Settlement, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage not configured")
	}
	tx := s.db.WithContext(ctx).Model(&Settlement{})
	if !q.Maker.IsZero() {
		tx = tx.Where("maker = ?", q.Maker.String())
	}
	if q.RunID != uuid.Nil {
		tx = tx.Where("run_id = ?", q.RunID)
	}
	var rows []Settlement
	if err := tx.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query settlements: %w", err)
	}
	return rows, nil
}

// Record decodes the row back into a settlement record.
func (s Settlement) Record() (rfq.SettlementRecord, error) {
	var (
		rec rfq.SettlementRecord
		err error
	)
	if rec.EventID, err = strconv.ParseUint(s.EventID, 10, 64); err != nil {
		return rec, fmt.Errorf("settlement %d event id: %w", s.ID, err)
	}
	if rec.Maker, err = solana.PublicKeyFromBase58(s.Maker); err != nil {
		return rec, fmt.Errorf("settlement %d maker: %w", s.ID, err)
	}
	if rec.TakerMint, err = solana.PublicKeyFromBase58(s.TakerMint); err != nil {
		return rec, fmt.Errorf("settlement %d taker mint: %w", s.ID, err)
	}
	if rec.MakerMint, err = solana.PublicKeyFromBase58(s.MakerMint); err != nil {
		return rec, fmt.Errorf("settlement %d maker mint: %w", s.ID, err)
	}
	if rec.FilledTakerAmount, err = strconv.ParseUint(s.FilledTakerAmount, 10, 64); err != nil {
		return rec, fmt.Errorf("settlement %d taker amount: %w", s.ID, err)
	}
	if rec.FilledMakerAmount, err = strconv.ParseUint(s.FilledMakerAmount, 10, 64); err != nil {
		return rec, fmt.Errorf("settlement %d maker amount: %w", s.ID, err)
	}
	return rec, nil
}
