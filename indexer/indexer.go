package indexer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"okinoko_governor/contract"
	"okinoko_governor/event"
)

var ErrClosed = errors.New("indexer closed")

// EventRecord is one committed contract event.
type EventRecord struct {
	ID          uint   `gorm:"primaryKey"`
	Contract    string `gorm:"index;size:128"`
	Code        string `gorm:"index;size:8"`
	Line        string
	TxID        string `gorm:"index;size:128"`
	BlockHeight uint64 `gorm:"index"`
	Timestamp   int64  `gorm:"index"`

	Fields []FieldRecord `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

func (EventRecord) TableName() string {
	return "event"
}

// Field returns the value stored under key or "".
func (r EventRecord) Field(key string) string {
	for _, f := range r.Fields {
		if f.Name == key {
			return f.Value
		}
	}
	return ""
}

// FieldRecord keeps the key:value pairs of an event searchable.
type FieldRecord struct {
	ID      uint   `gorm:"primaryKey"`
	EventID uint   `gorm:"index"`
	Name    string `gorm:"index:idx_field_kv;size:16"`
	Value   string `gorm:"index:idx_field_kv"`
}

func (FieldRecord) TableName() string {
	return "event_field"
}

var migrateModels = []any{
	&EventRecord{},
	&FieldRecord{},
}

// Indexer stores committed events in sqlite for later queries. It plugs
// into the event bus as a subscriber.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

// New opens the index database below dataDir, or an in-memory one if
// dataDir is empty.
func New(dataDir string, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	gormConfig := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	}
	var db *gorm.DB
	var err error
	if dataDir == "" {
		db, err = gorm.Open(sqlite.Open(":memory:"), gormConfig)
		if err != nil {
			return nil, err
		}
		// every new connection would get its own empty :memory: database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	} else {
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dbPath := filepath.Join(dataDir, "events.sqlite")
		connOpts := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		db, err = gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?%s", dbPath, connOpts)), gormConfig)
		if err != nil {
			return nil, err
		}
	}
	idx := &Indexer{db: db, logger: logger}
	for _, model := range migrateModels {
		idx.logger.Debug(fmt.Sprintf("creating table: %#v", model))
		if err := db.AutoMigrate(model); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// DB returns the database handle
func (i *Indexer) DB() *gorm.DB {
	return i.db
}

// Record stores evt together with its fields.
func (i *Indexer) Record(evt contract.Event) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrClosed
	}
	rec := EventRecord{
		Contract:    evt.Contract.String(),
		Code:        evt.Code,
		Line:        evt.String(),
		TxID:        evt.TxID,
		BlockHeight: evt.BlockHeight,
		Timestamp:   evt.Timestamp,
	}
	for _, f := range evt.Fields {
		rec.Fields = append(rec.Fields, FieldRecord{Name: f.Key, Value: f.Value})
	}
	// event row and field rows land together
	return i.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rec).Error
	})
}

// Filter narrows Query. Zero values match everything.
type Filter struct {
	Contract string
	Code     string
	TxID     string
	// Field and Value match events carrying that key:value pair
	Field string
	Value string
	Limit int
}

// Query returns matching events oldest first.
func (i *Indexer) Query(f Filter) ([]EventRecord, error) {
	q := i.db.Model(&EventRecord{}).Preload("Fields")
	if f.Contract != "" {
		q = q.Where("event.contract = ?", f.Contract)
	}
	if f.Code != "" {
		q = q.Where("event.code = ?", f.Code)
	}
	if f.TxID != "" {
		q = q.Where("event.tx_id = ?", f.TxID)
	}
	if f.Field != "" {
		q = q.Where(
			"EXISTS (SELECT 1 FROM event_field WHERE event_field.event_id = event.id AND event_field.name = ? AND event_field.value = ?)",
			f.Field, f.Value,
		)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []EventRecord
	if err := q.Order("event.id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ProposalHistory lists every governor event mentioning the proposal: its
// creation, the votes and the final execution or cancellation.
func (i *Indexer) ProposalHistory(governor string, id uint64) ([]EventRecord, error) {
	return i.Query(Filter{Contract: governor, Field: "id", Value: strconv.FormatUint(id, 10)})
}

// Count returns the number of stored events.
func (i *Indexer) Count() (int64, error) {
	var n int64
	err := i.db.Model(&EventRecord{}).Count(&n).Error
	return n, err
}

// Deliver implements event.Subscriber. A failed write loses that one event
// and is only logged, so the bus keeps the indexer registered and open. Only
// a closed indexer reports an error.
func (i *Indexer) Deliver(evt event.Event) error {
	err := i.Record(evt.Data)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrClosed) {
		return err
	}
	i.logger.Error(
		"failed to index event",
		"component", "indexer",
		"event", evt.Data.String(),
		"error", err,
	)
	return nil
}

// Close implements event.Subscriber and closes the database. It is safe to
// call more than once.
func (i *Indexer) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	i.closed = true
	sqlDB, err := i.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		i.logger.Warn("failed to close index db", "component", "indexer", "error", err)
	}
}
