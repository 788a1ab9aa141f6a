package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const gcInterval = 5 * time.Minute

// Badger persists contract state in a badger key/value database. A write
// set from the engine goes into one badger transaction so a crash never
// leaves half of a call on disk.
type Badger struct {
	db       *badger.DB
	logger   *slog.Logger
	dataDir  string
	inMemory bool

	gcTicker *time.Ticker
	gcStopCh chan struct{}
	gcWg     sync.WaitGroup
}

type OptionFunc func(*Badger)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) OptionFunc {
	return func(b *Badger) {
		b.logger = logger
	}
}

// WithDataDir specifies the directory holding the database files
func WithDataDir(dataDir string) OptionFunc {
	return func(b *Badger) {
		b.dataDir = dataDir
	}
}

// WithInMemory keeps everything in RAM. The data dir is ignored.
func WithInMemory(inMemory bool) OptionFunc {
	return func(b *Badger) {
		b.inMemory = inMemory
	}
}

// New opens (or creates) the state database.
func New(opts ...OptionFunc) (*Badger, error) {
	b := &Badger{}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if b.dataDir == "" {
		b.inMemory = true
	}

	var badgerOpts badger.Options
	if b.inMemory {
		badgerOpts = badger.DefaultOptions("").
			WithInMemory(true)
	} else {
		if _, err := os.Stat(b.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(b.dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		badgerOpts = badger.DefaultOptions(filepath.Join(b.dataDir, "state")).
			WithCompression(options.Snappy)
	}
	badgerOpts = badgerOpts.
		WithLogger(newBadgerLogger(b.logger)).
		// INFO is chatty on every compaction
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	b.db = db
	if !b.inMemory {
		b.gcTicker = time.NewTicker(gcInterval)
		b.gcStopCh = make(chan struct{})
		b.gcWg.Add(1)
		go b.valueLogGC(b.gcTicker, b.gcStopCh)
	}
	return b, nil
}

func (b *Badger) valueLogGC(t *time.Ticker, stop <-chan struct{}) {
	defer b.gcWg.Done()
	for {
		select {
		case <-t.C:
			// keep going while badger finds something to rewrite
			for {
				err := b.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					b.logger.Warn(
						fmt.Sprintf("state DB: GC failure: %s", err),
						"component", "store",
					)
				}
				break
			}
		case <-stop:
			return
		}
	}
}

// Get returns nil for a missing key.
func (b *Badger) Get(key string) (*string, error) {
	var out *string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		s := string(val)
		out = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Apply writes the whole set atomically. A nil value deletes the key.
func (b *Badger) Apply(writes map[string]*string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for k, v := range writes {
			if v == nil {
				if err := txn.Delete([]byte(k)); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set([]byte(k), []byte(*v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len counts the stored keys. It walks the keyspace, so keep it to tests
// and the CLI.
func (b *Badger) Len() (int, error) {
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close stops the GC loop and closes the database.
func (b *Badger) Close() error {
	if b.gcTicker != nil {
		b.gcTicker.Stop()
		close(b.gcStopCh)
		b.gcWg.Wait()
		b.gcTicker = nil
	}
	return b.db.Close()
}

// badgerLogger routes badger's printf style logging into slog.
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	return &badgerLogger{logger: logger.With("component", "store")}
}

func (l *badgerLogger) Errorf(msg string, args ...any) {
	l.logger.Error(clean(msg, args))
}

func (l *badgerLogger) Warningf(msg string, args ...any) {
	l.logger.Warn(clean(msg, args))
}

func (l *badgerLogger) Infof(msg string, args ...any) {
	l.logger.Info(clean(msg, args))
}

func (l *badgerLogger) Debugf(msg string, args ...any) {
	l.logger.Debug(clean(msg, args))
}

func clean(msg string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(msg, args...))
}
