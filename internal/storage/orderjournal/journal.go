// Package orderjournal records sell order submissions in a write-ahead log.
// Every submission is written as pending before it reaches the exchange and
// rewritten as done or failed afterwards, so a crash leaves a visible pending entry.
package orderjournal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/walletbot/internal/domain"
)

const (
	defaultJournalDir   = "./wal/orders"
	journalSegmentLimit = 1000
	journalMaxSegments  = 100
	orderKeyPrefix      = "order_intent_"
)

// Status is the lifecycle state of a journal record.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Record is one order submission.
type Record struct {
	ID            string           `json:"id"`
	UserID        int64            `json:"user_id"`
	Status        Status           `json:"status"`
	Kind          domain.OrderKind `json:"kind"`
	Symbol        string           `json:"symbol"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Price         decimal.Decimal  `json:"price"`
	ClientOrderID string           `json:"client_order_id"`
	OrderID       string           `json:"order_id,omitempty"`
	Error         string           `json:"error,omitempty"`
	Time          time.Time        `json:"time"`
}

// IndexedRecord is a record together with its WAL index.
type IndexedRecord struct {
	Index  uint64 `json:"index"`
	Record Record `json:"record"`
}

// Journal persists order records in a WAL.
type Journal struct {
	wal *gowal.Wal
	mu  sync.RWMutex
	now func() time.Time
}

// Open initializes a WAL-backed journal under dir.
func Open(dir string) (*Journal, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "orders_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init order journal WAL")
	}

	return &Journal{wal: wal, now: time.Now}, nil
}

// Prepare writes a pending record for req before it is sent to the exchange.
func (j *Journal) Prepare(userID int64, req domain.OrderRequest) (*Record, error) {
	rec := &Record{
		ID:            uuid.New().String(),
		UserID:        userID,
		Status:        StatusPending,
		Kind:          req.Kind,
		Symbol:        req.Symbol,
		Quantity:      req.Quantity,
		Price:         req.Price,
		ClientOrderID: req.ClientOrderID,
		Time:          j.now().UTC(),
	}

	if err := j.persist(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkDone records the exchange acknowledgement.
func (j *Journal) MarkDone(rec *Record, res domain.OrderResult) error {
	if rec == nil {
		return nil
	}
	rec.Status = StatusDone
	rec.OrderID = res.OrderID
	rec.Error = ""
	return j.persist(rec)
}

// MarkFailed records a rejected or failed submission.
func (j *Journal) MarkFailed(rec *Record, cause error) error {
	if rec == nil {
		return nil
	}
	rec.Status = StatusFailed
	if cause != nil {
		rec.Error = cause.Error()
	} else {
		rec.Error = ""
	}
	return j.persist(rec)
}

// Recent returns the latest state of the last n orders of a user, newest first.
func (j *Journal) Recent(userID int64, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}

	entries, err := j.RecordsAfter(0)
	if err != nil {
		return nil, err
	}

	// later entries overwrite the state of earlier ones with the same id
	latest := make(map[string]Record)
	order := make([]string, 0)
	for _, e := range entries {
		if e.Record.UserID != userID {
			continue
		}
		if _, seen := latest[e.Record.ID]; !seen {
			order = append(order, e.Record.ID)
		}
		latest[e.Record.ID] = e.Record
	}

	out := make([]Record, 0, n)
	for i := len(order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, latest[order[i]])
	}
	return out, nil
}

// RecordsAfter returns all records written after the provided WAL index.
func (j *Journal) RecordsAfter(index uint64) ([]IndexedRecord, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("order journal is not initialized")
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	current := j.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]IndexedRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := j.wal.Get(idx)
		if err != nil {
			continue
		}
		// pruned indexes come back with an empty key
		if !strings.HasPrefix(key, orderKeyPrefix) {
			continue
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, errors.Wrap(err, "decode order record")
		}
		records = append(records, IndexedRecord{Index: idx, Record: rec})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (j *Journal) CurrentIndex() uint64 {
	if j == nil || j.wal == nil {
		return 0
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return errors.New("order journal is not initialized")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}

func (j *Journal) persist(rec *Record) error {
	if j == nil || j.wal == nil {
		return errors.New("order journal is not initialized")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal order record")
	}
	key := fmt.Sprintf("%s%s", orderKeyPrefix, rec.ID)

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Write(j.wal.CurrentIndex()+1, key, payload)
}
