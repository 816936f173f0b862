package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/gridmesh/gridmesh/pkg/types"
)

var (
	// Bucket names
	bucketTasks = []byte("tasks")
	bucketOrder = []byte("order")
)

// Record is one archived terminal task
type Record struct {
	Task       *types.ComputeTask `json:"task"`
	ArchivedAt time.Time          `json:"archived_at"`
}

// Archive is a BoltDB-backed log of terminal tasks
type Archive struct {
	db *bolt.DB
}

// Open creates or opens the archive under dataDir
func Open(dataDir string) (*Archive, error) {
	dbPath := filepath.Join(dataDir, "gridmesh.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTasks, bucketOrder} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Archive{db: db}, nil
}

// Close closes the database
func (a *Archive) Close() error {
	return a.db.Close()
}

// Put archives a task. The task is stored under its ID and appended to
// the insertion-order index so ListRecent can walk backwards.
func (a *Archive) Put(task *types.ComputeTask) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		record := Record{Task: task, ArchivedAt: time.Now()}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}

		tasks := tx.Bucket(bucketTasks)
		if err := tasks.Put([]byte(task.ID), data); err != nil {
			return err
		}

		order := tx.Bucket(bucketOrder)
		seq, err := order.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return order.Put(key, []byte(task.ID))
	})
}

// Get returns the archived record for a task ID
func (a *Archive) Get(id string) (*Record, error) {
	var record Record
	err := a.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data := b.Get([]byte(id))
		if data == nil {
			return types.ErrTaskNotFound
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRecent returns up to n most recently archived records, newest first
func (a *Archive) ListRecent(n int) ([]*Record, error) {
	var records []*Record
	err := a.db.View(func(tx *bolt.Tx) error {
		order := tx.Bucket(bucketOrder)
		tasks := tx.Bucket(bucketTasks)

		c := order.Cursor()
		for k, v := c.Last(); k != nil && len(records) < n; k, v = c.Prev() {
			data := tasks.Get(v)
			if data == nil {
				continue
			}
			var record Record
			if err := json.Unmarshal(data, &record); err != nil {
				return err
			}
			records = append(records, &record)
		}
		return nil
	})
	return records, err
}

// Count returns the number of archived tasks
func (a *Archive) Count() (int, error) {
	var count int
	err := a.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketTasks).Stats().KeyN
		return nil
	})
	return count, err
}
