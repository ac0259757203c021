package app

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const commitBucketName = "commits"

// Commit records one entry committed to the workbook, kept as an audit
// trail independent of the workbook file itself.
type Commit struct {
	ID         string    `json:"id"`
	Row        int       `json:"row"`
	Date       string    `json:"date"`
	Payee      string    `json:"payee"`
	Content    string    `json:"content"`
	Amount     float64   `json:"amount"`
	SourceFile string    `json:"source_file,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// History defines the interface for the commit log.
type History interface {
	// SaveCommit appends a commit to the log
	SaveCommit(commit *Commit) error

	// ListCommits returns all commits in insertion order
	ListCommits() ([]*Commit, error)

	// Close closes the underlying store
	Close() error
}

// BoltHistory implements the History interface using BoltDB
type BoltHistory struct {
	db *bbolt.DB
}

// NewBoltHistory creates a new BoltHistory instance
func NewBoltHistory(path string) (*BoltHistory, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(commitBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltHistory{db: db}, nil
}

// SaveCommit appends a commit to the log. Keys are bucket sequence numbers
// so insertion order survives iteration.
func (b *BoltHistory) SaveCommit(commit *Commit) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(commitBucketName))
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating sequence: %w", err)
		}
		data, err := json.Marshal(commit)
		if err != nil {
			return fmt.Errorf("marshaling commit: %w", err)
		}
		return bucket.Put([]byte(fmt.Sprintf("%016d", seq)), data)
	})
}

// ListCommits returns all commits in insertion order
func (b *BoltHistory) ListCommits() ([]*Commit, error) {
	commits := make([]*Commit, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(commitBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var commit Commit
			if err := json.Unmarshal(v, &commit); err != nil {
				return fmt.Errorf("unmarshaling commit: %w", err)
			}
			commits = append(commits, &commit)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return commits, nil
}

// Close closes the database connection
func (b *BoltHistory) Close() error {
	return b.db.Close()
}
