package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"math"
	"path/filepath"
	"time"

	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
)

const (
	// Key layout:
	// <prefix 1 byte, transaction hash utf8> -> gob(Attempt)
	prefixAttempt = byte(0)

	// <prefix 1 byte, scenario utf8, 0x00, submitted unix nanos 8 bytes
	//   big-endian> -> transaction hash utf8
	// The zero byte keeps scenarios that prefix each other apart.
	prefixScenarioAttempt = byte(1)
)

const (
	StatusSubmitted = "submitted"
	StatusConfirmed = "confirmed"
)

// Attempt is the audit record kept for every submitted transaction. An
// attempt that timed out waiting for confirmation stays "submitted", since
// the transaction may still land after the engine gave up.
type Attempt struct {
	Hash        string
	Scenario    string
	Network     string
	Fee         int64
	Status      string
	SubmittedAt time.Time
	ConfirmedAt time.Time
	BlockIndex  int64
	BlockHash   string
}

// Journal persists attempts in badger, keyed by transaction hash, with a
// per-scenario submission-time index for reverse listing.
type Journal struct {
	db *badger.DB
}

func Open(dataDirectory string) (*Journal, error) {
	dir := filepath.Join(dataDirectory, "journal")
	opts := badger.DefaultOptions(dir).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open journal at %s", dir)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func attemptKey(hash string) []byte {
	key := append([]byte{}, prefixAttempt)
	return append(key, []byte(hash)...)
}

func scenarioKey(scenario string, submittedAt time.Time) []byte {
	key := append([]byte{}, prefixScenarioAttempt)
	key = append(key, []byte(scenario)...)
	key = append(key, 0x00)
	return append(key, encodeUint64(uint64(submittedAt.UnixNano()))...)
}

func encodeUint64(value uint64) []byte {
	encoded := make([]byte, 8)
	binary.BigEndian.PutUint64(encoded, value)
	return encoded
}

func encodeAttempt(attempt *Attempt) ([]byte, error) {
	attemptBuf := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(attemptBuf).Encode(attempt); err != nil {
		return nil, errors.Wrapf(err, "unable to encode attempt %s", attempt.Hash)
	}
	return attemptBuf.Bytes(), nil
}

func decodeAttempt(attemptBytes []byte) (*Attempt, error) {
	attempt := &Attempt{}
	if err := gob.NewDecoder(bytes.NewReader(attemptBytes)).Decode(attempt); err != nil {
		return nil, errors.Wrap(err, "unable to decode attempt")
	}
	return attempt, nil
}

// PutAttempt stores the attempt and indexes it under its scenario.
func (j *Journal) PutAttempt(attempt *Attempt) error {
	attemptBytes, err := encodeAttempt(attempt)
	if err != nil {
		return err
	}

	return j.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(attemptKey(attempt.Hash), attemptBytes); err != nil {
			return errors.Wrapf(err, "unable to store attempt %s", attempt.Hash)
		}
		return txn.Set(scenarioKey(attempt.Scenario, attempt.SubmittedAt), []byte(attempt.Hash))
	})
}

// GetAttempt returns the attempt for the hash, or nil when none is recorded.
func (j *Journal) GetAttempt(hash string) (*Attempt, error) {
	var attempt *Attempt

	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(attemptKey(hash))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(valBytes []byte) error {
			attempt, err = decodeAttempt(valBytes)
			return err
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load attempt %s", hash)
	}

	return attempt, nil
}

// MarkConfirmed upgrades a submitted attempt with its confirmation block.
func (j *Journal) MarkConfirmed(hash string, block *types.BlockIdentifier, confirmedAt time.Time) error {
	return j.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(attemptKey(hash))
		if err != nil {
			return errors.Wrapf(err, "no submitted attempt for %s", hash)
		}

		var attempt *Attempt
		err = item.Value(func(valBytes []byte) error {
			attempt, err = decodeAttempt(valBytes)
			return err
		})
		if err != nil {
			return err
		}

		attempt.Status = StatusConfirmed
		attempt.ConfirmedAt = confirmedAt
		if block != nil {
			attempt.BlockIndex = block.Index
			attempt.BlockHash = block.Hash
		}

		attemptBytes, err := encodeAttempt(attempt)
		if err != nil {
			return err
		}
		return txn.Set(attemptKey(hash), attemptBytes)
	})
}

// LatestAttempts returns up to limit attempts for the scenario, newest
// first.
func (j *Journal) LatestAttempts(scenario string, limit int) ([]*Attempt, error) {
	attempts := []*Attempt{}

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past every possible timestamp for the scenario, then walk
		// backwards while the key still carries the scenario prefix.
		seekKey := scenarioKey(scenario, time.Unix(0, math.MaxInt64))
		prefix := seekKey[:1+len(scenario)+1]

		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(attempts) < limit; it.Next() {
			hashBytes, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			item, err := txn.Get(attemptKey(string(hashBytes)))
			if err != nil {
				return errors.Wrapf(err, "index entry without attempt %s", string(hashBytes))
			}

			err = item.Value(func(valBytes []byte) error {
				attempt, err := decodeAttempt(valBytes)
				if err != nil {
					return err
				}
				attempts = append(attempts, attempt)
				return nil
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list attempts for %s", scenario)
	}

	return attempts, nil
}
