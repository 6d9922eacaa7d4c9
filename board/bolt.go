package board

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
	bolt "go.etcd.io/bbolt"
)

// pushAttempts bounds the sync-then-push retry on lost races before the
// failure surfaces to the action layer.
const pushAttempts = 3

var (
	bucketArtifacts = []byte("artifacts")
	bucketMeta      = []byte("meta")
	keyVersion      = []byte("version")
)

// BoltStore mirrors a board section into a bbolt file under the data store
// path and pushes commits through a Transport. Sync replaces the mirror
// wholesale, so a crashed trustee restarts from the authoritative state.
type BoltStore struct {
	db *bolt.DB
	tr Transport
}

// NewBoltStore opens (or creates) the mirror file and binds it to the
// transport.
func NewBoltStore(path string, tr Transport) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening board mirror")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketArtifacts); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing board mirror")
	}
	return &BoltStore{db: db, tr: tr}, nil
}

// Close releases the mirror file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Sync implements Store: fetch the authoritative snapshot and replace the
// mirror in one transaction.
func (s *BoltStore) Sync() error {
	entries, version, err := s.tr.Fetch()
	if err != nil {
		return errors.Wrap(err, "fetching board")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketArtifacts); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketArtifacts)
		if err != nil {
			return err
		}
		for k, v := range entries {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketMeta).Put(keyVersion, encodeVersion(version))
	})
	return errors.Wrap(err, "replacing board mirror")
}

// Keys implements Store.
func (s *BoltStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketArtifacts).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Get implements Store.
func (s *BoltStore) Get(key string) ([]byte, bool, error) {
	var data []byte
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketArtifacts).Get([]byte(key))
		if v != nil {
			ok = true
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	return data, ok, err
}

// PutAtomic implements Store: sync, push on top of the fetched version and
// retry a bounded number of times when another trustee commits first.
func (s *BoltStore) PutAtomic(entries map[string][]byte) error {
	for attempt := 0; attempt < pushAttempts; attempt++ {
		if err := s.Sync(); err != nil {
			return err
		}
		for k := range entries {
			if _, ok, err := s.Get(k); err != nil {
				return err
			} else if ok {
				return errors.Wrap(ErrExists, k)
			}
		}
		version, err := s.version()
		if err != nil {
			return err
		}
		newVersion, err := s.tr.Push(version, entries)
		if errors.Cause(err) == ErrLostRace {
			log.Lvl3("board push lost the race, retrying", attempt+1)
			continue
		}
		if err != nil {
			return errors.Wrap(err, "pushing to board")
		}
		err = s.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketArtifacts)
			for k, v := range entries {
				if err := b.Put([]byte(k), v); err != nil {
					return err
				}
			}
			return tx.Bucket(bucketMeta).Put(keyVersion, encodeVersion(newVersion))
		})
		return errors.Wrap(err, "updating board mirror")
	}
	return errors.Errorf("board push lost %d races, giving up", pushAttempts)
}

func (s *BoltStore) version() (uint64, error) {
	var v uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyVersion)
		if data != nil {
			v = binary.BigEndian.Uint64(data)
		}
		return nil
	})
	return v, err
}

func encodeVersion(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
