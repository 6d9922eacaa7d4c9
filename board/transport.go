package board

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrLostRace is returned by Transport.Push when the remote advanced past
// the pushed base version. The caller syncs and retries.
var ErrLostRace = errors.New("remote advanced, push rejected")

// Transport is the seam to the authoritative remote copy of a board
// section. Fetch returns a full snapshot plus a version token; Push commits
// entries on top of a base version and fails with ErrLostRace when the
// remote has moved.
type Transport interface {
	Fetch() (map[string][]byte, uint64, error)
	Push(base uint64, entries map[string][]byte) (uint64, error)
}

// DirTransport keeps the authoritative copy in a directory tree, one file
// per key, with a version counter and an exclusive lock file for commit
// serialization. It lets several local trustee processes share a board
// without the real remote.
type DirTransport struct {
	root string
}

const (
	versionFile = ".version"
	lockFile    = ".lock"
)

// NewDirTransport creates the directory if needed and returns a transport
// rooted at it.
func NewDirTransport(root string) (*DirTransport, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, errors.Wrap(err, "creating board directory")
	}
	return &DirTransport{root: root}, nil
}

// RemoveLock clears a stale lock left by a crashed writer.
func (d *DirTransport) RemoveLock() error {
	err := os.Remove(filepath.Join(d.root, lockFile))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing stale lock")
	}
	return nil
}

// Fetch implements Transport by walking the tree.
func (d *DirTransport) Fetch() (map[string][]byte, uint64, error) {
	entries := make(map[string][]byte)
	err := filepath.Walk(d.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(filepath.Base(key), ".") {
			return nil
		}
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return err
		}
		entries[key] = data
		return nil
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "walking board directory")
	}
	version, err := d.version()
	if err != nil {
		return nil, 0, err
	}
	return entries, version, nil
}

// Push implements Transport. The lock file provides mutual exclusion
// between processes; the version check detects writers that committed
// since the caller's last fetch.
func (d *DirTransport) Push(base uint64, entries map[string][]byte) (uint64, error) {
	unlock, err := d.lock()
	if err != nil {
		return 0, err
	}
	defer unlock()

	version, err := d.version()
	if err != nil {
		return 0, err
	}
	if version != base {
		return 0, ErrLostRace
	}
	for key := range entries {
		if _, err := os.Stat(d.path(key)); err == nil {
			return 0, errors.Wrap(ErrExists, key)
		}
	}
	for key, data := range entries {
		path := d.path(key)
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return 0, errors.Wrapf(err, "creating directory for %s", key)
		}
		if err := ioutil.WriteFile(path, data, 0600); err != nil {
			return 0, errors.Wrapf(err, "writing %s", key)
		}
	}
	version++
	if err := d.writeVersion(version); err != nil {
		return 0, err
	}
	return version, nil
}

// Remove deletes one key and bumps the version. Administrative use only.
func (d *DirTransport) Remove(key string) error {
	unlock, err := d.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(d.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", key)
	}
	version, err := d.version()
	if err != nil {
		return err
	}
	return d.writeVersion(version + 1)
}

func (d *DirTransport) path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

func (d *DirTransport) lock() (func(), error) {
	path := filepath.Join(d.root, lockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "board is locked by another writer")
	}
	f.Close()
	return func() { os.Remove(path) }, nil
}

func (d *DirTransport) version() (uint64, error) {
	data, err := ioutil.ReadFile(filepath.Join(d.root, versionFile))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "reading board version")
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parsing board version")
	}
	return v, nil
}

func (d *DirTransport) writeVersion(v uint64) error {
	path := filepath.Join(d.root, versionFile)
	if err := ioutil.WriteFile(path, []byte(strconv.FormatUint(v, 10)), 0600); err != nil {
		return errors.Wrap(err, "writing board version")
	}
	return nil
}
