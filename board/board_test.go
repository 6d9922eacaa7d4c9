package board

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvotes/mixnet/names"
)

func TestMemStoreAppendOnly(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.PutAtomic(map[string][]byte{"a": []byte("1")}))

	err := s.PutAtomic(map[string][]byte{"a": []byte("2"), "b": []byte("3")})
	require.Error(t, err)
	assert.Equal(t, ErrExists, errors.Cause(err))

	// The failed put must not have published b.
	_, ok, err := s.Get("b")
	require.NoError(t, err)
	assert.False(t, ok)

	data, ok, err := s.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), data)
}

func TestBoardTripleIsAtomic(t *testing.T) {
	store := NewMemStore()
	b := New(store)

	require.NoError(t, b.AddShare([]byte("s"), []byte("st"), []byte("sig"), 1, 2))
	set, err := b.FileSet()
	require.NoError(t, err)
	assert.True(t, set.Contains(names.Share(1, 2)))
	assert.True(t, set.Contains(names.ShareStmt(1, 2)))
	assert.True(t, set.Contains(names.ShareSig(1, 2)))

	// Re-publication of any part of the triple is rejected wholesale.
	err = b.AddShare([]byte("s"), []byte("st"), []byte("sig"), 1, 2)
	assert.Error(t, err)
}

func TestBoardSharedBetweenTrustees(t *testing.T) {
	store := NewMemStore()
	b1 := New(store)
	b2 := New(store)

	require.NoError(t, b1.AddConfig([]byte("cfg"), []byte("stmt")))
	require.NoError(t, b2.Sync())
	data, err := b2.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, []byte("cfg"), data)

	_, err = b2.GetBallots(1)
	assert.Error(t, err)
}

func TestPreShuffleDataStaysLocal(t *testing.T) {
	store := NewMemStore()
	b1 := New(store)
	b2 := New(store)

	b1.AddPreShuffleDataLocal([]byte("pre"), 1, 1)

	set1, err := b1.FileSet()
	require.NoError(t, err)
	assert.True(t, set1.Contains(names.PermData(1, 1)))

	set2, err := b2.FileSet()
	require.NoError(t, err)
	assert.False(t, set2.Contains(names.PermData(1, 1)))

	data, ok := b1.GetPreShuffleDataLocal(1, 1)
	require.True(t, ok)
	assert.Equal(t, []byte("pre"), data)

	b1.RmPreShuffleDataLocal(1, 1)
	_, ok = b1.GetPreShuffleDataLocal(1, 1)
	assert.False(t, ok)

	// Sync must not resurrect or drop local entries.
	b1.AddPreShuffleDataLocal([]byte("pre"), 2, 1)
	require.NoError(t, b1.Sync())
	_, ok = b1.GetPreShuffleDataLocal(2, 1)
	assert.True(t, ok)
}

func TestDirTransportRoundTrip(t *testing.T) {
	root, err := ioutil.TempDir("", "board")
	require.NoError(t, err)
	defer os.RemoveAll(root)

	tr, err := NewDirTransport(root)
	require.NoError(t, err)

	entries, version, err := tr.Fetch()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, uint64(0), version)

	v1, err := tr.Push(0, map[string][]byte{
		"config.json":  []byte("cfg"),
		"1/config.sig": []byte("sig"),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v1)

	entries, version, err = tr.Fetch()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)
	assert.Equal(t, []byte("cfg"), entries["config.json"])
	assert.Equal(t, []byte("sig"), entries["1/config.sig"])

	// A push against a stale base loses the race.
	_, err = tr.Push(0, map[string][]byte{"x": nil})
	assert.Equal(t, ErrLostRace, errors.Cause(err))

	// Existing keys are rejected even with a fresh base.
	_, err = tr.Push(1, map[string][]byte{"config.json": []byte("other")})
	assert.Equal(t, ErrExists, errors.Cause(err))
}

func TestDirTransportLock(t *testing.T) {
	root, err := ioutil.TempDir("", "board")
	require.NoError(t, err)
	defer os.RemoveAll(root)

	tr, err := NewDirTransport(root)
	require.NoError(t, err)

	// Simulate a crashed writer.
	require.NoError(t, ioutil.WriteFile(filepath.Join(root, ".lock"), nil, 0600))
	_, err = tr.Push(0, map[string][]byte{"a": nil})
	require.Error(t, err)

	require.NoError(t, tr.RemoveLock())
	_, err = tr.Push(0, map[string][]byte{"a": nil})
	assert.NoError(t, err)
}

func TestBoltStoreSyncAndPush(t *testing.T) {
	dir, err := ioutil.TempDir("", "board")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	tr, err := NewDirTransport(filepath.Join(dir, "remote"))
	require.NoError(t, err)
	s, err := NewBoltStore(filepath.Join(dir, "mirror.db"), tr)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutAtomic(map[string][]byte{"a": []byte("1")}))
	data, ok, err := s.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), data)

	// A second store on the same remote sees the commit after sync.
	s2, err := NewBoltStore(filepath.Join(dir, "mirror2.db"), tr)
	require.NoError(t, err)
	defer s2.Close()
	require.NoError(t, s2.Sync())
	keys, err := s2.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)

	// The race between the two stores resolves by retry: s pushes b while
	// s2's mirror is stale; s2's own push still lands.
	require.NoError(t, s.PutAtomic(map[string][]byte{"b": []byte("2")}))
	require.NoError(t, s2.PutAtomic(map[string][]byte{"c": []byte("3")}))

	require.NoError(t, s.Sync())
	data, ok, err = s.Get("c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("3"), data)

	// Same-key collisions surface as ErrExists, not as a retry loop.
	err = s2.PutAtomic(map[string][]byte{"a": []byte("x")})
	assert.Equal(t, ErrExists, errors.Cause(err))
}
