package protocol

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3"

	"github.com/nvotes/mixnet/artifact"
	"github.com/nvotes/mixnet/board"
	"github.com/nvotes/mixnet/condition"
	"github.com/nvotes/mixnet/envelope"
	"github.com/nvotes/mixnet/mixlib"
	"github.com/nvotes/mixnet/names"
)

// testPrimeHex is the 1024-bit Oakley group 2 safe prime with generator 2.
const testPrimeHex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381" +
	"FFFFFFFFFFFFFFFF"

// fixture is a two trustee election sharing one in-memory board. The
// authority and the ballotbox act through their own handles on the same
// store, the way separate processes would through the transport.
type fixture struct {
	store    *board.MemStore
	admin    *board.Board
	suite    *mixlib.Suite
	cfg      *artifact.Config
	cfgHash  string
	trustees []*Trustee
	drivers  []*Driver
	bbKey    *rsa.PrivateKey
}

func newFixture(t *testing.T, items int, offlineSplit bool) *fixture {
	t.Helper()
	p, ok := new(big.Int).SetString(testPrimeHex, 16)
	require.True(t, ok)
	suite, err := mixlib.NewSuite(p, big.NewInt(2))
	require.NoError(t, err)

	bbKey, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	bbPEM, err := envelope.EncodePublicKey(&bbKey.PublicKey)
	require.NoError(t, err)

	store := board.NewMemStore()
	f := &fixture{
		store: store,
		admin: board.New(store),
		suite: suite,
		bbKey: bbKey,
	}
	cfg := &artifact.Config{
		ID:        "9ad3fb12-test",
		Name:      "unit election",
		Modulus:   p.Text(10),
		Generator: "2",
		Items:     items,
		Ballotbox: bbPEM,
	}
	var peers []*rsa.PublicKey
	for i := 0; i < 2; i++ {
		signer, err := rsa.GenerateKey(rand.Reader, 1024)
		require.NoError(t, err)
		pubPEM, err := envelope.EncodePublicKey(&signer.PublicKey)
		require.NoError(t, err)
		cfg.Trustees = append(cfg.Trustees, pubPEM)
		peers = append(peers, &signer.PublicKey)

		aesKey := make([]byte, 16)
		_, err = rand.Read(aesKey)
		require.NoError(t, err)
		f.trustees = append(f.trustees, &Trustee{
			Board:        board.New(store),
			Signer:       signer,
			PublicPEM:    pubPEM,
			AESKey:       aesKey,
			OfflineSplit: offlineSplit,
			Pool:         mixlib.NewPool(0),
		})
	}
	peers = append(peers, &bbKey.PublicKey)
	for _, tr := range f.trustees {
		tr.Peers = peers
	}
	f.cfg = cfg
	f.cfgHash, err = cfg.Hash()
	require.NoError(t, err)
	for _, tr := range f.trustees {
		f.drivers = append(f.drivers, NewDriver(tr))
	}
	return f
}

// postConfig publishes the config with a statement over the given hash, so
// tests can also post a broken statement.
func (f *fixture) postConfig(t *testing.T, hash string) {
	t.Helper()
	payload, err := f.cfg.Bytes()
	require.NoError(t, err)
	stmtBytes, err := artifact.ConfigStatement{ConfigHash: hash}.Bytes()
	require.NoError(t, err)
	require.NoError(t, f.admin.AddConfig(payload, stmtBytes))
}

// postBallots encrypts one message per voter under the joint key of the
// item and publishes the set under the ballotbox signature.
func (f *fixture) postBallots(t *testing.T, item int, msgs [][]byte) {
	t.Helper()
	pkData, err := f.admin.GetPublicKey(item)
	require.NoError(t, err)
	pk, err := artifact.ParsePublicKey(pkData)
	require.NoError(t, err)
	point, err := f.suite.DecodePoint(pk.Key)
	require.NoError(t, err)

	X := make([]kyber.Point, len(msgs))
	Y := make([]kyber.Point, len(msgs))
	for i, m := range msgs {
		X[i], Y[i] = f.suite.Encrypt(point, m)
	}
	cs, err := mixlib.RenderCiphertexts(X, Y)
	require.NoError(t, err)
	ballots := &artifact.Ballots{Ciphertexts: cs}
	payload, err := ballots.Bytes()
	require.NoError(t, err)
	stmt := artifact.BallotsStatement{
		BallotsHash: envelope.Hash(payload),
		ConfigHash:  f.cfgHash,
		Item:        item,
	}
	stmtBytes, err := stmt.Bytes()
	require.NoError(t, err)
	sig, err := envelope.Sign(f.bbKey, stmtBytes)
	require.NoError(t, err)
	require.NoError(t, f.admin.AddBallots(payload, stmtBytes, sig, item))
}

func (f *fixture) cycleAll() {
	for _, d := range f.drivers {
		d.Cycle()
	}
}

// runUntil cycles all trustees until done holds on the board snapshot,
// failing the test after maxCycles passes or on the first error artifact.
func (f *fixture) runUntil(t *testing.T, maxCycles int, done func(condition.KeySet) bool) {
	t.Helper()
	for i := 0; i < maxCycles; i++ {
		f.cycleAll()
		files, err := f.admin.FileSet()
		require.NoError(t, err)
		for key := range files {
			require.False(t, names.IsError(key), "error artifact %s on the board", key)
		}
		if done(files) {
			return
		}
	}
	t.Fatalf("board did not converge within %d cycles", maxCycles)
}

func allPlaintextsSigned(items, n int) func(condition.KeySet) bool {
	return func(files condition.KeySet) bool {
		for p := 1; p <= items; p++ {
			for a := 1; a <= n; a++ {
				if !files.Contains(names.PlaintextsSig(p, a)) {
					return false
				}
			}
		}
		return true
	}
}

func allPublicKeysSigned(items, n int) func(condition.KeySet) bool {
	return func(files condition.KeySet) bool {
		for p := 1; p <= items; p++ {
			for a := 1; a <= n; a++ {
				if !files.Contains(names.PublicKeySig(p, a)) {
					return false
				}
			}
		}
		return true
	}
}

func runElection(t *testing.T, f *fixture, items int) map[int][]string {
	t.Helper()
	f.postConfig(t, f.cfgHash)
	f.runUntil(t, 10, allPublicKeysSigned(items, 2))

	want := make(map[int][]string, items)
	for p := 1; p <= items; p++ {
		var msgs [][]byte
		for v := 1; v <= 3; v++ {
			m := []byte(strconv.Itoa(v + p))
			msgs = append(msgs, m)
			want[p] = append(want[p], base64.StdEncoding.EncodeToString(m))
		}
		f.postBallots(t, p, msgs)
	}
	f.runUntil(t, 25, allPlaintextsSigned(items, 2))
	return want
}

func TestElectionEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full election in short mode")
	}
	const items = 2
	f := newFixture(t, items, false)
	want := runElection(t, f, items)

	for p := 1; p <= items; p++ {
		data, err := f.admin.GetPlaintexts(p)
		require.NoError(t, err)
		plain, err := artifact.ParsePlaintexts(data)
		require.NoError(t, err)
		require.ElementsMatch(t, want[p], plain.Messages, "item %d", p)
	}
}

func TestElectionWithOfflineSplit(t *testing.T) {
	if testing.Short() {
		t.Skip("full election in short mode")
	}
	const items = 2
	f := newFixture(t, items, true)
	f.postConfig(t, f.cfgHash)
	f.runUntil(t, 10, allPublicKeysSigned(items, 2))

	want := make(map[int][]string, items)
	for p := 1; p <= items; p++ {
		var msgs [][]byte
		for v := 1; v <= 3; v++ {
			m := []byte(strconv.Itoa(v + p))
			msgs = append(msgs, m)
			want[p] = append(want[p], base64.StdEncoding.EncodeToString(m))
		}
		f.postBallots(t, p, msgs)
	}

	// The first pass after the ballots precomputes: every trustee parks
	// its shuffle data locally before any mix is published.
	f.cycleAll()
	for i, tr := range f.trustees {
		files, err := tr.Board.FileSet()
		require.NoError(t, err)
		for p := 1; p <= items; p++ {
			require.True(t, files.Contains(names.PermData(p, i+1)),
				"trustee %d misses precomputed data for item %d", i+1, p)
		}
	}
	// The precomputed data never reaches the shared store.
	adminFiles, err := f.admin.FileSet()
	require.NoError(t, err)
	for p := 1; p <= items; p++ {
		for a := 1; a <= 2; a++ {
			require.False(t, adminFiles.Contains(names.PermData(p, a)))
		}
	}

	f.runUntil(t, 25, allPlaintextsSigned(items, 2))
	for p := 1; p <= items; p++ {
		data, err := f.admin.GetPlaintexts(p)
		require.NoError(t, err)
		plain, err := artifact.ParsePlaintexts(data)
		require.NoError(t, err)
		require.ElementsMatch(t, want[p], plain.Messages, "item %d", p)
	}
}

func TestCompletedElectionIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("full election in short mode")
	}
	const items = 1
	f := newFixture(t, items, false)
	runElection(t, f, items)

	before, err := f.store.Keys()
	require.NoError(t, err)
	f.cycleAll()
	f.cycleAll()
	after, err := f.store.Keys()
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestPauseStopsTheProtocol(t *testing.T) {
	f := newFixture(t, 1, false)
	f.postConfig(t, f.cfgHash)
	require.NoError(t, f.admin.AddPause())

	f.cycleAll()
	files, err := f.admin.FileSet()
	require.NoError(t, err)
	require.False(t, files.Contains(names.ConfigSig(1)))
	require.False(t, files.Contains(names.ConfigSig(2)))
}

func TestUntrustedPeerPostsError(t *testing.T) {
	f := newFixture(t, 1, false)
	f.postConfig(t, f.cfgHash)

	// Trustee 2 does not trust trustee 1's key.
	f.trustees[1].Peers = []*rsa.PublicKey{
		&f.trustees[1].Signer.PublicKey,
		&f.bbKey.PublicKey,
	}
	f.drivers[1].Cycle()
	files, err := f.admin.FileSet()
	require.NoError(t, err)
	require.True(t, files.Contains(names.ErrorAuth(2)))
	require.False(t, files.Contains(names.ConfigSig(2)))

	// The sticky error halts the other trustee too.
	f.drivers[0].Cycle()
	files, err = f.admin.FileSet()
	require.NoError(t, err)
	require.False(t, files.Contains(names.ConfigSig(1)))
}

func TestConfigStatementMismatchStaysLocal(t *testing.T) {
	f := newFixture(t, 1, false)
	f.postConfig(t, "0000"+f.cfgHash[4:])

	f.cycleAll()
	f.cycleAll()
	files, err := f.admin.FileSet()
	require.NoError(t, err)
	// The broken statement is the authority's problem: nobody approves,
	// nobody posts an error bound to a config that was never accepted.
	for key := range files {
		require.False(t, names.IsError(key))
	}
	require.False(t, files.Contains(names.ConfigSig(1)))
	require.False(t, files.Contains(names.ConfigSig(2)))
}

func TestDecryptionRequiresOwnChainSignatures(t *testing.T) {
	if testing.Short() {
		t.Skip("full election in short mode")
	}
	const items = 1
	f := newFixture(t, items, false)
	runElection(t, f, items)

	// Drop trustee 1's co-signature on trustee 2's mix. The chain closure
	// must refuse: trustee 1 no longer holds signed evidence that every
	// ballot passed through that mix.
	require.NoError(t, f.store.Remove(names.MixSig(1, 2, 1)))
	require.NoError(t, f.trustees[0].Board.Sync())
	files, err := f.trustees[0].Board.FileSet()
	require.NoError(t, err)
	res := AddDecryption{Item: 1}.Run(f.trustees[0], files)
	require.Equal(t, Error, res.Kind)
	require.Contains(t, res.Msg, "signature")
}
