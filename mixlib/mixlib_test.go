package mixlib

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3"
)

// testModulusHex is the 1024-bit Oakley group 2 prime, a safe prime with 2
// generating the residue subgroup.
const testModulusHex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381" +
	"FFFFFFFFFFFFFFFF"

func testSuite(t *testing.T) *Suite {
	p, ok := new(big.Int).SetString(testModulusHex, 16)
	require.True(t, ok)
	s, err := NewSuite(p, big.NewInt(2))
	require.NoError(t, err)
	return s
}

func TestNewSuiteRejectsBadParameters(t *testing.T) {
	p, _ := new(big.Int).SetString(testModulusHex, 16)

	_, err := NewSuite(nil, big.NewInt(2))
	assert.Error(t, err)

	_, err = NewSuite(big.NewInt(15), big.NewInt(2))
	assert.Error(t, err)

	// 13 is prime but not a safe prime.
	_, err = NewSuite(big.NewInt(13), big.NewInt(2))
	assert.Error(t, err)

	_, err = NewSuite(p, big.NewInt(1))
	assert.Error(t, err)

	// 7 is a non-residue for this modulus.
	_, err = NewSuite(p, big.NewInt(7))
	assert.Error(t, err)
}

func TestNewSuiteFromStrings(t *testing.T) {
	p, _ := new(big.Int).SetString(testModulusHex, 16)
	s, err := NewSuiteFromStrings(p.Text(10), "2")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Modulus().Cmp(p))

	_, err = NewSuiteFromStrings("not a number", "2")
	assert.Error(t, err)
}

func TestPointRoundTrip(t *testing.T) {
	s := testSuite(t)
	p := s.Point().Pick(s.RandomStream())

	enc, err := EncodePoint(p)
	require.NoError(t, err)
	q, err := s.DecodePoint(enc)
	require.NoError(t, err)
	assert.True(t, p.Equal(q))

	_, err = s.DecodePoint("@@@")
	assert.Error(t, err)
}

func TestDecodePointRejectsNonResidue(t *testing.T) {
	s := testSuite(t)
	// 5 is a non-residue; encode it at full point width.
	b := make([]byte, s.PointLen())
	b[len(b)-1] = 5
	p := s.Point()
	assert.Error(t, p.UnmarshalBinary(b))
}

func TestEmbedData(t *testing.T) {
	s := testSuite(t)
	msg := []byte("a vote")
	p := s.Point().Embed(msg, s.RandomStream())
	data, err := p.Data()
	require.NoError(t, err)
	assert.Equal(t, msg, data)
}

func TestEncryptDecrypt(t *testing.T) {
	s := testSuite(t)
	x := s.Scalar().Pick(s.RandomStream())
	X := s.Point().Mul(x, nil)

	msg := []byte("ballot 42")
	K, C := s.Encrypt(X, msg)
	M := s.Decrypt(x, K, C)
	data, err := M.Data()
	require.NoError(t, err)
	assert.Equal(t, msg, data)
}

func TestShares(t *testing.T) {
	s := testSuite(t)
	domain := []byte("election-1/item-1")

	a, err := s.GenShare(domain)
	require.NoError(t, err)
	b, err := s.GenShare(domain)
	require.NoError(t, err)

	require.NoError(t, s.VerifyShare(a.Public, a.Proof, domain))
	require.NoError(t, s.VerifyShare(b.Public, b.Proof, domain))
	assert.Error(t, s.VerifyShare(a.Public, b.Proof, domain))
	assert.Error(t, s.VerifyShare(a.Public, a.Proof, []byte("other domain")))

	joint := s.CombineShares([]kyber.Point{a.Public, b.Public})
	x := s.Scalar().Add(a.Private, b.Private)
	assert.True(t, joint.Equal(s.Point().Mul(x, nil)))
}

func testCiphertexts(t *testing.T, s *Suite, public kyber.Point, n int) (X, Y []kyber.Point, msgs [][]byte) {
	X = make([]kyber.Point, n)
	Y = make([]kyber.Point, n)
	msgs = make([][]byte, n)
	for i := 0; i < n; i++ {
		msgs[i] = []byte{byte('a' + i)}
		X[i], Y[i] = s.Encrypt(public, msgs[i])
	}
	return
}

func TestShuffleSingle(t *testing.T) {
	s := testSuite(t)
	x := s.Scalar().Pick(s.RandomStream())
	public := s.Point().Mul(x, nil)
	X, Y, msgs := testCiphertexts(t, s, public, 3)

	Xbar, Ybar, prf, err := s.ShuffleSingle(X, Y, public)
	require.NoError(t, err)
	require.NoError(t, s.VerifyShuffle(X, Y, Xbar, Ybar, public, prf))

	// A tampered output must not verify.
	bad := make([]kyber.Point, len(Xbar))
	copy(bad, Xbar)
	bad[0] = s.Point().Pick(s.RandomStream())
	assert.Error(t, s.VerifyShuffle(X, Y, bad, Ybar, public, prf))

	// The shuffle preserves the plaintext multiset.
	got := decryptAll(t, s, x, Xbar, Ybar)
	assert.ElementsMatch(t, msgs, got)
}

func TestShuffleOfflineOnline(t *testing.T) {
	s := testSuite(t)
	x := s.Scalar().Pick(s.RandomStream())
	public := s.Point().Mul(x, nil)
	X, Y, msgs := testCiphertexts(t, s, public, 3)

	pre := s.ShuffleOffline(3, public)

	// The precomputation must survive the local store codec.
	enc, err := s.EncodePreShuffleData(pre)
	require.NoError(t, err)
	pre, err = s.DecodePreShuffleData(enc)
	require.NoError(t, err)

	Xbar, Ybar, prf, err := s.ShuffleOnline(pre, X, Y, public)
	require.NoError(t, err)
	require.NoError(t, s.VerifyShuffle(X, Y, Xbar, Ybar, public, prf))

	got := decryptAll(t, s, x, Xbar, Ybar)
	assert.ElementsMatch(t, msgs, got)

	_, _, _, err = s.ShuffleOnline(pre, X[:2], Y[:2], public)
	assert.Error(t, err)
}

func TestRandomPermutation(t *testing.T) {
	s := testSuite(t)
	pi := RandomPermutation(10, s.RandomStream())
	seen := make(map[int]bool)
	for _, v := range pi {
		assert.True(t, v >= 0 && v < 10)
		assert.False(t, seen[v])
		seen[v] = true
	}
	assert.Len(t, seen, 10)

	assert.Empty(t, RandomPermutation(0, s.RandomStream()))
}

func TestPartialDecryption(t *testing.T) {
	s := testSuite(t)
	a, err := s.GenShare([]byte("a"))
	require.NoError(t, err)
	b, err := s.GenShare([]byte("b"))
	require.NoError(t, err)
	joint := s.CombineShares([]kyber.Point{a.Public, b.Public})

	X, Y, msgs := testCiphertexts(t, s, joint, 3)

	pa, err := s.PartialDecrypt(a.Private, a.Public, X)
	require.NoError(t, err)
	pb, err := s.PartialDecrypt(b.Private, b.Public, X)
	require.NoError(t, err)

	require.NoError(t, s.VerifyPartial(pa, a.Public, X))
	require.NoError(t, s.VerifyPartial(pb, b.Public, X))
	assert.Error(t, s.VerifyPartial(pa, b.Public, X))

	// Swapped elements must not verify against the honest proof.
	bad := &Partial{Elements: pb.Elements, Proof: pa.Proof}
	assert.Error(t, s.VerifyPartial(bad, a.Public, X))

	M, err := s.CombinePartials([]*Partial{pa, pb}, Y)
	require.NoError(t, err)
	got, err := Decode(M)
	require.NoError(t, err)
	assert.Equal(t, msgs, got)
}

func TestParseCiphertexts(t *testing.T) {
	s := testSuite(t)
	x := s.Scalar().Pick(s.RandomStream())
	public := s.Point().Mul(x, nil)
	X, Y, _ := testCiphertexts(t, s, public, 4)

	cs, err := RenderCiphertexts(X, Y)
	require.NoError(t, err)

	pool := NewPool(2)
	X2, Y2, err := s.ParseCiphertexts(cs, pool)
	require.NoError(t, err)
	for i := range X {
		assert.True(t, X[i].Equal(X2[i]))
		assert.True(t, Y[i].Equal(Y2[i]))
	}

	cs[1].Beta = "###"
	_, _, err = s.ParseCiphertexts(cs, pool)
	assert.Error(t, err)
}

func decryptAll(t *testing.T, s *Suite, x kyber.Scalar, X, Y []kyber.Point) [][]byte {
	out := make([][]byte, len(X))
	for i := range X {
		data, err := s.Decrypt(x, X[i], Y[i]).Data()
		require.NoError(t, err)
		out[i] = data
	}
	return out
}
