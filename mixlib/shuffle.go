package mixlib

import (
	"crypto/cipher"
	"math/big"

	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/proof"
	"go.dedis.ch/kyber/v3/shuffle"
	"go.dedis.ch/kyber/v3/util/random"
)

// shuffleProto names the Fiat-Shamir transcript of the shuffle proofs.
const shuffleProto = "shuffle"

// PreShuffleData holds the ciphertext-independent half of a shuffle: the
// permutation, the re-encryption exponents and the precomputed masks under
// the generator and the joint key. It is produced while ballots are still
// being cast and consumed once they arrive.
type PreShuffleData struct {
	Pi    []int
	Beta  []kyber.Scalar
	GBeta []kyber.Point
	HBeta []kyber.Point
}

// ShuffleOffline precomputes the permutation and masks for a shuffle of n
// ciphertexts under the joint key.
func (s *Suite) ShuffleOffline(n int, public kyber.Point) *PreShuffleData {
	rand := s.RandomStream()
	pre := &PreShuffleData{
		Pi:    RandomPermutation(n, rand),
		Beta:  make([]kyber.Scalar, n),
		GBeta: make([]kyber.Point, n),
		HBeta: make([]kyber.Point, n),
	}
	for i := 0; i < n; i++ {
		pre.Beta[i] = s.Scalar().Pick(rand)
		pre.GBeta[i] = s.Point().Mul(pre.Beta[i], nil)
		pre.HBeta[i] = s.Point().Mul(pre.Beta[i], public)
	}
	return pre
}

// ShuffleOnline applies precomputed masks to the ciphertexts and proves the
// shuffle. The precomputation must cover exactly len(X) ciphertexts.
func (s *Suite) ShuffleOnline(pre *PreShuffleData, X, Y []kyber.Point, public kyber.Point) (Xbar, Ybar []kyber.Point, prf []byte, err error) {
	n := len(X)
	if len(pre.Pi) != n {
		return nil, nil, nil, errors.Errorf("precomputation is for %d ciphertexts, got %d", len(pre.Pi), n)
	}
	Xbar = make([]kyber.Point, n)
	Ybar = make([]kyber.Point, n)
	for i := 0; i < n; i++ {
		j := pre.Pi[i]
		Xbar[i] = s.Point().Add(pre.GBeta[j], X[j])
		Ybar[i] = s.Point().Add(pre.HBeta[j], Y[j])
	}
	g := s.Point().Base()
	ps := new(shuffle.PairShuffle)
	ps.Init(s, n)
	prover := proof.Prover(func(ctx proof.ProverContext) error {
		return ps.Prove(pre.Pi, g, public, pre.Beta, X, Y, s.RandomStream(), ctx)
	})
	prf, err = proof.HashProve(s, shuffleProto, prover)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "shuffle proof")
	}
	return Xbar, Ybar, prf, nil
}

// ShuffleSingle shuffles without precomputation, drawing the permutation
// and exponents on the spot.
func (s *Suite) ShuffleSingle(X, Y []kyber.Point, public kyber.Point) (Xbar, Ybar []kyber.Point, prf []byte, err error) {
	g := s.Point().Base()
	XX, YY, prover := shuffle.Shuffle(s, g, public, X, Y, s.RandomStream())
	prf, err = proof.HashProve(s, shuffleProto, prover)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "shuffle proof")
	}
	return XX, YY, prf, nil
}

// VerifyShuffle checks the shuffle proof linking (X, Y) to (Xbar, Ybar)
// under the joint key.
func (s *Suite) VerifyShuffle(X, Y, Xbar, Ybar []kyber.Point, public kyber.Point, prf []byte) error {
	g := s.Point().Base()
	verifier := shuffle.Verifier(s, g, public, X, Y, Xbar, Ybar)
	if err := proof.HashVerify(s, shuffleProto, verifier, prf); err != nil {
		return errors.Wrap(err, "shuffle proof")
	}
	return nil
}

// RandomPermutation draws a uniform permutation of 0..n-1 from the stream.
func RandomPermutation(n int, rand cipher.Stream) []int {
	pi := make([]int, n)
	for i := range pi {
		pi[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := int(random.Int(big.NewInt(int64(i+1)), rand).Int64())
		pi[i], pi[j] = pi[j], pi[i]
	}
	return pi
}
