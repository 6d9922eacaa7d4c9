package mixlib

import (
	"strconv"

	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/proof"
)

// decryptionProto names the Fiat-Shamir transcript of the decryption
// proofs.
const decryptionProto = "decryption"

// Partial is one trustee's contribution to the joint decryption: for each
// ciphertext the element K^x under the trustee's private share, with a
// single aggregate proof of equal discrete logs against the public share.
type Partial struct {
	Elements []kyber.Point
	Proof    []byte
}

// decryptionPredicate builds the statement that the same exponent links the
// public share to the base and every decryption element to its ciphertext
// alpha. Both prover and verifier must derive the identical predicate.
func decryptionPredicate(n int) proof.Predicate {
	preds := make([]proof.Predicate, n+1)
	preds[0] = proof.Rep("P", "x", "B")
	for i := 0; i < n; i++ {
		si := "S" + strconv.Itoa(i)
		ai := "A" + strconv.Itoa(i)
		preds[i+1] = proof.Rep(si, "x", ai)
	}
	return proof.And(preds...)
}

func decryptionPoints(s *Suite, public kyber.Point, K, elements []kyber.Point) map[string]kyber.Point {
	points := map[string]kyber.Point{
		"B": s.Point().Base(),
		"P": public,
	}
	for i := range K {
		points["A"+strconv.Itoa(i)] = K[i]
		points["S"+strconv.Itoa(i)] = elements[i]
	}
	return points
}

// PartialDecrypt raises every ciphertext alpha to the trustee's private
// share and proves the exponent matches the public share.
func (s *Suite) PartialDecrypt(private kyber.Scalar, public kyber.Point, K []kyber.Point) (*Partial, error) {
	elements := make([]kyber.Point, len(K))
	for i := range K {
		elements[i] = s.Point().Mul(private, K[i])
	}
	pred := decryptionPredicate(len(K))
	points := decryptionPoints(s, public, K, elements)
	secrets := map[string]kyber.Scalar{"x": private}
	prover := pred.Prover(s, secrets, points, nil)
	prf, err := proof.HashProve(s, decryptionProto, prover)
	if err != nil {
		return nil, errors.Wrap(err, "decryption proof")
	}
	return &Partial{Elements: elements, Proof: prf}, nil
}

// VerifyPartial checks a trustee's decryption elements against its public
// share and the ciphertext alphas.
func (s *Suite) VerifyPartial(partial *Partial, public kyber.Point, K []kyber.Point) error {
	if len(partial.Elements) != len(K) {
		return errors.Errorf("decryption has %d elements, want %d", len(partial.Elements), len(K))
	}
	pred := decryptionPredicate(len(K))
	points := decryptionPoints(s, public, K, partial.Elements)
	verifier := pred.Verifier(s, points)
	if err := proof.HashVerify(s, decryptionProto, verifier, partial.Proof); err != nil {
		return errors.Wrap(err, "decryption proof")
	}
	return nil
}

// CombinePartials strips the blinding from the betas: each message point is
// the beta minus the sum of all trustees' decryption elements.
func (s *Suite) CombinePartials(partials []*Partial, Y []kyber.Point) ([]kyber.Point, error) {
	M := make([]kyber.Point, len(Y))
	for j := range Y {
		sum := s.Point().Null()
		for _, p := range partials {
			if len(p.Elements) != len(Y) {
				return nil, errors.Errorf("partial has %d elements, want %d", len(p.Elements), len(Y))
			}
			sum = s.Point().Add(sum, p.Elements[j])
		}
		M[j] = s.Point().Sub(Y[j], sum)
	}
	return M, nil
}

// Decode recovers the embedded plaintexts from decrypted message points.
func Decode(M []kyber.Point) ([][]byte, error) {
	out := make([][]byte, len(M))
	for i, m := range M {
		data, err := m.Data()
		if err != nil {
			return nil, errors.Wrapf(err, "plaintext %d", i)
		}
		out[i] = data
	}
	return out, nil
}
