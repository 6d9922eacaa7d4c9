package mixlib

import (
	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
)

// KeyShare is one trustee's fresh ElGamal key share: the public element
// with a Schnorr proof of knowledge of the private exponent, bound to a
// proof domain identifying the trustee.
type KeyShare struct {
	Public  kyber.Point
	Proof   []byte
	Private kyber.Scalar
}

// GenShare draws a fresh share and proves knowledge of its private part
// over proofDomain.
func (s *Suite) GenShare(proofDomain []byte) (*KeyShare, error) {
	x := s.Scalar().Pick(s.RandomStream())
	X := s.Point().Mul(x, nil)
	pok, err := schnorr.Sign(s, x, proofDomain)
	if err != nil {
		return nil, errors.Wrap(err, "share proof of knowledge")
	}
	return &KeyShare{Public: X, Proof: pok, Private: x}, nil
}

// VerifyShare checks a share's proof of knowledge against its proof
// domain.
func (s *Suite) VerifyShare(public kyber.Point, proof, proofDomain []byte) error {
	if err := schnorr.Verify(s, public, proofDomain, proof); err != nil {
		return errors.Wrap(err, "share proof of knowledge")
	}
	return nil
}

// CombineShares multiplies the public shares into the joint election key.
func (s *Suite) CombineShares(shares []kyber.Point) kyber.Point {
	joint := s.Point().Null()
	for _, sh := range shares {
		joint = s.Point().Add(joint, sh)
	}
	return joint
}
