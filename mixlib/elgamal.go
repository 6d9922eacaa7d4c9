package mixlib

import (
	"encoding/base64"

	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"

	"github.com/nvotes/mixnet/artifact"
)

// Encrypt performs ElGamal encryption of a message under the joint key.
func (s *Suite) Encrypt(public kyber.Point, message []byte) (K, C kyber.Point) {
	M := s.Point().Embed(message, s.RandomStream())
	k := s.Scalar().Pick(s.RandomStream())
	K = s.Point().Mul(k, nil)
	S := s.Point().Mul(k, public)
	C = S.Add(S, M)
	return
}

// Decrypt reverses ElGamal encryption given the full private key. Trustees
// never hold the full key; this is for tests.
func (s *Suite) Decrypt(private kyber.Scalar, K, C kyber.Point) kyber.Point {
	S := s.Point().Mul(private, K)
	return s.Point().Sub(C, S)
}

// EncodePoint renders a group element as base64.
func EncodePoint(p kyber.Point) (string, error) {
	b, err := p.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, "marshalling point")
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodePoint parses a base64 group element, validating membership.
func (s *Suite) DecodePoint(enc string) (kyber.Point, error) {
	b, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return nil, errors.Wrap(err, "decoding point")
	}
	p := s.Point()
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return p, nil
}

// ParseCiphertexts decodes a ciphertext list into point pairs. Membership
// validation makes this the hot loop of mix verification, so the work fans
// out over the pool.
func (s *Suite) ParseCiphertexts(cs []artifact.Ciphertext, pool *Pool) (X, Y []kyber.Point, err error) {
	X = make([]kyber.Point, len(cs))
	Y = make([]kyber.Point, len(cs))
	err = pool.Each(len(cs), func(i int) error {
		var err error
		if X[i], err = s.DecodePoint(cs[i].Alpha); err != nil {
			return errors.Wrapf(err, "ciphertext %d alpha", i)
		}
		if Y[i], err = s.DecodePoint(cs[i].Beta); err != nil {
			return errors.Wrapf(err, "ciphertext %d beta", i)
		}
		return nil
	})
	return
}

// RenderCiphertexts encodes point pairs into the artifact form.
func RenderCiphertexts(X, Y []kyber.Point) ([]artifact.Ciphertext, error) {
	cs := make([]artifact.Ciphertext, len(X))
	for i := range X {
		a, err := EncodePoint(X[i])
		if err != nil {
			return nil, err
		}
		b, err := EncodePoint(Y[i])
		if err != nil {
			return nil, err
		}
		cs[i] = artifact.Ciphertext{Alpha: a, Beta: b}
	}
	return cs, nil
}
