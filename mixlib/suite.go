// Package mixlib wraps the group cryptography of the protocol behind a
// small surface: ElGamal key shares with proofs of knowledge, verifiable
// re-encryption shuffles with an optional offline/online split, and partial
// decryptions with proofs of correctness. Everything runs over a kyber
// suite built from the election's safe-prime group.
package mixlib

import (
	"crypto/cipher"
	"crypto/sha256"
	"hash"
	"io"
	"math/big"
	"reflect"

	"github.com/pkg/errors"
	"go.dedis.ch/fixbuf"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/mod"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
)

var one = big.NewInt(1)

// Suite is the multiplicative subgroup of quadratic residues modulo a safe
// prime p, exposed through the kyber group abstraction so the generic
// shuffle and proof machinery runs over it unchanged. Scalars live modulo
// q = (p-1)/2.
type Suite struct {
	p *big.Int
	q *big.Int
	g *big.Int
}

// NewSuite builds a suite from the election modulus and generator, checking
// that p is a safe prime and that the generator spans the residue subgroup.
func NewSuite(modulus, generator *big.Int) (*Suite, error) {
	if modulus == nil || generator == nil {
		return nil, errors.New("missing group parameters")
	}
	if !modulus.ProbablyPrime(32) {
		return nil, errors.New("modulus is not prime")
	}
	q := new(big.Int).Rsh(modulus, 1)
	if !q.ProbablyPrime(32) {
		return nil, errors.New("modulus is not a safe prime")
	}
	if generator.Sign() <= 0 || generator.Cmp(modulus) >= 0 || generator.Cmp(one) == 0 {
		return nil, errors.New("generator out of range")
	}
	if new(big.Int).Exp(generator, q, modulus).Cmp(one) != 0 {
		return nil, errors.New("generator is not a quadratic residue")
	}
	return &Suite{p: modulus, q: q, g: generator}, nil
}

// NewSuiteFromStrings builds a suite from the decimal encodings carried by
// the election config.
func NewSuiteFromStrings(modulus, generator string) (*Suite, error) {
	p, ok := new(big.Int).SetString(modulus, 10)
	if !ok {
		return nil, errors.New("unparseable modulus")
	}
	g, ok := new(big.Int).SetString(generator, 10)
	if !ok {
		return nil, errors.New("unparseable generator")
	}
	return NewSuite(p, g)
}

// Modulus returns p.
func (s *Suite) Modulus() *big.Int { return new(big.Int).Set(s.p) }

// Order returns the subgroup order q.
func (s *Suite) Order() *big.Int { return new(big.Int).Set(s.q) }

func (s *Suite) String() string {
	return "zp" + s.p.Text(16)[:8]
}

// ScalarLen implements kyber.Group.
func (s *Suite) ScalarLen() int {
	return (s.q.BitLen() + 7) / 8
}

// Scalar implements kyber.Group.
func (s *Suite) Scalar() kyber.Scalar {
	return mod.NewInt64(0, s.q)
}

// PointLen implements kyber.Group.
func (s *Suite) PointLen() int {
	return (s.p.BitLen() + 7) / 8
}

// Point implements kyber.Group.
func (s *Suite) Point() kyber.Point {
	return &residuePoint{v: new(big.Int), s: s}
}

// Hash implements kyber.HashFactory.
func (s *Suite) Hash() hash.Hash {
	return sha256.New()
}

// XOF implements kyber.XOFFactory.
func (s *Suite) XOF(seed []byte) kyber.XOF {
	return blake2xb.New(seed)
}

// RandomStream implements kyber.Random.
func (s *Suite) RandomStream() cipher.Stream {
	return random.New()
}

// Read implements kyber.Encoding.
func (s *Suite) Read(r io.Reader, objs ...interface{}) error {
	return fixbuf.Read(r, s, objs...)
}

// Write implements kyber.Encoding.
func (s *Suite) Write(w io.Writer, objs ...interface{}) error {
	return fixbuf.Write(w, objs)
}

var aScalar kyber.Scalar
var aPoint kyber.Point
var tScalar = reflect.TypeOf(&aScalar).Elem()
var tPoint = reflect.TypeOf(&aPoint).Elem()

// New implements the fixbuf constructor for reflective decoding.
func (s *Suite) New(t reflect.Type) interface{} {
	switch t {
	case tScalar:
		return s.Scalar()
	case tPoint:
		return s.Point()
	}
	return nil
}

func scalarBig(sc kyber.Scalar) *big.Int {
	return &sc.(*mod.Int).V
}
