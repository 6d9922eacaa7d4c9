package mixlib

import (
	"crypto/cipher"
	"encoding/hex"
	"io"
	"math/big"

	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/random"
)

// residuePoint is a quadratic residue mod the suite prime. Group addition
// is modular multiplication, scalar multiplication is modular
// exponentiation.
type residuePoint struct {
	v *big.Int
	s *Suite
}

func (p *residuePoint) String() string {
	return hex.EncodeToString(p.v.Bytes())
}

func (p *residuePoint) MarshalSize() int {
	return p.s.PointLen()
}

func (p *residuePoint) MarshalBinary() ([]byte, error) {
	b := p.v.Bytes()
	out := make([]byte, p.s.PointLen())
	copy(out[len(out)-len(b):], b)
	return out, nil
}

func (p *residuePoint) UnmarshalBinary(data []byte) error {
	if len(data) != p.s.PointLen() {
		return errors.New("wrong point length")
	}
	p.v.SetBytes(data)
	if !p.valid() {
		return errors.New("point is not a group element")
	}
	return nil
}

func (p *residuePoint) MarshalTo(w io.Writer) (int, error) {
	b, err := p.MarshalBinary()
	if err != nil {
		return 0, err
	}
	return w.Write(b)
}

func (p *residuePoint) UnmarshalFrom(r io.Reader) (int, error) {
	b := make([]byte, p.s.PointLen())
	n, err := io.ReadFull(r, b)
	if err != nil {
		return n, err
	}
	return n, p.UnmarshalBinary(b)
}

func (p *residuePoint) Equal(q kyber.Point) bool {
	return p.v.Cmp(q.(*residuePoint).v) == 0
}

func (p *residuePoint) Null() kyber.Point {
	p.v.SetInt64(1)
	return p
}

func (p *residuePoint) Base() kyber.Point {
	p.v.Set(p.s.g)
	return p
}

func (p *residuePoint) Set(q kyber.Point) kyber.Point {
	p.v.Set(q.(*residuePoint).v)
	return p
}

func (p *residuePoint) Clone() kyber.Point {
	return &residuePoint{v: new(big.Int).Set(p.v), s: p.s}
}

// EmbedLen leaves room for one length byte and one byte of slack below the
// modulus.
func (p *residuePoint) EmbedLen() int {
	return (p.s.p.BitLen() - 8 - 8) / 8
}

// Embed encodes up to EmbedLen bytes of data into a group element. The
// upper bytes are randomized and the whole value resampled until it lands
// in the residue subgroup, which takes two tries on average.
func (p *residuePoint) Embed(data []byte, rand cipher.Stream) kyber.Point {
	l := p.s.PointLen()
	dl := p.EmbedLen()
	if dl > len(data) {
		dl = len(data)
	}
	for {
		b := random.Bits(uint(p.s.p.BitLen()-1), false, rand)
		if len(b) < l {
			padded := make([]byte, l)
			copy(padded[l-len(b):], b)
			b = padded
		}
		if data != nil {
			b[l-1] = byte(dl)
			copy(b[l-dl-1:l-1], data[:dl])
		}
		p.v.SetBytes(b)
		if p.valid() {
			return p
		}
	}
}

// Data recovers bytes hidden by Embed.
func (p *residuePoint) Data() ([]byte, error) {
	b, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	dl := int(b[len(b)-1])
	if dl > p.EmbedLen() {
		return nil, errors.New("invalid embedded data length")
	}
	return b[len(b)-dl-1 : len(b)-1], nil
}

func (p *residuePoint) Pick(rand cipher.Stream) kyber.Point {
	return p.Embed(nil, rand)
}

func (p *residuePoint) Add(a, b kyber.Point) kyber.Point {
	p.v.Mul(a.(*residuePoint).v, b.(*residuePoint).v)
	p.v.Mod(p.v, p.s.p)
	return p
}

func (p *residuePoint) Sub(a, b kyber.Point) kyber.Point {
	inv := new(big.Int).ModInverse(b.(*residuePoint).v, p.s.p)
	p.v.Mul(a.(*residuePoint).v, inv)
	p.v.Mod(p.v, p.s.p)
	return p
}

func (p *residuePoint) Neg(a kyber.Point) kyber.Point {
	p.v.ModInverse(a.(*residuePoint).v, p.s.p)
	return p
}

func (p *residuePoint) Mul(s kyber.Scalar, q kyber.Point) kyber.Point {
	base := p.s.g
	if q != nil {
		base = q.(*residuePoint).v
	}
	// Mul may alias p and q.
	p.v = new(big.Int).Exp(base, scalarBig(s), p.s.p)
	return p
}

func (p *residuePoint) valid() bool {
	if p.v.Sign() <= 0 || p.v.Cmp(p.s.p) >= 0 {
		return false
	}
	return new(big.Int).Exp(p.v, p.s.q, p.s.p).Cmp(one) == 0
}
