package artifact

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/nvotes/mixnet/envelope"
)

// Ciphertext is one ElGamal pair, both halves base64 encoded group
// elements.
type Ciphertext struct {
	Alpha string `json:"alpha"`
	Beta  string `json:"beta"`
}

// Ballots is the ordered ciphertext list delivered by the ballotbox for one
// item. Order matters: the mix chain starts from exactly this sequence.
type Ballots struct {
	Ciphertexts []Ciphertext `json:"ciphertexts"`
}

// ParseBallots decodes a ballots payload.
func ParseBallots(data []byte) (*Ballots, error) {
	b := &Ballots{}
	if err := json.Unmarshal(data, b); err != nil {
		return nil, errors.Wrap(err, "parsing ballots")
	}
	return b, nil
}

// Bytes is the canonical encoding of the ballot set.
func (b *Ballots) Bytes() ([]byte, error) {
	out, err := json.Marshal(b)
	if err != nil {
		return nil, errors.Wrap(err, "encoding ballots")
	}
	return out, nil
}

// Hash is the fingerprint the ballots statement commits to.
func (b *Ballots) Hash() (string, error) {
	out, err := b.Bytes()
	if err != nil {
		return "", err
	}
	return envelope.Hash(out), nil
}

// PublicKey is the joint election key for one item, the product of all
// trustee public shares.
type PublicKey struct {
	Key string `json:"key"` // base64 group element
}

// ParsePublicKey decodes a public key payload.
func ParsePublicKey(data []byte) (*PublicKey, error) {
	p := &PublicKey{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, errors.Wrap(err, "parsing public key")
	}
	return p, nil
}

// Bytes is the canonical encoding of the public key.
func (p *PublicKey) Bytes() ([]byte, error) {
	out, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "encoding public key")
	}
	return out, nil
}

// Hash is the fingerprint the public key statement commits to.
func (p *PublicKey) Hash() (string, error) {
	out, err := p.Bytes()
	if err != nil {
		return "", err
	}
	return envelope.Hash(out), nil
}

// Plaintexts carries the decoded messages of one item, produced by the
// designated decryptor and co-signed by everyone.
type Plaintexts struct {
	Messages []string `json:"messages"` // base64 decoded message bytes
}

// ParsePlaintexts decodes a plaintexts payload.
func ParsePlaintexts(data []byte) (*Plaintexts, error) {
	p := &Plaintexts{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, errors.Wrap(err, "parsing plaintexts")
	}
	return p, nil
}

// Bytes is the canonical encoding of the plaintext set.
func (p *Plaintexts) Bytes() ([]byte, error) {
	out, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "encoding plaintexts")
	}
	return out, nil
}

// Hash is the fingerprint the plaintexts statement commits to.
func (p *Plaintexts) Hash() (string, error) {
	out, err := p.Bytes()
	if err != nil {
		return "", err
	}
	return envelope.Hash(out), nil
}
