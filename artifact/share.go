package artifact

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/nvotes/mixnet/envelope"
)

// Share is one trustee's contribution to the joint ElGamal key for one
// item: the public share with its proof of knowledge, and the private share
// wrapped under the trustee's AES master key. The wrapped form is the only
// form in which the private share ever rests.
type Share struct {
	Point            string `json:"point"`            // base64 group element
	Proof            string `json:"proof"`            // base64 Schnorr POK
	EncryptedPrivate string `json:"encryptedPrivate"` // base64 AES-CBC ciphertext
	IV               string `json:"iv"`               // base64
}

// ParseShare decodes a share payload.
func ParseShare(data []byte) (*Share, error) {
	s := &Share{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(err, "parsing share")
	}
	return s, nil
}

// Bytes is the canonical encoding of the share.
func (s *Share) Bytes() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "encoding share")
	}
	return b, nil
}

// Hash is the fingerprint the share statement commits to.
func (s *Share) Hash() (string, error) {
	b, err := s.Bytes()
	if err != nil {
		return "", err
	}
	return envelope.Hash(b), nil
}
