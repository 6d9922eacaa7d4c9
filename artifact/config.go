// Package artifact defines the records that live on the bulletin board and
// their matching statements. Payload records carry the election data;
// statement records carry only hashes and indices, and their canonical JSON
// encoding is what gets signed.
//
// Canonical JSON here means: UTF-8, no insignificant whitespace, keys in the
// declared field order of the record. encoding/json marshals struct fields
// in declaration order, so json.Marshal of these records is canonical as is.
package artifact

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/nvotes/mixnet/envelope"
)

// Config holds the election parameters published by the authority. It is
// immutable once on the board.
type Config struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Modulus   string   `json:"modulus"`   // decimal safe prime
	Generator string   `json:"generator"` // decimal group element
	Items     int      `json:"items"`
	Ballotbox string   `json:"ballotbox"` // PEM RSA public key
	Trustees  []string `json:"trustees"`  // PEM RSA public keys, protocol order
}

// ParseConfig decodes a config payload.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	return cfg, nil
}

// Bytes is the canonical encoding of the config.
func (c *Config) Bytes() ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "encoding config")
	}
	return b, nil
}

// Hash is the fingerprint the config statement commits to.
func (c *Config) Hash() (string, error) {
	b, err := c.Bytes()
	if err != nil {
		return "", err
	}
	return envelope.Hash(b), nil
}

// TrusteePosition returns the 1-based protocol position of the trustee
// holding pemKey, or 0 if the key is not listed. Position 0 is fatal for a
// running trustee.
func (c *Config) TrusteePosition(pemKey string) int {
	for i, t := range c.Trustees {
		if samePEM(t, pemKey) {
			return i + 1
		}
	}
	return 0
}

func samePEM(a, b string) bool {
	pa, err := envelope.ParsePublicKey([]byte(a))
	if err != nil {
		return false
	}
	pb, err := envelope.ParsePublicKey([]byte(b))
	if err != nil {
		return false
	}
	return pa.E == pb.E && pa.N.Cmp(pb.N) == 0
}
