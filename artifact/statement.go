package artifact

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Statement is the common face of the signed records. A signature on the
// board is always over a statement's canonical bytes, never over a payload.
type Statement interface {
	// Bytes is the canonical JSON encoding that signatures cover.
	Bytes() ([]byte, error)
}

// ConfigStatement commits to the published election configuration.
type ConfigStatement struct {
	ConfigHash string `json:"configHash"`
}

// ShareStatement commits to one trustee's key share for one item.
type ShareStatement struct {
	ShareHash  string `json:"shareHash"`
	ConfigHash string `json:"configHash"`
	Item       int    `json:"item"`
}

// PublicKeyStatement commits to the joint election key of one item and to
// the shares it was combined from.
type PublicKeyStatement struct {
	PublicKeyHash string `json:"publicKeyHash"`
	SharesHash    string `json:"sharesHash"`
	ConfigHash    string `json:"configHash"`
	Item          int    `json:"item"`
}

// BallotsStatement commits to the ciphertext set delivered by the ballotbox.
type BallotsStatement struct {
	BallotsHash string `json:"ballotsHash"`
	ConfigHash  string `json:"configHash"`
	Item        int    `json:"item"`
}

// MixStatement commits to one link of the mix chain. ParentHash keys the
// previous element, either the ballots or the preceding mix.
type MixStatement struct {
	MixHash    string `json:"mixHash"`
	ParentHash string `json:"parentHash"`
	ConfigHash string `json:"configHash"`
	Item       int    `json:"item"`
	Auth       int    `json:"auth"`
}

// DecryptionStatement commits to a partial decryption of the final mix.
type DecryptionStatement struct {
	DecryptionHash string `json:"decryptionHash"`
	MixHash        string `json:"mixHash"`
	ConfigHash     string `json:"configHash"`
	Item           int    `json:"item"`
}

// PlaintextsStatement commits to the decoded messages and the partial
// decryptions they were combined from.
type PlaintextsStatement struct {
	PlaintextsHash  string `json:"plaintextsHash"`
	DecryptionsHash string `json:"decryptionsHash"`
	ConfigHash      string `json:"configHash"`
	Item            int    `json:"item"`
}

func marshalStatement(s interface{}) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "encoding statement")
	}
	return b, nil
}

func (s ConfigStatement) Bytes() ([]byte, error)     { return marshalStatement(s) }
func (s ShareStatement) Bytes() ([]byte, error)      { return marshalStatement(s) }
func (s PublicKeyStatement) Bytes() ([]byte, error)  { return marshalStatement(s) }
func (s BallotsStatement) Bytes() ([]byte, error)    { return marshalStatement(s) }
func (s MixStatement) Bytes() ([]byte, error)        { return marshalStatement(s) }
func (s DecryptionStatement) Bytes() ([]byte, error) { return marshalStatement(s) }
func (s PlaintextsStatement) Bytes() ([]byte, error) { return marshalStatement(s) }

// ParseStatement decodes statement bytes into out, rejecting trailing or
// unknown garbage the strict way.
func ParseStatement(data []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errors.Wrap(err, "parsing statement")
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("parsing statement: trailing data")
	}
	return nil
}
