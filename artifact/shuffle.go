package artifact

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvotes/mixnet/envelope"
)

// ShuffleResult is the output of one mix: the permuted re-encrypted
// ciphertexts and the shuffle proof material. It serializes as flat
// newline-delimited text with a fixed field order (mix proof, permutation
// proof, permutation commitment, ciphertexts), so the hash of the stream is
// identical whether taken while writing or while reading the same bytes.
//
// The kyber backend emits a single aggregate proof transcript; it travels
// in the mix proof field and the permutation fields stay empty.
type ShuffleResult struct {
	MixProof              []byte
	PermutationProof      []byte
	PermutationCommitment []byte
	Ciphertexts           []Ciphertext
}

// WriteTo emits the four lines of the wire format.
func (s *ShuffleResult) WriteTo(w io.Writer) error {
	lines := []string{
		base64.StdEncoding.EncodeToString(s.MixProof),
		base64.StdEncoding.EncodeToString(s.PermutationProof),
		base64.StdEncoding.EncodeToString(s.PermutationCommitment),
		encodeCiphertextLine(s.Ciphertexts),
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%s\n", l); err != nil {
			return errors.Wrap(err, "writing shuffle result")
		}
	}
	return nil
}

// Bytes renders the wire format and returns it together with its streaming
// hash, taken writer-side.
func (s *ShuffleResult) Bytes() ([]byte, string, error) {
	var buf bytes.Buffer
	h := envelope.NewHasher()
	if err := s.WriteTo(h.Mirror(&buf)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), h.Hex(), nil
}

// ReadShuffleResult consumes an entire wire stream, hashing while reading,
// and returns the decoded result with the reader-side hash.
func ReadShuffleResult(r io.Reader) (*ShuffleResult, string, error) {
	h := envelope.NewHasher()
	lines, err := readLines(h.Tee(r), 4)
	if err != nil {
		return nil, "", errors.Wrap(err, "reading shuffle result")
	}
	s := &ShuffleResult{}
	if s.MixProof, err = base64.StdEncoding.DecodeString(lines[0]); err != nil {
		return nil, "", errors.Wrap(err, "mix proof")
	}
	if s.PermutationProof, err = base64.StdEncoding.DecodeString(lines[1]); err != nil {
		return nil, "", errors.Wrap(err, "permutation proof")
	}
	if s.PermutationCommitment, err = base64.StdEncoding.DecodeString(lines[2]); err != nil {
		return nil, "", errors.Wrap(err, "permutation commitment")
	}
	if s.Ciphertexts, err = decodeCiphertextLine(lines[3]); err != nil {
		return nil, "", err
	}
	return s, h.Hex(), nil
}

// PartialDecryption is one trustee's decryption contribution for one item:
// one group element per ciphertext and the proof of correct decryption over
// the whole list. Wire format: elements line, then proof line.
type PartialDecryption struct {
	Elements []string // base64 group elements, final mix order
	Proof    []byte
}

// WriteTo emits the two lines of the wire format.
func (p *PartialDecryption) WriteTo(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s\n", strings.Join(p.Elements, " ")); err != nil {
		return errors.Wrap(err, "writing decryption elements")
	}
	if _, err := fmt.Fprintf(w, "%s\n", base64.StdEncoding.EncodeToString(p.Proof)); err != nil {
		return errors.Wrap(err, "writing decryption proof")
	}
	return nil
}

// Bytes renders the wire format with its writer-side streaming hash.
func (p *PartialDecryption) Bytes() ([]byte, string, error) {
	var buf bytes.Buffer
	h := envelope.NewHasher()
	if err := p.WriteTo(h.Mirror(&buf)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), h.Hex(), nil
}

// ReadPartialDecryption consumes an entire wire stream, hashing while
// reading.
func ReadPartialDecryption(r io.Reader) (*PartialDecryption, string, error) {
	h := envelope.NewHasher()
	lines, err := readLines(h.Tee(r), 2)
	if err != nil {
		return nil, "", errors.Wrap(err, "reading partial decryption")
	}
	p := &PartialDecryption{}
	if lines[0] != "" {
		p.Elements = strings.Split(lines[0], " ")
	}
	if p.Proof, err = base64.StdEncoding.DecodeString(lines[1]); err != nil {
		return nil, "", errors.Wrap(err, "decryption proof")
	}
	return p, h.Hex(), nil
}

func encodeCiphertextLine(cs []Ciphertext) string {
	pairs := make([]string, len(cs))
	for i, c := range cs {
		pairs[i] = c.Alpha + "," + c.Beta
	}
	return strings.Join(pairs, " ")
}

func decodeCiphertextLine(line string) ([]Ciphertext, error) {
	if line == "" {
		return nil, nil
	}
	pairs := strings.Split(line, " ")
	cs := make([]Ciphertext, len(pairs))
	for i, p := range pairs {
		halves := strings.SplitN(p, ",", 2)
		if len(halves) != 2 {
			return nil, errors.Errorf("malformed ciphertext %q", p)
		}
		cs[i] = Ciphertext{Alpha: halves[0], Beta: halves[1]}
	}
	return cs, nil
}

func readLines(r io.Reader, n int) ([]string, error) {
	br := bufio.NewReader(r)
	lines := make([]string, n)
	for i := 0; i < n; i++ {
		l, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		lines[i] = strings.TrimSuffix(l, "\n")
	}
	return lines, nil
}
