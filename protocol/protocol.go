// Package protocol drives a trustee through the election: a rule table
// over the board's key set selects actions, and each action reconstructs
// its preconditions from the board, performs its crypto and publishes the
// result. Trustees hold no protocol state between cycles; everything is
// derived from the observed board.
package protocol

import (
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvotes/mixnet/artifact"
	"github.com/nvotes/mixnet/board"
	"github.com/nvotes/mixnet/condition"
	"github.com/nvotes/mixnet/envelope"
	"github.com/nvotes/mixnet/mixlib"
)

// Trustee is the immutable per-process identity: the board handle, the RSA
// signing pair, the AES master key, the trusted peer set and the tuning
// knobs. Everything protocol-state-like lives on the board instead.
type Trustee struct {
	Board        *board.Board
	Signer       *rsa.PrivateKey
	PublicPEM    string
	AESKey       []byte
	Peers        []*rsa.PublicKey
	OfflineSplit bool
	Pool         *mixlib.Pool
}

// Kind discriminates action outcomes.
type Kind int

const (
	// OK means the action ran to completion (possibly as a no-op).
	OK Kind = iota
	// Stop means the trustee should end the cycle without error.
	Stop
	// Error means the action failed a check; the driver posts it.
	Error
)

// Result is what every action returns. Local errors are logged but never
// posted: they arise before a config is approved, so there is nothing on
// the board to bind them to.
type Result struct {
	Kind  Kind
	Msg   string
	Local bool
}

func ok() Result             { return Result{Kind: OK} }
func stop(msg string) Result { return Result{Kind: Stop, Msg: msg} }
func fail(err error) Result  { return Result{Kind: Error, Msg: err.Error()} }

func failLocal(err error) Result {
	return Result{Kind: Error, Msg: err.Error(), Local: true}
}

func failf(format string, args ...interface{}) Result {
	return Result{Kind: Error, Msg: fmt.Sprintf(format, args...)}
}

// Action is one unit of protocol work, selected by the rules and run by
// the driver against the cycle's key-set snapshot.
type Action interface {
	Name() string
	Run(t *Trustee, files condition.KeySet) Result
}

// election is the validated per-cycle view of the config: the parsed
// record, its hash, the group suite and this trustee's protocol position.
type election struct {
	cfg  *artifact.Config
	hash string
	s    *mixlib.Suite
	pos  int
	n    int
}

// getValidConfigHash is the prologue of every action after config
// approval: reload the config, recompute its statement, check it against
// the published one and check this trustee's own signature on it. All
// crypto downstream is thereby bound to an approved config.
func getValidConfigHash(t *Trustee) (*election, error) {
	data, err := t.Board.GetConfig()
	if err != nil {
		return nil, err
	}
	cfg, err := artifact.ParseConfig(data)
	if err != nil {
		return nil, err
	}
	hash, err := cfg.Hash()
	if err != nil {
		return nil, err
	}
	stmtData, err := t.Board.GetConfigStatement()
	if err != nil {
		return nil, err
	}
	var stmt artifact.ConfigStatement
	if err := artifact.ParseStatement(stmtData, &stmt); err != nil {
		return nil, err
	}
	if stmt.ConfigHash != hash {
		return nil, errors.New("config statement does not match the config")
	}
	pos := cfg.TrusteePosition(t.PublicPEM)
	if pos == 0 {
		return nil, errors.New("this trustee is not listed in the config")
	}
	stmtBytes, err := stmt.Bytes()
	if err != nil {
		return nil, err
	}
	sig, err := t.Board.GetConfigSignature(pos)
	if err != nil {
		return nil, err
	}
	if err := envelope.Verify(&t.Signer.PublicKey, stmtBytes, sig); err != nil {
		return nil, errors.Wrap(err, "own config signature")
	}
	s, err := mixlib.NewSuiteFromStrings(cfg.Modulus, cfg.Generator)
	if err != nil {
		return nil, err
	}
	return &election{cfg: cfg, hash: hash, s: s, pos: pos, n: len(cfg.Trustees)}, nil
}

// trusteeKey parses the RSA public key of the trustee at 1-based position
// auth.
func (e *election) trusteeKey(auth int) (*rsa.PublicKey, error) {
	if auth < 1 || auth > e.n {
		return nil, errors.Errorf("no trustee %d", auth)
	}
	pub, err := envelope.ParsePublicKey([]byte(e.cfg.Trustees[auth-1]))
	if err != nil {
		return nil, errors.Wrapf(err, "trustee %d public key", auth)
	}
	return pub, nil
}

// proofDomain identifies a trustee in its proofs of knowledge: the bytes
// of its RSA modulus.
func (e *election) proofDomain(auth int) ([]byte, error) {
	pub, err := e.trusteeKey(auth)
	if err != nil {
		return nil, err
	}
	return pub.N.Bytes(), nil
}

// signStatement signs a statement's canonical bytes with the trustee key.
func signStatement(t *Trustee, stmt artifact.Statement) (stmtBytes, sig []byte, err error) {
	stmtBytes, err = stmt.Bytes()
	if err != nil {
		return nil, nil, err
	}
	sig, err = envelope.Sign(t.Signer, stmtBytes)
	if err != nil {
		return nil, nil, err
	}
	return stmtBytes, sig, nil
}

// hashList fingerprints an ordered list of hashes, used where a statement
// commits to a set of artifacts (shares, decryptions) in trustee order.
func hashList(hashes []string) string {
	return envelope.Hash([]byte(strings.Join(hashes, "\n")))
}
