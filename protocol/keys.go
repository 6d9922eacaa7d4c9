package protocol

import (
	"bytes"
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"

	"github.com/nvotes/mixnet/artifact"
	"github.com/nvotes/mixnet/condition"
	"github.com/nvotes/mixnet/envelope"
	"github.com/nvotes/mixnet/mixlib"
	"github.com/nvotes/mixnet/names"
)

// ValidateConfig approves the published election config: enough distinct
// trustees, every listed key trusted, statement matching. On success the
// trustee signs the statement; its signature is what later prologues check
// against. Configuration failures (unreadable config, too few or duplicate
// trustees, this trustee not listed, statement mismatch) stay local, there
// is no approved config to bind a board error to. A listed trustee or the
// ballotbox missing from the peer set is posted as this trustee's error.
type ValidateConfig struct{}

func (ValidateConfig) Name() string { return "ValidateConfig" }

func (ValidateConfig) Run(t *Trustee, files condition.KeySet) Result {
	data, err := t.Board.GetConfig()
	if err != nil {
		return failLocal(err)
	}
	cfg, err := artifact.ParseConfig(data)
	if err != nil {
		return failLocal(err)
	}
	if len(cfg.Trustees) < 2 {
		return failLocal(errors.Errorf("config lists %d trustees, need at least 2", len(cfg.Trustees)))
	}
	keys := make([]*rsa.PublicKey, len(cfg.Trustees))
	for i, pem := range cfg.Trustees {
		pub, err := envelope.ParsePublicKey([]byte(pem))
		if err != nil {
			return failLocal(errors.Wrapf(err, "trustee %d key", i+1))
		}
		keys[i] = pub
	}
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if sameKey(keys[i], keys[j]) {
				return failLocal(errors.Errorf("trustees %d and %d share a public key", i+1, j+1))
			}
		}
	}
	pos := cfg.TrusteePosition(t.PublicPEM)
	if pos == 0 {
		return failLocal(errors.New("this trustee is not listed in the config"))
	}
	bbKey, err := envelope.ParsePublicKey([]byte(cfg.Ballotbox))
	if err != nil {
		return failLocal(errors.Wrap(err, "ballotbox key"))
	}
	for i, pub := range keys {
		if !trusted(t.Peers, pub) {
			return failf("trustee %d is not in the peer set", i+1)
		}
	}
	if !trusted(t.Peers, bbKey) {
		return failf("the ballotbox is not in the peer set")
	}
	hash, err := cfg.Hash()
	if err != nil {
		return failLocal(err)
	}
	stmtData, err := t.Board.GetConfigStatement()
	if err != nil {
		return failLocal(err)
	}
	var stmt artifact.ConfigStatement
	if err := artifact.ParseStatement(stmtData, &stmt); err != nil {
		return failLocal(err)
	}
	if stmt.ConfigHash != hash {
		return failLocal(errors.New("config statement does not match the config"))
	}
	sig, err := envelope.Sign(t.Signer, stmtData)
	if err != nil {
		return fail(err)
	}
	if err := t.Board.AddConfigSignature(sig, pos); err != nil {
		return fail(err)
	}
	return ok()
}

func sameKey(a, b *rsa.PublicKey) bool {
	return a.E == b.E && a.N.Cmp(b.N) == 0
}

func trusted(peers []*rsa.PublicKey, pub *rsa.PublicKey) bool {
	for _, p := range peers {
		if sameKey(p, pub) {
			return true
		}
	}
	return false
}

// AddShare publishes a fresh key share for one item: the public element
// with its proof of knowledge, and the private exponent wrapped under the
// AES master key.
type AddShare struct {
	Item int
}

func (a AddShare) Name() string { return fmt.Sprintf("AddShare(%d)", a.Item) }

func (a AddShare) Run(t *Trustee, files condition.KeySet) Result {
	e, err := getValidConfigHash(t)
	if err != nil {
		return fail(err)
	}
	ks, err := e.s.GenShare(t.Signer.PublicKey.N.Bytes())
	if err != nil {
		return fail(err)
	}
	priv, err := ks.Private.MarshalBinary()
	if err != nil {
		return fail(errors.Wrap(err, "marshalling private share"))
	}
	wrapped, iv, err := envelope.Encrypt(t.AESKey, priv)
	if err != nil {
		return fail(err)
	}
	point, err := mixlib.EncodePoint(ks.Public)
	if err != nil {
		return fail(err)
	}
	share := &artifact.Share{
		Point:            point,
		Proof:            base64.StdEncoding.EncodeToString(ks.Proof),
		EncryptedPrivate: base64.StdEncoding.EncodeToString(wrapped),
		IV:               base64.StdEncoding.EncodeToString(iv),
	}
	payload, err := share.Bytes()
	if err != nil {
		return fail(err)
	}
	stmt := artifact.ShareStatement{
		ShareHash:  envelope.Hash(payload),
		ConfigHash: e.hash,
		Item:       a.Item,
	}
	stmtBytes, sig, err := signStatement(t, stmt)
	if err != nil {
		return fail(err)
	}
	if err := t.Board.AddShare(payload, stmtBytes, sig, a.Item, e.pos); err != nil {
		return fail(err)
	}
	return ok()
}

// loadShare fetches and fully verifies one trustee's share: statement
// fields, RSA signature and proof of knowledge. It returns the public
// element and the payload hash the statement commits to.
func loadShare(t *Trustee, e *election, item, auth int) (kyber.Point, string, error) {
	payload, err := t.Board.GetShare(item, auth)
	if err != nil {
		return nil, "", err
	}
	stmtData, err := t.Board.GetShareStatement(item, auth)
	if err != nil {
		return nil, "", err
	}
	sig, err := t.Board.GetShareSignature(item, auth)
	if err != nil {
		return nil, "", err
	}
	var stmt artifact.ShareStatement
	if err := artifact.ParseStatement(stmtData, &stmt); err != nil {
		return nil, "", err
	}
	if stmt.Item != item || stmt.ConfigHash != e.hash {
		return nil, "", errors.Errorf("share statement of trustee %d is bound to the wrong election", auth)
	}
	if stmt.ShareHash != envelope.Hash(payload) {
		return nil, "", errors.Errorf("share statement of trustee %d does not match the share", auth)
	}
	pub, err := e.trusteeKey(auth)
	if err != nil {
		return nil, "", err
	}
	if err := envelope.Verify(pub, stmtData, sig); err != nil {
		return nil, "", errors.Wrapf(err, "share signature of trustee %d", auth)
	}
	share, err := artifact.ParseShare(payload)
	if err != nil {
		return nil, "", err
	}
	point, err := e.s.DecodePoint(share.Point)
	if err != nil {
		return nil, "", errors.Wrapf(err, "share point of trustee %d", auth)
	}
	proof, err := base64.StdEncoding.DecodeString(share.Proof)
	if err != nil {
		return nil, "", errors.Wrapf(err, "share proof of trustee %d", auth)
	}
	domain, err := e.proofDomain(auth)
	if err != nil {
		return nil, "", err
	}
	if err := e.s.VerifyShare(point, proof, domain); err != nil {
		return nil, "", errors.Wrapf(err, "share of trustee %d", auth)
	}
	return point, stmt.ShareHash, nil
}

// AddOrSignPublicKey combines all verified shares into the joint election
// key. Trustee 1 publishes it; everyone else re-derives it independently
// and co-signs on a hash match.
type AddOrSignPublicKey struct {
	Item int
}

func (a AddOrSignPublicKey) Name() string { return fmt.Sprintf("AddOrSignPublicKey(%d)", a.Item) }

func (a AddOrSignPublicKey) Run(t *Trustee, files condition.KeySet) Result {
	e, err := getValidConfigHash(t)
	if err != nil {
		return fail(err)
	}
	points := make([]kyber.Point, e.n)
	hashes := make([]string, e.n)
	for auth := 1; auth <= e.n; auth++ {
		points[auth-1], hashes[auth-1], err = loadShare(t, e, a.Item, auth)
		if err != nil {
			return fail(err)
		}
	}
	joint := e.s.CombineShares(points)
	key, err := mixlib.EncodePoint(joint)
	if err != nil {
		return fail(err)
	}
	pk := &artifact.PublicKey{Key: key}
	payload, err := pk.Bytes()
	if err != nil {
		return fail(err)
	}
	stmt := artifact.PublicKeyStatement{
		PublicKeyHash: envelope.Hash(payload),
		SharesHash:    hashList(hashes),
		ConfigHash:    e.hash,
		Item:          a.Item,
	}

	if !files.Contains(names.PublicKey(a.Item)) {
		if e.pos != 1 {
			return ok()
		}
		stmtBytes, sig, err := signStatement(t, stmt)
		if err != nil {
			return fail(err)
		}
		if err := t.Board.AddPublicKey(payload, stmtBytes, sig, a.Item, e.pos); err != nil {
			return fail(err)
		}
		return ok()
	}

	postedStmt, err := t.Board.GetPublicKeyStatement(a.Item)
	if err != nil {
		return fail(err)
	}
	myStmt, err := stmt.Bytes()
	if err != nil {
		return fail(err)
	}
	if !bytes.Equal(postedStmt, myStmt) {
		return failf("public key statement for item %d does not match the local derivation", a.Item)
	}
	posted, err := t.Board.GetPublicKey(a.Item)
	if err != nil {
		return fail(err)
	}
	if envelope.Hash(posted) != stmt.PublicKeyHash {
		return failf("public key payload for item %d does not match its statement", a.Item)
	}
	sig, err := envelope.Sign(t.Signer, postedStmt)
	if err != nil {
		return fail(err)
	}
	if err := t.Board.AddPublicKeySignature(sig, a.Item, e.pos); err != nil {
		return fail(err)
	}
	return ok()
}
