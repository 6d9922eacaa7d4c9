package protocol

import (
	"bytes"
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

// closeMixChain rebuilds the mix chain of one item from the statements
// this trustee has personally signed and reduces it to a single
// (root, tip) pair. It returns the tip hash only when the chain joins the
// verified ballots to the final mix through every trustee. Decryption must
// not happen on any weaker evidence: a broken or unsigned link means some
// ballots may not have passed through every mix.
func closeMixChain(t *Trustee, e *election, item int) (string, error) {
	_, root, err := loadBallots(t, e, item)
	if err != nil {
		return "", err
	}
	edges := make(map[string]string, e.n)
	for auth := 1; auth <= e.n; auth++ {
		_, stmt, stmtData, err := loadMix(t, e, item, auth)
		if err != nil {
			return "", err
		}
		sig, err := t.Board.GetMixSignature(item, auth, e.pos)
		if err != nil {
			return "", errors.Wrapf(err, "own signature on mix of trustee %d", auth)
		}
		if err := envelope.Verify(&t.Signer.PublicKey, stmtData, sig); err != nil {
			return "", errors.Wrapf(err, "own signature on mix of trustee %d", auth)
		}
		if _, dup := edges[stmt.ParentHash]; dup {
			return "", errors.Errorf("two mixes of item %d claim the same parent", item)
		}
		edges[stmt.ParentHash] = stmt.MixHash
	}
	tip := root
	for i := 0; i < e.n; i++ {
		next, found := edges[tip]
		if !found {
			return "", errors.Errorf("mix chain of item %d breaks after %d of %d links", item, i, e.n)
		}
		delete(edges, tip)
		tip = next
	}
	final := TrusteeAtPosition(e.n, item, e.n)
	_, finalStmt, _, err := loadMix(t, e, item, final)
	if err != nil {
		return "", err
	}
	if tip != finalStmt.MixHash {
		return "", errors.Errorf("mix chain of item %d does not end at the final mix", item)
	}
	return tip, nil
}

// unwrapPrivateShare recovers this trustee's private exponent for one item
// from the AES-wrapped share on the board.
func unwrapPrivateShare(t *Trustee, e *election, item int) (kyber.Scalar, error) {
	payload, err := t.Board.GetShare(item, e.pos)
	if err != nil {
		return nil, err
	}
	share, err := artifact.ParseShare(payload)
	if err != nil {
		return nil, err
	}
	wrapped, err := base64.StdEncoding.DecodeString(share.EncryptedPrivate)
	if err != nil {
		return nil, errors.Wrap(err, "wrapped private share")
	}
	iv, err := base64.StdEncoding.DecodeString(share.IV)
	if err != nil {
		return nil, errors.Wrap(err, "share iv")
	}
	priv, err := envelope.Decrypt(t.AESKey, wrapped, iv)
	if err != nil {
		return nil, errors.Wrap(err, "unwrapping private share")
	}
	x := e.s.Scalar()
	if err := x.UnmarshalBinary(priv); err != nil {
		return nil, errors.Wrap(err, "parsing private share")
	}
	return x, nil
}

// AddDecryption computes this trustee's partial decryption of the final
// mix. The mix chain closure is the privacy gate: without it, a partial
// decryption could expose ballots that some trustee never shuffled.
type AddDecryption struct {
	Item int
}

func (a AddDecryption) Name() string { return fmt.Sprintf("AddDecryption(%d)", a.Item) }

func (a AddDecryption) Run(t *Trustee, files condition.KeySet) Result {
	e, err := getValidConfigHash(t)
	if err != nil {
		return fail(err)
	}
	tip, err := closeMixChain(t, e, a.Item)
	if err != nil {
		return fail(err)
	}
	final := TrusteeAtPosition(e.n, a.Item, e.n)
	result, _, _, err := loadMix(t, e, a.Item, final)
	if err != nil {
		return fail(err)
	}
	X, _, err := e.s.ParseCiphertexts(result.Ciphertexts, t.Pool)
	if err != nil {
		return fail(err)
	}
	x, err := unwrapPrivateShare(t, e, a.Item)
	if err != nil {
		return fail(err)
	}
	public, _, err := loadShare(t, e, a.Item, e.pos)
	if err != nil {
		return fail(err)
	}
	partial, err := e.s.PartialDecrypt(x, public, X)
	if err != nil {
		return fail(err)
	}
	elements := make([]string, len(partial.Elements))
	for i, el := range partial.Elements {
		if elements[i], err = mixlib.EncodePoint(el); err != nil {
			return fail(err)
		}
	}
	pd := &artifact.PartialDecryption{Elements: elements, Proof: partial.Proof}
	payload, hash, err := pd.Bytes()
	if err != nil {
		return fail(err)
	}
	stmt := artifact.DecryptionStatement{
		DecryptionHash: hash,
		MixHash:        tip,
		ConfigHash:     e.hash,
		Item:           a.Item,
	}
	stmtBytes, sig, err := signStatement(t, stmt)
	if err != nil {
		return fail(err)
	}
	if err := t.Board.AddDecryption(payload, stmtBytes, sig, a.Item, e.pos); err != nil {
		return fail(err)
	}
	return ok()
}

// loadPartial fetches and verifies one trustee's partial decryption
// against the final mix hash: statement fields, RSA signature and, unless
// it is this trustee's own, the proof of correct decryption.
func loadPartial(t *Trustee, e *election, item, auth int, tip string, X []kyber.Point) (*mixlib.Partial, string, error) {
	payload, err := t.Board.GetDecryption(item, auth)
	if err != nil {
		return nil, "", err
	}
	pd, hash, err := artifact.ReadPartialDecryption(bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}
	stmtData, err := t.Board.GetDecryptionStatement(item, auth)
	if err != nil {
		return nil, "", err
	}
	var stmt artifact.DecryptionStatement
	if err := artifact.ParseStatement(stmtData, &stmt); err != nil {
		return nil, "", err
	}
	if stmt.Item != item || stmt.ConfigHash != e.hash {
		return nil, "", errors.Errorf("decryption statement of trustee %d is bound to the wrong election", auth)
	}
	if stmt.DecryptionHash != hash {
		return nil, "", errors.Errorf("decryption of trustee %d does not match its statement", auth)
	}
	if stmt.MixHash != tip {
		return nil, "", errors.Errorf("decryption of trustee %d is not over the final mix", auth)
	}
	sig, err := t.Board.GetDecryptionSignature(item, auth)
	if err != nil {
		return nil, "", err
	}
	pub, err := e.trusteeKey(auth)
	if err != nil {
		return nil, "", err
	}
	if err := envelope.Verify(pub, stmtData, sig); err != nil {
		return nil, "", errors.Wrapf(err, "decryption signature of trustee %d", auth)
	}
	if len(pd.Elements) != len(X) {
		return nil, "", errors.Errorf("decryption of trustee %d has %d elements, want %d", auth, len(pd.Elements), len(X))
	}
	elements := make([]kyber.Point, len(pd.Elements))
	err = t.Pool.Each(len(pd.Elements), func(i int) error {
		var err error
		elements[i], err = e.s.DecodePoint(pd.Elements[i])
		return errors.Wrapf(err, "decryption element %d of trustee %d", i, auth)
	})
	if err != nil {
		return nil, "", err
	}
	partial := &mixlib.Partial{Elements: elements, Proof: pd.Proof}
	if auth != e.pos {
		share, _, err := loadShare(t, e, item, auth)
		if err != nil {
			return nil, "", err
		}
		if err := e.s.VerifyPartial(partial, share, X); err != nil {
			return nil, "", errors.Wrapf(err, "decryption of trustee %d", auth)
		}
	}
	return partial, hash, nil
}

// AddOrSignPlaintexts combines all verified partial decryptions of the
// final mix into the decoded plaintexts. The designated decryptor of the
// item publishes them; everyone else re-derives and co-signs on a match.
type AddOrSignPlaintexts struct {
	Item int
}

func (a AddOrSignPlaintexts) Name() string { return fmt.Sprintf("AddOrSignPlaintexts(%d)", a.Item) }

func (a AddOrSignPlaintexts) Run(t *Trustee, files condition.KeySet) Result {
	e, err := getValidConfigHash(t)
	if err != nil {
		return fail(err)
	}
	tip, err := closeMixChain(t, e, a.Item)
	if err != nil {
		return fail(err)
	}
	final := TrusteeAtPosition(e.n, a.Item, e.n)
	result, _, _, err := loadMix(t, e, a.Item, final)
	if err != nil {
		return fail(err)
	}
	X, Y, err := e.s.ParseCiphertexts(result.Ciphertexts, t.Pool)
	if err != nil {
		return fail(err)
	}
	partials := make([]*mixlib.Partial, e.n)
	hashes := make([]string, e.n)
	for auth := 1; auth <= e.n; auth++ {
		partials[auth-1], hashes[auth-1], err = loadPartial(t, e, a.Item, auth, tip, X)
		if err != nil {
			return fail(err)
		}
	}
	M, err := e.s.CombinePartials(partials, Y)
	if err != nil {
		return fail(err)
	}
	decoded, err := mixlib.Decode(M)
	if err != nil {
		return fail(err)
	}
	messages := make([]string, len(decoded))
	for i, m := range decoded {
		messages[i] = base64.StdEncoding.EncodeToString(m)
	}
	plaintexts := &artifact.Plaintexts{Messages: messages}
	payload, err := plaintexts.Bytes()
	if err != nil {
		return fail(err)
	}
	stmt := artifact.PlaintextsStatement{
		PlaintextsHash:  envelope.Hash(payload),
		DecryptionsHash: hashList(hashes),
		ConfigHash:      e.hash,
		Item:            a.Item,
	}

	if !files.Contains(names.Plaintexts(a.Item)) {
		if e.pos != DecryptorForItem(a.Item, e.n) {
			return ok()
		}
		stmtBytes, sig, err := signStatement(t, stmt)
		if err != nil {
			return fail(err)
		}
		if err := t.Board.AddPlaintexts(payload, stmtBytes, sig, a.Item, e.pos); err != nil {
			return fail(err)
		}
		return ok()
	}

	postedStmt, err := t.Board.GetPlaintextsStatement(a.Item)
	if err != nil {
		return fail(err)
	}
	myStmt, err := stmt.Bytes()
	if err != nil {
		return fail(err)
	}
	if !bytes.Equal(postedStmt, myStmt) {
		return failf("plaintexts statement for item %d does not match the local derivation", a.Item)
	}
	posted, err := t.Board.GetPlaintexts(a.Item)
	if err != nil {
		return fail(err)
	}
	if envelope.Hash(posted) != stmt.PlaintextsHash {
		return failf("plaintexts payload for item %d does not match its statement", a.Item)
	}
	sig, err := envelope.Sign(t.Signer, postedStmt)
	if err != nil {
		return fail(err)
	}
	if err := t.Board.AddPlaintextsSignature(sig, a.Item, e.pos); err != nil {
		return fail(err)
	}
	return ok()
}
