package protocol

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"

	"github.com/nvotes/mixnet/artifact"
	"github.com/nvotes/mixnet/condition"
	"github.com/nvotes/mixnet/envelope"
	"github.com/nvotes/mixnet/mixlib"
)

// loadPublicKey fetches the joint election key of one item, checked
// against its statement. The statement's signatures were verified when
// this trustee co-signed the key.
func loadPublicKey(t *Trustee, e *election, item int) (kyber.Point, error) {
	payload, err := t.Board.GetPublicKey(item)
	if err != nil {
		return nil, err
	}
	stmtData, err := t.Board.GetPublicKeyStatement(item)
	if err != nil {
		return nil, err
	}
	var stmt artifact.PublicKeyStatement
	if err := artifact.ParseStatement(stmtData, &stmt); err != nil {
		return nil, err
	}
	if stmt.Item != item || stmt.ConfigHash != e.hash {
		return nil, errors.Errorf("public key statement of item %d is bound to the wrong election", item)
	}
	if stmt.PublicKeyHash != envelope.Hash(payload) {
		return nil, errors.Errorf("public key of item %d does not match its statement", item)
	}
	pk, err := artifact.ParsePublicKey(payload)
	if err != nil {
		return nil, err
	}
	return e.s.DecodePoint(pk.Key)
}

// loadBallots fetches the cast ciphertexts of one item, checking the
// statement and the ballotbox signature. The returned hash is the chain
// root the first mix statement must bind to.
func loadBallots(t *Trustee, e *election, item int) (*artifact.Ballots, string, error) {
	payload, err := t.Board.GetBallots(item)
	if err != nil {
		return nil, "", err
	}
	stmtData, err := t.Board.GetBallotsStatement(item)
	if err != nil {
		return nil, "", err
	}
	sig, err := t.Board.GetBallotsSignature(item)
	if err != nil {
		return nil, "", err
	}
	var stmt artifact.BallotsStatement
	if err := artifact.ParseStatement(stmtData, &stmt); err != nil {
		return nil, "", err
	}
	if stmt.Item != item || stmt.ConfigHash != e.hash {
		return nil, "", errors.Errorf("ballots statement of item %d is bound to the wrong election", item)
	}
	if stmt.BallotsHash != envelope.Hash(payload) {
		return nil, "", errors.Errorf("ballots of item %d do not match their statement", item)
	}
	bbKey, err := envelope.ParsePublicKey([]byte(e.cfg.Ballotbox))
	if err != nil {
		return nil, "", errors.Wrap(err, "ballotbox key")
	}
	if err := envelope.Verify(bbKey, stmtData, sig); err != nil {
		return nil, "", errors.Wrapf(err, "ballotbox signature on item %d", item)
	}
	ballots, err := artifact.ParseBallots(payload)
	if err != nil {
		return nil, "", err
	}
	return ballots, stmt.BallotsHash, nil
}

// loadMix fetches one trustee's mix, hashing the stream while reading, and
// checks the statement fields against the observed hash. Signature checks
// are the caller's.
func loadMix(t *Trustee, e *election, item, auth int) (*artifact.ShuffleResult, *artifact.MixStatement, []byte, error) {
	payload, err := t.Board.GetMix(item, auth)
	if err != nil {
		return nil, nil, nil, err
	}
	result, hash, err := artifact.ReadShuffleResult(bytes.NewReader(payload))
	if err != nil {
		return nil, nil, nil, err
	}
	stmtData, err := t.Board.GetMixStatement(item, auth)
	if err != nil {
		return nil, nil, nil, err
	}
	stmt := &artifact.MixStatement{}
	if err := artifact.ParseStatement(stmtData, stmt); err != nil {
		return nil, nil, nil, err
	}
	if stmt.Item != item || stmt.ConfigHash != e.hash || stmt.Auth != auth {
		return nil, nil, nil, errors.Errorf("mix statement of trustee %d is bound to the wrong election", auth)
	}
	if stmt.MixHash != hash {
		return nil, nil, nil, errors.Errorf("mix of trustee %d does not match its statement", auth)
	}
	return result, stmt, stmtData, nil
}

// verifyMixSelfSignature checks the mixer's own signature over its mix
// statement. A mix without it is not part of the chain.
func verifyMixSelfSignature(t *Trustee, e *election, stmtData []byte, item, auth int) error {
	sig, err := t.Board.GetMixSignature(item, auth, auth)
	if err != nil {
		return err
	}
	pub, err := e.trusteeKey(auth)
	if err != nil {
		return err
	}
	if err := envelope.Verify(pub, stmtData, sig); err != nil {
		return errors.Wrapf(err, "self signature on mix of trustee %d", auth)
	}
	return nil
}

// parentVotes loads the input of the mix at position k: the ballots for
// position 1, otherwise the previous position's mix (checked and
// self-signed). The returned hash is what the mix statement's parentHash
// must equal.
func parentVotes(t *Trustee, e *election, item, k int) (X, Y []kyber.Point, parentHash string, err error) {
	if k == 1 {
		ballots, hash, err := loadBallots(t, e, item)
		if err != nil {
			return nil, nil, "", err
		}
		X, Y, err = e.s.ParseCiphertexts(ballots.Ciphertexts, t.Pool)
		if err != nil {
			return nil, nil, "", err
		}
		return X, Y, hash, nil
	}
	prev := TrusteeAtPosition(k-1, item, e.n)
	result, stmt, stmtData, err := loadMix(t, e, item, prev)
	if err != nil {
		return nil, nil, "", err
	}
	if err := verifyMixSelfSignature(t, e, stmtData, item, prev); err != nil {
		return nil, nil, "", err
	}
	X, Y, err = e.s.ParseCiphertexts(result.Ciphertexts, t.Pool)
	if err != nil {
		return nil, nil, "", err
	}
	return X, Y, stmt.MixHash, nil
}

// AddPreShuffleData runs the ciphertext-independent half of the shuffle
// while other items are still in flight and parks it in the local side
// channel. Order-independent, so the driver may run it in parallel across
// items.
type AddPreShuffleData struct {
	Item int
}

func (a AddPreShuffleData) Name() string { return fmt.Sprintf("AddPreShuffleData(%d)", a.Item) }

func (a AddPreShuffleData) Run(t *Trustee, files condition.KeySet) Result {
	e, err := getValidConfigHash(t)
	if err != nil {
		return fail(err)
	}
	pk, err := loadPublicKey(t, e, a.Item)
	if err != nil {
		return fail(err)
	}
	ballots, _, err := loadBallots(t, e, a.Item)
	if err != nil {
		return fail(err)
	}
	pre := e.s.ShuffleOffline(len(ballots.Ciphertexts), pk)
	data, err := e.s.EncodePreShuffleData(pre)
	if err != nil {
		return fail(err)
	}
	t.Board.AddPreShuffleDataLocal(data, a.Item, e.pos)
	return ok()
}

// AddMix shuffles the parent votes at this trustee's position in the
// chain and publishes the result with a statement binding the parent hash.
type AddMix struct {
	Item int
}

func (a AddMix) Name() string { return fmt.Sprintf("AddMix(%d)", a.Item) }

func (a AddMix) Run(t *Trustee, files condition.KeySet) Result {
	e, err := getValidConfigHash(t)
	if err != nil {
		return fail(err)
	}
	pk, err := loadPublicKey(t, e, a.Item)
	if err != nil {
		return fail(err)
	}
	k := MixPosition(e.pos, a.Item, e.n)
	X, Y, parentHash, err := parentVotes(t, e, a.Item, k)
	if err != nil {
		return fail(err)
	}

	var Xbar, Ybar []kyber.Point
	var prf []byte
	if data, found := t.Board.GetPreShuffleDataLocal(a.Item, e.pos); found {
		pre, err := e.s.DecodePreShuffleData(data)
		if err != nil {
			return fail(err)
		}
		Xbar, Ybar, prf, err = e.s.ShuffleOnline(pre, X, Y, pk)
		if err != nil {
			return fail(err)
		}
	} else {
		Xbar, Ybar, prf, err = e.s.ShuffleSingle(X, Y, pk)
		if err != nil {
			return fail(err)
		}
	}

	cs, err := mixlib.RenderCiphertexts(Xbar, Ybar)
	if err != nil {
		return fail(err)
	}
	result := &artifact.ShuffleResult{MixProof: prf, Ciphertexts: cs}
	payload, mixHash, err := result.Bytes()
	if err != nil {
		return fail(err)
	}
	stmt := artifact.MixStatement{
		MixHash:    mixHash,
		ParentHash: parentHash,
		ConfigHash: e.hash,
		Item:       a.Item,
		Auth:       e.pos,
	}
	stmtBytes, sig, err := signStatement(t, stmt)
	if err != nil {
		return fail(err)
	}
	if err := t.Board.AddMix(payload, stmtBytes, sig, a.Item, e.pos); err != nil {
		return fail(err)
	}
	t.Board.RmPreShuffleDataLocal(a.Item, e.pos)
	return ok()
}

// VerifyMix checks another trustee's mix end to end (statement, mixer
// self-signature, shuffle proof against the correct parent) and co-signs
// it. The co-signature is this trustee's record that it personally
// verified the link.
type VerifyMix struct {
	Item int
	Auth int
}

func (a VerifyMix) Name() string { return fmt.Sprintf("VerifyMix(%d,%d)", a.Item, a.Auth) }

func (a VerifyMix) Run(t *Trustee, files condition.KeySet) Result {
	e, err := getValidConfigHash(t)
	if err != nil {
		return fail(err)
	}
	pk, err := loadPublicKey(t, e, a.Item)
	if err != nil {
		return fail(err)
	}
	result, stmt, stmtData, err := loadMix(t, e, a.Item, a.Auth)
	if err != nil {
		return fail(err)
	}
	if err := verifyMixSelfSignature(t, e, stmtData, a.Item, a.Auth); err != nil {
		return fail(err)
	}
	k := MixPosition(a.Auth, a.Item, e.n)
	X, Y, parentHash, err := parentVotes(t, e, a.Item, k)
	if err != nil {
		return fail(err)
	}
	if stmt.ParentHash != parentHash {
		return failf("mix of trustee %d for item %d does not bind its parent", a.Auth, a.Item)
	}
	Xbar, Ybar, err := e.s.ParseCiphertexts(result.Ciphertexts, t.Pool)
	if err != nil {
		return fail(err)
	}
	if err := e.s.VerifyShuffle(X, Y, Xbar, Ybar, pk, result.MixProof); err != nil {
		return fail(errors.Wrapf(err, "mix of trustee %d for item %d", a.Auth, a.Item))
	}
	sig, err := envelope.Sign(t.Signer, stmtData)
	if err != nil {
		return fail(err)
	}
	if err := t.Board.AddMixSignature(sig, a.Item, a.Auth, e.pos); err != nil {
		return fail(err)
	}
	return ok()
}
