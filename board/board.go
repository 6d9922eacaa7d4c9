package board

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/nvotes/mixnet/condition"
	"github.com/nvotes/mixnet/names"
)

// Board is the typed facade the protocol talks to. Every published
// artifact goes out as an atomic triple (payload, statement, signature);
// the local pre-shuffle entries live only in process memory and are
// surfaced through FileSet so the rules can gate on them.
type Board struct {
	store Store

	mu  sync.Mutex
	pre map[string][]byte
}

// New wraps a store.
func New(store Store) *Board {
	return &Board{store: store, pre: make(map[string][]byte)}
}

// Sync refreshes the replicated view. Local pre-shuffle data survives the
// sync; it was never pushed.
func (b *Board) Sync() error {
	return b.store.Sync()
}

// FileSet snapshots every key visible to the rules: the replicated board
// plus the local pre-shuffle entries.
func (b *Board) FileSet() (condition.KeySet, error) {
	keys, err := b.store.Keys()
	if err != nil {
		return nil, errors.Wrap(err, "listing board keys")
	}
	set := condition.NewKeySet(keys)
	b.mu.Lock()
	for k := range b.pre {
		set[k] = struct{}{}
	}
	b.mu.Unlock()
	return set, nil
}

// get requires presence: the rules gate every read on the key set, so a
// missing artifact at read time is a protocol error, not an expected case.
func (b *Board) get(key string) ([]byte, error) {
	data, ok, err := b.store.Get(key)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", key)
	}
	if !ok {
		return nil, errors.Errorf("artifact %s is not on the board", key)
	}
	return data, nil
}

func (b *Board) GetConfig() ([]byte, error)          { return b.get(names.Config) }
func (b *Board) GetConfigStatement() ([]byte, error) { return b.get(names.ConfigStmt) }

func (b *Board) GetConfigSignature(auth int) ([]byte, error) {
	return b.get(names.ConfigSig(auth))
}

// AddConfig publishes the election config with its statement. The
// bootstrap tool is the only writer.
func (b *Board) AddConfig(config, statement []byte) error {
	return b.store.PutAtomic(map[string][]byte{
		names.Config:     config,
		names.ConfigStmt: statement,
	})
}

// AddConfigSignature publishes this trustee's approval of the config.
func (b *Board) AddConfigSignature(signature []byte, auth int) error {
	return b.store.PutAtomic(map[string][]byte{
		names.ConfigSig(auth): signature,
	})
}

func (b *Board) GetShare(item, auth int) ([]byte, error) {
	return b.get(names.Share(item, auth))
}

func (b *Board) GetShareStatement(item, auth int) ([]byte, error) {
	return b.get(names.ShareStmt(item, auth))
}

func (b *Board) GetShareSignature(item, auth int) ([]byte, error) {
	return b.get(names.ShareSig(item, auth))
}

func (b *Board) AddShare(share, statement, signature []byte, item, auth int) error {
	return b.store.PutAtomic(map[string][]byte{
		names.Share(item, auth):     share,
		names.ShareStmt(item, auth): statement,
		names.ShareSig(item, auth):  signature,
	})
}

func (b *Board) GetPublicKey(item int) ([]byte, error) {
	return b.get(names.PublicKey(item))
}

func (b *Board) GetPublicKeyStatement(item int) ([]byte, error) {
	return b.get(names.PublicKeyStmt(item))
}

func (b *Board) GetPublicKeySignature(item, auth int) ([]byte, error) {
	return b.get(names.PublicKeySig(item, auth))
}

func (b *Board) AddPublicKey(publicKey, statement, signature []byte, item, auth int) error {
	return b.store.PutAtomic(map[string][]byte{
		names.PublicKey(item):          publicKey,
		names.PublicKeyStmt(item):      statement,
		names.PublicKeySig(item, auth): signature,
	})
}

func (b *Board) AddPublicKeySignature(signature []byte, item, auth int) error {
	return b.store.PutAtomic(map[string][]byte{
		names.PublicKeySig(item, auth): signature,
	})
}

func (b *Board) GetBallots(item int) ([]byte, error) {
	return b.get(names.Ballots(item))
}

func (b *Board) GetBallotsStatement(item int) ([]byte, error) {
	return b.get(names.BallotsStmt(item))
}

func (b *Board) GetBallotsSignature(item int) ([]byte, error) {
	return b.get(names.BallotsSig(item))
}

// AddBallots publishes the cast ciphertexts; the ballotbox is the writer.
func (b *Board) AddBallots(ballots, statement, signature []byte, item int) error {
	return b.store.PutAtomic(map[string][]byte{
		names.Ballots(item):     ballots,
		names.BallotsStmt(item): statement,
		names.BallotsSig(item):  signature,
	})
}

func (b *Board) GetMix(item, auth int) ([]byte, error) {
	return b.get(names.Mix(item, auth))
}

func (b *Board) GetMixStatement(item, auth int) ([]byte, error) {
	return b.get(names.MixStmt(item, auth))
}

func (b *Board) GetMixSignature(item, mixer, signer int) ([]byte, error) {
	return b.get(names.MixSig(item, mixer, signer))
}

// AddMix publishes a mix with its statement and the mixer's self
// signature.
func (b *Board) AddMix(mix, statement, selfSignature []byte, item, auth int) error {
	return b.store.PutAtomic(map[string][]byte{
		names.Mix(item, auth):          mix,
		names.MixStmt(item, auth):      statement,
		names.MixSig(item, auth, auth): selfSignature,
	})
}

// AddMixSignature publishes signer's co-signature over mixer's mix.
func (b *Board) AddMixSignature(signature []byte, item, mixer, signer int) error {
	return b.store.PutAtomic(map[string][]byte{
		names.MixSig(item, mixer, signer): signature,
	})
}

func (b *Board) GetDecryption(item, auth int) ([]byte, error) {
	return b.get(names.Decryption(item, auth))
}

func (b *Board) GetDecryptionStatement(item, auth int) ([]byte, error) {
	return b.get(names.DecryptionStmt(item, auth))
}

func (b *Board) GetDecryptionSignature(item, auth int) ([]byte, error) {
	return b.get(names.DecryptionSig(item, auth))
}

func (b *Board) AddDecryption(decryption, statement, signature []byte, item, auth int) error {
	return b.store.PutAtomic(map[string][]byte{
		names.Decryption(item, auth):     decryption,
		names.DecryptionStmt(item, auth): statement,
		names.DecryptionSig(item, auth):  signature,
	})
}

func (b *Board) GetPlaintexts(item int) ([]byte, error) {
	return b.get(names.Plaintexts(item))
}

func (b *Board) GetPlaintextsStatement(item int) ([]byte, error) {
	return b.get(names.PlaintextsStmt(item))
}

func (b *Board) GetPlaintextsSignature(item, auth int) ([]byte, error) {
	return b.get(names.PlaintextsSig(item, auth))
}

func (b *Board) AddPlaintexts(plaintexts, statement, signature []byte, item, auth int) error {
	return b.store.PutAtomic(map[string][]byte{
		names.Plaintexts(item):          plaintexts,
		names.PlaintextsStmt(item):      statement,
		names.PlaintextsSig(item, auth): signature,
	})
}

func (b *Board) AddPlaintextsSignature(signature []byte, item, auth int) error {
	return b.store.PutAtomic(map[string][]byte{
		names.PlaintextsSig(item, auth): signature,
	})
}

// AddError posts this trustee's sticky error sentinel. The message is the
// payload so a human can diagnose from the board alone.
func (b *Board) AddError(message string, auth int) error {
	return b.store.PutAtomic(map[string][]byte{
		names.ErrorAuth(auth): []byte(message),
	})
}

// AddPause posts the global pause sentinel.
func (b *Board) AddPause() error {
	return b.store.PutAtomic(map[string][]byte{
		names.Pause: nil,
	})
}

// AddPreShuffleDataLocal stores pre-shuffle data in process memory only.
func (b *Board) AddPreShuffleDataLocal(data []byte, item, auth int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pre[names.PermData(item, auth)] = data
}

// GetPreShuffleDataLocal returns the local pre-shuffle data, if present.
func (b *Board) GetPreShuffleDataLocal(item, auth int) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.pre[names.PermData(item, auth)]
	return data, ok
}

// RmPreShuffleDataLocal discards the local pre-shuffle data once the mix
// is on the board.
func (b *Board) RmPreShuffleDataLocal(item, auth int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pre, names.PermData(item, auth))
}
