// Package names defines the key grammar of the bulletin board.
//
// Every artifact a trustee reads or writes lives under a stable string key.
// The same strings double as tokens for the condition engine, so the grammar
// must be total and collision free. Trustee subtrees are rooted at the
// 1-based trustee position, the ballotbox subtree at "bb", and election-wide
// artifacts at the root. Item indices are carried in the file name rather
// than the path so that trustee directories stay flat.
package names

import (
	"fmt"
	"strconv"
	"strings"
)

// Root artifacts.
const (
	Config     = "config.json"
	ConfigStmt = "config.stmt.json"
	Pause      = "pause"
	Error      = "error"
)

// ConfigSig is the signature of trustee auth over the config statement.
func ConfigSig(auth int) string {
	return fmt.Sprintf("%d/config.sig", auth)
}

// ErrorAuth is the per-trustee error sentinel.
func ErrorAuth(auth int) string {
	return fmt.Sprintf("%d/error", auth)
}

// Share artifacts, per trustee and item.
func Share(item, auth int) string {
	return fmt.Sprintf("%d/share_%d.json", auth, item)
}

func ShareStmt(item, auth int) string {
	return fmt.Sprintf("%d/share_%d.stmt.json", auth, item)
}

func ShareSig(item, auth int) string {
	return fmt.Sprintf("%d/share_%d.sig", auth, item)
}

// PublicKey artifacts. The joint key is election-wide per item; every
// trustee contributes a signature.
func PublicKey(item int) string {
	return fmt.Sprintf("public_key_%d.json", item)
}

func PublicKeyStmt(item int) string {
	return fmt.Sprintf("public_key_%d.stmt.json", item)
}

func PublicKeySig(item, auth int) string {
	return fmt.Sprintf("%d/public_key_%d.sig", auth, item)
}

// Ballots artifacts, posted by the ballotbox under its own subtree.
func Ballots(item int) string {
	return fmt.Sprintf("bb/ballots_%d.json", item)
}

func BallotsStmt(item int) string {
	return fmt.Sprintf("bb/ballots_%d.stmt.json", item)
}

func BallotsSig(item int) string {
	return fmt.Sprintf("bb/ballots_%d.sig", item)
}

// PermData is the local-only pre-shuffle data key. It never replicates.
func PermData(item, auth int) string {
	return fmt.Sprintf("%d/perm_data_%d", auth, item)
}

// Mix artifacts, per mixing trustee and item.
func Mix(item, auth int) string {
	return fmt.Sprintf("%d/mix_%d.raw", auth, item)
}

func MixStmt(item, auth int) string {
	return fmt.Sprintf("%d/mix_%d.stmt.json", auth, item)
}

// MixSig is signer's signature over mixer's mix statement. The self
// signature has signer == mixer.
func MixSig(item, mixer, signer int) string {
	return fmt.Sprintf("%d/mix_%d.%d.sig", signer, item, mixer)
}

// Decryption artifacts, per trustee and item.
func Decryption(item, auth int) string {
	return fmt.Sprintf("%d/decryption_%d.raw", auth, item)
}

func DecryptionStmt(item, auth int) string {
	return fmt.Sprintf("%d/decryption_%d.stmt.json", auth, item)
}

func DecryptionSig(item, auth int) string {
	return fmt.Sprintf("%d/decryption_%d.sig", auth, item)
}

// Plaintexts artifacts. The payload and statement are election-wide per
// item, signatures per trustee.
func Plaintexts(item int) string {
	return fmt.Sprintf("plaintexts_%d.json", item)
}

func PlaintextsStmt(item int) string {
	return fmt.Sprintf("plaintexts_%d.stmt.json", item)
}

func PlaintextsSig(item, auth int) string {
	return fmt.Sprintf("%d/plaintexts_%d.sig", auth, item)
}

// IsError reports whether key is the global or any per-trustee error
// sentinel.
func IsError(key string) bool {
	if key == Error {
		return true
	}
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 || parts[1] != "error" {
		return false
	}
	_, err := strconv.Atoi(parts[0])
	return err == nil
}
