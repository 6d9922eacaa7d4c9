package protocol

import (
	"github.com/nvotes/mixnet/condition"
	"github.com/nvotes/mixnet/names"
)

// StopAction ends the cycle without doing work: the board is paused or
// carries a sticky error.
type StopAction struct {
	Msg string
}

func (a StopAction) Name() string { return "Stop" }

func (a StopAction) Run(t *Trustee, files condition.KeySet) Result {
	return stop(a.Msg)
}

// globalAction evaluates the cycle-wide rules, first match wins: pause,
// sticky errors, config approval.
func globalAction(files condition.KeySet, pos int) Action {
	if files.Contains(names.Pause) {
		return StopAction{Msg: "board is paused"}
	}
	for key := range files {
		if names.IsError(key) {
			return StopAction{Msg: "board carries error " + key}
		}
	}
	approval := condition.New().
		Present(names.Config).
		Present(names.ConfigStmt).
		Absent(names.ConfigSig(pos))
	if approval.Eval(files) {
		return ValidateConfig{}
	}
	return nil
}

// itemAction evaluates the per-item rules for item p, first match wins.
// The rule order encodes the protocol phases; every gate also excludes its
// own effect so re-selection is a no-op.
func itemAction(files condition.KeySet, p, pos, n int, offlineSplit bool) Action {
	// 1: everyone approved the config, own share missing.
	shareRule := condition.New()
	for a := 1; a <= n; a++ {
		shareRule.Present(names.ConfigSig(a))
	}
	shareRule.Absent(names.Share(p, pos))
	if shareRule.Eval(files) {
		return AddShare{Item: p}
	}

	allShares := condition.New()
	for a := 1; a <= n; a++ {
		allShares.Present(names.Share(p, a))
	}

	// 2: trustee 1 publishes the joint key.
	if pos == 1 {
		publish := condition.And(allShares,
			condition.New().Absent(names.PublicKey(p)))
		if publish.Eval(files) {
			return AddOrSignPublicKey{Item: p}
		}
	}

	// 3: everyone else re-derives and co-signs it.
	cosign := condition.And(allShares, condition.New().
		Present(names.PublicKey(p)).
		Absent(names.PublicKeySig(p, pos)))
	if cosign.Eval(files) {
		return AddOrSignPublicKey{Item: p}
	}

	// 4: precompute the shuffle while the mix chain is still upstream.
	if offlineSplit {
		pre := condition.New().
			Present(names.Ballots(p)).
			Absent(names.PermData(p, pos)).
			Absent(names.Mix(p, pos))
		if pre.Eval(files) {
			return AddPreShuffleData{Item: p}
		}
	}

	// 5: mix once every earlier position is mixed and self-signed.
	mixRule := condition.New().Present(names.Ballots(p))
	k := MixPosition(pos, p, n)
	for j := 1; j < k; j++ {
		tr := TrusteeAtPosition(j, p, n)
		mixRule.Present(names.Mix(p, tr))
		mixRule.Present(names.MixSig(p, tr, tr))
	}
	mixRule.Absent(names.Mix(p, pos))
	if mixRule.Eval(files) {
		return AddMix{Item: p}
	}

	// 6: co-sign other trustees' mixes after verification.
	for a := 1; a <= n; a++ {
		if a == pos {
			continue
		}
		verify := condition.New().
			Present(names.Mix(p, a)).
			Absent(names.MixSig(p, a, pos))
		if verify.Eval(files) {
			return VerifyMix{Item: p, Auth: a}
		}
	}

	// 7: decrypt once every mix carries this trustee's signature.
	decryptRule := condition.New()
	for a := 1; a <= n; a++ {
		decryptRule.Present(names.MixSig(p, a, pos))
	}
	decryptRule.Absent(names.Decryption(p, pos))
	if decryptRule.Eval(files) {
		return AddDecryption{Item: p}
	}

	// 8: the designated decryptor publishes the plaintexts.
	if pos == DecryptorForItem(p, n) {
		publish := condition.New()
		for a := 1; a <= n; a++ {
			publish.Present(names.Decryption(p, a))
		}
		publish.Absent(names.Plaintexts(p))
		if publish.Eval(files) {
			return AddOrSignPlaintexts{Item: p}
		}
	}

	// 9: everyone else re-derives and co-signs them.
	cosignPlain := condition.New().
		Present(names.Plaintexts(p)).
		Absent(names.PlaintextsSig(p, pos))
	if cosignPlain.Eval(files) {
		return AddOrSignPlaintexts{Item: p}
	}

	return nil
}
