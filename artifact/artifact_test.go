package artifact

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvotes/mixnet/envelope"
)

func TestConfigCanonicalHash(t *testing.T) {
	cfg := &Config{
		ID:        "e1",
		Name:      "test",
		Modulus:   "23",
		Generator: "2",
		Items:     2,
		Ballotbox: "bb-pem",
		Trustees:  []string{"t1-pem", "t2-pem"},
	}
	data, err := cfg.Bytes()
	require.NoError(t, err)
	back, err := ParseConfig(data)
	require.NoError(t, err)
	require.Equal(t, cfg, back)

	h1, err := cfg.Hash()
	require.NoError(t, err)
	h2, err := back.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, envelope.Hash(data), h1)
}

func TestTrusteePosition(t *testing.T) {
	pems := make([]string, 3)
	for i := range pems {
		priv, err := rsa.GenerateKey(rand.Reader, 1024)
		require.NoError(t, err)
		pems[i], err = envelope.EncodePublicKey(&priv.PublicKey)
		require.NoError(t, err)
	}
	cfg := &Config{Trustees: pems[:2]}
	assert.Equal(t, 1, cfg.TrusteePosition(pems[0]))
	assert.Equal(t, 2, cfg.TrusteePosition(pems[1]))
	assert.Equal(t, 0, cfg.TrusteePosition(pems[2]))
	assert.Equal(t, 0, cfg.TrusteePosition("not a key"))

	// Surrounding whitespace in the PEM text does not change the position.
	assert.Equal(t, 1, cfg.TrusteePosition("\n"+pems[0]+"\n\n"))
}

func TestStatementBytesAreCanonical(t *testing.T) {
	stmt := MixStatement{
		MixHash:    "aa",
		ParentHash: "bb",
		ConfigHash: "cc",
		Item:       1,
		Auth:       2,
	}
	b1, err := stmt.Bytes()
	require.NoError(t, err)
	b2, err := stmt.Bytes()
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
	assert.Equal(t, `{"mixHash":"aa","parentHash":"bb","configHash":"cc","item":1,"auth":2}`, string(b1))

	var back MixStatement
	require.NoError(t, ParseStatement(b1, &back))
	assert.Equal(t, stmt, back)
}

func TestShuffleResultStreamingHash(t *testing.T) {
	result := &ShuffleResult{
		MixProof: []byte("proof-bytes"),
		Ciphertexts: []Ciphertext{
			{Alpha: "YQ==", Beta: "Yg=="},
			{Alpha: "Yw==", Beta: "ZA=="},
		},
	}
	payload, writeHash, err := result.Bytes()
	require.NoError(t, err)

	back, readHash, err := ReadShuffleResult(bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, writeHash, readHash)
	assert.Equal(t, result.MixProof, back.MixProof)
	assert.Equal(t, result.Ciphertexts, back.Ciphertexts)

	_, _, err = ReadShuffleResult(bytes.NewReader(payload[:10]))
	assert.Error(t, err)
}

func TestPartialDecryptionStreamingHash(t *testing.T) {
	pd := &PartialDecryption{
		Elements: []string{"YQ==", "Yg=="},
		Proof:    []byte("proof"),
	}
	payload, writeHash, err := pd.Bytes()
	require.NoError(t, err)

	back, readHash, err := ReadPartialDecryption(bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, writeHash, readHash)
	assert.Equal(t, pd.Elements, back.Elements)
	assert.Equal(t, pd.Proof, back.Proof)
}

func TestShareRoundTrip(t *testing.T) {
	s := &Share{
		Point:            "cG9pbnQ=",
		Proof:            "cHJvb2Y=",
		EncryptedPrivate: "c2VjcmV0",
		IV:               "aXY=",
	}
	data, err := s.Bytes()
	require.NoError(t, err)
	back, err := ParseShare(data)
	require.NoError(t, err)
	assert.Equal(t, s, back)

	_, err = ParseShare([]byte("not json"))
	assert.Error(t, err)
}

func TestBallotsAndPlaintexts(t *testing.T) {
	b := &Ballots{Ciphertexts: []Ciphertext{{Alpha: "YQ==", Beta: "Yg=="}}}
	data, err := b.Bytes()
	require.NoError(t, err)
	back, err := ParseBallots(data)
	require.NoError(t, err)
	assert.Equal(t, b, back)

	p := &Plaintexts{Messages: []string{"bTE=", "bTI="}}
	data, err = p.Bytes()
	require.NoError(t, err)
	pBack, err := ParsePlaintexts(data)
	require.NoError(t, err)
	assert.Equal(t, p, pBack)
}
