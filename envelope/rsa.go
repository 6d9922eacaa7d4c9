// Package envelope holds the non-group cryptography of the trustee: RSA
// signatures over canonical statement bytes, AES wrapping of private key
// shares, and the streaming SHA-512 fingerprints that bind artifacts
// together.
package envelope

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"

	"github.com/pkg/errors"
)

// ParsePublicKey decodes a PEM encoded RSA public key, PKIX or PKCS#1.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block in public key")
	}
	if pub, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rpub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("PEM block is not an RSA public key")
		}
		return rpub, nil
	}
	rpub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parsing public key")
	}
	return rpub, nil
}

// ParsePrivateKey decodes a PEM encoded RSA private key, PKCS#8 or PKCS#1.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block in private key")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rkey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("PEM block is not an RSA private key")
		}
		return rkey, nil
	}
	rkey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parsing private key")
	}
	return rkey, nil
}

// EncodePublicKey renders an RSA public key as a PKIX PEM block. The PEM
// string is what goes into Config.Trustees and into peer files, so the
// rendering must be deterministic.
func EncodePublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", errors.Wrap(err, "encoding public key")
	}
	out := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return string(out), nil
}

// EncodePrivateKey renders an RSA private key as a PKCS#8 PEM block.
func EncodePrivateKey(priv *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", errors.Wrap(err, "encoding private key")
	}
	out := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return string(out), nil
}

// ParsePeers splits a file of concatenated PEM public keys into the trusted
// peer set.
func ParsePeers(data []byte) ([]*rsa.PublicKey, error) {
	var peers []*rsa.PublicKey
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		pub, err := ParsePublicKey(pem.EncodeToMemory(block))
		if err != nil {
			return nil, err
		}
		peers = append(peers, pub)
	}
	if len(peers) == 0 {
		return nil, errors.New("no peer keys found")
	}
	return peers, nil
}

// Sign produces an RSA-SHA256 signature over msg.
func Sign(priv *rsa.PrivateKey, msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return nil, errors.Wrap(err, "rsa sign")
	}
	return sig, nil
}

// Verify checks an RSA-SHA256 signature over msg.
func Verify(pub *rsa.PublicKey, msg, sig []byte) error {
	digest := sha256.Sum256(msg)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return errors.Wrap(err, "rsa verify")
	}
	return nil
}
