package protocol

import (
	"crypto/rsa"
	"encoding/base64"
	"io"
	"io/ioutil"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/nvotes/mixnet/board"
	"github.com/nvotes/mixnet/envelope"
	"github.com/nvotes/mixnet/mixlib"
)

// LocalConfig is the trustee's private TOML file: key material paths, the
// board location and the tuning knobs. Nothing in it ever reaches the
// board.
type LocalConfig struct {
	DataStorePath    string   `toml:"dataStorePath"`
	RepoBaseURI      string   `toml:"repoBaseUri"`
	PublicKey        string   `toml:"publicKey"`
	PrivateKey       string   `toml:"privateKey"`
	AESKey           string   `toml:"aesKey"`
	Peers            []string `toml:"peers"`
	OfflineSplit     bool     `toml:"offlineSplit"`
	GitNoCompression bool     `toml:"gitNoCompression"`
	GitRemoveLock    bool     `toml:"gitRemoveLock"`
	SingletonPort    int      `toml:"singletonPort"`
}

// LoadLocalConfig reads the trustee config, applying the defaults the file
// may omit.
func LoadLocalConfig(path string) (*LocalConfig, error) {
	lc := &LocalConfig{
		SingletonPort: 9999,
		GitRemoveLock: true,
	}
	if _, err := toml.DecodeFile(path, lc); err != nil {
		return nil, errors.Wrapf(err, "reading local config %s", path)
	}
	if lc.DataStorePath == "" {
		return nil, errors.New("local config misses dataStorePath")
	}
	if lc.RepoBaseURI == "" {
		return nil, errors.New("local config misses repoBaseUri")
	}
	return lc, nil
}

// readAESKey accepts the key file either as 16 raw bytes or as their
// base64 encoding.
func readAESKey(path string) ([]byte, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "aes key")
	}
	if len(data) == 16 {
		return data, nil
	}
	key, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil || len(key) != 16 {
		return nil, errors.Errorf("aes key at %s is neither 16 raw bytes nor their base64", path)
	}
	return key, nil
}

// loadPeers reads the trusted peer key files. Each file may hold one or
// more PEM blocks.
func loadPeers(paths []string) ([]*rsa.PublicKey, error) {
	var keys []*rsa.PublicKey
	for _, p := range paths {
		data, err := ioutil.ReadFile(p)
		if err != nil {
			return nil, errors.Wrap(err, "peer key")
		}
		parsed, err := envelope.ParsePeers(data)
		if err != nil {
			return nil, errors.Wrapf(err, "peer key %s", p)
		}
		keys = append(keys, parsed...)
	}
	return keys, nil
}

// NewTrustee wires a trustee to one board section: the directory
// transport under the repo base, the bbolt mirror under the data store
// path, and the key material from the local config. The returned closer
// releases the mirror.
func NewTrustee(lc *LocalConfig, section string) (*Trustee, io.Closer, error) {
	pubPEM, err := ioutil.ReadFile(lc.PublicKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "trustee public key")
	}
	if _, err := envelope.ParsePublicKey(pubPEM); err != nil {
		return nil, nil, errors.Wrap(err, "trustee public key")
	}
	privPEM, err := ioutil.ReadFile(lc.PrivateKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "trustee private key")
	}
	signer, err := envelope.ParsePrivateKey(privPEM)
	if err != nil {
		return nil, nil, errors.Wrap(err, "trustee private key")
	}
	aesKey, err := readAESKey(lc.AESKey)
	if err != nil {
		return nil, nil, err
	}
	peerKeys, err := loadPeers(lc.Peers)
	if err != nil {
		return nil, nil, err
	}
	tr, err := board.NewDirTransport(filepath.Join(lc.RepoBaseURI, section))
	if err != nil {
		return nil, nil, err
	}
	if lc.GitRemoveLock {
		if err := tr.RemoveLock(); err != nil {
			return nil, nil, errors.Wrap(err, "removing stale board lock")
		}
	}
	store, err := board.NewBoltStore(filepath.Join(lc.DataStorePath, section+".db"), tr)
	if err != nil {
		return nil, nil, err
	}
	t := &Trustee{
		Board:        board.New(store),
		Signer:       signer,
		PublicPEM:    string(pubPEM),
		AESKey:       aesKey,
		Peers:        peerKeys,
		OfflineSplit: lc.OfflineSplit,
		Pool:         mixlib.NewPool(0),
	}
	return t, store, nil
}
