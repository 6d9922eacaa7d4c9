// trustee-admin is the authority-side companion tool: it creates board
// sections, publishes configs and test ballots, and clears pause and error
// markers. It talks to the same directory transport the trustees use.
package main

import (
	"fmt"
	"io/ioutil"
	"math/big"
	"os"
	"path/filepath"
	"sort"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3/log"
	uuid "gopkg.in/satori/go.uuid.v1"
	"gopkg.in/urfave/cli.v1"

	"github.com/nvotes/mixnet/artifact"
	"github.com/nvotes/mixnet/board"
	"github.com/nvotes/mixnet/envelope"
	"github.com/nvotes/mixnet/mixlib"
	"github.com/nvotes/mixnet/names"
)

// defaultModulusHex is the 1024-bit Oakley group 2 safe prime; 2 generates
// its residue subgroup.
const defaultModulusHex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381" +
	"FFFFFFFFFFFFFFFF"

var cmds = cli.Commands{
	{
		Name:  "new-config",
		Usage: "create a board section and publish its election config",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "name, n",
				Usage: "display name of the election",
			},
			cli.IntFlag{
				Name:  "items, i",
				Value: 1,
				Usage: "number of items (questions) in the election",
			},
			cli.StringFlag{
				Name:  "modulus",
				Usage: "decimal safe prime (defaults to the 1024 bit Oakley group 2 prime)",
			},
			cli.StringFlag{
				Name:  "generator",
				Value: "2",
				Usage: "decimal group generator",
			},
			cli.StringSliceFlag{
				Name:  "trustee, t",
				Usage: "trustee public key PEM file, repeatable, protocol order",
			},
			cli.StringFlag{
				Name:  "ballotbox",
				Usage: "ballotbox public key PEM file",
			},
		},
		Action: newConfig,
	},
	{
		Name:  "post-ballots",
		Usage: "encrypt test messages under an item's joint key and post them",
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  "item, i",
				Value: 1,
				Usage: "item to post ballots for",
			},
			cli.StringFlag{
				Name:  "key, k",
				Usage: "ballotbox private key PEM file",
			},
			cli.StringSliceFlag{
				Name:  "message, m",
				Usage: "plaintext message, repeatable",
			},
		},
		Action: postBallots,
	},
	{
		Name:   "show",
		Usage:  "list the artifacts on the board",
		Action: show,
	},
	{
		Name:   "pause",
		Usage:  "pause the trustees at the next cycle boundary",
		Action: pause,
	},
	{
		Name:   "clear-errors",
		Usage:  "remove error and pause markers so the trustees resume",
		Action: clearErrors,
	},
}

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "trustee-admin"
	cliApp.Usage = "Administer mixnet bulletin boards."
	cliApp.Version = "0.1"
	cliApp.Commands = cmds
	cliApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 1,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
		cli.StringFlag{
			Name:   "repo, r",
			EnvVar: "TRUSTEE_REPO",
			Usage:  "base directory holding the board sections",
		},
		cli.StringFlag{
			Name:  "board, b",
			Usage: "board section (election) to administer",
		},
	}
	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.Int("debug"))
		return nil
	}
	log.ErrFatal(cliApp.Run(os.Args))
}

// adminBoard is a throwaway mirror of one section: the bbolt file lives in
// the temp directory and is discarded after the command.
type adminBoard struct {
	board  *board.Board
	store  *board.BoltStore
	tr     *board.DirTransport
	mirror string
}

func (a *adminBoard) close() {
	a.store.Close()
	os.Remove(a.mirror)
}

func openBoard(c *cli.Context) (*adminBoard, error) {
	repo := c.GlobalString("repo")
	section := c.GlobalString("board")
	if repo == "" || section == "" {
		return nil, fmt.Errorf("-repo and -board flags are required")
	}
	tr, err := board.NewDirTransport(filepath.Join(repo, section))
	if err != nil {
		return nil, err
	}
	mirror, err := ioutil.TempFile("", "trustee-admin-*.db")
	if err != nil {
		return nil, err
	}
	mirror.Close()
	store, err := board.NewBoltStore(mirror.Name(), tr)
	if err != nil {
		os.Remove(mirror.Name())
		return nil, err
	}
	b := board.New(store)
	if err := b.Sync(); err != nil {
		store.Close()
		os.Remove(mirror.Name())
		return nil, err
	}
	return &adminBoard{board: b, store: store, tr: tr, mirror: mirror.Name()}, nil
}

func newConfig(c *cli.Context) error {
	ab, err := openBoard(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer ab.close()

	modulus := c.String("modulus")
	if modulus == "" {
		p, _ := new(big.Int).SetString(defaultModulusHex, 16)
		modulus = p.Text(10)
	}
	if _, err := mixlib.NewSuiteFromStrings(modulus, c.String("generator")); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	trusteeFiles := c.StringSlice("trustee")
	if len(trusteeFiles) < 2 {
		return cli.NewExitError("at least two -trustee keys are required", 1)
	}
	var trustees []string
	for _, fn := range trusteeFiles {
		pem, err := readKeyPEM(fn)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		trustees = append(trustees, pem)
	}
	ballotbox, err := readKeyPEM(c.String("ballotbox"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	cfg := &artifact.Config{
		ID:        uuid.NewV4().String(),
		Name:      c.String("name"),
		Modulus:   modulus,
		Generator: c.String("generator"),
		Items:     c.Int("items"),
		Ballotbox: ballotbox,
		Trustees:  trustees,
	}
	payload, err := cfg.Bytes()
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	hash, err := cfg.Hash()
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	stmtBytes, err := artifact.ConfigStatement{ConfigHash: hash}.Bytes()
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if err := ab.board.AddConfig(payload, stmtBytes); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Printf("Published config %s (%d items, %d trustees).\n",
		cfg.ID, cfg.Items, len(cfg.Trustees))
	return nil
}

func postBallots(c *cli.Context) error {
	ab, err := openBoard(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer ab.close()

	msgs := c.StringSlice("message")
	if len(msgs) == 0 {
		return cli.NewExitError("at least one -message is required", 1)
	}
	keyPEM, err := ioutil.ReadFile(c.String("key"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	signer, err := envelope.ParsePrivateKey(keyPEM)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	data, err := ab.board.GetConfig()
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	cfg, err := artifact.ParseConfig(data)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	hash, err := cfg.Hash()
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	suite, err := mixlib.NewSuiteFromStrings(cfg.Modulus, cfg.Generator)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	item := c.Int("item")
	pkData, err := ab.board.GetPublicKey(item)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	pk, err := artifact.ParsePublicKey(pkData)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	point, err := suite.DecodePoint(pk.Key)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	X := make([]kyber.Point, len(msgs))
	Y := make([]kyber.Point, len(msgs))
	for i, m := range msgs {
		X[i], Y[i] = suite.Encrypt(point, []byte(m))
	}
	cs, err := mixlib.RenderCiphertexts(X, Y)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	payload, err := (&artifact.Ballots{Ciphertexts: cs}).Bytes()
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	stmt := artifact.BallotsStatement{
		BallotsHash: envelope.Hash(payload),
		ConfigHash:  hash,
		Item:        item,
	}
	stmtBytes, err := stmt.Bytes()
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	sig, err := envelope.Sign(signer, stmtBytes)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if err := ab.board.AddBallots(payload, stmtBytes, sig, item); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Printf("Posted %d ballots for item %d.\n", len(msgs), item)
	return nil
}

func show(c *cli.Context) error {
	ab, err := openBoard(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer ab.close()

	keys, err := ab.store.Keys()
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}

func pause(c *cli.Context) error {
	ab, err := openBoard(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer ab.close()

	if err := ab.board.AddPause(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Println("Board paused.")
	return nil
}

func clearErrors(c *cli.Context) error {
	ab, err := openBoard(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer ab.close()

	entries, _, err := ab.tr.Fetch()
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	removed := 0
	for key := range entries {
		if !names.IsError(key) && key != names.Pause {
			continue
		}
		if err := ab.tr.Remove(key); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		removed++
	}
	fmt.Printf("Removed %d marker(s).\n", removed)
	return nil
}

func readKeyPEM(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("missing key file")
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return "", err
	}
	if _, err := envelope.ParsePublicKey(data); err != nil {
		return "", fmt.Errorf("%s: %v", path, err)
	}
	return string(data), nil
}
