// trustee-loop runs one trustee against one board section. It keeps no
// protocol state of its own: stopping and restarting it at any point is
// safe, the next cycle re-derives everything from the board.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"go.dedis.ch/onet/v3/log"
	"gopkg.in/urfave/cli.v1"

	"github.com/nvotes/mixnet/protocol"
)

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "trustee-loop"
	cliApp.Usage = "Run a mixnet trustee against a bulletin board."
	cliApp.Version = "0.1"
	cliApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 1,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
		cli.StringFlag{
			Name:   "config, c",
			EnvVar: "TRUSTEE_CONFIG",
			Value:  "trustee.toml",
			Usage:  "path to the trustee's local config",
		},
		cli.StringFlag{
			Name:  "board, b",
			Usage: "board section (election) to serve",
		},
	}
	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.Int("debug"))
		return nil
	}
	cliApp.Action = run
	log.ErrFatal(cliApp.Run(os.Args))
}

func run(c *cli.Context) error {
	section := c.String("board")
	if section == "" {
		return cli.NewExitError("-board flag is required", 1)
	}
	lc, err := protocol.LoadLocalConfig(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	guard, err := protocol.GuardSingleton(lc.SingletonPort)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer guard.Close()

	trustee, closer, err := protocol.NewTrustee(lc, section)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer closer.Close()

	quit := make(chan struct{})
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sigs
		log.Lvl1("received", s, "- finishing the current cycle")
		close(quit)
	}()

	log.Lvl1("trustee serving board section", section)
	protocol.NewDriver(trustee).Run(quit)
	return nil
}
