package protocol

import (
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"

	"github.com/nvotes/mixnet/artifact"
	"github.com/nvotes/mixnet/condition"
	"github.com/nvotes/mixnet/names"
)

// DefaultSleep separates driver cycles.
const DefaultSleep = 5 * time.Second

// Driver runs the trustee loop: sync, snapshot, select actions, run them,
// post errors. One cycle at a time; cross-trustee concurrency happens
// through the board.
type Driver struct {
	Trustee *Trustee
	Sleep   time.Duration
}

// NewDriver wraps a trustee with the default cycle interval.
func NewDriver(t *Trustee) *Driver {
	return &Driver{Trustee: t, Sleep: DefaultSleep}
}

// Run cycles until quit closes. The current cycle always completes;
// termination happens at the boundary.
func (d *Driver) Run(quit <-chan struct{}) {
	for {
		d.Cycle()
		select {
		case <-quit:
			log.Lvl1("trustee loop terminating")
			return
		case <-time.After(d.Sleep):
		}
	}
}

// Cycle performs one pass: refresh the board, evaluate the global rules,
// then the per-item rules against one immutable snapshot, and dispatch.
// Pre-shuffle work is the only phase run in parallel across items.
func (d *Driver) Cycle() {
	t := d.Trustee
	if err := t.Board.Sync(); err != nil {
		log.Error("board sync:", err)
		return
	}
	files, err := t.Board.FileSet()
	if err != nil {
		log.Error("board snapshot:", err)
		return
	}
	if !files.Contains(names.Config) {
		log.Lvl3("no config on the board yet")
		return
	}
	data, err := t.Board.GetConfig()
	if err != nil {
		log.Error("reading config:", err)
		return
	}
	cfg, err := artifact.ParseConfig(data)
	if err != nil {
		log.Error("parsing config:", err)
		return
	}
	pos := cfg.TrusteePosition(t.PublicPEM)
	if pos == 0 {
		log.Error("this trustee is not listed in the config")
		return
	}

	if a := globalAction(files, pos); a != nil {
		d.finish(pos, []Result{runAction(t, a, files)})
		return
	}

	var actions []Action
	for p := 1; p <= cfg.Items; p++ {
		if a := itemAction(files, p, pos, len(cfg.Trustees), t.OfflineSplit); a != nil {
			actions = append(actions, a)
		}
	}
	if len(actions) == 0 {
		log.Lvl3("nothing to do")
		return
	}

	results := make([]Result, len(actions))
	if allPreShuffle(actions) {
		t.Pool.Each(len(actions), func(i int) error {
			results[i] = runAction(t, actions[i], files)
			return nil
		})
	} else {
		for i, a := range actions {
			results[i] = runAction(t, a, files)
			if results[i].Kind == Stop {
				results = results[:i+1]
				break
			}
		}
	}
	d.finish(pos, results)
}

func allPreShuffle(actions []Action) bool {
	for _, a := range actions {
		if _, ok := a.(AddPreShuffleData); !ok {
			return false
		}
	}
	return true
}

// runAction shields the driver from a panicking action: the panic becomes
// an error result like any other verification failure.
func runAction(t *Trustee, a Action, files condition.KeySet) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failf("%v", r)
			res.Msg = a.Name() + ": " + res.Msg
		}
	}()
	log.Lvl2("running", a.Name())
	res = a.Run(t, files)
	if res.Kind == Error {
		res.Msg = a.Name() + ": " + res.Msg
	}
	return res
}

// finish aggregates the cycle's results. Board-bound errors collapse into
// one sticky error artifact; local errors only reach the log.
func (d *Driver) finish(pos int, results []Result) {
	var posted []string
	for _, r := range results {
		switch r.Kind {
		case Stop:
			log.Lvl2("cycle stopped:", r.Msg)
		case Error:
			log.Error(r.Msg)
			if !r.Local {
				posted = append(posted, r.Msg)
			}
		}
	}
	if len(posted) == 0 {
		return
	}
	if err := d.Trustee.Board.AddError(strings.Join(posted, "; "), pos); err != nil {
		log.Error("posting error artifact:", err)
	}
}

// GuardSingleton binds a loopback port so a second trustee process on the
// same machine cannot race this one for the key material. Port 0 disables
// the guard.
func GuardSingleton(port int) (io.Closer, error) {
	if port == 0 {
		return nopCloser{}, nil
	}
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, errors.Wrapf(err, "another trustee instance holds port %d", port)
	}
	return l, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
