package mapsvc

import (
	"github.com/kvmkrao/hdf5/lib/bulk"
	"github.com/kvmkrao/hdf5/lib/iod"
	"github.com/kvmkrao/hdf5/lib/store"
)

type release struct {
	what string
	// onFailure releases are skipped when the handler succeeds
	onFailure bool
	fn        func() error
}

// scope records the resources of one handler invocation
type scope struct {
	op       string
	st       store.IObjectStore
	releases []release
}

func newScope(st store.IObjectStore, op string) *scope {
	Logger.Debugf("start map %s", op)
	return &scope{op: op, st: st}
}

// handle closes h when the handler returns
func (sc *scope) handle(h store.Handle, what string) {
	sc.releases = append(sc.releases, release{what: what, fn: func() error { return sc.st.Close(h) }})
}

// handleOnFailure closes h only if the handler fails, otherwise h is handed to the caller
func (sc *scope) handleOnFailure(h store.Handle, what string) {
	sc.releases = append(sc.releases, release{what: what, onFailure: true, fn: func() error { return sc.st.Close(h) }})
}

// location closes the handle of a traversal if the traversal opened it
func (sc *scope) location(loc iod.Location) {
	if !loc.Opened() {
		return
	}
	sc.handle(loc.Handle, "parent group")
}

// block releases a pulled block
func (sc *scope) block(b *bulk.Block) {
	sc.releases = append(sc.releases, release{what: "bulk block", fn: func() error {
		b.Release()
		return nil
	}})
}

// done releases everything in reverse order. Release failures are logged and
// never replace the handler's result.
func (sc *scope) done(errp *error) {
	failed := *errp != nil
	for i := len(sc.releases) - 1; i >= 0; i-- {
		r := sc.releases[i]
		if r.onFailure && !failed {
			continue
		}
		if err := r.fn(); err != nil {
			Logger.Errorf("map %s: failed to release %s: %v", sc.op, r.what, err)
		}
	}
	sc.releases = nil

	if failed {
		Logger.Warningf("map %s failed: %v", sc.op, *errp)
		return
	}
	Logger.Debugf("done with map %s", sc.op)
}
