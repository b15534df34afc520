package iod

import (
	"strings"

	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("iod")

// Location is the group a path ends in and the last path component
type Location struct {
	ID     db.ObjectID
	Handle store.Handle
	Name   string
	opened bool
}

// Opened reports whether the traversal opened Handle itself. If not, Handle is the
// location handle passed by the caller.
func (l Location) Opened() bool {
	return l.opened
}

// Close closes Handle if the traversal opened it
func (l Location) Close(st store.IObjectStore) error {
	if !l.opened {
		return nil
	}
	return st.Close(l.Handle)
}

// splitPath returns the components of path. A leading '/' starts at the root group.
func splitPath(path string) (comps []string, absolute bool) {
	absolute = strings.HasPrefix(path, "/")
	for _, c := range strings.Split(path, "/") {
		if c != "" && c != "." {
			comps = append(comps, c)
		}
	}
	return comps, absolute
}

// closeQuietly closes h and logs failures
func closeQuietly(st store.IObjectStore, h store.Handle) {
	if err := st.Close(h); err != nil {
		Logger.Warningf("failed to close handle %d: %v", h.Cookie, err)
	}
}

// Traverse walks path relative to the group loc up to the last component.
// locHandle may be undefined, then loc is opened here. Every group on the way must exist,
// a missing one fails with RetCNotFound. The returned group is opened for writing.
func Traverse(st store.IObjectStore, loc db.ObjectID, locHandle store.Handle, path string, rtid uint64) (Location, error) {
	comps, absolute := splitPath(path)
	if len(comps) == 0 {
		return Location{}, store.Errorf(store.RetCInvalidOperation, "path %q has no name", path)
	}

	cur, h, opened := loc, locHandle, false
	if absolute {
		cur, h = db.RootID, store.UndefinedHandle
	}
	if !h.IsDefined() {
		var err error
		if h, err = st.OpenWrite(cur); err != nil {
			return Location{}, store.Wrap(err, store.RetCUnknown, "open traversal start")
		}
		opened = true
	}

	for _, seg := range comps[:len(comps)-1] {
		link, err := GetLink(st, h, rtid, seg)
		if err == nil && link.Type != LinkHard {
			err = store.Errorf(store.RetCInvalidOperation, "%s link %q can not be traversed", link.Type, seg)
		}
		if err != nil {
			if opened {
				closeQuietly(st, h)
			}
			if store.CodeOf(err) == store.RetCNotFound {
				return Location{}, store.Errorf(store.RetCNotFound, "path %q: group %q does not exist", path, seg)
			}
			return Location{}, err
		}

		next, err := st.OpenWrite(link.Target)
		if opened {
			closeQuietly(st, h)
		}
		if err != nil {
			return Location{}, store.Wrap(err, store.RetCUnknown, "open group "+seg)
		}
		cur, h, opened = link.Target, next, true
	}

	return Location{ID: cur, Handle: h, Name: comps[len(comps)-1], opened: opened}, nil
}

// OpenPath resolves path relative to loc and opens the object it names for writing
func OpenPath(st store.IObjectStore, loc db.ObjectID, locHandle store.Handle, path string, rtid uint64) (db.ObjectID, store.Handle, error) {
	parent, err := Traverse(st, loc, locHandle, path, rtid)
	if err != nil {
		return db.IDUndefined, store.UndefinedHandle, err
	}
	defer func() {
		if err := parent.Close(st); err != nil {
			Logger.Warningf("failed to close group %d: %v", parent.ID, err)
		}
	}()

	link, err := GetLink(st, parent.Handle, rtid, parent.Name)
	if err != nil {
		if store.CodeOf(err) == store.RetCNotFound {
			return db.IDUndefined, store.UndefinedHandle, store.Errorf(store.RetCNotFound, "path %q does not exist", path)
		}
		return db.IDUndefined, store.UndefinedHandle, err
	}
	if link.Type != LinkHard {
		return db.IDUndefined, store.UndefinedHandle, store.Errorf(store.RetCInvalidOperation, "%s link %q can not be opened", link.Type, path)
	}

	h, err := st.OpenWrite(link.Target)
	if err != nil {
		return db.IDUndefined, store.UndefinedHandle, store.Wrap(err, store.RetCUnknown, "open "+path)
	}
	return link.Target, h, nil
}
