package wrapper

import (
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge/host"
)

// KeepReference keeps ref alive for as long as the object lives, under key.
//
// Without appendRef the references stored under key are replaced by ref and
// released. With appendRef, ref is added after the existing ones. A referent
// already stored under key is never stored twice. A nil ref without
// appendRef clears key.
func (o *Object) KeepReference(key string, ref host.Object, appendRef bool) {
	if o.dealloced {
		return
	}
	if o.refs == nil {
		o.refs = make(map[string][]host.Object)
	}
	current := o.refs[key]
	present := ref != nil && slices.Contains(current, ref)

	if appendRef {
		if ref == nil || present {
			return
		}
		ref.IncRef()
		o.refs[key] = append(current, ref)
		o.mgr.emit(EventReferenceKept, o)
		return
	}

	if ref == nil {
		delete(o.refs, key)
	} else {
		if !present {
			ref.IncRef()
			o.mgr.emit(EventReferenceKept, o)
		}
		o.refs[key] = []host.Object{ref}
	}
	for _, old := range current {
		if old != ref {
			o.release(old)
		}
	}
}

// RemoveReference releases one entry equal to ref stored under key.
// Removing an absent entry does nothing.
func (o *Object) RemoveReference(key string, ref host.Object) {
	current, ok := o.refs[key]
	if !ok || ref == nil {
		return
	}
	i := slices.Index(current, ref)
	if i < 0 {
		return
	}
	current = slices.Delete(current, i, i+1)
	if len(current) == 0 {
		delete(o.refs, key)
	} else {
		o.refs[key] = current
	}
	o.release(ref)
}

// References returns a copy of the references stored under key.
func (o *Object) References(key string) []host.Object {
	return slices.Clone(o.refs[key])
}

// ReferenceKeys returns the keys holding references, sorted.
func (o *Object) ReferenceKeys() []string {
	return sortedKeys(o.refs)
}

// clearReferences releases every kept reference.
func (o *Object) clearReferences() {
	refs := o.refs
	o.refs = nil
	for _, k := range sortedKeys(refs) {
		for _, r := range refs[k] {
			o.release(r)
		}
	}
}

func (o *Object) release(r host.Object) {
	o.mgr.log.Debug("releasing kept reference", zap.Stringer("object", o))
	o.mgr.emit(EventReferenceReleased, o)
	r.DecRef()
}

func sortedKeys(m map[string][]host.Object) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
