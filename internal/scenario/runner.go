package scenario

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/modules"
	"github.com/wippyai/objbridge/native"
	"github.com/wippyai/objbridge/typeext"
	"github.com/wippyai/objbridge/wrapper"
)

// Options configures a Runner.
type Options struct {
	Logger   *zap.Logger
	Observer wrapper.Observer
}

type block struct {
	size, align uint32
}

// Runner executes the steps of a scenario against a local native heap.
type Runner struct {
	sc   *Scenario
	log  *zap.Logger
	heap *native.LocalHeap
	errs *host.ErrorChannel

	types *typeext.Registry
	mods  *modules.Registry
	mgr   *wrapper.Manager

	specs   map[string]TypeSpec
	blocks  map[objbridge.Ptr]block
	objects map[string]*wrapper.Object
	names   map[*wrapper.Object]string
	order   []string

	executed int
}

// New declares the scenario's types and modules, resolves its imports and
// returns a runner ready to execute steps.
func New(sc *Scenario, opts Options) (*Runner, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := &Runner{
		sc:      sc,
		log:     log,
		heap:    native.NewLocalHeap(sc.Heap.Pages, sc.Heap.MaxPages),
		errs:    host.NewErrorChannel().WithLogger(log),
		specs:   make(map[string]TypeSpec, len(sc.Types)),
		blocks:  make(map[objbridge.Ptr]block),
		objects: make(map[string]*wrapper.Object),
		names:   make(map[*wrapper.Object]string),
	}
	r.types = typeext.NewRegistry(r.errs)
	r.mods = modules.NewRegistry(r.errs)

	if err := r.declareTypes(); err != nil {
		return nil, err
	}
	if err := r.registerModules(); err != nil {
		return nil, err
	}
	if len(sc.Imports) > 0 {
		if _, err := r.mods.ImportAll(sc.Imports...); err != nil {
			return nil, err
		}
	}

	r.mgr = wrapper.NewManager(r.types, wrapper.Options{
		Logger:   log,
		Observer: opts.Observer,
		Errors:   r.errs,
	})
	return r, nil
}

func (r *Runner) declareTypes() error {
	tags := make(map[uint32]typeext.TypeID, len(r.sc.Types))
	var generated []typeext.TypeID

	for _, t := range r.sc.Types {
		bases := make([]typeext.TypeID, 0, len(t.Bases))
		for _, b := range t.Bases {
			id, _ := r.types.Lookup(b)
			bases = append(bases, id)
		}

		var (
			id  typeext.TypeID
			err error
		)
		if t.User {
			id, err = r.types.DeclareSubType(bases[0], t.Name)
		} else {
			id, err = r.types.Declare(t.Name, bases...)
		}
		if err != nil {
			return err
		}
		r.specs[t.Name] = t
		tags[t.Tag] = id
		if t.User {
			continue
		}
		generated = append(generated, id)

		if !t.NoDestructor {
			if err := r.types.SetDestructorFunction(id, r.freeBlock); err != nil {
				return err
			}
		}
		if len(t.Offsets) > 0 {
			offsets := r.baseOffsets(t.Offsets)
			err := r.types.SetMultipleInheritanceFunction(id, func(objbridge.Ptr) []typeext.BaseOffset {
				return offsets
			})
			if err != nil {
				return err
			}
		}
	}

	discover := native.TagDiscovery(r.heap, r.sc.TagOffset, tags)
	for _, id := range generated {
		if err := r.types.SetTypeDiscoveryFunction(id, discover); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) baseOffsets(m map[string]uint32) []typeext.BaseOffset {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]typeext.BaseOffset, 0, len(names))
	for _, name := range names {
		id, _ := r.types.Lookup(name)
		out = append(out, typeext.BaseOffset{Base: id, Offset: m[name]})
	}
	return out
}

func (r *Runner) registerModules() error {
	for _, m := range r.sc.Modules {
		var api *modules.APITable
		if len(m.Exports) > 0 {
			var err error
			if api, err = modules.NewAPITable(r.types, m.Exports...); err != nil {
				return err
			}
		}
		if err := r.mods.Register(m.Name, m.Version, api); err != nil {
			return err
		}
	}
	return nil
}

// alloc lays out a native object of the named type.
func (r *Runner) alloc(typeName string) (objbridge.Ptr, error) {
	spec, ok := r.specs[typeName]
	if !ok {
		return objbridge.Null, fmt.Errorf("unknown type %q", typeName)
	}
	ptr, err := native.New(r.heap, spec.Size, spec.Align, r.sc.TagOffset, spec.Tag)
	if err != nil {
		return objbridge.Null, err
	}
	r.blocks[ptr] = block{size: spec.Size, align: spec.Align}
	return ptr, nil
}

// freeBlock is the native destructor of every generated type. Destroying
// a block twice is reported instead of corrupting the heap.
func (r *Runner) freeBlock(ptr objbridge.Ptr) error {
	b, ok := r.blocks[ptr]
	if !ok {
		return errors.InvalidInput(errors.PhaseNative, fmt.Sprintf("no live native object at %#x", uint32(ptr)))
	}
	delete(r.blocks, ptr)
	r.heap.Free(uint32(ptr), b.size, b.align)
	return nil
}

// Manager returns the wrapper manager.
func (r *Runner) Manager() *wrapper.Manager { return r.mgr }

// Types returns the type registry.
func (r *Runner) Types() *typeext.Registry { return r.types }

// Scenario returns the scenario being run.
func (r *Runner) Scenario() *Scenario { return r.sc }

// Executed returns the number of steps run so far.
func (r *Runner) Executed() int { return r.executed }

// LiveBlocks returns the number of native objects not yet destroyed.
func (r *Runner) LiveBlocks() int { return len(r.blocks) }

// Object returns the object created under name.
func (r *Runner) Object(name string) (*wrapper.Object, bool) {
	o, ok := r.objects[name]
	return o, ok
}

// Run executes every step in order and stops at the first failure.
func (r *Runner) Run() error {
	for i, s := range r.sc.Steps {
		if err := r.Exec(s); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// Exec executes one step. Errors left on the host error channel count as
// the step's error. A step with Error set succeeds only if it fails with a
// matching message.
func (r *Runner) Exec(s Step) error {
	r.errs.Clear()
	err := r.exec(s)
	if pending := r.errs.Fetch(); err == nil {
		err = pending
	}
	r.executed++

	r.log.Debug("scenario step",
		zap.Stringer("step", s),
		zap.Error(err))

	if s.Error != "" {
		if err == nil {
			return fmt.Errorf("%s: expected an error containing %q", s, s.Error)
		}
		if !strings.Contains(err.Error(), s.Error) {
			return fmt.Errorf("%s: error %q does not contain %q", s, err, s.Error)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", s, err)
	}
	return nil
}

func (r *Runner) exec(s Step) error {
	switch s.Op {
	case OpNew:
		return r.newObject(s)
	case OpConstruct:
		return r.construct(s)
	case OpImport:
		r.mods.ImportModule(s.Spec, nil)
		return nil
	}

	o, err := r.object(s.Object)
	if err != nil {
		return err
	}

	switch s.Op {
	case OpSetParent:
		if s.Parent == "" {
			r.mgr.SetParent(nil, o)
			return nil
		}
		p, err := r.object(s.Parent)
		if err != nil {
			return err
		}
		r.mgr.SetParent(p, o)
	case OpRemoveParent:
		give := s.GiveBack == nil || *s.GiveBack
		o.RemoveParent(give, s.KeepRef)
	case OpKeep:
		ref, err := r.hostRef(s.Ref)
		if err != nil {
			return err
		}
		o.KeepReference(s.Key, ref, s.Append)
	case OpRemoveRef:
		ref, err := r.hostRef(s.Ref)
		if err != nil {
			return err
		}
		o.RemoveReference(s.Key, ref)
	case OpInvalidate:
		o.Invalidate()
	case OpMakeValid:
		o.MakeValid()
	case OpRelease:
		o.ReleaseOwnership()
	case OpGet:
		o.GetOwnership()
	case OpDestroy:
		// The native side destroys the object first.
		if ptr := o.Pointer(); !ptr.IsNull() {
			if err := r.freeBlock(ptr); err != nil {
				return err
			}
		}
		r.mgr.Destroy(o)
	case OpDelete:
		return r.mgr.Delete(o)
	case OpIncRef:
		o.IncRef()
	case OpDecRef:
		o.DecRef()
	case OpExpect:
		return r.check(s.Object, o, s.Expect)
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	return nil
}

func (r *Runner) newObject(s Step) error {
	if err := r.checkName(s.Name); err != nil {
		return err
	}
	layout := s.Native
	if layout == "" {
		layout = s.Type
	}
	ptr, err := r.alloc(layout)
	if err != nil {
		return err
	}
	typ, _ := r.types.Lookup(s.Type)
	o, err := r.mgr.NewObject(typ, ptr, s.Owned, s.Exact, s.Hint)
	if err != nil {
		_ = r.freeBlock(ptr)
		return err
	}
	r.add(s.Name, o)
	return nil
}

func (r *Runner) construct(s Step) error {
	if err := r.checkName(s.Name); err != nil {
		return err
	}
	ctorName := s.Native
	if ctorName == "" {
		ctorName = s.Type
	}
	myType, _ := r.types.Lookup(s.Type)
	ctorType, _ := r.types.Lookup(ctorName)

	o, err := r.mgr.Construct(myType, ctorType, func() (objbridge.Ptr, error) {
		return r.alloc(ctorName)
	})
	if err != nil {
		return err
	}
	r.add(s.Name, o)
	return nil
}

func (r *Runner) checkName(name string) error {
	if o, ok := r.objects[name]; ok && !o.Dealloced() {
		return fmt.Errorf("object %q already exists", name)
	}
	return nil
}

func (r *Runner) add(name string, o *wrapper.Object) {
	if old, ok := r.objects[name]; ok {
		delete(r.names, old)
	} else {
		r.order = append(r.order, name)
	}
	r.objects[name] = o
	r.names[o] = name
}

func (r *Runner) object(name string) (*wrapper.Object, error) {
	if name == "" {
		return nil, fmt.Errorf("missing object name")
	}
	o, ok := r.objects[name]
	if !ok {
		return nil, fmt.Errorf("unknown object %q", name)
	}
	return o, nil
}

// hostRef returns the named object as a host reference. An empty name is
// the nil reference.
func (r *Runner) hostRef(name string) (host.Object, error) {
	if name == "" {
		return nil, nil
	}
	o, err := r.object(name)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Runner) nameOf(o *wrapper.Object) string {
	if o == nil {
		return ""
	}
	if name, ok := r.names[o]; ok {
		return name
	}
	return o.String()
}

func (r *Runner) check(name string, o *wrapper.Object, e *Expect) error {
	var result *multierror.Error
	fail := func(what string, got, want any) {
		result = multierror.Append(result, fmt.Errorf("%s: %s is %v, want %v", name, what, got, want))
	}

	if e.Valid != nil && o.IsValid(false) != *e.Valid {
		fail("valid", o.IsValid(false), *e.Valid)
	}
	if e.Ownership != "" && o.Ownership().String() != e.Ownership {
		fail("ownership", o.Ownership(), e.Ownership)
	}
	if e.Type != "" && o.TypeName() != e.Type {
		fail("type", o.TypeName(), e.Type)
	}
	if e.Parent != nil {
		if got := r.nameOf(o.Parent()); got != *e.Parent {
			fail("parent", quoteEmpty(got), quoteEmpty(*e.Parent))
		}
	}
	if e.Children != nil {
		var got []string
		for _, c := range o.Children() {
			got = append(got, r.nameOf(c))
		}
		if !slices.Equal(got, e.Children) {
			fail("children", got, e.Children)
		}
	}
	for key, n := range e.Refs {
		if got := len(o.References(key)); got != n {
			fail("references under "+key, got, n)
		}
	}
	if e.Swept != nil && o.Dealloced() != *e.Swept {
		fail("swept", o.Dealloced(), *e.Swept)
	}
	if e.RefCount != nil && o.RefCount() != *e.RefCount {
		fail("refcount", o.RefCount(), *e.RefCount)
	}
	if e.Offset != nil {
		target, ok := r.types.Lookup(e.Target)
		if !ok {
			return fmt.Errorf("%s: unknown target type %q", name, e.Target)
		}
		ptr, ok := o.CppPointer(target)
		if !ok {
			return multierror.Append(result, r.errs.Fetch()).ErrorOrNil()
		}
		if got := uint32(ptr - o.Pointer()); got != *e.Offset {
			fail("offset as "+e.Target, got, *e.Offset)
		}
	}
	return result.ErrorOrNil()
}

func quoteEmpty(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}

// Close tears down every wrapper and the type registry. It returns the
// destructor failures seen during the run.
func (r *Runner) Close() error {
	err := r.mgr.Close()
	r.types.Close()
	return err
}
