package modules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/typeext"
)

// APITable is the table of types a bridged module exports to other modules.
// Importers use it to reach the exporter's type discovery functions and
// destructors through the shared type registry.
type APITable struct {
	Types   *typeext.Registry
	Exports map[string]typeext.TypeID
}

// NewAPITable builds a table exporting the named types of types.
func NewAPITable(types *typeext.Registry, names ...string) (*APITable, error) {
	if types == nil {
		return nil, errors.InvalidInput(errors.PhaseImport, "api table needs a type registry")
	}
	t := &APITable{
		Types:   types,
		Exports: make(map[string]typeext.TypeID, len(names)),
	}
	for _, name := range names {
		id, ok := types.Lookup(name)
		if !ok {
			return nil, errors.NotFound(errors.PhaseImport, "type", name)
		}
		t.Exports[name] = id
	}
	return t, nil
}

// Type returns the exported type called name.
func (t *APITable) Type(name string) (typeext.TypeID, bool) {
	if t == nil {
		return typeext.Invalid, false
	}
	id, ok := t.Exports[name]
	return id, ok
}

type module struct {
	version *semver.Version
	api     *APITable
}

// Registry resolves module imports by name and semantic version.
// It is not safe for concurrent use.
type Registry struct {
	modules map[string][]module // ascending by version
	errs    *host.ErrorChannel
}

// NewRegistry creates an empty registry. Failed ImportModule calls are
// reported on errs when it is non-nil.
func NewRegistry(errs *host.ErrorChannel) *Registry {
	return &Registry{
		modules: make(map[string][]module),
		errs:    errs,
	}
}

// Register makes api available as version of module name. A nil api
// registers a module that exports no API table; importing it fails.
func (r *Registry) Register(name, version string, api *APITable) error {
	if name == "" || strings.Contains(name, "@") {
		return errors.InvalidInput(errors.PhaseImport, fmt.Sprintf("invalid module name %q", name))
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrap(errors.PhaseImport, errors.KindInvalidInput, err,
			fmt.Sprintf("module %q version %q", name, version))
	}

	list := r.modules[name]
	i, found := slices.BinarySearchFunc(list, v, func(m module, v *semver.Version) int {
		return m.version.Compare(v)
	})
	if found {
		return errors.AlreadySet(errors.PhaseImport, name, "version "+v.String())
	}
	r.modules[name] = slices.Insert(list, i, module{version: v, api: api})

	Logger().Debug("module registered",
		zap.String("module", name),
		zap.String("version", v.String()),
		zap.Bool("api", api != nil))
	return nil
}

// Modules returns the registered module names in sorted order.
func (r *Registry) Modules() []string {
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Versions returns the registered versions of name, lowest first.
func (r *Registry) Versions(name string) []string {
	list := r.modules[name]
	out := make([]string, len(list))
	for i, m := range list {
		out[i] = m.version.String()
	}
	return out
}

// Import resolves spec ("name" or "name@constraint") to the API table of
// the highest registered version satisfying the constraint.
func (r *Registry) Import(spec string) (*APITable, error) {
	name, _ := errors.ParseModuleSpec(spec)
	api, reason := r.resolve(spec)
	if reason != "" {
		Logger().Debug("module import failed",
			zap.String("spec", spec),
			zap.String("reason", reason))
		return nil, errors.ModuleNotFound(name, reason)
	}
	return api, nil
}

// ImportModule resolves spec and copies its API table into out. It
// returns false when the module cannot be located or exports no table;
// the reason is set on the registry's error channel. A nil out only checks
// that the import would succeed.
func (r *Registry) ImportModule(spec string, out *APITable) bool {
	api, err := r.Import(spec)
	if err != nil {
		if r.errs != nil {
			r.errs.Set(err)
		}
		return false
	}
	if out != nil {
		*out = *api
	}
	return true
}

// ImportAll resolves every spec. Unresolved imports are collected into a
// single *errors.MissingModulesError; the tables of the resolved ones are
// returned keyed by module name either way.
func (r *Registry) ImportAll(specs ...string) (map[string]*APITable, error) {
	tables := make(map[string]*APITable, len(specs))
	missing := &errors.MissingModulesError{}
	for _, spec := range specs {
		api, reason := r.resolve(spec)
		if reason != "" {
			missing.Add(spec, reason)
			continue
		}
		name, _ := errors.ParseModuleSpec(spec)
		tables[name] = api
	}
	if len(missing.Modules) > 0 {
		return tables, missing
	}
	return tables, nil
}

// resolve returns the matching table or a non-empty reason.
func (r *Registry) resolve(spec string) (*APITable, string) {
	name, constraint := errors.ParseModuleSpec(spec)
	list, ok := r.modules[name]
	if !ok || len(list) == 0 {
		return nil, "not registered"
	}

	var c *semver.Constraints
	if constraint != "" {
		var err error
		c, err = semver.NewConstraint(constraint)
		if err != nil {
			return nil, fmt.Sprintf("invalid constraint %q: %v", constraint, err)
		}
	}

	for i := len(list) - 1; i >= 0; i-- {
		m := list[i]
		if c != nil && !c.Check(m.version) {
			continue
		}
		if m.api == nil {
			return nil, fmt.Sprintf("version %s exports no API table", m.version)
		}
		return m.api, ""
	}
	return nil, fmt.Sprintf("no version satisfies %s (have %s)", constraint, strings.Join(r.Versions(name), ", "))
}
