// Package modules links bridged modules to each other.
//
// A module that exports wrapped types registers an APITable under its name
// and semantic version. Dependent modules import it by name, optionally
// constrained ("gui@^1.2"), before they rely on the exporter's discovery
// functions or destructors:
//
//	reg := modules.NewRegistry(errs)
//	_ = reg.Register("gui", "1.4.0", api)
//
//	var gui modules.APITable
//	if !reg.ImportModule("gui@^1", &gui) {
//	    return errs.Fetch()
//	}
//
// ImportAll reports every unresolved import at once as an
// *errors.MissingModulesError.
package modules
