// Package scenario loads and runs YAML scenarios: a set of native types, a
// list of wrapper operations and the state expected after each of them.
package scenario

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultTypeSize  = 32
	defaultTypeAlign = 8
)

// Scenario is the parsed form of a scenario file.
type Scenario struct {
	Name      string       `yaml:"name"`
	Heap      HeapConfig   `yaml:"heap"`
	TagOffset uint32       `yaml:"tag_offset"`
	Types     []TypeSpec   `yaml:"types"`
	Modules   []ModuleSpec `yaml:"modules"`
	Imports   []string     `yaml:"imports"`
	Steps     []Step       `yaml:"steps"`
}

// HeapConfig sizes the native heap, in 64 KiB pages.
type HeapConfig struct {
	Pages    uint32 `yaml:"pages"`
	MaxPages uint32 `yaml:"max_pages"`
}

// TypeSpec declares one native type.
type TypeSpec struct {
	Name  string   `yaml:"name"`
	Bases []string `yaml:"bases"`
	Size  uint32   `yaml:"size"`
	Align uint32   `yaml:"align"`
	// Tag identifies the type in native memory. Zero assigns one.
	Tag uint32 `yaml:"tag"`
	// Offsets places base sub-objects for multiple inheritance.
	Offsets      map[string]uint32 `yaml:"offsets"`
	NoDestructor bool              `yaml:"no_destructor"`
	// User declares a host-side subclass of its single base. User types
	// inherit the base's native glue.
	User bool `yaml:"user"`
}

// ModuleSpec registers a module exporting some of the declared types.
type ModuleSpec struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	Exports []string `yaml:"exports"`
}

// Op names a scenario step.
type Op string

const (
	OpNew          Op = "new"
	OpConstruct    Op = "construct"
	OpSetParent    Op = "set_parent"
	OpRemoveParent Op = "remove_parent"
	OpKeep         Op = "keep"
	OpRemoveRef    Op = "remove_ref"
	OpInvalidate   Op = "invalidate"
	OpMakeValid    Op = "make_valid"
	OpRelease      Op = "release_ownership"
	OpGet          Op = "get_ownership"
	OpDestroy      Op = "destroy"
	OpDelete       Op = "delete"
	OpIncRef       Op = "incref"
	OpDecRef       Op = "decref"
	OpImport       Op = "import"
	OpExpect       Op = "expect"
)

var ops = []Op{
	OpNew, OpConstruct, OpSetParent, OpRemoveParent, OpKeep, OpRemoveRef,
	OpInvalidate, OpMakeValid, OpRelease, OpGet, OpDestroy, OpDelete,
	OpIncRef, OpDecRef, OpImport, OpExpect,
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op Op `yaml:"op"`
	// Name names the object created by new and construct.
	Name   string `yaml:"name"`
	Object string `yaml:"object"`
	// Type is the declared type for new and the constructed type for construct.
	Type string `yaml:"type"`
	// Native is the type actually laid out in memory. Defaults to Type.
	Native string `yaml:"native"`
	Hint   string `yaml:"hint"`
	Owned  bool   `yaml:"owned"`
	Exact  bool   `yaml:"exact"`
	Parent string `yaml:"parent"`
	Key    string `yaml:"key"`
	Ref    string `yaml:"ref"`
	Append bool   `yaml:"append"`
	// GiveBack defaults to true.
	GiveBack *bool  `yaml:"give_back"`
	KeepRef  bool   `yaml:"keep_ref"`
	Spec     string `yaml:"spec"`
	// Error, when set, must be a substring of the error the step reports.
	Error  string  `yaml:"error"`
	Expect *Expect `yaml:"expect"`
}

// Expect is the state of one object checked by an expect step.
type Expect struct {
	Valid     *bool  `yaml:"valid"`
	Ownership string `yaml:"ownership"`
	Type      string `yaml:"type"`
	// Parent is the parent's name; an empty string means a root.
	Parent   *string        `yaml:"parent"`
	Children []string       `yaml:"children"`
	Refs     map[string]int `yaml:"refs"`
	Swept    *bool          `yaml:"swept"`
	RefCount *int32         `yaml:"refcount"`
	// Target and Offset check the pointer displacement CppPointer applies
	// when the object is viewed as Target.
	Target string  `yaml:"target"`
	Offset *uint32 `yaml:"offset"`
}

func (s Step) String() string {
	var b strings.Builder
	b.WriteString(string(s.Op))
	for _, kv := range [][2]string{
		{"", s.Name}, {"", s.Object}, {"type", s.Type}, {"native", s.Native},
		{"parent", s.Parent}, {"key", s.Key}, {"ref", s.Ref}, {"spec", s.Spec},
	} {
		if kv[1] == "" {
			continue
		}
		b.WriteByte(' ')
		if kv[0] != "" {
			b.WriteString(kv[0])
			b.WriteByte('=')
		}
		b.WriteString(kv[1])
	}
	return b.String()
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse parses a scenario, applies defaults and validates it.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	sc.applyDefaults()
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) applyDefaults() {
	if sc.Heap.Pages == 0 {
		sc.Heap.Pages = 1
	}
	used := make(map[uint32]bool)
	for _, t := range sc.Types {
		if t.Tag != 0 {
			used[t.Tag] = true
		}
	}
	next := uint32(1)
	for i := range sc.Types {
		t := &sc.Types[i]
		if t.Size == 0 {
			t.Size = defaultTypeSize
		}
		if t.Align == 0 {
			t.Align = defaultTypeAlign
		}
		if t.Tag == 0 {
			for used[next] {
				next++
			}
			t.Tag = next
			used[next] = true
		}
	}
}

// Validate checks names and references between types and steps. Object
// names are checked when the steps run.
func (sc *Scenario) Validate() error {
	types := make(map[string]bool, len(sc.Types))
	tags := make(map[uint32]string, len(sc.Types))
	for i, t := range sc.Types {
		if t.Name == "" {
			return fmt.Errorf("type %d: missing name", i)
		}
		if types[t.Name] {
			return fmt.Errorf("type %q declared twice", t.Name)
		}
		for _, b := range t.Bases {
			if !types[b] {
				return fmt.Errorf("type %q: base %q must be declared first", t.Name, b)
			}
		}
		for b := range t.Offsets {
			if !types[b] {
				return fmt.Errorf("type %q: offset for unknown base %q", t.Name, b)
			}
		}
		if t.User && (len(t.Bases) != 1 || len(t.Offsets) > 0) {
			return fmt.Errorf("user type %q needs exactly one base and no offsets", t.Name)
		}
		if prev, ok := tags[t.Tag]; ok {
			return fmt.Errorf("types %q and %q share tag %#x", prev, t.Name, t.Tag)
		}
		if t.Size < sc.TagOffset+4 {
			return fmt.Errorf("type %q: size %d leaves no room for the type tag", t.Name, t.Size)
		}
		if t.Align&(t.Align-1) != 0 {
			return fmt.Errorf("type %q: alignment %d is not a power of two", t.Name, t.Align)
		}
		types[t.Name] = true
		tags[t.Tag] = t.Name
	}
	for _, m := range sc.Modules {
		for _, e := range m.Exports {
			if !types[e] {
				return fmt.Errorf("module %q exports unknown type %q", m.Name, e)
			}
		}
	}
	for i, s := range sc.Steps {
		if !slices.Contains(ops, s.Op) {
			return fmt.Errorf("step %d: unknown op %q", i+1, s.Op)
		}
		for _, name := range []string{s.Type, s.Native} {
			if name != "" && !types[name] {
				return fmt.Errorf("step %d (%s): unknown type %q", i+1, s.Op, name)
			}
		}
		if (s.Op == OpNew || s.Op == OpConstruct) && (s.Name == "" || s.Type == "") {
			return fmt.Errorf("step %d (%s): name and type are required", i+1, s.Op)
		}
		if s.Op == OpExpect && s.Expect == nil {
			return fmt.Errorf("step %d: expect without expectations", i+1)
		}
	}
	return nil
}

