package errors

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:      PhaseBind,
				Kind:       KindTypeMismatch,
				Path:       []string{"window", "layout", "item"},
				GoType:     "string",
				NativeType: "u32",
				Detail:     "cannot convert",
			},
			contains: []string{"[bind]", "type_mismatch", "window.layout.item", "string", "u32", "cannot convert"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseAccess,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[access]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseNative,
				Kind:   KindAllocation,
				Detail: "memory full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[native]", "allocation", "memory full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !containsSubstring(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseBind,
		Kind:  KindInvalidInput,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	// Test with errors.Unwrap
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseBind,
		Kind:  KindTypeMismatch,
		Path:  []string{"foo"},
	}

	// Same phase and kind
	if !err.Is(&Error{Phase: PhaseBind, Kind: KindTypeMismatch}) {
		t.Error("Is should match same phase and kind")
	}

	// Different phase
	if err.Is(&Error{Phase: PhaseAccess, Kind: KindTypeMismatch}) {
		t.Error("Is should not match different phase")
	}

	// Different kind
	if err.Is(&Error{Phase: PhaseBind, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different kind")
	}

	// Test with errors.Is
	target := &Error{Phase: PhaseBind, Kind: KindTypeMismatch}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseBind, KindTypeMismatch).
		Path("window", "title").
		GoType("string").
		NativeType("u32").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "string", "int").
		Build()

	if err.Phase != PhaseBind {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseBind)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "window" || err.Path[1] != "title" {
		t.Errorf("Path = %v, want [window title]", err.Path)
	}
	if err.GoType != "string" {
		t.Errorf("GoType = %v, want 'string'", err.GoType)
	}
	if err.NativeType != "u32" {
		t.Errorf("NativeType = %v, want 'u32'", err.NativeType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected string, got int" {
		t.Errorf("Detail = %v, want 'expected string, got int'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("InvalidAccess", func(t *testing.T) {
		err := InvalidAccess("QLayout")
		if err.Kind != KindInvalidAccess || err.Phase != PhaseAccess {
			t.Errorf("Phase=%v Kind=%v", err.Phase, err.Kind)
		}
		if !containsSubstring(err.Error(), "already deleted") {
			t.Errorf("Error() = %q, should mention deletion", err.Error())
		}
		if err.NativeType != "QLayout" {
			t.Errorf("NativeType = %v, want 'QLayout'", err.NativeType)
		}
	})

	t.Run("ConstructionNotPermitted", func(t *testing.T) {
		err := ConstructionNotPermitted("Derived", "Unrelated")
		if err.Kind != KindConstructionNotPermitted {
			t.Errorf("Kind = %v, want %v", err.Kind, KindConstructionNotPermitted)
		}
		if !containsSubstring(err.Detail, "Unrelated isn't a direct base class of Derived") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch(PhaseBind, []string{"field"}, "int", "Point")
		if err.Kind != KindTypeMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
		}
		if err.GoType != "int" || err.NativeType != "Point" {
			t.Errorf("GoType=%v NativeType=%v", err.GoType, err.NativeType)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseNative, 1024, 8)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !containsSubstring(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseNative, 65534, 4, 65536)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != uint32(65534) {
			t.Errorf("Value = %v, want 65534", err.Value)
		}
		if !containsSubstring(err.Error(), "offset=65534, length=4, size=65536") {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("NilPointer", func(t *testing.T) {
		err := NilPointer(PhaseBind, []string{"ptr"}, "Widget")
		if err.Kind != KindNilPointer {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNilPointer)
		}
		if err.NativeType != "Widget" {
			t.Errorf("NativeType = %v, want 'Widget'", err.NativeType)
		}
	})

	t.Run("Finalized", func(t *testing.T) {
		err := Finalized("Widget", "cast function")
		if err.Kind != KindFinalized || err.Phase != PhaseRegister {
			t.Errorf("Phase=%v Kind=%v", err.Phase, err.Kind)
		}
	})

	t.Run("AlreadySet", func(t *testing.T) {
		err := AlreadySet(PhaseRegister, "Widget", "type user data")
		if err.Kind != KindAlreadySet {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAlreadySet)
		}
	})

	t.Run("GraphCycle", func(t *testing.T) {
		err := GraphCycle("child", "root")
		if err.Kind != KindGraphCycle || err.Phase != PhaseGraph {
			t.Errorf("Phase=%v Kind=%v", err.Phase, err.Kind)
		}
	})

	t.Run("ModuleNotFound", func(t *testing.T) {
		err := ModuleNotFound("sample", "not registered")
		if err.Kind != KindModuleResolution {
			t.Errorf("Kind = %v, want %v", err.Kind, KindModuleResolution)
		}
	})
}

func TestMissingModulesError(t *testing.T) {
	t.Run("single module", func(t *testing.T) {
		err := &MissingModulesError{}
		err.Add("sample@^1.2", "not registered")
		if len(err.Modules) != 1 {
			t.Fatalf("expected 1 module, got %d", len(err.Modules))
		}
		if err.Modules[0].Name != "sample" {
			t.Errorf("name = %q, want sample", err.Modules[0].Name)
		}
		if err.Modules[0].Constraint != "^1.2" {
			t.Errorf("constraint = %q, want ^1.2", err.Modules[0].Constraint)
		}
	})

	t.Run("grouped by name", func(t *testing.T) {
		err := &MissingModulesError{}
		err.Add("sample@^1.2", "have 1.0.0")
		err.Add("other", "not registered")
		err.Add("sample@>=2", "have 1.0.0")

		msg := err.Error()
		if !containsSubstring(msg, "missing 3 module(s)") {
			t.Errorf("error should contain count, got: %s", msg)
		}
		if !containsSubstring(msg, "sample:") || !containsSubstring(msg, "other:") {
			t.Errorf("error should group by module, got: %s", msg)
		}
		if !containsSubstring(msg, "requires ^1.2 (have 1.0.0)") {
			t.Errorf("error should contain constraint and reason, got: %s", msg)
		}
		if !containsSubstring(msg, "any version (not registered)") {
			t.Errorf("error should describe unconstrained import, got: %s", msg)
		}
	})

	t.Run("empty modules", func(t *testing.T) {
		err := &MissingModulesError{}
		msg := err.Error()
		if !containsSubstring(msg, "no modules specified") {
			t.Errorf("empty error should have specific message, got: %s", msg)
		}
	})

	t.Run("errors.Is", func(t *testing.T) {
		err := &MissingModulesError{}
		err.Add("sample", "not registered")
		if !errors.Is(err, &MissingModulesError{}) {
			t.Error("errors.Is should match MissingModulesError")
		}
	})
}

func TestParseModuleSpec(t *testing.T) {
	tests := []struct {
		spec, name, constraint string
	}{
		{"sample", "sample", ""},
		{"sample@^1.2", "sample", "^1.2"},
		{"other@>= 2, < 3", "other", ">= 2, < 3"},
	}
	for _, tt := range tests {
		name, constraint := ParseModuleSpec(tt.spec)
		if name != tt.name || constraint != tt.constraint {
			t.Errorf("ParseModuleSpec(%q) = (%q, %q), want (%q, %q)", tt.spec, name, constraint, tt.name, tt.constraint)
		}
	}
}

func containsSubstring(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 ||
		(len(s) > 0 && containsSubstringHelper(s, substr)))
}

func containsSubstringHelper(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
