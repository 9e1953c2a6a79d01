package tools

import (
	"context"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aschepis/agentloop/llm"
)

func noopEntrypoint(_ context.Context, _ *CallContext, _ map[string]any) (any, error) {
	return "ok", nil
}

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	first := &Function{Name: "echo", Description: "first", Entrypoint: noopEntrypoint}
	second := &Function{Name: "echo", Description: "second", Entrypoint: noopEntrypoint}

	reg.Register(first)
	reg.Register(second)

	f, ok := reg.Resolve("echo")
	if !ok {
		t.Fatal("Expected echo to resolve")
	}
	if f.Description != "first" {
		t.Errorf("Expected first registration to win, got %q", f.Description)
	}
}

func TestRegistry_Replace(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	reg.Register(&Function{Name: "echo", Description: "first", Entrypoint: noopEntrypoint})
	reg.Replace(&Function{Name: "echo", Description: "second", Entrypoint: noopEntrypoint})

	f, _ := reg.Resolve("echo")
	if f.Description != "second" {
		t.Errorf("Expected Replace to overwrite, got %q", f.Description)
	}
}

func TestRegistry_RegisterFunc(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.RegisterFunc("greet", "greets", llm.ToolSchema{Type: "object"}, noopEntrypoint)

	f, ok := reg.Resolve("greet")
	if !ok {
		t.Fatal("Expected greet to resolve")
	}
	if !f.SanitizeArguments {
		t.Error("Expected sanitization on by default for bare entrypoints")
	}
}

type testToolkit struct{}

func (testToolkit) Name() string { return "test" }
func (testToolkit) Functions() []*Function {
	return []*Function{
		{Name: "a", Entrypoint: noopEntrypoint},
		{Name: "b", Entrypoint: noopEntrypoint},
	}
}

func TestRegistry_RegisterToolkit(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.RegisterToolkit(testToolkit{})

	for _, name := range []string{"a", "b"} {
		if _, ok := reg.Resolve(name); !ok {
			t.Errorf("Expected %q to resolve", name)
		}
	}
}

func TestRegistry_RegisterSpec(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.RegisterSpec(llm.ToolSpec{Name: "remote", Description: "raw descriptor"})

	// Raw descriptors appear in specs but do not resolve to an entrypoint
	if _, ok := reg.Resolve("remote"); ok {
		t.Error("Expected raw descriptor not to resolve as executable")
	}
	names := reg.Names()
	if !reflect.DeepEqual(names, []string{"remote"}) {
		t.Errorf("Expected names [remote], got %v", names)
	}
}

func TestFunctionSpec_CarriesStrict(t *testing.T) {
	f := &Function{
		Name:       "validated",
		Strict:     true,
		Parameters: llm.ToolSchema{Type: "object"},
		Entrypoint: noopEntrypoint,
	}

	spec := f.Spec()
	if !spec.Strict {
		t.Error("Expected Strict to carry through to the spec")
	}
	if (&Function{Name: "plain", Entrypoint: noopEntrypoint}).Spec().Strict {
		t.Error("Expected Strict off by default")
	}
}

func TestRegistry_SpecsSorted(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.Register(&Function{Name: "zeta", Entrypoint: noopEntrypoint})
	reg.Register(&Function{Name: "alpha", Entrypoint: noopEntrypoint})
	reg.RegisterSpec(llm.ToolSpec{Name: "mid"})

	specs := reg.Specs()
	if len(specs) != 3 {
		t.Fatalf("Expected 3 specs, got %d", len(specs))
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if specs[i].Name != want {
			t.Errorf("Expected specs[%d] = %q, got %q", i, want, specs[i].Name)
		}
	}
}
