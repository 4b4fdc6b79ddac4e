package config

import (
	"reflect"
	"strings"
	"testing"
)

func TestExpandRoute(t *testing.T) {
	cfg := mustLoad(t, `
sources:
  in:
    type: file
    include: [x]
transforms:
  r:
    type: route
    inputs: [in]
    lanes: [a, b]
sinks:
  out:
    type: console
    inputs: [r]
`)

	if _, ok := cfg.Transforms.Get("r"); ok {
		t.Error("expected r to be replaced by its children")
	}
	for _, name := range []string{"r.a", "r.b"} {
		child, ok := cfg.Transforms.Get(name)
		if !ok {
			t.Fatalf("expected transform %q", name)
		}
		if !reflect.DeepEqual(child.Inputs, []string{"in"}) {
			t.Errorf("%s: expected inherited inputs [in], got %v", name, child.Inputs)
		}
	}
	if got := cfg.GetInputs("r"); !reflect.DeepEqual(got, []string{"r.a", "r.b"}) {
		t.Errorf("GetInputs(r) = %v", got)
	}
	if got := cfg.GetInputs("in"); !reflect.DeepEqual(got, []string{"in"}) {
		t.Errorf("GetInputs(in) = %v", got)
	}
	if got := cfg.Expansions(); !reflect.DeepEqual(got, []string{"r"}) {
		t.Errorf("Expansions() = %v", got)
	}

	// Callers get their own copy.
	inputs := cfg.GetInputs("r")
	inputs[0] = "changed"
	if got := cfg.GetInputs("r"); got[0] != "r.a" {
		t.Errorf("expected GetInputs to return a copy, got %v", got)
	}
}

func TestResolveInputsDropsDuplicates(t *testing.T) {
	cfg := mustLoad(t, `
sources:
  in:
    type: file
    include: [x]
transforms:
  r:
    type: route
    inputs: [in, in]
    lanes: [a, b]
sinks:
  out:
    type: console
    inputs: [r, r.a, in, r.b]
`)
	if got := cfg.ResolveInputs([]string{"r", "r.a", "in", "r.b"}); !reflect.DeepEqual(got, []string{"r.a", "r.b", "in"}) {
		t.Errorf("ResolveInputs() = %v, want [r.a r.b in]", got)
	}
	if got := cfg.ResolveInputs([]string{"in", "in"}); !reflect.DeepEqual(got, []string{"in"}) {
		t.Errorf("ResolveInputs() = %v, want [in]", got)
	}
}

func TestExpandNested(t *testing.T) {
	cfg := mustLoad(t, `
sources:
  in:
    type: file
    include: [x]
transforms:
  n:
    type: nested
    inputs: [in]
    depth: 2
  after:
    type: json_parser
    inputs: [n]
sinks:
  out:
    type: console
    inputs: [after, n.left]
`)

	want := []string{"n.left.left", "n.left.right", "n.right"}
	if got := cfg.GetInputs("n"); !reflect.DeepEqual(got, want) {
		t.Errorf("GetInputs(n) = %v, want %v", got, want)
	}
	if got := cfg.GetInputs("n.left"); !reflect.DeepEqual(got, want[:2]) {
		t.Errorf("GetInputs(n.left) = %v", got)
	}
	for _, name := range want {
		child, ok := cfg.Transforms.Get(name)
		if !ok {
			t.Fatalf("expected transform %q", name)
		}
		if !reflect.DeepEqual(child.Inputs, []string{"in"}) {
			t.Errorf("%s: expected inputs [in], got %v", name, child.Inputs)
		}
	}
	if _, ok := cfg.Transforms.Get("n.left"); ok {
		t.Error("expected intermediate n.left to be replaced")
	}
}

func TestExpandDepthLimit(t *testing.T) {
	_, err := LoadFromString(`
sources:
  in:
    type: file
    include: [x]
transforms:
  n:
    type: nested
    inputs: [in]
    depth: -1
sinks:
  out:
    type: console
    inputs: [n]
`)
	errs := errorList(t, err)
	if len(errs) != 1 || !strings.Contains(errs[0], "exceeds the maximum expansion depth of 8") {
		t.Errorf("unexpected errors %q", errs)
	}
}

func TestExpandErrors(t *testing.T) {
	_, err := LoadFromString(`
sources:
  in:
    type: file
    include: [x]
transforms:
  bad:
    type: broken_macro
    inputs: [in]
sinks:
  out:
    type: console
    inputs: [in]
`)
	errs := errorList(t, err)
	if !reflect.DeepEqual(errs, Errors{`transform "bad": lanes are required`}) {
		t.Errorf("unexpected errors %q", errs)
	}

	_, err = LoadFromString(`
sources:
  in:
    type: file
    include: [x]
transforms:
  r:
    type: route
    inputs: [in]
    lanes: [a]
  r.a:
    type: json_parser
    inputs: [in]
sinks:
  out:
    type: console
    inputs: [in]
`)
	errs = errorList(t, err)
	want := Errors{`expanded transform name "r.a" collides with an existing transform`}
	if !reflect.DeepEqual(errs, want) {
		t.Errorf("got %q, want %q", errs, want)
	}
}

func TestExpandedTransformsAreTypechecked(t *testing.T) {
	_, err := LoadFromString(`
sources:
  m:
    type: metrics
transforms:
  r:
    type: route
    inputs: [m]
    lanes: [a]
sinks:
  out:
    type: console
    inputs: [r]
`)
	errs := errorList(t, err)
	want := Errors{"data type mismatch between m (metric) and r.a (log)"}
	if !reflect.DeepEqual(errs, want) {
		t.Errorf("got %q, want %q", errs, want)
	}
}
