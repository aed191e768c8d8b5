package backend

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]Kind{
		"":        KindScalar,
		"scalar":  KindScalar,
		"CPU":     KindScalar,
		"simd":    KindSIMD,
		"AVX2":    KindSIMD,
		"neon":    KindSIMD,
		"gpu":     KindGPU,
		"OpenCL":  KindGPU,
		"unknown": Kind("unknown"),
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, _, err := New("nonsense", 1); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("New(nonsense) err = %v, want ErrUnknownBackend", err)
	}
}

func TestNewScalarAndSIMD(t *testing.T) {
	for _, name := range []string{"scalar", "simd"} {
		be, cleanup, err := New(name, 1)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if be == nil {
			t.Fatalf("New(%q) returned nil backend", name)
		}
		cleanup()
	}
}

// TestNewGPUUnavailableWithoutBuildTag covers the default (non-`gpu`
// tagged) build: the GPU back end reports unavailable rather than
// panicking or silently falling back.
func TestNewGPUUnavailableWithoutBuildTag(t *testing.T) {
	_, _, err := New("gpu", 1)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("New(gpu) err = %v, want ErrBackendUnavailable", err)
	}
}

func TestSupportedListsAllThreeKinds(t *testing.T) {
	got := Supported()
	want := map[Kind]bool{KindScalar: true, KindSIMD: true, KindGPU: true}
	if len(got) != len(want) {
		t.Fatalf("Supported() = %v, want 3 kinds", got)
	}
	for _, k := range got {
		if !want[k] {
			t.Errorf("Supported() contains unexpected kind %v", k)
		}
	}
}
