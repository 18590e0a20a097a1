package fingerprint

import "testing"

func TestNewRegistryHasEssentialTargets(t *testing.T) {
	r := NewRegistry()

	essential := []string{"chrome", "firefox", "safari"}
	for _, name := range essential {
		spec, err := r.Resolve(name)
		if err != nil {
			t.Errorf("essential family %q did not resolve: %v", name, err)
			continue
		}
		if spec.Client == "" {
			t.Errorf("resolved spec for %q has empty Client", name)
		}
		if len(spec.TLSCiphers) == 0 {
			t.Errorf("resolved spec for %q has no TLS ciphers", name)
		}
	}
}

func TestResolveUnknownTarget(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("netscape_navigator_4")
	if err == nil {
		t.Fatal("expected error resolving unknown target")
	}
	var unknown *UnknownImpersonationError
	if !asUnknown(err, &unknown) {
		t.Fatalf("expected *UnknownImpersonationError, got %T", err)
	}
}

func asUnknown(err error, target **UnknownImpersonationError) bool {
	u, ok := err.(*UnknownImpersonationError)
	if ok {
		*target = u
	}
	return ok
}

func TestResolveReturnsIndependentCopies(t *testing.T) {
	r := NewRegistry()

	a, err := r.Resolve("chrome131")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Resolve("chrome131")
	if err != nil {
		t.Fatal(err)
	}

	a.TLSCiphers[0] = 0xffff
	if b.TLSCiphers[0] == 0xffff {
		t.Fatal("mutating one resolved Spec's slice affected another resolution")
	}

	fresh, err := r.Resolve("chrome131")
	if err != nil {
		t.Fatal(err)
	}
	if fresh.TLSCiphers[0] == 0xffff {
		t.Fatal("mutating a resolved Spec corrupted the registry's canonical entry")
	}
}

func TestSpecValidateRejectsBadPseudoOrder(t *testing.T) {
	s := Spec{HTTP2PseudoHeadersOrder: PseudoHeaderOrder{'m', 'a', 's', 's'}}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for non-permutation pseudo-header order")
	}
}

func TestEveryNativeTargetValidates(t *testing.T) {
	r := NewRegistry()
	for _, name := range r.List() {
		spec, err := r.Resolve(name)
		if err != nil {
			t.Fatalf("resolving %q: %v", name, err)
		}
		if err := spec.Validate(); err != nil {
			t.Errorf("native target %q failed validation: %v", name, err)
		}
	}
}

func TestListIsSortedAndNonEmpty(t *testing.T) {
	r := NewRegistry()
	names := r.List()
	if len(names) == 0 {
		t.Fatal("List returned no targets")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("List is not sorted: %q before %q", names[i-1], names[i])
		}
	}
}

func TestByPlatformFiltersCorrectly(t *testing.T) {
	r := NewRegistry()
	for _, name := range r.ByPlatform("Windows") {
		spec, err := r.Resolve(name)
		if err != nil {
			t.Fatal(err)
		}
		if spec.OS != "Windows" {
			t.Errorf("ByPlatform(%q) returned target %q with OS %q", "Windows", name, spec.OS)
		}
	}
}

func TestLoadOverridesFromMissingDirIsNotError(t *testing.T) {
	r := NewRegistry()
	if err := r.LoadOverridesFromDir(t.TempDir()); err != nil {
		t.Fatalf("missing registry.json should not error, got %v", err)
	}
}
