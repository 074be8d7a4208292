package dedup

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("jane@example.com", "Acme Corp")
	b := Fingerprint("jane@example.com", "Acme Corp")
	if a != b {
		t.Errorf("fingerprints differ: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestFingerprintNormalizesInput(t *testing.T) {
	base := Fingerprint("jane@example.com", "acme corp")

	cases := []struct {
		name    string
		email   string
		company string
	}{
		{"uppercase email", "JANE@EXAMPLE.COM", "acme corp"},
		{"padded email", "  jane@example.com ", "acme corp"},
		{"uppercase company", "jane@example.com", "Acme Corp"},
		{"padded company", "jane@example.com", " acme corp  "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Fingerprint(tc.email, tc.company); got != base {
				t.Errorf("Fingerprint(%q, %q) != base", tc.email, tc.company)
			}
		})
	}
}

func TestFingerprintDistinguishesCompanies(t *testing.T) {
	a := Fingerprint("jane@example.com", "acme")
	b := Fingerprint("jane@example.com", "globex")
	if a == b {
		t.Error("different companies produced the same fingerprint")
	}
}
