package domain

import "testing"

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Jane.Doe@Example.COM", "jane.doe@example.com"},
		{"  spaced@corp.io  ", "spaced@corp.io"},
		{"already@lower.net", "already@lower.net"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizeEmail(tc.in); got != tc.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeCompany(t *testing.T) {
	if got := NormalizeCompany("  Acme Corp  "); got != "acme corp" {
		t.Errorf("NormalizeCompany = %q, want %q", got, "acme corp")
	}
}

func TestFullName(t *testing.T) {
	cases := []struct {
		lead Lead
		want string
	}{
		{Lead{FirstName: "Jane", LastName: "Doe"}, "Jane Doe"},
		{Lead{FirstName: "Cher"}, "Cher"},
		{Lead{}, ""},
	}

	for _, tc := range cases {
		if got := tc.lead.FullName(); got != tc.want {
			t.Errorf("FullName() = %q, want %q", got, tc.want)
		}
	}
}
