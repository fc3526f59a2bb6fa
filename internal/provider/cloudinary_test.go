package provider

import "testing"

func TestSignCloudinarySortsParams(t *testing.T) {
	got := signCloudinary(map[string]string{
		"timestamp": "1700000000",
		"public_id": "docs/report",
	}, "abcd")
	// sha1("public_id=docs/report&timestamp=1700000000abcd")
	want := "3a1ca5c3b93d89e47cb7654db5d3dbd19d023e27"
	if got != want {
		t.Fatalf("signature = %s, want %s", got, want)
	}
}

func TestExtOf(t *testing.T) {
	cases := map[string]string{
		"a/b/report.pdf": "pdf",
		"archive.tar.gz": "gz",
		"noext":          "",
		"trailingdot.":   "",
	}
	for in, want := range cases {
		if got := extOf(in); got != want {
			t.Errorf("extOf(%q) = %q, want %q", in, got, want)
		}
	}
}
