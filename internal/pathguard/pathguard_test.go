package pathguard

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestResolveRejectsTraversal(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "data", "acme")
	cases := []string{
		"../secret",
		"../../etc/passwd",
		"a/../../b",
		"..",
		"..\\..\\windows\\system32",
		"folder/..\\../x",
		"C:\\temp\\x",
		"/../etc/passwd",
	}
	for _, in := range cases {
		if _, err := Resolve(root, in); !errors.Is(err, ErrTraversal) {
			t.Fatalf("Resolve(%q) expected ErrTraversal, got %v", in, err)
		}
	}
}

func TestResolveAcceptsInsidePaths(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "data", "acme")
	cases := []struct{ in, want string }{
		{"file.txt", filepath.Join(root, "file.txt")},
		{"a/b/c.png", filepath.Join(root, "a", "b", "c.png")},
		{"/leading/slash.pdf", filepath.Join(root, "leading", "slash.pdf")},
		{"a/./b", filepath.Join(root, "a", "b")},
		{"a/x/../b", filepath.Join(root, "a", "b")},
		{"", root},
		{"/", root},
	}
	for _, c := range cases {
		got, err := Resolve(root, c.in)
		if err != nil {
			t.Fatalf("Resolve(%q) unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("Resolve(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

// A normalized result that merely shares a string prefix with the root must
// still be rejected: /data/acme must not admit /data/acme-evil.
func TestResolveSiblingRootPrefix(t *testing.T) {
	sep := string(filepath.Separator)
	root := sep + filepath.Join("data", "acme")
	if _, err := Resolve(root+"-evil", "x"); err != nil {
		t.Fatalf("sibling root should resolve fine on its own: %v", err)
	}
	got, err := Resolve(root, "sub")
	if err != nil {
		t.Fatal(err)
	}
	if got == root+"-evil"+sep+"sub" {
		t.Fatalf("resolved into sibling root: %q", got)
	}
}

func TestCleanRelative(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"a/b", "a", false},
		{"\\a\\b", "a", false},
		{"../x", "", true},
		{"nested/../../x", "", true},
		{"/abs/path", "abs", false},
	}
	for _, c := range cases {
		got, err := CleanRelative(c.in)
		if c.wantErr {
			if !errors.Is(err, ErrTraversal) {
				t.Fatalf("CleanRelative(%q) expected ErrTraversal, got %v", c.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("CleanRelative(%q): %v", c.in, err)
		}
		if got[:len(c.want)] != c.want {
			t.Fatalf("CleanRelative(%q)=%q want prefix %q", c.in, got, c.want)
		}
	}
}
