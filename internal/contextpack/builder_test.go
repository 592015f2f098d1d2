package contextpack

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, root, rel string, content []byte) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBuild_IncludesSupportedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "example.basic", []byte("PRINT 'HELLO'"))
	writeFile(t, root, "notes.bin", []byte("\x00\x01"))

	bundle, err := Builder{}.Build(root)
	if err != nil {
		t.Fatal(err)
	}

	if want := []string{"example.basic"}; !reflect.DeepEqual(bundle.Files, want) {
		t.Errorf("Files = %v, want %v", bundle.Files, want)
	}
	if want := "### FILE: example.basic\nPRINT 'HELLO'"; bundle.Text != want {
		t.Errorf("Text = %q, want %q", bundle.Text, want)
	}
}

func TestBuild_IncludesExtensionlessTextFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "PROGRAM", []byte(`CRT "HELLO"`))

	bundle, err := Builder{}.Build(root)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"PROGRAM"}; !reflect.DeepEqual(bundle.Files, want) {
		t.Errorf("Files = %v, want %v", bundle.Files, want)
	}
	if !strings.Contains(bundle.Text, "### FILE: PROGRAM") {
		t.Errorf("Text missing PROGRAM header: %q", bundle.Text)
	}
}

func TestBuild_SkipsBinaryFilesWithoutExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "blob", []byte("\x00\x10\x80\xff"))

	bundle, err := Builder{}.Build(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(bundle.Files) != 0 {
		t.Errorf("Files = %v, want none", bundle.Files)
	}
	if bundle.Text != "" {
		t.Errorf("Text = %q, want empty", bundle.Text)
	}
}

func TestBuild_OrderAndSeparators(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.py", []byte("b = 1\n"))
	writeFile(t, root, "a/z.go", []byte("package z"))
	writeFile(t, root, "a.txt", []byte("  spaced  \n\n"))
	writeFile(t, root, "empty.md", []byte("   \n\t"))

	bundle, err := Builder{}.Build(root)
	if err != nil {
		t.Fatal(err)
	}

	wantFiles := []string{"a/z.go", "a.txt", "b.py"}
	if !reflect.DeepEqual(bundle.Files, wantFiles) {
		t.Fatalf("Files = %v, want %v", bundle.Files, wantFiles)
	}
	wantText := "### FILE: a/z.go\npackage z\n\n### FILE: a.txt\nspaced\n\n### FILE: b.py\nb = 1"
	if bundle.Text != wantText {
		t.Errorf("Text = %q, want %q", bundle.Text, wantText)
	}
}

func TestBuild_CapsFileCount(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"1.py", "2.py", "3.py", "4.py"} {
		writeFile(t, root, name, []byte("x = 1"))
	}

	bundle, err := Builder{MaxFiles: 2}.Build(root)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"1.py", "2.py"}; !reflect.DeepEqual(bundle.Files, want) {
		t.Errorf("Files = %v, want %v", bundle.Files, want)
	}
}

func TestBuild_TruncatesLongFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "long.txt", []byte(strings.Repeat("é", 20)))

	bundle, err := Builder{MaxCharsPerFile: 5}.Build(root)
	if err != nil {
		t.Fatal(err)
	}
	want := "### FILE: long.txt\néééée\n\n...[truncated]"
	if bundle.Text != want {
		t.Errorf("Text = %q, want %q", bundle.Text, want)
	}
}

func TestBuild_DropsInvalidUTF8(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "latin.txt", []byte("caf\xe9 ok"))

	bundle, err := Builder{}.Build(root)
	if err != nil {
		t.Fatal(err)
	}
	if want := "### FILE: latin.txt\ncaf ok"; bundle.Text != want {
		t.Errorf("Text = %q, want %q", bundle.Text, want)
	}
}

func TestBuild_SkipsUnreadableFiles(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files regardless of mode")
	}
	root := t.TempDir()
	writeFile(t, root, "a.py", []byte("secret"))
	writeFile(t, root, "b.py", []byte("visible"))
	if err := os.Chmod(filepath.Join(root, "a.py"), 0); err != nil {
		t.Fatal(err)
	}

	bundle, err := Builder{}.Build(root)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"b.py"}; !reflect.DeepEqual(bundle.Files, want) {
		t.Errorf("Files = %v, want %v", bundle.Files, want)
	}
}

func TestBuild_MissingRoot(t *testing.T) {
	if _, err := (Builder{}).Build(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing project root")
	}
}

func TestShouldInclude(t *testing.T) {
	tests := []struct {
		path    string
		content []byte
		want    bool
	}{
		{"legacy.BAS", []byte{0}, true},
		{"prog.bp", []byte("x"), true},
		{"image.png", []byte{0x89, 'P', 'N', 'G', 0}, false},
		{"README", []byte("hello"), true},
	}
	for _, tt := range tests {
		if got := ShouldInclude(tt.path, tt.content); got != tt.want {
			t.Errorf("ShouldInclude(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
