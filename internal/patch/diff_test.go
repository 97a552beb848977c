package patch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const simpleDiff = `--- a/src/App.java
+++ b/src/App.java
@@ -1,3 +1,3 @@
 public class App {
-    int x = ;
+    int x = 0;
 }
`

func TestParseDiffResponse(t *testing.T) {
	t.Run("bare diff", func(t *testing.T) {
		edits, err := Parse(simpleDiff)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if len(edits) != 1 || !IsDiffEdit(edits[0]) {
			t.Fatalf("expected one diff edit, got %+v", edits)
		}
	})

	t.Run("diff wrapped in prose and fences", func(t *testing.T) {
		response := "The fix replaces the bad initializer:\n\n```diff\n" + simpleDiff + "```\n\nThat should compile now."
		edits, err := Parse(response)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if len(edits) != 1 || !IsDiffEdit(edits[0]) {
			t.Fatalf("expected one diff edit, got %+v", edits)
		}
	})
}

func TestApplyDiff(t *testing.T) {
	root := t.TempDir()
	original := "public class App {\n    int x = ;\n}\n"
	if err := os.MkdirAll(filepath.Join(root, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "src/App.java"), []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	edits, err := Parse(simpleDiff)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	changed, err := Apply(root, edits)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(changed) != 1 || changed[0] != filepath.Join("src", "App.java") {
		t.Errorf("changed = %v", changed)
	}

	data, err := os.ReadFile(filepath.Join(root, "src/App.java"))
	if err != nil {
		t.Fatal(err)
	}
	want := "public class App {\n    int x = 0;\n}\n"
	if string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}
}

func TestApplyDiffContextMismatch(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	// The tree does not match the diff's context lines.
	if err := os.WriteFile(filepath.Join(root, "src/App.java"), []byte("something else\n"), 0644); err != nil {
		t.Fatal(err)
	}

	edits, err := Parse(simpleDiff)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Apply(root, edits); err == nil {
		t.Fatal("expected context mismatch error")
	}
}

func TestApplyDiffCreatesNewFile(t *testing.T) {
	root := t.TempDir()
	newFileDiff := `--- /dev/null
+++ b/src/New.java
@@ -0,0 +1,2 @@
+public class New {
+}
`
	edits, err := Parse(newFileDiff)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Apply(root, edits); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "src/New.java"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "public class New") {
		t.Errorf("content = %q", data)
	}
}

func TestCleanDiffPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a/src/App.java", "src/App.java"},
		{"b/src/App.java", "src/App.java"},
		{"src/App.java", "src/App.java"},
		{"/dev/null", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cleanDiffPath(tt.in); got != tt.want {
			t.Errorf("cleanDiffPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
