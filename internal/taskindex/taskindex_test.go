package taskindex

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTask(t *testing.T, stateDir string, bucket Bucket, name string) {
	t.Helper()
	dir := filepath.Join(stateDir, string(bucket))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte("---\nid: x\n---\nbody\n"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildResolvesAcrossBuckets(t *testing.T) {
	dir := t.TempDir()
	writeTask(t, dir, Ready, "TASK-001-fix-foo.md")
	writeTask(t, dir, Doing, "TASK-002-fix-bar.md")
	writeTask(t, dir, Done, "TASK-003-old-thing.md")

	idx, err := Build(dir)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	e, ok := idx.Resolve("TASK-002")
	if !ok {
		t.Fatalf("expected TASK-002 to resolve")
	}
	if e.Bucket != Doing {
		t.Fatalf("TASK-002 bucket = %s, want DOING", e.Bucket)
	}

	if idx.NextNumber() != 4 {
		t.Fatalf("NextNumber = %d, want 4", idx.NextNumber())
	}
}

func TestBuildDetectsDuplicateBucketPlacement(t *testing.T) {
	dir := t.TempDir()
	writeTask(t, dir, Ready, "TASK-001-fix-foo.md")
	writeTask(t, dir, Doing, "TASK-001-fix-foo.md")

	if _, err := Build(dir); err == nil {
		t.Fatalf("expected error for task present in two buckets")
	}
}

func TestBuildIgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	writeTask(t, dir, Ready, "TASK-001-fix-foo.md")
	readyDir := filepath.Join(dir, string(Ready))
	if err := os.WriteFile(filepath.Join(readyDir, "README.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(readyDir, "task-002-lowercase.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	idx, err := Build(dir)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(idx.All()) != 1 {
		t.Fatalf("expected exactly 1 entry, got %d: %+v", len(idx.All()), idx.All())
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Fix the Frobnicator!":       "fix-the-frobnicator",
		"  leading and trailing  ":   "leading-and-trailing",
		"already-slugged":            "already-slugged",
		"":                           "task",
		"日本語 title":                  "title",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilenameAndFormatID(t *testing.T) {
	if got := FormatID(7); got != "TASK-007" {
		t.Errorf("FormatID(7) = %q", got)
	}
	if got := FormatID(1234); got != "TASK-1234" {
		t.Errorf("FormatID(1234) = %q", got)
	}
	if got := Filename(7, "fix-foo"); got != "TASK-007-fix-foo.md" {
		t.Errorf("Filename = %q", got)
	}
}
