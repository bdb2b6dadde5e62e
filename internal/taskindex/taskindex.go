// Package taskindex enumerates task files across buckets and resolves
// task IDs to their bucket and path.
package taskindex

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Bucket names a lifecycle-stage directory.
type Bucket string

const (
	Ready   Bucket = "READY"
	Doing   Bucket = "DOING"
	QA      Bucket = "QA"
	Done    Bucket = "DONE"
	Blocked Bucket = "BLOCKED"
)

// Buckets lists every bucket in canonical scan order.
var Buckets = []Bucket{Ready, Doing, QA, Done, Blocked}

// filenamePattern matches TASK-<digits>-<slug>.md.
var filenamePattern = regexp.MustCompile(`^TASK-(\d{3,})-([a-z0-9](?:[a-z0-9-]*[a-z0-9])?)\.md$`)

// Entry locates one task file.
type Entry struct {
	ID     string
	Number int
	Slug   string
	Bucket Bucket
	Path   string
}

// Index is a snapshot of {task_id -> (bucket, path)} built from the
// workflow state directory's bucket subdirectories.
type Index struct {
	byID      map[string]Entry
	maxNumber int
}

// Build scans each bucket directory under stateDir and returns an Index.
// A missing bucket directory is not an error (init creates them all, but
// callers may run Build defensively).
func Build(stateDir string) (*Index, error) {
	idx := &Index{byID: make(map[string]Entry)}

	for _, bucket := range Buckets {
		dir := filepath.Join(stateDir, string(bucket))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading bucket directory %s: %w", dir, err)
		}

		for _, de := range entries {
			if de.IsDir() {
				continue
			}
			m := filenamePattern.FindStringSubmatch(de.Name())
			if m == nil {
				continue
			}
			number, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			id := fmt.Sprintf("TASK-%s", m[1])
			// Canonicalize to at-least-3-digit uppercase id; keep the
			// original numeric width so NNN with more than 3 digits
			// (e.g. TASK-1000) is represented faithfully.
			entry := Entry{
				ID:     id,
				Number: number,
				Slug:   m[2],
				Bucket: bucket,
				Path:   filepath.Join(dir, de.Name()),
			}
			if existing, ok := idx.byID[id]; ok {
				return nil, fmt.Errorf("task %s appears in both %s and %s: a task must live in exactly one bucket", id, existing.Bucket, bucket)
			}
			idx.byID[id] = entry
			if number > idx.maxNumber {
				idx.maxNumber = number
			}
		}
	}

	return idx, nil
}

// Resolve looks up a task by ID.
func (idx *Index) Resolve(id string) (Entry, bool) {
	e, ok := idx.byID[id]
	return e, ok
}

// ListBucket returns every entry in a bucket, sorted by task number.
func (idx *Index) ListBucket(bucket Bucket) []Entry {
	var out []Entry
	for _, e := range idx.byID {
		if e.Bucket == bucket {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// All returns every entry, sorted by task number.
func (idx *Index) All() []Entry {
	var out []Entry
	for _, e := range idx.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// NextNumber returns the next monotonically-assigned task number,
// left-padded to at least 3 digits by FormatID.
func (idx *Index) NextNumber() int {
	return idx.maxNumber + 1
}

// FormatID renders a task number as TASK-<NNN> with at least 3 digits.
func FormatID(number int) string {
	return fmt.Sprintf("TASK-%03d", number)
}

// Filename renders the canonical filename for a task number and slug.
func Filename(number int, slug string) string {
	return fmt.Sprintf("%s-%s.md", FormatID(number), slug)
}

var slugDisallowed = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases title, replaces runs of non-alphanumeric characters
// with a single hyphen, and trims leading/trailing hyphens — used by `add`
// to derive a task's filename slug from its title.
func Slugify(title string) string {
	lowered := strings.ToLower(title)
	slug := slugDisallowed.ReplaceAllString(lowered, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "task"
	}
	return slug
}
