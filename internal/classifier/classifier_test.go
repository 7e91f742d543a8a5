package classifier_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"shelver/internal/classifier"
	"shelver/internal/events"
	"shelver/internal/registry"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Build([]registry.Category{
		{Name: "Images", Extensions: []string{"jpg", "png"}},
		{Name: "PDFs", Extensions: []string{"pdf"}},
		{Name: "Datasets", Extensions: []string{"csv"}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return reg
}

func touch(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCandidateName(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want string
	}{
		{"report.csv", -1, "report.csv"},
		{"report.csv", 0, "report_0.csv"},
		{"report.csv", 1, "report_1.csv"},
		{"archive.tar.gz", 0, "archive.tar_0.gz"},
		{"README", 2, "README_2"},
		{".env", 0, ".env_0"},
	}
	for _, tc := range tests {
		if got := classifier.CandidateName(tc.name, tc.n); got != tc.want {
			t.Errorf("CandidateName(%q, %d) = %q, want %q", tc.name, tc.n, got, tc.want)
		}
	}
}

func TestClassifyCollisionNaming(t *testing.T) {
	base := t.TempDir()
	var rec events.Recorder
	c := classifier.New(newRegistry(t), &rec)
	touch(t, filepath.Join(base, "Datasets", "report.csv"), "existing")

	for i, want := range []string{"report_0.csv", "report_1.csv"} {
		src := touch(t, filepath.Join(base, "report.csv"), fmt.Sprintf("v%d", i))
		res := c.Classify(src, base)
		if res.Outcome != classifier.Moved || res.FinalName != want {
			t.Fatalf("classification %d: got %+v, want %s", i, res, want)
		}
		if got, _ := os.ReadFile(filepath.Join(base, "Datasets", want)); string(got) != fmt.Sprintf("v%d", i) {
			t.Fatalf("unexpected content in %s: %q", want, got)
		}
	}
	if got, _ := os.ReadFile(filepath.Join(base, "Datasets", "report.csv")); string(got) != "existing" {
		t.Fatalf("existing file clobbered: %q", got)
	}
	if rec.Len() != 2 {
		t.Fatalf("expected one notice per call, got %v", rec.Messages())
	}
}

func TestClassifyIgnoresExtensionCase(t *testing.T) {
	base := t.TempDir()
	c := classifier.New(newRegistry(t), nil)
	upper := c.Classify(touch(t, filepath.Join(base, "Photo.JPG"), "a"), base)
	lower := c.Classify(touch(t, filepath.Join(base, "photo.jpg"), "b"), base)
	if upper.Category != "Images" || lower.Category != "Images" {
		t.Fatalf("expected both in Images, got %q and %q", upper.Category, lower.Category)
	}
	if upper.FinalName != "Photo.JPG" {
		t.Fatalf("expected original name kept, got %q", upper.FinalName)
	}
}

func TestClassifyUnclassifiedLeavesFile(t *testing.T) {
	base := t.TempDir()
	var rec events.Recorder
	var results []classifier.Result
	c := classifier.New(newRegistry(t), &rec, classifier.WithRecorder(func(r classifier.Result) {
		results = append(results, r)
	}))
	src := touch(t, filepath.Join(base, "archive.xyz"), "x")

	res := c.Classify(src, base)
	if res.Outcome != classifier.Unclassified || res.Err != nil {
		t.Fatalf("expected Unclassified, got %+v", res)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("unclassified file moved: %v", err)
	}
	if rec.Len() != 1 || len(results) != 1 {
		t.Fatalf("expected exactly one notice and record, got %d and %d", rec.Len(), len(results))
	}
}

func TestClassifyVanishedSource(t *testing.T) {
	base := t.TempDir()
	var rec events.Recorder
	c := classifier.New(newRegistry(t), &rec)
	res := c.Classify(filepath.Join(base, "gone.pdf"), base)
	if res.Outcome != classifier.Failed || !errors.Is(res.Err, classifier.ErrSourceVanished) {
		t.Fatalf("expected vanished failure, got %+v", res)
	}
	if rec.Len() != 1 {
		t.Fatalf("expected one notice, got %v", rec.Messages())
	}
}

func TestClassifyOnceSkipsPathMovedBySharingClassifier(t *testing.T) {
	base := t.TempDir()
	var rec events.Recorder
	var results []classifier.Result
	claims := classifier.NewClaims()
	locks := classifier.NewLocks()
	record := func(r classifier.Result) { results = append(results, r) }
	sweeper := classifier.New(newRegistry(t), &rec, classifier.WithClaims(claims), classifier.WithLocks(locks), classifier.WithRecorder(record))
	watcher := classifier.New(newRegistry(t), &rec, classifier.WithClaims(claims), classifier.WithLocks(locks), classifier.WithRecorder(record))

	src := touch(t, filepath.Join(base, "a.jpg"), "first")
	if res, ok := sweeper.ClassifyOnce(src, base); !ok || res.Outcome != classifier.Moved {
		t.Fatalf("first claim: ok=%v result=%+v", ok, res)
	}
	if _, ok := watcher.ClassifyOnce(src, base); ok {
		t.Fatal("expected the already moved path to be skipped")
	}
	if rec.Len() != 1 || len(results) != 1 {
		t.Fatalf("expected one notice and record, got %v and %d", rec.Messages(), len(results))
	}

	touch(t, src, "second")
	res, ok := watcher.ClassifyOnce(src, base)
	if !ok || res.Outcome != classifier.Moved || res.FinalName != "a_0.jpg" {
		t.Fatalf("new file under the same name: ok=%v result=%+v", ok, res)
	}
}

func TestClassifyOnceWithoutClaimsReportsVanished(t *testing.T) {
	base := t.TempDir()
	var rec events.Recorder
	c := classifier.New(newRegistry(t), &rec)
	res, ok := c.ClassifyOnce(filepath.Join(base, "gone.pdf"), base)
	if !ok || !errors.Is(res.Err, classifier.ErrSourceVanished) {
		t.Fatalf("expected reported vanished failure, got ok=%v %+v", ok, res)
	}
	if rec.Len() != 1 {
		t.Fatalf("expected one notice, got %v", rec.Messages())
	}
}

func TestClassifyNamesExhausted(t *testing.T) {
	base := t.TempDir()
	c := classifier.New(newRegistry(t), nil, classifier.WithMaxAttempts(2))
	touch(t, filepath.Join(base, "PDFs", "a.pdf"), "1")
	touch(t, filepath.Join(base, "PDFs", "a_0.pdf"), "2")
	src := touch(t, filepath.Join(base, "a.pdf"), "3")

	res := c.Classify(src, base)
	if res.Outcome != classifier.Failed || !errors.Is(res.Err, classifier.ErrNamesExhausted) {
		t.Fatalf("expected exhaustion failure, got %+v", res)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source should stay in place: %v", err)
	}
}

func TestClassifyRecreatesMissingCategoryDir(t *testing.T) {
	base := t.TempDir()
	c := classifier.New(newRegistry(t), nil)
	res := c.Classify(touch(t, filepath.Join(base, "b.pdf"), "x"), base)
	if res.Outcome != classifier.Moved || res.Destination != filepath.Join(base, "PDFs", "b.pdf") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestClassifyConcurrentSameNameNeverClobbers(t *testing.T) {
	base := t.TempDir()
	c := classifier.New(newRegistry(t), nil)
	const n = 16
	srcs := make([]string, n)
	for i := range n {
		srcs[i] = touch(t, filepath.Join(base, fmt.Sprintf("in%d", i), "report.csv"), fmt.Sprint(i))
	}

	var wg sync.WaitGroup
	names := make([]string, n)
	for i := range n {
		wg.Go(func() {
			res := c.Classify(srcs[i], base)
			if res.Outcome != classifier.Moved {
				t.Errorf("source %d: %+v", i, res)
			}
			names[i] = res.FinalName
		})
	}
	wg.Wait()

	sort.Strings(names)
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			t.Fatalf("duplicate destination name %q", name)
		}
		seen[name] = true
	}
	entries, err := os.ReadDir(filepath.Join(base, "Datasets"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != n {
		t.Fatalf("expected %d files in Datasets, got %d", n, len(entries))
	}
}

func TestOutcomeString(t *testing.T) {
	for outcome, want := range map[classifier.Outcome]string{
		classifier.Moved:        "moved",
		classifier.Failed:       "failed",
		classifier.Unclassified: "unclassified",
	} {
		if outcome.String() != want {
			t.Errorf("%d.String() = %q, want %q", outcome, outcome.String(), want)
		}
	}
}
