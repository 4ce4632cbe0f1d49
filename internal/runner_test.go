package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kamaw/photodup/internal/fingerprint"
	"github.com/kamaw/photodup/internal/metrics"
	"github.com/kamaw/photodup/pkg"
)

func newTestRunner(dirs []string, exactOnly bool, threshold float64, notify func(string)) *Runner {
	fp := fingerprint.New(zap.NewNop(), metrics.NoMetrics(), nil)
	return NewRunner(zap.NewNop(), metrics.NoMetrics(), fp,
		dirs, exactOnly, threshold, false, 2, notify)
}

func TestRunValidation(t *testing.T) {
	existing := t.TempDir()
	file := filepath.Join(existing, "file.jpg")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf(err.Error())
	}

	cases := []struct {
		name      string
		dirs      []string
		exactOnly bool
		threshold float64
	}{
		{
			name:      "no source directories",
			dirs:      nil,
			exactOnly: true,
		},
		{
			name:      "threshold above 0.99",
			dirs:      []string{existing},
			threshold: 1.0,
		},
		{
			name:      "negative threshold",
			dirs:      []string{existing},
			threshold: -0.1,
		},
		{
			name:      "missing source directory",
			dirs:      []string{filepath.Join(existing, "nope")},
			exactOnly: true,
		},
		{
			name:      "source path is a file",
			dirs:      []string{file},
			exactOnly: true,
		},
	}

	for _, c := range cases {
		r := newTestRunner(c.dirs, c.exactOnly, c.threshold, nil)
		if _, err := r.Run(); err == nil {
			t.Errorf("%v\n\tExpected an error but got none", c.name)
		}
	}
}

func TestRunExactMode(t *testing.T) {
	dir := t.TempDir()

	same := []byte("identical image bytes")
	keepPath := filepath.Join(dir, "a.jpg")
	dupPath := filepath.Join(dir, "a-backup.jpg")
	uniquePath := filepath.Join(dir, "z.jpg")
	for path, content := range map[string][]byte{
		keepPath:   same,
		dupPath:    same,
		uniquePath: []byte("different bytes"),
	} {
		if err := os.WriteFile(path, content, 0644); err != nil {
			t.Fatalf(err.Error())
		}
	}

	// equal mtimes force the filename-length tie-break
	mtime := time.Date(2022, time.April, 4, 12, 0, 0, 0, time.UTC)
	for _, path := range []string{keepPath, dupPath, uniquePath} {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf(err.Error())
		}
	}

	var messages []string
	r := newTestRunner([]string{dir}, true, 0, func(msg string) {
		messages = append(messages, msg)
	})

	touched, err := r.Run()
	if err != nil {
		t.Fatalf(err.Error())
	}

	holding := pkg.HoldingDir(dir)
	if len(touched) != 1 || touched[0] != holding {
		t.Fatalf("Expected touched dirs [%v] but got %v instead", holding, touched)
	}

	if _, err := os.Stat(keepPath); err != nil {
		t.Errorf("Expected the kept file to stay in place: %v", err)
	}
	if _, err := os.Stat(uniquePath); err != nil {
		t.Errorf("Expected the unique file to stay in place: %v", err)
	}
	if _, err := os.Stat(dupPath); err == nil {
		t.Errorf("Expected the duplicate to be moved away")
	}
	if _, err := os.Stat(filepath.Join(holding, "a-backup.jpg")); err != nil {
		t.Errorf("Expected the duplicate inside the holding directory: %v", err)
	}

	var sawSummary bool
	for _, m := range messages {
		if strings.Contains(m, "duplicate groups") {
			sawSummary = true
		}
	}
	if !sawSummary {
		t.Errorf("Expected a progress message about duplicate groups but got %v", messages)
	}
}

func TestRunExactModeNoDuplicates(t *testing.T) {
	dir := t.TempDir()
	for i, content := range []string{"one", "two", "three"} {
		path := filepath.Join(dir, string(rune('a'+i))+".jpg")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf(err.Error())
		}
	}

	r := newTestRunner([]string{dir}, true, 0, nil)

	touched, err := r.Run()
	if err != nil {
		t.Fatalf(err.Error())
	}

	if len(touched) != 0 {
		t.Errorf("Expected no touched dirs but got %v instead", touched)
	}
}

func TestRunDryRun(t *testing.T) {
	dir := t.TempDir()

	same := []byte("identical image bytes")
	for _, name := range []string{"a.jpg", "a-backup.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), same, 0644); err != nil {
			t.Fatalf(err.Error())
		}
	}

	fp := fingerprint.New(zap.NewNop(), metrics.NoMetrics(), nil)
	r := NewRunner(zap.NewNop(), metrics.NoMetrics(), fp,
		[]string{dir}, true, 0, true, 2, nil)

	touched, err := r.Run()
	if err != nil {
		t.Fatalf(err.Error())
	}

	if len(touched) != 0 {
		t.Errorf("Expected no touched dirs in dry-run but got %v instead", touched)
	}
	if _, err := os.Stat(filepath.Join(dir, "a-backup.jpg")); err != nil {
		t.Errorf("Expected the duplicate to stay in place in dry-run: %v", err)
	}
}
