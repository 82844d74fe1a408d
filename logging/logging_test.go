package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingWriter_RotatesPastMaxSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	w, err := NewRotatingWriter(path, 16, 2)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer w.Close()

	for _, line := range []string{"first line here!\n", "second line here\n", "third\n"} {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	backup1, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("expected first backup: %v", err)
	}
	if !strings.Contains(string(backup1), "second") {
		t.Fatalf("unexpected .1 contents %q", backup1)
	}
	backup2, err := os.ReadFile(path + ".2")
	if err != nil {
		t.Fatalf("expected second backup: %v", err)
	}
	if !strings.Contains(string(backup2), "first") {
		t.Fatalf("unexpected .2 contents %q", backup2)
	}

	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read current: %v", err)
	}
	if string(current) != "third\n" {
		t.Fatalf("unexpected current contents %q", current)
	}
}
