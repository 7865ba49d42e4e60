package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/trig-gallery/services/gallery/internal/history"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, &out, &errOut)
	return out.String(), err
}

func TestRun_AddShowCompactClear(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	for _, r := range [][2]string{{"100", "200"}, {"230", "260"}} {
		if _, err := runCmd(t, "-db", db, "add", r[0], r[1]); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	out, err := runCmd(t, "-db", db, "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "100 - 200 (101 photos)") || !strings.Contains(out, "[gap: 29]") {
		t.Fatalf("unexpected show output:\n%s", out)
	}

	out, err = runCmd(t, "-db", db, "compact")
	if err != nil || strings.TrimSpace(out) != "compacted 2 ranges into 1" {
		t.Fatalf("unexpected compact output %q, %v", out, err)
	}

	out, err = runCmd(t, "-db", db, "-json", "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var st history.Stats
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode stats %q: %v", out, err)
	}
	if st.RangeCount != 1 || st.TotalPhotosViewed != 161 {
		t.Fatalf("unexpected stats %+v", st)
	}

	if _, err := runCmd(t, "-db", db, "clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, _ = runCmd(t, "-db", db, "stats")
	if !strings.Contains(out, "ranges: 0") {
		t.Fatalf("expected empty history, got %q", out)
	}
}

func TestRun_VisitorKeysAreSeparate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	if _, err := runCmd(t, "-db", db, "-visitor", "u1", "add", "1", "5"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "-db", db, "add", "7", "9"); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "-db", db, "keys")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	for _, want := range []string{history.DefaultKey, history.KeyFor("u1")} {
		if !strings.Contains(out, want+"\n") {
			t.Fatalf("missing key %q in %q", want, out)
		}
	}
}

func TestRun_DirBackend(t *testing.T) {
	dir := t.TempDir()
	if _, err := runCmd(t, "-dir", dir, "add", "10", "20"); err != nil {
		t.Fatal(err)
	}
	out, err := runCmd(t, "-dir", dir, "-json", "show")
	if err != nil {
		t.Fatal(err)
	}
	var d history.Diagnostics
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatal(err)
	}
	if len(d.Ranges) != 1 || d.Ranges[0].Min != 10 || d.Ranges[0].Span != 11 {
		t.Fatalf("unexpected diagnostics %+v", d)
	}
	if _, err := runCmd(t, "-dir", dir, "keys"); err == nil {
		t.Fatal("keys should require the sqlite backend")
	}
}

func TestRun_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	t.Setenv("HISTORY_REDIS_URL", "")
	t.Setenv("HISTORY_DATABASE_URL", "")
	t.Setenv("HISTORY_SQLITE_PATH", "")
	t.Setenv("HISTORY_DIR", "")

	cases := [][]string{
		{"-db", db},
		{"-db", db, "explode"},
		{"-db", db, "add", "1"},
		{"-db", db, "add", "x", "2"},
		{"show"},
	}
	for _, args := range cases {
		if _, err := runCmd(t, args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}
