package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"
)

var writeTxtarGolden = flag.Bool("write-txtar-golden", false, "If true, writes out golden files in txtar archives")

// Each archive in testdata is one run of the tool. Files under ref/ are
// written to a scratch directory ($WORK) that is passed as -ref; the other
// files hold expectations:
//
//	args    flags, one per line ($WORK is expanded); default "-ref $WORK/ref"
//	stdout  exact expected stdout
//	stderr  lines that must each appear somewhere in stderr
//	exit    expected exit status; default 0
func TestTxtarRun(t *testing.T) {
	txtarFiles, err := filepath.Glob("testdata/*.txtar")
	if err != nil {
		t.Fatalf("failed to find txtar files in testdata: %v", err)
	}
	if len(txtarFiles) == 0 {
		t.Skip("no txtar files found")
	}

	for _, txtarFile := range txtarFiles {
		t.Run(strings.TrimSuffix(filepath.Base(txtarFile), ".txtar"), func(t *testing.T) {
			runTxtarTest(t, txtarFile)
		})
	}
}

type txtarCase struct {
	args   []string
	stdout []byte
	stderr []string
	exit   int

	hasStdout bool
}

func runTxtarTest(t *testing.T, txtarFile string) {
	archive, err := txtar.ParseFile(txtarFile)
	if err != nil {
		t.Fatalf("failed to parse txtar file %s: %v", txtarFile, err)
	}

	work := t.TempDir()
	tc := txtarCase{args: []string{"-ref", "$WORK/ref"}}
	for _, file := range archive.Files {
		switch {
		case strings.HasPrefix(file.Name, "ref/"):
			path := filepath.Join(work, filepath.FromSlash(file.Name))
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(path, file.Data, 0o644); err != nil {
				t.Fatal(err)
			}
		case file.Name == "args":
			tc.args = nil
			for _, line := range strings.Split(string(file.Data), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					tc.args = append(tc.args, line)
				}
			}
		case file.Name == "stdout":
			tc.stdout = file.Data
			tc.hasStdout = true
		case file.Name == "stderr":
			for _, line := range strings.Split(string(file.Data), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					tc.stderr = append(tc.stderr, line)
				}
			}
		case file.Name == "exit":
			tc.exit, err = strconv.Atoi(strings.TrimSpace(string(file.Data)))
			if err != nil {
				t.Fatalf("bad exit file: %v", err)
			}
		default:
			t.Fatalf("unexpected file %q in %s", file.Name, txtarFile)
		}
	}
	for i, arg := range tc.args {
		tc.args[i] = strings.ReplaceAll(arg, "$WORK", work)
	}

	var stdout, stderr bytes.Buffer
	code := run(tc.args, &stdout, &stderr)
	t.Logf("stderr:\n%s", stderr.String())

	if code != tc.exit {
		t.Fatalf("run() exit = %d, want %d", code, tc.exit)
	}
	for _, want := range tc.stderr {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("stderr does not contain %q", want)
		}
	}
	if code != exitOK {
		if stdout.Len() != 0 {
			t.Errorf("failed run wrote to stdout:\n%s", stdout.String())
		}
		return
	}

	// A second run over the same tree must produce the same bytes.
	var again bytes.Buffer
	if code := run(tc.args, &again, &bytes.Buffer{}); code != exitOK {
		t.Fatalf("second run() exit = %d", code)
	}
	if diff := cmp.Diff(stdout.String(), again.String()); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}

	got := stdout.String()
	if *writeTxtarGolden {
		updated := &txtar.Archive{Comment: archive.Comment}
		found := false
		for _, file := range archive.Files {
			if file.Name == "stdout" {
				file.Data = []byte(got)
				found = true
			}
			updated.Files = append(updated.Files, file)
		}
		if !found {
			updated.Files = append(updated.Files, txtar.File{Name: "stdout", Data: []byte(got)})
		}
		if err := os.WriteFile(txtarFile, txtar.Format(updated), 0o644); err != nil {
			t.Errorf("failed to write updated txtar file %s: %v", txtarFile, err)
		} else {
			t.Logf("wrote updated txtar file: %s", txtarFile)
		}
		return
	}

	if !tc.hasStdout {
		t.Logf("no stdout golden found, generated:\n%s", got)
		return
	}
	if diff := cmp.Diff(string(tc.stdout), got); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}
}
