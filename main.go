//go:build !js

package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("bech32-vectors", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flagRef := flags.String("ref", "", "directory to import the reference module from (default: the manifest path next to this tool)")
	flagLogLevel := flags.String("log-level", "warn", "diagnostics level on stderr: debug, info, warn, error")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: bech32-vectors [-ref dir] [-log-level level]")
		fmt.Fprintln(stderr, "Prints the reference bech32 test vectors as one JSON object on stdout.")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	log, err := newLogger(stderr, *flagLogLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer func() { _ = log.Sync() }()
	if flags.NArg() > 0 {
		log.Warn("ignoring arguments", zap.Strings("args", flags.Args()))
	}

	doc, err := extractDocument(MustLoadManifest(), *flagRef, log)
	if err != nil {
		log.Error("extraction failed", zap.String("class", errorClass(err)), zap.Error(err))
		return exitFailure
	}
	if _, err := stdout.Write(doc); err != nil {
		log.Error("write output", zap.Error(err))
		return exitFailure
	}
	return exitOK
}

// extractDocument imports the reference module and renders the vectors the
// manifest names. Nothing is returned unless every step succeeded.
func extractDocument(m Manifest, refOverride string, log *zap.Logger) ([]byte, error) {
	base := ""
	if refOverride == "" {
		var err error
		if base, err = toolDir(); err != nil {
			return nil, &ModuleError{Name: m.Reference.Module, cause: err}
		}
	}
	dir, err := referenceDir(m, base, refOverride)
	if err != nil {
		return nil, &ModuleError{Name: m.Reference.Module, cause: err}
	}
	if fi, err := os.Stat(dir); err != nil {
		return nil, &ModuleError{Name: m.Reference.Module, Path: dir, cause: err}
	} else if !fi.IsDir() {
		return nil, &ModuleError{Name: m.Reference.Module, Path: dir, cause: fmt.Errorf("not a directory")}
	}
	log.Debug("reference directory", zap.String("dir", dir), zap.String("module", m.Reference.Module))

	loader := NewLoader(Finder{SearchPath: []string{dir}}, log)
	mod, err := loader.Import(m.Reference.Module)
	if err != nil {
		return nil, err
	}
	res, err := Extract(mod, m.Vectors, log)
	if err != nil {
		return nil, err
	}
	doc, err := encodeDocument(res)
	if err != nil {
		return nil, err
	}
	log.Debug("rendered document", zap.Int("bytes", len(doc)), zap.Int("vectors", len(res.Vectors)))
	return doc, nil
}
