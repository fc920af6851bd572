// main.go - opl9conv, a thin example driver over package opl9.
//
// This intentionally does not implement bank-detection heuristics, full
// argument grammars, or interactive prompts; those are an external
// collaborator's concern per the core library's scope. It wires the two
// operations package opl9 exposes end to end: HMP-to-MIDI transcoding and
// VGM/VGZ/FM9 pass-through re-wrapping with GD3 overrides.
//
// Grounded on cmd/ie32to64's flag-based single-purpose tool shape from the
// teacher repository.
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/zaynoct/opl9conv"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage:
  opl9conv hmp2mid <in.hmp> <out.mid>
  opl9conv vgmpass  [-title T] [-author A] [-game G] [-system S] <in.vgm|vgz|fm9> <out.vgz>
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "hmp2mid":
		runHMP2Mid(os.Args[2:])
	case "vgmpass":
		runVGMPass(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func runHMP2Mid(args []string) {
	fs := flag.NewFlagSet("hmp2mid", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		usage()
		os.Exit(1)
	}
	in, out := fs.Arg(0), fs.Arg(1)

	data, err := opl9.OpenInputFile(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opl9conv: %v\n", err)
		os.Exit(1)
	}
	smf, err := opl9.TranscodeHMP(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opl9conv: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(out, smf, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "opl9conv: %v\n", err)
		os.Exit(1)
	}
	report("wrote %s (%d bytes)\n", out, len(smf))
}

func runVGMPass(args []string) {
	fs := flag.NewFlagSet("vgmpass", flag.ExitOnError)
	title := fs.String("title", "", "GD3 title override")
	author := fs.String("author", "", "GD3 author override")
	game := fs.String("game", "", "GD3 game override")
	system := fs.String("system", "", "GD3 system override")
	fs.Parse(args)
	if fs.NArg() != 2 {
		usage()
		os.Exit(1)
	}
	in, out := fs.Arg(0), fs.Arg(1)

	data, err := opl9.OpenInputFile(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opl9conv: %v\n", err)
		os.Exit(1)
	}

	overrides := &opl9.GD3Tag{TitleEN: *title, AuthorEN: *author, GameEN: *game, SystemEN: *system}
	vgm, err := opl9.PrepareVGMPassthrough(data, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opl9conv: %v\n", err)
		os.Exit(1)
	}
	vgz, err := opl9.GzipWrap(vgm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opl9conv: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(out, vgz, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "opl9conv: %v\n", err)
		os.Exit(1)
	}
	report("wrote %s (%d bytes)\n", out, len(vgz))
}

// report prints progress; when stdout is a terminal the line gets a "-> "
// prefix, and when it isn't (piped/redirected) the plain line is written.
func report(format string, args ...any) {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Printf("-> "+format, args...)
		return
	}
	fmt.Printf(format, args...)
}
