// doc.go - package overview.

// Package opl9 converts OPL2/OPL3 register-write captures into VGM 1.51
// streams, transcodes HMP music files into Standard MIDI files, and
// packages the results (optionally with a PCM preview and cover art) into
// the FM9 container format.
//
// The package is a library: it has no main function and does not parse
// flags. Apart from OpenInputFile, a small file-reading helper, it works on
// byte slices in memory. cmd/opl9conv is a thin example driver.
package opl9
