// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

// Package pkgscript parses the two-instruction install script language.
package pkgscript

import "fmt"

// Instruction is a single script instruction.
type Instruction interface {
	fmt.Stringer
	isInstruction()
}

// PackageInstruction stages a file from the fetched sources. Target is the
// published basename override; empty means the source's basename.
type PackageInstruction struct {
	Source string
	Target string
}

func (i PackageInstruction) isInstruction() {}

func (i PackageInstruction) String() string {
	if i.Target != "" {
		return fmt.Sprintf("PACKAGE '%s' AS '%s'", i.Source, i.Target)
	}
	return fmt.Sprintf("PACKAGE '%s'", i.Source)
}

// PublishInstruction exposes a previously packaged file under bin/.
type PublishInstruction struct {
	Target string
}

func (i PublishInstruction) isInstruction() {}

func (i PublishInstruction) String() string {
	return fmt.Sprintf("PUBLISH '%s'", i.Target)
}

// Script is an ordered list of instructions.
type Script struct {
	Body []Instruction
}
