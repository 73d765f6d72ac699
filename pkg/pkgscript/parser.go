// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package pkgscript

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrSyntax is the base error for malformed scripts.
var ErrSyntax = errors.New("pkgscript syntax error")

// Parse tokenizes source on Unicode whitespace and assembles the instruction
// list. Paths are uninterpreted non-whitespace runs.
func Parse(source string) (*Script, error) {
	p := parser{tokens: strings.Fields(source)}
	script := &Script{}
	for !p.eof() {
		switch keyword := p.next(); keyword {
		case "PACKAGE":
			instr, err := p.parsePackage()
			if err != nil {
				return nil, err
			}
			script.Body = append(script.Body, instr)
		case "PUBLISH":
			instr, err := p.parsePublish()
			if err != nil {
				return nil, err
			}
			script.Body = append(script.Body, instr)
		default:
			return nil, errors.Wrapf(ErrSyntax, "invalid instruction: %s", keyword)
		}
	}
	return script, nil
}

type parser struct {
	pos    int
	tokens []string
}

func (p *parser) eof() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) next() string {
	tok := p.tokens[p.pos]
	p.pos++
	return tok
}

func (p *parser) path(instr string) (string, error) {
	if p.eof() {
		return "", errors.Wrapf(ErrSyntax, "%s: missing path argument", instr)
	}
	return p.next(), nil
}

func (p *parser) parsePackage() (Instruction, error) {
	source, err := p.path("PACKAGE")
	if err != nil {
		return nil, err
	}
	instr := PackageInstruction{Source: source}
	if !p.eof() && p.tokens[p.pos] == "AS" {
		p.pos++
		if instr.Target, err = p.path("PACKAGE ... AS"); err != nil {
			return nil, err
		}
	}
	return instr, nil
}

func (p *parser) parsePublish() (Instruction, error) {
	target, err := p.path("PUBLISH")
	if err != nil {
		return nil, err
	}
	return PublishInstruction{Target: target}, nil
}
