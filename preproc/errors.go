// Copyright © 2024 The ELPS authors

package preproc

import (
	"errors"
	"fmt"

	"github.com/luthersystems/bsl/parser/token"
)

// ErrMalformedDirective is matched by every *DirectiveError.
var ErrMalformedDirective = errors.New("malformed preprocessor directive")

// DirectiveError reports an unbalanced or unrecognized preprocessor
// instruction.
type DirectiveError struct {
	Directive string
	Msg       string
	Source    *token.Location
}

func directiveErrorf(tok *token.Token, format string, v ...interface{}) *DirectiveError {
	return &DirectiveError{
		Directive: tok.Text,
		Msg:       fmt.Sprintf(format, v...),
		Source:    tok.Source,
	}
}

func (err *DirectiveError) Error() string {
	return fmt.Sprintf("%v: %v: %s", err.Source, ErrMalformedDirective, err.Msg)
}

func (err *DirectiveError) Unwrap() error {
	return ErrMalformedDirective
}
