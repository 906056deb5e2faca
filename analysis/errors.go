// Copyright © 2024 The ELPS authors

package analysis

import (
	"fmt"

	"github.com/luthersystems/bsl/workspace"
)

// ModuleError reports a module that could not be preprocessed or parsed for
// a variant.  Err is a *preproc.DirectiveError, *rdparser.ParseError or
// *token.LocationError.
type ModuleError struct {
	Kind    workspace.Kind
	Name    string
	Variant Variant
	Err     error
}

func (err *ModuleError) Error() string {
	return fmt.Sprintf("%v.%s (%v): %v", err.Kind, err.Name, err.Variant, err.Err)
}

func (err *ModuleError) Unwrap() error {
	return err.Err
}

func moduleError(m *workspace.Module, v Variant, err error) *ModuleError {
	return &ModuleError{
		Kind:    m.Kind,
		Name:    m.Name,
		Variant: v,
		Err:     err,
	}
}
