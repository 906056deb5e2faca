// Copyright © 2024 The ELPS authors

package parser

import (
	"errors"
	"testing"

	"github.com/luthersystems/bsl/parser/lexer"
	"github.com/luthersystems/bsl/parser/rdparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tree, diags, err := Parse("test", "Процедура П()\n\tФ();\nКонецПроцедуры")
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, "test", tree.Name)
	assert.Equal(t, `(module (func "П" (params) (block (callstmt (call "Ф")))))`, tree.Format(tree.Root))
}

func TestParse_Diagnostics(t *testing.T) {
	tree, diags, err := Parse("test", "Ф($);")
	require.NoError(t, err)
	require.NotNil(t, tree)
	require.Len(t, diags, 1)
	assert.Equal(t, "test:1:3: unexpected character '$'", diags[0].Error())
}

func TestParse_Strict(t *testing.T) {
	tree, _, err := Parse("test", "Ф($);", lexer.Strict())
	assert.Nil(t, tree)
	var perr *rdparser.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "scan-error", perr.Condition)
}
