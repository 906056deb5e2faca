// Copyright © 2018 The ELPS authors

package token

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeString(t *testing.T) {
	used := make(map[string]bool)
	for tok := Type(0); tok < numTokenTypes; tok++ {
		switch tok {
		case keywordStart, keywordEnd, preprocStart, preprocEnd:
			continue
		}
		str := tok.String()
		if str == "" {
			t.Errorf("token type %x has empty string value", tok)
			continue
		}
		if used[str] {
			t.Errorf("token type string used twice: %v", tok)
		}
		used[str] = true
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		text string
		typ  Type
	}{
		{"Если", IF},
		{"ЕСЛИ", IF},
		{"если", IF},
		{"If", IF},
		{"КонецПроцедуры", END_PROCEDURE},
		{"endprocedure", END_PROCEDURE},
		{"ВызватьИсключение", RAISE},
		{"NULL", NULL},
		{"Из", IN},
		{"Каждого", IDENT},
		{"Сообщить", IDENT},
		{"_x1", IDENT},
	}
	for i, test := range tests {
		t.Run(fmt.Sprintf("test%d", i), func(t *testing.T) {
			assert.Equal(t, test.typ, Lookup(test.text), test.text)
		})
	}
}

func TestLookupPreproc(t *testing.T) {
	typ, ok := LookupPreproc("КонецОбласти")
	assert.True(t, ok)
	assert.Equal(t, AREA_END, typ)
	typ, ok = LookupPreproc("EndIf")
	assert.True(t, ok)
	assert.Equal(t, DEF_ENDIF, typ)
	_, ok = LookupPreproc("Прагма")
	assert.False(t, ok)
	assert.True(t, DEF_IF.IsPreproc())
	assert.False(t, IF.IsPreproc())
	assert.True(t, IF.IsKeyword())
	assert.False(t, IDENT.IsKeyword())
}

func TestFold(t *testing.T) {
	assert.Equal(t, Fold("ОбщийМодуль.Мод.Функ"), Fold("ОБЩИЙМОДУЛЬ.МОД.ФУНК"))
	assert.True(t, EqualFold("CommonModule.Mod.Func", "COMMONMODULE.MOD.FUNC"))
	assert.False(t, EqualFold("Мод", "Мода"))
	assert.True(t, IsEachWord("КАЖДОГО"))
	assert.True(t, IsForEachWord("ДляКаждого"))
	assert.False(t, IsForEachWord("Для"))
}

func TestFoldConcurrent(t *testing.T) {
	words := []string{"ОбщийМодуль", "Процедура", "CommonModule", "КонецЕсли"}
	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				for _, w := range words {
					results[i] = append(results[i], Fold(w))
				}
			}
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.Len(t, results[i], 200*len(words))
		for n, folded := range results[i] {
			assert.Equal(t, strings.ToLower(words[n%len(words)]), folded)
		}
	}
}

func TestLocationError(t *testing.T) {
	inner := errors.New("boom")
	err := &LocationError{Err: inner, Source: &Location{File: "m.bsl", Line: 3, Col: 7}}
	assert.Equal(t, "m.bsl:3:7: boom", err.Error())
	assert.ErrorIs(t, err, inner)
	var loc *Location
	assert.Equal(t, "<unknown>", loc.String())
}
