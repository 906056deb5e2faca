// Copyright © 2024 The ELPS authors

package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/luthersystems/bsl/ast"
	"github.com/luthersystems/bsl/astutil"
	"github.com/luthersystems/bsl/bsltest"
	"github.com/luthersystems/bsl/parser/rdparser"
	"github.com/luthersystems/bsl/preproc"
	"github.com/luthersystems/bsl/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func common(name, text string) *workspace.Module {
	return &workspace.Module{Kind: workspace.CommonModule, Name: name, Text: text}
}

func form(name, text string) *workspace.Module {
	return &workspace.Module{Kind: workspace.FormManaged, Name: name, Text: text, Managed: true}
}

func ordinaryForm(name, text string) *workspace.Module {
	return &workspace.Module{Kind: workspace.FormOrdinary, Name: name, Text: text}
}

func run(t *testing.T, opts *Options, mods ...*workspace.Module) *Context {
	t.Helper()
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Logger == nil {
		opts.Logger = bsltest.Slog(t)
	}
	c, err := Run(context.Background(), workspace.Modules(mods), opts)
	require.NoError(t, err)
	for _, r := range c.Results() {
		for _, u := range r.Units {
			require.NoError(t, u.Tree.Validate())
		}
	}
	return c
}

// stmtOf returns the statement holding the call of site.
func stmtOf(site *CallSite) (*ast.Tree, ast.NodeID) {
	tree := site.Unit.Tree
	return tree, tree.Parent(site.Node)
}

func TestRewriteEponymous(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipRewrite = true
	c := run(t, opts,
		common("Foo", "Процедура Foo() Экспорт\nКонецПроцедуры"),
		form("Док.Форма", "&НаКлиенте\nПроцедура П()\n\tFoo();\nКонецПроцедуры"),
	)
	r := c.Result(Managed)
	sites := r.Graph.Sites("FormManaged.Док.Форма.П", "CommonModule.Foo.Foo")
	require.Len(t, sites, 1)
	site := sites[0]
	tree := site.Unit.Tree
	call := site.Node
	owner := tree.At(call).Owner
	assert.Equal(t, ast.CallStmt, tree.At(owner.Parent).Kind)

	require.NoError(t, r.Rewrite(context.Background()))
	assert.True(t, site.Rewritten)
	assert.NotEqual(t, call, site.Node)
	assert.Equal(t, owner, tree.At(site.Node).Owner)
	assert.Equal(t, ast.Slot{Parent: site.Node, Index: 1}, tree.At(call).Owner)
	assert.Equal(t, `(callstmt (dotted (ident "Foo") (call "Foo")))`, tree.Format(owner.Parent))
	require.NoError(t, tree.Validate())

	done, n := r.Rewritten()
	assert.True(t, done)
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, r.Rewrite(context.Background()), ErrRewritten)
}

func TestRunRewrites(t *testing.T) {
	c := run(t, nil,
		common("Общий", `Функция Сумма(а, б) Экспорт
	Возврат а + б;
КонецФункции

Процедура Вызвать() Экспорт
	Сообщить(Сумма(1, 2));
КонецПроцедуры`),
		form("Док.Форма", `&НаКлиенте
Процедура П()
	Общий.Вызвать();
	Локальная();
КонецПроцедуры

&НаКлиенте
Процедура Локальная()
КонецПроцедуры`),
	)
	r := c.Result(Managed)
	assert.Equal(t, []string{"CommonModule.Общий.Сумма"}, r.Graph.Callees("CommonModule.Общий.Вызвать"))
	assert.Equal(t, []string{"CommonModule.Общий.Вызвать", "FormManaged.Док.Форма.Локальная"},
		r.Graph.Callees("FormManaged.Док.Форма.П"))

	// a bare call into a common module is qualified, a qualified call and a
	// call into a form stay as written
	site := r.Graph.Sites("CommonModule.Общий.Вызвать", "CommonModule.Общий.Сумма")[0]
	tree, _ := stmtOf(site)
	assert.True(t, site.Rewritten)
	assert.Equal(t, `(dotted (ident "Общий") (call "Сумма" (number "1") (number "2")))`, tree.Format(site.Node))

	site = r.Graph.Sites("FormManaged.Док.Форма.П", "CommonModule.Общий.Вызвать")[0]
	assert.True(t, site.Qualified)
	assert.False(t, site.Rewritten)
	site = r.Graph.Sites("FormManaged.Док.Форма.П", "FormManaged.Док.Форма.Локальная")[0]
	assert.False(t, site.Rewritten)
	assert.Equal(t, ast.Call, site.Unit.Tree.At(site.Node).Kind)

	done, n := r.Rewritten()
	assert.True(t, done)
	assert.Equal(t, 1, n)
}

func TestUnknownCallsDiscarded(t *testing.T) {
	c := run(t, nil,
		common("Общий", `Процедура Ф() Экспорт
	Сообщить("текст");
	НСтр("ru = 'x'");
	Неизвестный.Метод();
	Запрос = Новый Запрос;
	Запрос.Выполнить();
КонецПроцедуры`),
	)
	for _, r := range c.Results() {
		assert.Equal(t, 0, r.Graph.Len())
	}
}

func TestLocalRootDiscarded(t *testing.T) {
	c := run(t, nil,
		common("Мод", "Процедура Ф() Экспорт\nКонецПроцедуры"),
		common("Другой", `Перем МодульныйОбъект;

Процедура А(Параметр) Экспорт
	Мод = Новый Структура;
	Мод.Ф();
КонецПроцедуры

Процедура Б() Экспорт
	Мод.Ф();
	мод.ф();
	МодульныйОбъект.Ф();
КонецПроцедуры`),
	)
	r := c.Result(Managed)
	assert.Empty(t, r.Graph.Callees("CommonModule.Другой.А"))
	assert.Equal(t, []string{"CommonModule.Мод.Ф"}, r.Graph.Callees("CommonModule.Другой.Б"))
	assert.Len(t, r.Graph.Sites("CommonModule.Другой.Б", "CommonModule.Мод.Ф"), 2)
	assert.Equal(t, []string{"CommonModule.Другой.Б"}, r.Graph.Callers("CommonModule.Мод.Ф"))
}

func TestRegistryLookup(t *testing.T) {
	c := run(t, nil, common("Mod", "Процедура Func() Экспорт\nКонецПроцедуры"))
	reg := c.Result(Managed).Registry
	f, ok := reg.Lookup("COMMONMODULE.MOD.FUNC")
	require.True(t, ok)
	assert.Equal(t, "CommonModule.Mod.Func", f.Key)
	_, ok = reg.Get("commonmodule.mod.func")
	assert.False(t, ok)
	f, ok = reg.Get("CommonModule.Mod.Func")
	require.True(t, ok)
	assert.True(t, f.Export)
	assert.Equal(t, "Func", f.Name)
	assert.Len(t, reg.Module(workspace.CommonModule, "mod"), 1)
	_, ok = reg.Lookup("CommonModule.Mod.Other")
	assert.False(t, ok)
}

func TestCaseInsensitiveCalls(t *testing.T) {
	c := run(t, nil, common("Общий", `Процедура Первая() Экспорт
	ВТОРАЯ();
КонецПроцедуры

Процедура Вторая()
КонецПроцедуры

Процедура вторая()
КонецПроцедуры`))
	r := c.Result(Managed)
	assert.Equal(t, 2, r.Registry.Len())
	assert.Equal(t, []string{"CommonModule.Общий.Вторая"}, r.Graph.Callees("CommonModule.Общий.Первая"))
	site := r.Graph.Sites("CommonModule.Общий.Первая", "CommonModule.Общий.Вторая")[0]
	assert.Equal(t, `(dotted (ident "Общий") (call "ВТОРАЯ"))`, site.Unit.Tree.Format(site.Node))
}

func TestVariants(t *testing.T) {
	c := run(t, nil,
		common("Общий", `#Если ТолстыйКлиентОбычноеПриложение Тогда
Процедура Толстый() Экспорт
КонецПроцедуры
#Иначе
Процедура Тонкий() Экспорт
КонецПроцедуры
#КонецЕсли`),
		form("Упр.Форма", "Процедура У()\nКонецПроцедуры"),
		ordinaryForm("Обыч.Форма", "Процедура О()\nКонецПроцедуры"),
		&workspace.Module{Kind: workspace.ApplicationModule, Name: "МодульУправляемогоПриложения",
			Managed: true, Text: "Процедура ПриНачалеРаботыСистемы()\nКонецПроцедуры"},
		&workspace.Module{Kind: workspace.ApplicationModule, Name: "МодульОбычногоПриложения",
			Text: "Процедура ПриНачалеРаботыСистемы()\nКонецПроцедуры"},
	)
	keys := func(r *Result) []string {
		var keys []string
		for _, f := range r.Registry.Functions() {
			keys = append(keys, f.Key)
		}
		return keys
	}
	assert.Equal(t, []string{
		"CommonModule.Общий.Тонкий",
		"FormManaged.Упр.Форма.У",
		"ApplicationModule.МодульУправляемогоПриложения.ПриНачалеРаботыСистемы",
	}, keys(c.Result(Managed)))
	assert.Equal(t, []string{
		"CommonModule.Общий.Толстый",
		"FormOrdinary.Обыч.Форма.О",
		"ApplicationModule.МодульОбычногоПриложения.ПриНачалеРаботыСистемы",
	}, keys(c.Result(Ordinary)))
	assert.Len(t, c.Result(Managed).Units, 3)
	assert.Len(t, c.Result(Ordinary).Units, 3)
}

func TestDirectives(t *testing.T) {
	opts := DefaultOptions()
	opts.Directives = []string{"НаКлиенте"}
	c := run(t, opts, form("Док.Форма", `&НаКлиенте
Процедура Клиентская()
	Серверная();
КонецПроцедуры

&НаСервере
Процедура Серверная()
КонецПроцедуры

Процедура БезДирективы()
КонецПроцедуры`))
	r := c.Result(Managed)
	assert.Equal(t, 2, r.Registry.Len())
	_, ok := r.Registry.Lookup("FormManaged.Док.Форма.Серверная")
	assert.False(t, ok)
	f, ok := r.Registry.Lookup("FormManaged.Док.Форма.Клиентская")
	require.True(t, ok)
	assert.Equal(t, "&НаКлиенте", f.Directive)
	assert.Equal(t, 0, r.Graph.Len())
}

func TestGlobalModules(t *testing.T) {
	opts := DefaultOptions()
	opts.GlobalModules = []string{"Глобальный"}
	c := run(t, opts,
		common("Глобальный", "Процедура Открытая() Экспорт\nКонецПроцедуры\nПроцедура Закрытая()\nКонецПроцедуры"),
		form("Док.Форма", "Процедура П()\n\tОткрытая();\n\tЗакрытая();\nКонецПроцедуры"),
	)
	r := c.Result(Managed)
	assert.Equal(t, []string{"CommonModule.Глобальный.Открытая"}, r.Graph.Callees("FormManaged.Док.Форма.П"))
	site := r.Graph.Sites("FormManaged.Док.Форма.П", "CommonModule.Глобальный.Открытая")[0]
	assert.Equal(t, `(dotted (ident "Глобальный") (call "Открытая"))`, site.Unit.Tree.Format(site.Node))
}

func TestRetainedBlocks(t *testing.T) {
	opts := DefaultOptions()
	opts.Retain = []string{"Сервер"}
	c := run(t, opts, common("Общий", `#Если Сервер Тогда
Процедура НаСервере() Экспорт
	Вспомогательная();
КонецПроцедуры
#КонецЕсли

Процедура Вспомогательная()
КонецПроцедуры`))
	r := c.Result(Managed)
	assert.Equal(t, 2, r.Registry.Len())
	assert.Equal(t, []string{"CommonModule.Общий.Вспомогательная"}, r.Graph.Callees("CommonModule.Общий.НаСервере"))
}

func TestFailFast(t *testing.T) {
	mods := workspace.Modules{
		common("Хороший", "Процедура Ф()\nКонецПроцедуры"),
		common("Плохой", "Процедура Ф()\nЕсли а Тогда\nКонецПроцедуры"),
		form("Док.Форма", "#КонецЕсли"),
	}
	c, err := Run(context.Background(), mods, nil)
	require.Error(t, err)
	assert.Nil(t, c)
	var merr *ModuleError
	require.ErrorAs(t, err, &merr)

	// the zero Options stop at the first failure
	c, err = Run(context.Background(), mods, &Options{Parallel: 1})
	require.Error(t, err)
	assert.Nil(t, c)
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "Плохой", merr.Name)
	var multi interface{ Unwrap() []error }
	assert.False(t, errors.As(err, &multi))

	opts := DefaultOptions()
	opts.CollectErrors = true
	opts.Parallel = 1
	c, err = Run(context.Background(), mods, opts)
	require.Error(t, err)
	assert.Nil(t, c)
	var perr *rdparser.ParseError
	assert.ErrorAs(t, err, &perr)
	var derr *preproc.DirectiveError
	assert.ErrorAs(t, err, &derr)
	assert.ErrorIs(t, err, preproc.ErrMalformedDirective)

	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	// the common module fails for both variants
	require.Len(t, joined.Unwrap(), 3)
	merr = nil
	require.ErrorAs(t, joined.Unwrap()[0], &merr)
	assert.Equal(t, workspace.CommonModule, merr.Kind)
	assert.Equal(t, "Плохой", merr.Name)
	assert.Equal(t, Managed, merr.Variant)
	assert.Contains(t, merr.Error(), "CommonModule.Плохой (managed): ")
}

func TestStrict(t *testing.T) {
	mods := workspace.Modules{common("Общий", "Процедура Ф()\n\tа = 1 $;\nКонецПроцедуры")}
	c := run(t, nil, mods...)
	u := c.Result(Managed).Units[0]
	assert.Len(t, u.Diagnostics, 1)

	opts := DefaultOptions()
	opts.Strict = true
	_, err := Run(context.Background(), mods, opts)
	var perr *rdparser.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "scan-error", perr.Condition)
}

func TestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, workspace.Modules{common("Общий", "")}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParallelDeterministic(t *testing.T) {
	var mods workspace.Modules
	for i := 0; i < 20; i++ {
		mods = append(mods, common(fmt.Sprintf("М%d", i), fmt.Sprintf(
			"Процедура Ф() Экспорт\n\tФ%d();\n\tМ%d.Ф();\nКонецПроцедуры\nПроцедура Ф%d()\nКонецПроцедуры",
			i, (i+1)%20, i)))
	}
	export := func(parallel int) string {
		opts := DefaultOptions()
		opts.Parallel = parallel
		c := run(t, opts, mods...)
		var b bytes.Buffer
		require.NoError(t, WriteJSON(&b, c.Results()...))
		return b.String()
	}
	assert.Equal(t, export(1), export(8))
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	opts := DefaultOptions()
	opts.TracerProvider = tp
	run(t, opts, common("Общий", "Процедура Ф()\nКонецПроцедуры"))

	names := make(map[string]int)
	for _, s := range sr.Ended() {
		names[s.Name()]++
	}
	assert.Equal(t, 1, names["bsl.run"])
	assert.Equal(t, 1, names["bsl.load"])
	assert.Equal(t, 1, names["bsl.parse"])
	assert.Equal(t, 2, names["bsl.parse.unit"])
	assert.Equal(t, 2, names["bsl.registry"])
	assert.Equal(t, 2, names["bsl.calls"])
	assert.Equal(t, 2, names["bsl.rewrite"])
}

func TestTracingError(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	opts := DefaultOptions()
	opts.TracerProvider = tp
	_, err := Run(context.Background(), workspace.Modules{common("Общий", "КонецЕсли")}, opts)
	require.Error(t, err)
	var failed []string
	for _, s := range sr.Ended() {
		if s.Status().Description != "" {
			failed = append(failed, s.Name())
		}
	}
	assert.Contains(t, failed, "bsl.run")
	assert.Contains(t, failed, "bsl.parse.unit")
}

func TestCustomExtractor(t *testing.T) {
	opts := DefaultOptions()
	calls := 0
	opts.Extractor = CallExtractorFunc(func(tree *ast.Tree, body ast.NodeID) []astutil.Call {
		calls++
		return nil
	})
	c := run(t, opts, common("Общий", "Процедура Ф()\n\tГ();\nКонецПроцедуры\nПроцедура Г()\nКонецПроцедуры"))
	assert.Equal(t, 4, calls)
	assert.Equal(t, 0, c.Result(Managed).Graph.Len())
}

func TestWriteJSON(t *testing.T) {
	c := run(t, nil, common("Общий", "Функция Ф(а) Экспорт\n\tГ();\nКонецФункции\nПроцедура Г()\nКонецПроцедуры"))
	var b bytes.Buffer
	require.NoError(t, WriteJSON(&b, c.Result(Managed)))
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(b.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "managed", out[0]["variant"])
	assert.Len(t, out[0]["functions"], 2)
	calls := out[0]["calls"].([]interface{})
	require.Len(t, calls, 1)
	call := calls[0].(map[string]interface{})
	assert.Equal(t, "CommonModule.Общий.Ф", call["caller"])
	assert.Equal(t, "CommonModule.Общий.Г", call["callee"])
	site := call["sites"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, true, site["rewritten"])
	assert.EqualValues(t, 2, site["line"])
}

func TestWriteDOT(t *testing.T) {
	c := run(t, nil, common("Общий", "Функция Ф() Экспорт\n\tГ();\nКонецФункции\nПроцедура Г()\nКонецПроцедуры"))
	var b bytes.Buffer
	require.NoError(t, WriteDOT(&b, c.Result(Managed)))
	assert.Equal(t, `digraph "managed" {
	"CommonModule.Общий.Ф" [shape=ellipse];
	"CommonModule.Общий.Г" [shape=box];
	"CommonModule.Общий.Ф" -> "CommonModule.Общий.Г" [label=1];
}
`, b.String())
}

func TestParseVariant(t *testing.T) {
	v, ok := ParseVariant("ordinary")
	assert.True(t, ok)
	assert.Equal(t, Ordinary, v)
	assert.Equal(t, preproc.ThickClientOrdinaryApplication, v.Target())
	assert.Equal(t, preproc.ThinClient, Managed.Target())
	_, ok = ParseVariant("thick")
	assert.False(t, ok)
}
