package graphql

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"

	"github.com/99designs/gqlgen/graphql"
	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/events"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

//go:embed schema.graphqls
var schemaSource string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSource})

// Config - параметры NewExecutableSchema
type Config struct {
	Resolvers ResolverRoot
	Logger    *slog.Logger
}

type fieldFunc func(ctx context.Context, obj any, args arguments) (any, error)

type streamFunc func(ctx context.Context, args arguments) (<-chan events.Event, error)

// executableSchema исполняет разобранную и проверенную операцию по таблице
// резолверов. Поля без резолвера читаются из JSON-представления объекта.
// Complexity не реализован, лимит сложности не подключается.
type executableSchema struct {
	graphql.ExecutableSchema

	schema  *ast.Schema
	fields  map[string]map[string]fieldFunc
	streams map[string]streamFunc
	log     *slog.Logger
}

// NewExecutableSchema создает исполняемую схему для handler.New
func NewExecutableSchema(cfg Config) graphql.ExecutableSchema {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	e := &executableSchema{
		schema:  parsedSchema,
		fields:  bindFields(cfg.Resolvers),
		streams: bindStreams(cfg.Resolvers.Subscription()),
		log:     log,
	}
	for typeName, fields := range e.introspectionFields() {
		if e.fields[typeName] == nil {
			e.fields[typeName] = map[string]fieldFunc{}
		}
		for name, fn := range fields {
			e.fields[typeName][name] = fn
		}
	}
	return e
}

func (e *executableSchema) Schema() *ast.Schema {
	return e.schema
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)
	x := &execution{e: e, vars: opCtx.Variables}
	if opCtx.Doc != nil {
		x.fragments = opCtx.Doc.Fragments
	}

	op := opCtx.Operation
	switch op.Operation {
	case ast.Subscription:
		return x.subscribe(ctx, op.SelectionSet)
	case ast.Mutation:
		return once(func(ctx context.Context) *graphql.Response {
			return x.response(x.object(ctx, "Mutation", nil, op.SelectionSet, nil))
		})
	default:
		return once(func(ctx context.Context) *graphql.Response {
			return x.response(x.object(ctx, "Query", nil, op.SelectionSet, nil))
		})
	}
}

// once отдает ответ один раз, следующий вызов означает конец потока.
func once(f func(ctx context.Context) *graphql.Response) graphql.ResponseHandler {
	done := false
	return func(ctx context.Context) *graphql.Response {
		if done {
			return nil
		}
		done = true
		return f(ctx)
	}
}

type execution struct {
	e         *executableSchema
	vars      map[string]any
	fragments ast.FragmentDefinitionList
	errs      gqlerror.List
}

func (x *execution) fork() *execution {
	return &execution{e: x.e, vars: x.vars, fragments: x.fragments}
}

func (x *execution) response(data any) *graphql.Response {
	b, err := json.Marshal(data)
	if err != nil {
		x.e.log.Error("graphql response encoding failed", "error", err)
		return &graphql.Response{Errors: gqlerror.List{gqlerror.Errorf("internal error")}}
	}
	return &graphql.Response{Data: b, Errors: x.errs}
}

func (x *execution) subscribe(ctx context.Context, sel ast.SelectionSet) graphql.ResponseHandler {
	fields := x.collect("Subscription", sel, nil)
	if len(fields) != 1 {
		return once(func(context.Context) *graphql.Response {
			return &graphql.Response{Errors: gqlerror.List{gqlerror.Errorf("subscription must select exactly one field")}}
		})
	}
	f := fields[0]
	path := ast.Path{ast.PathName(keyOf(f))}

	stream, ok := x.e.streams[f.Name]
	if !ok {
		return once(func(context.Context) *graphql.Response {
			return &graphql.Response{Errors: gqlerror.List{gqlerror.Errorf("unknown subscription %s", f.Name)}}
		})
	}
	ch, err := stream(ctx, f.ArgumentMap(x.vars))
	if err != nil {
		x.fail(path, err)
		return once(func(context.Context) *graphql.Response {
			return &graphql.Response{Errors: x.errs}
		})
	}

	return func(ctx context.Context) *graphql.Response {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			step := x.fork()
			value := step.complete(ctx, f.Definition.Type, ev.Payload, f.SelectionSet, path)
			return step.response(object{{key: keyOf(f), value: value}})
		}
	}
}

// object выполняет набор полей над одним значением.
func (x *execution) object(ctx context.Context, typeName string, obj any, sel ast.SelectionSet, path ast.Path) object {
	resolvers := x.e.fields[typeName]
	var props map[string]json.RawMessage

	fields := x.collect(typeName, sel, nil)
	out := make(object, 0, len(fields))
	for _, f := range fields {
		key := keyOf(f)
		if f.Name == "__typename" {
			out = append(out, entry{key: key, value: typeName})
			continue
		}
		if f.Definition == nil {
			continue
		}
		fpath := append(slices.Clone(path), ast.PathName(key))

		var value any
		var err error
		switch fn, ok := resolvers[f.Name]; {
		case ok:
			value, err = x.call(ctx, fn, obj, f)
		case strings.HasPrefix(typeName, "__"):
		default:
			if props == nil {
				props, err = properties(obj)
			}
			if raw, ok := props[f.Name]; ok && err == nil {
				value = raw
			}
		}
		if err != nil {
			x.fail(fpath, err)
			out = append(out, entry{key: key})
			continue
		}
		out = append(out, entry{key: key, value: x.complete(ctx, f.Definition.Type, value, f.SelectionSet, fpath)})
	}
	return out
}

func (x *execution) call(ctx context.Context, fn fieldFunc, obj any, f *ast.Field) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			x.e.log.Error("graphql resolver panicked", "field", f.Name, "panic", r)
			err = fmt.Errorf("resolver %s panicked", f.Name)
		}
	}()
	return fn(ctx, obj, f.ArgumentMap(x.vars))
}

// complete приводит значение к типу поля: списки обходятся поэлементно,
// объекты раскрываются вложенным набором полей, скаляры идут как есть.
func (x *execution) complete(ctx context.Context, t *ast.Type, value any, sel ast.SelectionSet, path ast.Path) any {
	if isNull(value) {
		if t.Elem != nil && t.NonNull {
			return []any{}
		}
		return nil
	}
	if t.Elem != nil {
		items, err := elements(value)
		if err != nil {
			x.fail(path, err)
			return nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = x.complete(ctx, t.Elem, item, sel, append(slices.Clone(path), ast.PathIndex(i)))
		}
		return out
	}
	if def := x.e.schema.Types[t.NamedType]; def != nil && def.Kind == ast.Object {
		return x.object(ctx, def.Name, value, sel, path)
	}
	return value
}

// collect раскрывает фрагменты и директивы @skip/@include. Поля с одним
// ключом сливаются в одно.
func (x *execution) collect(typeName string, sel ast.SelectionSet, out []*ast.Field) []*ast.Field {
	for _, s := range sel {
		switch s := s.(type) {
		case *ast.Field:
			if !x.included(s.Directives) {
				continue
			}
			key := keyOf(s)
			i := slices.IndexFunc(out, func(f *ast.Field) bool { return keyOf(f) == key })
			if i < 0 {
				out = append(out, s)
				continue
			}
			merged := *out[i]
			merged.SelectionSet = append(slices.Clone(out[i].SelectionSet), s.SelectionSet...)
			out[i] = &merged
		case *ast.InlineFragment:
			if !x.included(s.Directives) || (s.TypeCondition != "" && s.TypeCondition != typeName) {
				continue
			}
			out = x.collect(typeName, s.SelectionSet, out)
		case *ast.FragmentSpread:
			if !x.included(s.Directives) {
				continue
			}
			def := s.Definition
			if def == nil {
				def = x.fragments.ForName(s.Name)
			}
			if def == nil || def.TypeCondition != typeName {
				continue
			}
			out = x.collect(typeName, def.SelectionSet, out)
		}
	}
	return out
}

func (x *execution) included(dirs ast.DirectiveList) bool {
	for _, d := range dirs {
		if d.Definition == nil {
			continue
		}
		cond, _ := d.ArgumentMap(x.vars)["if"].(bool)
		switch d.Name {
		case "skip":
			if cond {
				return false
			}
		case "include":
			if !cond {
				return false
			}
		}
	}
	return true
}

// fail превращает ошибку резолвера в ошибку ответа. Код берется из вида
// apperr, ошибки без вида скрываются за "internal error".
func (x *execution) fail(path ast.Path, err error) {
	kind := apperr.KindOf(err)
	msg, code := err.Error(), string(kind)
	switch kind {
	case "":
		x.e.log.Error("graphql field failed", "path", path, "error", err)
		msg, code = "internal error", "INTERNAL"
	case apperr.KindStorage:
		x.e.log.Error("graphql field failed", "path", path, "error", err)
	}
	x.errs = append(x.errs, &gqlerror.Error{
		Message:    msg,
		Path:       path,
		Extensions: map[string]any{"code": code},
	})
}

func keyOf(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func properties(obj any) (map[string]json.RawMessage, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	props := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &props); err != nil {
		return nil, err
	}
	return props, nil
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	if raw, ok := v.(json.RawMessage); ok {
		return len(raw) == 0 || string(raw) == "null"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

func elements(value any) ([]any, error) {
	if raw, ok := value.(json.RawMessage); ok {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		out := make([]any, len(items))
		for i := range items {
			out[i] = items[i]
		}
		return out, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a list, got %T", value)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

type entry struct {
	key   string
	value any
}

// object - JSON-объект с порядком ключей как в запросе.
type object []entry

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
