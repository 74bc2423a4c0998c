package graphql

import (
	"context"
	"sort"
	"strings"

	"github.com/99designs/gqlgen/graphql"
	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/vektah/gqlparser/v2/ast"
)

// introType - тип для __Type: обертка NON_NULL/LIST или именованный тип.
type introType struct {
	kind   string
	def    *ast.Definition
	ofType *ast.Type
}

// introValue - аргумент или поле входного объекта для __InputValue.
type introValue struct {
	name         string
	description  string
	typ          *ast.Type
	defaultValue *ast.Value
	directives   ast.DirectiveList
}

func (e *executableSchema) named(name string) *introType {
	def := e.schema.Types[name]
	if def == nil {
		return nil
	}
	return &introType{kind: string(def.Kind), def: def}
}

func (e *executableSchema) wrap(t *ast.Type) *introType {
	switch {
	case t.NonNull:
		inner := *t
		inner.NonNull = false
		return &introType{kind: "NON_NULL", ofType: &inner}
	case t.Elem != nil:
		return &introType{kind: "LIST", ofType: t.Elem}
	}
	return e.named(t.NamedType)
}

func allowIntrospection(ctx context.Context) error {
	if graphql.GetOperationContext(ctx).DisableIntrospection {
		return apperr.Forbidden("introspection disabled")
	}
	return nil
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deprecation(dirs ast.DirectiveList) (bool, any) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return false, nil
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return true, arg.Value.Raw
	}
	return true, "No longer supported"
}

func argumentValues(args ast.ArgumentDefinitionList) []*introValue {
	out := make([]*introValue, 0, len(args))
	for _, a := range args {
		out = append(out, &introValue{
			name:         a.Name,
			description:  a.Description,
			typ:          a.Type,
			defaultValue: a.DefaultValue,
			directives:   a.Directives,
		})
	}
	return out
}

func (e *executableSchema) introspectionFields() map[string]map[string]fieldFunc {
	typ := func(obj any) *introType { return obj.(*introType) }
	field := func(obj any) *ast.FieldDefinition { return obj.(*ast.FieldDefinition) }
	value := func(obj any) *introValue { return obj.(*introValue) }
	enum := func(obj any) *ast.EnumValueDefinition { return obj.(*ast.EnumValueDefinition) }
	directive := func(obj any) *ast.DirectiveDefinition { return obj.(*ast.DirectiveDefinition) }

	root := func(def *ast.Definition) any {
		if def == nil {
			return nil
		}
		return e.named(def.Name)
	}

	return map[string]map[string]fieldFunc{
		"Query": {
			"__schema": func(ctx context.Context, _ any, _ arguments) (any, error) {
				if err := allowIntrospection(ctx); err != nil {
					return nil, err
				}
				return e.schema, nil
			},
			"__type": func(ctx context.Context, _ any, a arguments) (any, error) {
				if err := allowIntrospection(ctx); err != nil {
					return nil, err
				}
				return e.named(a.str("name")), nil
			},
		},
		"__Schema": {
			"types": func(context.Context, any, arguments) (any, error) {
				names := make([]string, 0, len(e.schema.Types))
				for name := range e.schema.Types {
					names = append(names, name)
				}
				sort.Strings(names)
				out := make([]*introType, 0, len(names))
				for _, name := range names {
					out = append(out, e.named(name))
				}
				return out, nil
			},
			"queryType": func(context.Context, any, arguments) (any, error) {
				return root(e.schema.Query), nil
			},
			"mutationType": func(context.Context, any, arguments) (any, error) {
				return root(e.schema.Mutation), nil
			},
			"subscriptionType": func(context.Context, any, arguments) (any, error) {
				return root(e.schema.Subscription), nil
			},
			"directives": func(context.Context, any, arguments) (any, error) {
				names := make([]string, 0, len(e.schema.Directives))
				for name := range e.schema.Directives {
					names = append(names, name)
				}
				sort.Strings(names)
				out := make([]*ast.DirectiveDefinition, 0, len(names))
				for _, name := range names {
					out = append(out, e.schema.Directives[name])
				}
				return out, nil
			},
		},
		"__Type": {
			"kind": func(_ context.Context, obj any, _ arguments) (any, error) {
				return typ(obj).kind, nil
			},
			"name": func(_ context.Context, obj any, _ arguments) (any, error) {
				if t := typ(obj); t.def != nil {
					return t.def.Name, nil
				}
				return nil, nil
			},
			"description": func(_ context.Context, obj any, _ arguments) (any, error) {
				if t := typ(obj); t.def != nil {
					return optional(t.def.Description), nil
				}
				return nil, nil
			},
			"fields": func(_ context.Context, obj any, _ arguments) (any, error) {
				t := typ(obj)
				if t.def == nil || (t.def.Kind != ast.Object && t.def.Kind != ast.Interface) {
					return nil, nil
				}
				out := []*ast.FieldDefinition{}
				for _, f := range t.def.Fields {
					if !strings.HasPrefix(f.Name, "__") {
						out = append(out, f)
					}
				}
				return out, nil
			},
			"interfaces": func(_ context.Context, obj any, _ arguments) (any, error) {
				t := typ(obj)
				if t.def == nil || (t.def.Kind != ast.Object && t.def.Kind != ast.Interface) {
					return nil, nil
				}
				out := []*introType{}
				for _, name := range t.def.Interfaces {
					out = append(out, e.named(name))
				}
				return out, nil
			},
			"possibleTypes": func(_ context.Context, obj any, _ arguments) (any, error) {
				t := typ(obj)
				if t.def == nil || (t.def.Kind != ast.Interface && t.def.Kind != ast.Union) {
					return nil, nil
				}
				out := []*introType{}
				for _, def := range e.schema.GetPossibleTypes(t.def) {
					out = append(out, e.named(def.Name))
				}
				return out, nil
			},
			"enumValues": func(_ context.Context, obj any, _ arguments) (any, error) {
				t := typ(obj)
				if t.def == nil || t.def.Kind != ast.Enum {
					return nil, nil
				}
				return []*ast.EnumValueDefinition(t.def.EnumValues), nil
			},
			"inputFields": func(_ context.Context, obj any, _ arguments) (any, error) {
				t := typ(obj)
				if t.def == nil || t.def.Kind != ast.InputObject {
					return nil, nil
				}
				out := make([]*introValue, 0, len(t.def.Fields))
				for _, f := range t.def.Fields {
					out = append(out, &introValue{
						name:         f.Name,
						description:  f.Description,
						typ:          f.Type,
						defaultValue: f.DefaultValue,
						directives:   f.Directives,
					})
				}
				return out, nil
			},
			"ofType": func(_ context.Context, obj any, _ arguments) (any, error) {
				if t := typ(obj); t.ofType != nil {
					return e.wrap(t.ofType), nil
				}
				return nil, nil
			},
		},
		"__Field": {
			"name": func(_ context.Context, obj any, _ arguments) (any, error) {
				return field(obj).Name, nil
			},
			"description": func(_ context.Context, obj any, _ arguments) (any, error) {
				return optional(field(obj).Description), nil
			},
			"args": func(_ context.Context, obj any, _ arguments) (any, error) {
				return argumentValues(field(obj).Arguments), nil
			},
			"type": func(_ context.Context, obj any, _ arguments) (any, error) {
				return e.wrap(field(obj).Type), nil
			},
			"isDeprecated": func(_ context.Context, obj any, _ arguments) (any, error) {
				ok, _ := deprecation(field(obj).Directives)
				return ok, nil
			},
			"deprecationReason": func(_ context.Context, obj any, _ arguments) (any, error) {
				_, reason := deprecation(field(obj).Directives)
				return reason, nil
			},
		},
		"__InputValue": {
			"name": func(_ context.Context, obj any, _ arguments) (any, error) {
				return value(obj).name, nil
			},
			"description": func(_ context.Context, obj any, _ arguments) (any, error) {
				return optional(value(obj).description), nil
			},
			"type": func(_ context.Context, obj any, _ arguments) (any, error) {
				return e.wrap(value(obj).typ), nil
			},
			"defaultValue": func(_ context.Context, obj any, _ arguments) (any, error) {
				if v := value(obj).defaultValue; v != nil {
					return v.String(), nil
				}
				return nil, nil
			},
			"isDeprecated": func(_ context.Context, obj any, _ arguments) (any, error) {
				ok, _ := deprecation(value(obj).directives)
				return ok, nil
			},
			"deprecationReason": func(_ context.Context, obj any, _ arguments) (any, error) {
				_, reason := deprecation(value(obj).directives)
				return reason, nil
			},
		},
		"__EnumValue": {
			"name": func(_ context.Context, obj any, _ arguments) (any, error) {
				return enum(obj).Name, nil
			},
			"description": func(_ context.Context, obj any, _ arguments) (any, error) {
				return optional(enum(obj).Description), nil
			},
			"isDeprecated": func(_ context.Context, obj any, _ arguments) (any, error) {
				ok, _ := deprecation(enum(obj).Directives)
				return ok, nil
			},
			"deprecationReason": func(_ context.Context, obj any, _ arguments) (any, error) {
				_, reason := deprecation(enum(obj).Directives)
				return reason, nil
			},
		},
		"__Directive": {
			"name": func(_ context.Context, obj any, _ arguments) (any, error) {
				return directive(obj).Name, nil
			},
			"description": func(_ context.Context, obj any, _ arguments) (any, error) {
				return optional(directive(obj).Description), nil
			},
			"locations": func(_ context.Context, obj any, _ arguments) (any, error) {
				d := directive(obj)
				out := make([]string, 0, len(d.Locations))
				for _, l := range d.Locations {
					out = append(out, string(l))
				}
				return out, nil
			},
			"args": func(_ context.Context, obj any, _ arguments) (any, error) {
				return argumentValues(directive(obj).Arguments), nil
			},
			"isRepeatable": func(_ context.Context, obj any, _ arguments) (any, error) {
				return directive(obj).IsRepeatable, nil
			},
		},
	}
}
