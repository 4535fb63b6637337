// Package filter translates AIP-160 member filters into SQL conditions.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// MemberDeclarations returns the field declarations for member filtering.
func MemberDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("status", filtering.TypeString),
		filtering.DeclareIdent("level_id", filtering.TypeString),
		filtering.DeclareIdent("recurring", filtering.TypeBool),
		filtering.DeclareIdent("trialing", filtering.TypeBool),
		filtering.DeclareIdent("expires_at", filtering.TypeTimestamp),
		filtering.DeclareIdent("joined_at", filtering.TypeTimestamp),
		filtering.DeclareIdent("updated_at", filtering.TypeTimestamp),
	)
}

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	// Clause is the SQL WHERE clause (e.g., "status = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

// IsEmpty reports whether the condition filters nothing.
func (c SQLCondition) IsEmpty() bool {
	return strings.TrimSpace(c.Clause) == ""
}

type column struct {
	name string
	kind columnKind
}

type columnKind int

const (
	columnText columnKind = iota
	columnBool
	columnMillis
)

// fieldMapping maps filter field names to SQL columns.
var fieldMapping = map[string]column{
	"status":     {name: "status", kind: columnText},
	"level_id":   {name: "level_id", kind: columnText},
	"recurring":  {name: "recurring", kind: columnBool},
	"trialing":   {name: "trialing", kind: columnBool},
	"expires_at": {name: "expires_at", kind: columnMillis},
	"joined_at":  {name: "joined_at", kind: columnMillis},
	"updated_at": {name: "updated_at", kind: columnMillis},
}

// ParseMemberFilter parses an AIP-160 filter expression and returns a SQL
// condition. An empty filter yields an empty condition.
func ParseMemberFilter(filterStr string) (SQLCondition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return SQLCondition{}, nil
	}

	decls, err := MemberDeclarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create declarations: %w", err)
	}

	filter, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("parse filter: %w", err)
	}

	return translateExpr(filter.CheckedExpr.GetExpr())
}

func translateExpr(e *expr.Expr) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return translateCall(kind.CallExpr)
	default:
		return SQLCondition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func translateCall(call *expr.Expr_Call) (SQLCondition, error) {
	switch call.Function {
	case filtering.FunctionAnd, "_&&_":
		return translateJunction(call.Args, "AND")
	case filtering.FunctionOr, "_||_":
		return translateJunction(call.Args, "OR")
	case filtering.FunctionNot, "!_":
		return translateNot(call.Args)
	case filtering.FunctionEquals, "_==_":
		return translateComparison(call.Args, "=")
	case filtering.FunctionNotEquals, "_!=_":
		return translateComparison(call.Args, "!=")
	case filtering.FunctionLessThan, "_<_":
		return translateComparison(call.Args, "<")
	case filtering.FunctionLessEquals, "_<=_":
		return translateComparison(call.Args, "<=")
	case filtering.FunctionGreaterThan, "_>_":
		return translateComparison(call.Args, ">")
	case filtering.FunctionGreaterEquals, "_>=_":
		return translateComparison(call.Args, ">=")
	default:
		return SQLCondition{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func translateJunction(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("%s requires 2 arguments", op)
	}

	left, err := translateExpr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}

	right, err := translateExpr(args[1])
	if err != nil {
		return SQLCondition{}, err
	}

	return SQLCondition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func translateNot(args []*expr.Expr) (SQLCondition, error) {
	if len(args) != 1 {
		return SQLCondition{}, fmt.Errorf("NOT requires 1 argument")
	}
	inner, err := translateExpr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	return SQLCondition{
		Clause: fmt.Sprintf("(NOT %s)", inner.Clause),
		Params: inner.Params,
	}, nil
}

func translateComparison(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison requires 2 arguments")
	}

	field, err := extractFieldName(args[0])
	if err != nil {
		return SQLCondition{}, err
	}

	col, ok := fieldMapping[field]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown field: %s", field)
	}

	value, err := extractValue(args[1])
	if err != nil {
		return SQLCondition{}, err
	}
	param, err := toColumnValue(col, value)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("field %s: %w", field, err)
	}

	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", col.name, op),
		Params: []any{param},
	}, nil
}

func toColumnValue(col column, value any) (any, error) {
	switch col.kind {
	case columnBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", value)
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	case columnMillis:
		ts, ok := value.(time.Time)
		if !ok {
			return nil, fmt.Errorf("expected timestamp, got %T", value)
		}
		return ts.UTC().UnixMilli(), nil
	default:
		if _, ok := value.(string); !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return value, nil
	}
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	case *expr.Expr_IdentExpr:
		// true and false parse as identifiers.
		switch kind.IdentExpr.Name {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("unexpected identifier in value position: %s", kind.IdentExpr.Name)
	case *expr.Expr_CallExpr:
		if kind.CallExpr.Function == filtering.FunctionTimestamp && len(kind.CallExpr.Args) == 1 {
			return extractTimestampValue(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}

	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

func extractTimestampValue(e *expr.Expr) (time.Time, error) {
	if e == nil {
		return time.Time{}, fmt.Errorf("nil timestamp argument")
	}

	kind, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a constant string")
	}
	strVal, ok := kind.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a string")
	}
	t, err := time.Parse(time.RFC3339Nano, strVal.StringValue)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: %s", strVal.StringValue)
	}
	return t, nil
}
