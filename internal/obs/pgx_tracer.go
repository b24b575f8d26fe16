package obs

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ctxSpanKey struct{}

const maxStatementLen = 300

// PGXTracer implements pgx.QueryTracer to create spans for database interactions.
type PGXTracer struct{}

// TraceQueryStart starts a span named after the statement's operation and table.
func (PGXTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op, table := describeSQL(data.SQL)
	name := "pgx.query"
	switch {
	case op != "" && table != "":
		name = op + " " + table
	case op != "":
		name = op
	}
	ctx, span := otel.Tracer("pos.pgx").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", truncateSQL(data.SQL)),
	)
	if op != "" {
		span.SetAttributes(attribute.String("db.operation", op))
	}
	if table != "" {
		span.SetAttributes(attribute.String("db.sql.table", table))
	}
	if conn != nil {
		if cfg := conn.Config(); cfg != nil && cfg.Database != "" {
			span.SetAttributes(attribute.String("db.name", cfg.Database))
		}
	}
	return context.WithValue(ctx, ctxSpanKey{}, span)
}

// TraceQueryEnd ends the span. pgx.ErrNoRows is an answer, not a failure.
func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, ok := ctx.Value(ctxSpanKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()
	if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, data.Err.Error())
		return
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
}

func truncateSQL(sql string) string {
	trimmed := strings.Join(strings.Fields(sql), " ")
	if len(trimmed) > maxStatementLen {
		return trimmed[:maxStatementLen] + "..."
	}
	return trimmed
}

// describeSQL returns the statement verb and the first table it touches.
func describeSQL(sql string) (op, table string) {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "", ""
	}
	op = strings.ToUpper(fields[0])
	var marker string
	switch op {
	case "SELECT", "DELETE":
		marker = "FROM"
	case "INSERT":
		marker = "INTO"
	case "UPDATE":
		if len(fields) > 1 {
			return op, cleanTable(fields[1])
		}
		return op, ""
	default:
		return op, ""
	}
	for i := 1; i < len(fields)-1; i++ {
		if strings.EqualFold(fields[i], marker) {
			return op, cleanTable(fields[i+1])
		}
	}
	return op, ""
}

func cleanTable(name string) string {
	name = strings.TrimRight(name, ",;")
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	return strings.Trim(name, `"`)
}
