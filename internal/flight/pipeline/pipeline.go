package pipeline

import (
	"context"
	"errors"

	"github.com/shandysiswandi/goflight/internal/flight/entity"
)

// Observer is told about each completed stage.
type Observer func(ctx context.Context, stage entity.Stage, detail string)

type Options struct {
	// Roles selects columns explicitly; nil or empty uses the name heuristics.
	Roles   *entity.ColumnRoles
	Decoder *Decoder
	Observe Observer
}

type Result struct {
	Encoding string
	Table    *entity.FlightTable
	Roles    entity.ColumnRoles
	Summary  entity.FlightSummary
}

// Analyze runs decode, parse, resolve and summarize over one raw payload.
//
// When column resolution fails the returned Result still holds the encoding
// and the table so the caller can retry with explicit columns. A canceled
// context returns ctx.Err() and an empty Result.
func Analyze(ctx context.Context, raw []byte, opts Options) (Result, error) {
	dec := opts.Decoder
	if dec == nil {
		dec = NewDecoder()
	}
	observe := opts.Observe
	if observe == nil {
		observe = func(context.Context, entity.Stage, string) {}
	}

	decoded, err := dec.Decode(raw)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	observe(ctx, entity.StageDecoded, decoded.Encoding)

	table, err := ParseTable(ctx, decoded.Text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{Encoding: decoded.Encoding}, err
	}
	observe(ctx, entity.StageParsed, "")

	res := Result{Encoding: decoded.Encoding, Table: table}

	roles, err := Resolve(table, opts.Roles)
	if err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	observe(ctx, entity.StageResolved, string(roles.Mode))

	res.Roles = roles
	res.Summary = Measure(table, roles)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	observe(ctx, entity.StageSummarized, "")

	return res, nil
}

// Resolve uses explicit roles when given, the name heuristics otherwise.
func Resolve(table *entity.FlightTable, explicit *entity.ColumnRoles) (entity.ColumnRoles, error) {
	if explicit != nil && !explicit.Empty() {
		return ResolveExplicit(table.Columns, *explicit)
	}
	return ResolveHeuristic(table.Columns)
}

// IsRecoverable reports whether err leaves the analysis waiting for an explicit
// column selection rather than failed.
func IsRecoverable(err error) bool {
	var cerr *ColumnResolutionError
	return errors.As(err, &cerr)
}
