// Package sqlsource is the reference DataSource driver (C4): it runs a
// DrawMeta's Spec as a SQL query against Postgres and serializes row
// batches into RawData chunks, grounded on the teacher's pgx-based
// repository adapters (components/consumer/internal/adapters/postgresql).
package sqlsource

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/savannahghi/idrclient/internal/disposable"
	"github.com/savannahghi/idrclient/internal/etlmodel"
	"github.com/savannahghi/idrclient/internal/idrerrors"
)

// defaultBatchSize bounds how many rows are serialized per RawData chunk
// when a DrawMeta's Hints don't override it.
const defaultBatchSize = 500

// Source is a pooled Postgres connection shared across every draw from one
// DataSourceMeta.
type Source struct {
	disposable.Base
	pool *pgxpool.Pool
}

// New opens a pgxpool against dsn. meta is accepted, not inspected, so a
// protocol.DataSourceFactory closing over a dsn reads naturally as
// `func(meta *etlmodel.DataSourceMeta) (etlmodel.DataSource, error) { return sqlsource.New(ctx, meta, dsn) }`.
func New(ctx context.Context, _ *etlmodel.DataSourceMeta, dsn string) (*Source, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, &idrerrors.TransientError{Op: "sqlsource.New", Err: err}
	}

	return &Source{pool: pool}, nil
}

// Dispose closes the underlying pool.
func (s *Source) Dispose() error {
	return s.DisposeOnce(func() error {
		s.pool.Close()
		return nil
	})
}

// StartDraw runs draw.Spec as a SQL query. Hints["batch_size"] overrides
// the row-batch size; Hints["estimated_rows"], when present and positive,
// lets Next report fractional progress before the stream is exhausted.
func (s *Source) StartDraw(ctx context.Context, draw *etlmodel.DrawMeta) (etlmodel.DrawStream, error) {
	if err := s.Guard("sqlsource.Source"); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, draw.Spec)
	if err != nil {
		return nil, &idrerrors.TransientError{Op: "sqlsource.StartDraw", Err: err}
	}

	return &drawStream{
		rows:          rows,
		batchSize:     intHint(draw.Hints, "batch_size", defaultBatchSize),
		estimatedRows: intHint(draw.Hints, "estimated_rows", 0),
	}, nil
}

func intHint(hints map[string]string, key string, def int) int {
	if hints == nil {
		return def
	}

	v, ok := hints[key]
	if !ok {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}

	return n
}

// drawStream pulls and serializes rows from one pgx.Rows cursor in batches.
type drawStream struct {
	disposable.Base
	rows          pgx.Rows
	batchSize     int
	estimatedRows int
	delivered     int
	index         int
}

// Dispose closes the underlying row cursor.
func (d *drawStream) Dispose() error {
	return d.DisposeOnce(func() error {
		d.rows.Close()
		return nil
	})
}

// Next pulls up to batchSize rows and serializes them, one row per line,
// tab-separated, into a RawData chunk.
func (d *drawStream) Next(ctx context.Context) (etlmodel.RawData, float64, bool, error) {
	if err := d.Guard("sqlsource.drawStream"); err != nil {
		return etlmodel.RawData{}, 0, false, err
	}

	var buf strings.Builder

	rowsInBatch := 0

	for rowsInBatch < d.batchSize {
		if ctx.Err() != nil {
			return etlmodel.RawData{}, 0, false, ctx.Err()
		}

		if !d.rows.Next() {
			break
		}

		values, err := d.rows.Values()
		if err != nil {
			return etlmodel.RawData{}, 0, false, &idrerrors.PermanentError{Op: "sqlsource.Next", Err: err}
		}

		writeRow(&buf, values)

		rowsInBatch++
		d.delivered++
	}

	if err := d.rows.Err(); err != nil {
		return etlmodel.RawData{}, 0, false, &idrerrors.TransientError{Op: "sqlsource.Next", Err: err}
	}

	if rowsInBatch == 0 {
		return etlmodel.RawData{}, 1.0, false, nil
	}

	exhausted := rowsInBatch < d.batchSize

	progress := 0.0
	if d.estimatedRows > 0 {
		progress = float64(d.delivered) / float64(d.estimatedRows)
		if progress > 1 {
			progress = 1
		}
	}

	if exhausted {
		progress = 1.0
	}

	data := etlmodel.RawData{Index: d.index, Bytes: []byte(buf.String())}
	d.index++

	return data, progress, true, nil
}

func writeRow(buf *strings.Builder, values []any) {
	for i, v := range values {
		if i > 0 {
			buf.WriteByte('\t')
		}

		fmt.Fprint(buf, v)
	}

	buf.WriteByte('\n')
}
