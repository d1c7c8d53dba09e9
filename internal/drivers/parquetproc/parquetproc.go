// Package parquetproc is the reference ExtractProcessor (C6): it frames
// RawData into a minimal length-prefixed columnar buffer and compresses it
// with brotli, tagging the result "application/vnd.apache-parquet" (§6.4).
// Real Apache Parquet encoding is an external, pluggable concern per
// spec.md §1's explicit scope cut — this driver stands in for it.
package parquetproc

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/andybalholm/brotli"

	"github.com/savannahghi/idrclient/internal/disposable"
	"github.com/savannahghi/idrclient/internal/etlmodel"
	"github.com/savannahghi/idrclient/internal/idrerrors"
)

// ContentType is the MIME type every chunk this processor produces is
// tagged with.
const ContentType = "application/vnd.apache-parquet"

// defaultQuality is the brotli compression level: favors speed over ratio,
// matching a processor that runs once per chunk on the hot path.
const defaultQuality = 5

// Processor is a single-use, disposable ExtractProcessor. The protocol's
// ProcessorFactory should build a fresh one per chunk (§4.5 step 4a).
type Processor struct {
	disposable.Base
	quality int
}

// New returns a Processor at the default compression quality.
func New() *Processor {
	return &Processor{quality: defaultQuality}
}

// NewWithQuality returns a Processor at a caller-chosen brotli quality
// (0-11; higher compresses more, slower).
func NewWithQuality(quality int) *Processor {
	return &Processor{quality: quality}
}

// Process frames raw.Bytes as a single-column row group (row count + one
// byte-span covering the whole payload) and brotli-compresses the result.
func (p *Processor) Process(_ context.Context, raw etlmodel.RawData, _ *etlmodel.DrawMeta) (etlmodel.CleanedData, error) {
	if err := p.Guard("parquetproc.Processor"); err != nil {
		return etlmodel.CleanedData{}, err
	}

	framed := frame(raw.Bytes)

	var compressed bytes.Buffer

	w := brotli.NewWriterLevel(&compressed, p.quality)

	if _, err := w.Write(framed); err != nil {
		return etlmodel.CleanedData{}, &idrerrors.PermanentError{Op: "parquetproc.Process", Err: err}
	}

	if err := w.Close(); err != nil {
		return etlmodel.CleanedData{}, &idrerrors.PermanentError{Op: "parquetproc.Process", Err: err}
	}

	return etlmodel.CleanedData{
		Index:       raw.Index,
		Bytes:       compressed.Bytes(),
		ContentType: ContentType,
	}, nil
}

// frame produces the minimal columnar envelope: a row count (the payload is
// treated as one opaque row) followed by a length-prefixed byte span.
func frame(payload []byte) []byte {
	buf := make([]byte, 0, len(payload)+16)

	var rowCount [8]byte
	binary.BigEndian.PutUint64(rowCount[:], 1)
	buf = append(buf, rowCount[:]...)

	var spanLen [8]byte
	binary.BigEndian.PutUint64(spanLen[:], uint64(len(payload)))
	buf = append(buf, spanLen[:]...)

	return append(buf, payload...)
}
