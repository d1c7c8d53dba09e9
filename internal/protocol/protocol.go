// Package protocol defines the ETLProtocol bundle (§4.4): the set of
// factories and suppliers a runner needs to drive extracts for one logical
// integration, assembled the way the teacher wires a UseCase struct out of
// repository interfaces (components/consumer/internal/services/commands/command.go)
// rather than behind an interface of its own — a protocol is data, not
// behavior.
package protocol

import (
	"context"

	"github.com/savannahghi/idrclient/internal/etlmodel"
)

// DataSourceFactory builds a live DataSource for the given DataSourceMeta.
type DataSourceFactory func(meta *etlmodel.DataSourceMeta) (etlmodel.DataSource, error)

// DataSinkFactory builds a live DataSink for the given DataSinkMeta.
type DataSinkFactory func(meta *etlmodel.DataSinkMeta) (etlmodel.DataSink, error)

// ProcessorFactory builds a fresh ExtractProcessor. Called once per chunk
// (§4.5 step 4a); implementations should be cheap.
type ProcessorFactory func() (etlmodel.ExtractProcessor, error)

// DataSinkSelector picks, for a given DrainMeta and CleanedData chunk, the
// subset of sinks a workflow should drain to. The workflow calls it once per
// extract, before the first chunk is drawn, with a zero-value CleanedData.
// The default, SelectAllSinks, returns every sink unchanged.
type DataSinkSelector func(sinks []*etlmodel.DataSinkMeta, drain *etlmodel.DrainMeta, data etlmodel.CleanedData) []*etlmodel.DataSinkMeta

// SelectAllSinks is the §4.4 default DataSinkSelector: every sink drains
// every chunk.
func SelectAllSinks(sinks []*etlmodel.DataSinkMeta, _ *etlmodel.DrainMeta, _ etlmodel.CleanedData) []*etlmodel.DataSinkMeta {
	return sinks
}

// ETLProtocol is a plain value bundling everything a runner needs to drive
// one logical integration: where to read metadata from, how to build
// drivers on demand, and how to acknowledge completed drains. It carries no
// behavior of its own beyond the two defaulting helpers below.
type ETLProtocol struct {
	ID          string
	Name        string
	Description string

	DataSourceFactory DataSourceFactory
	DataSinkFactory   DataSinkFactory
	ProcessorFactory  ProcessorFactory

	// MetadataSuppliers must be non-empty (§4.4).
	MetadataSuppliers []etlmodel.MetadataSupplier

	// MetadataConsumers may be empty; WithDefaults fills it with a single
	// NullMetadataConsumer when left nil.
	MetadataConsumers []etlmodel.MetadataConsumer

	DrainMetaFactory etlmodel.DrainMetaFactory

	// DataSinkSelector defaults to SelectAllSinks when nil.
	DataSinkSelector DataSinkSelector
}

// WithDefaults returns a copy of p with MetadataConsumers and
// DataSinkSelector filled in when left unset, matching §4.4's stated
// defaults. It does not mutate p.
func (p ETLProtocol) WithDefaults() ETLProtocol {
	if p.MetadataConsumers == nil {
		p.MetadataConsumers = []etlmodel.MetadataConsumer{NullMetadataConsumer{}}
	}

	if p.DataSinkSelector == nil {
		p.DataSinkSelector = SelectAllSinks
	}

	return p
}

// Validate checks the fields §4.4 requires to be present; it does not
// re-validate the defaulting performed by WithDefaults.
func (p ETLProtocol) Validate() error {
	switch {
	case p.ID == "":
		return errProtocolField("ID")
	case p.DataSourceFactory == nil:
		return errProtocolField("DataSourceFactory")
	case p.DataSinkFactory == nil:
		return errProtocolField("DataSinkFactory")
	case p.ProcessorFactory == nil:
		return errProtocolField("ProcessorFactory")
	case len(p.MetadataSuppliers) == 0:
		return errProtocolField("MetadataSuppliers")
	case p.DrainMetaFactory == nil:
		return errProtocolField("DrainMetaFactory")
	}

	return nil
}

// NullMetadataConsumer is the §4.4 default MetadataConsumer: it discards
// every TakeDrainMeta call, for protocols that track acknowledgement
// elsewhere (or not at all).
type NullMetadataConsumer struct{}

func (NullMetadataConsumer) IsDisposed() bool { return false }
func (NullMetadataConsumer) Dispose() error   { return nil }

func (NullMetadataConsumer) TakeDrainMeta(_ context.Context, _ *etlmodel.DrainMeta) error {
	return nil
}
