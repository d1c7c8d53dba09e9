package etlmodel

import (
	"fmt"

	validator "gopkg.in/go-playground/validator.v9"

	"github.com/savannahghi/idrclient/internal/idrerrors"
)

var validate = validator.New()

// DataSourceMeta declares a logical data source and owns the DrawMetas
// describing the extracts available from it. Each contained DrawMeta
// back-references this DataSourceMeta's id and no other (§3).
type DataSourceMeta struct {
	named
	Draws map[string]*DrawMeta
}

// NewDataSourceMeta constructs a DataSourceMeta, rejecting an empty id or
// name with ImproperlyConfiguredError.
func NewDataSourceMeta(id, name, description string) (*DataSourceMeta, error) {
	if id == "" {
		return nil, &idrerrors.ImproperlyConfiguredError{Field: "DataSourceMeta.ID", Message: "must not be empty"}
	}

	if name == "" {
		return nil, &idrerrors.ImproperlyConfiguredError{Field: "DataSourceMeta.Name", Message: "must not be empty"}
	}

	return &DataSourceMeta{
		named: named{identifiable: identifiable{id: id}, name: name, description: description},
		Draws: make(map[string]*DrawMeta),
	}, nil
}

// AddDraw registers draw under this source, stamping its back-reference.
// Re-parenting a draw already owned by a different DataSourceMeta is
// rejected to preserve the §3 one-parent invariant.
func (s *DataSourceMeta) AddDraw(draw *DrawMeta) error {
	if draw.dataSourceID != "" && draw.dataSourceID != s.ID() {
		return &idrerrors.ImproperlyConfiguredError{
			Field:   "DrawMeta.DataSourceID",
			Message: fmt.Sprintf("draw %q already belongs to data source %q", draw.ID(), draw.dataSourceID),
		}
	}

	draw.dataSourceID = s.ID()
	s.Draws[draw.ID()] = draw

	return nil
}

// DrawMeta is an opaque specification of one extract: a query/spec payload
// plus execution hints, scoped to exactly one DataSourceMeta.
type DrawMeta struct {
	named
	dataSourceID string
	// Spec is the opaque extract specification (e.g. a SQL query string)
	// the coordinator handed back. The core never parses it.
	Spec string
	// Hints carries opaque, driver-specific execution hints (batch size,
	// timeout overrides, ...).
	Hints map[string]string
}

// NewDrawMeta constructs an unparented DrawMeta; call DataSourceMeta.AddDraw
// to attach it.
func NewDrawMeta(id, name, description, spec string, hints map[string]string) (*DrawMeta, error) {
	if id == "" {
		return nil, &idrerrors.ImproperlyConfiguredError{Field: "DrawMeta.ID", Message: "must not be empty"}
	}

	if name == "" {
		return nil, &idrerrors.ImproperlyConfiguredError{Field: "DrawMeta.Name", Message: "must not be empty"}
	}

	return &DrawMeta{
		named: named{identifiable: identifiable{id: id}, name: name, description: description},
		Spec:  spec,
		Hints: hints,
	}, nil
}

// DataSourceID returns the id of the DataSourceMeta this draw belongs to, or
// "" if it hasn't been attached to one yet.
func (d *DrawMeta) DataSourceID() string { return d.dataSourceID }

// DataSinkMeta is an addressable remote endpoint with a dialect tag (the
// wire format/protocol a DataSink driver should speak to it).
type DataSinkMeta struct {
	named
	Endpoint string `validate:"required"`
	Dialect  string `validate:"required"`
}

// NewDataSinkMeta constructs and validates a DataSinkMeta.
func NewDataSinkMeta(id, name, description, endpoint, dialect string) (*DataSinkMeta, error) {
	if id == "" || name == "" {
		return nil, &idrerrors.ImproperlyConfiguredError{Field: "DataSinkMeta", Message: "id and name must not be empty"}
	}

	m := &DataSinkMeta{
		named:    named{identifiable: identifiable{id: id}, name: name, description: description},
		Endpoint: endpoint,
		Dialect:  dialect,
	}

	if err := validate.Struct(m); err != nil {
		return nil, &idrerrors.ImproperlyConfiguredError{Field: "DataSinkMeta", Message: err.Error(), Err: err}
	}

	return m, nil
}

// DrainMeta is the transport-time manifest for one upload: it references the
// originating DrawMeta and carries the MIME content-type the cleaned data
// was encoded with. DrainMeta values are minted by a DrainMetaFactory (C8);
// the only exported constructor here is NewDrainMetaForFactory, which those
// factories (and test stand-ins for one) call.
type DrainMeta struct {
	identifiable
	DrawMetaID  string
	ContentType string
}

// newDrainMeta is unexported: only drivers.DrainMetaFactory implementations
// (internal/drivers/...) construct DrainMeta values, per §3's "Created only
// by a DrainMetaFactory" invariant. It is exposed to that subpackage via
// NewDrainMetaForFactory.
func newDrainMeta(id, drawMetaID, contentType string) *DrainMeta {
	return &DrainMeta{
		identifiable: identifiable{id: id},
		DrawMetaID:   drawMetaID,
		ContentType:  contentType,
	}
}

// NewDrainMetaForFactory is the sole constructor path for DrainMeta, called
// by DrainMetaFactory implementations (and tests standing in for one).
func NewDrainMetaForFactory(id, drawMetaID, contentType string) *DrainMeta {
	return newDrainMeta(id, drawMetaID, contentType)
}

// RawData is one chunk drawn from a DataSource: an opaque byte carrier plus
// its 0-based ordinal within the extract.
type RawData struct {
	Index int
	Bytes []byte
}

// CleanedData is the transformed counterpart of RawData, additionally
// tagged with the MIME content-type the processor encoded it as.
type CleanedData struct {
	Index       int
	Bytes       []byte
	ContentType string
}
