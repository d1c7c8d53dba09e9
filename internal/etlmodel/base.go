// Package etlmodel defines the typed Extract/Transform/Load protocol model:
// metadata descriptors (DataSourceMeta, DrawMeta, DataSinkMeta, DrainMeta),
// the raw/cleaned data carriers, and the driver-facing interfaces
// (DataSource, DataSink, DrawStream, DrainStream, ExtractProcessor,
// MetadataSupplier, MetadataConsumer, DrainMetaFactory) that bind them
// together. The core depends only on these interfaces; concrete drivers
// live under internal/drivers.
package etlmodel

// Identifiable is implemented by every domain object with a stable,
// non-empty id.
type Identifiable interface {
	ID() string
}

// Named is implemented by domain objects that additionally carry a
// non-empty name and an optional description.
type Named interface {
	Identifiable
	Name() string
	Description() string
}

// identifiable is an embeddable mixin giving a struct a stable ID.
type identifiable struct {
	id string
}

// ID returns the stable, non-empty identifier.
func (i identifiable) ID() string { return i.id }

// named is an embeddable mixin giving a struct a name and description on
// top of identifiable.
type named struct {
	identifiable
	name        string
	description string
}

// Name returns the non-empty display name.
func (n named) Name() string { return n.name }

// Description returns the optional human-readable description.
func (n named) Description() string { return n.description }
