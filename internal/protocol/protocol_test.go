package protocol_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savannahghi/idrclient/internal/etlmodel"
	"github.com/savannahghi/idrclient/internal/protocol"
)

func validProtocol() protocol.ETLProtocol {
	return protocol.ETLProtocol{
		ID:                "p1",
		DataSourceFactory: func(*etlmodel.DataSourceMeta) (etlmodel.DataSource, error) { return nil, nil },
		DataSinkFactory:   func(*etlmodel.DataSinkMeta) (etlmodel.DataSink, error) { return nil, nil },
		ProcessorFactory:  func() (etlmodel.ExtractProcessor, error) { return nil, nil },
		MetadataSuppliers: []etlmodel.MetadataSupplier{fakeSupplier{}},
		DrainMetaFactory:  fakeFactory{},
	}
}

type fakeSupplier struct{}

func (fakeSupplier) IsDisposed() bool { return false }
func (fakeSupplier) Dispose() error   { return nil }
func (fakeSupplier) DataSinkMetas(context.Context) ([]*etlmodel.DataSinkMeta, error) {
	return nil, nil
}
func (fakeSupplier) DataSourceMetas(context.Context) ([]*etlmodel.DataSourceMeta, error) {
	return nil, nil
}
func (fakeSupplier) DrawMetas(context.Context, *etlmodel.DataSourceMeta) ([]*etlmodel.DrawMeta, error) {
	return nil, nil
}

type fakeFactory struct{}

func (fakeFactory) IsDisposed() bool { return false }
func (fakeFactory) Dispose() error   { return nil }
func (fakeFactory) New(context.Context, *etlmodel.DrawMeta, string) (*etlmodel.DrainMeta, error) {
	return nil, nil
}

func TestValidateRejectsMissingFields(t *testing.T) {
	p := validProtocol()
	p.ID = ""

	require.Error(t, p.Validate())
}

func TestValidateAcceptsCompleteProtocol(t *testing.T) {
	p := validProtocol()

	require.NoError(t, p.Validate())
}

func TestWithDefaultsFillsConsumerAndSelector(t *testing.T) {
	p := validProtocol()

	defaulted := p.WithDefaults()

	require.Len(t, defaulted.MetadataConsumers, 1)
	assert.IsType(t, protocol.NullMetadataConsumer{}, defaulted.MetadataConsumers[0])
	assert.NotNil(t, defaulted.DataSinkSelector)

	assert.Nil(t, p.MetadataConsumers, "WithDefaults must not mutate the receiver")
}

func TestSelectAllSinksReturnsEverySink(t *testing.T) {
	a, err := etlmodel.NewDataSinkMeta("a", "a", "", "https://a.test", "http")
	require.NoError(t, err)

	b, err := etlmodel.NewDataSinkMeta("b", "b", "", "https://b.test", "http")
	require.NoError(t, err)

	sinks := []*etlmodel.DataSinkMeta{a, b}

	selected := protocol.SelectAllSinks(sinks, nil, etlmodel.CleanedData{})

	assert.Equal(t, sinks, selected)
}

func TestNullMetadataConsumerDiscardsDrainMeta(t *testing.T) {
	c := protocol.NullMetadataConsumer{}

	assert.False(t, c.IsDisposed())
	assert.NoError(t, c.Dispose())
	assert.NoError(t, c.TakeDrainMeta(context.Background(), nil))
}
