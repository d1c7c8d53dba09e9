// Package refprotocol composes the reference drivers — sqlsource,
// httpsink, httpmeta, parquetproc, and optionally redisoffset — into one
// ETLProtocol, and self-registers it under the "reference" id (§6.3) the
// way the teacher's bootstrap packages wire a concrete repository/use-case
// graph behind a named entry point (components/consumer/internal/bootstrap).
// It is the only driver package that constructs an etlmodel.DataSource/
// DataSink/ExtractProcessor graph; the individual reference drivers remain
// independently reusable by any other protocol factory.
package refprotocol

import (
	"context"
	"net/http"
	"time"

	"github.com/savannahghi/idrclient/internal/config"
	"github.com/savannahghi/idrclient/internal/drivers/httpmeta"
	"github.com/savannahghi/idrclient/internal/drivers/httpsink"
	"github.com/savannahghi/idrclient/internal/drivers/parquetproc"
	"github.com/savannahghi/idrclient/internal/drivers/redisoffset"
	"github.com/savannahghi/idrclient/internal/drivers/sqlsource"
	"github.com/savannahghi/idrclient/internal/etlmodel"
	"github.com/savannahghi/idrclient/internal/idrerrors"
	"github.com/savannahghi/idrclient/internal/protocol"
	"github.com/savannahghi/idrclient/internal/registry"
)

// SettingsID is this driver's entry in the §6.2 SETTINGS_INITIALIZERS list.
const SettingsID = "refprotocol"

// ProtocolID is the factory id this package registers under (§6.3).
const ProtocolID = "reference"

// offsetTTL bounds how long a redisoffset watermark survives; a week
// comfortably outlives any single coordinator outage.
const offsetTTL = 7 * 24 * time.Hour

// envSettings holds this protocol's env-derived configuration. redisAddr is
// optional: leaving it unset runs without crash-resume bookkeeping.
type envSettings struct {
	dsn            string
	coordinatorURL string
	redisAddr      string
}

func (s *envSettings) ID() string { return SettingsID }

func (s *envSettings) Initialize(*config.Config) error {
	s.dsn = config.GetenvOrDefault("REFPROTOCOL_DSN", "")
	s.coordinatorURL = config.GetenvOrDefault("REFPROTOCOL_COORDINATOR_URL", "")
	s.redisAddr = config.GetenvOrDefault("REFPROTOCOL_REDIS_ADDR", "")

	if s.dsn == "" {
		return &idrerrors.ImproperlyConfiguredError{Field: "refprotocol.dsn", Message: "REFPROTOCOL_DSN is required"}
	}

	if s.coordinatorURL == "" {
		return &idrerrors.ImproperlyConfiguredError{
			Field:   "refprotocol.coordinator_url",
			Message: "REFPROTOCOL_COORDINATOR_URL is required",
		}
	}

	return nil
}

var shared = &envSettings{} //nolint:gochecknoglobals

func init() {
	config.RegisterSettingsInitializer(shared)
	registry.Default().Register(ProtocolID, build)
}

// build assembles the reference ETLProtocol from shared's settings, which
// must already have had Initialize run against it (the registry only
// resolves factories after the CLI runs settings initializers, §6.1).
func build() ([]*protocol.ETLProtocol, error) {
	coordinator := httpmeta.New(shared.coordinatorURL, http.DefaultClient)

	consumer, err := wrapConsumer(coordinator)
	if err != nil {
		return nil, err
	}

	p := protocol.ETLProtocol{
		ID:          ProtocolID,
		Name:        "reference",
		Description: "SQL source over Postgres, HTTP sink, brotli-framed processor",
		DataSourceFactory: func(meta *etlmodel.DataSourceMeta) (etlmodel.DataSource, error) {
			return sqlsource.New(context.Background(), meta, shared.dsn)
		},
		DataSinkFactory: func(meta *etlmodel.DataSinkMeta) (etlmodel.DataSink, error) {
			return httpsink.New(meta, http.DefaultClient), nil
		},
		ProcessorFactory: func() (etlmodel.ExtractProcessor, error) {
			return parquetproc.New(), nil
		},
		MetadataSuppliers: []etlmodel.MetadataSupplier{coordinator},
		MetadataConsumers: []etlmodel.MetadataConsumer{consumer},
		DrainMetaFactory:  coordinator,
	}

	return []*protocol.ETLProtocol{&p}, nil
}

// wrapConsumer layers redisoffset crash-resume bookkeeping over coordinator
// when REFPROTOCOL_REDIS_ADDR is set, otherwise returns coordinator
// unwrapped.
func wrapConsumer(coordinator *httpmeta.Client) (etlmodel.MetadataConsumer, error) {
	if shared.redisAddr == "" {
		return coordinator, nil
	}

	return redisoffset.New(context.Background(), shared.redisAddr, coordinator, offsetTTL)
}
