// Package backend turns configuration into concrete storage, event transport
// and spreadsheet mirror implementations.
package backend

import (
	"context"

	"fintrack/internal/events"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

type CleanupFunc func() error

// BackendResult contains the store and its cleanup function.
type BackendResult struct {
	Store   storage.Store
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreatePublisher never fails: when the broker is unreachable it logs
	// and falls back to a no-op publisher.
	CreatePublisher(ctx context.Context, config Config) events.Publisher
	CreateConsumer(ctx context.Context, config Config) (events.Consumer, error)
	// CreateMirror returns nil when no spreadsheet is configured.
	CreateMirror(ctx context.Context, config Config) (sheets.EntryMirror, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath  string
	PostgresDSN   string
	MongoURI      string
	MongoDatabase string

	Broker       BrokerType
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MongoBackend    BackendType = "mongo"
)

func (bt BackendType) String() string { return string(bt) }

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, MongoBackend:
		return true
	}
	return false
}

type BrokerType string

const (
	NoBroker    BrokerType = "none"
	AMQPBroker  BrokerType = "amqp"
	KafkaBroker BrokerType = "kafka"
)

func (b BrokerType) IsValid() bool {
	switch b {
	case NoBroker, AMQPBroker, KafkaBroker:
		return true
	}
	return false
}
