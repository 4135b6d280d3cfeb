// Package mongostore owns the MongoDB connection shared by the telemetry
// sinks. It exposes single-document inserts per logical collection and a
// startup health probe. Retry policy belongs to the callers; the store itself
// reports failures as typed errors and nothing more.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config holds the connection parameters for the telemetry datastore.
// URI takes precedence over the individual host/port/credential fields.
type Config struct {
	URI        string
	Host       string
	Port       int
	Username   string
	Password   string
	AuthSource string
	Database   string

	ConnectTimeout time.Duration
	InsertTimeout  time.Duration
}

// Store wraps a pooled MongoDB client scoped to one database. All methods are
// safe for concurrent use; each Insert is a single atomic document write.
type Store struct {
	client        *mongo.Client
	db            *mongo.Database
	insertTimeout time.Duration
}

// Connect establishes the client and returns a Store bound to the configured
// database. The driver pools connections lazily; Connect itself does not
// verify reachability so that the process can start ahead of the datastore.
// Use Ping for the startup health check.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	opts := clientOptions(cfg)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	return &Store{
		client:        client,
		db:            client.Database(cfg.Database),
		insertTimeout: cfg.InsertTimeout,
	}, nil
}

// clientOptions assembles driver options from the configuration, mirroring
// the precedence rules of the environment variables: a full URI wins, then
// host/port with optional credentials and auth source.
func clientOptions(cfg Config) *options.ClientOptions {
	if cfg.URI != "" {
		return options.Client().ApplyURI(cfg.URI)
	}

	opts := options.Client().SetHosts([]string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)})
	if cfg.Username != "" && cfg.Password != "" {
		cred := options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		}
		if cfg.AuthSource != "" {
			cred.AuthSource = cfg.AuthSource
		}
		opts.SetAuth(cred)
	}
	return opts
}

// Insert writes one document into the named collection. Encoding failures
// are returned as a *SerializationError before any network traffic; an
// expired deadline, connectivity failure or write failure is returned as a
// *StorageError. The write is bounded by the configured insert timeout and
// no retries are attempted.
func (s *Store) Insert(ctx context.Context, collection string, doc any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return &SerializationError{Collection: collection, Err: err}
	}

	if s.insertTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.insertTimeout)
		defer cancel()
	}

	if _, err := s.db.Collection(collection).InsertOne(ctx, bson.Raw(raw)); err != nil {
		return &StorageError{Collection: collection, Err: err}
	}
	return nil
}

// Ping verifies connectivity against the primary. Intended for process
// startup and the health endpoint, not the request hot path.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}
	return nil
}

// Database returns the name of the bound database.
func (s *Store) Database() string {
	return s.db.Name()
}

// Close releases the underlying client and its connection pool.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}
