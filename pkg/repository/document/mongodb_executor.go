// Package document executes engine pipelines against a document store.
package document

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nimburion/docquery/pkg/observability/tracing"
	"github.com/nimburion/docquery/pkg/query"
	mongostore "github.com/nimburion/docquery/pkg/store/mongodb"
)

// MongoExecutor is the subset of the MongoDB adapter used to run queries.
type MongoExecutor interface {
	Aggregate(ctx context.Context, collection string, pipeline interface{}) ([]bson.M, error)
	InsertOne(ctx context.Context, collection string, document interface{}) (interface{}, error)
	EnsureIndex(ctx context.Context, collection, field string, unique bool) error
	DatabaseName() string
}

var (
	_ MongoExecutor = (*mongostore.Adapter)(nil)
	_ query.Store   = (*MongoDBExecutor)(nil)
	_ query.Indexer = (*MongoDBExecutor)(nil)
)

// MongoDBExecutor wraps a MongoExecutor with a client span per call.
// It satisfies query.Store and query.Indexer.
type MongoDBExecutor struct {
	adapter MongoExecutor
}

// NewMongoDBExecutor creates a MongoDBExecutor.
func NewMongoDBExecutor(adapter MongoExecutor) (*MongoDBExecutor, error) {
	if adapter == nil {
		return nil, fmt.Errorf("mongodb adapter is required")
	}
	return &MongoDBExecutor{adapter: adapter}, nil
}

// Aggregate runs pipeline on collection.
func (e *MongoDBExecutor) Aggregate(ctx context.Context, collection string, pipeline interface{}) ([]bson.M, error) {
	opts := []tracing.DatabaseSpanOption{
		tracing.WithDBSystem("mongodb"),
		tracing.WithDBName(e.adapter.DatabaseName()),
		tracing.WithDBCollection(collection),
	}
	if stages, ok := pipeline.(mongo.Pipeline); ok {
		opts = append(opts, tracing.WithDBStages(len(stages)))
	}

	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBAggregate, opts...)
	defer span.End()

	rows, err := e.adapter.Aggregate(ctx, collection, pipeline)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("aggregate %s: %w", collection, err)
	}
	tracing.RecordSuccess(span)
	return rows, nil
}

// InsertOne inserts document into collection and returns the generated _id.
func (e *MongoDBExecutor) InsertOne(ctx context.Context, collection string, document interface{}) (interface{}, error) {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBInsert,
		tracing.WithDBSystem("mongodb"),
		tracing.WithDBName(e.adapter.DatabaseName()),
		tracing.WithDBCollection(collection),
	)
	defer span.End()

	id, err := e.adapter.InsertOne(ctx, collection, document)
	if mongo.IsDuplicateKeyError(err) {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("insert into %s: %w: %v", collection, query.ErrDuplicateKey, err)
	}
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("insert into %s: %w", collection, err)
	}
	tracing.RecordSuccess(span)
	return id, nil
}

// EnsureIndex creates a single-field index on collection.
func (e *MongoDBExecutor) EnsureIndex(ctx context.Context, collection, field string, unique bool) error {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBIndex,
		tracing.WithDBSystem("mongodb"),
		tracing.WithDBName(e.adapter.DatabaseName()),
		tracing.WithDBCollection(collection),
	)
	defer span.End()

	if err := e.adapter.EnsureIndex(ctx, collection, field, unique); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("create index on %s.%s: %w", collection, field, err)
	}
	tracing.RecordSuccess(span)
	return nil
}
