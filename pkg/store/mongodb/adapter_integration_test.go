package mongodb

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcmongodb "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/testutil"
)

func TestAdapter_Integration(t *testing.T) {
	testutil.RequireIntegration(t)

	ctx := context.Background()
	container, err := tcmongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("Failed to start MongoDB container: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	adapter, err := NewAdapter(Config{URL: uri, Database: "docquery_test"}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	defer adapter.Close()

	t.Run("insert and aggregate", func(t *testing.T) {
		id, err := adapter.InsertOne(ctx, "brands", bson.M{"name": "Acme"})
		if err != nil {
			t.Fatalf("InsertOne() error = %v", err)
		}
		rows, err := adapter.Aggregate(ctx, "brands", bson.A{bson.M{"$match": bson.M{"_id": id}}})
		if err != nil {
			t.Fatalf("Aggregate() error = %v", err)
		}
		if len(rows) != 1 || rows[0]["name"] != "Acme" {
			t.Errorf("rows = %v", rows)
		}
	})

	t.Run("empty result is not nil", func(t *testing.T) {
		rows, err := adapter.Aggregate(ctx, "nothing_here", bson.A{})
		if err != nil {
			t.Fatalf("Aggregate() error = %v", err)
		}
		if rows == nil || len(rows) != 0 {
			t.Errorf("rows = %#v, want empty slice", rows)
		}
	})

	t.Run("ensure index", func(t *testing.T) {
		if err := adapter.EnsureIndex(ctx, "productmovements", "productSku", false); err != nil {
			t.Errorf("EnsureIndex() error = %v", err)
		}
	})

	t.Run("unique index rejects duplicates", func(t *testing.T) {
		if err := adapter.EnsureIndex(ctx, "products", "sku", true); err != nil {
			t.Fatalf("EnsureIndex() error = %v", err)
		}
		if err := adapter.EnsureIndex(ctx, "products", "sku", true); err != nil {
			t.Errorf("EnsureIndex() is not idempotent: %v", err)
		}
		if _, err := adapter.InsertOne(ctx, "products", bson.M{"sku": "ABC"}); err != nil {
			t.Fatalf("InsertOne() error = %v", err)
		}
		_, err := adapter.InsertOne(ctx, "products", bson.M{"sku": "ABC"})
		if !mongo.IsDuplicateKeyError(err) {
			t.Errorf("second InsertOne() error = %v, want duplicate key", err)
		}
	})

	t.Run("health check", func(t *testing.T) {
		if err := adapter.HealthCheck(ctx); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})
}
