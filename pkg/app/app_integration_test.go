package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcmongodb "github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/nimburion/docquery/pkg/collections"
	"github.com/nimburion/docquery/pkg/config"
	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/query"
	"github.com/nimburion/docquery/pkg/testutil"
)

type envelope struct {
	Results json.RawMessage `json:"results"`
	Code    string          `json:"code"`
}

func call(t *testing.T, h http.Handler, method, path string, body interface{}) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s %s: status %d: %s", method, path, rec.Code, rec.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env
}

func create(t *testing.T, h http.Handler, collection string, doc map[string]interface{}) query.Document {
	t.Helper()
	env := call(t, h, http.MethodPost, collections.Prefix+"/create/"+query.CreateParams{Collection: collection}.Encode(), doc)
	var out query.Document
	if err := json.Unmarshal(env.Results, &out); err != nil {
		t.Fatalf("decode created document: %v", err)
	}
	return out
}

func TestApp_Integration(t *testing.T) {
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

	cfg := config.DefaultConfig()
	cfg.Database.URL = uri
	cfg.Database.DatabaseName = "docquery_e2e"
	cfg.Management.Enabled = false
	cfg.HTTP.Port = 0

	a, err := New(ctx, cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close(ctx)
	h := a.Public().Handler()

	for _, sku := range []string{"XYZ", "ABD", "ABC"} {
		create(t, h, "products", map[string]interface{}{"sku": sku, "shortDescription": "item " + sku})
	}
	priced := create(t, h, "products", map[string]interface{}{
		"sku": "PRC", "shortDescription": "priced", "costPerUnit": 200, "pricePerUnit": 150,
	})
	for _, m := range []struct {
		sku   string
		units int
		store string
	}{{"S", 10, "north"}, {"S", -3, "south"}, {"OTHER", 5, "north"}} {
		create(t, h, "productmovements", map[string]interface{}{"productSku": m.sku, "units": m.units, "store": m.store})
	}

	t.Run("readRecords pages by prefix in order", func(t *testing.T) {
		path := collections.Prefix + "/readrecords/" + query.ReadParams{
			Collection: "products", SearchField: "sku", SearchValue: "AB", SearchType: "Begins with",
			QuerySet: 1, RecordsPerSet: 2, OrderField: "sku", OrderType: "asc",
		}.Encode()
		var docs []query.Document
		if err := json.Unmarshal(call(t, h, http.MethodGet, path, nil).Results, &docs); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(docs) != 2 || docs[0]["sku"] != "ABC" || docs[1]["sku"] != "ABD" {
			t.Errorf("docs = %v, want skus [ABC ABD]", docs)
		}
	})

	t.Run("calculate percentage over first operand", func(t *testing.T) {
		path := collections.Prefix + "/calculations/" + query.CalculateParams{
			Collection: "products", DocumentID: priced["id"].(string), Operation: query.OperationPercentageOverFirstOperand,
			FirstOperandField: "costPerUnit", SecondOperandField: "pricePerUnit",
		}.Encode()
		var out query.Calculation
		if err := json.Unmarshal(call(t, h, http.MethodGet, path, nil).Results, &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.Result != float64(25) || out.Status != query.StatusOK {
			t.Errorf("calculation = %+v, want 25", out)
		}
	})

	t.Run("measure stock units by sku", func(t *testing.T) {
		path := collections.Prefix + "/measures/" + query.MeasureParams{Measure: query.MeasureProductStockUnitsBySKU, MeasureInput: "S"}.Encode()
		var out query.MeasureResult
		if err := json.Unmarshal(call(t, h, http.MethodGet, path, nil).Results, &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.Output != 7 || out.Status != query.StatusOK {
			t.Errorf("measure = %+v, want 7", out)
		}
	})

	t.Run("groupBy counts and sums add up", func(t *testing.T) {
		path := collections.Prefix + "/groupby/" + query.GroupByParams{
			Collection: "productmovements", FirstGroupByField: "productSku", SecondGroupByField: "store",
			SearchType: "Any", AggregateSumField: "units",
		}.Encode()
		var rows []query.GroupByRow
		if err := json.Unmarshal(call(t, h, http.MethodGet, path, nil).Results, &rows); err != nil {
			t.Fatalf("decode: %v", err)
		}
		var count int64
		var sum float64
		for _, r := range rows {
			count += r.DocumentCount
			sum += r.AggregateSum
		}
		if len(rows) != 3 || count != 3 || sum != 12 {
			t.Errorf("rows = %+v, want 3 groups totalling 3 documents and 12 units", rows)
		}
	})

	t.Run("groupBySet is distinct and sorted", func(t *testing.T) {
		path := collections.Prefix + "/groupbyset/" + query.GroupBySetParams{Collection: "productmovements", GroupByField: "productSku"}.Encode()
		var set []string
		if err := json.Unmarshal(call(t, h, http.MethodGet, path, nil).Results, &set); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(set) != 2 || set[0] != "OTHER" || set[1] != "S" {
			t.Errorf("set = %v, want [OTHER S]", set)
		}
	})

	t.Run("sample finds a document by id", func(t *testing.T) {
		path := collections.Prefix + "/sample/" + query.SampleParams{Collection: "products", DocumentID: priced["id"].(string)}.Encode()
		var docs []query.Document
		if err := json.Unmarshal(call(t, h, http.MethodGet, path, nil).Results, &docs); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(docs) != 1 || docs[0]["sku"] != "PRC" {
			t.Errorf("docs = %v", docs)
		}
	})

	t.Run("duplicate sku is rejected by the unique index", func(t *testing.T) {
		raw, _ := json.Marshal(map[string]interface{}{"sku": "XYZ", "shortDescription": "again"})
		req := httptest.NewRequest(http.MethodPost, collections.Prefix+"/create/"+query.CreateParams{Collection: "products"}.Encode(), bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		var env envelope
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
		if rec.Code != http.StatusConflict || env.Code != "resource.conflict" {
			t.Errorf("status = %d, code = %q, want 409 resource.conflict", rec.Code, env.Code)
		}
	})
}
