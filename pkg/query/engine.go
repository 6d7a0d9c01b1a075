package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/nimburion/docquery/pkg/observability/logger"
)

// DefaultSeparator joins the two values of a groupBy key in presented results.
const DefaultSeparator = "-_-"

// DefaultMaxRecordsPerSet caps the page size of readRecords.
const DefaultMaxRecordsPerSet = 1000

// Store executes pipelines against named storage collections.
type Store interface {
	Aggregate(ctx context.Context, collection string, pipeline interface{}) ([]bson.M, error)
	InsertOne(ctx context.Context, collection string, document interface{}) (interface{}, error)
}

// Indexer is implemented by stores that can create indexes.
type Indexer interface {
	EnsureIndex(ctx context.Context, collection, field string, unique bool) error
}

// Observer receives one observation per engine operation. Outcome is "ok",
// "sentinel" or "error".
type Observer interface {
	ObserveQuery(operation, outcome string, duration time.Duration)
}

// Outcomes reported to the Observer.
const (
	OutcomeOK       = "ok"
	OutcomeSentinel = "sentinel"
	OutcomeError    = "error"
)

// Engine compiles decoded queries into pipelines and runs them on a Store.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	store       Store
	registry    *Registry
	logger      logger.Logger
	observer    Observer
	cache       ResultCache
	cacheTTL    time.Duration
	separator   string
	defaultMode MatchMode
	maxPerSet   int
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithResultCache caches groupBySet and measure results for ttl.
func WithResultCache(c ResultCache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = c
		e.cacheTTL = ttl
	}
}

func WithSeparator(sep string) Option {
	return func(e *Engine) {
		if sep != "" {
			e.separator = sep
		}
	}
}

// WithDefaultMatchMode sets the mode used for unrecognised searchtype values.
func WithDefaultMatchMode(m MatchMode) Option {
	return func(e *Engine) { e.defaultMode = m }
}

func WithMaxRecordsPerSet(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPerSet = n
		}
	}
}

// NewEngine creates an Engine over store and registry.
func NewEngine(store Store, registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		registry:    registry,
		logger:      logger.NewNop(),
		separator:   DefaultSeparator,
		defaultMode: MatchContains,
		maxPerSet:   DefaultMaxRecordsPerSet,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnsureIndexes creates the indexes declared by every registered collection.
// It is a no-op when the store cannot create indexes.
func (e *Engine) EnsureIndexes(ctx context.Context) error {
	ix, ok := e.store.(Indexer)
	if !ok {
		return nil
	}
	for _, name := range e.registry.Names() {
		c, _ := e.registry.Lookup(name)
		for _, index := range c.Indexes() {
			if err := ix.EnsureIndex(ctx, c.StorageName, index.Field, index.Unique); err != nil {
				return fmt.Errorf("ensure index %s.%s: %w", c.StorageName, index.Field, err)
			}
		}
	}
	return nil
}

func (e *Engine) matchMode(searchType string) MatchMode {
	if m, ok := ParseMatchMode(searchType); ok {
		return m
	}
	return e.defaultMode
}

func (e *Engine) track(op string) func(sentinel bool, err error) {
	start := time.Now()
	return func(sentinel bool, err error) {
		if e.observer == nil {
			return
		}
		outcome := OutcomeOK
		switch {
		case err != nil:
			outcome = OutcomeError
		case sentinel:
			outcome = OutcomeSentinel
		}
		e.observer.ObserveQuery(op, outcome, time.Since(start))
	}
}

func (e *Engine) resolve(ctx context.Context, op, name string) (*Collection, error) {
	c, fellBack, err := e.registry.Resolve(name)
	if err != nil {
		return nil, withOp(op, err)
	}
	if fellBack {
		e.logger.WithContext(ctx).Warn("unknown collection, using default",
			"operation", op, "collection", name, "default", c.Name)
	}
	return c, nil
}

func (e *Engine) aggregate(ctx context.Context, op string, c *Collection, pipeline mongo.Pipeline) ([]bson.M, error) {
	rows, err := e.store.Aggregate(ctx, c.StorageName, pipeline)
	if err != nil {
		e.logger.WithContext(ctx).Error("aggregation failed",
			"operation", op, "collection", c.Name, "error", err)
		return nil, storeFailure(op, err)
	}
	return rows, nil
}

// ReadRecords returns one page of documents matching the filter and the search.
func (e *Engine) ReadRecords(ctx context.Context, p ReadParams) (docs []Document, err error) {
	done := e.track(OpReadRecords)
	defer func() { done(false, err) }()

	c, err := e.resolve(ctx, OpReadRecords, p.Collection)
	if err != nil {
		return nil, err
	}
	pipeline, err := readPipeline(c, p, e.matchMode(p.SearchType), e.maxPerSet)
	if err != nil {
		return nil, err
	}
	rows, err := e.aggregate(ctx, OpReadRecords, c, pipeline)
	if err != nil {
		return nil, err
	}
	docs = make([]Document, 0, len(rows))
	hidden := c.HiddenFields()
	for _, r := range rows {
		docs = append(docs, presentDocument(r, hidden))
	}
	return docs, nil
}

// ReadRecordFieldValue projects one field of the matching documents. No match
// yields a single row with status "ko".
func (e *Engine) ReadRecordFieldValue(ctx context.Context, p FieldValueParams) ([]FieldValue, error) {
	return e.fieldValues(ctx, OpReadRecordFieldValue, p)
}

// View is ReadRecordFieldValue under its route name.
func (e *Engine) View(ctx context.Context, p FieldValueParams) ([]FieldValue, error) {
	return e.fieldValues(ctx, OpView, p)
}

func (e *Engine) fieldValues(ctx context.Context, op string, p FieldValueParams) (rows []FieldValue, err error) {
	sentinel := false
	done := e.track(op)
	defer func() { done(sentinel, err) }()

	c, err := e.resolve(ctx, op, p.Collection)
	if err != nil {
		return nil, err
	}
	pipeline, err := fieldValuePipeline(c, p)
	if err != nil {
		return nil, withOp(op, err)
	}
	raw, err := e.aggregate(ctx, op, c, pipeline)
	if err != nil {
		return nil, err
	}
	sentinel = len(raw) == 0
	return fieldValueRows(c, p, raw), nil
}

// GroupBy groups by two fields, counting documents and summing a third field.
func (e *Engine) GroupBy(ctx context.Context, p GroupByParams) (rows []GroupByRow, err error) {
	sentinel := false
	done := e.track(OpGroupBy)
	defer func() { done(sentinel, err) }()

	c, err := e.resolve(ctx, OpGroupBy, p.Collection)
	if err != nil {
		return nil, err
	}
	pipeline, err := groupByPipeline(c, p, e.matchMode(p.SearchType))
	if err != nil {
		return nil, err
	}
	raw, err := e.aggregate(ctx, OpGroupBy, c, pipeline)
	if err != nil {
		return nil, err
	}
	sentinel = len(raw) == 0
	return groupByRows(c, p, e.separator, raw), nil
}

// GroupBySet returns the distinct values of one field, ascending.
func (e *Engine) GroupBySet(ctx context.Context, p GroupBySetParams) (set []string, err error) {
	done := e.track(OpGroupBySet)
	defer func() { done(len(set) == 1 && set[0] == "", err) }()

	c, err := e.resolve(ctx, OpGroupBySet, p.Collection)
	if err != nil {
		return nil, err
	}
	pipeline, err := groupBySetPipeline(c, p)
	if err != nil {
		return nil, err
	}
	p.Collection = c.Name
	return cached(ctx, e, OpGroupBySet, cacheKey(OpGroupBySet, p.Encode()), func() ([]string, error) {
		raw, err := e.aggregate(ctx, OpGroupBySet, c, pipeline)
		if err != nil {
			return nil, err
		}
		return groupBySetValues(raw), nil
	})
}

// Calculate applies an arithmetic operation between two fields of one document.
// A missing document or an undefined result is reported with status "ko".
func (e *Engine) Calculate(ctx context.Context, p CalculateParams) (out Calculation, err error) {
	done := e.track(OpCalculate)
	defer func() { done(out.Status == StatusKO, err) }()

	c, err := e.resolve(ctx, OpCalculate, p.Collection)
	if err != nil {
		return Calculation{}, err
	}
	pipeline, err := calculatePipeline(c, p)
	if err != nil {
		return Calculation{}, err
	}
	raw, err := e.aggregate(ctx, OpCalculate, c, pipeline)
	if err != nil {
		return Calculation{}, err
	}
	return calculation(c, p, raw), nil
}

// Measure runs a named report. Unknown names yield a "not implemented" envelope.
func (e *Engine) Measure(ctx context.Context, p MeasureParams) (out MeasureResult, err error) {
	done := e.track(OpMeasure)
	defer func() { done(out.Status == StatusKO, err) }()

	def, ok := measures[p.Measure]
	if !ok {
		e.logger.WithContext(ctx).Debug("measure not implemented", "measure", p.Measure, "available", measureNames())
		return notImplementedMeasure(p), nil
	}
	if def.inputRequired && p.MeasureInput == "" {
		return MeasureResult{}, malformed(OpMeasure, ParamMeasureInput, "measure %q requires an input", p.Measure)
	}
	target := def.collection
	if target == "" {
		target = p.MeasureInput
	}
	c, err := e.resolve(ctx, OpMeasure, target)
	if err != nil {
		return MeasureResult{}, err
	}
	return cached(ctx, e, OpMeasure, cacheKey(OpMeasure, c.Name+p.Encode()), func() (MeasureResult, error) {
		raw, err := e.aggregate(ctx, OpMeasure, c, def.pipeline(p.MeasureInput))
		if err != nil {
			return MeasureResult{}, err
		}
		return measureResult(def, p, raw), nil
	})
}

// Create validates doc against the collection schema, inserts it and returns
// the stored document. Identifier keys in doc are ignored.
func (e *Engine) Create(ctx context.Context, p CreateParams, doc map[string]interface{}) (out Document, err error) {
	done := e.track(OpCreate)
	defer func() { done(false, err) }()

	c, err := e.resolve(ctx, OpCreate, p.Collection)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, malformed(OpCreate, "document", "document body is required")
	}
	stored := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k == "id" || k == IDField {
			continue
		}
		stored[k] = v
	}
	if err := c.ValidateDocument(stored); err != nil {
		return nil, malformed(OpCreate, "document", "%v", err)
	}

	id, err := e.store.InsertOne(ctx, c.StorageName, bson.M(stored))
	if errors.Is(err, ErrDuplicateKey) {
		return nil, &Error{Kind: KindConflict, Op: OpCreate, Param: "document", Err: err}
	}
	if err != nil {
		e.logger.WithContext(ctx).Error("insert failed", "collection", c.Name, "error", err)
		return nil, storeFailure(OpCreate, err)
	}
	raw, err := e.aggregate(ctx, OpCreate, c, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: IDField, Value: id}}}},
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		fallback := bson.M(stored)
		fallback[IDField] = id
		return presentDocument(fallback, c.HiddenFields()), nil
	}
	return presentDocument(raw[0], c.HiddenFields()), nil
}

// Sample returns the documents whose identifier renders as p.DocumentID.
func (e *Engine) Sample(ctx context.Context, p SampleParams) (docs []Document, err error) {
	done := e.track(OpSample)
	defer func() { done(false, err) }()

	c, err := e.resolve(ctx, OpSample, p.Collection)
	if err != nil {
		return nil, err
	}
	pipeline, err := samplePipeline(c, p)
	if err != nil {
		return nil, err
	}
	raw, err := e.aggregate(ctx, OpSample, c, pipeline)
	if err != nil {
		return nil, err
	}
	docs = make([]Document, 0, len(raw))
	for _, r := range raw {
		docs = append(docs, presentDocument(r, c.HiddenFields()))
	}
	return docs, nil
}

// Analytics runs the four inventory aggregations concurrently. All of them
// are required: the first failure cancels the others and fails the call.
func (e *Engine) Analytics(ctx context.Context) (out Analytics, err error) {
	done := e.track(OpAnalytics)
	defer func() { done(false, err) }()

	c, err := e.resolve(ctx, OpAnalytics, movementsCollection)
	if err != nil {
		return Analytics{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	run := func(pipeline mongo.Pipeline, into *[]bson.M) {
		g.Go(func() error {
			rows, err := e.aggregate(gctx, OpAnalytics, c, pipeline)
			if err != nil {
				return err
			}
			*into = rows
			return nil
		})
	}
	var total, annual, monthly, stock []bson.M
	run(inventoryCostPipeline(0), &total)
	run(inventoryCostPipeline(4), &annual)
	run(inventoryCostPipeline(7), &monthly)
	run(stockPipeline(), &stock)
	if err := g.Wait(); err != nil {
		return Analytics{}, err
	}

	return Analytics{
		ActualInventoryCost:           inventoryBuckets(total),
		AnnualInventoryCostVariation:  inventoryBuckets(annual),
		MonthlyInventoryCostVariation: inventoryBuckets(monthly),
		ActualStock:                   stockBuckets(stock),
	}, nil
}
