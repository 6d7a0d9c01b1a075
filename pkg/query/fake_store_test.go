package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type aggregateCall struct {
	collection string
	pipeline   mongo.Pipeline
}

// fakeStore records pipelines and answers them from respond.
type fakeStore struct {
	mu       sync.Mutex
	calls    []aggregateCall
	inserted []bson.M
	respond  func(collection string, pipeline mongo.Pipeline) ([]bson.M, error)
	insertFn func(collection string, doc bson.M) (interface{}, error)
}

func (f *fakeStore) Aggregate(_ context.Context, collection string, pipeline interface{}) ([]bson.M, error) {
	p, _ := pipeline.(mongo.Pipeline)
	f.mu.Lock()
	f.calls = append(f.calls, aggregateCall{collection: collection, pipeline: p})
	f.mu.Unlock()
	if f.respond == nil {
		return nil, nil
	}
	return f.respond(collection, p)
}

func (f *fakeStore) InsertOne(_ context.Context, collection string, document interface{}) (interface{}, error) {
	doc, _ := document.(bson.M)
	f.mu.Lock()
	f.inserted = append(f.inserted, doc)
	f.mu.Unlock()
	if f.insertFn != nil {
		return f.insertFn(collection, doc)
	}
	return primitive.NewObjectID(), nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeStore) lastCall() aggregateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func rows(docs ...bson.M) func(string, mongo.Pipeline) ([]bson.M, error) {
	return func(string, mongo.Pipeline) ([]bson.M, error) {
		return docs, nil
	}
}

func stage(p mongo.Pipeline, name string) (interface{}, bool) {
	for _, s := range p {
		if len(s) == 1 && s[0].Key == name {
			return s[0].Value, true
		}
	}
	return nil, false
}

func stageNames(p mongo.Pipeline) []string {
	names := make([]string, 0, len(p))
	for _, s := range p {
		names = append(names, s[0].Key)
	}
	return names
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (o *recordingObserver) ObserveQuery(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string][]string{}
	}
	o.outcomes[op] = append(o.outcomes[op], outcome)
}

func (o *recordingObserver) last(op string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	list := o.outcomes[op]
	if len(list) == 0 {
		return ""
	}
	return list[len(list)-1]
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	hits    int
	failGet bool
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, false, errors.New("cache unavailable")
	}
	v, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string][]byte{}
	}
	c.entries[key] = value
	return nil
}
