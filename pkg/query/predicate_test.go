package query

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBuildSearch_Modes(t *testing.T) {
	tests := []struct {
		mode MatchMode
		want bson.M
	}{
		{MatchBeginsWith, bson.M{"sku": bson.M{"$regex": "^AB"}}},
		{MatchEndsWith, bson.M{"sku": bson.M{"$regex": "AB$"}}},
		{MatchExact, bson.M{"sku": bson.M{"$regex": "^AB$"}}},
		{MatchContains, bson.M{"sku": bson.M{"$regex": "AB"}}},
		{MatchAny, bson.M{}},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			got, err := BuildSearch("sku", "AB", tt.mode)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildSearch_QuotesRegexMetacharacters(t *testing.T) {
	got, err := BuildSearch("ean", "8.4(1)*", MatchBeginsWith)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := bson.M{"ean": bson.M{"$regex": `^8\.4\(1\)\*`}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBuildSearch_EmptyFieldIsUnconstrained(t *testing.T) {
	got, err := BuildSearch("", "anything", MatchExact)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestBuildSearch_InvalidIdentifier(t *testing.T) {
	_, err := BuildSearch("id", "not-hex", MatchContains)
	if !errors.Is(err, ErrMalformedQuery) {
		t.Fatalf("expected ErrMalformedQuery, got %v", err)
	}
}

// Property 3: identifier searches are exact matches on the ObjectID for every mode
func TestProperty_IdentifierSearchIgnoresMode(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	modes := make([]interface{}, 0, 5)
	for _, m := range MatchModes() {
		modes = append(modes, m)
	}

	properties.Property("id predicate is ObjectID equality", prop.ForAll(
		func(raw []byte, field string, mode MatchMode) bool {
			var oid primitive.ObjectID
			copy(oid[:], raw)
			got, err := BuildSearch(field, oid.Hex(), mode)
			if err != nil {
				return false
			}
			return len(got) == 1 && got[IDField] == oid
		},
		gen.SliceOfN(12, gen.UInt8()),
		gen.OneConstOf("id", "_id"),
		gen.OneConstOf(modes...),
	))

	properties.TestingRun(t)
}

func TestParseMatchMode(t *testing.T) {
	tests := []struct {
		in   string
		want MatchMode
		ok   bool
	}{
		{"Begins with", MatchBeginsWith, true},
		{"ends WITH", MatchEndsWith, true},
		{" Exact match ", MatchExact, true},
		{"Contains", MatchContains, true},
		{"Any", MatchAny, true},
		{"Fuzzy", MatchContains, false},
		{"", MatchContains, false},
	}
	for _, tt := range tests {
		got, ok := ParseMatchMode(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMatchMode(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBuildFilter(t *testing.T) {
	oid := primitive.NewObjectID()
	tests := []struct {
		name    string
		field   string
		value   string
		kind    FieldKind
		want    bson.M
		wantErr bool
	}{
		{name: "empty value", field: "brand", value: "", want: bson.M{}},
		{name: "string", field: "brand", value: "Acme", want: bson.M{"brand": "Acme"}},
		{name: "number", field: "units", value: "12.5", kind: FieldNumber, want: bson.M{"units": 12.5}},
		{name: "bool", field: "active", value: "true", kind: FieldBool, want: bson.M{"active": true}},
		{name: "identifier", field: "id", value: oid.Hex(), want: bson.M{IDField: oid}},
		{name: "bad number", field: "units", value: "many", kind: FieldNumber, wantErr: true},
		{name: "bad identifier", field: "_id", value: "123", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildFilter(tt.field, tt.value, tt.kind)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedQuery) {
					t.Fatalf("expected ErrMalformedQuery, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnd(t *testing.T) {
	a := bson.M{"a": 1}
	b := bson.M{"b": 2}

	if got := And(); len(got) != 0 {
		t.Errorf("And() = %v, want empty", got)
	}
	if got := And(bson.M{}, a); !reflect.DeepEqual(got, a) {
		t.Errorf("And({}, a) = %v, want %v", got, a)
	}
	want := bson.M{"$and": bson.A{a, b}}
	if got := And(a, bson.M{}, b); !reflect.DeepEqual(got, want) {
		t.Errorf("And(a, {}, b) = %v, want %v", got, want)
	}
}
