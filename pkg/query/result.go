package query

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status values carried by self-describing results.
const (
	StatusOK = "ok"
	StatusKO = "ko"
)

// Placeholder values used by sentinel results.
const (
	NotFoundValue       = "not found"
	NotAvailableValue   = "not available"
	NotImplementedValue = "not implemented"
)

// Document is a stored document as returned to callers: the identifier is
// exposed as "id" in hex form, the version key and hidden fields are removed.
type Document map[string]interface{}

// FieldValue is one row of a readRecordFieldValue / view result.
type FieldValue struct {
	ID               string      `json:"id,omitempty"`
	InputCollection  string      `json:"inputCollection"`
	InputFieldName   string      `json:"inputFieldName"`
	InputFieldValue  string      `json:"inputFieldValue"`
	OutputFieldName  string      `json:"outputFieldName"`
	OutputFieldValue interface{} `json:"outputFieldValue"`
	OutputStatus     string      `json:"outputStatus"`
}

// GroupByRow is one group of a two-field groupBy. GroupValue joins both values with the separator.
type GroupByRow struct {
	GroupValue         string  `json:"groupValue"`
	FirstGroupByValue  string  `json:"firstGroupByValue"`
	SecondGroupByValue string  `json:"secondGroupByValue"`
	DocumentCount      int64   `json:"documentCount"`
	AggregateSum       float64 `json:"aggregateSum"`
	Collection         string  `json:"collection"`
	FirstGroupByField  string  `json:"firstGroupByField"`
	SecondGroupByField string  `json:"secondGroupByField"`
	SearchField        string  `json:"searchField"`
	SearchValue        string  `json:"searchValue"`
	SearchType         string  `json:"searchType"`
	AggregateSumField  string  `json:"aggregateSumField"`
}

// Calculation is the result of an arithmetic operation between two fields of one document.
type Calculation struct {
	Collection         string      `json:"collection"`
	DocumentID         string      `json:"documentId"`
	Operation          string      `json:"operation"`
	FirstOperandField  string      `json:"firstOperandField"`
	FirstOperandValue  interface{} `json:"firstOperandValue"`
	SecondOperandField string      `json:"secondOperandField"`
	SecondOperandValue interface{} `json:"secondOperandValue"`
	Result             interface{} `json:"result"`
	Status             string      `json:"status"`
}

// MeasureResult is the uniform envelope of every named measure.
type MeasureResult struct {
	Measure     string  `json:"measure"`
	Description string  `json:"measureDescription"`
	Label       string  `json:"measureLabel"`
	Input       string  `json:"measureInput"`
	Output      float64 `json:"measureOutput"`
	Unit        string  `json:"measureUnit"`
	Status      string  `json:"measureStatus"`
}

// presentDocument converts a raw store row into a Document.
func presentDocument(raw bson.M, hidden []string) Document {
	out := make(Document, len(raw))
	for k, v := range raw {
		switch k {
		case IDField:
			out["id"] = presentValue(v)
		case "__v":
		default:
			out[k] = presentValue(v)
		}
	}
	for _, h := range hidden {
		delete(out, h)
	}
	return out
}

// presentValue normalises driver types into JSON-friendly values.
func presentValue(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case primitive.Decimal128:
		return t.String()
	case bson.M:
		m := make(map[string]interface{}, len(t))
		for k, inner := range t {
			m[k] = presentValue(inner)
		}
		return m
	case bson.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = presentValue(e.Value)
		}
		return m
	case bson.A:
		a := make([]interface{}, len(t))
		for i, inner := range t {
			a[i] = presentValue(inner)
		}
		return a
	default:
		return v
	}
}

// stringify renders a grouped value as text. Nil renders empty.
func stringify(v interface{}) string {
	switch t := presentValue(v).(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return fmt.Sprintf("%.0f", t)
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

// toFloat reads a numeric aggregate result.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case primitive.Decimal128:
		f, err := decimalToFloat(n)
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(v interface{}) int64 {
	f, _ := toFloat(v)
	return int64(f)
}

func decimalToFloat(d primitive.Decimal128) (float64, error) {
	return strconv.ParseFloat(d.String(), 64)
}

// distinctStrings stringifies values in the order given, dropping nil and
// any value whose rendering was already seen. The store sorts by native type,
// so numbers stay in numeric order.
func distinctStrings(values []interface{}) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		s := stringify(v)
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
