package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MatchMode selects how a search value is compared with a field.
type MatchMode int

const (
	MatchContains MatchMode = iota
	MatchBeginsWith
	MatchEndsWith
	MatchExact
	MatchAny
)

var matchModeNames = map[MatchMode]string{
	MatchContains:   "Contains",
	MatchBeginsWith: "Begins with",
	MatchEndsWith:   "Ends with",
	MatchExact:      "Exact match",
	MatchAny:        "Any",
}

// String returns the wire spelling of m.
func (m MatchMode) String() string {
	if s, ok := matchModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("MatchMode(%d)", int(m))
}

// MatchModes lists every mode in declaration order.
func MatchModes() []MatchMode {
	return []MatchMode{MatchContains, MatchBeginsWith, MatchEndsWith, MatchExact, MatchAny}
}

// ParseMatchMode reads a wire spelling. Matching ignores case and surrounding space.
func ParseMatchMode(s string) (MatchMode, bool) {
	s = strings.TrimSpace(s)
	for m, name := range matchModeNames {
		if strings.EqualFold(name, s) {
			return m, true
		}
	}
	return MatchContains, false
}

// BuildSearch returns the pattern predicate for field. Identifier fields are
// stored as ObjectIDs, so they are always compared by exact equality on the
// converted value whatever mode is requested. Other values are matched
// literally: regex metacharacters in value carry no special meaning.
func BuildSearch(field, value string, mode MatchMode) (bson.M, error) {
	if field == "" {
		return bson.M{}, nil
	}
	if IsIDField(field) {
		oid, err := objectID(ParamSearchValue, value)
		if err != nil {
			return nil, err
		}
		return bson.M{IDField: oid}, nil
	}

	quoted := regexp.QuoteMeta(value)
	var pattern string
	switch mode {
	case MatchBeginsWith:
		pattern = "^" + quoted
	case MatchEndsWith:
		pattern = quoted + "$"
	case MatchExact:
		pattern = "^" + quoted + "$"
	case MatchContains:
		pattern = quoted
	case MatchAny:
		return bson.M{}, nil
	default:
		return nil, malformed("", ParamSearchType, "unsupported match mode %d", int(mode))
	}
	return bson.M{field: bson.M{"$regex": pattern}}, nil
}

// BuildFilter returns the equality predicate for field. An empty value means
// no constraint, not a match on the empty string.
func BuildFilter(field, value string, kind FieldKind) (bson.M, error) {
	if field == "" || value == "" {
		return bson.M{}, nil
	}
	return equality(ParamFilterValue, field, value, kind)
}

// equality compares field with value coerced to the field's storage type.
func equality(param, field, value string, kind FieldKind) (bson.M, error) {
	if IsIDField(field) {
		oid, err := objectID(param, value)
		if err != nil {
			return nil, err
		}
		return bson.M{IDField: oid}, nil
	}
	switch kind {
	case FieldNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, malformed("", param, "%q is not a number", value)
		}
		return bson.M{field: n}, nil
	case FieldBool:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return nil, malformed("", param, "%q is not a boolean", value)
		}
		return bson.M{field: b}, nil
	default:
		return bson.M{field: value}, nil
	}
}

// And joins the non-empty predicates. Zero predicates match everything.
func And(preds ...bson.M) bson.M {
	var kept bson.A
	for _, p := range preds {
		if len(p) > 0 {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return bson.M{}
	case 1:
		return kept[0].(bson.M)
	default:
		return bson.M{"$and": kept}
	}
}

func objectID(param, value string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(value))
	if err != nil {
		return primitive.NilObjectID, malformed("", param, "%q is not a valid identifier", value)
	}
	return oid, nil
}
