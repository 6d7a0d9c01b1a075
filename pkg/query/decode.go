package query

import (
	"net/url"
	"strconv"
	"strings"
)

// decodeFields percent-decodes encoded once and recovers the values of names,
// in order. Each value runs from its marker to the marker of the following
// parameter, or to "&controlinfo=" (or end of input) for the last one.
//
// Markers are not escaped inside values: a value holding "&searchfield=" or a
// similar marker shifts the following parameters. Callers that need such
// values must avoid this grammar.
func decodeFields(op, encoded string, names []string) (map[string]string, error) {
	decoded, err := url.PathUnescape(encoded)
	if err != nil {
		return nil, malformed(op, "", "invalid percent-encoding: %v", err)
	}

	values := make(map[string]string, len(names))
	for i, name := range names {
		_, rest, found := strings.Cut(decoded, marker(name))
		if !found {
			return nil, malformed(op, name, "missing parameter")
		}
		end := marker(ParamControlInfo)
		if i+1 < len(names) {
			end = marker(names[i+1])
		}
		value, _, found := strings.Cut(rest, end)
		if !found && i+1 < len(names) {
			return nil, malformed(op, names[i+1], "missing parameter")
		}
		values[name] = value
	}
	return values, nil
}

func positiveInt(op, name, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, malformed(op, name, "not a number: %q", raw)
	}
	if n < 1 {
		return 0, malformed(op, name, "must be at least 1, got %d", n)
	}
	return n, nil
}

// DecodeReadRecords parses a readrecords query.
func DecodeReadRecords(encoded string) (ReadParams, error) {
	v, err := decodeFields(OpReadRecords, encoded, readRecordsOrder)
	if err != nil {
		return ReadParams{}, err
	}
	set, err := positiveInt(OpReadRecords, ParamQuerySet, v[ParamQuerySet])
	if err != nil {
		return ReadParams{}, err
	}
	perSet, err := positiveInt(OpReadRecords, ParamRecordsPerSet, v[ParamRecordsPerSet])
	if err != nil {
		return ReadParams{}, err
	}
	return ReadParams{
		Collection:    v[ParamCollection],
		FilterField:   v[ParamFilterField],
		FilterValue:   v[ParamFilterValue],
		SearchField:   v[ParamSearchField],
		SearchValue:   v[ParamSearchValue],
		SearchType:    v[ParamSearchType],
		QuerySet:      set,
		RecordsPerSet: perSet,
		OrderField:    v[ParamOrderField],
		OrderType:     v[ParamOrderType],
	}, nil
}

// DecodeFieldValue parses a view / readrecordfieldvalue query.
func DecodeFieldValue(encoded string) (FieldValueParams, error) {
	v, err := decodeFields(OpReadRecordFieldValue, encoded, fieldValueOrder)
	if err != nil {
		return FieldValueParams{}, err
	}
	return FieldValueParams{
		Collection:      v[ParamCollection],
		SearchField:     v[ParamSearchField],
		SearchValue:     v[ParamSearchValue],
		OutputFieldName: v[ParamOutputFieldName],
	}, nil
}

// DecodeGroupBy parses a groupby query.
func DecodeGroupBy(encoded string) (GroupByParams, error) {
	v, err := decodeFields(OpGroupBy, encoded, groupByOrder)
	if err != nil {
		return GroupByParams{}, err
	}
	return GroupByParams{
		Collection:         v[ParamCollection],
		FirstGroupByField:  v[ParamFirstGroupByField],
		SecondGroupByField: v[ParamSecondGroupByField],
		SearchField:        v[ParamSearchField],
		SearchValue:        v[ParamSearchValue],
		SearchType:         v[ParamSearchType],
		AggregateSumField:  v[ParamAggregateSumField],
	}, nil
}

// DecodeGroupBySet parses a groupbyset query.
func DecodeGroupBySet(encoded string) (GroupBySetParams, error) {
	v, err := decodeFields(OpGroupBySet, encoded, groupBySetOrder)
	if err != nil {
		return GroupBySetParams{}, err
	}
	return GroupBySetParams{Collection: v[ParamCollection], GroupByField: v[ParamGroupByField]}, nil
}

// DecodeCreate parses a create query.
func DecodeCreate(encoded string) (CreateParams, error) {
	v, err := decodeFields(OpCreate, encoded, createOrder)
	if err != nil {
		return CreateParams{}, err
	}
	return CreateParams{Collection: v[ParamCollection]}, nil
}

// DecodeCalculate parses a calculations query.
func DecodeCalculate(encoded string) (CalculateParams, error) {
	v, err := decodeFields(OpCalculate, encoded, calculateOrder)
	if err != nil {
		return CalculateParams{}, err
	}
	return CalculateParams{
		Collection:         v[ParamCollection],
		DocumentID:         v[ParamDocumentID],
		Operation:          v[ParamOperation],
		FirstOperandField:  v[ParamFirstOperandField],
		SecondOperandField: v[ParamSecondOperandField],
	}, nil
}

// DecodeMeasure parses a measures query.
func DecodeMeasure(encoded string) (MeasureParams, error) {
	v, err := decodeFields(OpMeasure, encoded, measureOrder)
	if err != nil {
		return MeasureParams{}, err
	}
	return MeasureParams{Measure: v[ParamMeasure], MeasureInput: v[ParamMeasureInput]}, nil
}

// DecodeSample parses a sample query.
func DecodeSample(encoded string) (SampleParams, error) {
	v, err := decodeFields(OpSample, encoded, sampleOrder)
	if err != nil {
		return SampleParams{}, err
	}
	return SampleParams{Collection: v[ParamCollection], DocumentID: v[ParamDocumentID]}, nil
}
