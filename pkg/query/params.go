package query

import (
	"net/url"
	"strconv"
	"strings"
)

// Operation names, used for errors, metrics and cache keys.
const (
	OpReadRecords          = "readrecords"
	OpReadRecordFieldValue = "readrecordfieldvalue"
	OpView                 = "view"
	OpGroupBy              = "groupby"
	OpGroupBySet           = "groupbyset"
	OpCalculate            = "calculate"
	OpMeasure              = "measure"
	OpCreate               = "create"
	OpSample               = "sample"
	OpAnalytics            = "analytics"
)

// Wire parameter names. Each marker appears on the wire as "&name=".
const (
	ParamCollection         = "collection"
	ParamFilterField        = "filterfield"
	ParamFilterValue        = "filtervalue"
	ParamSearchField        = "searchfield"
	ParamSearchValue        = "searchvalue"
	ParamSearchType         = "searchtype"
	ParamQuerySet           = "queryset"
	ParamRecordsPerSet      = "queryrecordsperset"
	ParamOrderField         = "orderfield"
	ParamOrderType          = "ordertype"
	ParamOutputFieldName    = "outputfieldname"
	ParamFirstGroupByField  = "firstgroupbyfield"
	ParamSecondGroupByField = "secondgroupbyfield"
	ParamAggregateSumField  = "aggregatesumfield"
	ParamGroupByField       = "groupbyfield"
	ParamDocumentID         = "documentid"
	ParamOperation          = "operation"
	ParamFirstOperandField  = "firstoperandfield"
	ParamSecondOperandField = "secondoperandfield"
	ParamMeasure            = "measure"
	ParamMeasureInput       = "measureinput"
	ParamControlInfo        = "controlinfo"
)

// Parameter order per operation. Decoding depends on it.
var (
	readRecordsOrder = []string{
		ParamCollection, ParamFilterField, ParamFilterValue, ParamSearchField, ParamSearchValue,
		ParamSearchType, ParamQuerySet, ParamRecordsPerSet, ParamOrderField, ParamOrderType,
	}
	fieldValueOrder = []string{ParamCollection, ParamSearchField, ParamSearchValue, ParamOutputFieldName}
	groupByOrder    = []string{
		ParamCollection, ParamFirstGroupByField, ParamSecondGroupByField, ParamSearchField,
		ParamSearchValue, ParamSearchType, ParamAggregateSumField,
	}
	groupBySetOrder = []string{ParamCollection, ParamGroupByField}
	createOrder     = []string{ParamCollection}
	calculateOrder  = []string{
		ParamCollection, ParamDocumentID, ParamOperation, ParamFirstOperandField, ParamSecondOperandField,
	}
	measureOrder = []string{ParamMeasure, ParamMeasureInput}
	sampleOrder  = []string{ParamCollection, ParamDocumentID}
)

// SortAscending is the only ordertype value that sorts ascending; anything else sorts descending.
const SortAscending = "asc"

// ReadParams selects a page of documents.
type ReadParams struct {
	Collection    string
	FilterField   string
	FilterValue   string
	SearchField   string
	SearchValue   string
	SearchType    string
	QuerySet      int
	RecordsPerSet int
	OrderField    string
	OrderType     string
}

// Encode renders p in the legacy wire grammar.
func (p ReadParams) Encode() string {
	return encode(readRecordsOrder, []string{
		p.Collection, p.FilterField, p.FilterValue, p.SearchField, p.SearchValue, p.SearchType,
		strconv.Itoa(p.QuerySet), strconv.Itoa(p.RecordsPerSet), p.OrderField, p.OrderType,
	})
}

// FieldValueParams projects one field of the documents matching SearchField = SearchValue.
type FieldValueParams struct {
	Collection      string
	SearchField     string
	SearchValue     string
	OutputFieldName string
}

func (p FieldValueParams) Encode() string {
	return encode(fieldValueOrder, []string{p.Collection, p.SearchField, p.SearchValue, p.OutputFieldName})
}

// GroupByParams groups by two fields, counting documents and summing AggregateSumField.
type GroupByParams struct {
	Collection         string
	FirstGroupByField  string
	SecondGroupByField string
	SearchField        string
	SearchValue        string
	SearchType         string
	AggregateSumField  string
}

func (p GroupByParams) Encode() string {
	return encode(groupByOrder, []string{
		p.Collection, p.FirstGroupByField, p.SecondGroupByField, p.SearchField, p.SearchValue,
		p.SearchType, p.AggregateSumField,
	})
}

// GroupBySetParams extracts the distinct values of one field.
type GroupBySetParams struct {
	Collection   string
	GroupByField string
}

func (p GroupBySetParams) Encode() string {
	return encode(groupBySetOrder, []string{p.Collection, p.GroupByField})
}

// CreateParams names the collection receiving a new document.
type CreateParams struct {
	Collection string
}

func (p CreateParams) Encode() string {
	return encode(createOrder, []string{p.Collection})
}

// CalculateParams applies Operation between two numeric fields of one document.
type CalculateParams struct {
	Collection         string
	DocumentID         string
	Operation          string
	FirstOperandField  string
	SecondOperandField string
}

func (p CalculateParams) Encode() string {
	return encode(calculateOrder, []string{
		p.Collection, p.DocumentID, p.Operation, p.FirstOperandField, p.SecondOperandField,
	})
}

// MeasureParams names a predefined report and its optional input.
type MeasureParams struct {
	Measure      string
	MeasureInput string
}

func (p MeasureParams) Encode() string {
	return encode(measureOrder, []string{p.Measure, p.MeasureInput})
}

// SampleParams matches documents by the string form of their identifier.
type SampleParams struct {
	Collection string
	DocumentID string
}

func (p SampleParams) Encode() string {
	return encode(sampleOrder, []string{p.Collection, p.DocumentID})
}

func marker(name string) string {
	return "&" + name + "="
}

func encode(names, values []string) string {
	var b strings.Builder
	for i, name := range names {
		b.WriteString(marker(name))
		b.WriteString(url.PathEscape(values[i]))
	}
	b.WriteString(marker(ParamControlInfo))
	return b.String()
}
