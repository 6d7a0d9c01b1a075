package query

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Stage keys of the composite groupBy identifier.
const (
	groupKeyFirst  = "first"
	groupKeySecond = "second"
)

func fieldRef(name string) string {
	if IsIDField(name) {
		return "$" + IDField
	}
	return "$" + name
}

func storageField(name string) string {
	if IsIDField(name) {
		return IDField
	}
	return name
}

func checkFields(op string, c *Collection, params map[string]string) error {
	for param, name := range params {
		if err := c.CheckField(name); err != nil {
			return malformed(op, param, "%v", err)
		}
	}
	return nil
}

func required(op, param, value string) error {
	if value == "" {
		return malformed(op, param, "value is required")
	}
	return nil
}

func hiddenProjection(c *Collection) bson.D {
	hidden := c.HiddenFields()
	if len(hidden) == 0 {
		return nil
	}
	proj := bson.D{}
	for _, h := range hidden {
		proj = append(proj, bson.E{Key: h, Value: 0})
	}
	return bson.D{{Key: "$project", Value: proj}}
}

// readPipeline filters, searches, sorts and paginates.
func readPipeline(c *Collection, p ReadParams, mode MatchMode, maxPerSet int) (mongo.Pipeline, error) {
	if err := checkFields(OpReadRecords, c, map[string]string{
		ParamFilterField: p.FilterField,
		ParamSearchField: p.SearchField,
		ParamOrderField:  p.OrderField,
	}); err != nil {
		return nil, err
	}
	if p.QuerySet < 1 {
		return nil, malformed(OpReadRecords, ParamQuerySet, "must be at least 1, got %d", p.QuerySet)
	}
	if p.RecordsPerSet < 1 || (maxPerSet > 0 && p.RecordsPerSet > maxPerSet) {
		return nil, malformed(OpReadRecords, ParamRecordsPerSet, "must be between 1 and %d, got %d", maxPerSet, p.RecordsPerSet)
	}

	filterField, _ := c.Field(p.FilterField)
	filter, err := BuildFilter(p.FilterField, p.FilterValue, filterField.Kind)
	if err != nil {
		return nil, withOp(OpReadRecords, err)
	}
	search, err := BuildSearch(p.SearchField, p.SearchValue, mode)
	if err != nil {
		return nil, withOp(OpReadRecords, err)
	}

	pipeline := mongo.Pipeline{{{Key: "$match", Value: And(filter, search)}}}
	if p.OrderField != "" {
		dir := -1
		if p.OrderType == SortAscending {
			dir = 1
		}
		sortSpec := bson.D{{Key: storageField(p.OrderField), Value: dir}}
		if !IsIDField(p.OrderField) {
			sortSpec = append(sortSpec, bson.E{Key: IDField, Value: 1})
		}
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sortSpec}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$skip", Value: int64(p.QuerySet-1) * int64(p.RecordsPerSet)}},
		bson.D{{Key: "$limit", Value: int64(p.RecordsPerSet)}},
	)
	if proj := hiddenProjection(c); proj != nil {
		pipeline = append(pipeline, proj)
	}
	return pipeline, nil
}

// fieldValuePipeline projects OutputFieldName of every document where SearchField equals SearchValue.
func fieldValuePipeline(c *Collection, p FieldValueParams) (mongo.Pipeline, error) {
	if err := required(OpReadRecordFieldValue, ParamSearchField, p.SearchField); err != nil {
		return nil, err
	}
	if err := required(OpReadRecordFieldValue, ParamOutputFieldName, p.OutputFieldName); err != nil {
		return nil, err
	}
	if err := checkFields(OpReadRecordFieldValue, c, map[string]string{
		ParamSearchField:     p.SearchField,
		ParamOutputFieldName: p.OutputFieldName,
	}); err != nil {
		return nil, err
	}
	searchField, _ := c.Field(p.SearchField)
	match, err := equality(ParamSearchValue, p.SearchField, p.SearchValue, searchField.Kind)
	if err != nil {
		return nil, withOp(OpReadRecordFieldValue, err)
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "inputCollection", Value: bson.D{{Key: "$literal", Value: c.Name}}},
			{Key: "inputFieldName", Value: bson.D{{Key: "$literal", Value: p.SearchField}}},
			{Key: "inputFieldValue", Value: bson.D{{Key: "$literal", Value: p.SearchValue}}},
			{Key: "outputFieldName", Value: bson.D{{Key: "$literal", Value: p.OutputFieldName}}},
			{Key: "outputFieldValue", Value: fieldRef(p.OutputFieldName)},
			{Key: "outputStatus", Value: StatusOK},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: IDField, Value: 1},
			{Key: "inputCollection", Value: 1},
			{Key: "inputFieldName", Value: 1},
			{Key: "inputFieldValue", Value: 1},
			{Key: "outputFieldName", Value: 1},
			{Key: "outputFieldValue", Value: 1},
			{Key: "outputStatus", Value: 1},
		}}},
	}, nil
}

func fieldValueRows(c *Collection, p FieldValueParams, raw []bson.M) []FieldValue {
	if len(raw) == 0 {
		return []FieldValue{{
			InputCollection:  c.Name,
			InputFieldName:   p.SearchField,
			InputFieldValue:  p.SearchValue,
			OutputFieldName:  p.OutputFieldName,
			OutputFieldValue: NotFoundValue,
			OutputStatus:     StatusKO,
		}}
	}
	rows := make([]FieldValue, 0, len(raw))
	for _, r := range raw {
		status, _ := r["outputStatus"].(string)
		if status == "" {
			status = StatusOK
		}
		rows = append(rows, FieldValue{
			ID:               stringify(r[IDField]),
			InputCollection:  c.Name,
			InputFieldName:   p.SearchField,
			InputFieldValue:  p.SearchValue,
			OutputFieldName:  p.OutputFieldName,
			OutputFieldValue: presentValue(r["outputFieldValue"]),
			OutputStatus:     status,
		})
	}
	return rows
}

// groupByPipeline groups on the native composite key {first, second}.
func groupByPipeline(c *Collection, p GroupByParams, mode MatchMode) (mongo.Pipeline, error) {
	if err := required(OpGroupBy, ParamFirstGroupByField, p.FirstGroupByField); err != nil {
		return nil, err
	}
	if err := required(OpGroupBy, ParamSecondGroupByField, p.SecondGroupByField); err != nil {
		return nil, err
	}
	if err := checkFields(OpGroupBy, c, map[string]string{
		ParamFirstGroupByField:  p.FirstGroupByField,
		ParamSecondGroupByField: p.SecondGroupByField,
		ParamSearchField:        p.SearchField,
		ParamAggregateSumField:  p.AggregateSumField,
	}); err != nil {
		return nil, err
	}
	search, err := BuildSearch(p.SearchField, p.SearchValue, mode)
	if err != nil {
		return nil, withOp(OpGroupBy, err)
	}

	var sum interface{} = 0
	if p.AggregateSumField != "" {
		sum = fieldRef(p.AggregateSumField)
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: search}},
		{{Key: "$group", Value: bson.D{
			{Key: IDField, Value: bson.D{
				{Key: groupKeyFirst, Value: fieldRef(p.FirstGroupByField)},
				{Key: groupKeySecond, Value: fieldRef(p.SecondGroupByField)},
			}},
			{Key: "documentCount", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "aggregateSum", Value: bson.D{{Key: "$sum", Value: sum}}},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: IDField + "." + groupKeyFirst, Value: 1},
			{Key: IDField + "." + groupKeySecond, Value: 1},
		}}},
	}, nil
}

func groupByRows(c *Collection, p GroupByParams, separator string, raw []bson.M) []GroupByRow {
	echo := GroupByRow{
		Collection:         c.Name,
		FirstGroupByField:  p.FirstGroupByField,
		SecondGroupByField: p.SecondGroupByField,
		SearchField:        p.SearchField,
		SearchValue:        p.SearchValue,
		SearchType:         p.SearchType,
		AggregateSumField:  p.AggregateSumField,
	}
	if len(raw) == 0 {
		row := echo
		row.GroupValue = separator
		return []GroupByRow{row}
	}
	rows := make([]GroupByRow, 0, len(raw))
	for _, r := range raw {
		row := echo
		row.FirstGroupByValue = stringify(docField(r[IDField], groupKeyFirst))
		row.SecondGroupByValue = stringify(docField(r[IDField], groupKeySecond))
		row.GroupValue = row.FirstGroupByValue + separator + row.SecondGroupByValue
		row.DocumentCount = toInt(r["documentCount"])
		row.AggregateSum, _ = toFloat(r["aggregateSum"])
		rows = append(rows, row)
	}
	return rows
}

// groupBySetPipeline lists the distinct values of one field.
func groupBySetPipeline(c *Collection, p GroupBySetParams) (mongo.Pipeline, error) {
	if err := required(OpGroupBySet, ParamGroupByField, p.GroupByField); err != nil {
		return nil, err
	}
	if err := checkFields(OpGroupBySet, c, map[string]string{ParamGroupByField: p.GroupByField}); err != nil {
		return nil, err
	}
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: IDField, Value: fieldRef(p.GroupByField)}}}},
		{{Key: "$sort", Value: bson.D{{Key: IDField, Value: 1}}}},
	}, nil
}

// docField reads key from an embedded document decoded as either bson.M or bson.D.
func docField(doc interface{}, key string) interface{} {
	switch d := doc.(type) {
	case bson.M:
		return d[key]
	case bson.D:
		for _, e := range d {
			if e.Key == key {
				return e.Value
			}
		}
	}
	return nil
}

func groupBySetValues(raw []bson.M) []string {
	values := make([]interface{}, 0, len(raw))
	for _, r := range raw {
		values = append(values, r[IDField])
	}
	set := distinctStrings(values)
	if len(set) == 0 {
		return []string{""}
	}
	return set
}

// samplePipeline matches documents whose identifier renders as DocumentID.
func samplePipeline(c *Collection, p SampleParams) (mongo.Pipeline, error) {
	if err := required(OpSample, ParamDocumentID, p.DocumentID); err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$addFields", Value: bson.D{{Key: "toStringId", Value: bson.D{{Key: "$toString", Value: "$" + IDField}}}}}},
		{{Key: "$match", Value: bson.D{{Key: "toStringId", Value: p.DocumentID}}}},
		{{Key: "$project", Value: bson.D{{Key: "toStringId", Value: 0}}}},
	}
	if proj := hiddenProjection(c); proj != nil {
		pipeline = append(pipeline, proj)
	}
	return pipeline, nil
}
