package query

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Calculation operations.
const (
	OperationAddition                    = "addition"
	OperationSubtraction                 = "subtraction"
	OperationMultiplication              = "multiplication"
	OperationDivision                    = "division"
	OperationPercentageOverSecondOperand = "percentageoversecondoperand"
	OperationPercentageOverFirstOperand  = "percentageoverfirstoperand"
)

const (
	firstOperand  = "$firstOperandValue"
	secondOperand = "$secondOperandValue"
)

// nullIfZero evaluates expr unless divisor is zero or missing.
func nullIfZero(divisor string, expr interface{}) bson.D {
	return bson.D{{Key: "$cond", Value: bson.D{
		{Key: "if", Value: bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{divisor, 0}}}, 0}}}},
		{Key: "then", Value: nil},
		{Key: "else", Value: expr},
	}}}
}

func operationStages(op string) ([]bson.D, bool) {
	addResult := func(expr interface{}) bson.D {
		return bson.D{{Key: "$addFields", Value: bson.D{{Key: "result", Value: expr}}}}
	}
	switch op {
	case OperationAddition:
		return []bson.D{addResult(bson.D{{Key: "$add", Value: bson.A{firstOperand, secondOperand}}})}, true
	case OperationSubtraction:
		return []bson.D{addResult(bson.D{{Key: "$subtract", Value: bson.A{firstOperand, secondOperand}}})}, true
	case OperationMultiplication:
		return []bson.D{addResult(bson.D{{Key: "$multiply", Value: bson.A{firstOperand, secondOperand}}})}, true
	case OperationDivision:
		return []bson.D{addResult(nullIfZero(secondOperand,
			bson.D{{Key: "$divide", Value: bson.A{firstOperand, secondOperand}}}))}, true
	case OperationPercentageOverSecondOperand, OperationPercentageOverFirstOperand:
		base := secondOperand
		if op == OperationPercentageOverFirstOperand {
			base = firstOperand
		}
		return []bson.D{
			{{Key: "$addFields", Value: bson.D{
				{Key: "difference", Value: bson.D{{Key: "$subtract", Value: bson.A{firstOperand, secondOperand}}}},
			}}},
			{{Key: "$addFields", Value: bson.D{
				{Key: "ratio", Value: nullIfZero(base, bson.D{{Key: "$divide", Value: bson.A{"$difference", base}}})},
			}}},
			addResult(bson.D{{Key: "$multiply", Value: bson.A{"$ratio", 100}}}),
		}, true
	default:
		return nil, false
	}
}

// calculatePipeline fetches one document and derives "result" from two numeric fields.
func calculatePipeline(c *Collection, p CalculateParams) (mongo.Pipeline, error) {
	if err := required(OpCalculate, ParamFirstOperandField, p.FirstOperandField); err != nil {
		return nil, err
	}
	if err := required(OpCalculate, ParamSecondOperandField, p.SecondOperandField); err != nil {
		return nil, err
	}
	if err := checkFields(OpCalculate, c, map[string]string{
		ParamFirstOperandField:  p.FirstOperandField,
		ParamSecondOperandField: p.SecondOperandField,
	}); err != nil {
		return nil, err
	}
	for param, name := range map[string]string{
		ParamFirstOperandField:  p.FirstOperandField,
		ParamSecondOperandField: p.SecondOperandField,
	} {
		if f, _ := c.Field(name); f.Kind != FieldNumber {
			return nil, malformed(OpCalculate, param, "field %q is not numeric", name)
		}
	}
	stages, ok := operationStages(p.Operation)
	if !ok {
		return nil, malformed(OpCalculate, ParamOperation, "unsupported operation %q", p.Operation)
	}
	oid, err := objectID(ParamDocumentID, p.DocumentID)
	if err != nil {
		return nil, withOp(OpCalculate, err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: IDField, Value: oid}}}},
		{{Key: "$project", Value: bson.D{
			{Key: "firstOperandValue", Value: "$" + p.FirstOperandField},
			{Key: "secondOperandValue", Value: "$" + p.SecondOperandField},
		}}},
	}
	pipeline = append(pipeline, stages...)
	return pipeline, nil
}

func calculation(c *Collection, p CalculateParams, raw []bson.M) Calculation {
	out := Calculation{
		Collection:         c.Name,
		DocumentID:         p.DocumentID,
		Operation:          p.Operation,
		FirstOperandField:  p.FirstOperandField,
		FirstOperandValue:  NotAvailableValue,
		SecondOperandField: p.SecondOperandField,
		SecondOperandValue: NotAvailableValue,
		Result:             NotAvailableValue,
		Status:             StatusKO,
	}
	if len(raw) == 0 {
		return out
	}
	doc := raw[0]
	if v, ok := doc["firstOperandValue"]; ok && v != nil {
		out.FirstOperandValue = presentValue(v)
	}
	if v, ok := doc["secondOperandValue"]; ok && v != nil {
		out.SecondOperandValue = presentValue(v)
	}
	if r, ok := toFloat(doc["result"]); ok {
		out.Result = r
		out.Status = StatusOK
	}
	return out
}
