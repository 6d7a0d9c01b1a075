package query

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Measure names.
const (
	MeasureDocumentsCount         = "documentscount"
	MeasureProductInventoryCost   = "productinventorycost"
	MeasureProductInventoryPrice  = "productinventoryprice"
	MeasureProductStockUnitsBySKU = "productstockunitsbysku"
	MeasureProductStockUnits      = "productstockunits"
)

const movementsCollection = "productmovements"

// measureDef is a predefined report. Every pipeline yields at most one row
// with the numeric output in "value".
type measureDef struct {
	description string
	label       string
	unit        string
	// collection is fixed; empty means the input names the collection.
	collection    string
	inputRequired bool
	// count measures report zero as a valid result.
	count    bool
	pipeline func(input string) mongo.Pipeline
}

func sumOf(expr interface{}) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: IDField, Value: nil},
			{Key: "value", Value: bson.D{{Key: "$sum", Value: expr}}},
		}}},
	}
}

var measures = map[string]measureDef{
	MeasureDocumentsCount: {
		description:   "Number of documents stored in a collection",
		label:         "Documents",
		unit:          "documents",
		inputRequired: true,
		count:         true,
		pipeline: func(string) mongo.Pipeline {
			return mongo.Pipeline{{{Key: "$count", Value: "value"}}}
		},
	},
	MeasureProductInventoryCost: {
		description: "Inventory valued at cost: sum of units times cost per unit",
		label:       "Inventory cost",
		unit:        "EUR",
		collection:  movementsCollection,
		pipeline: func(string) mongo.Pipeline {
			return sumOf(bson.D{{Key: "$multiply", Value: bson.A{"$units", "$costPerUnit"}}})
		},
	},
	MeasureProductInventoryPrice: {
		description: "Inventory valued at price: sum of units times price per unit",
		label:       "Inventory price",
		unit:        "EUR",
		collection:  movementsCollection,
		pipeline: func(string) mongo.Pipeline {
			return sumOf(bson.D{{Key: "$multiply", Value: bson.A{"$units", "$pricePerUnit"}}})
		},
	},
	MeasureProductStockUnitsBySKU: {
		description:   "Stock units of one product SKU",
		label:         "Stock units",
		unit:          "units",
		collection:    movementsCollection,
		inputRequired: true,
		pipeline: func(sku string) mongo.Pipeline {
			return append(mongo.Pipeline{
				{{Key: "$match", Value: bson.D{{Key: "productSku", Value: sku}}}},
			}, sumOf("$units")...)
		},
	},
	MeasureProductStockUnits: {
		description: "Stock units of every product SKU",
		label:       "Total stock units",
		unit:        "units",
		collection:  movementsCollection,
		pipeline: func(string) mongo.Pipeline {
			return append(mongo.Pipeline{
				{{Key: "$group", Value: bson.D{
					{Key: IDField, Value: "$productSku"},
					{Key: "stock", Value: bson.D{{Key: "$sum", Value: "$units"}}},
				}}},
			}, sumOf("$stock")...)
		},
	},
}

// measureNames lists the available measures in ascending order.
func measureNames() []string {
	names := make([]string, 0, len(measures))
	for name := range measures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func notImplementedMeasure(p MeasureParams) MeasureResult {
	return MeasureResult{
		Measure:     p.Measure,
		Description: NotImplementedValue,
		Label:       NotImplementedValue,
		Input:       p.MeasureInput,
		Unit:        "",
		Status:      StatusKO,
	}
}

func measureResult(def measureDef, p MeasureParams, raw []bson.M) MeasureResult {
	out := MeasureResult{
		Measure:     p.Measure,
		Description: def.description,
		Label:       def.label,
		Input:       p.MeasureInput,
		Unit:        def.unit,
		Status:      StatusKO,
	}
	if len(raw) > 0 {
		if v, ok := toFloat(raw[0]["value"]); ok {
			out.Output = v
			out.Status = StatusOK
			return out
		}
	}
	if def.count {
		out.Status = StatusOK
	}
	return out
}
