package query

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Analytics is the combined inventory report over product movements.
type Analytics struct {
	ActualInventoryCost           []InventoryBucket `json:"ActualInventoryCost"`
	AnnualInventoryCostVariation  []InventoryBucket `json:"AnnualInventoryCostVariation"`
	MonthlyInventoryCostVariation []InventoryBucket `json:"MonthlyInventoryCostVariation"`
	ActualStock                   []StockBucket     `json:"ActualStock"`
}

// InventoryBucket is the inventory cost accumulated within a period.
type InventoryBucket struct {
	Period     string  `json:"period"`
	TotalValue float64 `json:"totalValue"`
}

// StockBucket is the stock of one SKU.
type StockBucket struct {
	SKU   string  `json:"sku"`
	Stock float64 `json:"stock"`
}

const totalPeriod = "Total"

var unitsTimesCost = bson.D{{Key: "$multiply", Value: bson.A{"$units", "$costPerUnit"}}}

// inventoryCostPipeline sums units times cost per period. Dates are stored as
// ISO-8601 strings, so a period is a prefix of the given length; zero length
// folds every movement into a single "Total" period.
func inventoryCostPipeline(prefix int) mongo.Pipeline {
	var period interface{} = totalPeriod
	if prefix > 0 {
		period = bson.D{{Key: "$substrBytes", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$date", ""}}}, 0, prefix}}}
	}
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: IDField, Value: period},
			{Key: "totalValue", Value: bson.D{{Key: "$sum", Value: unitsTimesCost}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: IDField, Value: 1}}}},
	}
}

func stockPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: IDField, Value: "$productSku"},
			{Key: "stock", Value: bson.D{{Key: "$sum", Value: "$units"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: IDField, Value: 1}}}},
	}
}

func inventoryBuckets(raw []bson.M) []InventoryBucket {
	out := make([]InventoryBucket, 0, len(raw))
	for _, r := range raw {
		v, _ := toFloat(r["totalValue"])
		out = append(out, InventoryBucket{Period: stringify(r[IDField]), TotalValue: v})
	}
	return out
}

func stockBuckets(raw []bson.M) []StockBucket {
	out := make([]StockBucket, 0, len(raw))
	for _, r := range raw {
		v, _ := toFloat(r["stock"])
		out = append(out, StockBucket{SKU: stringify(r[IDField]), Stock: v})
	}
	return out
}
