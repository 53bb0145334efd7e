package prediction

import (
	"time"
)

// Repository for the prediction collection
type Repository interface {
	CreateIndexes() error
	Upsert(predictions []*Input) int
}

// Input is a classified flow waiting to be stored
type Input struct {
	UID         string
	Source      string
	Destination string
	TimeStamp   float64
	Label       string
	Confidence  float64
	Malicious   bool
}

// Result is a stored prediction
type Result struct {
	ID          string    `bson:"_id" json:"-"`
	UID         string    `bson:"uid" json:"uid"`
	Source      string    `bson:"src" json:"src"`
	Destination string    `bson:"dst" json:"dst"`
	TimeStamp   float64   `bson:"ts" json:"ts"`
	Label       string    `bson:"label" json:"label"`
	Confidence  float64   `bson:"confidence" json:"confidence"`
	Malicious   bool      `bson:"malicious" json:"malicious"`
	Model       string    `bson:"model" json:"model"`
	Imported    time.Time `bson:"imported" json:"imported"`
}

// LabelCount tallies the stored predictions of a label
type LabelCount struct {
	Label         string  `bson:"_id"`
	Count         int64   `bson:"count"`
	Malicious     bool    `bson:"malicious"`
	AvgConfidence float64 `bson:"avg_confidence"`
}
