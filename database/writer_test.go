package database

import (
	"testing"

	"github.com/globalsign/mgo/bson"
	"github.com/stretchr/testify/assert"
)

func TestBulkChangeSize(t *testing.T) {
	selector := bson.M{"uid": "CMdzit1AMNsmfAIiQc"}
	update := bson.M{"$set": bson.M{"label": "malicious", "confidence": 0.9089}}

	selectorBytes, _ := bson.Marshal(selector)
	updateBytes, _ := bson.Marshal(update)

	buffer, size := BulkChange{Selector: selector}.Size(nil)
	assert.Equal(t, len(selectorBytes), size)
	assert.Len(t, buffer, 0)

	buffer, size = BulkChange{Selector: selector, Update: update, Upsert: true}.Size(buffer)
	assert.Equal(t, len(selectorBytes)+len(updateBytes), size)

	_, size = BulkChange{}.Size(buffer)
	assert.Equal(t, 0, size)
}
