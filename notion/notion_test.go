package notion

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func loadFixture(t *testing.T) *RecordMap {
	t.Helper()
	data, err := os.ReadFile("testdata/recordmap.json")
	require.NoError(t, err)
	rm := &RecordMap{}
	require.NoError(t, json.Unmarshal(data, rm))
	return rm
}

func newBlock(id, blockType, text string, children ...string) *Block {
	b := &Block{ID: id, Type: blockType, Content: children}
	if text != "" {
		b.Properties = map[string]any{"title": TextProperty(text)}
	}
	return b
}

func newMap(blocks ...*Block) *RecordMap {
	rm := NewRecordMap()
	for _, b := range blocks {
		rm.AddBlock(b)
	}
	return rm
}
