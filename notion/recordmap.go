package notion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RecordMap is the fetched document graph: blocks plus collections. Tables
// keep insertion order, which for decoded maps is the key order of the JSON
// document. That order is not stable across fetches.
//
// A nil *RecordMap is a valid, empty map.
type RecordMap struct {
	blocks          map[string]*Block
	blockOrder      []string
	collections     map[string]*Collection
	collectionOrder []string
	others          map[string]int
	otherOrder      []string
}

// NewRecordMap returns an empty record map.
func NewRecordMap() *RecordMap {
	return &RecordMap{
		blocks:      map[string]*Block{},
		collections: map[string]*Collection{},
		others:      map[string]int{},
	}
}

func (rm *RecordMap) init() {
	if rm.blocks == nil {
		rm.blocks = map[string]*Block{}
	}
	if rm.collections == nil {
		rm.collections = map[string]*Collection{}
	}
	if rm.others == nil {
		rm.others = map[string]int{}
	}
}

// compactID is the canonical key form of a record id.
func compactID(id string) string {
	return strings.ReplaceAll(strings.TrimSpace(id), "-", "")
}

// AddBlock inserts or replaces a block. Replacing keeps the original position.
func (rm *RecordMap) AddBlock(b *Block) {
	if b == nil || compactID(b.ID) == "" {
		return
	}
	rm.init()
	key := compactID(b.ID)
	if _, ok := rm.blocks[key]; !ok {
		rm.blockOrder = append(rm.blockOrder, key)
	}
	rm.blocks[key] = b
}

// AddCollection inserts or replaces a collection.
func (rm *RecordMap) AddCollection(c *Collection) {
	if c == nil || compactID(c.ID) == "" {
		return
	}
	rm.init()
	key := compactID(c.ID)
	if _, ok := rm.collections[key]; !ok {
		rm.collectionOrder = append(rm.collectionOrder, key)
	}
	rm.collections[key] = c
}

// Block returns the block for id, accepting hyphenated and compact forms.
func (rm *RecordMap) Block(id string) *Block {
	if rm == nil || rm.blocks == nil {
		return nil
	}
	return rm.blocks[compactID(id)]
}

// Collection returns the collection for id.
func (rm *RecordMap) Collection(id string) *Collection {
	if rm == nil || rm.collections == nil {
		return nil
	}
	return rm.collections[compactID(id)]
}

// BlockIDs returns block ids in insertion order.
func (rm *RecordMap) BlockIDs() []string {
	if rm == nil {
		return nil
	}
	return append([]string(nil), rm.blockOrder...)
}

// CollectionIDs returns collection ids in insertion order.
func (rm *RecordMap) CollectionIDs() []string {
	if rm == nil {
		return nil
	}
	return append([]string(nil), rm.collectionOrder...)
}

// Len returns the number of blocks.
func (rm *RecordMap) Len() int {
	if rm == nil {
		return 0
	}
	return len(rm.blockOrder)
}

// Merge copies every record of other into rm. Records of other win.
func (rm *RecordMap) Merge(other *RecordMap) {
	if other == nil {
		return
	}
	for _, id := range other.blockOrder {
		rm.AddBlock(other.blocks[id])
	}
	for _, id := range other.collectionOrder {
		rm.AddCollection(other.collections[id])
	}
	rm.init()
	for _, name := range other.otherOrder {
		if _, ok := rm.others[name]; !ok {
			rm.otherOrder = append(rm.otherOrder, name)
		}
		rm.others[name] += other.others[name]
	}
}

// MissingChildren returns child ids referenced by blocks of the map that are
// not part of it, in first-reference order.
func (rm *RecordMap) MissingChildren() []string {
	if rm == nil {
		return nil
	}
	seen := map[string]bool{}
	var missing []string
	for _, id := range rm.blockOrder {
		for _, child := range rm.blocks[id].Content {
			key := compactID(child)
			if key == "" || seen[key] || rm.blocks[key] != nil {
				continue
			}
			seen[key] = true
			missing = append(missing, key)
		}
	}
	return missing
}

// UnmarshalJSON decodes the {"block": {id: {"value": ...}}, "collection": ...}
// shape. Records with unexpected shapes are dropped; only invalid JSON fails.
func (rm *RecordMap) UnmarshalJSON(data []byte) error {
	*rm = RecordMap{}
	rm.init()
	return eachOrdered(data, func(table string, raw json.RawMessage) error {
		switch table {
		case "block":
			return eachOrdered(raw, func(key string, rec json.RawMessage) error {
				if v, _ := recordValue(rec); v != nil {
					b := blockFromValue(v)
					if b.ID == "" {
						b.ID = compactID(key)
					}
					rm.AddBlock(b)
				}
				return nil
			})
		case "collection":
			return eachOrdered(raw, func(key string, rec json.RawMessage) error {
				if v, raw := recordValue(rec); v != nil {
					c := collectionFromValue(v, raw)
					if c.ID == "" {
						c.ID = compactID(key)
					}
					rm.AddCollection(c)
				}
				return nil
			})
		default:
			n := 0
			_ = eachOrdered(raw, func(string, json.RawMessage) error {
				n++
				return nil
			})
			if _, ok := rm.others[table]; !ok {
				rm.otherOrder = append(rm.otherOrder, table)
			}
			rm.others[table] += n
			return nil
		}
	})
}

// MarshalJSON writes the same envelope shape UnmarshalJSON reads, in
// insertion order.
func (rm *RecordMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"block":{`)
	if rm != nil {
		for i, id := range rm.blockOrder {
			if err := writeRecord(&buf, i, id, rm.blocks[id]); err != nil {
				return nil, err
			}
		}
	}
	buf.WriteString(`},"collection":{`)
	if rm != nil {
		for i, id := range rm.collectionOrder {
			c := rm.collections[id]
			if err := writeRecord(&buf, i, id, collectionValue(c)); err != nil {
				return nil, err
			}
		}
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

func writeRecord(buf *bytes.Buffer, i int, id string, value any) error {
	if i > 0 {
		buf.WriteByte(',')
	}
	key, err := json.Marshal(id)
	if err != nil {
		return err
	}
	val, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", id, err)
	}
	buf.Write(key)
	buf.WriteString(`:{"value":`)
	buf.Write(val)
	buf.WriteByte('}')
	return nil
}

func collectionValue(c *Collection) map[string]any {
	var schema bytes.Buffer
	schema.WriteByte('{')
	for i, col := range c.Schema {
		if i > 0 {
			schema.WriteByte(',')
		}
		key, _ := json.Marshal(col.ID)
		def, _ := json.Marshal(map[string]string{"name": col.Name, "type": col.Type})
		schema.Write(key)
		schema.WriteByte(':')
		schema.Write(def)
	}
	schema.WriteByte('}')
	v := map[string]any{
		"id":     c.ID,
		"name":   TextProperty(c.Name),
		"schema": json.RawMessage(schema.Bytes()),
	}
	if c.ParentID != "" {
		v["parent_id"] = c.ParentID
	}
	return v
}

// OtherTables returns record counts of tables other than block and
// collection.
func (rm *RecordMap) OtherTables() map[string]int {
	out := map[string]int{}
	if rm == nil {
		return out
	}
	for _, name := range rm.otherOrder {
		out[name] = rm.others[name]
	}
	return out
}

// eachOrdered calls fn for every member of a JSON object in document order.
// Non-object input is ignored.
func eachOrdered(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to decode record map: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to decode record map: %w", err)
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to decode record %q: %w", key, err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	return nil
}

// recordValue unwraps {"value": {...}} and the newer
// {"value": {"value": {...}, "role": ...}} envelopes. It returns the decoded
// value and its raw JSON.
func recordValue(rec json.RawMessage) (map[string]any, json.RawMessage) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(rec, &envelope); err != nil {
		return nil, nil
	}
	raw, ok := envelope["value"]
	if !ok {
		if _, hasType := envelope["type"]; !hasType {
			return nil, nil
		}
		raw = rec
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, nil
	}
	if nested, ok := fields["value"]; ok {
		if _, hasID := fields["id"]; !hasID {
			raw = nested
		}
	}
	var v map[string]any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return nil, nil
	}
	return v, raw
}

func blockFromValue(v map[string]any) *Block {
	b := &Block{
		ID:             compactID(ReadString(v, "", "id")),
		Type:           ReadString(v, "", "type"),
		ParentID:       compactID(ReadString(v, "", "parent_id")),
		ParentTable:    ReadString(v, "", "parent_table"),
		CreatedTime:    readInt(v["created_time"]),
		LastEditedTime: readInt(v["last_edited_time"]),
		CollectionID:   compactID(ReadString(v, "", "collection_id")),
		Content:        idList(v["content"]),
		ViewIDs:        idList(v["view_ids"]),
	}
	if p, ok := v["properties"].(map[string]any); ok {
		b.Properties = p
	}
	if f, ok := v["format"].(map[string]any); ok {
		b.Format = f
	}
	return b
}

func collectionFromValue(v map[string]any, raw json.RawMessage) *Collection {
	c := &Collection{
		ID:       compactID(ReadString(v, "", "id")),
		Name:     PlainText(v["name"]),
		ParentID: compactID(ReadString(v, "", "parent_id")),
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) == nil && len(fields["schema"]) > 0 {
		_ = eachOrdered(fields["schema"], func(key string, col json.RawMessage) error {
			var def map[string]any
			if json.Unmarshal(col, &def) == nil {
				c.Schema = append(c.Schema, SchemaColumn{
					ID:   key,
					Name: ReadString(def, "", "name"),
					Type: ReadString(def, "", "type"),
				})
			}
			return nil
		})
	}
	return c
}

func idList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			ids = append(ids, compactID(s))
		}
	}
	return ids
}

func readInt(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
