package notion

// Analysis summarizes a record map.
type Analysis struct {
	Title       string         `json:"title"`
	BlockCount  int            `json:"blockCount"`
	BlockTypes  map[string]int `json:"blockTypes"`
	OtherTables map[string]int `json:"otherTables"`
}

// Analyze counts blocks per type and records of auxiliary tables. ok is false
// when the map holds no blocks.
func Analyze(rm *RecordMap) (Analysis, bool) {
	if rm.Len() == 0 {
		return Analysis{}, false
	}
	a := Analysis{
		Title:       ExtractTitle(FindRootPage(rm)),
		BlockCount:  rm.Len(),
		BlockTypes:  map[string]int{},
		OtherTables: rm.OtherTables(),
	}
	for _, id := range rm.BlockIDs() {
		if b := rm.Block(id); b.Type != "" {
			a.BlockTypes[b.Type]++
		}
	}
	if c := len(rm.CollectionIDs()); c > 0 {
		a.OtherTables[TableCollection] = c
	}
	return a, true
}
