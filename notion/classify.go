package notion

// FindRootPage returns the first page block in map order. When several pages
// sit at the top level the choice depends on fetch order, so callers must not
// rely on which one is picked.
func FindRootPage(rm *RecordMap) *Block {
	for _, id := range rm.BlockIDs() {
		if b := rm.Block(id); b != nil && b.Type == TypePage {
			return b
		}
	}
	return nil
}

// FindCollection resolves the collection behind the first database view block.
// It returns nil when the view has no pointer or the target is missing.
func FindCollection(rm *RecordMap) *Collection {
	for _, id := range rm.BlockIDs() {
		b := rm.Block(id)
		if !b.IsCollectionView() {
			continue
		}
		return rm.Collection(b.CollectionPointer())
	}
	return nil
}

// CollectionPointer returns the collection a database view shows, read from
// format.collection_pointer.id with the block's collection_id as fallback.
func (b *Block) CollectionPointer() string {
	if id := ReadString(b.Format, "", "collection_pointer", "id"); id != "" {
		return compactID(id)
	}
	return b.CollectionID
}

// ListCollectionPages returns the member pages of a collection in map order.
func ListCollectionPages(rm *RecordMap, collectionID string) []*Block {
	key := compactID(collectionID)
	if key == "" {
		return nil
	}
	var pages []*Block
	for _, id := range rm.BlockIDs() {
		b := rm.Block(id)
		if b.ParentTable == TableCollection && b.ParentID == key {
			pages = append(pages, b)
		}
	}
	return pages
}

// ListContentPages returns the pages a listing is built from: the members of
// the first collection when the map holds one, otherwise every page that is
// not a workspace root.
func ListContentPages(rm *RecordMap) []*Block {
	if c := FindCollection(rm); c != nil {
		var pages []*Block
		for _, b := range ListCollectionPages(rm, c.ID) {
			if b.Type == TypePage {
				pages = append(pages, b)
			}
		}
		return pages
	}
	var pages []*Block
	for _, id := range rm.BlockIDs() {
		b := rm.Block(id)
		if b.Type == TypePage && b.ParentTable != TableSpace {
			pages = append(pages, b)
		}
	}
	return pages
}

// collectionOf returns the collection a page belongs to, if any.
func collectionOf(b *Block, rm *RecordMap) *Collection {
	if b == nil || b.ParentTable != TableCollection {
		return nil
	}
	return rm.Collection(b.ParentID)
}
