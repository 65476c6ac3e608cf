package model

// StageItemKind discriminates the payload carried by a StageItem.
type StageItemKind string

const (
	ItemKindPage    StageItemKind = "page"
	ItemKindURL     StageItemKind = "product_url"
	ItemKindRecord  StageItemKind = "product_record"
)

// StageItem is the unit of work a TaskExecutor processes. Exactly one of
// Page, URL, or Record is meaningful, selected by Kind.
type StageItem struct {
	Kind   StageItemKind
	Page   uint32
	URL    ProductURL
	Record ProductRecord
}

// PageItem wraps a page number for the list_collection stage.
func PageItem(page uint32) StageItem {
	return StageItem{Kind: ItemKindPage, Page: page}
}

// URLItem wraps a product URL for the detail_collection stage.
func URLItem(url ProductURL) StageItem {
	return StageItem{Kind: ItemKindURL, URL: url}
}

// RecordItem wraps a parsed record for data_validation and database_save.
func RecordItem(record ProductRecord) StageItem {
	return StageItem{Kind: ItemKindRecord, Record: record}
}
