package domain

// Default collection names per content type.
const (
	CollectionWeb  = "website_docs"
	CollectionPDF  = "pdf"
	CollectionText = "text"
)

// KeyPrefix namespaces every key this service writes to the vector store.
var KeyPrefix = "knowchain:"
