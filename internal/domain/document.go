package domain

// Source identifiers for documents that do not come from a URL or a file.
const SourceText = "text"

// Document is extracted text plus the identifier of where it came from.
type Document struct {
	Source string // location, file path, or SourceText
	Text   string
	Page   int // 1-based PDF page, 0 when not paginated
}

// Fragment is a bounded slice of a Document's text prepared for embedding.
type Fragment struct {
	Source string
	Text   string
	Page   int
	Offset int // rune offset of Text within the source Document
	Seq    int // position in the splitter output for the whole source
}

// Hit is a fragment returned by a similarity query.
type Hit struct {
	ID     string
	Score  float64
	Source string
	Text   string
	Page   int
}
