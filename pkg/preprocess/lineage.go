package preprocess

// ContainerType classifies a discovered file by how it is processed.
type ContainerType string

const (
	ContainerRoot      ContainerType = "root"
	ContainerArchive   ContainerType = "archive"
	ContainerEmail     ContainerType = "email"
	ContainerPortfolio ContainerType = "pdf_portfolio"
	ContainerDocument  ContainerType = "document"
)

// IsContainer reports whether files of this type are expanded into children.
func (c ContainerType) IsContainer() bool {
	switch c {
	case ContainerArchive, ContainerEmail, ContainerPortfolio:
		return true
	}
	return false
}

// Metadata keys written to Lineage.Metadata.
const (
	MetaFileSize     = "file_size"
	MetaFileName     = "file_name"
	MetaExtension    = "extension"
	MetaEntryName    = "entry_name"
	MetaNote         = "note"
	MetaDetectedType = "detected_type"
	MetaDiagnostic   = "diagnostic"
	MetaInlineImages = "inline_images"

	NoteMaxDepthReached = "max_depth_reached"
)

// Lineage records one discovered file, container or leaf.
// ParentID references the containing entry by id; it is nil for submitted paths.
type Lineage struct {
	DocumentID      string         `json:"document_id"`
	OriginalPath    string         `json:"original_path"`
	ExtractedPath   string         `json:"extracted_path"`
	ParentID        *string        `json:"parent_id"`
	ContainerType   ContainerType  `json:"container_type"`
	ExtractionDepth int            `json:"extraction_depth"`
	FileHash        *string        `json:"file_hash"`
	Metadata        map[string]any `json:"metadata"`
	Children        []string       `json:"children"`
}

// IsRoot reports whether l was submitted directly rather than extracted.
func (l *Lineage) IsRoot() bool {
	return l.ParentID == nil
}

// LineageChain is the ancestry of one document, root first.
// Depth counts the ancestors above the document.
type LineageChain struct {
	DocumentID string     `json:"document_id"`
	Chain      []*Lineage `json:"lineage_chain"`
	Depth      int        `json:"depth"`
}

// Chain walks parent links from documentID toward its root. The walk stops at
// an id missing from lineage or at an id already visited, so the result is
// always finite. An unknown documentID yields an empty chain.
func Chain(documentID string, lineage map[string]*Lineage) LineageChain {
	var (
		reversed []*Lineage
		visited  = map[string]bool{}
	)

	for id := documentID; id != "" && !visited[id]; {
		entry, ok := lineage[id]
		if !ok {
			break
		}
		visited[id] = true
		reversed = append(reversed, entry)

		if entry.ParentID == nil {
			break
		}
		id = *entry.ParentID
	}

	chain := make([]*Lineage, len(reversed))
	for i, entry := range reversed {
		chain[len(reversed)-1-i] = entry
	}

	return LineageChain{
		DocumentID: documentID,
		Chain:      chain,
		Depth:      max(len(chain)-1, 0),
	}
}
