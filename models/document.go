package models

// Document is a source document submitted for RAG ingestion
type Document struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	SourceURL string `json:"sourceUrl,omitempty"`
}

// DocumentChunk is one embedded slice of a source document, as stored in the
// search index. Field names match the index schema.
type DocumentChunk struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parentId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Ordinal   int       `json:"chunk"`
	SourceURL string    `json:"sourceUrl,omitempty"`
	Vector    []float32 `json:"contentVector,omitempty"`
}

// SearchFields converts the chunk to the map shape the index batch API expects
func (c *DocumentChunk) SearchFields() map[string]interface{} {
	fields := map[string]interface{}{
		"id":       c.ID,
		"parentId": c.ParentID,
		"title":    c.Title,
		"content":  c.Content,
		"chunk":    c.Ordinal,
	}
	if c.SourceURL != "" {
		fields["sourceUrl"] = c.SourceURL
	}
	if len(c.Vector) > 0 {
		fields["contentVector"] = c.Vector
	}
	return fields
}
