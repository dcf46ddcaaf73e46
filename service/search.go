package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	models "github.com/clauselens/backend/models"
)

const documentsIndex = "documents"

// indexDocument indexes a completed document in Elasticsearch. Best-effort:
// indexing failures are logged and never fail the pipeline.
func (s *DocumentService) indexDocument(doc *models.Document) error {
	if s.esClient == nil {
		log.Println("Elasticsearch client not initialized. Skipping indexing.")
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"full_text":   doc.FullText,
		"summary":     doc.DocumentSummary,
		"page_count":  doc.PageCount,
		"timestamp":   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal document for indexing: %w", err)
	}

	res, err := s.esClient.Index(
		documentsIndex,
		bytes.NewReader(body),
		s.esClient.Index.WithDocumentID(doc.ID),
		s.esClient.Index.WithContext(context.Background()),
	)
	if err != nil {
		log.Printf("Elasticsearch indexing error: %v", err)
		return nil // don't break the pipeline
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Printf("Elasticsearch indexing failed: %s", res.String())
		return nil
	}

	log.Println("Document successfully indexed in Elasticsearch")
	return nil
}

// SearchDocuments runs a full-text query over indexed completed documents.
func (s *DocumentService) SearchDocuments(query string) ([]map[string]interface{}, error) {
	if s.esClient == nil {
		return nil, fmt.Errorf("elasticsearch client is not initialized")
	}

	searchQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"full_text", "filename", "summary"},
			},
		},
	}
	body, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(context.Background()),
		s.esClient.Search.WithIndex(documentsIndex),
		s.esClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search failed: %s", res.String())
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hitsMap, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid hits structure in search response")
	}
	hitsArray, ok := hitsMap["hits"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid hits array in search response")
	}

	var documents []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		documents = append(documents, source)
	}
	return documents, nil
}
