package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchOptions ES连接配置
type ElasticsearchOptions struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
	Index     string
}

// ElasticsearchLexicalIndex 基于ES wildcard 字段的子串索引
type ElasticsearchLexicalIndex struct {
	client *elasticsearch.Client
	index  string

	mu      sync.Mutex
	ensured bool
}

// NewElasticsearchLexicalIndex 创建ES子串索引
func NewElasticsearchLexicalIndex(opts ElasticsearchOptions) (*ElasticsearchLexicalIndex, error) {
	if len(opts.Addresses) == 0 {
		return nil, apperrors.NewCapabilityUnavailableError("elasticsearch", fmt.Errorf("no addresses configured"))
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: opts.Addresses,
		Username:  opts.Username,
		Password:  opts.Password,
		APIKey:    opts.APIKey,
	})
	if err != nil {
		return nil, apperrors.NewCapabilityUnavailableError("elasticsearch", err)
	}

	index := opts.Index
	if index == "" {
		index = "docsearch_chunks"
	}
	return &ElasticsearchLexicalIndex{client: client, index: index}, nil
}

// esChunk 索引文档
type esChunk struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Content    string `json:"content"`
	ChunkIndex int    `json:"chunk_index"`
}

var esMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"chunk_id":    map[string]interface{}{"type": "keyword"},
			"document_id": map[string]interface{}{"type": "keyword"},
			"filename":    map[string]interface{}{"type": "keyword"},
			"chunk_index": map[string]interface{}{"type": "integer"},
			"content": map[string]interface{}{
				"type": "text",
				"fields": map[string]interface{}{
					"raw": map[string]interface{}{"type": "wildcard"},
				},
			},
		},
	},
}

func (e *ElasticsearchLexicalIndex) ensureIndex(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ensured {
		return nil
	}

	existsResp, err := esapi.IndicesExistsRequest{Index: []string{e.index}}.Do(ctx, e.client)
	if err != nil {
		return err
	}
	existsResp.Body.Close()

	if existsResp.StatusCode != 200 {
		body, _ := json.Marshal(esMapping)
		createResp, err := esapi.IndicesCreateRequest{
			Index: e.index,
			Body:  bytes.NewReader(body),
		}.Do(ctx, e.client)
		if err != nil {
			return err
		}
		defer createResp.Body.Close()
		if createResp.IsError() {
			return fmt.Errorf("create index error: %s", createResp.String())
		}
	}

	e.ensured = true
	return nil
}

// Index 写入分块
func (e *ElasticsearchLexicalIndex) Index(ctx context.Context, chunk StoredChunk) error {
	if err := e.ensureIndex(ctx); err != nil {
		return apperrors.NewStorageFailureError("elasticsearch index", err)
	}

	payload, err := json.Marshal(esChunk{
		ChunkID:    chunk.ID,
		DocumentID: chunk.DocumentID,
		Filename:   chunk.Filename,
		Content:    chunk.Content,
		ChunkIndex: chunk.ChunkIndex,
	})
	if err != nil {
		return apperrors.NewStorageFailureError("elasticsearch index", err)
	}

	resp, err := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: chunk.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "true",
	}.Do(ctx, e.client)
	if err != nil {
		return apperrors.NewStorageFailureError("elasticsearch index", err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return apperrors.NewStorageFailureError("elasticsearch index", fmt.Errorf("index chunk error: %s", resp.String()))
	}
	return nil
}

// Search 大小写不敏感的子串匹配，按分块序号升序
func (e *ElasticsearchLexicalIndex) Search(ctx context.Context, text string, limit int) ([]StoredChunk, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if err := e.ensureIndex(ctx); err != nil {
		return nil, apperrors.NewStorageFailureError("elasticsearch search", err)
	}

	body := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"wildcard": map[string]interface{}{
				"content.raw": map[string]interface{}{
					"value":            "*" + escapeWildcard(text) + "*",
					"case_insensitive": true,
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"chunk_index": map[string]interface{}{"order": "asc"}},
			map[string]interface{}{"chunk_id": map[string]interface{}{"order": "asc"}},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.NewStorageFailureError("elasticsearch search", err)
	}

	resp, err := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  bytes.NewReader(payload),
	}.Do(ctx, e.client)
	if err != nil {
		return nil, apperrors.NewStorageFailureError("elasticsearch search", err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, apperrors.NewStorageFailureError("elasticsearch search", fmt.Errorf("search error: %s", resp.String()))
	}

	var result struct {
		Hits struct {
			Hits []struct {
				ID     string  `json:"_id"`
				Source esChunk `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.NewStorageFailureError("elasticsearch search", err)
	}

	chunks := make([]StoredChunk, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		id := hit.Source.ChunkID
		if id == "" {
			id = hit.ID
		}
		chunks = append(chunks, StoredChunk{
			ID:         id,
			DocumentID: hit.Source.DocumentID,
			Filename:   hit.Source.Filename,
			Content:    hit.Source.Content,
			ChunkIndex: hit.Source.ChunkIndex,
		})
	}
	return chunks, nil
}

// Ready 检查集群可达
func (e *ElasticsearchLexicalIndex) Ready() bool {
	resp, err := e.client.Ping()
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return !resp.IsError()
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func escapeWildcard(s string) string {
	return wildcardEscaper.Replace(s)
}
