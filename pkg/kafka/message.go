package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/winefeed/vine/pkg/models"
)

// LineBatchMessage is the payload on the lines topic: one supplier import (or
// a chunk of one) submitted for matching.
type LineBatchMessage struct {
	TenantID   string                     `json:"tenant_id"`
	ImportID   string                     `json:"import_id"`
	SourceType string                     `json:"source_type"`
	SourceID   string                     `json:"source_id"`
	Lines      []models.CreateLineRequest `json:"lines"`
}

// Validate checks the structural minimum before the batch enters the pipeline.
func (m *LineBatchMessage) Validate() error {
	if m.TenantID == "" {
		return fmt.Errorf("line batch missing tenant_id")
	}
	if m.ImportID == "" {
		return fmt.Errorf("line batch missing import_id")
	}
	if len(m.Lines) == 0 {
		return fmt.Errorf("line batch has no lines")
	}
	return nil
}

// IncomingMessage is a fetched Kafka message with parsed headers.
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// LineBatch is populated by ParseLineBatch.
	LineBatch *LineBatchMessage
}

// ParseLineBatch decodes the message value as a line batch.
func (m *IncomingMessage) ParseLineBatch() error {
	var batch LineBatchMessage
	if err := json.Unmarshal(m.Value, &batch); err != nil {
		return fmt.Errorf("failed to parse line batch: %w", err)
	}
	if err := batch.Validate(); err != nil {
		return err
	}
	m.LineBatch = &batch
	return nil
}
