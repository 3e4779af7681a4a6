package mongodeck

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	defaultImportBatchSize   = 500
	defaultImportConcurrency = 4
)

// ImportResult 一次导入的汇总结果
type ImportResult struct {
	Inserted   int      `json:"inserted"`
	Batches    int      `json:"batches"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// DocumentImporter 分批并发导入器。
// 文档按固定批次切分，信号量限制同时在途的批次数；
// 单个批次失败只记录错误，不中断其余批次。
type DocumentImporter struct {
	batchSize int
	semaphore chan struct{} // 信号量，限制并发批次数
}

// NewDocumentImporter 创建导入器，非法参数回退到缺省值
func NewDocumentImporter(batchSize, concurrency int) *DocumentImporter {
	if batchSize <= 0 {
		batchSize = defaultImportBatchSize
	}
	if concurrency <= 0 {
		concurrency = defaultImportConcurrency
	}
	return &DocumentImporter{
		batchSize: batchSize,
		semaphore: make(chan struct{}, concurrency),
	}
}

// Import 把文档切分为批次并发写入集合
func (di *DocumentImporter) Import(ctx context.Context, coll Collection, documents []map[string]interface{}) *ImportResult {
	start := time.Now()
	result := &ImportResult{}
	if len(documents) == 0 {
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	batches := splitBatches(documents, di.batchSize)
	result.Batches = len(batches)

	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, batch := range batches {
		// 进入前占用一个令牌；上下文取消时剩余批次整体记为失败
		select {
		case di.semaphore <- struct{}{}:
		case <-ctx.Done():
			mu.Lock()
			for j, rest := range batches[i:] {
				result.Failed += len(rest)
				result.Errors = append(result.Errors, fmt.Sprintf("batch %d: %v", i+j+1, ctx.Err()))
			}
			mu.Unlock()
			wg.Wait()
			result.DurationMs = time.Since(start).Milliseconds()
			return result
		}

		wg.Add(1)
		go func(index int, batch []map[string]interface{}) {
			defer wg.Done()
			defer func() { <-di.semaphore }()

			inserted, err := coll.InsertMany(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed += len(batch) - inserted
				result.Errors = append(result.Errors, fmt.Sprintf("batch %d: %v", index+1, err))
			}
			result.Inserted += inserted
		}(i, batch)
	}

	wg.Wait()
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// splitBatches 按固定大小切分文档
func splitBatches(documents []map[string]interface{}, size int) [][]map[string]interface{} {
	batches := make([][]map[string]interface{}, 0, (len(documents)+size-1)/size)
	for start := 0; start < len(documents); start += size {
		end := start + size
		if end > len(documents) {
			end = len(documents)
		}
		batches = append(batches, documents[start:end])
	}
	return batches
}
