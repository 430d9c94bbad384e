package workflow

import (
	"context"
	"encoding/json"
	"sync"

	"cosmetic-analyzer/internal/core/ai/cache"
	"cosmetic-analyzer/internal/core/search"
	"cosmetic-analyzer/internal/infrastructure/config"
	"cosmetic-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// Searcher 相似度搜尋協作者。查無資料時回傳 (nil, nil)
type Searcher interface {
	Lookup(ctx context.Context, name string) (*search.Result, error)
}

// Fallback 網路搜尋備援協作者
type Fallback interface {
	Search(ctx context.Context, name string) (*search.Result, error)
}

// Researcher 成分查詢協調器：逐項查詢、信心不足時備援、評分後彙整
type Researcher struct {
	searcher     Searcher
	fallback     Fallback
	config       *config.WorkflowConfig
	cacheManager *cache.CacheManager
}

// NewResearcher 創建成分查詢協調器
func NewResearcher(searcher Searcher, fallback Fallback, cfg *config.WorkflowConfig, cacheManager *cache.CacheManager) *Researcher {
	return &Researcher{
		searcher:     searcher,
		fallback:     fallback,
		config:       cfg,
		cacheManager: cacheManager,
	}
}

// cachedLookup 查詢結果的緩存形式，評分前的原始資料
type cachedLookup struct {
	Result     *search.Result `json:"result"`
	Provenance Provenance     `json:"provenance"`
}

// Run 以有界工作池解析所有成分，全部完成後計算批次平均信心並標記 research_done
func (r *Researcher) Run(ctx context.Context, s *State) {
	s.ResearchAttempts++

	records := make([]ItemRecord, len(s.Ingredients))

	workers := r.config.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(s.Ingredients) && len(s.Ingredients) > 0 {
		workers = len(s.Ingredients)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				records[idx] = r.resolveItem(ctx, s, s.Ingredients[idx])
			}
		}()
	}
	for i := range s.Ingredients {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	total := 0.0
	for _, rec := range records {
		total += rec.Confidence
	}
	mean := 0.0
	if len(records) > 0 {
		mean = total / float64(len(records))
	}

	s.Items = records
	s.MeanConfidence = mean
	s.LowConfidence = mean < r.config.CompletionThreshold
	s.ResearchDone = true

	common.LogWorkflowStage(s.RunID, "research",
		zap.Int("items", len(records)),
		zap.Float64("mean_confidence", mean),
		zap.Bool("low_confidence", s.LowConfidence),
	)
}

// resolveItem 解析單一成分。協作者失敗只降級該成分，不中斷整批
func (r *Researcher) resolveItem(ctx context.Context, s *State, name string) ItemRecord {
	itemCtx, cancel := context.WithTimeout(ctx, r.config.LookupTimeout)
	defer cancel()

	normalized := common.NormalizeName(name)
	result, provenance := r.lookup(itemCtx, normalized)

	record := ItemRecord{
		Name:       name,
		Provenance: provenance,
	}
	if result != nil {
		record.Purpose = result.Purpose
		record.BaseScore = result.SafetyScore
		record.Concerns = result.Concerns
		record.Description = result.Description
		record.Confidence = result.Confidence
	} else {
		// 兩個來源都失敗：佔位紀錄，信心趨近於零
		record.Purpose = "Unknown"
		record.Concerns = []string{"insufficient data"}
		record.Confidence = 0.0
	}

	record.Allergen = ResolveAllergen(name, s.Profile.Allergies)
	ScoreItem(&record, s.Profile)

	return record
}

// lookup 先查相似度索引，信心低於門檻或查無資料時走網路備援，保留信心較高者
func (r *Researcher) lookup(ctx context.Context, name string) (*search.Result, Provenance) {
	cacheKey := cache.Key("lookup", name)
	if r.cacheManager != nil {
		if val, err := r.cacheManager.Get(ctx, cacheKey); err == nil && val != "" {
			var cached cachedLookup
			if err := json.Unmarshal([]byte(val), &cached); err == nil && cached.Result != nil {
				return cached.Result, cached.Provenance
			}
		}
	}

	primary, err := r.searcher.Lookup(ctx, name)
	if err != nil {
		common.LogWarn("相似度搜尋失敗，改走網路備援",
			zap.String("name", name),
			zap.Error(err),
		)
		primary = nil
	}

	result, provenance := primary, ProvenanceSearchIndex
	if primary == nil || primary.Confidence < r.config.FallbackThreshold {
		web, err := r.fallback.Search(ctx, name)
		if err != nil {
			common.LogWarn("網路備援搜尋失敗",
				zap.String("name", name),
				zap.Error(err),
			)
			web = nil
		}

		switch {
		case primary == nil && web == nil:
			return nil, ProvenanceUnavailable
		case web == nil:
			// 保留低信心的索引結果
		case primary == nil || web.Confidence > primary.Confidence:
			result, provenance = web, ProvenanceWebFallback
		}
	}

	if r.cacheManager != nil && result != nil {
		if data, err := json.Marshal(cachedLookup{Result: result, Provenance: provenance}); err == nil {
			_ = r.cacheManager.Set(ctx, cacheKey, string(data))
		}
	}

	return result, provenance
}
