package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cosmetic-analyzer/internal/core/workflow"
	"cosmetic-analyzer/internal/infrastructure/config"
	"cosmetic-analyzer/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Store 使用者輪廓與分析歷史的 Redis 存儲。
// 連線失敗時整個存儲降級為停用，流程照常執行只是不持久化
type Store struct {
	client       *redis.Client
	historyLimit int
}

// NewStore 創建記憶存儲。Redis 停用或無法連線時回傳 nil
func NewStore(cfg *config.Config) *Store {
	if !cfg.Redis.Enabled {
		common.LogInfo("記憶存儲已停用")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		common.LogWarn("Redis 連線失敗，改為不持久化",
			zap.String("addr", cfg.Redis.Addr),
			zap.Error(err),
		)
		_ = client.Close()
		return nil
	}

	common.LogInfo("記憶存儲已初始化",
		zap.String("addr", cfg.Redis.Addr),
		zap.Int("history_limit", cfg.Workflow.HistoryLimit),
	)

	return &Store{
		client:       client,
		historyLimit: cfg.Workflow.HistoryLimit,
	}
}

// NewStoreWithClient 以現有連線創建記憶存儲，測試用
func NewStoreWithClient(client *redis.Client, historyLimit int) *Store {
	return &Store{client: client, historyLimit: historyLimit}
}

func profileKey(userKey string) string {
	return fmt.Sprintf("user:%s:profile", userKey)
}

func historyKey(userKey string) string {
	return fmt.Sprintf("user:%s:history", userKey)
}

// GetProfile 讀取使用者輪廓。不存在時回傳 (nil, nil)
func (s *Store) GetProfile(ctx context.Context, userKey string) (*common.UserProfile, error) {
	if s == nil {
		return nil, common.ErrStoreUnavailable
	}

	data, err := s.client.Get(ctx, profileKey(userKey)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var profile common.UserProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &profile, nil
}

// SaveProfile 保存使用者輪廓，無過期時間
func (s *Store) SaveProfile(ctx context.Context, userKey string, profile *common.UserProfile) error {
	if s == nil {
		return common.ErrStoreUnavailable
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := s.client.Set(ctx, profileKey(userKey), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// AppendHistory 以最新在前的方式追加一筆分析結果，並裁剪到保留上限
func (s *Store) AppendHistory(ctx context.Context, userKey string, result *workflow.Result) error {
	if s == nil {
		return common.ErrStoreUnavailable
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	key := historyKey(userKey)
	if err := s.client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	if s.historyLimit > 0 {
		if err := s.client.LTrim(ctx, key, 0, int64(s.historyLimit-1)).Err(); err != nil {
			return fmt.Errorf("failed to trim history: %w", err)
		}
	}
	return nil
}

// ListHistory 列出使用者的分析歷史，最新在前。壞掉的條目略過不中斷
func (s *Store) ListHistory(ctx context.Context, userKey string) ([]*workflow.Result, error) {
	if s == nil {
		return nil, common.ErrStoreUnavailable
	}

	entries, err := s.client.LRange(ctx, historyKey(userKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	results := make([]*workflow.Result, 0, len(entries))
	for _, entry := range entries {
		var result workflow.Result
		if err := json.Unmarshal([]byte(entry), &result); err != nil {
			common.LogWarn("歷史條目解析失敗，略過",
				zap.String("user_key", userKey),
				zap.Error(err),
			)
			continue
		}
		results = append(results, &result)
	}
	return results, nil
}

// Close 關閉 Redis 連線
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}
