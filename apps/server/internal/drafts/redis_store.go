package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fileKeyPrefix  = "draft:file:"
	assetKeyPrefix = "draft:asset:"
)

// Compile-time check: *RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

// RedisStore implements Store using go-redis directly. Drafts and assets are
// JSON blobs under namespaced keys; revision arbitration runs inside a
// WATCH/MULTI transaction so concurrent writers cannot interleave.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a new RedisStore.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func fileKey(repo, path string) string  { return fileKeyPrefix + repo + ":" + path }
func assetKey(repo, path string) string { return assetKeyPrefix + repo + ":" + path }

// SaveDraft persists d under revision arbitration: the stored revision only
// ever moves forward, so a late-arriving older write cannot regress content.
func (s *RedisStore) SaveDraft(ctx context.Context, d Draft) (Draft, error) {
	key := fileKey(d.Repo, d.Path)
	var stored Draft

	txn := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			stored = Draft{}
		case err != nil:
			return fmt.Errorf("get draft %s: %w", key, err)
		default:
			if err := json.Unmarshal([]byte(val), &stored); err != nil {
				return fmt.Errorf("unmarshal draft %s: %w", key, err)
			}
		}

		if stored.Revision > 0 && d.Revision > 0 && d.Revision <= stored.Revision {
			return StaleWriteError{Repo: d.Repo, Path: d.Path, Attempt: d.Revision, Stored: stored.Revision}
		}

		next := d
		next.Revision = stored.Revision + 1
		if d.Revision > next.Revision {
			next.Revision = d.Revision
		}
		now := time.Now().UTC()
		next.CreatedAt = stored.CreatedAt
		if next.CreatedAt.IsZero() {
			next.CreatedAt = now
		}
		if next.UpdatedAt.IsZero() {
			next.UpdatedAt = now
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal draft %s: %w", key, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return fmt.Errorf("save draft %s: %w", key, err)
		}
		stored = next
		return nil
	}

	// Retry on WATCH conflicts; bounded so a hot key cannot spin forever.
	for attempt := 0; attempt < 5; attempt++ {
		err := s.rdb.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		var stale StaleWriteError
		if errors.As(err, &stale) {
			return stored, stale
		}
		if err != nil {
			return Draft{}, err
		}
		return stored, nil
	}
	return Draft{}, fmt.Errorf("save draft %s: transaction kept conflicting", key)
}

// GetDraft returns the draft for repo+path, or nil when absent.
func (s *RedisStore) GetDraft(ctx context.Context, repo, path string) (*Draft, error) {
	val, err := s.rdb.Get(ctx, fileKey(repo, path)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %s:%s: %w", repo, path, err)
	}
	var d Draft
	if err := json.Unmarshal([]byte(val), &d); err != nil {
		return nil, fmt.Errorf("unmarshal draft %s:%s: %w", repo, path, err)
	}
	return &d, nil
}

// DeleteDraft removes one draft.
func (s *RedisStore) DeleteDraft(ctx context.Context, repo, path string) error {
	if err := s.rdb.Del(ctx, fileKey(repo, path)).Err(); err != nil {
		return fmt.Errorf("delete draft %s:%s: %w", repo, path, err)
	}
	return nil
}

// ListDrafts returns every draft for the repository.
func (s *RedisStore) ListDrafts(ctx context.Context, repo string) ([]Draft, error) {
	keys, err := s.scanKeys(ctx, fileKeyPrefix+repo+":*")
	if err != nil {
		return nil, err
	}

	out := make([]Draft, 0, len(keys))
	for _, key := range keys {
		val, err := s.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue // evicted between scan and read
		}
		if err != nil {
			return nil, fmt.Errorf("get draft %s: %w", key, err)
		}
		var d Draft
		if err := json.Unmarshal([]byte(val), &d); err != nil {
			return nil, fmt.Errorf("unmarshal draft %s: %w", key, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// DeleteAll removes every draft and asset for the repository.
func (s *RedisStore) DeleteAll(ctx context.Context, repo string) error {
	for _, pattern := range []string{fileKeyPrefix + repo + ":*", assetKeyPrefix + repo + ":*"} {
		keys, err := s.scanKeys(ctx, pattern)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			continue
		}
		if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("delete keys for %s: %w", repo, err)
		}
	}
	return nil
}

// Prune keeps the `keep` most-recently-updated drafts and evicts the rest.
// Eviction is by updatedAt, not by access: drafts are rarely read without
// also being rewritten, so recency of write is the signal that matters.
func (s *RedisStore) Prune(ctx context.Context, repo string, keep int) (int, error) {
	if keep <= 0 {
		keep = DefaultKeepPerRepo
	}
	all, err := s.ListDrafts(ctx, repo)
	if err != nil {
		return 0, err
	}
	if len(all) <= keep {
		return 0, nil
	}

	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })

	evicted := 0
	for _, d := range all[keep:] {
		if err := s.DeleteDraft(ctx, repo, d.Path); err != nil {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}

// SaveAsset persists an asset blob, replacing any previous bytes at the path.
func (s *RedisStore) SaveAsset(ctx context.Context, a Asset) error {
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}
	if a.Size == 0 {
		a.Size = int64(len(a.Bytes))
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal asset %s:%s: %w", a.Repo, a.Path, err)
	}
	if err := s.rdb.Set(ctx, assetKey(a.Repo, a.Path), data, 0).Err(); err != nil {
		return fmt.Errorf("save asset %s:%s: %w", a.Repo, a.Path, err)
	}
	return nil
}

// GetAsset returns the asset for repo+path, or nil when absent.
func (s *RedisStore) GetAsset(ctx context.Context, repo, path string) (*Asset, error) {
	val, err := s.rdb.Get(ctx, assetKey(repo, path)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s:%s: %w", repo, path, err)
	}
	var a Asset
	if err := json.Unmarshal([]byte(val), &a); err != nil {
		return nil, fmt.Errorf("unmarshal asset %s:%s: %w", repo, path, err)
	}
	return &a, nil
}

// DeleteAsset removes one asset blob.
func (s *RedisStore) DeleteAsset(ctx context.Context, repo, path string) error {
	if err := s.rdb.Del(ctx, assetKey(repo, path)).Err(); err != nil {
		return fmt.Errorf("delete asset %s:%s: %w", repo, path, err)
	}
	return nil
}

func (s *RedisStore) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	return keys, nil
}
