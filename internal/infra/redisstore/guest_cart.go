// Package redisstore はログインしていない買い物客のカートをRedisのハッシュに置く。
// キーは guest_cart:<guestID>、フィールドは商品ID、値は数量。
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/redis/go-redis/v9"
)

// 最後に触ってから30日
const DefaultGuestCartTTL = 30 * 24 * time.Hour

var ErrInvalidQuantity = errors.New("invalid quantity")

// 行があるときだけ数量を上書きする。確認と更新の間にRemoveが割り込めない
var setIfExists = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('EXPIRE', KEYS[1], ARGV[3])
return 1
`)

type GuestCartStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewGuestCartStore(client redis.UniversalClient, ttl time.Duration) *GuestCartStore {
	if ttl <= 0 {
		ttl = DefaultGuestCartTTL
	}
	return &GuestCartStore{client: client, ttl: ttl}
}

// 同一商品はHINCRBYで加算
func (s *GuestCartStore) Add(ctx context.Context, guestID string, productID string, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	key := cartKey(guestID)

	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HIncrBy(ctx, key, productID, qty)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis add failed: %w", err)
	}
	return nil
}

func (s *GuestCartStore) List(ctx context.Context, guestID string) ([]model.GuestCartLine, error) {
	key := cartKey(guestID)

	//読んだら期限を延ばす（キーが無ければEXPIREは何もしない）
	var all *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		all = p.HGetAll(ctx, key)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis list failed: %w", err)
	}
	return decodeLines(all.Val()), nil
}

// qty < 1 は削除。無い商品はErrNotFound
func (s *GuestCartStore) SetQuantity(ctx context.Context, guestID string, productID string, qty int64) error {
	if qty < 1 {
		return s.Remove(ctx, guestID, productID)
	}
	ttl := int64(s.ttl / time.Second)
	updated, err := setIfExists.Run(ctx, s.client, []string{cartKey(guestID)}, productID, qty, ttl).Int64()
	if err != nil {
		return fmt.Errorf("redis set quantity failed: %w", err)
	}
	if updated == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 無くてもエラーにしない
func (s *GuestCartStore) Remove(ctx context.Context, guestID string, productID string) error {
	if err := s.client.HDel(ctx, cartKey(guestID), productID).Err(); err != nil {
		return fmt.Errorf("redis remove failed: %w", err)
	}
	return nil
}

func (s *GuestCartStore) Clear(ctx context.Context, guestID string) error {
	if err := s.client.Del(ctx, cartKey(guestID)).Err(); err != nil {
		return fmt.Errorf("redis clear failed: %w", err)
	}
	return nil
}

// HGETALLとDELをMULTIで実行。同時にマージしても片方しか取れない
func (s *GuestCartStore) Take(ctx context.Context, guestID string) ([]model.GuestCartLine, error) {
	key := cartKey(guestID)

	var all *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		all = p.HGetAll(ctx, key)
		p.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis take failed: %w", err)
	}
	return decodeLines(all.Val()), nil
}

func decodeLines(raw map[string]string) []model.GuestCartLine {
	lines := make([]model.GuestCartLine, 0, len(raw))
	for productID, v := range raw {
		qty, err := strconv.ParseInt(v, 10, 64)
		if err != nil || qty < 1 {
			continue
		}
		lines = append(lines, model.GuestCartLine{ProductID: productID, Quantity: qty})
	}
	//ハッシュは順序が無いので商品IDで並べる
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

func cartKey(guestID string) string {
	return fmt.Sprintf("guest_cart:%s", guestID)
}
