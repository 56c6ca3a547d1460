package faqstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/campus-faq/internal/domain/faq"
)

// ValkeyStore persists unknown questions and popularity counters in a
// Valkey-compatible database.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "faq"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) RecordUnknown(ctx context.Context, q faq.UnknownQuestion) (faq.UnknownQuestion, error) {
	id, err := s.client.Do(ctx, s.client.B().Incr().Key(s.sequenceKey()).Build()).AsInt64()
	if err != nil {
		return faq.UnknownQuestion{}, err
	}
	q.ID = id
	q.Answered = false
	if err := s.saveUnknown(ctx, q); err != nil {
		return faq.UnknownQuestion{}, err
	}
	score := float64(q.AskedAt.UnixMilli())
	cmd := s.client.B().Zadd().Key(s.pendingKey()).ScoreMember().ScoreMember(score, strconv.FormatInt(id, 10)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return faq.UnknownQuestion{}, err
	}
	return q, nil
}

func (s *ValkeyStore) GetUnknown(ctx context.Context, id int64) (faq.UnknownQuestion, bool, error) {
	if id <= 0 {
		return faq.UnknownQuestion{}, false, nil
	}
	payload, err := s.client.Do(ctx, s.client.B().Get().Key(s.unknownKey(id)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return faq.UnknownQuestion{}, false, nil
		}
		return faq.UnknownQuestion{}, false, err
	}
	var q faq.UnknownQuestion
	if err := json.Unmarshal([]byte(payload), &q); err != nil {
		return faq.UnknownQuestion{}, false, err
	}
	return q, true, nil
}

func (s *ValkeyStore) ListUnknown(ctx context.Context, limit int) ([]faq.UnknownQuestion, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.client.Do(ctx, s.client.B().Zrevrange().Key(s.pendingKey()).Start(0).Stop(int64(limit-1)).Build()).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]faq.UnknownQuestion, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		q, found, err := s.GetUnknown(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *ValkeyStore) PendingUnknown(ctx context.Context) (int, error) {
	n, err := s.client.Do(ctx, s.client.B().Zcard().Key(s.pendingKey()).Build()).AsInt64()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return 0, nil
		}
		return 0, err
	}
	return int(n), nil
}

func (s *ValkeyStore) MarkAnswered(ctx context.Context, id int64) error {
	q, found, err := s.GetUnknown(ctx, id)
	if err != nil || !found {
		return err
	}
	q.Answered = true
	if err := s.saveUnknown(ctx, q); err != nil {
		return err
	}
	return s.client.Do(ctx, s.client.B().Zrem().Key(s.pendingKey()).Member(strconv.FormatInt(id, 10)).Build()).Error()
}

func (s *ValkeyStore) IncrementQuery(ctx context.Context, canonical, display string) error {
	if canonical == "" {
		return nil
	}
	if err := s.client.Do(ctx, s.client.B().Zincrby().Key(s.trendingKey()).Increment(1).Member(canonical).Build()).Error(); err != nil {
		return err
	}
	if display != "" {
		_ = s.client.Do(ctx, s.client.B().Set().Key(s.displayKey(canonical)).Value(display).Nx().Build()).Error()
	}
	return nil
}

func (s *ValkeyStore) TopQueries(ctx context.Context, limit int) ([]faq.TrendingQuery, error) {
	if limit <= 0 {
		limit = 10
	}
	resp := s.client.Do(ctx, s.client.B().Zrevrange().Key(s.trendingKey()).Start(0).Stop(int64(limit-1)).Withscores().Build())
	arr, err := resp.ToArray()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]faq.TrendingQuery, 0, len(arr))
	for i := 0; i < len(arr); {
		var (
			member string
			score  float64
		)
		if tuple, tupleErr := arr[i].ToArray(); tupleErr == nil && len(tuple) == 2 {
			// RESP3 returns [member, score] per element
			if member, err = tuple[0].ToString(); err != nil {
				if valkey.IsValkeyNil(err) {
					i++
					continue
				}
				return nil, err
			}
			if score, err = tuple[1].ToFloat64(); err != nil {
				return nil, err
			}
			i++
		} else {
			// RESP2 returns a flat alternating array.
			if i+1 >= len(arr) {
				break
			}
			if member, err = arr[i].ToString(); err != nil {
				if valkey.IsValkeyNil(err) {
					i += 2
					continue
				}
				return nil, err
			}
			if score, err = arr[i+1].ToFloat64(); err != nil {
				return nil, err
			}
			i += 2
		}
		display := s.fetchDisplay(ctx, member)
		out = append(out, faq.TrendingQuery{Query: display, Count: int64(score)})
	}
	return out, nil
}

func (s *ValkeyStore) saveUnknown(ctx context.Context, q faq.UnknownQuestion) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return s.client.Do(ctx, s.client.B().Set().Key(s.unknownKey(q.ID)).Value(string(payload)).Build()).Error()
}

func (s *ValkeyStore) fetchDisplay(ctx context.Context, canonical string) string {
	resp := s.client.Do(ctx, s.client.B().Get().Key(s.displayKey(canonical)).Build())
	display, err := resp.ToString()
	if err != nil || display == "" {
		return canonical
	}
	return display
}

func (s *ValkeyStore) sequenceKey() string {
	return fmt.Sprintf("%s:unknown:seq", s.prefix)
}

func (s *ValkeyStore) unknownKey(id int64) string {
	return fmt.Sprintf("%s:unknown:%d", s.prefix, id)
}

func (s *ValkeyStore) pendingKey() string {
	return fmt.Sprintf("%s:unknown:pending", s.prefix)
}

func (s *ValkeyStore) trendingKey() string {
	return fmt.Sprintf("%s:trending", s.prefix)
}

func (s *ValkeyStore) displayKey(canonical string) string {
	return fmt.Sprintf("%s:display:%s", s.prefix, canonical)
}

var _ faq.Store = (*ValkeyStore)(nil)
