package store

import (
	"context"
	"encoding/json"
	"path"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// The redis store keeps each user as a JSON value.
// The keys namespace is organized as follows:
// - `<prefix>/users/<id>` for the user record
// - `<prefix>/users` for the set of user IDs

type redisUsers struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisUsers returns a store backed by Redis
func NewRedisUsers(client redis.UniversalClient, prefix string) Users {
	return &redisUsers{
		client: client,
		prefix: prefix,
	}
}

func (m *redisUsers) userKey(id int64) string {
	return path.Join(m.prefix, "users", strconv.FormatInt(id, 10))
}

func (m *redisUsers) listKey() string {
	return path.Join(m.prefix, "users")
}

func (m *redisUsers) Get(ctx context.Context, id int64) (*User, error) {
	data, err := m.client.Get(ctx, m.userKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get user from Redis")
	}

	u := new(User)
	if err = json.Unmarshal([]byte(data), u); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal user")
	}
	return u, nil
}

func (m *redisUsers) Put(ctx context.Context, user *User) error {
	if err := validate(user); err != nil {
		return err
	}
	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "failed to marshal user")
	}

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, m.userKey(user.ID), data, 0)
	pipe.SAdd(ctx, m.listKey(), user.ID)
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store user in Redis")
	}
	return nil
}

func (m *redisUsers) Delete(ctx context.Context, id int64) error {
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, m.userKey(id))
	pipe.SRem(ctx, m.listKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to delete user from Redis")
	}
	return nil
}

func (m *redisUsers) List(ctx context.Context) ([]*User, error) {
	ids, err := m.client.SMembers(ctx, m.listKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list users from Redis")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(ids))
	for _, s := range ids {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "reason", "invalid_id", "id", s)
			continue
		}
		keys = append(keys, m.userKey(id))
	}

	values, err := m.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get users from Redis")
	}

	list := make([]*User, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// removed since SMEMBERS
			continue
		}
		u := new(User)
		if err := json.Unmarshal([]byte(s), u); err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "reason", "unmarshal", "key", keys[i], "err", err.Error())
			continue
		}
		list = append(list, u)
	}
	sortUsers(list)
	return list, nil
}
