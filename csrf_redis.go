package pathpal

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	csrfKeyPrefix      = "csrf"
	csrfRecordVersion1 = 1
)

// RedisCSRFStore persists tokens in Redis for multi-instance deployments.
// Keys carry a TTL of twice the validity window, matching the retention
// contract of [MemoryCSRFStore]; Redis handles physical reclamation.
type RedisCSRFStore struct {
	redis    redis.UniversalClient
	prefix   string
	validity time.Duration
}

// NewRedisCSRFStore creates a Redis-backed token store for the given
// validity window.
func NewRedisCSRFStore(client redis.UniversalClient, validity time.Duration) *RedisCSRFStore {
	return &RedisCSRFStore{redis: client, prefix: csrfKeyPrefix, validity: validity}
}

func (s *RedisCSRFStore) key(token string) string {
	return s.prefix + ":" + token
}

func (s *RedisCSRFStore) Put(ctx context.Context, token string, rec CSRFRecord) error {
	encoded, err := encodeCSRFRecord(rec)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(token), encoded, 2*s.validity).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisCSRFStore) Get(ctx context.Context, token string) (CSRFRecord, bool, error) {
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CSRFRecord{}, false, nil
		}
		return CSRFRecord{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rec, err := decodeCSRFRecord(data)
	if err != nil {
		return CSRFRecord{}, false, err
	}
	return rec, true, nil
}

func (s *RedisCSRFStore) Delete(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisCSRFStore) Close() {}

func encodeCSRFRecord(rec CSRFRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(csrfRecordVersion1)
	if err := binary.Write(&buf, binary.BigEndian, rec.UserID); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.IssuedAt.UnixMilli()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeCSRFRecord(data []byte) (CSRFRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return CSRFRecord{}, err
	}
	if version != csrfRecordVersion1 {
		return CSRFRecord{}, errors.New("invalid csrf record version")
	}

	var rec CSRFRecord
	if err := binary.Read(reader, binary.BigEndian, &rec.UserID); err != nil {
		return CSRFRecord{}, err
	}

	var issuedMilli int64
	if err := binary.Read(reader, binary.BigEndian, &issuedMilli); err != nil {
		return CSRFRecord{}, err
	}
	rec.IssuedAt = time.UnixMilli(issuedMilli)

	return rec, nil
}
