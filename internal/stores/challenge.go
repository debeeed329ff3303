package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeRecordVersion1 = 1

var (
	ErrChallengeNotFound = errors.New("2fa challenge not found")
	ErrChallengeExpired  = errors.New("2fa challenge expired")
	ErrChallengeBackend  = errors.New("2fa challenge backend unavailable")
)

// Challenge is a bound one-time code issued by SendCode. Verify must match
// against this record: CodeHash is the SHA-256 of the delivered code, the
// record expires at ExpiresAt, and Attempts counts failed verifications.
type Challenge struct {
	UserID    string
	Method    string
	CodeHash  [32]byte
	ExpiresAt int64
	Attempts  uint16
}

// ChallengeStore persists SMS/email one-time code challenges keyed by
// account and method, so each issued code is consumed exactly once.
type ChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewChallengeStore(redisClient redis.UniversalClient, prefix string) *ChallengeStore {
	if prefix == "" {
		prefix = "a2c"
	}
	return &ChallengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ChallengeStore) key(userID, method string) string {
	return s.prefix + ":" + userID + ":" + method
}

func (s *ChallengeStore) Save(ctx context.Context, record *Challenge, ttl time.Duration) error {
	encoded, err := encodeChallenge(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(record.UserID, record.Method), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}

func (s *ChallengeStore) Get(ctx context.Context, userID, method string) (*Challenge, error) {
	data, err := s.redis.Get(ctx, s.key(userID, method)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}

	record, err := decodeChallenge(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(userID, method)).Result()
		return nil, ErrChallengeExpired
	}
	return record, nil
}

// Delete removes the challenge and reports whether one existed. The bool
// is the consume-once guard: a concurrent verifier that lost the race sees
// false.
func (s *ChallengeStore) Delete(ctx context.Context, userID, method string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(userID, method)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return n > 0, nil
}

// RecordFailure increments the challenge attempt counter under WATCH so
// concurrent failed verifications never under-count. Returns true when the
// counter reached maxAttempts, in which case the challenge is consumed.
func (s *ChallengeStore) RecordFailure(ctx context.Context, userID, method string, maxAttempts int) (bool, error) {
	const maxRetries = 4
	key := s.key(userID, method)

	for i := 0; i < maxRetries; i++ {
		var exceeded bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeChallenge(data)
			if err != nil {
				return err
			}
			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}

			record.Attempts++
			if int(record.Attempts) >= maxAttempts {
				exceeded = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return nil
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}

			updated, err := encodeChallenge(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, ErrChallengeNotFound
			}
			if errors.Is(err, ErrChallengeExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
		}
		return exceeded, nil
	}

	return false, ErrChallengeNotFound
}

func encodeChallenge(record *Challenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(record.CodeHash[:])

	if len(record.UserID) > 65535 || len(record.Method) > 65535 {
		return nil, errors.New("challenge field length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Method))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Method)

	return buf.Bytes(), nil
}

func decodeChallenge(data []byte) (*Challenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid challenge version")
	}

	record := &Challenge{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	var userLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userLen); err != nil {
		return nil, err
	}
	user := make([]byte, userLen)
	if _, err := io.ReadFull(reader, user); err != nil {
		return nil, err
	}
	record.UserID = string(user)

	var methodLen uint16
	if err := binary.Read(reader, binary.BigEndian, &methodLen); err != nil {
		return nil, err
	}
	method := make([]byte, methodLen)
	if _, err := io.ReadFull(reader, method); err != nil {
		return nil, err
	}
	record.Method = string(method)

	return record, nil
}
