package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const attemptRecordVersion1 = 1

var (
	ErrLedgerBackend = errors.New("attempt ledger backend unavailable")
)

// Attempt is one row of the append-only attempt ledger.
type Attempt struct {
	ID            string
	Username      string
	IP            string
	UserAgent     string
	Success       bool
	FailureReason string
	At            int64 // unix seconds, server-assigned
	Suspicious    bool
	RiskScore     uint8
}

// LedgerConfig controls key layout and retention for the ledger store.
type LedgerConfig struct {
	Prefix      string
	Retention   time.Duration
	RecentLimit int64
}

// LedgerStore appends attempt records and serves the sliding-window counts
// the risk engine aggregates over. Failed attempts are indexed twice, by
// username and by source IP; all attempts are indexed once by username for
// the rapid-attempt count. Full records live in a capped per-user list.
type LedgerStore struct {
	redis  redis.UniversalClient
	config LedgerConfig
}

func NewLedgerStore(redisClient redis.UniversalClient, cfg LedgerConfig) *LedgerStore {
	if cfg.Prefix == "" {
		cfg.Prefix = "agl"
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 50
	}
	return &LedgerStore{redis: redisClient, config: cfg}
}

func (s *LedgerStore) userFailureKey(username string) string {
	return s.config.Prefix + ":uf:" + username
}

func (s *LedgerStore) ipFailureKey(ip string) string {
	return s.config.Prefix + ":ipf:" + ip
}

func (s *LedgerStore) userAttemptKey(username string) string {
	return s.config.Prefix + ":ua:" + username
}

func (s *LedgerStore) recentKey(username string) string {
	return s.config.Prefix + ":re:" + username
}

// Append writes one attempt record. The write is a single pipeline so the
// indexes and the record list never disagree; no update or delete path
// exists.
func (s *LedgerStore) Append(ctx context.Context, record *Attempt) error {
	encoded, err := encodeAttempt(record)
	if err != nil {
		return err
	}

	member := redis.Z{Score: float64(record.At), Member: record.ID}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.userAttemptKey(record.Username), member)
		pipe.Expire(ctx, s.userAttemptKey(record.Username), s.config.Retention)
		if !record.Success {
			pipe.ZAdd(ctx, s.userFailureKey(record.Username), member)
			pipe.Expire(ctx, s.userFailureKey(record.Username), s.config.Retention)
			pipe.ZAdd(ctx, s.ipFailureKey(record.IP), member)
			pipe.Expire(ctx, s.ipFailureKey(record.IP), s.config.Retention)
		}
		pipe.LPush(ctx, s.recentKey(record.Username), encoded)
		pipe.LTrim(ctx, s.recentKey(record.Username), 0, s.config.RecentLimit-1)
		pipe.Expire(ctx, s.recentKey(record.Username), s.config.Retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerBackend, err)
	}
	return nil
}

// CountFailedByUser returns failed attempts for the username since the
// given instant (inclusive).
func (s *LedgerStore) CountFailedByUser(ctx context.Context, username string, since time.Time) (int64, error) {
	return s.countSince(ctx, s.userFailureKey(username), since)
}

// CountFailedByIP returns failed attempts from the source IP since the
// given instant (inclusive).
func (s *LedgerStore) CountFailedByIP(ctx context.Context, ip string, since time.Time) (int64, error) {
	return s.countSince(ctx, s.ipFailureKey(ip), since)
}

// CountByUser returns attempts of any outcome for the username since the
// given instant (inclusive).
func (s *LedgerStore) CountByUser(ctx context.Context, username string, since time.Time) (int64, error) {
	return s.countSince(ctx, s.userAttemptKey(username), since)
}

func (s *LedgerStore) countSince(ctx context.Context, key string, since time.Time) (int64, error) {
	min := strconv.FormatInt(since.Unix(), 10)
	n, err := s.redis.ZCount(ctx, key, min, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLedgerBackend, err)
	}
	return n, nil
}

// Recent returns up to limit most-recent attempt records for the username,
// newest first.
func (s *LedgerStore) Recent(ctx context.Context, username string, limit int64) ([]Attempt, error) {
	if limit <= 0 || limit > s.config.RecentLimit {
		limit = s.config.RecentLimit
	}
	raw, err := s.redis.LRange(ctx, s.recentKey(username), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerBackend, err)
	}

	out := make([]Attempt, 0, len(raw))
	for _, item := range raw {
		record, err := decodeAttempt([]byte(item))
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, nil
}

func encodeAttempt(record *Attempt) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(attemptRecordVersion1)

	flags := byte(0)
	if record.Success {
		flags |= 1
	}
	if record.Suspicious {
		flags |= 2
	}
	buf.WriteByte(flags)
	buf.WriteByte(record.RiskScore)

	if err := binary.Write(&buf, binary.BigEndian, record.At); err != nil {
		return nil, err
	}

	for _, field := range []string{record.ID, record.Username, record.IP, record.UserAgent, record.FailureReason} {
		if len(field) > 65535 {
			return nil, errors.New("attempt field length exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeAttempt(data []byte) (*Attempt, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != attemptRecordVersion1 {
		return nil, errors.New("invalid attempt record version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	score, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &Attempt{
		Success:    flags&1 != 0,
		Suspicious: flags&2 != 0,
		RiskScore:  score,
	}
	if err := binary.Read(reader, binary.BigEndian, &record.At); err != nil {
		return nil, err
	}

	fields := make([]string, 5)
	for i := range fields {
		var length uint16
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		fields[i] = string(raw)
	}
	record.ID = fields[0]
	record.Username = fields[1]
	record.IP = fields[2]
	record.UserAgent = fields[3]
	record.FailureReason = fields[4]

	return record, nil
}
