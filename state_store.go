package totpgate

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

const stateRecordVersion1 = 1

// RedisStore is the production StateStore: one key per suspended
// transaction, tagged with the purpose string, expired by Redis TTL with a
// recorded deadline as a second guard.
//
// RedisStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore describes the newredisstore operation and its observable behavior.
//
// NewRedisStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultConfig().Store.RedisPrefix
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(purpose, id string) string {
	return s.prefix + ":" + purpose + ":" + id
}

// Save persists the transaction snapshot under id for at most ttl.
func (s *RedisStore) Save(ctx context.Context, purpose, id string, tx *Transaction, ttl time.Duration) error {
	encoded, err := encodeTransaction(tx, time.Now().Add(ttl).Unix())
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(purpose, id), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStateBackend, err)
	}
	return nil
}

// Load retrieves the transaction saved under id and purpose.
func (s *RedisStore) Load(ctx context.Context, purpose, id string) (*Transaction, error) {
	data, err := s.redis.Get(ctx, s.key(purpose, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStateBackend, err)
	}

	tx, expiresAt, err := decodeTransaction(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > expiresAt {
		_, _ = s.redis.Del(ctx, s.key(purpose, id)).Result()
		return nil, ErrStateExpired
	}
	return tx, nil
}

// Delete removes the transaction and reports whether this call removed it.
func (s *RedisStore) Delete(ctx context.Context, purpose, id string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(purpose, id)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStateBackend, err)
	}
	return n > 0, nil
}

func writeString(buf *bytes.Buffer, value string) error {
	if len(value) > 65535 {
		return errors.New("state field length exceeded")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(value))); err != nil {
		return err
	}
	buf.WriteString(value)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", err
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func encodeTransaction(tx *Transaction, expiresAt int64) ([]byte, error) {
	if tx == nil {
		return nil, errors.New("nil transaction")
	}

	var buf bytes.Buffer
	buf.WriteByte(stateRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, expiresAt); err != nil {
		return nil, err
	}

	for _, field := range []string{tx.UserID, tx.Secret, tx.AuthenticationURL, tx.ReturnURL, tx.IdPEntityID} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	if len(tx.Attributes) > 65535 {
		return nil, errors.New("state attribute count exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(tx.Attributes))); err != nil {
		return nil, err
	}
	for name, values := range tx.Attributes {
		if err := writeString(&buf, name); err != nil {
			return nil, err
		}
		if len(values) > 65535 {
			return nil, errors.New("state attribute value count exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(values))); err != nil {
			return nil, err
		}
		for _, value := range values {
			if err := writeString(&buf, value); err != nil {
				return nil, err
			}
		}
	}

	return buf.Bytes(), nil
}

func decodeTransaction(data []byte) (*Transaction, int64, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, 0, err
	}
	if version != stateRecordVersion1 {
		return nil, 0, errors.New("invalid state record version")
	}

	var expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return nil, 0, err
	}

	tx := &Transaction{}
	for _, field := range []*string{&tx.UserID, &tx.Secret, &tx.AuthenticationURL, &tx.ReturnURL, &tx.IdPEntityID} {
		value, err := readString(reader)
		if err != nil {
			return nil, 0, err
		}
		*field = value
	}

	var attrCount uint16
	if err := binary.Read(reader, binary.BigEndian, &attrCount); err != nil {
		return nil, 0, err
	}
	if attrCount > 0 {
		tx.Attributes = make(map[string][]string, attrCount)
	}
	for i := uint16(0); i < attrCount; i++ {
		name, err := readString(reader)
		if err != nil {
			return nil, 0, err
		}
		var valueCount uint16
		if err := binary.Read(reader, binary.BigEndian, &valueCount); err != nil {
			return nil, 0, err
		}
		values := make([]string, 0, valueCount)
		for j := uint16(0); j < valueCount; j++ {
			value, err := readString(reader)
			if err != nil {
				return nil, 0, err
			}
			values = append(values, value)
		}
		tx.Attributes[name] = values
	}

	return tx, expiresAt, nil
}
