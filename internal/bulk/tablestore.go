package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tawthiq/tawthiq/internal/tabular"
)

// tableTTL bounds how long an uploaded table stays addressable between
// the parse step and the generate step.
const tableTTL = 2 * time.Hour

// ErrTableExpired indicates the parse token no longer resolves to a table.
var ErrTableExpired = errors.New("bulk: uploaded table expired, re-upload the file")

// TableStore keeps parsed tables in Redis between the upload and generate
// calls, addressed by an opaque token.
type TableStore struct {
	client *redis.Client
}

// NewTableStore constructs a TableStore instance.
func NewTableStore(client *redis.Client) *TableStore {
	return &TableStore{client: client}
}

func tableKey(token string) string {
	return "tawthiq:bulk:table:" + token
}

// Put stores the table and returns its token.
func (s *TableStore) Put(ctx context.Context, table tabular.Table) (string, error) {
	data, err := json.Marshal(table)
	if err != nil {
		return "", fmt.Errorf("bulk: encode table: %w", err)
	}
	token := uuid.NewString()
	if err := s.client.Set(ctx, tableKey(token), data, tableTTL).Err(); err != nil {
		return "", fmt.Errorf("bulk: store table: %w", err)
	}
	return token, nil
}

// Get resolves a token back to its table.
func (s *TableStore) Get(ctx context.Context, token string) (tabular.Table, error) {
	data, err := s.client.Get(ctx, tableKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return tabular.Table{}, ErrTableExpired
		}
		return tabular.Table{}, fmt.Errorf("bulk: load table: %w", err)
	}
	var table tabular.Table
	if err := json.Unmarshal(data, &table); err != nil {
		return tabular.Table{}, fmt.Errorf("bulk: decode table: %w", err)
	}
	return table, nil
}
