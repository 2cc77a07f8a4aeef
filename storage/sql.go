package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/zeptools/invoicer/db/sqldb"
)

//go:embed sql
var sqlFS embed.FS

const sqlGroup = "invoicestore"

func init() {
	sqldb.RegisterGroup(sqlFS, sqlGroup)
}

// SQLStore keeps documents in the invoice_documents table of any registered sqldb dialect.
type SQLStore struct {
	Client sqldb.Client
	now    func() time.Time
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(client sqldb.Client) *SQLStore {
	return &SQLStore{Client: client, now: time.Now}
}

func (s *SQLStore) stmt(name string) (string, error) {
	store := s.Client.RawStore()
	if store == nil {
		return "", errors.New("sql client not initialized")
	}
	return store.Stmt(sqlGroup, name)
}

// Migrate creates the table if needed.
func (s *SQLStore) Migrate(ctx context.Context) error {
	q, err := s.stmt("create_table")
	if err != nil {
		return err
	}
	if _, err = s.Client.Exec(ctx, q); err != nil {
		return fmt.Errorf("create invoice_documents: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	q, err := s.stmt("load")
	if err != nil {
		return nil, false, err
	}
	var body string
	err = s.Client.QueryRow(ctx, q, key).Scan(&body)
	if errors.Is(err, sqldb.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(body), true, nil
}

func (s *SQLStore) Save(ctx context.Context, key string, data []byte) error {
	q, err := s.stmt("save")
	if err != nil {
		return err
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	_, err = s.Client.Exec(ctx, q, key, string(data), now().UTC().Unix())
	return err
}
