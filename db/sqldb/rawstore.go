package sqldb

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/zeptools/invoicer/logging"
)

type RawSQLStore struct {
	stmts map[string]string
}

func NewRawStore() *RawSQLStore {
	return &RawSQLStore{stmts: make(map[string]string)}
}

func (s *RawSQLStore) Set(key string, rawStmt string) {
	s.stmts[key] = rawStmt
}

func (s *RawSQLStore) Get(key string) (string, bool) {
	stmt, exists := s.stmts[key]
	return stmt, exists
}

// Stmt looks up group.name and fails loudly when it was never loaded
func (s *RawSQLStore) Stmt(group, name string) (string, error) {
	key := StoreGroupedStmtKey{Group: group, StmtName: name}.String()
	stmt, ok := s.stmts[key]
	if !ok {
		return "", fmt.Errorf("sql stmt %q not loaded", key)
	}
	return stmt, nil
}

func (s *RawSQLStore) Len() int {
	return len(s.stmts)
}

type StoreGroupedStmtKey struct {
	Group    string
	StmtName string
}

func (k StoreGroupedStmtKey) String() string {
	return k.Group + "." + k.StmtName
}

// GroupFS is a statement group: an fs whose `sql` dir holds <name>.<dialect> or <name>.sql files
type GroupFS struct {
	Group string
	FS    fs.FS
}

var (
	rawStoreRegistryMu sync.Mutex
	rawStoreRegistry   []GroupFS
)

func RegisterGroup(fsys fs.FS, group string) {
	rawStoreRegistryMu.Lock()
	defer rawStoreRegistryMu.Unlock()
	for _, g := range rawStoreRegistry {
		if g.Group == group {
			return
		}
	}
	rawStoreRegistry = append(rawStoreRegistry, GroupFS{FS: fsys, Group: group})
}

// LoadRawStmtsToStore fills store from every registered group.
// A dialect file (<name>.<dbtype>) wins over a standard <name>.sql, whose `?` placeholders are rewritten.
func LoadRawStmtsToStore(store *RawSQLStore, dbtype string, placeholderPrefix byte) error {
	rawStoreRegistryMu.Lock()
	groups := append([]GroupFS(nil), rawStoreRegistry...)
	rawStoreRegistryMu.Unlock()

	stmtCnt := 0
	for _, groupFS := range groups {
		files, err := fs.ReadDir(groupFS.FS, "sql")
		if err != nil {
			return fmt.Errorf("failed to read embedded `sql` dir of group %q: %w", groupFS.Group, err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			filename := f.Name()
			ext := path.Ext(filename)
			name := strings.TrimSuffix(filename, ext)
			ext = strings.TrimPrefix(ext, ".")
			if ext != dbtype && ext != "sql" {
				continue
			}
			data, err := fs.ReadFile(groupFS.FS, path.Join("sql", filename))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", filename, err)
			}
			key := StoreGroupedStmtKey{Group: groupFS.Group, StmtName: name}.String()
			if ext == dbtype {
				store.Set(key, string(data))
				stmtCnt++
				continue
			}
			if _, exists := store.Get(key); !exists && !hasDialectFile(files, name, dbtype) {
				store.Set(key, ReplaceStaticPlaceholders(string(data), placeholderPrefix))
				stmtCnt++
			}
		}
	}
	logging.Component("sqldb").Info("raw sql stmts loaded", "dialect", dbtype, "stmts", stmtCnt, "groups", len(groups))
	return nil
}

func hasDialectFile(files []fs.DirEntry, name, dbtype string) bool {
	for _, f := range files {
		if f.Name() == name+"."+dbtype {
			return true
		}
	}
	return false
}
