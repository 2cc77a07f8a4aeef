package preview

import (
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/zeptools/invoicer/logging"
)

const FileSuffix = ".gohtml"

// TemplateStore keeps one parsed template per .gohtml file, keyed by its path
// relative to the root without the suffix.
type TemplateStore struct {
	Base  map[string]*template.Template
	funcs template.FuncMap
}

func NewTemplateStore(funcs template.FuncMap) *TemplateStore {
	return &TemplateStore{
		Base:  make(map[string]*template.Template),
		funcs: funcs,
	}
}

func (s *TemplateStore) Load(fsys fs.FS, root string) error {
	root = path.Clean(root)
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && p != root {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(p, FileSuffix) {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if !utf8.Valid(data) {
			return fmt.Errorf("file %s is not valid UTF-8", p)
		}
		key := strings.TrimSuffix(strings.TrimPrefix(p, root+"/"), FileSuffix)
		if _, exists := s.Base[key]; exists {
			return fmt.Errorf("duplicate template key detected: %s (file=%s)", key, p)
		}
		t, err := template.New(key).Funcs(s.funcs).Parse(string(data))
		if err != nil {
			return fmt.Errorf("parse error in %s: %w", p, err)
		}
		s.Base[key] = t
		return nil
	})
	if err != nil {
		return err
	}
	logging.Component("template").Debug("templates loaded", "count", len(s.Base), "root", root)
	return nil
}

func (s *TemplateStore) Lookup(key string) (*template.Template, error) {
	t, ok := s.Base[key]
	if !ok {
		return nil, fmt.Errorf("template %q not found", key)
	}
	return t, nil
}
