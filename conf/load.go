package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/zeptools/invoicer/db/sqldb"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Core) configPath(name string) string {
	return filepath.Join(c.AppRoot, "config", name)
}

// loadJSONFile decodes config/<name> into v and validates it.
// found is false when the file does not exist; v is then left untouched.
func (c *Core) loadJSONFile(name string, v any) (found bool, err error) {
	data, err := os.ReadFile(c.configPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err = json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("%s: %w", name, err)
	}
	if err = validateConf(v); err != nil {
		return true, fmt.Errorf("%s: %w", name, err)
	}
	return true, nil
}

func validateConf(v any) error {
	switch m := v.(type) {
	case *map[string]*sqldb.Conf:
		for name, entry := range *m {
			if err := validate.Struct(entry); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		return nil
	}
	return validate.Struct(v)
}
