package validation

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/arthur-debert/docstore/types"
)

// ValidateModel checks a model descriptor for consistency
func ValidateModel(cfg types.ModelConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if !IsValidName(cfg.Name) {
		return fmt.Errorf("model name '%s' contains invalid characters", cfg.Name)
	}

	if err := validateFile(cfg.FileName()); err != nil {
		return fmt.Errorf("model %s: %w", cfg.Name, err)
	}

	for key, v := range cfg.Defaults {
		if key == types.IDField {
			return fmt.Errorf("model %s: defaults cannot set %s", cfg.Name, types.IDField)
		}
		if err := ValidateJSONValue(v, key); err != nil {
			return fmt.Errorf("model %s: %w", cfg.Name, err)
		}
	}

	seen := make(map[string]bool)
	for _, rel := range cfg.Relations {
		if err := validateRelation(rel, cfg.Timestamps); err != nil {
			return fmt.Errorf("model %s: %w", cfg.Name, err)
		}
		if seen[rel.Path] {
			return fmt.Errorf("model %s: duplicate relation path: %s", cfg.Name, rel.Path)
		}
		seen[rel.Path] = true
	}

	if err := validatePaths("text field", cfg.TextFields); err != nil {
		return fmt.Errorf("model %s: %w", cfg.Name, err)
	}
	if err := validatePaths("sub-document array", cfg.SubDocumentArrays); err != nil {
		return fmt.Errorf("model %s: %w", cfg.Name, err)
	}
	return nil
}

// validateFile rejects absolute paths and paths escaping the data directory
func validateFile(name string) error {
	if filepath.IsAbs(name) {
		return fmt.Errorf("file '%s' must be relative to the data directory", name)
	}
	clean := filepath.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("file '%s' escapes the data directory", name)
	}
	return nil
}

func validateRelation(rel types.Relation, timestamps bool) error {
	if rel.Path == "" {
		return fmt.Errorf("relation path cannot be empty")
	}
	if rel.Ref == "" {
		return fmt.Errorf("relation %s: ref cannot be empty", rel.Path)
	}
	if IsReservedField(rel.Path, timestamps) {
		return fmt.Errorf("relation %s: '%s' is a reserved field", rel.Path, rel.Path)
	}
	if !IsValidPath(rel.Path) {
		return fmt.Errorf("relation %s: invalid path", rel.Path)
	}
	return nil
}

func validatePaths(kind string, paths []string) error {
	seen := make(map[string]bool)
	for _, p := range paths {
		if !IsValidPath(p) {
			return fmt.Errorf("invalid %s path '%s'", kind, p)
		}
		if seen[p] {
			return fmt.Errorf("duplicate %s path: %s", kind, p)
		}
		seen[p] = true
	}
	return nil
}

// IsReservedField checks if a field is maintained by the store itself
func IsReservedField(name string, timestamps bool) bool {
	if name == types.IDField {
		return true
	}
	return timestamps && (name == types.CreatedAtField || name == types.UpdatedAtField)
}

// IsValidName checks that a model name only uses letters, digits, '_' and '-'
func IsValidName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return name != ""
}

// IsValidPath checks a dotted field path: no empty segments and no operator
// segments
func IsValidPath(path string) bool {
	if path == "" {
		return false
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" || strings.HasPrefix(seg, "$") {
			return false
		}
	}
	return true
}

// ValidateJSONValue ensures a default value can be stored in a JSON document
func ValidateJSONValue(value any, field string) error {
	if value == nil {
		return nil
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := ValidateJSONValue(v.Index(i).Interface(), fmt.Sprintf("%s.%d", field, i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("default '%s' must use string keys, got %T", field, value)
		}
		iter := v.MapRange()
		for iter.Next() {
			if err := ValidateJSONValue(iter.Value().Interface(), field+"."+iter.Key().String()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		return ValidateJSONValue(v.Elem().Interface(), field)
	case reflect.Struct:
		if _, ok := value.(time.Time); ok {
			return nil
		}
		return fmt.Errorf("default '%s' cannot be a struct type, got %T", field, value)
	default:
		return fmt.Errorf("default '%s' must be JSON data, got %T", field, value)
	}
}
