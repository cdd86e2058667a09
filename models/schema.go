package models

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldKind is the type tag of a schema field.
type FieldKind string

const (
	KindString   FieldKind = "string"
	KindInteger  FieldKind = "integer"
	KindNumber   FieldKind = "number"
	KindBoolean  FieldKind = "boolean"
	KindDate     FieldKind = "date"
	KindDatetime FieldKind = "datetime"
	KindEnum     FieldKind = "enum"
	KindList     FieldKind = "list"
	KindOptional FieldKind = "optional"
)

// OutputShape describes how extraction output maps to records.
type OutputShape string

const (
	// ShapeFlat produces one record per source file.
	ShapeFlat OutputShape = "flat"
	// ShapeNested produces one record per entry of the top-level "item" list.
	ShapeNested OutputShape = "nested"
)

// Field is one node of the schema tree.
type Field struct {
	Name        string    `json:"name"`
	Kind        FieldKind `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
	EnumValues  []string  `json:"enum_values,omitempty"`
	// Fields is the element field set for KindList.
	Fields []Field `json:"fields,omitempty"`
	// Inner is the wrapped field for KindOptional.
	Inner *Field `json:"inner,omitempty"`
}

// Schema is a named, typed shape describing fields to extract.
type Schema struct {
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Fields      []Field `json:"fields"`
}

// Shape returns the schema's top-level output shape. A schema is nested
// when it has exactly one field named "item" of list kind.
func (s Schema) Shape() OutputShape {
	if len(s.Fields) == 1 && s.Fields[0].Name == "item" && s.Fields[0].Kind == KindList {
		return ShapeNested
	}
	return ShapeFlat
}

// FieldNames returns the flat list of target field names, descending into
// the item list for nested schemas. Used by the summarizer to know which
// values must survive compression.
func (s Schema) FieldNames() []string {
	fields := s.Fields
	if s.Shape() == ShapeNested {
		fields = s.Fields[0].Fields
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

// FieldError is a single validation failure, pure data.
type FieldError struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Row is the zero-based list index for nested schemas, -1 otherwise.
	Row int `json:"row,omitempty"`
}

// Validation error kinds.
const (
	ErrMissing     = "missing"
	ErrWrongType   = "wrong_type"
	ErrBadEnum     = "bad_enum"
	ErrBadDate     = "bad_date"
	ErrNotAList    = "not_a_list"
	ErrUnknownItem = "unknown_item"
)

var (
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	datetimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}(:\d{2})?`)
)

// Validate checks a decoded JSON value against the schema and returns all
// violations. For nested schemas the top-level value must carry an "item"
// list and each element is validated independently with its row index.
func Validate(s Schema, value any) []FieldError {
	if s.Shape() == ShapeNested {
		return validateNested(s, value)
	}
	record, ok := value.(map[string]any)
	if !ok {
		return []FieldError{{Path: "$", Kind: ErrWrongType, Message: "expected an object", Row: -1}}
	}
	return validateFields(s.Fields, record, "", -1)
}

func validateNested(s Schema, value any) []FieldError {
	record, ok := value.(map[string]any)
	if !ok {
		return []FieldError{{Path: "$", Kind: ErrWrongType, Message: "expected an object wrapping an item list", Row: -1}}
	}
	raw, ok := record["item"]
	if !ok {
		return []FieldError{{Path: "item", Kind: ErrMissing, Message: "item list is required", Row: -1}}
	}
	list, ok := raw.([]any)
	if !ok {
		return []FieldError{{Path: "item", Kind: ErrNotAList, Message: "item must be a list", Row: -1}}
	}
	elemFields := s.Fields[0].Fields
	var errs []FieldError
	for i, elem := range list {
		obj, ok := elem.(map[string]any)
		if !ok {
			errs = append(errs, FieldError{Path: fmt.Sprintf("item[%d]", i), Kind: ErrWrongType, Message: "expected an object", Row: i})
			continue
		}
		errs = append(errs, validateFields(elemFields, obj, fmt.Sprintf("item[%d].", i), i)...)
	}
	return errs
}

func validateFields(fields []Field, record map[string]any, prefix string, row int) []FieldError {
	var errs []FieldError
	for _, f := range fields {
		path := prefix + f.Name
		raw, present := record[f.Name]
		if !present || raw == nil {
			if f.Required && f.Kind != KindOptional {
				errs = append(errs, FieldError{Path: path, Kind: ErrMissing, Message: "required field is missing", Row: row})
			}
			continue
		}
		errs = append(errs, validateValue(f, raw, path, row)...)
	}
	return errs
}

func validateValue(f Field, raw any, path string, row int) []FieldError {
	switch f.Kind {
	case KindOptional:
		if f.Inner == nil {
			return nil
		}
		return validateValue(*f.Inner, raw, path, row)
	case KindString:
		if _, ok := raw.(string); !ok {
			return []FieldError{{Path: path, Kind: ErrWrongType, Message: "expected a string", Row: row}}
		}
	case KindInteger:
		n, ok := raw.(float64)
		if !ok || n != float64(int64(n)) {
			return []FieldError{{Path: path, Kind: ErrWrongType, Message: "expected an integer", Row: row}}
		}
	case KindNumber:
		if _, ok := raw.(float64); !ok {
			return []FieldError{{Path: path, Kind: ErrWrongType, Message: "expected a number", Row: row}}
		}
	case KindBoolean:
		if _, ok := raw.(bool); !ok {
			return []FieldError{{Path: path, Kind: ErrWrongType, Message: "expected a boolean", Row: row}}
		}
	case KindDate:
		s, ok := raw.(string)
		if !ok || !dateRe.MatchString(s) {
			return []FieldError{{Path: path, Kind: ErrBadDate, Message: "expected a YYYY-MM-DD date", Row: row}}
		}
	case KindDatetime:
		s, ok := raw.(string)
		if !ok || !datetimeRe.MatchString(s) {
			return []FieldError{{Path: path, Kind: ErrBadDate, Message: "expected an ISO 8601 datetime", Row: row}}
		}
	case KindEnum:
		s, ok := raw.(string)
		if !ok {
			return []FieldError{{Path: path, Kind: ErrWrongType, Message: "expected a string", Row: row}}
		}
		for _, v := range f.EnumValues {
			if s == v {
				return nil
			}
		}
		return []FieldError{{
			Path:    path,
			Kind:    ErrBadEnum,
			Message: fmt.Sprintf("value %q is not one of [%s]", s, strings.Join(f.EnumValues, ", ")),
			Row:     row,
		}}
	case KindList:
		list, ok := raw.([]any)
		if !ok {
			return []FieldError{{Path: path, Kind: ErrNotAList, Message: "expected a list", Row: row}}
		}
		var errs []FieldError
		for i, elem := range list {
			obj, ok := elem.(map[string]any)
			if !ok {
				errs = append(errs, FieldError{Path: fmt.Sprintf("%s[%d]", path, i), Kind: ErrWrongType, Message: "expected an object", Row: row})
				continue
			}
			errs = append(errs, validateFields(f.Fields, obj, fmt.Sprintf("%s[%d].", path, i), row)...)
		}
		return errs
	}
	return nil
}

// DescribeSchema renders a human-readable field listing for prompt assembly.
func DescribeSchema(s Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", s.Name, s.Description)
	describeFields(&b, s.Fields, 0)
	return b.String()
}

func describeFields(b *strings.Builder, fields []Field, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, f := range fields {
		req := "optional"
		if f.Required {
			req = "required"
		}
		kind := string(f.Kind)
		if f.Kind == KindEnum {
			kind = "enum(" + strings.Join(f.EnumValues, "|") + ")"
		}
		if f.Kind == KindOptional && f.Inner != nil {
			kind = "optional " + string(f.Inner.Kind)
		}
		fmt.Fprintf(b, "%s- %s (%s, %s): %s\n", indent, f.Name, kind, req, f.Description)
		if f.Kind == KindList {
			describeFields(b, f.Fields, depth+1)
		}
	}
}
