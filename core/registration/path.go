package registration

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	documentsGroup = "documents"
	mirrorFlagPath = "address.sameAsPresentAddress"
	agePath        = "age"
	dobPath        = "dateOfBirth"
)

type fieldRef struct {
	index []int
	typ   reflect.Type
}

var (
	docType = reflect.TypeOf((*Document)(nil))

	// fieldIndex maps every leaf dot-path of Record to its struct field.
	fieldIndex = make(map[string]fieldRef)
	leafPaths  []string
)

func init() {
	indexFields(reflect.TypeOf(Record{}), "", nil)
}

func indexFields(t reflect.Type, prefix string, index []int) {
	for i := 0; i < t.NumField(); i++ {
		fld := t.Field(i)
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		idx := make([]int, len(index)+1)
		copy(idx, index)
		idx[len(index)] = i

		if fld.Type.Kind() == reflect.Struct {
			indexFields(fld.Type, path, idx)
			continue
		}
		fieldIndex[path] = fieldRef{index: idx, typ: fld.Type}
		leafPaths = append(leafPaths, path)
	}
}

// Paths returns every leaf dot-path of Record in declaration order.
func Paths() []string {
	paths := make([]string, len(leafPaths))
	copy(paths, leafPaths)
	return paths
}

// IsPath reports whether path addresses a leaf of Record.
func IsPath(path string) bool {
	_, ok := fieldIndex[path]
	return ok
}

func isDocumentPath(path string) bool {
	return strings.HasPrefix(path, documentsGroup+".")
}

// Get returns the raw value at path: a string for text and enum fields, a bool for flags
// and a *Document for document slots. ok is false when path does not exist.
func Get(rec Record, path string) (value interface{}, ok bool) {
	ref, ok := fieldIndex[path]
	if !ok {
		return nil, false
	}
	v := reflect.ValueOf(rec).FieldByIndex(ref.index)
	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Bool:
		return v.Bool(), true
	default:
		return v.Interface(), true
	}
}

// Display returns the value at path formatted for read contexts; missing and nil values are "".
func Display(rec Record, path string) string {
	value, ok := Get(rec, path)
	if !ok {
		return ""
	}
	switch val := value.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case *Document:
		if val == nil {
			return ""
		}
		return val.Name
	default:
		return ""
	}
}

// Set returns a copy of rec with value written at path; rec itself is left untouched.
func Set(rec Record, path string, value interface{}) (Record, error) {
	ref, ok := fieldIndex[path]
	if !ok {
		return rec, errors.Wrapf(ErrUnknownPath, "%q", path)
	}
	val, err := convertValue(ref.typ, value)
	if err != nil {
		return rec, errors.Wrapf(err, "%q", path)
	}
	out := rec
	reflect.ValueOf(&out).Elem().FieldByIndex(ref.index).Set(val)
	return out, nil
}

func convertValue(typ reflect.Type, value interface{}) (reflect.Value, error) {
	switch typ.Kind() {
	case reflect.String:
		rv := reflect.ValueOf(value)
		if !rv.IsValid() {
			return reflect.Zero(typ), nil
		}
		if rv.Kind() != reflect.String {
			return reflect.Value{}, ErrInvalidValue
		}
		return rv.Convert(typ), nil
	case reflect.Bool:
		switch val := value.(type) {
		case bool:
			return reflect.ValueOf(val), nil
		case string:
			if strings.TrimSpace(val) == "" {
				return reflect.ValueOf(false), nil
			}
			b, err := strconv.ParseBool(val)
			if err != nil {
				return reflect.Value{}, ErrInvalidValue
			}
			return reflect.ValueOf(b), nil
		case nil:
			return reflect.ValueOf(false), nil
		}
		return reflect.Value{}, ErrInvalidValue
	case reflect.Ptr:
		if typ != docType {
			return reflect.Value{}, ErrInvalidValue
		}
		switch val := value.(type) {
		case nil:
			return reflect.Zero(typ), nil
		case *Document:
			return reflect.ValueOf(val), nil
		}
		return reflect.Value{}, ErrInvalidValue
	}
	return reflect.Value{}, ErrInvalidValue
}
