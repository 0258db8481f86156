package recall

import (
	"fmt"
	"reflect"
	"strings"
)

const tagKey = "recall"

// schemaMeta holds parsed struct tag metadata, cached per TypedIndex.
type schemaMeta struct {
	typ reflect.Type // struct type for reconstruction

	// Field index in the struct for each role.
	idIdx   int
	textIdx int

	// Mapping from struct field index → metadata key.
	metaFields []fieldMapping
}

type fieldMapping struct {
	structIdx int
	name      string
}

// parseSchema reflects on T and extracts recall struct tag metadata.
// Every tagged field must be a string: documents carry text and string
// metadata only, so other kinds cannot round-trip.
func parseSchema[T any]() (*schemaMeta, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("recall: type %s is not a struct", t)
	}

	meta := &schemaMeta{typ: t, idIdx: -1, textIdx: -1}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" {
			continue
		}
		if f.Type.Kind() != reflect.String {
			return nil, fmt.Errorf("recall: field %s must be a string, got %s", f.Name, f.Type)
		}
		if err := applyTag(meta, i, f.Name, tag); err != nil {
			return nil, err
		}
	}

	return validateSchema(meta, t)
}

// applyTag processes a single struct field's recall tag.
func applyTag(meta *schemaMeta, idx int, fieldName, tag string) error {
	parts := strings.SplitN(tag, ",", 2)
	name := parts[0]
	modifier := ""
	if len(parts) == 2 {
		modifier = parts[1]
	}

	switch modifier {
	case "id":
		if meta.idIdx != -1 {
			return fmt.Errorf("recall: duplicate id tag on field %s", fieldName)
		}
		meta.idIdx = idx
	case "text":
		if meta.textIdx != -1 {
			return fmt.Errorf("recall: duplicate text tag on field %s", fieldName)
		}
		meta.textIdx = idx
	case "":
		// Поле без модификатора — фильтруемое поле метаданных.
		meta.metaFields = append(meta.metaFields, fieldMapping{structIdx: idx, name: name})
	default:
		return fmt.Errorf("recall: unknown modifier %q on field %s", modifier, fieldName)
	}
	return nil
}

func validateSchema(meta *schemaMeta, t reflect.Type) (*schemaMeta, error) {
	if meta.idIdx == -1 {
		return nil, fmt.Errorf("recall: no field with `recall:\"...,id\"` tag in %s", t)
	}
	if meta.textIdx == -1 {
		return nil, fmt.Errorf("recall: no field with `recall:\"...,text\"` tag in %s", t)
	}
	return meta, nil
}

// toDocument converts a typed struct to Document using schema metadata.
func (m *schemaMeta) toDocument(item any) Document {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}

	metadata := make(map[string]string, len(m.metaFields))
	for _, mf := range m.metaFields {
		metadata[mf.name] = v.Field(mf.structIdx).String()
	}

	return Document{
		ID:       v.Field(m.idIdx).String(),
		Text:     v.Field(m.textIdx).String(),
		Metadata: metadata,
	}
}

// fromDocument converts a Document back to a typed struct using schema metadata.
func (m *schemaMeta) fromDocument(doc Document) any {
	v := reflect.New(m.typ).Elem()

	v.Field(m.idIdx).SetString(doc.ID)
	v.Field(m.textIdx).SetString(doc.Text)
	for _, mf := range m.metaFields {
		if val, ok := doc.Metadata[mf.name]; ok {
			v.Field(mf.structIdx).SetString(val)
		}
	}
	return v.Interface()
}
