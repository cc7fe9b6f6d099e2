package sap

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mitlibraries/llama/pkg/models"
)

// CheckForMultibyte reports every character that takes more than one byte in
// UTF-8, anywhere in v. SAP rejects such characters. Fields are named by their
// json tags joined with ":", e.g. vendor:address:lines:0.
func CheckForMultibyte(v any) []models.MultibyteError {
	var out []models.MultibyteError
	walk(reflect.ValueOf(v), nil, &out)
	return out
}

func walk(v reflect.Value, path []string, out *[]models.MultibyteError) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			walk(v.Elem(), path, out)
		}
	case reflect.String:
		field := strings.Join(path, ":")
		for _, r := range v.String() {
			if utf8.RuneLen(r) > 1 {
				*out = append(*out, models.MultibyteError{Field: field, Character: string(r)})
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			walk(v.Index(i), append(path, strconv.Itoa(i)), out)
		}
	case reflect.Map:
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return keys[i].String() < keys[j].String()
		})
		for _, k := range keys {
			walk(v.MapIndex(k), append(path, k.String()), out)
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.IsExported() {
				continue
			}
			name := sf.Name
			if tag, _, _ := strings.Cut(sf.Tag.Get("json"), ","); tag != "" {
				if tag == "-" {
					continue
				}
				name = tag
			}
			walk(v.Field(i), append(path, name), out)
		}
	}
}
