package config

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"
	"time"
)

// secretKeys are masked when the configuration is printed.
var secretKeys = []string{"jwt_secret"}

// Print writes v as an indented key tree.
func (c *Compositor) Print(w io.Writer, v any) {
	printConfig(w, reflect.ValueOf(v), "  ")
}

func printConfig(w io.Writer, val reflect.Value, prefix string) {
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		name := typ.Field(i).Name
		if tag := typ.Field(i).Tag.Get("mapstructure"); tag != "" {
			name = tag
		}

		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				fmt.Fprintf(w, "%s%s: <nil>\n", prefix, name)
				continue
			}
			field = field.Elem()
		}

		switch {
		case field.Type() == reflect.TypeOf(time.Duration(0)):
			fmt.Fprintf(w, "%s%s: %s\n", prefix, name, field.Interface().(time.Duration))
		case field.Kind() == reflect.Struct:
			fmt.Fprintf(w, "%s%s:\n", prefix, name)
			printConfig(w, field, prefix+"  ")
		case field.Kind() == reflect.String:
			value := field.String()
			if value != "" && slices.Contains(secretKeys, name) {
				value = strings.Repeat("*", 8)
			}
			fmt.Fprintf(w, "%s%s: %q\n", prefix, name, value)
		default:
			fmt.Fprintf(w, "%s%s: %v\n", prefix, name, field.Interface())
		}
	}
}

