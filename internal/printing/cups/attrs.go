package cups

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/phin1x/go-ipp"
)

// jobTemplateTags are job template attributes go-ipp has no tag for.
var jobTemplateTags = map[string]int8{
	"sides":            ipp.TagKeyword,
	"print-color-mode": ipp.TagKeyword,
}

func init() {
	for name, tag := range jobTemplateTags {
		if _, known := ipp.AttributeTagMapping[name]; !known {
			ipp.AttributeTagMapping[name] = tag
		}
	}
}

func attrValues(a ipp.Attributes, name string) []interface{} {
	vals := a[name]
	out := make([]interface{}, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.Value)
	}
	return out
}

func attrString(a ipp.Attributes, name string) string {
	vals := a[name]
	if len(vals) == 0 || vals[0].Value == nil {
		return ""
	}
	if s, ok := vals[0].Value.(string); ok {
		return s
	}
	return fmt.Sprint(vals[0].Value)
}

func attrStrings(a ipp.Attributes, name string) []string {
	var out []string
	for _, v := range attrValues(a, name) {
		if v == nil {
			continue
		}
		out = append(out, fmt.Sprint(v))
	}
	return out
}

func attrInt(a ipp.Attributes, name string) int {
	vals := a[name]
	if len(vals) == 0 {
		return 0
	}
	return toInt(vals[0].Value)
}

func attrBool(a ipp.Attributes, name string) bool {
	vals := a[name]
	if len(vals) == 0 {
		return false
	}
	switch v := vals[0].Value.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return toInt(vals[0].Value) != 0
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

// flatten renders every attribute as a comma-joined string.
func flatten(a ipp.Attributes) map[string]string {
	out := make(map[string]string, len(a))
	for name := range a {
		out[name] = strings.Join(attrStrings(a, name), ",")
	}
	return out
}

// lastPathSegment extracts the queue name from a printer URI.
func lastPathSegment(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
