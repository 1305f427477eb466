package inspect

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bravia-rpc/bravia-go/pkg/service"
	"github.com/bravia-rpc/bravia-go/pkg/wire"
)

// Formatter formats inspection output.
type Formatter struct {
	// ShowParams includes input and output parameter descriptors
	ShowParams bool

	// IndentWidth is the number of spaces per indent level
	IndentWidth int
}

// NewFormatter creates a new Formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		ShowParams:  true,
		IndentWidth: 2,
	}
}

// Indent returns the content with indentation.
func (f *Formatter) Indent(depth int, content string) string {
	width := f.IndentWidth
	if width == 0 {
		width = 2
	}
	return strings.Repeat(" ", depth*width) + content
}

// FormatScalar formats a decoded JSON scalar for display.
func (f *Formatter) FormatScalar(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case string:
		return strconv.Quote(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FormatValue renders a decoded result as an indented tree. Object keys are
// sorted; list elements are numbered from zero.
func (f *Formatter) FormatValue(value any) string {
	var sb strings.Builder
	f.writeValue(&sb, 0, "", value)
	return strings.TrimRight(sb.String(), "\n")
}

func (f *Formatter) writeValue(sb *strings.Builder, depth int, label string, value any) {
	prefix := ""
	if label != "" {
		prefix = label + ":"
	}
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 {
			sb.WriteString(f.Indent(depth, joinLabel(prefix, "{}")) + "\n")
			return
		}
		if prefix != "" {
			sb.WriteString(f.Indent(depth, prefix) + "\n")
			depth++
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			f.writeValue(sb, depth, k, v[k])
		}
	case []any:
		if len(v) == 0 {
			sb.WriteString(f.Indent(depth, joinLabel(prefix, "[]")) + "\n")
			return
		}
		if prefix != "" {
			sb.WriteString(f.Indent(depth, prefix) + "\n")
			depth++
		}
		for i, el := range v {
			f.writeValue(sb, depth, "["+strconv.Itoa(i)+"]", el)
		}
	case [][]any:
		rows := make([]any, len(v))
		for i, r := range v {
			rows[i] = r
		}
		f.writeValue(sb, depth, label, rows)
	default:
		sb.WriteString(f.Indent(depth, joinLabel(prefix, f.FormatScalar(v))) + "\n")
	}
}

func joinLabel(prefix, s string) string {
	if prefix == "" {
		return s
	}
	return prefix + " " + s
}

// FormatMethod formats one advertised method, e.g.
// "setAudioVolume v1.2({"target":"string"}) -> ()".
func (f *Formatter) FormatMethod(md service.MethodDescriptor) string {
	s := md.Name + " v" + md.Version
	if f.ShowParams {
		s += "(" + joinParams(md.Inputs) + ") -> (" + joinParams(md.Outputs) + ")"
	}
	return s
}

// FormatDescription formats every method of an endpoint under a header.
func (f *Formatter) FormatDescription(desc *service.Description) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d methods)\n", desc.Endpoint, len(desc.Methods))
	if len(desc.Methods) == 0 {
		sb.WriteString(f.Indent(1, "(no methods)") + "\n")
	}
	for _, md := range desc.Methods {
		sb.WriteString(f.Indent(1, f.FormatMethod(md)) + "\n")
	}
	return sb.String()
}

func joinParams(params []wire.Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}
