package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Quote returns s as a double-quoted Ruby string literal.
func Quote(s string) string {
	return `"` + Escape(s) + `"`
}

// Escape makes s safe inside a double-quoted Ruby string: backslashes,
// quotes and interpolation openers are escaped and control characters
// are written as escape sequences.
func Escape(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '#':
			if i+1 < len(s) && (s[i+1] == '{' || s[i+1] == '$' || s[i+1] == '@') {
				sb.WriteString(`\#`)
			} else {
				sb.WriteByte(c)
			}
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// EscapeHeredoc escapes a body for an interpolating heredoc so the script
// reaches the guest unchanged.
func EscapeHeredoc(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `#{`, `\#{`)
	s = strings.ReplaceAll(s, `#$`, `\#$`)
	s = strings.ReplaceAll(s, `#@`, `\#@`)
	return s
}

// HeredocTag returns base, or base with a numeric suffix, such that no
// line of body would close the heredoc early.
func HeredocTag(body, base string) string {
	lines := strings.Split(body, "\n")
	tag := base
	for n := 1; ; n++ {
		clash := false
		for _, l := range lines {
			if strings.TrimSpace(l) == tag {
				clash = true
				break
			}
		}
		if !clash {
			return tag
		}
		tag = fmt.Sprintf("%s_%d", base, n)
	}
}

// Comment flattens s onto one line for use after "# ".
func Comment(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", " ")), " ")
}

// Literal renders a decoded JSON/YAML value as a Ruby literal.
func Literal(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(x)
	case string:
		return Quote(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case []string:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = Quote(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []interface{}:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Literal(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		if len(x) == 0 {
			return "{}"
		}
		keys := SortedKeys(x)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = Quote(k) + " => " + Literal(x[k])
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	default:
		return Quote(fmt.Sprint(x))
	}
}

// SortedKeys returns the keys of m in lexical order so output is stable.
func SortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var rubyKeywords = map[string]bool{
	"alias": true, "and": true, "begin": true, "break": true, "case": true,
	"class": true, "def": true, "defined": true, "do": true, "else": true,
	"elsif": true, "end": true, "ensure": true, "false": true, "for": true,
	"if": true, "in": true, "module": true, "next": true, "nil": true,
	"not": true, "or": true, "redo": true, "rescue": true, "retry": true,
	"return": true, "self": true, "super": true, "then": true, "true": true,
	"undef": true, "unless": true, "until": true, "when": true, "while": true,
	"yield": true, "config": true,
}

// BlockVar turns a VM name into a usable block parameter name.
func BlockVar(name string) string {
	v := strings.ToLower(strings.ReplaceAll(name, "-", "_"))
	if v == "" || rubyKeywords[v] {
		v += "_vm"
	}
	return v
}

// PluginNamespace maps a plugin gem name to its config namespace,
// e.g. vagrant-hostmanager -> hostmanager.
func PluginNamespace(name string) string {
	if ns, ok := knownNamespaces[name]; ok {
		return ns
	}
	ns := strings.TrimPrefix(name, "vagrant-")
	return strings.ReplaceAll(ns, "-", "_")
}

var knownNamespaces = map[string]string{
	"vagrant-cachier":        "cache",
	"vagrant-libvirt":        "libvirt",
	"vagrant-proxyconf":      "proxy",
	"vagrant-timezone":       "timezone",
	"vagrant-docker-compose": "docker_compose",
}
