package validate

import (
	"regexp"
	"strings"
)

var (
	heredocRe = regexp.MustCompile(`<<[-~]?([A-Za-z_][A-Za-z0-9_]*)`)
	doRe      = regexp.MustCompile(`\bdo(\s*\|[^|]*\|)?\s*$`)
	endRe     = regexp.MustCompile(`^\s*end\s*$`)
)

// Syntax runs structural checks over Vagrantfile text. It is not a Ruby
// parser; heredoc bodies and comment lines are skipped.
func Syntax(content string) Report {
	rep := newReport()
	if strings.TrimSpace(content) == "" {
		rep.errorf("Vagrantfile content is empty")
		rep.finish()
		return rep
	}

	if !strings.Contains(content, "Vagrant.configure") {
		rep.errorf("Vagrantfile missing Vagrant.configure block")
	}
	if !strings.Contains(content, "vm.define") && !strings.Contains(content, "vm.box") {
		rep.warnf("No VM definitions found in Vagrantfile")
	}

	quotes, opens, ends := 0, 0, 0
	terminator := ""
	for _, l := range strings.Split(content, "\n") {
		if terminator != "" {
			if strings.TrimSpace(l) == terminator {
				terminator = ""
			}
			continue
		}
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		code, n := stripStrings(l)
		quotes += n
		if m := heredocRe.FindStringSubmatch(code); m != nil {
			terminator = m[1]
		}
		if doRe.MatchString(code) {
			opens++
		}
		if endRe.MatchString(code) {
			ends++
		}
	}

	if quotes%2 != 0 {
		rep.errorf("Unmatched quotes in Vagrantfile")
	}
	if ends == 0 {
		rep.warnf("No 'end' statements found - check block closures")
	} else if opens != ends {
		rep.errorf("Unbalanced blocks: %d 'do' but %d 'end'", opens, ends)
	}
	if strings.Contains(content, "vm.box =") && !strings.Contains(content, "vm.box_version") {
		rep.suggestf("Consider pinning box versions for reproducibility")
	}

	rep.finish()
	return rep
}

// stripStrings drops the contents of double-quoted strings from l and
// counts the unescaped quotes it saw.
func stripStrings(l string) (string, int) {
	var sb strings.Builder
	n := 0
	inside := false
	for i := 0; i < len(l); i++ {
		c := l[i]
		switch {
		case c == '\\' && inside:
			i++
		case c == '"':
			n++
			inside = !inside
			sb.WriteByte(c)
		case !inside:
			sb.WriteByte(c)
		}
	}
	return sb.String(), n
}
