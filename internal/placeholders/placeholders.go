// Package placeholders substitutes data-row columns into request templates.
//
// Two spellings are recognized:
//
//	${column}            ${column:-default}
//	{{column}}           {{column|default}}
//
// A placeholder whose column is absent from the record and has no default is
// reported as a *MissingColumnError.
package placeholders

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/valyala/bytebufferpool"
)

var pattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}|\{\{([^}|]+)(\|([^}]*))?\}\}`)

// MissingColumnError reports a placeholder that names a column the record does not have.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("placeholder references unknown column %q", e.Column)
}

type match struct {
	start, end int
	column     string
	def        string
	hasDefault bool
}

func scan(template string) []match {
	if !strings.Contains(template, "${") && !strings.Contains(template, "{{") {
		return nil
	}
	idx := pattern.FindAllStringSubmatchIndex(template, -1)
	if len(idx) == 0 {
		return nil
	}
	out := make([]match, 0, len(idx))
	for _, loc := range idx {
		m := match{start: loc[0], end: loc[1]}
		if loc[2] >= 0 {
			m.column = strings.TrimSpace(template[loc[2]:loc[3]])
			if loc[4] >= 0 {
				m.hasDefault = true
				m.def = template[loc[6]:loc[7]]
			}
		} else {
			m.column = strings.TrimSpace(template[loc[8]:loc[9]])
			if loc[10] >= 0 {
				m.hasDefault = true
				m.def = template[loc[12]:loc[13]]
			}
		}
		if m.column == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Apply replaces every placeholder in template with the record's value for that column.
// A nil record leaves the template untouched.
func Apply(template string, record map[string]string) (string, error) {
	if record == nil {
		return template, nil
	}
	matches := scan(template)
	if len(matches) == 0 {
		return template, nil
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	last := 0
	for _, m := range matches {
		_, _ = buf.WriteString(template[last:m.start])
		value, ok := record[m.column]
		switch {
		case ok:
			_, _ = buf.WriteString(value)
		case m.hasDefault:
			_, _ = buf.WriteString(m.def)
		default:
			return "", &MissingColumnError{Column: m.column}
		}
		last = m.end
	}
	_, _ = buf.WriteString(template[last:])
	return buf.String(), nil
}

// ApplyToMap applies Apply to every value of values and returns a new map.
func ApplyToMap(values map[string]string, record map[string]string) (map[string]string, error) {
	if values == nil {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		resolved, err := Apply(value, record)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", key, err)
		}
		out[key] = resolved
	}
	return out, nil
}

// Names returns the sorted set of columns referenced by the templates.
// Placeholders that carry a default are included.
func Names(templates ...string) []string {
	seen := map[string]struct{}{}
	for _, t := range templates {
		for _, m := range scan(t) {
			seen[m.column] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
