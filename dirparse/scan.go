package dirparse

import (
	"encoding/base64"
	"strings"
)

// object is a multi-line base64 block following an item, delimited by
// "-----BEGIN label-----" and "-----END label-----" lines.
type object struct {
	label string
	data  []byte
}

// item is one keyword line of a directory document together with its
// arguments and optional trailing object. Lines prefixed with the legacy
// "opt" keyword are unwrapped.
type item struct {
	keyword string
	args    []string
	obj     *object
	line    int
}

const (
	beginPrefix = "-----BEGIN "
	endPrefix   = "-----END "
	armorSuffix = "-----"
)

// scanItems splits a document into keyword items. It tolerates unknown
// keywords and extra arguments; structural problems (an object without a
// preceding keyword, an unterminated object, a bare "opt") are errors.
func scanItems(text string) ([]item, error) {
	lines := strings.Split(text, "\n")
	items := make([]item, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, beginPrefix) {
			if len(items) == 0 {
				return nil, parseErr(i+1, "", "object without a preceding keyword")
			}
			last := &items[len(items)-1]
			if last.obj != nil {
				return nil, parseErr(i+1, last.keyword, "multiple objects for one keyword")
			}
			obj, end, err := scanObject(lines, i)
			if err != nil {
				return nil, err
			}
			last.obj = obj
			i = end
			continue
		}
		fields := strings.Fields(line)
		keyword, args := fields[0], fields[1:]
		if keyword == "opt" {
			if len(args) == 0 {
				return nil, parseErr(i+1, "opt", "missing keyword")
			}
			keyword, args = args[0], args[1:]
		}
		items = append(items, item{keyword: keyword, args: args, line: i + 1})
	}
	return items, nil
}

func scanObject(lines []string, start int) (*object, int, error) {
	header := lines[start]
	if !strings.HasSuffix(header, armorSuffix) || len(header) <= len(beginPrefix)+len(armorSuffix) {
		return nil, 0, parseErr(start+1, "", "malformed object header %q", header)
	}
	label := header[len(beginPrefix) : len(header)-len(armorSuffix)]
	footer := endPrefix + label + armorSuffix
	var encoded strings.Builder
	for i := start + 1; i < len(lines); i++ {
		if lines[i] == footer {
			data, err := base64.StdEncoding.DecodeString(encoded.String())
			if err != nil {
				return nil, 0, parseErr(start+1, "", "bad base64 in %s object: %v", label, err)
			}
			return &object{label: label, data: data}, i, nil
		}
		encoded.WriteString(strings.TrimSpace(lines[i]))
	}
	return nil, 0, parseErr(start+1, "", "unterminated %s object", label)
}
