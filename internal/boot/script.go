package boot

import (
	"bufio"
	"io"
	"strings"
)

// Directive is one parsed init-script line: a command name and its
// whitespace-separated arguments.
type Directive struct {
	Name string
	Args []string
	Line int
}

// ParseScript reads an init script: one directive per line, fields
// whitespace-separated. Blank lines and lines whose first token starts
// with '#' are skipped.
func ParseScript(r io.Reader) ([]Directive, error) {
	var out []Directive
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		out = append(out, Directive{Name: fields[0], Args: fields[1:], Line: line})
	}
	return out, sc.Err()
}
