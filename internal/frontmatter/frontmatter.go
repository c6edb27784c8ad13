// Package frontmatter splits lesson files into YAML frontmatter and Markdown body.
package frontmatter

import (
	"bytes"
	"errors"
	"strings"

	"github.com/inful/mdfp"
	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document opened a frontmatter
// block but never closed it.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Split separates `---` delimited YAML frontmatter from the Markdown body.
// Both LF and CRLF files are accepted. Without frontmatter, had is false and
// body is the full input.
func Split(content []byte) (fm []byte, body []byte, had bool, err error) {
	nl := detectNewline(content)
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, nil
	}

	start := len(open)
	if bytes.HasPrefix(content[start:], open) {
		return []byte{}, content[start+len(open):], true, nil
	}

	closeSeq := []byte(nl + "---" + nl)
	idx := bytes.Index(content[start:], closeSeq)
	if idx < 0 {
		// A closing delimiter on the last line without a trailing newline.
		if bytes.HasSuffix(content, []byte(nl+"---")) {
			end := len(content) - len("---")
			return content[start:end], []byte{}, true, nil
		}
		return nil, nil, false, ErrMissingClosingDelimiter
	}

	return content[start : start+idx+len(nl)], content[start+idx+len(closeSeq):], true, nil
}

// Decode unmarshals raw frontmatter into out. Empty frontmatter leaves out untouched.
func Decode(fm []byte, out any) error {
	if len(bytes.TrimSpace(fm)) == 0 {
		return nil
	}
	return yaml.Unmarshal(fm, out)
}

// ParseYAML parses raw frontmatter into a generic map.
func ParseYAML(fm []byte) (map[string]any, error) {
	fields := map[string]any{}
	if err := Decode(fm, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// Fingerprint returns the mdfp content fingerprint of a document. Line
// endings are normalized so CRLF checkouts hash like LF ones.
func Fingerprint(fm, body []byte) string {
	norm := func(b []byte) string {
		return strings.ReplaceAll(string(b), "\r\n", "\n")
	}
	return mdfp.CalculateFingerprintFromParts(strings.TrimSuffix(norm(fm), "\n"), norm(body))
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
