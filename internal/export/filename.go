package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// tagToken matches \g<tagname> placeholders embedded in a file name.
var tagToken = regexp.MustCompile(`\\g<([A-Za-z_][A-Za-z0-9_]*)>`)

// TagTokens returns the distinct metadata tag names referenced by a file
// name, in order of first appearance. A name with no placeholders yields nil.
func TagTokens(name string) []string {
	var tags []string
	seen := map[string]bool{}
	for _, m := range tagToken.FindAllStringSubmatch(name, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			tags = append(tags, m[1])
		}
	}
	return tags
}

// SubstituteTags replaces each \g<tag> placeholder with the tag's value for
// the current partition. Placeholders with no value in tags are left as-is;
// partitioning guarantees that does not happen for referenced tags.
func SubstituteTags(name string, tags map[string]string) string {
	return tagToken.ReplaceAllStringFunc(name, func(tok string) string {
		tag := tagToken.FindStringSubmatch(tok)[1]
		if v, ok := tags[tag]; ok {
			return v
		}
		return tok
	})
}

// resolvePath turns a configured file name into an absolute path: tag
// placeholders substituted, a relative name (including the leading-"."
// convention) resolved against the default output directory, intermediate
// directories created, and the run's output-file base name prepended when
// configured.
func (e *Exporter) resolvePath(name string, tags map[string]string) (string, error) {
	name = SubstituteTags(name, tags)

	if !filepath.IsAbs(name) {
		name = filepath.Join(e.opt.OutputDir, name)
	}

	dir, base := filepath.Split(name)
	if e.opt.PrependOutputFileName && e.opt.OutputFileName != "" {
		prefix := filepath.Base(e.opt.OutputFileName)
		prefix = strings.TrimSuffix(prefix, filepath.Ext(prefix))
		base = prefix + base
	}
	name = filepath.Join(dir, base)

	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return name, nil
}
