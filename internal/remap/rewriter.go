package remap

import (
	"path/filepath"
	"regexp"
	"strings"

	"remapper/internal/errors"

	"go.uber.org/zap"
)

// importPattern matches `import "x";`, `import 'x';` and
// `import {A, B} from "x";`. It is a regexp scan, so import-like text inside
// comments or string literals is matched too.
const importPattern = `import\s+(?P<items>\{.*?\}\s+from\s+)?["'](?P<path>[^"']+)["'];`

func compileImportPattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.RegexCompile(pattern, err)
	}
	return re, nil
}

// rewriteImports points every import of a renamed file at its new flat name.
// Everything outside a rewritten statement is copied byte for byte.
func (r *Remapper) rewriteImports(st *state, content, dir string) string {
	matches := r.importRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content
	}

	itemsIdx := r.importRe.SubexpIndex("items")
	pathIdx := r.importRe.SubexpIndex("path")

	var b strings.Builder
	b.Grow(len(content))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		b.WriteString(content[last:start])
		last = end

		importPath := content[m[2*pathIdx]:m[2*pathIdx+1]]
		items := ""
		if m[2*itemsIdx] >= 0 {
			items = content[m[2*itemsIdx]:m[2*itemsIdx+1]]
		}

		rename, ok := st.pathMap[resolveImport(dir, importPath)]
		if !ok {
			b.WriteString(content[start:end])
			continue
		}

		r.logger.Debug("rewriting import",
			zap.String("import", importPath),
			zap.String("filename", rename.Filename))
		b.WriteString(`import ` + items + `"./` + rename.Filename + `";`)
	}
	b.WriteString(content[last:])

	return b.String()
}

// resolveImport turns an import path into a path map key: canonical when the
// target exists, the literal import path otherwise.
func resolveImport(dir, importPath string) string {
	target := importPath
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, filepath.FromSlash(importPath))
	}
	if c, err := canonicalize(target); err == nil {
		return c
	}
	return importPath
}
