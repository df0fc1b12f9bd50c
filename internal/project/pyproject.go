package project

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"

	"github.com/plandes/relpo/internal/relerr"
	"github.com/plandes/relpo/internal/template"
)

// PyProjectFile is the template rendered first from the template directory.
const PyProjectFile = "pyproject.toml"

// PyProject renders `pyproject.toml` from the template directory followed by
// each configured project template file. The result must be valid TOML.
func (p *Project) PyProject() (string, error) {
	build := p.cfg.Build
	if build.TemplateDir == "" {
		return "", relerr.Configf(relerr.ErrMissingKey, "missing template directory key 'build.template_dir'")
	}

	files := []string{filepath.Join(build.TemplateDir, PyProjectFile)}
	for _, name := range build.PyProjectTemplateFiles {
		files = append(files, filepath.Join(build.ProjectDir, name))
	}

	params := p.TemplateParams()
	var sb strings.Builder
	for _, path := range files {
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return "", relerr.Configf(relerr.ErrNotFound, "template file not found: %s", path)
		}
		content, err := template.RenderFile(path, params)
		if err != nil {
			return "", relerr.Formatf(relerr.ErrMalformedDocument, "%s: %v", path, err)
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}

	out := strings.TrimRightFunc(sb.String(), unicode.IsSpace)
	var doc map[string]any
	if _, err := toml.Decode(out, &doc); err != nil {
		return "", relerr.Formatf(relerr.ErrMalformedDocument, "rendered %s is not valid TOML: %v", PyProjectFile, err)
	}
	return out, nil
}

func repoError(reason string) error {
	if reason != "" {
		reason = strings.ToUpper(reason[:1]) + reason[1:]
	}
	return relerr.Configf(relerr.ErrNotFound, "%s", reason)
}
