package envdist

import (
	"path"
	"path/filepath"
	"regexp"

	"github.com/plandes/relpo/internal/relerr"
)

var (
	urlRe = regexp.MustCompile(`^(direct\+)?(http.+)/(.+)`)

	platformIndependentRe = regexp.MustCompile(`.+(?:py3-none-any\.whl|tar\.(?:gz|bz2))$`)

	// nameVersionPatterns are tried in order on the source file name; the
	// first match yields the name and version.
	nameVersionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^([A-Za-z0-9]+(?:[_-][a-z0-9]+)*)-(.+?)((?:-py3|\.tar).+)$`),
		regexp.MustCompile(`^([A-Za-z0-9]+(?:[_-][a-z0-9]+)*)-(V?[0-9.]+(?:-?(?:stable|beta|alpha|RC[0-9]))?)(.+)$`),
	}
)

// Dependency is one package of a lock file platform. Its locator is either a
// local file path or `[direct+]<url-prefix>/<file-name>`. Everything but the
// local file is derived from the locator when the dependency is created.
type Dependency struct {
	conda  bool
	source string

	direct     bool
	urlPrefix  string
	sourceFile string
	name       string
	version    string

	localFile string
	bound     bool
}

// NewDependency creates a dependency from its lock file locator.
func NewDependency(conda bool, source string) *Dependency {
	d := &Dependency{conda: conda, source: source}
	if m := urlRe.FindStringSubmatch(source); m != nil {
		d.direct = m[1] != ""
		d.urlPrefix = m[2]
		d.sourceFile = m[3]
	}
	if d.sourceFile != "" {
		for _, re := range nameVersionPatterns {
			if m := re.FindStringSubmatch(d.sourceFile); m != nil {
				d.name, d.version = m[1], m[2]
				break
			}
		}
	}
	return d
}

// IsConda is true for conda packages and false for PyPI packages.
func (d *Dependency) IsConda() bool { return d.conda }

// Source is the locator as given in the lock file.
func (d *Dependency) Source() string { return d.source }

// IsFile is true when the locator is a project local file rather than a URL.
func (d *Dependency) IsFile() bool { return d.urlPrefix == "" }

// SourceFile is the file name portion of the URL, empty for local files.
func (d *Dependency) SourceFile() string { return d.sourceFile }

// IsDirect is true for a pip direct URL (`<name> @ <url>`).
func (d *Dependency) IsDirect() bool { return d.direct }

// URL is the locator without the `direct+` marker, empty for local files.
func (d *Dependency) URL() string {
	if d.IsFile() {
		return ""
	}
	return d.urlPrefix + "/" + d.sourceFile
}

// Name is the package name decomposed from the file name, or empty.
func (d *Dependency) Name() string { return d.name }

// Version is the package version decomposed from the file name, or empty.
func (d *Dependency) Version() string { return d.version }

// NameVersion returns the name and version when both were decomposed.
func (d *Dependency) NameVersion() (name, version string, ok bool) {
	if d.name == "" || d.version == "" {
		return "", "", false
	}
	return d.name, d.version, true
}

// RequireNameVersion is NameVersion for callers that cannot continue
// without them.
func (d *Dependency) RequireNameVersion() (name, version string, err error) {
	name, version, ok := d.NameVersion()
	if !ok {
		return "", "", relerr.Formatf(relerr.ErrNameVersion,
			"no name and version in dependency file name: %s", d.source)
	}
	return name, version, nil
}

// IsPlatformIndependent is true for pure Python wheels and source
// distributions. Conda packages never are.
func (d *Dependency) IsPlatformIndependent() bool {
	return !d.conda && platformIndependentRe.MatchString(d.source)
}

// NativeFile is the local file path for local file dependencies.
func (d *Dependency) NativeFile() string {
	if d.IsFile() {
		return d.source
	}
	return ""
}

// DistName is the file name used in the distribution.
func (d *Dependency) DistName() string {
	if d.IsFile() {
		return filepath.Base(d.source)
	}
	return d.sourceFile
}

// LocalFile is the fetched or native file, set once the dependency is
// fetched.
func (d *Dependency) LocalFile() (string, bool) {
	return d.localFile, d.bound
}

// bind sets the local file. It has no effect once bound.
func (d *Dependency) bind(file string) {
	if d.bound {
		return
	}
	d.localFile, d.bound = file, true
}

// relPath is the dependency's location relative to the stage root.
func (d *Dependency) relPath(subdir string) string {
	return path.Join(subdir, d.DistName())
}

func (d *Dependency) String() string {
	switch {
	case d.IsFile():
		return d.NativeFile()
	case d.direct:
		name, _, err := d.RequireNameVersion()
		if err != nil {
			return d.URL()
		}
		return name + " @ " + d.URL()
	default:
		return d.source
	}
}

// DependencySummary is the serializable form of a dependency.
type DependencySummary struct {
	Name                  *string `json:"name" yaml:"name"`
	Version               *string `json:"version" yaml:"version"`
	URL                   *string `json:"url" yaml:"url"`
	IsConda               bool    `json:"is_conda" yaml:"is_conda"`
	IsFile                bool    `json:"is_file" yaml:"is_file"`
	IsDirect              bool    `json:"is_direct" yaml:"is_direct"`
	IsPlatformIndependent bool    `json:"is_platform_independent" yaml:"is_platform_independent"`
	NativeFile            *string `json:"native_file" yaml:"native_file"`
	LocalFile             *string `json:"local_file" yaml:"local_file"`
}

// Summary returns the serializable form.
func (d *Dependency) Summary() DependencySummary {
	opt := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	lf, _ := d.LocalFile()
	return DependencySummary{
		Name:                  opt(d.name),
		Version:               opt(d.version),
		URL:                   opt(d.URL()),
		IsConda:               d.conda,
		IsFile:                d.IsFile(),
		IsDirect:              d.direct,
		IsPlatformIndependent: d.IsPlatformIndependent(),
		NativeFile:            opt(d.NativeFile()),
		LocalFile:             opt(lf),
	}
}
