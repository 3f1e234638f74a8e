package analysis

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/ygg/internal/repository"
	"github.com/temirov/ygg/internal/versions"
)

const (
	nodeModulesSegmentConstant      = "node_modules/"
	pnpmLockfileNameConstant        = "pnpm-lock.yaml"
	pnpmPathPrefixConstant          = "/"
	pnpmPeerSuffixStartConstant     = "("
	pnpmLegacyPeerSeparatorConstant = "_"
	scopePrefixConstant             = "@"
	versionSeparatorConstant        = "@"
	legacyVersionSeparatorConstant  = "/"
	parseErrorTemplateConstant      = "unable to parse %s: %w"
	legacyLockfileVersionConstant   = 1
)

// LockfileFormat selects the lockfile grammar.
type LockfileFormat string

// Supported lockfile formats.
const (
	LockfileFormatNPM  LockfileFormat = LockfileFormat("npm")
	LockfileFormatPNPM LockfileFormat = LockfileFormat("pnpm")
)

// DetectLockfileFormat infers the format from the file name. Unknown names are read as npm JSON.
func DetectLockfileFormat(fileName string) LockfileFormat {
	if strings.EqualFold(path.Base(strings.TrimSpace(fileName)), pnpmLockfileNameConstant) {
		return LockfileFormatPNPM
	}
	return LockfileFormatNPM
}

// ParseFailure reports lockfile content that could not be decoded.
type ParseFailure struct {
	FileName string
	Cause    error
}

// Error describes the parse failure.
func (parseFailure ParseFailure) Error() string {
	return fmt.Errorf(parseErrorTemplateConstant, parseFailure.FileName, parseFailure.Cause).Error()
}

// Unwrap exposes the decoder error.
func (parseFailure ParseFailure) Unwrap() error {
	return parseFailure.Cause
}

// LockfileAnalyzer extracts the resolved versions of one package from a lockfile.
type LockfileAnalyzer struct {
	PackageName string
	FileName    string
	Format      LockfileFormat
}

// NewLockfileAnalyzer builds an analyzer for packageName in fileName.
func NewLockfileAnalyzer(packageName string, fileName string) LockfileAnalyzer {
	return LockfileAnalyzer{PackageName: packageName, FileName: fileName, Format: DetectLockfileFormat(fileName)}
}

// Analyze parses content and reports every distinct version of the package.
func (analyzer LockfileAnalyzer) Analyze(reference repository.Reference, content []byte) Outcome {
	var (
		foundVersions []string
		parseError    error
	)
	switch analyzer.Format {
	case LockfileFormatPNPM:
		foundVersions, parseError = pnpmVersions(content, analyzer.PackageName)
	default:
		foundVersions, parseError = packageLockVersions(content, analyzer.PackageName)
	}
	if parseError != nil {
		return FetchFailed{Repository: reference, Reason: FailureReasonParse, Cause: ParseFailure{FileName: analyzer.FileName, Cause: parseError}}
	}
	if len(foundVersions) == 0 {
		return PackageAbsent{Repository: reference}
	}
	return VersionFound{Repository: reference, Versions: foundVersions}
}

type packageLockDocument struct {
	LockfileVersion int                              `json:"lockfileVersion"`
	Packages        map[string]packageLockEntry      `json:"packages"`
	Dependencies    map[string]packageLockDependency `json:"dependencies"`
}

type packageLockEntry struct {
	Version string `json:"version"`
}

type packageLockDependency struct {
	Version      string                           `json:"version"`
	Dependencies map[string]packageLockDependency `json:"dependencies"`
}

func packageLockVersions(content []byte, packageName string) ([]string, error) {
	var document packageLockDocument
	if decodeError := json.Unmarshal(content, &document); decodeError != nil {
		return nil, decodeError
	}

	collector := newVersionCollector()
	if document.LockfileVersion != legacyLockfileVersionConstant {
		for packagePath, entry := range document.Packages {
			if installedPackageName(packagePath) == packageName {
				collector.add(entry.Version)
			}
		}
	}
	if collector.empty() {
		collectDependencyVersions(document.Dependencies, packageName, collector)
	}
	return collector.sorted(), nil
}

// installedPackageName returns the package installed at a node_modules path, or "" for the root and workspace entries.
func installedPackageName(packagePath string) string {
	segmentIndex := strings.LastIndex(packagePath, nodeModulesSegmentConstant)
	if segmentIndex < 0 {
		return ""
	}
	return packagePath[segmentIndex+len(nodeModulesSegmentConstant):]
}

func collectDependencyVersions(dependencies map[string]packageLockDependency, packageName string, collector *versionCollector) {
	for dependencyName, dependency := range dependencies {
		if dependencyName == packageName {
			collector.add(dependency.Version)
		}
		collectDependencyVersions(dependency.Dependencies, packageName, collector)
	}
}

type pnpmLockDocument struct {
	LockfileVersion any                       `yaml:"lockfileVersion"`
	Packages        map[string]any            `yaml:"packages"`
	Snapshots       map[string]any            `yaml:"snapshots"`
	Importers       map[string]pnpmImporter   `yaml:"importers"`
	Dependencies    map[string]pnpmDependency `yaml:"dependencies"`
}

type pnpmImporter struct {
	Dependencies         map[string]pnpmDependency `yaml:"dependencies"`
	DevDependencies      map[string]pnpmDependency `yaml:"devDependencies"`
	OptionalDependencies map[string]pnpmDependency `yaml:"optionalDependencies"`
}

// pnpmDependency accepts both the scalar form (name: 1.0.0) and the mapping form (name: {version: 1.0.0}).
type pnpmDependency struct {
	Version string
}

func (dependency *pnpmDependency) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		dependency.Version = node.Value
		return nil
	}
	var mapping struct {
		Version string `yaml:"version"`
	}
	if decodeError := node.Decode(&mapping); decodeError != nil {
		return decodeError
	}
	dependency.Version = mapping.Version
	return nil
}

func pnpmVersions(content []byte, packageName string) ([]string, error) {
	var document pnpmLockDocument
	if decodeError := yaml.Unmarshal(content, &document); decodeError != nil {
		return nil, decodeError
	}

	collector := newVersionCollector()
	for _, packageTable := range []map[string]any{document.Packages, document.Snapshots} {
		for packageKey := range packageTable {
			name, version := splitPnpmPackageKey(packageKey)
			if name == packageName {
				collector.add(version)
			}
		}
	}

	if collector.empty() {
		importerDependencies := []map[string]pnpmDependency{document.Dependencies}
		for _, importer := range document.Importers {
			importerDependencies = append(importerDependencies, importer.Dependencies, importer.DevDependencies, importer.OptionalDependencies)
		}
		for _, dependencies := range importerDependencies {
			if dependency, exists := dependencies[packageName]; exists {
				collector.add(stripPnpmPeerSuffix(dependency.Version))
			}
		}
	}
	return collector.sorted(), nil
}

// splitPnpmPackageKey handles "name@1.0.0(peer@2)", "/name@1.0.0", and the legacy "/name/1.0.0_peer@2" forms.
func splitPnpmPackageKey(packageKey string) (string, string) {
	trimmedKey := strings.TrimPrefix(strings.TrimSpace(packageKey), pnpmPathPrefixConstant)
	if peerIndex := strings.Index(trimmedKey, pnpmPeerSuffixStartConstant); peerIndex >= 0 {
		trimmedKey = trimmedKey[:peerIndex]
	}

	scope := ""
	unscopedKey := trimmedKey
	if strings.HasPrefix(trimmedKey, scopePrefixConstant) {
		scopeEnd := strings.Index(trimmedKey, legacyVersionSeparatorConstant)
		if scopeEnd < 0 {
			return "", ""
		}
		scope = trimmedKey[:scopeEnd+1]
		unscopedKey = trimmedKey[scopeEnd+1:]
	}

	if separatorIndex := strings.Index(unscopedKey, legacyVersionSeparatorConstant); separatorIndex > 0 {
		version := unscopedKey[separatorIndex+1:]
		if legacyPeerIndex := strings.Index(version, pnpmLegacyPeerSeparatorConstant); legacyPeerIndex >= 0 {
			version = version[:legacyPeerIndex]
		}
		return scope + unscopedKey[:separatorIndex], version
	}

	if separatorIndex := strings.LastIndex(unscopedKey, versionSeparatorConstant); separatorIndex > 0 {
		return scope + unscopedKey[:separatorIndex], unscopedKey[separatorIndex+1:]
	}
	return "", ""
}

func stripPnpmPeerSuffix(version string) string {
	if peerIndex := strings.Index(version, pnpmPeerSuffixStartConstant); peerIndex >= 0 {
		return version[:peerIndex]
	}
	return version
}

type versionCollector struct {
	seen     map[string]struct{}
	versions []string
}

func newVersionCollector() *versionCollector {
	return &versionCollector{seen: make(map[string]struct{})}
}

func (collector *versionCollector) add(version string) {
	trimmedVersion := strings.TrimSpace(version)
	if len(trimmedVersion) == 0 {
		return
	}
	if _, exists := collector.seen[trimmedVersion]; exists {
		return
	}
	collector.seen[trimmedVersion] = struct{}{}
	collector.versions = append(collector.versions, trimmedVersion)
}

func (collector *versionCollector) empty() bool {
	return len(collector.versions) == 0
}

func (collector *versionCollector) sorted() []string {
	sortedVersions := append([]string(nil), collector.versions...)
	sort.Strings(sortedVersions)
	versions.Sort(sortedVersions)
	return sortedVersions
}
