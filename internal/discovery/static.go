package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/temirov/ygg/internal/repository"
	"github.com/temirov/ygg/internal/runerrors"
)

const (
	readListMessageTemplateConstant       = "unable to read repository list %s"
	notArrayMessageTemplateConstant       = "repository list %s must be a JSON array of \"owner/name\" strings"
	nonStringEntryMessageTemplateConstant = "repository list %s: entry %d is not a string"
	malformedEntryMessageTemplateConstant = "repository list %s: entry %d is malformed"
	writeListErrorTemplateConstant        = "unable to write repository list %s: %w"
	jsonIndentConstant                    = "  "
	repositoryListFileModeConstant        = 0o644
	repositoryListDirectoryModeConstant   = 0o755
)

// ReadFileFunction reads a file from disk.
type ReadFileFunction func(path string) ([]byte, error)

// StaticListDiscoverer reads repositories from a JSON array of "owner/name" strings.
type StaticListDiscoverer struct {
	path     string
	readFile ReadFileFunction
}

// NewStaticListDiscoverer builds a discoverer for path. A nil readFile uses os.ReadFile.
func NewStaticListDiscoverer(path string, readFile ReadFileFunction) *StaticListDiscoverer {
	if readFile == nil {
		readFile = os.ReadFile
	}
	return &StaticListDiscoverer{path: path, readFile: readFile}
}

// Path returns the list location.
func (discoverer *StaticListDiscoverer) Path() string {
	return discoverer.path
}

// Discover parses the list. Any malformed entry fails the whole list.
func (discoverer *StaticListDiscoverer) Discover(executionContext context.Context) (Result, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return Result{}, contextError
	}

	contents, readError := discoverer.readFile(discoverer.path)
	if readError != nil {
		return Result{}, runerrors.ConfigurationError{
			Field:   repositorySourceFieldConstant,
			Message: fmt.Sprintf(readListMessageTemplateConstant, discoverer.path),
			Cause:   readError,
		}
	}

	references, parseError := ParseRepositoryList(discoverer.path, contents)
	if parseError != nil {
		return Result{}, parseError
	}

	repositorySet := repository.NewSet()
	for _, reference := range references {
		repositorySet.Add(reference)
	}

	return Result{
		Repositories: repositorySet.References(),
		Source:       SourceStatic,
		TotalCount:   repositorySet.Len(),
	}, nil
}

// ParseRepositoryList decodes a JSON array of "owner/name" strings. Duplicates are preserved.
func ParseRepositoryList(path string, contents []byte) ([]repository.Reference, error) {
	trimmedContents := bytes.TrimSpace(contents)
	if !bytes.HasPrefix(trimmedContents, []byte("[")) {
		return nil, runerrors.ConfigurationError{
			Field:   repositorySourceFieldConstant,
			Message: fmt.Sprintf(notArrayMessageTemplateConstant, path),
		}
	}

	var rawEntries []json.RawMessage
	if decodeError := json.Unmarshal(trimmedContents, &rawEntries); decodeError != nil {
		return nil, runerrors.ConfigurationError{
			Field:   repositorySourceFieldConstant,
			Message: fmt.Sprintf(notArrayMessageTemplateConstant, path),
			Cause:   decodeError,
		}
	}

	references := make([]repository.Reference, 0, len(rawEntries))
	for entryIndex, rawEntry := range rawEntries {
		var identifier string
		if decodeError := json.Unmarshal(rawEntry, &identifier); decodeError != nil {
			return nil, runerrors.ConfigurationError{
				Field:   repositorySourceFieldConstant,
				Message: fmt.Sprintf(nonStringEntryMessageTemplateConstant, path, entryIndex),
				Cause:   decodeError,
			}
		}

		reference, parseError := repository.Parse(identifier)
		if parseError != nil {
			return nil, runerrors.ConfigurationError{
				Field:   repositorySourceFieldConstant,
				Message: fmt.Sprintf(malformedEntryMessageTemplateConstant, path, entryIndex),
				Cause:   parseError,
			}
		}
		references = append(references, reference)
	}
	return references, nil
}

// WriteRepositoryList persists references as a JSON array that StaticListDiscoverer can read back.
func WriteRepositoryList(path string, references []repository.Reference) error {
	identifiers := make([]string, 0, len(references))
	for _, reference := range references {
		identifiers = append(identifiers, reference.String())
	}

	encoded, encodeError := json.MarshalIndent(identifiers, "", jsonIndentConstant)
	if encodeError != nil {
		return fmt.Errorf(writeListErrorTemplateConstant, path, encodeError)
	}
	encoded = append(encoded, '\n')

	if directory := filepath.Dir(path); len(directory) > 0 {
		if mkdirError := os.MkdirAll(directory, repositoryListDirectoryModeConstant); mkdirError != nil {
			return fmt.Errorf(writeListErrorTemplateConstant, path, mkdirError)
		}
	}
	if writeError := os.WriteFile(path, encoded, repositoryListFileModeConstant); writeError != nil {
		return fmt.Errorf(writeListErrorTemplateConstant, path, writeError)
	}
	return nil
}
