package githubauth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	tokenSourceSeparatorConstant               = ":"
	environmentTokenSourceTypeValueConstant    = "env"
	fileTokenSourceTypeValueConstant           = "file"
	tokenSourceMissingErrorMessageConstant     = "token source must be provided"
	environmentNameMissingErrorMessageConstant = "environment variable name must be provided"
	filePathMissingErrorMessageConstant        = "token file path must be provided"
	environmentTokenMissingTemplateConstant    = "environment variable %s is not set"
	fileReadErrorTemplateConstant              = "unable to read token file %s: %w"
	fileTokenEmptyErrorTemplateConstant        = "token file %s is empty"
	unsupportedTokenSourceTemplateConstant     = "unsupported token source type %q"
	dotenvReadErrorTemplateConstant            = "unable to read %s: %w"

	// DefaultTokenEnvironmentVariable names the variable consulted when no token source is configured.
	DefaultTokenEnvironmentVariable = "GHP_TOKEN"
	// DefaultTokenSource is the textual form of the default token source.
	DefaultTokenSource = environmentTokenSourceTypeValueConstant + tokenSourceSeparatorConstant + DefaultTokenEnvironmentVariable
	// DefaultDotenvFile is the optional file consulted after the process environment.
	DefaultDotenvFile = ".env"
)

// TokenSourceType enumerates the supported token retrieval mechanisms.
type TokenSourceType string

// Token source type enumerations.
const (
	TokenSourceTypeEnvironment TokenSourceType = TokenSourceType(environmentTokenSourceTypeValueConstant)
	TokenSourceTypeFile        TokenSourceType = TokenSourceType(fileTokenSourceTypeValueConstant)
)

// TokenSource specifies how to locate an access token.
type TokenSource struct {
	Type      TokenSourceType
	Reference string
}

// String renders the source in its textual env:/file: form.
func (source TokenSource) String() string {
	return string(source.Type) + tokenSourceSeparatorConstant + source.Reference
}

// MissingTokenError reports that no usable token was found for a source.
type MissingTokenError struct {
	Source TokenSource
	Reason string
}

// Error describes the missing token.
func (missingError MissingTokenError) Error() string {
	return missingError.Reason
}

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// FileReader reads the contents of a file path.
type FileReader func(path string) ([]byte, error)

// ParseTokenSource interprets textual token source declarations such as env:NAME or file:/path.
// A bare value is treated as an environment variable name.
func ParseTokenSource(sourceValue string) (TokenSource, error) {
	trimmedValue := strings.TrimSpace(sourceValue)
	if len(trimmedValue) == 0 {
		return TokenSource{}, errors.New(tokenSourceMissingErrorMessageConstant)
	}

	components := strings.SplitN(trimmedValue, tokenSourceSeparatorConstant, 2)
	if len(components) == 1 {
		return TokenSource{Type: TokenSourceTypeEnvironment, Reference: trimmedValue}, nil
	}

	sourceType := strings.ToLower(strings.TrimSpace(components[0]))
	reference := strings.TrimSpace(components[1])

	switch sourceType {
	case environmentTokenSourceTypeValueConstant:
		if len(reference) == 0 {
			return TokenSource{}, errors.New(environmentNameMissingErrorMessageConstant)
		}
		return TokenSource{Type: TokenSourceTypeEnvironment, Reference: reference}, nil
	case fileTokenSourceTypeValueConstant:
		if len(reference) == 0 {
			return TokenSource{}, errors.New(filePathMissingErrorMessageConstant)
		}
		return TokenSource{Type: TokenSourceTypeFile, Reference: reference}, nil
	default:
		return TokenSource{}, fmt.Errorf(unsupportedTokenSourceTemplateConstant, sourceType)
	}
}

// Resolver retrieves tokens from the process environment, an optional dotenv file, or a token file.
type Resolver struct {
	environmentLookup EnvironmentLookup
	fileReader        FileReader
	dotenvPaths       []string
}

// NewResolver creates a token resolver. Nil collaborators fall back to the operating system.
func NewResolver(environmentLookup EnvironmentLookup, fileReader FileReader, dotenvPaths []string) *Resolver {
	resolvedEnvironmentLookup := environmentLookup
	if resolvedEnvironmentLookup == nil {
		resolvedEnvironmentLookup = os.LookupEnv
	}

	resolvedFileReader := fileReader
	if resolvedFileReader == nil {
		resolvedFileReader = os.ReadFile
	}

	duplicatedPaths := make([]string, 0, len(dotenvPaths))
	for _, dotenvPath := range dotenvPaths {
		if trimmedPath := strings.TrimSpace(dotenvPath); len(trimmedPath) > 0 {
			duplicatedPaths = append(duplicatedPaths, trimmedPath)
		}
	}

	return &Resolver{
		environmentLookup: resolvedEnvironmentLookup,
		fileReader:        resolvedFileReader,
		dotenvPaths:       duplicatedPaths,
	}
}

// ResolveToken returns the trimmed token for source.
func (resolver *Resolver) ResolveToken(source TokenSource) (string, error) {
	switch source.Type {
	case TokenSourceTypeEnvironment:
		if value, found := resolver.environmentLookup(source.Reference); found {
			if trimmedValue := strings.TrimSpace(value); len(trimmedValue) > 0 {
				return trimmedValue, nil
			}
		}
		dotenvValue, dotenvError := resolver.lookupDotenv(source.Reference)
		if dotenvError != nil {
			return "", dotenvError
		}
		if len(dotenvValue) > 0 {
			return dotenvValue, nil
		}
		return "", MissingTokenError{Source: source, Reason: fmt.Sprintf(environmentTokenMissingTemplateConstant, source.Reference)}
	case TokenSourceTypeFile:
		contents, readError := resolver.fileReader(source.Reference)
		if readError != nil {
			return "", fmt.Errorf(fileReadErrorTemplateConstant, source.Reference, readError)
		}
		trimmedValue := strings.TrimSpace(string(contents))
		if len(trimmedValue) == 0 {
			return "", MissingTokenError{Source: source, Reason: fmt.Sprintf(fileTokenEmptyErrorTemplateConstant, source.Reference)}
		}
		return trimmedValue, nil
	default:
		return "", fmt.Errorf(unsupportedTokenSourceTemplateConstant, source.Type)
	}
}

func (resolver *Resolver) lookupDotenv(variableName string) (string, error) {
	for _, dotenvPath := range resolver.dotenvPaths {
		contents, readError := resolver.fileReader(dotenvPath)
		if readError != nil {
			if errors.Is(readError, fs.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf(dotenvReadErrorTemplateConstant, dotenvPath, readError)
		}
		values, parseError := godotenv.UnmarshalBytes(contents)
		if parseError != nil {
			return "", fmt.Errorf(dotenvReadErrorTemplateConstant, dotenvPath, parseError)
		}
		if trimmedValue := strings.TrimSpace(values[variableName]); len(trimmedValue) > 0 {
			return trimmedValue, nil
		}
	}
	return "", nil
}
