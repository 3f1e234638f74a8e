package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/temirov/ygg/internal/repository"
)

const (
	contentsPathTemplateConstant = "/repos/%s/%s/contents/%s"
	refQueryParameterConstant    = "ref"
	pathSeparatorConstant        = "/"
	querySeparatorConstant       = "?"
)

// FileStatus classifies the result of a contents request.
type FileStatus string

// Supported file statuses.
const (
	FileStatusFound       FileStatus = FileStatus("found")
	FileStatusNotFound    FileStatus = FileStatus("not_found")
	FileStatusNotModified FileStatus = FileStatus("not_modified")
)

// FileResult is the outcome of a successful contents request.
type FileResult struct {
	Status  FileStatus
	Content []byte
	ETag    string
}

// FetchFile downloads the raw file named by key. A non-empty etag makes the request conditional.
func (client *Client) FetchFile(executionContext context.Context, key repository.FetchKey, etag string) (FileResult, error) {
	requestURL := client.contentsURL(key)
	requestHeaders := map[string]string{acceptHeaderConstant: rawContentAcceptConstant}
	if trimmedETag := strings.TrimSpace(etag); len(trimmedETag) > 0 {
		requestHeaders[ifNoneMatchHeaderConstant] = trimmedETag
	}

	response, requestError := client.get(executionContext, FetchFileOperationName, CoreResource, requestURL, requestHeaders)
	if requestError != nil {
		return FileResult{}, requestError
	}

	switch response.statusCode {
	case http.StatusOK:
		return FileResult{Status: FileStatusFound, Content: response.body, ETag: response.headers.Get(etagHeaderConstant)}, nil
	case http.StatusNotFound:
		return FileResult{Status: FileStatusNotFound}, nil
	case http.StatusNotModified:
		return FileResult{Status: FileStatusNotModified, ETag: strings.TrimSpace(etag)}, nil
	default:
		return FileResult{}, UnexpectedStatusError{Operation: FetchFileOperationName, StatusCode: response.statusCode}
	}
}

func (client *Client) contentsURL(key repository.FetchKey) string {
	pathSegments := strings.Split(key.NormalizedFilePath(), pathSeparatorConstant)
	escapedSegments := make([]string, 0, len(pathSegments))
	for _, pathSegment := range pathSegments {
		escapedSegments = append(escapedSegments, url.PathEscape(pathSegment))
	}

	requestURL := client.configuration.BaseURL + fmt.Sprintf(
		contentsPathTemplateConstant,
		url.PathEscape(key.Repository.Owner),
		url.PathEscape(key.Repository.Name),
		strings.Join(escapedSegments, pathSeparatorConstant),
	)

	if trimmedRef := strings.TrimSpace(key.Ref); len(trimmedRef) > 0 {
		query := url.Values{}
		query.Set(refQueryParameterConstant, trimmedRef)
		requestURL += querySeparatorConstant + query.Encode()
	}
	return requestURL
}
