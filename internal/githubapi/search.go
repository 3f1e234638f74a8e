package githubapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/ygg/internal/repository"
)

const (
	searchCodePathConstant          = "/search/code"
	searchQueryParameterConstant    = "q"
	perPageQueryParameterConstant   = "per_page"
	linkHeaderConstant              = "Link"
	linkEntrySeparatorConstant      = ","
	linkParameterSeparatorConstant  = ";"
	nextRelationConstant            = "next"
	relationParameterPrefixConstant = "rel="
	skippedSearchItemLogConstant    = "Skipping search item with unparsable repository name"
	fullNameLogFieldConstant        = "full_name"
)

// SearchPage is one page of code search results reduced to repositories.
type SearchPage struct {
	Repositories []repository.Reference
	ItemCount    int
	TotalCount   int
	Incomplete   bool
	NextURL      string
}

type searchResponse struct {
	TotalCount        int          `json:"total_count"`
	IncompleteResults bool         `json:"incomplete_results"`
	Items             []searchItem `json:"items"`
}

type searchItem struct {
	Path       string `json:"path"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

type validationErrorResponse struct {
	Message string `json:"message"`
}

// SearchCode runs a code search. An empty pageURL requests the first page; otherwise pageURL must be a
// NextURL returned by a previous call.
func (client *Client) SearchCode(executionContext context.Context, query string, pageURL string) (SearchPage, error) {
	requestURL := strings.TrimSpace(pageURL)
	if len(requestURL) == 0 {
		requestURL = client.firstSearchPageURL(query)
	} else if !client.isTrustedLink(requestURL) {
		return SearchPage{}, UntrustedLinkError{Operation: SearchCodeOperationName, Link: requestURL}
	}

	response, requestError := client.get(executionContext, SearchCodeOperationName, SearchResource, requestURL, map[string]string{acceptHeaderConstant: jsonAcceptConstant})
	if requestError != nil {
		return SearchPage{}, requestError
	}

	switch response.statusCode {
	case http.StatusOK:
	case http.StatusUnprocessableEntity:
		var validationError validationErrorResponse
		_ = json.Unmarshal(response.body, &validationError)
		return SearchPage{}, InvalidQueryError{Operation: SearchCodeOperationName, Message: validationError.Message}
	default:
		return SearchPage{}, UnexpectedStatusError{Operation: SearchCodeOperationName, StatusCode: response.statusCode}
	}

	var decoded searchResponse
	if decodingError := json.Unmarshal(response.body, &decoded); decodingError != nil {
		return SearchPage{}, ResponseDecodingError{Operation: SearchCodeOperationName, Cause: decodingError}
	}

	page := SearchPage{
		ItemCount:  len(decoded.Items),
		TotalCount: decoded.TotalCount,
		Incomplete: decoded.IncompleteResults,
		NextURL:    parseNextLink(response.headers.Get(linkHeaderConstant)),
	}
	for _, item := range decoded.Items {
		reference, parseError := repository.Parse(item.Repository.FullName)
		if parseError != nil {
			client.logger.Debug(skippedSearchItemLogConstant, zap.String(fullNameLogFieldConstant, item.Repository.FullName))
			continue
		}
		page.Repositories = append(page.Repositories, reference)
	}
	return page, nil
}

func (client *Client) firstSearchPageURL(query string) string {
	values := url.Values{}
	values.Set(searchQueryParameterConstant, query)
	values.Set(perPageQueryParameterConstant, strconv.Itoa(client.configuration.SearchPageSize))
	return client.configuration.BaseURL + searchCodePathConstant + querySeparatorConstant + values.Encode()
}

func (client *Client) isTrustedLink(link string) bool {
	parsedLink, parseError := url.Parse(link)
	if parseError != nil {
		return false
	}
	return strings.EqualFold(parsedLink.Scheme, client.baseURL.Scheme) && strings.EqualFold(parsedLink.Host, client.baseURL.Host)
}

// parseNextLink extracts the rel="next" target from an RFC 8288 Link header.
func parseNextLink(headerValue string) string {
	for _, linkEntry := range strings.Split(headerValue, linkEntrySeparatorConstant) {
		linkParts := strings.Split(linkEntry, linkParameterSeparatorConstant)
		if len(linkParts) < 2 {
			continue
		}
		target := strings.TrimSpace(linkParts[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, parameter := range linkParts[1:] {
			trimmedParameter := strings.TrimSpace(parameter)
			if !strings.HasPrefix(trimmedParameter, relationParameterPrefixConstant) {
				continue
			}
			relations := strings.Fields(strings.Trim(strings.TrimPrefix(trimmedParameter, relationParameterPrefixConstant), `"`))
			for _, relation := range relations {
				if relation == nextRelationConstant {
					return strings.TrimSuffix(strings.TrimPrefix(target, "<"), ">")
				}
			}
		}
	}
	return ""
}
