package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/transport"
)

const defaultListingConcurrency = 4

// SubCall is one independent listing request.
type SubCall struct {
	Name string
	Run  func(ctx context.Context) ([]core.RawItem, error)
}

// CollectListing runs calls concurrently and merges their items in declaration
// order. Failed calls are reported in ListResult.Failures; an error is only
// returned when every call failed.
func CollectListing(ctx context.Context, provider string, limit int, calls ...SubCall) (core.ListResult, error) {
	result := RunSubCalls(ctx, provider, limit, calls...)
	if len(calls) > 0 && len(result.Failures) == len(calls) {
		return core.ListResult{}, ListingFailure(provider, result.Failures)
	}
	return result, nil
}

// RunSubCalls is CollectListing without the all-failed check.
func RunSubCalls(ctx context.Context, provider string, limit int, calls ...SubCall) core.ListResult {
	if limit <= 0 {
		limit = defaultListingConcurrency
	}
	items := make([][]core.RawItem, len(calls))
	errs := make([]error, len(calls))

	var group errgroup.Group
	group.SetLimit(limit)
	for index, call := range calls {
		group.Go(func() error {
			if call.Run == nil {
				errs[index] = fmt.Errorf("providers: %s listing call %q has no runner", provider, call.Name)
				return nil
			}
			items[index], errs[index] = call.Run(ctx)
			return nil
		})
	}
	_ = group.Wait()

	result := core.ListResult{}
	for index, call := range calls {
		if errs[index] != nil {
			result.Failures = append(result.Failures, core.SubCallFailure{Name: call.Name, Err: errs[index]})
			continue
		}
		result.Items = append(result.Items, items[index]...)
	}
	return result
}

// ListingFailure converts a set of failed listing calls into one error. When
// every failure was an auth rejection the caller's token is unusable.
func ListingFailure(provider string, failures []core.SubCallFailure) error {
	var combined error
	allRejected := len(failures) > 0
	for _, failure := range failures {
		combined = multierr.Append(combined, fmt.Errorf("%s: %w", failure.Name, failure.Err))
		if !transport.IsAuthRejection(failure.Err) {
			allRejected = false
		}
	}
	if allRejected {
		return core.NewUnauthorizedError(fmt.Sprintf("%s rejected the access token", provider))
	}
	return core.NewUpstreamAuthError(core.UpstreamFailure{
		Provider:  provider,
		Message:   "Error listing items",
		Transient: true,
		Cause:     combined,
	})
}

// BearerHeaders returns the authorization headers for an API call.
func BearerHeaders(accessToken string, extra map[string]string) map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + strings.TrimSpace(accessToken),
	}
	for key, value := range extra {
		headers[key] = value
	}
	return headers
}

// GetJSON is a bearer-authenticated GET decoded into out.
func GetJSON(ctx context.Context, adapter transport.Adapter, endpoint string, accessToken string, query map[string]string, out any) error {
	return transport.DoJSON(ctx, adapter, transport.Request{
		Method:  http.MethodGet,
		URL:     endpoint,
		Query:   query,
		Headers: BearerHeaders(accessToken, nil),
	}, out)
}
