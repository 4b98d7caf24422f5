package core

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/multierr"
)

// ListItems lists and normalizes provider items using a caller supplied
// token. Failed sub-calls are logged and the remaining items are returned.
func (s *Service) ListItems(ctx context.Context, req ListItemsRequest) (items []IntegrationItem, err error) {
	startedAt := s.now()
	fields := map[string]any{"provider": normalizeProviderID(req.Provider)}
	defer func() {
		fields["item_count"] = len(items)
		s.observeOperation(ctx, startedAt, "list_items", err, fields)
	}()

	provider, err := s.resolveProvider(req.Provider)
	if err != nil {
		return nil, err
	}
	accessToken, err := s.parseBearer(req.BearerToken)
	if err != nil {
		return nil, err
	}

	upstreamCtx, cancel := s.upstreamContext(ctx)
	defer cancel()
	result, err := provider.ListItems(upstreamCtx, accessToken)
	if err != nil {
		return nil, s.upstreamError(provider.ID(), "Error listing items", err)
	}
	if len(result.Failures) > 0 {
		s.logPartialFailure(ctx, provider.ID(), result)
	}

	items = make([]IntegrationItem, 0, len(result.Items))
	for _, raw := range result.Items {
		item := provider.Normalize(raw)
		if item.Metadata == nil {
			item.Metadata = map[string]string{}
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) logPartialFailure(ctx context.Context, provider string, result ListResult) {
	names := make([]string, 0, len(result.Failures))
	var combined error
	for _, failure := range result.Failures {
		names = append(names, failure.Name)
		combined = multierr.Append(combined, failure.Err)
	}
	fields := map[string]any{
		"provider":     normalizeProviderID(provider),
		"event_type":   "upstream.partial_failure",
		"text_code":    ErrorPartialUpstream,
		"failed_calls": strings.Join(names, ","),
		"item_count":   len(result.Items),
	}
	if combined != nil {
		fields["error"] = combined.Error()
	}
	s.recordCounter(ctx, "integrations.list_items.partial_failure", int64(len(result.Failures)), map[string]string{
		"provider": normalizeProviderID(provider),
	})
	s.logWarn(ctx, "list_items partial upstream failure", fields)
}

// parseBearer accepts a raw access token or a JSON credential payload.
func (s *Service) parseBearer(raw string) (string, error) {
	token := strings.TrimSpace(raw)
	if fields := strings.Fields(token); len(fields) > 0 && strings.EqualFold(fields[0], "bearer") {
		token = strings.TrimSpace(token[len(fields[0]):])
	}
	if token == "" {
		return "", s.unauthorized("authentication required")
	}
	if !strings.HasPrefix(token, "{") {
		return token, nil
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(token), &payload); err != nil {
		return "", s.unauthorized("invalid credentials format")
	}
	accessToken := readPayloadString(payload, "access_token")
	if accessToken == "" {
		return "", s.unauthorized("authentication required")
	}
	return accessToken, nil
}
