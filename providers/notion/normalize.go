package notion

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/normalize"
)

const (
	Icon        = "https://upload.wikimedia.org/wikipedia/commons/4/45/Notion_app_logo.png"
	pageBaseURL = "https://www.notion.so/"
	untitled    = "Untitled"
	defaultUser = "Notion"
)

func newTable() normalize.Table {
	return normalize.NewTable(ProviderID, Icon, map[string]normalize.Mapper{
		KindPage:     normalizeObject(KindPage),
		KindDatabase: normalizeObject(KindDatabase),
	})
}

func NormalizeItem(raw core.RawItem) core.IntegrationItem {
	return newTable().Normalize(raw)
}

func normalizeObject(kind string) normalize.Mapper {
	return func(raw core.RawItem) core.IntegrationItem {
		fields := normalize.Fields(raw.Fields)
		name := objectTitle(fields)
		if name == "" {
			name = untitled
		}
		url := fields.String("url")
		if url == "" {
			url = pageBaseURL + strings.ReplaceAll(raw.ID, "-", "")
		}
		parentType := fields.String("parent", "type")
		return core.IntegrationItem{
			ID:          raw.ID,
			Name:        name,
			Icon:        Icon,
			Description: "Notion " + kind,
			Type:        kind,
			CreatedAt:   fields.String("created_time"),
			CreatedBy:   fields.StringOr(defaultUser, "created_by", "id"),
			UpdatedAt:   fields.String("last_edited_time"),
			URL:         url,
			Metadata: normalize.Metadata(
				"parent_type", parentType,
				"parent_id", parentID(fields, parentType),
				"archived", fields.String("archived"),
			),
		}
	}
}

// objectTitle reads a database title array or the title property of a page.
func objectTitle(fields normalize.Fields) string {
	if title := plainText(fields.List("title")); title != "" {
		return title
	}
	for _, value := range fields.Object("properties") {
		property := normalize.Fields(asMap(value))
		if property.String("type") != "title" {
			continue
		}
		if title := plainText(property.List("title")); title != "" {
			return title
		}
	}
	return ""
}

func plainText(parts []any) string {
	var builder strings.Builder
	for _, part := range parts {
		text, _ := asMap(part)["plain_text"].(string)
		builder.WriteString(text)
	}
	return strings.TrimSpace(builder.String())
}

func parentID(fields normalize.Fields, parentType string) string {
	if parentType == "" || parentType == "workspace" {
		return ""
	}
	return fields.String("parent", parentType)
}

func asMap(value any) map[string]any {
	typed, _ := value.(map[string]any)
	return typed
}
