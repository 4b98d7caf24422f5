package notion

import (
	"testing"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/devkit"
)

func TestNormalizePageTitleAndURL(t *testing.T) {
	item := NormalizeItem(core.RawItem{
		Kind: KindPage,
		ID:   "1a2b-3c4d",
		Fields: map[string]any{
			"object":           "page",
			"id":               "1a2b-3c4d",
			"created_time":     "2024-01-01T00:00:00.000Z",
			"last_edited_time": "2024-01-02T00:00:00.000Z",
			"created_by":       map[string]any{"object": "user", "id": "user-9"},
			"archived":         false,
			"parent":           map[string]any{"type": "database_id", "database_id": "db-1"},
			"properties": map[string]any{
				"Status": map[string]any{"type": "select"},
				"Name": map[string]any{"type": "title", "title": []any{
					map[string]any{"plain_text": "Project "},
					map[string]any{"plain_text": "Planning"},
				}},
			},
		},
	})
	if err := devkit.ValidateItemConformance(item); err != nil {
		t.Fatalf("conformance: %v", err)
	}
	if item.Name != "Project Planning" || item.CreatedBy != "user-9" {
		t.Fatalf("unexpected page %#v", item)
	}
	if item.URL != "https://www.notion.so/1a2b3c4d" {
		t.Fatalf("expected derived url, got %q", item.URL)
	}
	if item.Metadata["parent_type"] != "database_id" || item.Metadata["parent_id"] != "db-1" || item.Metadata["archived"] != "false" {
		t.Fatalf("unexpected metadata %#v", item.Metadata)
	}
	if item.CreatedAt != "2024-01-01T00:00:00.000Z" || item.UpdatedAt != "2024-01-02T00:00:00.000Z" {
		t.Fatalf("unexpected timestamps %#v", item)
	}
}

func TestNormalizeDatabaseUsesURLAndTitleArray(t *testing.T) {
	item := NormalizeItem(core.RawItem{
		Kind: KindDatabase,
		ID:   "db-1",
		Fields: map[string]any{
			"url":    "https://www.notion.so/acme/db1",
			"title":  []any{map[string]any{"plain_text": "Tasks"}},
			"parent": map[string]any{"type": "workspace", "workspace": true},
		},
	})
	if item.Name != "Tasks" || item.URL != "https://www.notion.so/acme/db1" || item.Type != KindDatabase {
		t.Fatalf("unexpected database %#v", item)
	}
	if item.Metadata["parent_type"] != "workspace" || item.Metadata["parent_id"] != "" {
		t.Fatalf("unexpected metadata %#v", item.Metadata)
	}
}

func TestNormalizePlaceholders(t *testing.T) {
	item := NormalizeItem(core.RawItem{Kind: KindPage, ID: "p-1"})
	if item.Name != "Untitled" || item.CreatedBy != "Notion" || item.URL != "https://www.notion.so/p1" {
		t.Fatalf("unexpected placeholders %#v", item)
	}
	if item.Metadata == nil {
		t.Fatalf("expected metadata map")
	}
}
