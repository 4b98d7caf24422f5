package airtable

import (
	"strconv"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/normalize"
)

const (
	Icon        = "https://seeklogo.com/images/A/airtable-logo-216B9AF035-seeklogo.com.png"
	webBaseURL  = "https://airtable.com/"
	defaultUser = "Airtable"
)

func newTable() normalize.Table {
	return normalize.NewTable(ProviderID, Icon, map[string]normalize.Mapper{
		KindBase:  normalizeBase,
		KindTable: normalizeTable,
	})
}

func NormalizeItem(raw core.RawItem) core.IntegrationItem {
	return newTable().Normalize(raw)
}

func normalizeBase(raw core.RawItem) core.IntegrationItem {
	fields := normalize.Fields(raw.Fields)
	return core.IntegrationItem{
		ID:          raw.ID,
		Name:        fields.StringOr("Unnamed Base", "name"),
		Icon:        Icon,
		Description: "Airtable base",
		Type:        KindBase,
		CreatedBy:   defaultUser,
		URL:         webBaseURL + raw.ID,
		Metadata: normalize.Metadata(
			"permission_level", fields.String("permissionLevel"),
		),
	}
}

func normalizeTable(raw core.RawItem) core.IntegrationItem {
	fields := normalize.Fields(raw.Fields)
	baseID := fields.String(fieldBaseID)
	description := fields.String("description")
	if description == "" {
		description = normalize.JoinNonEmpty(" ", "Table in", fields.StringOr("Unnamed Base", fieldBaseName))
	}
	return core.IntegrationItem{
		ID:          raw.ID,
		Name:        fields.StringOr("Unnamed Table", "name"),
		Icon:        Icon,
		Description: description,
		Type:        KindTable,
		CreatedBy:   defaultUser,
		URL:         webBaseURL + baseID + "/" + raw.ID,
		Metadata: normalize.Metadata(
			"base_id", baseID,
			"primary_field_id", fields.String("primaryFieldId"),
			"field_count", strconv.Itoa(fields.Count("fields")),
		),
	}
}
