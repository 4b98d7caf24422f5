package hubspot

import (
	"fmt"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/normalize"
)

const (
	Icon        = "https://cdn2.hubspot.net/hubfs/53/image8-2.jpg"
	appBaseURL  = "https://app.hubspot.com/contacts"
	defaultUser = "HubSpot"
)

func newTable() normalize.Table {
	return normalize.NewTable(ProviderID, Icon, map[string]normalize.Mapper{
		KindContact: normalizeContact,
		KindDeal:    normalizeDeal,
	})
}

// NormalizeItem maps a raw contact or deal without a configured provider.
func NormalizeItem(raw core.RawItem) core.IntegrationItem {
	return newTable().Normalize(raw)
}

func normalizeContact(raw core.RawItem) core.IntegrationItem {
	props := normalize.Fields(raw.Fields).Object("properties")
	name := normalize.JoinNonEmpty(" ", props.String("firstname"), props.String("lastname"))
	if name == "" {
		name = "Unnamed Contact"
	}
	return core.IntegrationItem{
		ID:          raw.ID,
		Name:        name,
		Icon:        Icon,
		Description: "Email: " + props.StringOr("No email", "email"),
		Type:        KindContact,
		CreatedAt:   props.String("createdate"),
		CreatedBy:   props.StringOr(defaultUser, "hs_created_by_user_id"),
		UpdatedAt:   props.String("lastmodifieddate"),
		URL:         fmt.Sprintf("%s/%s/contact/%s", appBaseURL, raw.ID, raw.ID),
		Metadata: normalize.Metadata(
			"email", props.String("email"),
			"phone", props.String("phone"),
			"company", props.String("company"),
			"website", props.String("website"),
		),
	}
}

func normalizeDeal(raw core.RawItem) core.IntegrationItem {
	props := normalize.Fields(raw.Fields).Object("properties")
	return core.IntegrationItem{
		ID:   raw.ID,
		Name: props.StringOr("Unnamed Deal", "dealname"),
		Icon: Icon,
		Description: fmt.Sprintf("Amount: $%s - Stage: %s",
			props.StringOr("0", "amount"),
			props.StringOr("Unknown", "dealstage"),
		),
		Type:      KindDeal,
		CreatedAt: props.String("createdate"),
		CreatedBy: props.StringOr(defaultUser, "hs_created_by_user_id"),
		UpdatedAt: props.String("hs_lastmodifieddate"),
		URL:       fmt.Sprintf("%s/%s/deal/%s", appBaseURL, raw.ID, raw.ID),
		Metadata: normalize.Metadata(
			"amount", props.String("amount"),
			"stage", props.String("dealstage"),
			"close_date", props.String("closedate"),
			"pipeline", props.String("pipeline"),
		),
	}
}
