// Package providers contains the shared OAuth2 adapter base used by the
// built-in integrations under providers/hubspot, providers/notion, and
// providers/airtable.
//
// The base builds authorization URLs with golang.org/x/oauth2, posts token
// requests through the transport package, and classifies token endpoint
// failures into invalid credential or transient upstream errors.
package providers
