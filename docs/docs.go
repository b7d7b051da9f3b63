// Package docs embeds the HTTP API description served under /swagger.
package docs

import _ "embed"

// OpenAPI is the OpenAPI 3 document for the webhook and back-office API.
//
//go:embed api/openapi.yaml
var OpenAPI []byte
