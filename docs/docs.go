// Package docs embeds the OpenAPI description served at /docs/api.
package docs

import _ "embed"

//go:embed openapi.yml
var OpenAPI []byte
