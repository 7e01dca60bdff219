// Package schemas embeds the OpenAPI document that the server validates
// inbound requests against.
package schemas

import _ "embed"

// OpenAPISpec is the raw OpenAPI 3 document.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
