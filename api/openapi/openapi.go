// Package openapi embeds the OpenAPI description of the school REST API.
package openapi

import _ "embed"

// Spec is the OpenAPI 3 document in YAML.
//
//go:embed openapi.yaml
var Spec []byte
