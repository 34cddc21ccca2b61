// Package configs provides the embedded configuration template for jurisearch.
//
// The template is embedded at build time with go:embed so it ships in every
// distribution. `jurisearch init` writes it to ~/.jurisearch/config.yaml as
// a commented starting point; hardcoded defaults in internal/config apply
// for any key left out.
package configs

import _ "embed"

// ConfigTemplate is the annotated configuration template written by
// `jurisearch init`.
//
//go:embed config.example.yaml
var ConfigTemplate string
