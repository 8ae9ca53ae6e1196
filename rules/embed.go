// Package rules embeds the scripted rule sets shipped with stackgraphs.
package rules

import "embed"

// FS holds languages.yaml and the .risor scripts it names.
//
//go:embed languages.yaml *.risor
var FS embed.FS
