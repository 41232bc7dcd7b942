// Package cue provides the embedded CUE schema of the configuration file.
package cue

import "embed"

// SchemaFS contains the embedded CUE schema files.
//
//go:embed schema/*.cue
var SchemaFS embed.FS

// SchemaFile is the path of the configuration schema within SchemaFS.
const SchemaFile = "schema/config.cue"
