package generator

import "embed"

// embeddedPrompts holds the prompt templates so the binary does not depend on
// the source tree at runtime.
//
//go:embed prompts/*.txt
var embeddedPrompts embed.FS
