package blogpublisher

import "embed"

// StaticAssets holds the admin stylesheet and script served under /static.
//
//go:embed static
var StaticAssets embed.FS
