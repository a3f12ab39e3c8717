//go:build darwin

package hotkey

import "golang.design/x/hotkey"

// macOS calls it Option.
const modAlt = hotkey.ModOption
