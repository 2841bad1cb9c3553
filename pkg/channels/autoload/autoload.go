// Package autoload registers every built-in channel factory.
package autoload

import (
	_ "salesagent/pkg/channels/telegram"
	_ "salesagent/pkg/channels/web"
)
