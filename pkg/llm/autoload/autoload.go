// Package autoload registers every built-in LLM provider factory.
package autoload

import (
	_ "salesagent/pkg/llm/gemini"
	_ "salesagent/pkg/llm/ollama"
	_ "salesagent/pkg/llm/openailm"
)
