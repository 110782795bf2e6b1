// Package file provides filesystem-backed driven adapters:
//
//   - ConfigStore: TOML configuration at ~/.coursemind/config.toml
//   - PromptStore: editable tutor prompts at ~/.coursemind/prompts
package file
