package lsp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// ConfigEnv names an explicit server override file.
const ConfigEnv = "MEACODE_LSP_CONFIG"

// ServerConfig maps language IDs to LSP server commands.
type ServerConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// DefaultServers returns built-in language server mappings.
func DefaultServers() map[string]ServerConfig {
	return map[string]ServerConfig{
		"go":         {Command: "gopls"},
		"typescript": {Command: "typescript-language-server", Args: []string{"--stdio"}},
		"javascript": {Command: "typescript-language-server", Args: []string{"--stdio"}},
		"python":     {Command: "pyright-langserver", Args: []string{"--stdio"}},
		"rust":       {Command: "rust-analyzer"},
		"c":          {Command: "clangd"},
		"cpp":        {Command: "clangd"},
		"java":       {Command: "jdtls"},
		"lua":        {Command: "lua-language-server"},
		"json":       {Command: "vscode-json-language-server", Args: []string{"--stdio"}},
		"html":       {Command: "vscode-html-language-server", Args: []string{"--stdio"}},
		"css":        {Command: "vscode-css-language-server", Args: []string{"--stdio"}},
	}
}

// ConfigSearchPaths lists override files in priority order: the
// MEACODE_LSP_CONFIG file, <root>/.meacode-lsp.json, then
// <user config>/meacode/lsp.json.
func ConfigSearchPaths(root string) []string {
	paths := make([]string, 0, 3)
	if envPath := strings.TrimSpace(os.Getenv(ConfigEnv)); envPath != "" {
		paths = append(paths, envPath)
	}
	if root != "" {
		paths = append(paths, filepath.Join(root, ".meacode-lsp.json"))
	}
	if cfgRoot, err := os.UserConfigDir(); err == nil && cfgRoot != "" {
		paths = append(paths, filepath.Join(cfgRoot, "meacode", "lsp.json"))
	}
	return paths
}

// ApplyOverrides merges the first readable override file into servers and
// returns its path, or "" when none applied.
func ApplyOverrides(servers map[string]ServerConfig, root string) string {
	if servers == nil {
		return ""
	}

	for _, configPath := range ConfigSearchPaths(root) {
		data, err := os.ReadFile(configPath)
		if err != nil {
			continue
		}

		overrides := make(map[string]ServerConfig)
		if err := json.Unmarshal(data, &overrides); err != nil {
			continue
		}

		for langID, cfg := range overrides {
			langID = strings.ToLower(strings.TrimSpace(langID))
			cfg.Command = strings.TrimSpace(cfg.Command)
			if langID == "" || cfg.Command == "" {
				continue
			}
			servers[langID] = cfg
		}
		return configPath
	}
	return ""
}
