// Package reference provides selector and time frame documentation for the
// Dynatrace Managed API v2, exposed as MCP resources.
package reference

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/logging"
)

const (
	// CustomReferenceFilename is the name of the optional file that extends the
	// built-in reference. Place it next to the executable to add your own
	// selectors, management zone names or team conventions.
	CustomReferenceFilename = "dynatrace-managed-selector-custom.md"

	// ReferenceFilename is the name of the optional full reference override file.
	// If this file exists, it completely replaces the built-in reference.
	ReferenceFilename = "dynatrace-managed-selector-reference.md"

	ReferenceURI  = "selector://reference"
	CheatsheetURI = "selector://cheatsheet"

	mimeMarkdown = "text/markdown"
)

//go:embed reference.md
var embeddedReference string

//go:embed cheatsheet.md
var embeddedCheatsheet string

// Provider manages access to the selector reference documentation
type Provider struct {
	mu            sync.RWMutex
	cachedRef     string
	executableDir string
	initialized   bool
}

// NewProvider creates a provider that looks for override files next to the executable
func NewProvider() *Provider {
	exePath, err := os.Executable()
	if err != nil {
		logging.Debug("SELECTOR_REFERENCE failed to get executable path: %v", err)
		exePath = "."
	}
	return NewProviderAt(filepath.Dir(exePath))
}

// NewProviderAt creates a provider that looks for override files in dir
func NewProviderAt(dir string) *Provider {
	return &Provider{executableDir: dir}
}

// GetReference returns the selector reference.
//
// Loading order:
// 1. A full override file (dynatrace-managed-selector-reference.md) replaces everything
// 2. Otherwise the embedded default is used
// 3. Custom extensions (dynatrace-managed-selector-custom.md) are appended to the default
func (p *Provider) GetReference() string {
	p.mu.RLock()
	if p.initialized {
		defer p.mu.RUnlock()
		return p.cachedRef
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if p.initialized {
		return p.cachedRef
	}

	var result strings.Builder

	overridePath := p.GetOverrideFilePath()
	if content, err := os.ReadFile(overridePath); err == nil {
		logging.Info("SELECTOR_REFERENCE loaded override from %s (%d bytes)", overridePath, len(content))
		result.Write(content)
	} else {
		result.WriteString(embeddedReference)
		logging.Debug("SELECTOR_REFERENCE using embedded default (%d bytes)", len(embeddedReference))

		customPath := p.GetCustomFilePath()
		if content, err := os.ReadFile(customPath); err == nil {
			logging.Info("SELECTOR_REFERENCE loaded custom extensions from %s (%d bytes)", customPath, len(content))
			result.WriteString("\n\n---\n\n")
			result.WriteString("# Custom Selector Reference Extensions\n\n")
			result.WriteString("*The following content is loaded from custom extensions.*\n\n")
			result.Write(content)
		}
	}

	p.cachedRef = result.String()
	p.initialized = true
	return p.cachedRef
}

// GetCheatsheet returns the short tool usage cheatsheet
func (p *Provider) GetCheatsheet() string {
	return embeddedCheatsheet
}

// Reload clears the cache and forces a reload from files
func (p *Provider) Reload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cachedRef = ""
	p.initialized = false
	logging.Debug("SELECTOR_REFERENCE cache cleared, will reload on next access")
}

// GetCustomFilePath returns the path where custom extensions should be placed
func (p *Provider) GetCustomFilePath() string {
	return filepath.Join(p.executableDir, CustomReferenceFilename)
}

// GetOverrideFilePath returns the path where the full override should be placed
func (p *Provider) GetOverrideFilePath() string {
	return filepath.Join(p.executableDir, ReferenceFilename)
}

// HasCustomExtensions returns true if a custom extensions file exists
func (p *Provider) HasCustomExtensions() bool {
	_, err := os.Stat(p.GetCustomFilePath())
	return err == nil
}

// HasOverride returns true if a full override file exists
func (p *Provider) HasOverride() bool {
	_, err := os.Stat(p.GetOverrideFilePath())
	return err == nil
}

// ListResources returns the available reference resources
func (p *Provider) ListResources() []mcp.Resource {
	refDescription := "Entity, problem, event, metric and security problem selectors plus time frame formats for the Managed API v2"
	if p.HasOverride() {
		refDescription += " (using custom override)"
	} else if p.HasCustomExtensions() {
		refDescription += " (with custom extensions)"
	}

	return []mcp.Resource{
		mcp.NewResource(ReferenceURI, "Selector Reference",
			mcp.WithResourceDescription(refDescription),
			mcp.WithMIMEType(mimeMarkdown),
		),
		mcp.NewResource(CheatsheetURI, "Tool Cheatsheet",
			mcp.WithResourceDescription("Which tool to use for common Dynatrace Managed questions"),
			mcp.WithMIMEType(mimeMarkdown),
		),
	}
}

// ReadResource reads a reference resource by URI
func (p *Provider) ReadResource(uri string) (string, string, error) {
	switch uri {
	case ReferenceURI:
		return p.GetReference(), mimeMarkdown, nil
	case CheatsheetURI:
		return p.GetCheatsheet(), mimeMarkdown, nil
	default:
		return "", "", &ResourceNotFoundError{URI: uri}
	}
}

// Register adds the reference resources to the MCP server.
func (p *Provider) Register(s *server.MCPServer) {
	for _, res := range p.ListResources() {
		s.AddResource(res, p.handleRead)
	}
}

func (p *Provider) handleRead(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	content, mimeType, err := p.ReadResource(req.Params.URI)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: mimeType,
			Text:     content,
		},
	}, nil
}

// ResourceNotFoundError is returned when a requested resource doesn't exist
type ResourceNotFoundError struct {
	URI string
}

func (e *ResourceNotFoundError) Error() string {
	return "resource not found: " + e.URI
}
