// Package fhir holds the minimal FHIR resource shapes used by the downstream
// bundle export. Only the fields the converter produces are modeled; the
// bundle is otherwise treated as an opaque document.
package fhir

import "errors"

// ErrInvalidBundle indicates a converted document is not a usable Bundle.
var ErrInvalidBundle = errors.New("invalid fhir bundle")

// RelatedArtifact links a plan definition to supporting material.
type RelatedArtifact struct {
	Type    string `json:"type"`
	Display string `json:"display,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Action is one recommended step inside a PlanDefinition.
type Action struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// BundleEntry wraps one resource in a bundle. Resources are kept as raw
// mappings; the converter validates only the envelope.
type BundleEntry struct {
	Resource map[string]any `json:"resource"`
}

// Bundle is a FHIR collection bundle.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Entry        []BundleEntry `json:"entry"`
}

// Validate checks the bundle envelope: the resource type, the collection
// type, and that every entry carries a resource with a resourceType.
func (b *Bundle) Validate() error {
	if b.ResourceType != "Bundle" {
		return ErrInvalidBundle
	}
	if b.Type == "" {
		return ErrInvalidBundle
	}
	if len(b.Entry) == 0 {
		return ErrInvalidBundle
	}
	for _, e := range b.Entry {
		if e.Resource == nil {
			return ErrInvalidBundle
		}
		if rt, _ := e.Resource["resourceType"].(string); rt == "" {
			return ErrInvalidBundle
		}
	}
	return nil
}
