// Package contractdoc holds the default document-rendering and artifact-store
// collaborators of the contract workflow. Both are intentionally small; a PDF
// rendering service can replace them behind the same interfaces.
package contractdoc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// JSONRenderer produces a self-describing JSON document from the lease terms.
// The output is deterministic for a given (templateKey, payload) so the
// content hash identifies the terms, not the rendering moment.
type JSONRenderer struct{}

func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{}
}

func (r *JSONRenderer) Render(templateKey string, payload map[string]any) ([]byte, error) {
	doc := map[string]any{
		"template_key": templateKey,
		"terms":        payload,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("render contract document: %w", err)
	}
	return data, nil
}

// ContentHash returns the hex sha256 of a rendered document.
func ContentHash(doc []byte) string {
	h := sha256.Sum256(doc)
	return hex.EncodeToString(h[:])
}
