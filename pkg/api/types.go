package api

import (
	"github.com/rmax-ai/pipeforge/pkg/componentref"
	"github.com/rmax-ai/pipeforge/pkg/componentspec"
	"github.com/rmax-ai/pipeforge/pkg/duplicate"
)

// HealthResponse is the body of GET /v1/health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HydrateRequest matches the POST /v1/hydrate body schema
type HydrateRequest struct {
	Reference componentspec.ComponentReference `json:"reference"`
}

// HydrateResponse matches the response for POST /v1/hydrate
type HydrateResponse struct {
	Hydrated *componentref.Hydrated `json:"hydrated"`
}

// DuplicateRequest matches the POST /v1/duplicate body schema
type DuplicateRequest struct {
	ComponentText string           `json:"componentText"`
	Nodes         []duplicate.Node `json:"nodes"`
	Config        duplicate.Config `json:"config"`
}

// DuplicateResponse matches the response for POST /v1/duplicate.
// ComponentText is the whole updated component; it replaces the request's.
type DuplicateResponse struct {
	ComponentText string            `json:"componentText"`
	NodeIDMap     map[string]string `json:"nodeIdMap"`
	NewNodes      []duplicate.Node  `json:"newNodes"`
	OriginalNodes []duplicate.Node  `json:"originalNodes"`
}

// LibraryRequest matches the POST /v1/libraries body schema
type LibraryRequest struct {
	URL string `json:"url"`
}
