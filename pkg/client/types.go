package client

import (
	"errors"
	"fmt"

	"github.com/rmax-ai/pipeforge/pkg/duplicate"
)

// ErrUnresolvable is returned by Hydrate when the daemon could not resolve the reference.
var ErrUnresolvable = errors.New("unresolvable reference")

// ErrNotFound is returned for lookups of records the daemon does not have.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer from the daemon.
type APIError struct {
	StatusCode int
	// Code is the "error" field of the response body, when there is one.
	Code string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unexpected status: %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Code, e.StatusCode)
}

// Status represents the health check response.
type Status struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// DuplicateRequest is the input of Duplicate.
type DuplicateRequest struct {
	ComponentText string           `json:"componentText"`
	Nodes         []duplicate.Node `json:"nodes"`
	Config        duplicate.Config `json:"config"`
}

// DuplicateResponse is the output of Duplicate.
type DuplicateResponse struct {
	ComponentText string            `json:"componentText"`
	NodeIDMap     map[string]string `json:"nodeIdMap"`
	NewNodes      []duplicate.Node  `json:"newNodes"`
	OriginalNodes []duplicate.Node  `json:"originalNodes"`
}
