package proxmox

import "fmt"

// AuthenticationError means no session could be established. The client is
// unusable afterwards.
type AuthenticationError struct {
	Username string
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("proxmox authentication failed for %s: %v", e.Username, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// UpstreamAPIError is any non-2xx answer from the management API.
type UpstreamAPIError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *UpstreamAPIError) Error() string {
	return fmt.Sprintf("proxmox http %d on %s: %s", e.StatusCode, e.Path, e.Body)
}

// SubresourceError records a failed listing under one node. Siblings are
// still walked.
type SubresourceError struct {
	Node     string
	Resource string
	Err      error
}

func (e *SubresourceError) Error() string {
	return fmt.Sprintf("node %s %s: %v", e.Node, e.Resource, e.Err)
}

func (e *SubresourceError) Unwrap() error { return e.Err }
