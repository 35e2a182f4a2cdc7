// pkg/registry/schema.go
package registry

type OperationRegistry struct {
	Version     string      `json:"version"`
	LastUpdated string      `json:"lastUpdated"`
	Operations  []Operation `json:"operations"`
}

// Operation describes one forms service call. A nil ResultSchema means the
// result is passed through unchecked.
type Operation struct {
	ID             string                 `json:"id"`
	DisplayName    string                 `json:"displayName"`
	Description    string                 `json:"description"`
	Method         string                 `json:"method"`
	Params         []string               `json:"params"`
	ResultSchema   map[string]interface{} `json:"resultSchema"`
	FailureMessage string                 `json:"failureMessage,omitempty"`
	Tags           []string               `json:"tags"`
}

// Validated reports whether the operation's result is shape-checked.
func (o Operation) Validated() bool {
	return o.ResultSchema != nil
}
