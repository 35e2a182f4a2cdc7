// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Operation ids of the default catalog.
const (
	OpPing                  = "ping"
	OpGetFormTemplate       = "getFormTemplate"
	OpListFormDepartments   = "listFormDepartments"
	OpListFormsByDepartment = "listFormsByDepartment"
	OpProcessForm           = "processForm"
	OpSubmitForm            = "submitForm"
	OpListSubmittedForms    = "listSubmittedForms"
	OpGetSubmittedForm      = "getSubmittedForm"
	OpCreateFormTemplate    = "createFormTemplate"
)

//go:embed operations.json
var defaultCatalog []byte

var (
	defaultOnce sync.Once
	defaultReg  *OperationRegistry
)

// Parse decodes a catalog and checks that ids are unique and every
// operation names a method.
func Parse(data []byte) (*OperationRegistry, error) {
	var reg OperationRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := make(map[string]bool, len(reg.Operations))
	for _, op := range reg.Operations {
		if op.ID == "" || op.Method == "" {
			return nil, fmt.Errorf("catalog entry %q: id and method are required", op.ID)
		}
		if seen[op.ID] {
			return nil, fmt.Errorf("catalog entry %q: duplicate id", op.ID)
		}
		if op.Validated() && op.FailureMessage == "" {
			return nil, fmt.Errorf("catalog entry %q: failureMessage is required with a resultSchema", op.ID)
		}
		seen[op.ID] = true
	}
	return &reg, nil
}

// LoadRegistry reads and parses a catalog file.
func LoadRegistry(path string) (*OperationRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Default returns the built-in catalog of forms service operations.
func Default() *OperationRegistry {
	defaultOnce.Do(func() {
		reg, err := Parse(defaultCatalog)
		if err != nil {
			panic(err)
		}
		defaultReg = reg
	})
	return defaultReg
}

// Lookup finds an operation by id.
func (r *OperationRegistry) Lookup(id string) (Operation, bool) {
	for _, op := range r.Operations {
		if op.ID == id {
			return op, true
		}
	}
	return Operation{}, false
}

// Lookup finds an operation in the default catalog.
func Lookup(id string) (Operation, bool) {
	return Default().Lookup(id)
}

// Operations returns the default catalog in declaration order.
func Operations() []Operation {
	ops := Default().Operations
	out := make([]Operation, len(ops))
	copy(out, ops)
	return out
}
