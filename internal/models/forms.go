// internal/models/forms.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Text is a string decoded from any JSON value. Strings are unquoted, null is
// empty, and any other value keeps its literal JSON text, so {"id":7} gives "7".
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, b); err != nil {
			return err
		}
		*t = Text(buf.String())
	}
	return nil
}

func (t Text) String() string {
	return string(t)
}

// FormFieldDefinition describes one field of a template structure.
type FormFieldDefinition struct {
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

type FormTemplate struct {
	ID             Text                           `json:"id"`
	Name           string                         `json:"name"`
	Department     string                         `json:"department"`
	ProcessingType string                         `json:"processingType"`
	Structure      map[string]FormFieldDefinition `json:"structure"`
}

// FormSummary is an item of the by-department template listing.
type FormSummary struct {
	ID   Text `json:"id"`
	Name Text `json:"name"`
}

type DepartmentSummary struct {
	Name      string `json:"name"`
	FormCount int    `json:"formCount"`
}

type SubmittedForm struct {
	ID         Text                   `json:"id"`
	TemplateID Text                   `json:"templateId"`
	Answers    map[string]interface{} `json:"answers"`
	CreatedAt  Text                   `json:"createdAt"`
}

type ProcessedFormResult struct {
	Transcript string        `json:"transcript"`
	Extracted  ExtractedForm `json:"extracted"`
}

// ExtractedForm holds the fields the service pulled out of a transcript.
// FilledTemplate is keyed by the template's field names.
type ExtractedForm struct {
	Message        string                 `json:"message"`
	FilledTemplate map[string]interface{} `json:"filledTemplate"`
	Confidence     float64                `json:"confidence"`
	MissingFields  []string               `json:"missingFields"`
	Warnings       []string               `json:"warnings"`
}

// SubmitFormResult is the form.add reply, field for field.
type SubmitFormResult map[string]interface{}

func (r SubmitFormResult) Message() string { return field(r, "message") }

func (r SubmitFormResult) FormID() string { return field(r, "formId") }

// CreateFormTemplateRequest is the input of formTemplate.create.
type CreateFormTemplateRequest struct {
	Name           string                 `json:"name"`
	Department     string                 `json:"department"`
	ProcessingType string                 `json:"processingType"`
	Structure      map[string]interface{} `json:"structure"`
}

// CreateFormTemplateResult is the formTemplate.create reply, field for field.
type CreateFormTemplateResult map[string]interface{}

func (r CreateFormTemplateResult) Message() string { return field(r, "message") }

func (r CreateFormTemplateResult) TemplateID() string { return field(r, "templateId") }

// field renders a scalar member as text; numbers keep their JSON form.
func field(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		b, _ := json.Marshal(v)
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
