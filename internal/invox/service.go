// Package invox exposes the forms service operations as typed Go calls.
package invox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Huzefa-Jadliwala/invox-client/internal/common/errors"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/logger"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/metrics"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/validation"
	"github.com/Huzefa-Jadliwala/invox-client/internal/models"
	"github.com/Huzefa-Jadliwala/invox-client/pkg/registry"
)

// Caller performs one JSON-RPC round trip and returns the raw result.
type Caller interface {
	Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error)
}

type operation struct {
	registry.Operation
	schema *validation.Schema
}

// Service holds no mutable state and is safe for concurrent use.
type Service struct {
	caller Caller
	log    logger.Logger
	ops    map[string]operation
}

// NewService binds caller to the default operation catalog, compiling each
// result schema once.
func NewService(caller Caller, log logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	ops := make(map[string]operation)
	for _, op := range registry.Operations() {
		compiled := operation{Operation: op}
		if op.Validated() {
			schema, err := validation.Compile(op.ID, op.ResultSchema)
			if err != nil {
				return nil, err
			}
			compiled.schema = schema
		}
		ops[op.ID] = compiled
	}

	return &Service{caller: caller, log: log, ops: ops}, nil
}

// call runs the operation and applies its shape check, if any.
func (s *Service) call(ctx context.Context, id string, params interface{}) (json.RawMessage, operation, error) {
	op, ok := s.ops[id]
	if !ok {
		return nil, op, fmt.Errorf("unknown operation %q", id)
	}

	raw, err := s.caller.Call(ctx, op.Method, params)
	if err != nil {
		return nil, op, err
	}

	if op.schema != nil {
		if res := op.schema.Validate(raw); !res.Valid {
			return nil, op, s.invalid(op, res.Summary())
		}
	}
	return raw, op, nil
}

func (s *Service) invalid(op operation, details string) error {
	metrics.ResponseValidationFailures.WithLabelValues(op.ID).Inc()
	s.log.Warn("Rejected RPC result", map[string]interface{}{
		"operation": op.ID,
		"method":    op.Method,
		"details":   details,
	})
	return errors.NewInvalidResponseError(op.ID, op.FailureMessage, details)
}

// decode unmarshals a result into out. A checked operation reports a decode
// failure with its fixed message; an unchecked one as a malformed response.
func (s *Service) decode(op operation, raw json.RawMessage, out interface{}) error {
	if err := json.Unmarshal(raw, out); err != nil {
		if op.schema != nil {
			return s.invalid(op, err.Error())
		}
		return errors.NewMalformedResponseError(op.Method, err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Ping returns the service's reply. A non-string reply is returned as its
// JSON text.
func (s *Service) Ping(ctx context.Context) (string, error) {
	raw, _, err := s.call(ctx, registry.OpPing, nil)
	if err != nil {
		return "", err
	}
	var reply string
	if err := json.Unmarshal(raw, &reply); err != nil {
		return string(raw), nil
	}
	return reply, nil
}

func (s *Service) GetFormTemplate(ctx context.Context, id string) (*models.FormTemplate, error) {
	raw, op, err := s.call(ctx, registry.OpGetFormTemplate, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	var tmpl models.FormTemplate
	if err := s.decode(op, raw, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// ListFormDepartments maps each {department, count} item to a
// DepartmentSummary, coercing count to an integer.
func (s *Service) ListFormDepartments(ctx context.Context) ([]models.DepartmentSummary, error) {
	raw, op, err := s.call(ctx, registry.OpListFormDepartments, nil)
	if err != nil {
		return nil, err
	}

	var items []struct {
		Department models.Text     `json:"department"`
		Count      json.RawMessage `json:"count"`
	}
	if err := s.decode(op, raw, &items); err != nil {
		return nil, err
	}

	out := make([]models.DepartmentSummary, 0, len(items))
	for i, item := range items {
		count, err := coerceCount(item.Count)
		if err != nil {
			return nil, s.invalid(op, fmt.Sprintf("%d.count: %v", i, err))
		}
		out = append(out, models.DepartmentSummary{Name: item.Department.String(), FormCount: count})
	}
	return out, nil
}

// coerceCount accepts a JSON number, a numeric string (surrounding whitespace
// allowed), or null/absent/"" as 0. The value must be integral.
func coerceCount(raw json.RawMessage) (int, error) {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 || string(v) == "null" {
		return 0, nil
	}

	text := string(v)
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, err
		}
		text = strings.TrimSpace(s)
		if text == "" {
			return 0, nil
		}
	} else if v[0] != '-' && (v[0] < '0' || v[0] > '9') {
		return 0, fmt.Errorf("not a number: %s", text)
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a number: %s", text)
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("not an integer count: %s", text)
	}
	return int(f), nil
}

func (s *Service) ListFormsByDepartment(ctx context.Context, department string) ([]models.FormSummary, error) {
	raw, op, err := s.call(ctx, registry.OpListFormsByDepartment, map[string]interface{}{"department": department})
	if err != nil {
		return nil, err
	}
	forms := []models.FormSummary{}
	if err := s.decode(op, raw, &forms); err != nil {
		return nil, err
	}
	return forms, nil
}

// ProcessForm uploads audio for transcription and extraction against the
// given template.
func (s *Service) ProcessForm(ctx context.Context, templateID string, audio []byte) (*models.ProcessedFormResult, error) {
	return s.processEncoded(ctx, templateID, EncodeAudio(audio))
}

// ProcessFormFrom is ProcessForm for audio read from r.
func (s *Service) ProcessFormFrom(ctx context.Context, templateID string, r io.Reader) (*models.ProcessedFormResult, error) {
	encoded, err := EncodeAudioReader(r)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return s.processEncoded(ctx, templateID, encoded)
}

func (s *Service) processEncoded(ctx context.Context, templateID, audio string) (*models.ProcessedFormResult, error) {
	raw, op, err := s.call(ctx, registry.OpProcessForm, map[string]interface{}{
		"formTemplateId": templateID,
		"audio":          audio,
	})
	if err != nil {
		return nil, err
	}
	var result models.ProcessedFormResult
	if err := s.decode(op, raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitForm returns the service's reply object unchanged.
func (s *Service) SubmitForm(ctx context.Context, templateID string, answers map[string]string) (models.SubmitFormResult, error) {
	if answers == nil {
		answers = map[string]string{}
	}
	raw, op, err := s.call(ctx, registry.OpSubmitForm, map[string]interface{}{
		"formData": map[string]interface{}{
			"templateId": templateID,
			"answers":    answers,
		},
	})
	if err != nil {
		return nil, err
	}
	var result models.SubmitFormResult
	if err := s.decode(op, raw, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListSubmittedForms returns nil when the service replies with null.
func (s *Service) ListSubmittedForms(ctx context.Context) ([]models.SubmittedForm, error) {
	raw, op, err := s.call(ctx, registry.OpListSubmittedForms, nil)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var forms []models.SubmittedForm
	if err := s.decode(op, raw, &forms); err != nil {
		return nil, err
	}
	return forms, nil
}

// GetSubmittedForm returns nil, nil when no form has the id and the service
// replies with null.
func (s *Service) GetSubmittedForm(ctx context.Context, id string) (*models.SubmittedForm, error) {
	raw, op, err := s.call(ctx, registry.OpGetSubmittedForm, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var form models.SubmittedForm
	if err := s.decode(op, raw, &form); err != nil {
		return nil, err
	}
	return &form, nil
}

// CreateFormTemplate returns the service's reply object unchanged.
func (s *Service) CreateFormTemplate(ctx context.Context, req models.CreateFormTemplateRequest) (models.CreateFormTemplateResult, error) {
	if req.Structure == nil {
		req.Structure = map[string]interface{}{}
	}
	raw, op, err := s.call(ctx, registry.OpCreateFormTemplate, req)
	if err != nil {
		return nil, err
	}
	var result models.CreateFormTemplateResult
	if err := s.decode(op, raw, &result); err != nil {
		return nil, err
	}
	return result, nil
}
