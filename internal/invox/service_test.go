package invox

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Huzefa-Jadliwala/invox-client/internal/common/config"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/errors"
	commonhttp "github.com/Huzefa-Jadliwala/invox-client/internal/common/http"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/logger"
	"github.com/Huzefa-Jadliwala/invox-client/internal/common/metrics"
	"github.com/Huzefa-Jadliwala/invox-client/internal/models"
	"github.com/Huzefa-Jadliwala/invox-client/internal/rpc"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	JSONRPC string                 `json:"jsonrpc"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params"`
	ID      int                    `json:"id"`
}

// fakeService answers every request with a fixed envelope body.
type fakeService struct {
	mu    sync.Mutex
	calls []recordedCall
	body  string
	srv   *httptest.Server
}

func newFakeService(t *testing.T, body string) *fakeService {
	t.Helper()
	f := &fakeService{body: body}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rpc" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var call recordedCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.calls = append(f.calls, call)
		body := f.body
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) setBody(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body = body
}

func (f *fakeService) lastCall(t *testing.T) recordedCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func newTestService(t *testing.T, f *fakeService) *Service {
	t.Helper()
	log := logger.NewTestLogger(t)
	transport := commonhttp.NewClient(config.RPCConfig{
		BaseURL: f.srv.URL,
		Timeout: 2000,
	}, commonhttp.WithLogger(log))
	svc, err := NewService(rpc.NewClient(transport, log), log)
	require.NoError(t, err)
	return svc
}

func result(v string) string {
	return `{"jsonrpc":"2.0","result":` + v + `,"id":1}`
}

func rpcError(msg string) string {
	return `{"jsonrpc":"2.0","error":{"code":-32000,"message":"` + msg + `"},"id":1}`
}

func TestService_Ping(t *testing.T) {
	f := newFakeService(t, result(`"pong"`))
	svc := newTestService(t, f)

	reply, err := svc.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)

	call := f.lastCall(t)
	assert.Equal(t, "2.0", call.JSONRPC)
	assert.Equal(t, "ping", call.Method)
	assert.Equal(t, 1, call.ID)
	assert.Empty(t, call.Params)

	f.setBody(result(`{"status":"ok"}`))
	reply, err = svc.Ping(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, reply)
}

func TestService_GetFormTemplate(t *testing.T) {
	f := newFakeService(t, result(`{"id":"t1","name":"Intake","department":"HR","processingType":"audio","structure":{"fullName":{"type":"string","required":true}}}`))
	svc := newTestService(t, f)

	tmpl, err := svc.GetFormTemplate(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, &models.FormTemplate{
		ID:             "t1",
		Name:           "Intake",
		Department:     "HR",
		ProcessingType: "audio",
		Structure: map[string]models.FormFieldDefinition{
			"fullName": {Type: "string", Required: true},
		},
	}, tmpl)

	call := f.lastCall(t)
	assert.Equal(t, "formTemplate.get", call.Method)
	assert.Equal(t, map[string]interface{}{"id": "t1"}, call.Params)

	// field-for-field: re-encoding gives back the service's object
	b, err := json.Marshal(tmpl)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"t1","name":"Intake","department":"HR","processingType":"audio","structure":{"fullName":{"type":"string","required":true}}}`, string(b))
}

func TestService_GetFormTemplate_RejectsNonObjects(t *testing.T) {
	for _, payload := range []string{`null`, `"t1"`, `42`, `[]`, `true`} {
		t.Run(payload, func(t *testing.T) {
			f := newFakeService(t, result(payload))
			svc := newTestService(t, f)

			before := testutil.ToFloat64(metrics.ResponseValidationFailures.WithLabelValues("getFormTemplate"))
			_, err := svc.GetFormTemplate(context.Background(), "t1")
			require.Error(t, err)
			assert.EqualError(t, err, "Form not found or invalid response")
			assert.True(t, stderrors.Is(err, errors.ErrInvalidResponse))
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.ResponseValidationFailures.WithLabelValues("getFormTemplate")))
		})
	}
}

func TestService_ListFormDepartments(t *testing.T) {
	f := newFakeService(t, result(`[
		{"department":"HR","count":3},
		{"department":"Sales","count":"12"},
		{"department":"Ops","count":" 7 "},
		{"department":"Legal","count":null},
		{"department":"IT"},
		{"department":"Empty","count":""}
	]`))
	svc := newTestService(t, f)

	deps, err := svc.ListFormDepartments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.DepartmentSummary{
		{Name: "HR", FormCount: 3},
		{Name: "Sales", FormCount: 12},
		{Name: "Ops", FormCount: 7},
		{Name: "Legal", FormCount: 0},
		{Name: "IT", FormCount: 0},
		{Name: "Empty", FormCount: 0},
	}, deps)
	assert.Equal(t, "formTemplate.departmentsWithTemplateCount", f.lastCall(t).Method)
}

func TestService_ListFormDepartments_Empty(t *testing.T) {
	f := newFakeService(t, result(`[]`))
	svc := newTestService(t, f)

	deps, err := svc.ListFormDepartments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestService_ListFormDepartments_Rejects(t *testing.T) {
	const msg = "Unexpected response: no result array in formTemplate.getDepartments"
	payloads := []string{
		`{}`, `null`, `"HR"`, `5`,
		`[{"department":"HR","count":"many"}]`,
		`[{"department":"HR","count":1.5}]`,
		`[{"department":"HR","count":true}]`,
		`[{"department":"HR","count":{}}]`,
		`["HR"]`,
	}
	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			f := newFakeService(t, result(payload))
			svc := newTestService(t, f)

			_, err := svc.ListFormDepartments(context.Background())
			require.Error(t, err)
			assert.EqualError(t, err, msg)
			assert.True(t, stderrors.Is(err, errors.ErrInvalidResponse))
		})
	}
}

func TestService_ListFormsByDepartment(t *testing.T) {
	f := newFakeService(t, result(`[{"id":"t1","name":"Intake"},{"id":"t2","name":"Exit"}]`))
	svc := newTestService(t, f)

	forms, err := svc.ListFormsByDepartment(context.Background(), "HR")
	require.NoError(t, err)
	assert.Equal(t, []models.FormSummary{{ID: "t1", Name: "Intake"}, {ID: "t2", Name: "Exit"}}, forms)

	call := f.lastCall(t)
	assert.Equal(t, "formTemplate.get", call.Method)
	assert.Equal(t, map[string]interface{}{"department": "HR"}, call.Params)

	for _, payload := range []string{`{}`, `null`, `"x"`, `1`} {
		f.setBody(result(payload))
		_, err := svc.ListFormsByDepartment(context.Background(), "HR")
		assert.EqualError(t, err, "Unexpected response: no result array", payload)
	}
}

func TestService_ProcessForm(t *testing.T) {
	f := newFakeService(t, result(`{
		"transcript":"my name is Ada",
		"extracted":{
			"message":"ok",
			"filledTemplate":{"fullName":"Ada"},
			"confidence":0.92,
			"missingFields":[],
			"warnings":["low volume"]
		}
	}`))
	svc := newTestService(t, f)

	res, err := svc.ProcessForm(context.Background(), "t1", []byte{0x00, 0xFF, 0x10})
	require.NoError(t, err)
	assert.Equal(t, "my name is Ada", res.Transcript)
	assert.Equal(t, map[string]interface{}{"fullName": "Ada"}, res.Extracted.FilledTemplate)
	assert.InDelta(t, 0.92, res.Extracted.Confidence, 1e-9)
	assert.Equal(t, []string{"low volume"}, res.Extracted.Warnings)

	call := f.lastCall(t)
	assert.Equal(t, "form.processForm", call.Method)
	assert.Equal(t, "t1", call.Params["formTemplateId"])
	assert.Equal(t, "AP8Q", call.Params["audio"])
	assert.Len(t, call.Params["audio"], 4)
}

func TestService_ProcessForm_Rejects(t *testing.T) {
	payloads := []string{
		`null`,
		`"done"`,
		`{}`,
		`{"transcript":"x"}`,
		`{"extracted":{"filledTemplate":{}}}`,
		`{"transcript":"x","extracted":{}}`,
		`{"transcript":"x","extracted":{"filledTemplate":null}}`,
		`{"transcript":1,"extracted":{"filledTemplate":{}}}`,
	}
	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			f := newFakeService(t, result(payload))
			svc := newTestService(t, f)

			_, err := svc.ProcessForm(context.Background(), "t1", []byte("abc"))
			require.Error(t, err)
			assert.EqualError(t, err, "Invalid response from form.processForm")

			var se *errors.StandardError
			require.True(t, stderrors.As(err, &se))
			assert.NotEmpty(t, se.Details)
		})
	}
}

func TestService_SubmitForm(t *testing.T) {
	f := newFakeService(t, result(`{"message":"saved","formId":"f9"}`))
	svc := newTestService(t, f)

	res, err := svc.SubmitForm(context.Background(), "t1", map[string]string{"fullName": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmitFormResult{"message": "saved", "formId": "f9"}, res)
	assert.Equal(t, "f9", res.FormID())

	call := f.lastCall(t)
	assert.Equal(t, "form.add", call.Method)
	assert.Equal(t, map[string]interface{}{
		"formData": map[string]interface{}{
			"templateId": "t1",
			"answers":    map[string]interface{}{"fullName": "Ada"},
		},
	}, call.Params)
}

func TestService_ErrorMessagesVerbatim(t *testing.T) {
	const msg = "Template t1 is archived: submissions closed"
	f := newFakeService(t, rpcError(msg))
	svc := newTestService(t, f)
	ctx := context.Background()

	_, err := svc.SubmitForm(ctx, "t1", nil)
	assert.EqualError(t, err, msg)
	assert.True(t, stderrors.Is(err, errors.ErrRPC))

	_, err = svc.CreateFormTemplate(ctx, models.CreateFormTemplateRequest{Name: "x"})
	assert.EqualError(t, err, msg)

	_, err = svc.ListSubmittedForms(ctx)
	assert.EqualError(t, err, msg)

	_, err = svc.GetSubmittedForm(ctx, "f1")
	assert.EqualError(t, err, msg)

	_, err = svc.Ping(ctx)
	assert.EqualError(t, err, msg)

	_, err = svc.GetFormTemplate(ctx, "t1")
	assert.EqualError(t, err, msg)
}

func TestService_ListSubmittedForms(t *testing.T) {
	f := newFakeService(t, result(`[{"id":"f1","templateId":"t1","answers":{"fullName":"Ada","age":36},"createdAt":"2024-05-01T10:00:00Z"}]`))
	svc := newTestService(t, f)

	forms, err := svc.ListSubmittedForms(context.Background())
	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.Equal(t, models.Text("f1"), forms[0].ID)
	assert.Equal(t, models.Text("t1"), forms[0].TemplateID)
	assert.Equal(t, float64(36), forms[0].Answers["age"])
	assert.Equal(t, models.Text("2024-05-01T10:00:00Z"), forms[0].CreatedAt)

	call := f.lastCall(t)
	assert.Equal(t, "form.get", call.Method)
	assert.Empty(t, call.Params)

	f.setBody(result(`null`))
	forms, err = svc.ListSubmittedForms(context.Background())
	require.NoError(t, err)
	assert.Nil(t, forms)
}

func TestService_GetSubmittedForm(t *testing.T) {
	f := newFakeService(t, result(`{"id":"f1","templateId":"t1","answers":{},"createdAt":"2024-05-01"}`))
	svc := newTestService(t, f)

	form, err := svc.GetSubmittedForm(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, models.Text("f1"), form.ID)
	assert.Equal(t, map[string]interface{}{"id": "f1"}, f.lastCall(t).Params)

	f.setBody(result(`null`))
	form, err = svc.GetSubmittedForm(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, form)

	f.setBody(result(`"not a form"`))
	_, err = svc.GetSubmittedForm(context.Background(), "f1")
	assert.True(t, stderrors.Is(err, errors.ErrMalformedResponse))
}

func TestService_CreateFormTemplate(t *testing.T) {
	f := newFakeService(t, result(`{"message":"created","templateId":"t7"}`))
	svc := newTestService(t, f)

	res, err := svc.CreateFormTemplate(context.Background(), models.CreateFormTemplateRequest{
		Name:           "Intake",
		Department:     "HR",
		ProcessingType: "audio",
		Structure: map[string]interface{}{
			"fullName": map[string]interface{}{"type": "string", "required": true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.CreateFormTemplateResult{"message": "created", "templateId": "t7"}, res)
	assert.Equal(t, "t7", res.TemplateID())

	call := f.lastCall(t)
	assert.Equal(t, "formTemplate.create", call.Method)
	assert.Equal(t, "Intake", call.Params["name"])
	assert.Equal(t, "HR", call.Params["department"])
	assert.Equal(t, "audio", call.Params["processingType"])
	assert.Equal(t, map[string]interface{}{
		"fullName": map[string]interface{}{"type": "string", "required": true},
	}, call.Params["structure"])

	f.setBody(result(`null`))
	_, err = svc.CreateFormTemplate(context.Background(), models.CreateFormTemplateRequest{Name: "x"})
	assert.EqualError(t, err, "Invalid response from formTemplate.create")
}

func TestService_LooseResultsPassShapeCheck(t *testing.T) {
	f := newFakeService(t, result(`[{"id":7,"name":"Intake","owner":{"team":"HR"}},{"id":"t2","name":null}]`))
	svc := newTestService(t, f)
	ctx := context.Background()

	forms, err := svc.ListFormsByDepartment(ctx, "HR")
	require.NoError(t, err)
	assert.Equal(t, []models.FormSummary{{ID: "7", Name: "Intake"}, {ID: "t2", Name: ""}}, forms)

	f.setBody(result(`{"message":"saved","formId":42,"receipt":{"at":"2024-05-01"}}`))
	saved, err := svc.SubmitForm(ctx, "t1", map[string]string{"fullName": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmitFormResult{
		"message": "saved",
		"formId":  float64(42),
		"receipt": map[string]interface{}{"at": "2024-05-01"},
	}, saved)
	assert.Equal(t, "42", saved.FormID())
	assert.Equal(t, "saved", saved.Message())

	f.setBody(result(`{"ok":true}`))
	created, err := svc.CreateFormTemplate(ctx, models.CreateFormTemplateRequest{Name: "Intake"})
	require.NoError(t, err)
	assert.Equal(t, models.CreateFormTemplateResult{"ok": true}, created)
	assert.Empty(t, created.TemplateID())

	f.setBody(result(`{"id":11,"name":"Intake","department":"HR","processingType":"audio","structure":null,"version":3}`))
	tmpl, err := svc.GetFormTemplate(ctx, "11")
	require.NoError(t, err)
	assert.Equal(t, models.Text("11"), tmpl.ID)
	assert.Nil(t, tmpl.Structure)

	f.setBody(result(`[{"department":7,"count":"2"}]`))
	deps, err := svc.ListFormDepartments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.DepartmentSummary{{Name: "7", FormCount: 2}}, deps)
}

func TestService_GetFormTemplateFieldTypes(t *testing.T) {
	f := newFakeService(t, "")
	svc := newTestService(t, f)

	for _, payload := range []string{
		`{"id":"t1","name":5}`,
		`{"id":"t1","structure":{"fullName":"string"}}`,
		`{"id":"t1","structure":{"fullName":{"type":"string","required":"yes"}}}`,
	} {
		f.setBody(result(payload))
		_, err := svc.GetFormTemplate(context.Background(), "t1")
		assert.True(t, stderrors.Is(err, errors.ErrInvalidResponse), payload)
	}
}

func TestService_EmptyResponse(t *testing.T) {
	f := newFakeService(t, `{"jsonrpc":"2.0","id":1}`)
	svc := newTestService(t, f)

	_, err := svc.ListSubmittedForms(context.Background())
	assert.True(t, stderrors.Is(err, errors.ErrEmptyResponse))
}

func TestService_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	transport := commonhttp.NewClient(config.RPCConfig{BaseURL: srv.URL, Timeout: 2000})
	svc, err := NewService(rpc.NewClient(transport, nil), nil)
	require.NoError(t, err)

	_, err = svc.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrTransport))
	assert.EqualError(t, err, "request failed with status code 401")
}

func TestCoerceCount(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: ``, want: 0},
		{raw: `null`, want: 0},
		{raw: `0`, want: 0},
		{raw: `42`, want: 42},
		{raw: `-3`, want: -3},
		{raw: `1e2`, want: 100},
		{raw: `4.0`, want: 4},
		{raw: `"17"`, want: 17},
		{raw: `"  8\n"`, want: 8},
		{raw: `"+5"`, want: 5},
		{raw: `""`, want: 0},
		{raw: `"   "`, want: 0},
		{raw: `2.5`, wantErr: true},
		{raw: `"abc"`, wantErr: true},
		{raw: `"NaN"`, wantErr: true},
		{raw: `"Infinity"`, wantErr: true},
		{raw: `true`, wantErr: true},
		{raw: `[]`, wantErr: true},
		{raw: `{}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := coerceCount(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
