package hospital

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/vitalflow/vitalflow/internal/domain/staff"
	"github.com/vitalflow/vitalflow/internal/platform/auth"
)

func newServer(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	svc := newService(t)
	seedWard(t, svc)

	e := echo.New()
	// Stand-in for the auth middleware: a fixed physician identity.
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, auth.UserIDKey, "dr-test")
			ctx = context.WithValue(ctx, auth.UserRolesKey, []string{"physician"})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return e, svc
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAdmitPatientEndpoint(t *testing.T) {
	e, _ := newServer(t)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/patients",
		`{"id":"P1","name":"Patient One","age":50,"status":"Stable","diagnosis":"observation",
		  "vitals":{"spo2":97,"heart_rate":75}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res AllocationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.BedID != "GEN-01" || res.Rank != 3 {
		t.Errorf("allocation = %+v", res)
	}

	rec = doJSON(t, e, http.MethodPost, "/api/v1/patients",
		`{"id":"P1","name":"Duplicate","status":"Stable"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate admission status = %d", rec.Code)
	}
}

func TestVitalsEndpointPromotes(t *testing.T) {
	e, _ := newServer(t)
	doJSON(t, e, http.MethodPost, "/api/v1/patients",
		`{"id":"P1","name":"Patient One","status":"Stable","vitals":{"spo2":97,"heart_rate":75}}`)

	rec := doJSON(t, e, http.MethodPatch, "/api/v1/patients/P1/vitals",
		`{"spo2":82,"heart_rate":155}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res VitalsResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.StatusChanged || res.NewRank != 1 {
		t.Errorf("vitals result = %+v", res)
	}

	if rec := doJSON(t, e, http.MethodPatch, "/api/v1/patients/nope/vitals", `{"spo2":95}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown patient status = %d", rec.Code)
	}
}

func TestSetStatusRejectsBadValue(t *testing.T) {
	e, _ := newServer(t)
	doJSON(t, e, http.MethodPost, "/api/v1/patients",
		`{"id":"P1","name":"Patient One","status":"Stable"}`)

	if rec := doJSON(t, e, http.MethodPatch, "/api/v1/patients/P1/status", `{"status":"bogus"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bogus status code = %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodPatch, "/api/v1/patients/P1/status", `{"status":"Serious"}`); rec.Code != http.StatusOK {
		t.Errorf("valid status code = %d", rec.Code)
	}
}

func TestApprovalEndpointsRoundTrip(t *testing.T) {
	e, svc := newServer(t)

	// Fill the general beds, then admit a critical patient so the agent
	// queues a gated swap once both ICU beds hold stable occupants.
	doJSON(t, e, http.MethodPost, "/api/v1/patients",
		`{"id":"P-A","name":"A","status":"Stable","vitals":{"spo2":97,"heart_rate":75}}`)
	doJSON(t, e, http.MethodPost, "/api/v1/patients",
		`{"id":"P-B","name":"B","status":"Stable","vitals":{"spo2":97,"heart_rate":75}}`)
	if err := svc.allocator.AssignBed("P-A", "ICU-01"); err != nil {
		t.Fatal(err)
	}
	if err := svc.allocator.AssignBed("P-B", "ICU-02"); err != nil {
		t.Fatal(err)
	}
	doJSON(t, e, http.MethodPost, "/api/v1/patients",
		`{"id":"P-C","name":"C","status":"Stable","vitals":{"spo2":97,"heart_rate":75}}`)
	doJSON(t, e, http.MethodPost, "/api/v1/patients",
		`{"id":"P-D","name":"D","status":"Stable","vitals":{"spo2":97,"heart_rate":75}}`)
	// Every bed is taken, so the critical admission cannot swap on its own
	// and the agent must propose the move.
	doJSON(t, e, http.MethodPost, "/api/v1/patients",
		`{"id":"P-CRIT","name":"Crit","status":"Critical","diagnosis":"cardiac arrest",
		  "vitals":{"spo2":82,"heart_rate":150}}`)

	doJSON(t, e, http.MethodPost, "/api/v1/agent/cycle", "")

	rec := doJSON(t, e, http.MethodGet, "/api/v1/approvals", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("approvals list status = %d", rec.Code)
	}
	var pending []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
		t.Fatal(err)
	}
	if len(pending) == 0 {
		t.Fatal("no pending approvals after cycle")
	}

	rec = doJSON(t, e, http.MethodPost, "/api/v1/approvals/"+pending[0].ID+"/approve", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body %s", rec.Code, rec.Body.String())
	}

	// A second approve of the same decision is a conflict.
	rec = doJSON(t, e, http.MethodPost, "/api/v1/approvals/"+pending[0].ID+"/approve", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("re-approve status = %d", rec.Code)
	}

	if rec := doJSON(t, e, http.MethodPost, "/api/v1/approvals/not-a-uuid/approve", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad uuid status = %d", rec.Code)
	}
}

func TestStaffEndpoints(t *testing.T) {
	e, svc := newServer(t)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/staff",
		`{"id":"D2","name":"Dr New","role":"Doctor","specialization":"cardiology"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add staff status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, e, http.MethodPost, "/api/v1/staff/D2/punch-out", ""); rec.Code != http.StatusNoContent {
		t.Errorf("punch-out status = %d", rec.Code)
	}
	d, err := svc.scheduler.Staff().Get("D2")
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != staff.StatusOffDuty {
		t.Errorf("status after punch-out = %s", d.Status)
	}
}
