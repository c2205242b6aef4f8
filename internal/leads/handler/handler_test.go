package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/leadstest"
	"leadflow_backend/internal/leads/management"
	"leadflow_backend/internal/leads/rules"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const fmtUnexpectedStatus = "expected status %d, got %d: %s"

type fixture struct {
	store  *leadstest.Store
	engine *gin.Engine
	teamID uuid.UUID
	lead   uuid.UUID
	agent  uuid.UUID
	other  uuid.UUID
}

func newFixture(role domain.Role) *fixture {
	gin.SetMode(gin.TestMode)

	store := leadstest.New()
	teamID := store.AddTeam()
	f := &fixture{
		store:  store,
		teamID: teamID,
		lead:   store.AddUser(teamID, domain.RoleTeamLead),
		agent:  store.AddUser(teamID, domain.RoleAgent),
		other:  store.AddUser(teamID, domain.RoleAgent),
	}

	val := validator.New()
	h := New(management.New(store, nil), rules.New(store, val), val)

	engine := gin.New()
	protected := engine.Group("/api/v1", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, f.lead)
		c.Set(httpkit.ContextTeamIDKey, teamID)
		c.Set(httpkit.ContextRoleKey, string(role))
		c.Next()
	})
	h.RegisterRoutes(protected, protected.Group("", httpkit.RequireRole(string(domain.RoleTeamLead))))
	f.engine = engine
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) putLead(state domain.LeadState) domain.Lead {
	return f.store.PutLead(domain.Lead{
		TeamID:       f.teamID,
		OwnerAgentID: f.agent,
		State:        state,
		CreatedAt:    time.Now().Add(-72 * time.Hour),
	})
}

func TestGetRulesReturnsDefaults(t *testing.T) {
	f := newFixture(domain.RoleAgent)

	rec := f.do(http.MethodGet, "/api/v1/team/rules", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf(fmtUnexpectedStatus, http.StatusOK, rec.Code, rec.Body.String())
	}

	var body struct {
		StaleRules struct {
			ActiveStaleHours int `json:"active_stale_hours"`
		} `json:"stale_rules"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.StaleRules.ActiveStaleHours != domain.BuiltinDefaults().Stale.ActiveStaleHours {
		t.Fatalf("unexpected stale rules %s", rec.Body.String())
	}
}

func TestUpdateRulesRequiresTeamLead(t *testing.T) {
	f := newFixture(domain.RoleAgent)

	rec := f.do(http.MethodPatch, "/api/v1/team/rules", map[string]any{"active_stale_hours": 72})
	if rec.Code != http.StatusForbidden {
		t.Fatalf(fmtUnexpectedStatus, http.StatusForbidden, rec.Code, rec.Body.String())
	}
}

func TestUpdateRulesValidation(t *testing.T) {
	f := newFixture(domain.RoleTeamLead)

	rec := f.do(http.MethodPatch, "/api/v1/team/rules", map[string]any{"at_risk_threshold_percent": 150})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf(fmtUnexpectedStatus, http.StatusBadRequest, rec.Code, rec.Body.String())
	}
	var body httpkit.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error != msgValidationFailed || body.Details == nil {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	stored, err := f.store.Rules(f.teamID)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if stored.Stale != domain.BuiltinDefaults().Stale {
		t.Fatalf("rules changed on validation failure: %+v", stored.Stale)
	}
}

func TestUpdateRulesPersists(t *testing.T) {
	f := newFixture(domain.RoleTeamLead)

	rec := f.do(http.MethodPatch, "/api/v1/team/rules", map[string]any{"active_stale_hours": 72})
	if rec.Code != http.StatusOK {
		t.Fatalf(fmtUnexpectedStatus, http.StatusOK, rec.Code, rec.Body.String())
	}
	stored, _ := f.store.Rules(f.teamID)
	if stored.Stale.ActiveStaleHours != 72 {
		t.Fatalf("expected 72h, got %d", stored.Stale.ActiveStaleHours)
	}
}

func TestReassign(t *testing.T) {
	tests := []struct {
		name   string
		path   func(f *fixture) string
		body   func(f *fixture) any
		status int
	}{
		{
			name:   "malformed lead id",
			path:   func(*fixture) string { return "/api/v1/leads/not-a-uuid/reassign" },
			body:   func(f *fixture) any { return map[string]any{"new_owner_id": f.other} },
			status: http.StatusBadRequest,
		},
		{
			name:   "missing owner",
			path:   func(f *fixture) string { return "/api/v1/leads/" + f.putLead(domain.StateStale).ID.String() + "/reassign" },
			body:   func(*fixture) any { return map[string]any{} },
			status: http.StatusBadRequest,
		},
		{
			name:   "active lead",
			path:   func(f *fixture) string { return "/api/v1/leads/" + f.putLead(domain.StateActive).ID.String() + "/reassign" },
			body:   func(f *fixture) any { return map[string]any{"new_owner_id": f.other} },
			status: http.StatusForbidden,
		},
		{
			name:   "unknown lead",
			path:   func(*fixture) string { return "/api/v1/leads/" + uuid.NewString() + "/reassign" },
			body:   func(f *fixture) any { return map[string]any{"new_owner_id": f.other} },
			status: http.StatusNotFound,
		},
		{
			name:   "stale lead",
			path:   func(f *fixture) string { return "/api/v1/leads/" + f.putLead(domain.StateStale).ID.String() + "/reassign" },
			body:   func(f *fixture) any { return map[string]any{"new_owner_id": f.other, "reason": "coverage"} },
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(domain.RoleTeamLead)
			rec := f.do(http.MethodPost, tt.path(f), tt.body(f))
			if rec.Code != tt.status {
				t.Fatalf(fmtUnexpectedStatus, tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestReassignResponseCarriesNewOwner(t *testing.T) {
	f := newFixture(domain.RoleTeamLead)
	lead := f.putLead(domain.StateStale)

	rec := f.do(http.MethodPost, "/api/v1/leads/"+lead.ID.String()+"/reassign", map[string]any{"new_owner_id": f.other})
	if rec.Code != http.StatusOK {
		t.Fatalf(fmtUnexpectedStatus, http.StatusOK, rec.Code, rec.Body.String())
	}
	var body struct {
		LeadID       uuid.UUID `json:"lead_id"`
		OwnerAgentID uuid.UUID `json:"owner_agent_id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.LeadID != lead.ID || body.OwnerAgentID != f.other {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if len(f.store.Audit(lead.ID)) != 1 {
		t.Fatalf("expected one audit entry")
	}
}

func TestAssignBrokerTaskMalformedID(t *testing.T) {
	f := newFixture(domain.RoleTeamLead)

	rec := f.do(http.MethodPost, "/api/v1/team/broker-tasks/nope/assign", map[string]any{"assignee_user_id": f.other, "reason": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf(fmtUnexpectedStatus, http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}
