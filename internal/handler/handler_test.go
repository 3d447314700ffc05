package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"nodeclass/internal/config"
	"nodeclass/internal/domain"
	"nodeclass/internal/logging"
	"nodeclass/internal/repository/sqlstore"
	"nodeclass/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	t      *testing.T
	store  *sqlstore.Store
	router http.Handler
	svc    *service.Services
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()

	store, err := sqlstore.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &apiFixture{t: t, store: store}
	f.useFeatures(config.DefaultFeatures())
	return f
}

func (f *apiFixture) useFeatures(features config.Features) {
	f.svc = service.New(service.Deps{
		Repo:     f.store,
		Features: features,
		Events:   service.NewEventBus(),
		Log:      logging.Discard(),
	})
	f.router = NewRouter(New(f.svc, logging.Discard()), nil)
}

func (f *apiFixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(f.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) create(path string, body interface{}) int64 {
	f.t.Helper()
	rec := f.do(http.MethodPost, path, body)
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &created))
	return created.ID
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// seedWeb builds: web (class nginx, port=80) includes base (class ntp,
// port=8080, tz=UTC); node web01 is a member of web
func (f *apiFixture) seedWeb() (webID, baseID int64) {
	nginx := f.create("/api/classes", map[string]string{"name": "nginx"})
	ntp := f.create("/api/classes", map[string]string{"name": "ntp"})

	baseID = f.create("/api/groups", CreateGroupRequest{
		Name:       "base",
		Parameters: map[string]string{"port": "8080", "tz": "UTC"},
		ClassIDs:   []int64{ntp},
	})
	webID = f.create("/api/groups", CreateGroupRequest{
		Name:        "web",
		Parameters:  map[string]string{"port": "80"},
		ClassIDs:    []int64{nginx},
		SubgroupIDs: []int64{baseID},
	})
	f.create("/api/nodes", CreateNodeRequest{Name: "web01"})

	rec := f.do(http.MethodPost, "/api/memberships", CreateMembershipRequest{NodeName: "web01", GroupName: "web"})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return webID, baseID
}

func TestGetClassification(t *testing.T) {
	f := newAPI(t)
	f.seedWeb()

	t.Run("yaml by default", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/nodes/web01/classification", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/x-yaml", rec.Header().Get("Content-Type"))
		assert.Equal(t, "classes:\n  - nginx\n  - ntp\nparameters:\n  port: \"80\"\n  tz: UTC\n", rec.Body.String())
	})

	t.Run("json", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/nodes/web01/classification?format=json", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var doc struct {
			Classes    []string          `json:"classes"`
			Parameters map[string]string `json:"parameters"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		assert.Equal(t, []string{"nginx", "ntp"}, doc.Classes)
		assert.Equal(t, map[string]string{"port": "80", "tz": "UTC"}, doc.Parameters)
	})

	t.Run("repeated requests are byte identical", func(t *testing.T) {
		first := f.do(http.MethodGet, "/api/nodes/web01/classification", nil).Body.String()
		second := f.do(http.MethodGet, "/api/nodes/web01/classification", nil).Body.String()
		assert.Equal(t, first, second)
	})

	t.Run("unknown node", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/nodes/ghost/classification", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, decodeError(t, rec).Error, "ghost")
	})

	t.Run("unsupported format", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/nodes/web01/classification?format=xml", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExplainClassification(t *testing.T) {
	f := newAPI(t)
	f.seedWeb()

	rec := f.do(http.MethodGet, "/api/nodes/web01/classification/explain", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ExplainResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "web01", resp.Node)
	assert.Len(t, resp.Groups, 2)

	winners := map[string]string{}
	for _, src := range resp.Sources {
		winners[src.Key] = src.Group
	}
	assert.Equal(t, "web", winners["port"])
	assert.Equal(t, "base", winners["tz"])
}

func TestCreateMembership(t *testing.T) {
	f := newAPI(t)
	webID, _ := f.seedWeb()
	nodeID := f.create("/api/nodes", CreateNodeRequest{Name: "web02"})

	t.Run("by id", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/memberships", CreateMembershipRequest{NodeID: nodeID, GroupID: webID})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("duplicate", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/memberships", CreateMembershipRequest{NodeID: nodeID, GroupID: webID})
		assert.Equal(t, http.StatusConflict, rec.Code)

		count, err := f.svc.Memberships.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("missing node by name", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/memberships", CreateMembershipRequest{NodeName: "ghost", GroupName: "web"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, decodeError(t, rec).Error, "ghost")
	})

	t.Run("mixed reference styles", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/memberships", CreateMembershipRequest{NodeID: nodeID, GroupName: "web"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/memberships", "{}")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := f.do(http.MethodDelete, "/api/memberships?node_id="+itoa(nodeID)+"&node_group_id="+itoa(webID), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.do(http.MethodDelete, "/api/memberships?node_id="+itoa(nodeID)+"&node_group_id="+itoa(webID), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSubgroups(t *testing.T) {
	f := newAPI(t)
	webID, baseID := f.seedWeb()

	t.Run("cycle is rejected with the edge", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/groups/"+itoa(baseID)+"/subgroups", AddSubgroupRequest{ChildID: webID})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		resp := decodeError(t, rec)
		require.NotNil(t, resp.Edge)
		assert.Equal(t, domain.Inclusion{ParentID: baseID, ChildID: webID}, *resp.Edge)
	})

	t.Run("self inclusion", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/groups/"+itoa(webID)+"/subgroups", AddSubgroupRequest{ChildID: webID})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("duplicate", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/groups/"+itoa(webID)+"/subgroups", AddSubgroupRequest{ChildID: baseID})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing child id", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/groups/"+itoa(webID)+"/subgroups", "{}")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("remove", func(t *testing.T) {
		rec := f.do(http.MethodDelete, "/api/groups/"+itoa(webID)+"/subgroups/"+itoa(baseID), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.do(http.MethodGet, "/api/nodes/web01/classification", nil)
		assert.Equal(t, "classes:\n  - nginx\nparameters:\n  port: \"80\"\n", rec.Body.String())
	})
}

func TestUpdateGroup(t *testing.T) {
	t.Run("clearing associations keeps the group", func(t *testing.T) {
		f := newAPI(t)
		webID, _ := f.seedWeb()

		rec := f.do(http.MethodPatch, "/api/groups/"+itoa(webID), `{"node_class_ids": [], "node_group_ids": [], "node_ids": [], "parameters": {}}`)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = f.do(http.MethodGet, "/api/groups/"+itoa(webID), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var group domain.NodeGroup
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &group))
		assert.Equal(t, "web", group.Name)
		assert.Empty(t, group.ClassIDs)
		assert.Empty(t, group.SubgroupIDs)
		assert.Empty(t, group.NodeIDs)
		assert.Empty(t, group.Parameters)
	})

	t.Run("classification disabled", func(t *testing.T) {
		f := newAPI(t)
		webID, _ := f.seedWeb()
		f.useFeatures(config.Features{NodeClassification: false})

		rec := f.do(http.MethodPatch, "/api/groups/"+itoa(webID), `{"parameters": {"port": "443"}}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Node classification has been disabled", decodeError(t, rec).Error)

		rec = f.do(http.MethodPatch, "/api/groups/"+itoa(webID), `{"description": "frontends"}`)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.do(http.MethodGet, "/api/nodes/web01/classification?format=json", nil)
		assert.Contains(t, rec.Body.String(), `"port": "80"`)
	})

	t.Run("read only", func(t *testing.T) {
		f := newAPI(t)
		webID, _ := f.seedWeb()
		f.useFeatures(config.Features{NodeClassification: true, ReadOnly: true})

		rec := f.do(http.MethodPatch, "/api/groups/"+itoa(webID), `{"description": "frontends"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = f.do(http.MethodGet, "/api/nodes/web01/classification", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		f := newAPI(t)
		rec := f.do(http.MethodPatch, "/api/groups/abc", `{"description": "x"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown group", func(t *testing.T) {
		f := newAPI(t)
		rec := f.do(http.MethodPatch, "/api/groups/99", `{"description": "x"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		f := newAPI(t)
		webID, _ := f.seedWeb()
		rec := f.do(http.MethodPatch, "/api/groups/"+itoa(webID), `{"colour": "blue"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestNodeEndpoints(t *testing.T) {
	f := newAPI(t)
	f.seedWeb()

	rec := f.do(http.MethodPut, "/api/nodes/web01/parameters", map[string]string{"port": "8443"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/nodes/web01/classification", nil)
	assert.Contains(t, rec.Body.String(), `port: "8443"`)

	rec = f.do(http.MethodPost, "/api/nodes", CreateNodeRequest{Name: "web01"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPost, "/api/nodes", CreateNodeRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodDelete, "/api/nodes/web01", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, "/api/nodes/web01", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportAndExport(t *testing.T) {
	f := newAPI(t)

	seed := `
classes: [nginx]
groups:
  - name: web
    classes: [nginx]
    parameters:
      port: "80"
    nodes: [web01]
nodes:
  - name: web01
`
	rec := f.do(http.MethodPost, "/api/import/seed", seed)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result service.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.GroupsCreated)
	assert.Equal(t, 1, result.NodesCreated)
	assert.Equal(t, 1, result.MembershipsCreated)

	rec = f.do(http.MethodGet, "/api/export/ansible-inventory", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "web01")
	assert.Contains(t, rec.Body.String(), "port: \"80\"")

	rec = f.do(http.MethodPost, "/api/import/seed", "groups: [{name: web, colour: blue}]")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/import/seed?strategy=sideways", seed)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMiddleware(t *testing.T) {
	f := newAPI(t)

	t.Run("request id is generated", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/healthz", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("request id is propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	})

	t.Run("panics become 500", func(t *testing.T) {
		boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })
		rec := httptest.NewRecorder()
		Chain(boom, Recover(logging.Discard())).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "internal server error")
	})

	t.Run("metrics are exposed", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/metrics", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
