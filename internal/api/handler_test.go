package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"Pylon/internal/calc/envelope"
	"Pylon/internal/calc/loads"
	"Pylon/internal/engine"
)

const signJSON = `{"site":{"wind_speed_mph":115,"exposure_category":"C"},
	"cabinets":[{"width_ft":14,"height_ft":8,"weight_per_area_psf":10}],"pole_height_ft":25}`

func newServer(t *testing.T, limiter *IPRateLimiter) (*Handler, http.Handler) {
	t.Helper()
	snap, err := engine.Load(engine.Source{})
	require.NoError(t, err)
	h := &Handler{
		Engine: engine.New(snap),
		Now:    func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
	}
	r := mux.NewRouter()
	Routes(r, h, limiter)
	return h, CORS(r)
}

func post(t *testing.T, srv http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func envelopeOf(t *testing.T, rec *httptest.ResponseRecorder) envelope.Envelope {
	t.Helper()
	var env envelope.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestLoadsRouteMatchesEngine(t *testing.T) {
	h, srv := newServer(t, nil)
	rec := post(t, srv, "/api/calc/loads", signJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var in loads.Input
	require.NoError(t, json.Unmarshal([]byte(signJSON), &in))
	want, err := h.Engine.DeriveLoads(in)
	require.NoError(t, err)

	got := envelopeOf(t, rec)
	assert.Equal(t, want.ContentHash, got.ContentHash)
	assert.Equal(t, want.Confidence, got.Confidence)
}

func TestFailureStatusCodes(t *testing.T) {
	_, srv := newServer(t, nil)
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		field  string
	}{
		{"bad json", "/api/calc/loads", `{"site":`, http.StatusBadRequest, "body"},
		{"unknown field", "/api/calc/loads", `{"poles":2}`, http.StatusBadRequest, "body"},
		{"invalid footing", "/api/calc/footing", `{"diameter_ft":3,"moment_kipft":10,"num_poles":1}`,
			http.StatusBadRequest, "soil_bearing_psf"},
		{"non-convergence", "/api/calc/footing",
			`{"diameter_ft":1,"soil_bearing_psf":100,"moment_kipft":1000,"num_poles":1}`,
			http.StatusUnprocessableEntity, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, srv, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			env := envelopeOf(t, rec)
			assert.Equal(t, 0.0, env.Confidence)
			assert.Nil(t, env.Result)
			assert.NotEmpty(t, env.Assumptions)
			assert.NotEmpty(t, env.SolverVersions)
			if tt.field != "" {
				require.NotEmpty(t, env.Errors)
				assert.Equal(t, tt.field, env.Errors[0].Path)
			}
		})
	}
}

func TestPackReplayQuery(t *testing.T) {
	_, srv := newServer(t, nil)
	base := envelopeOf(t, post(t, srv, "/api/calc/loads", signJSON))

	rec := post(t, srv, "/api/calc/loads?pack=asce7-16-sign@1.0.0", signJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, base.ContentHash, envelopeOf(t, rec).ContentHash)

	rec = post(t, srv, "/api/calc/loads?pack=asce7-16-sign@0.1.0", signJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = post(t, srv, "/api/calc/loads?pack=latest", signJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchRoute(t *testing.T) {
	_, srv := newServer(t, nil)
	body := `{"items":[{"loads":` + signJSON + `,"num_poles":2},{"loads":{"pole_height_ft":-1}}]}`
	rec := post(t, srv, "/api/calc/batch", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Results, 2)
	assert.NotNil(t, out.Results[0].Result)
	assert.Greater(t, out.Results[0].Confidence, 0.0)
	assert.Equal(t, 0.0, out.Results[1].Confidence)
	assert.NotEmpty(t, out.Results[1].Errors)

	rec = post(t, srv, "/api/calc/batch", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAutosizeAndWeldRoutes(t *testing.T) {
	_, srv := newServer(t, nil)
	rec := post(t, srv, "/api/calc/baseplate/weld",
		`{"column_width_in":10,"loads":{"moment_kipft":30,"shear_kip":2,"axial_kip":1}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, envelopeOf(t, rec).SolverVersions, "baseplate.weld_recommend")

	rec = post(t, srv, "/api/calc/baseplate/autosize",
		`{"plate":{"width_in":18,"column_width_in":10},"anchors":{"edge_distance_in":1.5},
		  "loads":{"moment_kipft":30,"shear_kip":2,"axial_kip":1}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := envelopeOf(t, rec)
	assert.Contains(t, env.SolverVersions, "baseplate.autosize")
	assert.NotNil(t, env.Result)
}

func TestVersionsRoute(t *testing.T) {
	_, srv := newServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/versions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var v engine.Versions
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "builtin-structural", v.Catalog.Name)
	assert.Equal(t, "1.2.0", v.Solvers["loads.derive"])
	assert.NotEmpty(t, v.Packs)
}

func TestReportRoute(t *testing.T) {
	_, srv := newServer(t, nil)
	env := post(t, srv, "/api/calc/loads", signJSON).Body.String()

	rec := post(t, srv, "/api/report/pdf", `{"project":"Main St","envelope":`+env+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = post(t, srv, "/api/report/pdf", `{"project":"Main St","envelope":{"confidence":0}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func upload(t *testing.T, srv http.Handler, name, version string, sectionModulus float64) *httptest.ResponseRecorder {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"family", "designation", "material", "S", "I", "w", "Fy"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"HSS", "8X8X1/4", "steel", sectionModulus, 70.7, 25.82, 50}))
	xlsx, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "shop.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(xlsx.Bytes())
	require.NoError(t, err)
	if name != "" {
		require.NoError(t, mw.WriteField("name", name))
	}
	if version != "" {
		require.NoError(t, mw.WriteField("version", version))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/catalog", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestImportCatalogSwapsSnapshot(t *testing.T) {
	h, srv := newServer(t, nil)

	rec := upload(t, srv, "shop", "2024.1.0", 17.7)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := h.Engine.Versions()
	assert.Equal(t, "shop", v.Catalog.Name)
	assert.Equal(t, 1, v.Catalog.Members)
	assert.Len(t, v.Catalogs, 2)

	rec = upload(t, srv, "shop", "2024.1.0", 17.7)
	assert.Equal(t, http.StatusOK, rec.Code, "same content under the same version is accepted")

	rec = post(t, srv, "/api/catalog", "not multipart")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "shop", h.Engine.Versions().Catalog.Name)
}

func TestImportCatalogNeedsExplicitIdentity(t *testing.T) {
	h, srv := newServer(t, nil)

	rec := upload(t, srv, "", "", 17.7)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := envelopeOf(t, rec)
	var paths []string
	for _, f := range env.Errors {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"name", "version"}, paths)
	assert.Equal(t, "builtin-structural", h.Engine.Versions().Catalog.Name)
}

func TestImportCatalogRejectsReusedVersion(t *testing.T) {
	h, srv := newServer(t, nil)
	require.Equal(t, http.StatusOK, upload(t, srv, "shop", "1.0.0", 17.7).Code)
	before := h.Engine.Versions().Catalog.ContentHash

	rec := upload(t, srv, "shop", "1.0.0", 18.1)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "version", envelopeOf(t, rec).Errors[0].Path)
	assert.Equal(t, before, h.Engine.Versions().Catalog.ContentHash)
}

func TestCatalogReplayQuery(t *testing.T) {
	_, srv := newServer(t, nil)
	const req = `{"demand_moment_kipft":5,"material":"steel"}`

	require.Equal(t, http.StatusOK, upload(t, srv, "shop", "1.0.0", 17.7).Code)
	first := envelopeOf(t, post(t, srv, "/api/calc/members", req))

	require.Equal(t, http.StatusOK, upload(t, srv, "shop", "1.1.0", 18.1).Code)
	live := envelopeOf(t, post(t, srv, "/api/calc/members", req))
	assert.NotEqual(t, first.ContentHash, live.ContentHash)
	assert.NotEqual(t, first.ConstantsVersion["catalog:shop"], live.ConstantsVersion["catalog:shop"])

	rec := post(t, srv, "/api/calc/members?catalog=shop@1.0.0", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, first.ContentHash, envelopeOf(t, rec).ContentHash)

	rec = post(t, srv, "/api/calc/members?catalog=shop@9.0.0", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitAndCORS(t *testing.T) {
	_, srv := newServer(t, NewIPRateLimiter(0.001, 2))

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, post(t, srv, "/api/calc/loads", signJSON).Code)
	}
	rec := post(t, srv, "/api/calc/loads", signJSON)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	opt := httptest.NewRecorder()
	srv.ServeHTTP(opt, httptest.NewRequest(http.MethodOptions, "/api/calc/loads", nil))
	assert.Equal(t, http.StatusNoContent, opt.Code)
	assert.Equal(t, "*", opt.Header().Get("Access-Control-Allow-Origin"))
}
