package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/zalepa/medicmap/api"
	"github.com/zalepa/medicmap/filters"
	"github.com/zalepa/medicmap/geo"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubBackend struct {
	optionsErr error
	dataErr    error
	dataCalls  int
}

func (b *stubBackend) FetchOptions(_ context.Context, topic string) (api.FilterOptions, error) {
	if b.optionsErr != nil {
		return api.FilterOptions{}, b.optionsErr
	}
	opts := api.FilterOptions{
		Topics: []string{"Heart Disease", "Stroke"},
		Years:  []int{2023, 2022},
	}
	if topic != "" {
		opts.Demographics = []string{"Overall", "Female"}
		opts.Indicators = []string{topic + " mortality"}
	}
	return opts, nil
}

func (b *stubBackend) FetchMapData(_ context.Context, sel filters.Selection) ([]api.MapDataItem, error) {
	if !sel.Ready() {
		return nil, api.ErrIncompleteSelection
	}
	b.dataCalls++
	if b.dataErr != nil {
		return nil, b.dataErr
	}
	return []api.MapDataItem{
		{StateAbbr: "CA", StateName: "California", Value: 10, Unit: "per 100,000", Topic: sel.Topic, Year: sel.Year},
		{StateAbbr: "TX", StateName: "Texas", Value: 30, Unit: "per 100,000", Topic: sel.Topic, Year: sel.Year},
		{StateAbbr: "NY", StateName: "New York", Value: 20, Unit: "per 100,000", Topic: sel.Topic, Year: sel.Year},
	}, nil
}

const webBoundaries = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"CA","properties":{"name":"California"},"geometry":{"type":"Polygon","coordinates":[[[-124,42],[-120,42],[-114,35],[-117,32],[-124,42]]]}},
 {"type":"Feature","id":"NY","properties":{"name":"New York"},"geometry":{"type":"Polygon","coordinates":[[[-79,45],[-73,45],[-72,41],[-79,42],[-79,45]]]}},
 {"type":"Feature","id":"TX","properties":{"name":"Texas"},"geometry":{"type":"Polygon","coordinates":[[[-106,32],[-94,33],[-94,29],[-97,26],[-106,32]]]}}
]}`

func newTestServer(t *testing.T, b *stubBackend) *gin.Engine {
	t.Helper()
	regions, err := geo.Parse([]byte(webBoundaries))
	if err != nil {
		t.Fatal(err)
	}
	return newServer(b, regions, 0).routes()
}

func get(t *testing.T, h http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func sessionFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestLanding(t *testing.T) {
	w := get(t, newTestServer(t, &stubBackend{}), "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "MedicMap") || !strings.Contains(body, `href="/map"`) {
		t.Errorf("landing page missing content:\n%s", body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestMapDefaultsAndRenders(t *testing.T) {
	b := &stubBackend{}
	h := newTestServer(t, b)

	w := get(t, h, "/map")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`<option value="Stroke" selected>`,
		`<option value="2023" selected>`,
		`<option value="Overall" selected>`,
		`id="regions"`,
		`id="legend"`,
		"Texas",
		"topic=Stroke",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("map page missing %q", want)
		}
	}
	if strings.Contains(body, "<?xml") {
		t.Error("inline svg kept its XML prolog")
	}

	cookie := sessionFrom(t, w)
	w = get(t, h, "/map", cookie)
	if b.dataCalls != 1 {
		t.Errorf("data requests = %d, want 1 for an unchanged session", b.dataCalls)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			t.Error("existing session was issued a new cookie")
		}
	}
}

func TestMapSelectionAndLabels(t *testing.T) {
	h := newTestServer(t, &stubBackend{})
	w := get(t, h, "/map?topic=Heart+Disease&year=2022&labels=off")
	body := w.Body.String()
	if !strings.Contains(body, `<option value="Heart Disease" selected>`) {
		t.Error("topic from query not selected")
	}
	if !strings.Contains(body, `<option value="Heart Disease mortality" selected>`) {
		t.Error("indicator not defaulted for new topic")
	}
	if strings.Contains(body, `id="labels"`) {
		t.Error("labels=off still rendered the label overlay")
	}
	if !strings.Contains(body, "Show labels") {
		t.Error("missing label toggle")
	}
}

func TestMapBadYear(t *testing.T) {
	w := get(t, newTestServer(t, &stubBackend{}), "/map?topic=Stroke&year=soon")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMapOptionsUnavailable(t *testing.T) {
	b := &stubBackend{optionsErr: errors.New("connection refused")}
	w := get(t, newTestServer(t, b), "/map")
	body := w.Body.String()
	if !strings.Contains(body, "Filter options are unavailable") {
		t.Errorf("missing options-unavailable notice:\n%s", body)
	}
	if strings.Contains(body, `id="regions"`) {
		t.Error("map rendered without a selection")
	}
	if b.dataCalls != 0 {
		t.Errorf("data requests = %d, want 0", b.dataCalls)
	}
}

func TestMapFetchFailure(t *testing.T) {
	b := &stubBackend{dataErr: &api.StatusError{Code: 500, URL: "http://backend"}}
	w := get(t, newTestServer(t, b), "/map")
	body := w.Body.String()
	if !strings.Contains(body, "No data could be loaded") {
		t.Error("missing failure notice")
	}
	if strings.Contains(body, `id="legend"`) {
		t.Error("legend shown without records")
	}
	if !strings.Contains(body, "California: No Data") {
		t.Error("regions should render as no-data")
	}
}

func TestMapSVG(t *testing.T) {
	w := get(t, newTestServer(t, &stubBackend{}), "/map.svg?topic=Stroke&year=2023")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "<svg") {
		t.Error("body is not svg")
	}
}

func TestMapSVGHighlight(t *testing.T) {
	h := newTestServer(t, &stubBackend{})
	tests := []struct {
		path    string
		hovered int
		last    string
	}{
		{"/map.svg?topic=Stroke&year=2023", 0, ""},
		{"/map.svg?topic=Stroke&year=2023&highlight=ca", 1, `data-code="CA"`},
		{"/map.svg?topic=Stroke&year=2023&highlight=ZZ", 0, ""},
	}
	for _, tt := range tests {
		body := get(t, h, tt.path).Body.String()
		if n := strings.Count(body, "stroke-width:2"); n != tt.hovered {
			t.Errorf("%s: %d hovered regions, want %d", tt.path, n, tt.hovered)
		}
		if tt.last != "" && strings.LastIndex(body, "data-code=") != strings.LastIndex(body, tt.last) {
			t.Errorf("%s: %s is not drawn last", tt.path, tt.last)
		}
	}
}

func TestReportPage(t *testing.T) {
	w := get(t, newTestServer(t, &stubBackend{}), "/report?topic=Stroke&year=2023")
	body := w.Body.String()
	for _, want := range []string{"Health Analysis Report", "2023 • Stroke • Overall", "Texas", "#1", "Measured Indicator"} {
		if !strings.Contains(body, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Index(body, "<td>Texas</td>") > strings.Index(body, "<td>New York</td>") {
		t.Error("top regions out of order")
	}
}

func TestReportPageNoData(t *testing.T) {
	b := &stubBackend{dataErr: errors.New("down")}
	w := get(t, newTestServer(t, b), "/report")
	if !strings.Contains(w.Body.String(), "No data available to generate report.") {
		t.Error("missing no-data message")
	}
}

func TestReportPDF(t *testing.T) {
	w := get(t, newTestServer(t, &stubBackend{}), "/report.pdf?topic=Stroke&year=2023")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "%PDF") {
		t.Error("body is not a PDF")
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "medicmap-report-stroke-2023.pdf") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestAPIPassthrough(t *testing.T) {
	h := newTestServer(t, &stubBackend{})

	w := get(t, h, "/api/options?topic=Stroke")
	var opts api.FilterOptions
	if err := json.Unmarshal(w.Body.Bytes(), &opts); err != nil {
		t.Fatal(err)
	}
	if len(opts.Indicators) != 1 || opts.Indicators[0] != "Stroke mortality" {
		t.Errorf("options = %+v", opts)
	}

	w = get(t, h, "/api/map-data?topic=Stroke")
	if w.Code != http.StatusBadRequest {
		t.Errorf("incomplete selection status = %d, want 400", w.Code)
	}

	w = get(t, h, "/api/map-data?topic=Stroke&year=2023")
	var records []api.MapDataItem
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 || records[0].StateAbbr != "CA" {
		t.Errorf("records = %+v", records)
	}
}

func TestAPIUpstreamError(t *testing.T) {
	b := &stubBackend{optionsErr: &api.StatusError{Code: 503, URL: "http://backend"}}
	w := get(t, newTestServer(t, b), "/api/options")
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	w := get(t, newTestServer(t, &stubBackend{}), "/healthz")
	var body struct {
		Status  string `json:"status"`
		Regions int    `json:"regions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Regions != 3 {
		t.Errorf("healthz = %+v", body)
	}
}

func TestReportFilename(t *testing.T) {
	tests := []struct {
		sel  filters.Selection
		want string
	}{
		{filters.Selection{Topic: "Heart Disease", Year: 2021}, "medicmap-report-heart-disease-2021.pdf"},
		{filters.Selection{}, "medicmap-report.pdf"},
	}
	for _, tt := range tests {
		if got := reportFilename(tt.sel); got != tt.want {
			t.Errorf("reportFilename(%+v) = %q, want %q", tt.sel, got, tt.want)
		}
	}
}
