package cmd

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zalepa/medicmap/api"
	"github.com/zalepa/medicmap/choropleth"
	"github.com/zalepa/medicmap/explorer"
	"github.com/zalepa/medicmap/filters"
	"github.com/zalepa/medicmap/geo"
	"github.com/zalepa/medicmap/report"
)

//go:embed templates/*.html
var templateFS embed.FS

const sessionCookie = "medicmap_session"

func webCmd(rf *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the landing page and the interactive map",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := c.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := rf.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			client, closeCache, err := newClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeCache()

			regions := loadRegions(ctx, cfg)
			srv := newServer(client, regions, cfg.SessionTTL)

			fmt.Printf("serving on http://localhost%s\n", displayAddr(cfg.Addr))
			return srv.routes().Run(cfg.Addr)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from config, \":8080\")")
	return cmd
}

func displayAddr(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return addr
}

type server struct {
	backend  explorer.Backend
	regions  geo.Regions
	sessions *explorer.Sessions
	pages    *template.Template
}

func newServer(b explorer.Backend, regions geo.Regions, sessionTTL time.Duration) *server {
	return &server{
		backend:  b,
		regions:  regions,
		sessions: explorer.NewSessions(b, regions, sessionTTL),
		pages:    template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")),
	}
}

var templateFuncs = template.FuncMap{
	"value":    choropleth.FormatValue,
	"average":  report.FormatAverage,
	"subtitle": report.Subtitle,
	"add":      func(a, b int) int { return a + b },
}

func (s *server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), gin.Logger(), gin.Recovery())
	r.SetHTMLTemplate(s.pages)

	r.GET("/", s.handleLanding)
	r.GET("/map", s.handleMap)
	r.GET("/map.svg", s.handleMapSVG)
	r.GET("/report", s.handleReport)
	r.GET("/report.pdf", s.handleReportPDF)

	apiGroup := r.Group("/api")
	apiGroup.GET("/options", s.handleOptions)
	apiGroup.GET("/map-data", s.handleMapData)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"regions":  len(s.regions),
			"sessions": s.sessions.Len(),
		})
	})
	return r
}

// requestID tags every request with an id, reusing one supplied by a proxy.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// session returns the caller's session, issuing a cookie for new ones.
func (s *server) session(c *gin.Context) (*explorer.Session, bool) {
	id, _ := c.Cookie(sessionCookie)
	sess, created, err := s.sessions.Get(id)
	if err != nil {
		log.Printf("[web] %s: %v", c.GetString("request_id"), err)
		c.String(http.StatusInternalServerError, "session unavailable")
		return nil, false
	}
	if created {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, sess.ID, 0, "/", "", false, true)
	}
	return sess, true
}

var selectionParams = []string{"topic", "year", "demographic", "indicator"}

// applyQuery applies a selection submitted in the query string. It reports
// false and writes a 400 when the query cannot be parsed.
func applyQuery(c *gin.Context, sess *explorer.Session) bool {
	q := c.Request.URL.Query()
	submitted := false
	for _, k := range selectionParams {
		if q.Has(k) {
			submitted = true
			break
		}
	}
	if !submitted {
		return true
	}
	sel, err := filters.Parse(q)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return false
	}
	sess.Select(sel)
	return true
}

func (s *server) handleLanding(c *gin.Context) {
	c.HTML(http.StatusOK, "landing.html", gin.H{
		"Regions": len(s.regions),
	})
}

type mapPage struct {
	View    explorer.View
	Message string
	SVG     template.HTML
	Labels  bool
	Query   template.URL
}

func (s *server) handleMap(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok || !applyQuery(c, sess) {
		return
	}
	sess.Sync(c.Request.Context())
	view := sess.Snapshot()
	labels := c.Query("labels") != "off"

	page := mapPage{
		View:    view,
		Message: stateMessage(view),
		Labels:  labels,
		Query:   template.URL(view.Selection.Query().Encode()),
	}
	if view.State == explorer.Ready || view.State == explorer.Failed {
		var buf bytes.Buffer
		err := sess.Render(view, c.Query("highlight"), func(l *choropleth.Layer) error {
			return choropleth.WriteSVG(&buf, l, choropleth.SVGOptions{Width: 960, Height: 600, Labels: labels})
		})
		if err != nil {
			log.Printf("[web] %s: svg: %v", c.GetString("request_id"), err)
		} else {
			page.SVG = template.HTML(inlineSVG(buf.String()))
		}
	}
	c.HTML(http.StatusOK, "map.html", page)
}

// stateMessage is the notice shown in place of, or above, the map.
func stateMessage(v explorer.View) string {
	switch v.State {
	case explorer.Incomplete:
		return "Select a topic and year to see the map."
	case explorer.OptionsUnavailable:
		return "Filter options are unavailable right now. Try again shortly."
	case explorer.Failed:
		return "No data could be loaded for this selection."
	case explorer.Ready:
		if len(v.Records) == 0 {
			return "No data for this selection."
		}
	}
	return ""
}

// inlineSVG drops the XML prolog so the document can sit inside HTML.
func inlineSVG(doc string) string {
	if i := strings.Index(doc, "<svg"); i > 0 {
		return doc[i:]
	}
	return doc
}

func (s *server) handleMapSVG(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok || !applyQuery(c, sess) {
		return
	}
	sess.Sync(c.Request.Context())
	view := sess.Snapshot()

	var buf bytes.Buffer
	opts := choropleth.DefaultSVGOptions
	opts.Labels = c.Query("labels") != "off"
	err := sess.Render(view, c.Query("highlight"), func(l *choropleth.Layer) error {
		return choropleth.WriteSVG(&buf, l, opts)
	})
	if err != nil {
		log.Printf("[web] %s: svg: %v", c.GetString("request_id"), err)
		c.String(http.StatusInternalServerError, "render failed")
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", buf.Bytes())
}

type reportPage struct {
	View  explorer.View
	Stats *report.Stats
	Title string
	Empty string
	Query template.URL
}

func (s *server) handleReport(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok || !applyQuery(c, sess) {
		return
	}
	sess.Sync(c.Request.Context())
	view := sess.Snapshot()
	c.HTML(http.StatusOK, "report.html", reportPage{
		View:  view,
		Stats: report.Summarize(view.Records),
		Title: report.Title,
		Empty: report.NoDataMessage,
		Query: template.URL(view.Selection.Query().Encode()),
	})
}

func (s *server) handleReportPDF(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok || !applyQuery(c, sess) {
		return
	}
	sess.Sync(c.Request.Context())
	view := sess.Snapshot()

	tmp, err := os.CreateTemp("", "medicmap-report-*.pdf")
	if err != nil {
		log.Printf("[web] %s: %v", c.GetString("request_id"), err)
		c.String(http.StatusInternalServerError, "report failed")
		return
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	stats := report.Summarize(view.Records)
	if len(s.regions) > 0 {
		err = sess.Render(view, "", func(l *choropleth.Layer) error {
			return report.WritePDF(tmp.Name(), view.Selection, l, stats)
		})
	} else {
		err = report.WritePDF(tmp.Name(), view.Selection, nil, stats)
	}
	if err == nil {
		_, err = report.VerifyPDF(tmp.Name())
	}
	if err != nil {
		log.Printf("[web] %s: pdf: %v", c.GetString("request_id"), err)
		c.String(http.StatusInternalServerError, "report failed")
		return
	}
	c.FileAttachment(tmp.Name(), reportFilename(view.Selection))
}

func reportFilename(sel filters.Selection) string {
	name := "medicmap-report"
	if sel.Topic != "" {
		name += "-" + strings.ToLower(strings.Join(strings.Fields(sel.Topic), "-"))
	}
	if sel.Year != 0 {
		name += "-" + strconv.Itoa(sel.Year)
	}
	return name + ".pdf"
}

func (s *server) handleOptions(c *gin.Context) {
	opts, err := s.backend.FetchOptions(c.Request.Context(), c.Query("topic"))
	if err != nil {
		s.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, opts)
}

func (s *server) handleMapData(c *gin.Context) {
	sel, err := filters.Parse(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	records, err := s.backend.FetchMapData(c.Request.Context(), sel)
	if err != nil {
		s.apiError(c, err)
		return
	}
	if records == nil {
		records = []api.MapDataItem{}
	}
	c.JSON(http.StatusOK, records)
}

func (s *server) apiError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, api.ErrIncompleteSelection) {
		status = http.StatusBadRequest
	}
	log.Printf("[web] %s: %v", c.GetString("request_id"), err)
	c.JSON(status, gin.H{"error": err.Error()})
}
