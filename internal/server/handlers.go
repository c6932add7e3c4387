package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/valpere/dzerkalo/internal/answerer"
	"github.com/valpere/dzerkalo/internal/index"
	"github.com/valpere/dzerkalo/internal/ingest"
	"github.com/valpere/dzerkalo/internal/orchestrator"
	"github.com/valpere/dzerkalo/internal/report"
)

var (
	errNoFile      = errors.New("no file uploaded")
	errNoText      = errors.New("no text found in file")
	errTooLarge    = errors.New("file too large")
	errBadFilename = errors.New("invalid file name")
	errNoAnswerer  = errors.New("question answering is not configured")
)

const defaultQueryK = 3

type polishRequest struct {
	Text     string `json:"text" form:"text"`
	Provider string `json:"provider" form:"provider"`
	// Model is accepted as an alias of Provider.
	Model   string `json:"model" form:"model"`
	Context string `json:"context" form:"context"`
}

func (r polishRequest) provider() string {
	switch {
	case r.Provider != "":
		return r.Provider
	case r.Model != "":
		return r.Model
	}
	return orchestrator.AllProviders
}

// fail writes the {"error": ...} body and stops the chain. Server-side
// failures are also attached to the context for the logging middleware.
func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, orchestrator.ErrorResponse(err))
}

func polishStatus(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrEmptyText), errors.Is(err, orchestrator.ErrUnknownProvider):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrTimedOut):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "records": s.deps.Index.Len()})
}

func (s *Server) providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": s.deps.Polisher.Providers()})
}

func (s *Server) polish(c *gin.Context) {
	var req polishRequest
	if err := c.ShouldBind(&req); err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	res, err := s.deps.Polisher.Polish(c.Request.Context(), orchestrator.PolishRequest{
		Text:     req.Text,
		Provider: req.provider(),
		Context:  req.Context,
	})
	if err != nil {
		s.fail(c, polishStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, res.Response())
}

func (s *Server) ask(c *gin.Context) {
	if s.deps.Answerer == nil {
		s.fail(c, http.StatusServiceUnavailable, errNoAnswerer)
		return
	}

	var req struct {
		Question string `json:"question" form:"question"`
	}
	if err := c.ShouldBind(&req); err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	ans, err := s.deps.Answerer.Ask(c.Request.Context(), req.Question)
	switch {
	case errors.Is(err, answerer.ErrEmptyQuestion), errors.Is(err, answerer.ErrEmptyKnowledgeBase):
		s.fail(c, http.StatusBadRequest, err)
		return
	case err != nil:
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

func (s *Server) kbInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"records": s.deps.Index.Len(),
		"sources": s.deps.Index.Sources(),
	})
}

func (s *Server) kbUpload(c *gin.Context) {
	name, records, ok := s.readUpload(c)
	if !ok {
		return
	}

	if err := s.deps.Index.Append(c.Request.Context(), records); err != nil {
		s.fail(c, http.StatusInternalServerError, fmt.Errorf("index %s: %w", name, err))
		return
	}
	s.requestLogger(c).WithField("file", name).Infof("added %d records to knowledge base", len(records))
	c.JSON(http.StatusOK, gin.H{
		"filename": name,
		"added":    len(records),
		"records":  s.deps.Index.Len(),
	})
}

func (s *Server) kbSave(c *gin.Context) {
	var req struct {
		Filename string `json:"filename" form:"filename"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBind(&req); err != nil {
			s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
			return
		}
	}
	if s.deps.Index.Len() == 0 {
		s.fail(c, http.StatusBadRequest, answerer.ErrEmptyKnowledgeBase)
		return
	}

	name := index.DefaultExportName(time.Now())
	if req.Filename != "" {
		name = filepath.Base(req.Filename)
		if !validName(name) {
			s.fail(c, http.StatusBadRequest, errBadFilename)
			return
		}
		if !strings.HasSuffix(strings.ToLower(name), ".json") {
			name += ".json"
		}
	}

	path := filepath.Join(s.config.KBDir, name)
	if err := s.deps.Index.Save(path, false); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"filename": name,
		"path":     path,
		"records":  s.deps.Index.Len(),
	})
}

func (s *Server) kbQuery(c *gin.Context) {
	var req struct {
		Text string `json:"text" form:"text"`
		K    int    `json:"k" form:"k"`
	}
	if err := c.ShouldBind(&req); err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.fail(c, http.StatusBadRequest, orchestrator.ErrEmptyText)
		return
	}
	if req.K <= 0 {
		req.K = defaultQueryK
	}

	hits, err := s.deps.Index.Query(c.Request.Context(), req.Text, req.K)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits})
}

func (s *Server) polishDoc(c *gin.Context) {
	name, records, ok := s.readUpload(c)
	if !ok {
		return
	}
	provider := polishRequest{Provider: c.PostForm("provider"), Model: c.PostForm("model")}.provider()

	log := s.requestLogger(c).WithField("file", name)
	entries, err := report.Run(c.Request.Context(), s.deps.Polisher, records, provider, nil, nil, log)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	if err := os.MkdirAll(s.config.PolishedDir, 0o755); err != nil {
		s.fail(c, http.StatusInternalServerError, fmt.Errorf("create output directory: %w", err))
		return
	}
	out := report.OutputName(name, time.Now())
	f, err := os.Create(filepath.Join(s.config.PolishedDir, out))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	werr := report.WriteText(f, entries)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		s.fail(c, http.StatusInternalServerError, fmt.Errorf("write report: %w", werr))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filename":     out,
		"download_url": "/download/" + out,
		"records":      len(entries),
		"entries":      entries,
	})
}

func (s *Server) download(c *gin.Context) {
	name := filepath.Base(c.Param("filename"))
	if !validName(name) {
		s.fail(c, http.StatusBadRequest, errBadFilename)
		return
	}
	path := filepath.Join(s.config.PolishedDir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		s.fail(c, http.StatusNotFound, fmt.Errorf("file %s not found", name))
		return
	}
	c.FileAttachment(path, name)
}

// readUpload parses the multipart "file" field into records. On failure it
// has already written the response.
func (s *Server) readUpload(c *gin.Context) (string, []index.Record, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUpload+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, http.StatusRequestEntityTooLarge, errTooLarge)
			return "", nil, false
		}
		s.fail(c, http.StatusBadRequest, errNoFile)
		return "", nil, false
	}
	if fh.Size > s.config.MaxUpload {
		s.fail(c, http.StatusRequestEntityTooLarge, errTooLarge)
		return "", nil, false
	}

	name := filepath.Base(fh.Filename)
	if !ingest.Supported(name) {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("%w: %s", ingest.ErrUnsupported, filepath.Ext(name)))
		return "", nil, false
	}

	f, err := fh.Open()
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return "", nil, false
	}

	records, err := s.deps.Parser.ParseBytes(name, data)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return "", nil, false
	}
	if len(records) == 0 {
		s.fail(c, http.StatusBadRequest, errNoText)
		return "", nil, false
	}
	return name, records, true
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && name != string(filepath.Separator)
}
