package pipeline

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cert-studio/studio-backend/internal/jobs"
	"cert-studio/studio-backend/internal/organizer"
	"cert-studio/studio-backend/internal/workbook"
)

func organizeBody(t *testing.T, fields map[string]string, spreadsheets, documents []Input) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	add := func(field string, inputs []Input) {
		for _, in := range inputs {
			part, err := w.CreateFormFile(field, in.Name)
			require.NoError(t, err)
			_, err = part.Write(in.Data)
			require.NoError(t, err)
		}
	}
	add("spreadsheets", spreadsheets)
	add("documents", documents)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	r := gin.New()
	NewHandler(newTestService(nil), jobs.NewManager(logger, jobs.Options{}), logger).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func post(router *gin.Engine, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestArchiveName(t *testing.T) {
	assert.Equal(t, "organizado_29.zip", ArchiveName(" 29 "))
	assert.Equal(t, "organizado_a_b.zip", ArchiveName("a/b"))
}

func TestHandlerOrganize(t *testing.T) {
	router := newTestRouter()
	body, contentType := organizeBody(t,
		map[string]string{"correlative": "29"},
		[]Input{idSheet(t, "a.xlsx", 10010001, 10010002)},
		[]Input{pdfInput(t, "A.pdf", 2)},
	)

	w := post(router, "/api/v1/tools/organize", body, contentType)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "organizado_29.zip")

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"001-050/29_10010001.pdf", "001-050/29_10010002.pdf"}, names)
}

func TestHandlerOrganizeMismatchReturnsReport(t *testing.T) {
	router := newTestRouter()
	body, contentType := organizeBody(t,
		map[string]string{"correlative": "29"},
		[]Input{idSheet(t, "a.xlsx", 10010001, 10010002, 10010003)},
		[]Input{pdfInput(t, "A.pdf", 2)},
	)

	w := post(router, "/api/v1/tools/organize", body, contentType)
	require.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Code   string `json:"code"`
		Report Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "count_mismatch", resp.Code)
	require.Len(t, resp.Report.Pairs, 1)
	assert.Equal(t, organizer.StatusMismatch, resp.Report.Pairs[0].Kind)
	assert.Equal(t, 3, resp.Report.Pairs[0].IdentifierCount)
}

func TestHandlerOrganizeRequiresCorrelative(t *testing.T) {
	router := newTestRouter()
	body, contentType := organizeBody(t, nil,
		[]Input{idSheet(t, "a.xlsx", 10010001)},
		[]Input{pdfInput(t, "A.pdf", 1)},
	)
	w := post(router, "/api/v1/tools/organize", body, contentType)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandlerCheckWithOrder(t *testing.T) {
	router := newTestRouter()
	body, contentType := organizeBody(t,
		map[string]string{"order": "[1,0]"},
		[]Input{idSheet(t, "a.xlsx", 10010001, 10010002), idSheet(t, "b.xlsx", 20010001)},
		[]Input{pdfInput(t, "B.pdf", 1), pdfInput(t, "A.pdf", 2)},
	)

	w := post(router, "/api/v1/tools/organize/check", body, contentType)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.Ready)
	require.Len(t, report.Pairs, 2)
	assert.Equal(t, "A.pdf", report.Pairs[0].Document)
	assert.Equal(t, organizer.StatusMatch, report.Pairs[1].Kind)
}

func TestHandlerCheckRejectsBadOrder(t *testing.T) {
	router := newTestRouter()
	body, contentType := organizeBody(t,
		map[string]string{"order": "first"},
		[]Input{idSheet(t, "a.xlsx", 10010001)},
		[]Input{pdfInput(t, "A.pdf", 1)},
	)
	w := post(router, "/api/v1/tools/organize/check", body, contentType)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandlerCheckAsWorkbook(t *testing.T) {
	router := newTestRouter()
	body, contentType := organizeBody(t, nil,
		[]Input{idSheet(t, "a.xlsx", 10010001, 10010002, 10010003)},
		[]Input{pdfInput(t, "A.pdf", 2)},
	)

	w := post(router, "/api/v1/tools/organize/check?format=xlsx", body, contentType)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), ReportFileName)

	sheets, err := workbook.Load(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	assert.Equal(t, "Pairs", sheets[0].Name)
	assert.Equal(t, []string{"1", "a.xlsx", "A.pdf", "mismatch", "3", "2"}, sheets[0].Strings(1)[:6])
	assert.Equal(t, "count_mismatch", sheets[1].Cell(1, 1).String())
}
