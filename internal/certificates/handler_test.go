package certificates

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cert-studio/studio-backend/internal/jobs"
	"cert-studio/studio-backend/internal/testutil"
	"cert-studio/studio-backend/pkg/archive"
)

type multipartFile struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...multipartFile) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func newTestHandler() (*gin.Engine, *jobs.Manager) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	manager := jobs.NewManager(logger, jobs.Options{})
	service := NewService(NewAssembler(NewComposer(DefaultComposerOptions()), archive.DefaultLevel), nil, logger)

	r := gin.New()
	NewHandler(service, manager, logger).RegisterRoutes(r.Group("/api/v1"))
	return r, manager
}

const fieldsJSON = `{"front":[{"id":1,"x":40,"y":30,"columnIndex":2,"fontSize":10,"color":"#000000","textAlign":"center"}]}`

func TestHandlerGenerate(t *testing.T) {
	router, _ := newTestHandler()
	body, contentType := multipartBody(t,
		map[string]string{"fields": fieldsJSON},
		multipartFile{"spreadsheet", "roster.xlsx", rosterWorkbook(t)},
		multipartFile{"front", "front.png", testutil.PNG(t, 80, 56)},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/certificates/generate", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), ArchiveName)

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"1_12345678_Ana Díaz_(Docente).pdf",
		"2_87654321_Luis Paz_(Alumno).pdf",
	}, names)
}

func TestHandlerGenerateRequiresFront(t *testing.T) {
	router, _ := newTestHandler()
	body, contentType := multipartBody(t, nil,
		multipartFile{"spreadsheet", "roster.xlsx", rosterWorkbook(t)},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/certificates/generate", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "front is required")
}

func TestHandlerSubmitJob(t *testing.T) {
	router, manager := newTestHandler()
	body, contentType := multipartBody(t,
		map[string]string{"fields": fieldsJSON},
		multipartFile{"spreadsheet", "roster.xlsx", rosterWorkbook(t)},
		multipartFile{"front", "front.png", testutil.PNG(t, 80, 56)},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/certificates/jobs", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snap, err := manager.Wait(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateSucceeded, snap.State)
	assert.Equal(t, 2, snap.Total)
}
