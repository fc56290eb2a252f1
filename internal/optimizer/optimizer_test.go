package optimizer

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
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
	"cert-studio/studio-backend/pkg/apperr"
	"cert-studio/studio-backend/pkg/archive"
	"cert-studio/studio-backend/pkg/pdfdoc"
)

func zipOf(t *testing.T, files map[string][]byte, order ...string) []byte {
	t.Helper()
	a := archive.New()
	for _, name := range order {
		a.Put(name, files[name])
	}
	data, err := a.Bytes()
	require.NoError(t, err)
	return data
}

func TestOptimizeFlattensAndKeepsPages(t *testing.T) {
	files := map[string][]byte{
		"lote/":          nil,
		"lote/a.pdf":     testutil.PDF(t, 2),
		"lote/sub/a.pdf": testutil.PDF(t, 1),
		"b.PDF":          testutil.PDF(t, 3),
		"notes.txt":      []byte("skip"),
	}
	input := zipOf(t, files, "lote/", "lote/a.pdf", "lote/sub/a.pdf", "b.PDF", "notes.txt")

	var calls [][2]int
	out, err := NewOptimizer(archive.DefaultLevel, zap.NewNop()).Optimize(context.Background(), input, func(current, total int) {
		calls = append(calls, [2]int{current, total})
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.pdf", "a_2.pdf", "b.PDF"}, out.Paths())
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, calls)

	for path, want := range map[string]int{"a.pdf": 2, "a_2.pdf": 1, "b.PDF": 3} {
		data, ok := out.Get(path)
		require.True(t, ok)
		pages, err := pdfdoc.PageCount(data)
		require.NoError(t, err, path)
		assert.Equal(t, want, pages, path)
	}
}

func TestOptimizeKeepsUnreadablePDF(t *testing.T) {
	broken := []byte("%PDF-1.4 not really")
	input := zipOf(t, map[string][]byte{"broken.pdf": broken}, "broken.pdf")

	out, err := NewOptimizer(archive.DefaultLevel, zap.NewNop()).Optimize(context.Background(), input, nil)
	require.NoError(t, err)

	data, ok := out.Get("broken.pdf")
	require.True(t, ok)
	assert.Equal(t, broken, data)
}

func TestOptimizeRejectsNestedArchives(t *testing.T) {
	input := zipOf(t, map[string][]byte{"inner.zip": []byte("x"), "other.rar": []byte("y")}, "inner.zip", "other.rar")

	_, err := NewOptimizer(archive.DefaultLevel, zap.NewNop()).Optimize(context.Background(), input, nil)
	assert.ErrorIs(t, err, ErrNestedArchive)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Contains(t, err.Error(), "inner.zip")
	assert.Contains(t, err.Error(), "other.rar")
}

func TestOptimizeWithoutPDFs(t *testing.T) {
	input := zipOf(t, map[string][]byte{"readme.txt": []byte("x")}, "readme.txt")

	_, err := NewOptimizer(archive.DefaultLevel, zap.NewNop()).Optimize(context.Background(), input, nil)
	assert.ErrorIs(t, err, ErrNoPDFs)
}

func TestOptimizeRejectsGarbage(t *testing.T) {
	_, err := NewOptimizer(archive.DefaultLevel, zap.NewNop()).Optimize(context.Background(), []byte("not a zip"), nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestOptimizeStopsWhenCancelled(t *testing.T) {
	input := zipOf(t, map[string][]byte{"a.pdf": testutil.PDF(t, 1)}, "a.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := NewOptimizer(archive.DefaultLevel, zap.NewNop()).Optimize(ctx, input, nil)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func uploadRequest(t *testing.T, path string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "certificados.zip")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func newTestRouter() (*gin.Engine, *jobs.Manager) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	manager := jobs.NewManager(logger, jobs.Options{})
	r := gin.New()
	NewHandler(NewOptimizer(archive.DefaultLevel, logger), manager, logger).RegisterRoutes(r.Group("/api/v1"))
	return r, manager
}

func TestHandlerOptimize(t *testing.T) {
	router, _ := newTestRouter()
	input := zipOf(t, map[string][]byte{"x/c.pdf": testutil.PDF(t, 1)}, "x/c.pdf")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/tools/optimize", input))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), ArchiveName)

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "c.pdf", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestHandlerOptimizeNested(t *testing.T) {
	router, _ := newTestRouter()
	input := zipOf(t, map[string][]byte{"inner.rar": []byte("x")}, "inner.rar")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/tools/optimize", input))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandlerOptimizeJob(t *testing.T) {
	router, manager := newTestRouter()
	input := zipOf(t, map[string][]byte{"a.pdf": testutil.PDF(t, 1), "b.pdf": testutil.PDF(t, 1)}, "a.pdf", "b.pdf")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/tools/optimize/jobs", input))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "/api/v1/jobs/"+resp.JobID, w.Header().Get("Location"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snap, err := manager.Wait(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateSucceeded, snap.State)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, ArchiveName, snap.FileName)
}
