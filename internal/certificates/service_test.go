package certificates

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cert-studio/studio-backend/internal/testutil"
	"cert-studio/studio-backend/pkg/apperr"
	"cert-studio/studio-backend/pkg/pdfdoc"
)

// MockRasterizer is a mock implementation of the pdfdoc.Rasterizer interface
type MockRasterizer struct {
	mock.Mock
}

func (m *MockRasterizer) Rasterize(ctx context.Context, data []byte, pages int) ([]image.Image, error) {
	args := m.Called(ctx, data, pages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]image.Image), args.Error(1)
}

func newTestService(rasterizer pdfdoc.Rasterizer) Service {
	return NewService(newTestAssembler(), rasterizer, zap.NewNop())
}

func templateInput(t *testing.T, front []byte) GenerateInput {
	return GenerateInput{
		Spreadsheet: rosterWorkbook(t),
		Front:       front,
		Fields:      []byte(fieldsJSON),
	}
}

func TestPrepareOnePageTemplate(t *testing.T) {
	template := testutil.PDF(t, 1)
	rasterizer := new(MockRasterizer)
	rasterizer.On("Rasterize", mock.Anything, template, 2).
		Return([]image.Image{testutil.Background(80, 56, color.White)}, nil)

	req, err := newTestService(rasterizer).Prepare(context.Background(), templateInput(t, template))
	require.NoError(t, err)

	assert.Equal(t, 1, req.Front.PageNumber)
	assert.Equal(t, 80, req.Front.Width)
	assert.Equal(t, 56, req.Front.Height)
	assert.Nil(t, req.Back)
	rasterizer.AssertExpectations(t)
}

func TestPrepareTwoPageTemplate(t *testing.T) {
	template := testutil.PDF(t, 2)
	rasterizer := new(MockRasterizer)
	rasterizer.On("Rasterize", mock.Anything, template, 2).Return([]image.Image{
		testutil.Background(80, 56, color.White),
		testutil.Background(56, 80, color.White),
	}, nil)

	req, err := newTestService(rasterizer).Prepare(context.Background(), templateInput(t, template))
	require.NoError(t, err)

	require.NotNil(t, req.Back)
	assert.Equal(t, 2, req.Back.PageNumber)
	assert.Equal(t, 56, req.Back.Width)
	assert.False(t, req.Back.Landscape())
	assert.True(t, req.Front.Landscape())
	rasterizer.AssertExpectations(t)
}

func TestPrepareUploadedBackWinsOverSecondPage(t *testing.T) {
	template := testutil.PDF(t, 2)
	rasterizer := new(MockRasterizer)
	rasterizer.On("Rasterize", mock.Anything, template, 2).Return([]image.Image{
		testutil.Background(80, 56, color.White),
		testutil.Background(56, 80, color.White),
	}, nil)

	in := templateInput(t, template)
	in.Back = testutil.PNG(t, 30, 20)
	req, err := newTestService(rasterizer).Prepare(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, req.Back)
	assert.Equal(t, 30, req.Back.Width)
}

func TestPreparePDFBack(t *testing.T) {
	back := testutil.PDF(t, 3)
	rasterizer := new(MockRasterizer)
	rasterizer.On("Rasterize", mock.Anything, back, 1).
		Return([]image.Image{testutil.Background(56, 80, color.White)}, nil)

	in := templateInput(t, testutil.PNG(t, 80, 56))
	in.Back = back
	req, err := newTestService(rasterizer).Prepare(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, req.Back)
	assert.Equal(t, 2, req.Back.PageNumber)
	assert.Equal(t, 80, req.Back.Height)
	rasterizer.AssertExpectations(t)
}

func TestPreparePDFWithoutRasterizer(t *testing.T) {
	_, err := newTestService(nil).Prepare(context.Background(), templateInput(t, testutil.PDF(t, 1)))

	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Equal(t, "front", apperr.ItemOf(err))
}

func TestPrepareRasterizerFailure(t *testing.T) {
	template := testutil.PDF(t, 1)
	rasterizer := new(MockRasterizer)
	rasterizer.On("Rasterize", mock.Anything, template, 2).
		Return(nil, fmt.Errorf("%w: broken", apperr.ErrUnreadableDocument))

	_, err := newTestService(rasterizer).Prepare(context.Background(), templateInput(t, template))

	assert.ErrorIs(t, err, apperr.ErrUnreadableDocument)
	assert.Equal(t, "front", apperr.ItemOf(err))
}

func TestPrepareEmptyRasterization(t *testing.T) {
	template := testutil.PDF(t, 1)
	rasterizer := new(MockRasterizer)
	rasterizer.On("Rasterize", mock.Anything, template, 2).Return([]image.Image{}, nil)

	_, err := newTestService(rasterizer).Prepare(context.Background(), templateInput(t, template))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestGenerateFromTwoPageTemplate(t *testing.T) {
	template := testutil.PDF(t, 2)
	rasterizer := new(MockRasterizer)
	rasterizer.On("Rasterize", mock.Anything, template, 2).Return([]image.Image{
		testutil.Background(80, 56, color.White),
		testutil.Background(56, 80, color.White),
	}, nil)
	service := newTestService(rasterizer)

	req, err := service.Prepare(context.Background(), templateInput(t, template))
	require.NoError(t, err)
	out, err := service.Generate(context.Background(), req, nil)
	require.NoError(t, err)

	require.Equal(t, 2, out.Len())
	for _, path := range out.Paths() {
		data, ok := out.Get(path)
		require.True(t, ok)
		pages, err := pdfdoc.PageCount(data)
		require.NoError(t, err)
		assert.Equal(t, 2, pages, path)
	}
}

func TestPrepareHonoursCancellation(t *testing.T) {
	template := testutil.PDF(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rasterizer := new(MockRasterizer)
	rasterizer.On("Rasterize", ctx, template, 2).Return(nil, context.Canceled)

	_, err := newTestService(rasterizer).Prepare(ctx, templateInput(t, template))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, apperr.CodeCancelled, apperr.Classify(err))
}
