package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"cert-studio/studio-backend/internal/render"
	"cert-studio/studio-backend/pkg/apperr"
)

type Service interface {
	List(ctx context.Context, owner string) ([]Template, error)
	Get(ctx context.Context, owner string, id uuid.UUID) (*Template, error)
	Create(ctx context.Context, owner string, in TemplateInput) (*Template, error)
	Update(ctx context.Context, owner string, id uuid.UUID, in TemplateInput) (*Template, error)
	Delete(ctx context.Context, owner string, id uuid.UUID) error
}

type templateService struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) Service {
	return &templateService{repo: repo, logger: logger, now: time.Now}
}

func (s *templateService) List(ctx context.Context, owner string) ([]Template, error) {
	return s.repo.List(ctx, owner)
}

func (s *templateService) Get(ctx context.Context, owner string, id uuid.UUID) (*Template, error) {
	return s.repo.Get(ctx, owner, id)
}

func (s *templateService) Create(ctx context.Context, owner string, in TemplateInput) (*Template, error) {
	tpl := &Template{ID: uuid.New(), OwnerEmail: owner}
	if err := apply(tpl, in); err != nil {
		return nil, err
	}
	now := s.now()
	tpl.CreatedAt, tpl.UpdatedAt = now, now

	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	s.logger.Info("template created", zap.String("template_id", tpl.ID.String()), zap.String("owner", owner))
	return tpl, nil
}

func (s *templateService) Update(ctx context.Context, owner string, id uuid.UUID, in TemplateInput) (*Template, error) {
	tpl, err := s.repo.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if err := apply(tpl, in); err != nil {
		return nil, err
	}
	tpl.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	return tpl, nil
}

func (s *templateService) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, owner, id); err != nil {
		return err
	}
	s.logger.Info("template deleted", zap.String("template_id", id.String()), zap.String("owner", owner))
	return nil
}

// apply validates in and copies it onto tpl.
func apply(tpl *Template, in TemplateInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", apperr.ErrInvalidInput)
	}
	if strings.TrimSpace(in.BackgroundData) == "" {
		return fmt.Errorf("%w: background_data is required", apperr.ErrInvalidInput)
	}

	page1, err := fieldsJSON(in.FieldsPage1)
	if err != nil {
		return apperr.Item("fields_page1", err)
	}
	page2, err := fieldsJSON(in.FieldsPage2)
	if err != nil {
		return apperr.Item("fields_page2", err)
	}
	headers := in.ExcelHeaders
	if headers == nil {
		headers = []string{}
	}
	rawHeaders, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("%w: excel_headers: %v", apperr.ErrInvalidInput, err)
	}

	tpl.Name = name
	tpl.BackgroundData = in.BackgroundData
	tpl.FieldsPage1 = page1
	tpl.FieldsPage2 = page2
	tpl.ExcelHeaders = datatypes.JSON(rawHeaders)
	tpl.CanvasWidth = orDefault(in.CanvasWidth, DefaultCanvasWidth)
	tpl.CanvasHeight = orDefault(in.CanvasHeight, DefaultCanvasHeight)
	return nil
}

// fieldsJSON checks that raw is a valid field list and stores it normalized.
func fieldsJSON(raw json.RawMessage) (datatypes.JSON, error) {
	fields, err := render.ParseFields(raw)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = []render.FieldDescriptor{}
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
