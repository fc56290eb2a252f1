package templates

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	DefaultCanvasWidth  = 2000
	DefaultCanvasHeight = 1414
)

// Template is a saved certificate design: background, field layout for both
// pages and the spreadsheet headers it was built against.
type Template struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerEmail     string         `gorm:"index;not null" json:"owner_email"`
	Name           string         `gorm:"not null" json:"name"`
	BackgroundData string         `gorm:"type:text;not null" json:"background_data"`
	FieldsPage1    datatypes.JSON `json:"fields_page1"`
	FieldsPage2    datatypes.JSON `json:"fields_page2"`
	ExcelHeaders   datatypes.JSON `json:"excel_headers"`
	CanvasWidth    int            `gorm:"not null;default:2000" json:"canvas_width"`
	CanvasHeight   int            `gorm:"not null;default:1414" json:"canvas_height"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TemplateInput is the editable part of a template.
type TemplateInput struct {
	Name           string          `json:"name"`
	BackgroundData string          `json:"background_data"`
	FieldsPage1    json.RawMessage `json:"fields_page1"`
	FieldsPage2    json.RawMessage `json:"fields_page2"`
	ExcelHeaders   []string        `json:"excel_headers"`
	CanvasWidth    int             `json:"canvas_width"`
	CanvasHeight   int             `json:"canvas_height"`
}
