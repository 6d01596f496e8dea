package ingestion

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/internal/metrics"
	"github.com/discover-vnext/backend/internal/storage/models"
	"github.com/discover-vnext/backend/internal/storage/sqlite"
	"github.com/discover-vnext/backend/pkg/logger"
)

// Store is the storage surface the importer writes through.
type Store interface {
	FindCompanyByName(name string) (*models.Company, error)
	InsertCompany(company *models.Company) error
	FindUserByEmail(email string) (*models.User, error)
	InsertUser(user *models.User) error
	InsertDocument(doc *models.Document) error
	InsertQuery(q *models.Query) error
	GetUsageStats() (*models.UsageStats, error)
}

type sheetSpec struct {
	name    string
	columns []string
}

// Activity-report workbooks carry these four sheets. Column order is
// free; headers are matched case-insensitively.
var workbookSheets = []sheetSpec{
	{"Companies", []string{"name"}},
	{"Users", []string{"email", "name", "company"}},
	{"Documents", []string{"company", "title", "content"}},
	{"Queries", []string{"user_email", "query"}},
}

type Result struct {
	Companies int      `json:"companies"`
	Users     int      `json:"users"`
	Documents int      `json:"documents"`
	Queries   int      `json:"queries"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

type ValidationReport struct {
	Valid         bool     `json:"valid"`
	MissingSheets []string `json:"missing_sheets,omitempty"`
	Problems      []string `json:"problems,omitempty"`
}

type Importer struct {
	store Store
}

func NewImporter(store Store) *Importer {
	return &Importer{store: store}
}

// ImportWorkbook reads an activity-report workbook and persists its
// rows. Bad rows are skipped and logged; the rest of the workbook is
// still imported.
func (im *Importer) ImportWorkbook(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	result := &Result{}

	im.importCompanies(f, result)
	im.importUsers(f, result)
	im.importDocuments(f, result)
	im.importQueries(f, result)

	logger.Info("Workbook imported",
		zap.Int("companies", result.Companies),
		zap.Int("users", result.Users),
		zap.Int("documents", result.Documents),
		zap.Int("queries", result.Queries),
		zap.Int("skipped", result.Skipped),
	)

	return result, nil
}

// ValidateWorkbook checks sheet and header layout without writing
// anything.
func (im *Importer) ValidateWorkbook(r io.Reader) (*ValidationReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	report := &ValidationReport{Valid: true}

	for _, spec := range workbookSheets {
		rows, err := f.GetRows(spec.name)
		if err != nil || len(rows) == 0 {
			report.Valid = false
			report.MissingSheets = append(report.MissingSheets, spec.name)
			continue
		}

		headers := headerIndex(rows[0])
		for _, col := range spec.columns {
			if _, ok := headers[col]; !ok {
				report.Valid = false
				report.Problems = append(report.Problems, fmt.Sprintf("sheet %s: missing column %q", spec.name, col))
			}
		}
	}

	return report, nil
}

func (im *Importer) Insights() (*models.UsageStats, error) {
	return im.store.GetUsageStats()
}

func (im *Importer) importCompanies(f *excelize.File, result *Result) {
	forEachRow(f, "Companies", result, func(get func(string) string) error {
		name := get("name")
		if name == "" {
			return fmt.Errorf("missing company name")
		}

		if _, err := im.store.FindCompanyByName(name); err == nil {
			return nil
		} else if err != sqlite.ErrNotFound {
			return err
		}

		err := im.store.InsertCompany(&models.Company{
			ID:        uuid.New().String(),
			Name:      name,
			Industry:  get("industry"),
			CreatedAt: time.Now(),
		})
		if err != nil {
			return err
		}

		result.Companies++
		return nil
	})
}

func (im *Importer) importUsers(f *excelize.File, result *Result) {
	forEachRow(f, "Users", result, func(get func(string) string) error {
		email := get("email")
		name := get("name")
		if email == "" || name == "" {
			return fmt.Errorf("missing email or name")
		}

		if _, err := im.store.FindUserByEmail(email); err == nil {
			return nil
		} else if err != sqlite.ErrNotFound {
			return err
		}

		company, err := im.store.FindCompanyByName(get("company"))
		if err != nil {
			return fmt.Errorf("unknown company %q", get("company"))
		}

		err = im.store.InsertUser(&models.User{
			ID:        uuid.New().String(),
			CompanyID: company.ID,
			Email:     email,
			Name:      name,
			Role:      get("role"),
			CreatedAt: time.Now(),
		})
		if err != nil {
			return err
		}

		result.Users++
		return nil
	})
}

func (im *Importer) importDocuments(f *excelize.File, result *Result) {
	forEachRow(f, "Documents", result, func(get func(string) string) error {
		title := get("title")
		content := get("content")
		if title == "" || content == "" {
			return fmt.Errorf("missing title or content")
		}

		company, err := im.store.FindCompanyByName(get("company"))
		if err != nil {
			return fmt.Errorf("unknown company %q", get("company"))
		}

		// Attribution column is optional, but when present it has to
		// resolve to a known user.
		createdBy := ""
		if email := get("user_email"); email != "" {
			user, err := im.store.FindUserByEmail(email)
			if err != nil {
				return fmt.Errorf("unknown user %q", email)
			}
			createdBy = user.ID
		}

		source := get("source")
		if source == "" {
			source = "Excel Import"
		}

		confidence := 0.5
		if raw := get("confidence"); raw != "" {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil || parsed < 0 || parsed > 1 {
				return fmt.Errorf("invalid confidence %q", raw)
			}
			confidence = parsed
		}

		now := time.Now()
		err = im.store.InsertDocument(&models.Document{
			ID:              uuid.New().String(),
			CompanyID:       company.ID,
			Title:           title,
			Content:         content,
			Source:          source,
			Confidence:      confidence,
			CreatedByUserID: createdBy,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return err
		}

		result.Documents++
		metrics.DocumentsIngested.WithLabelValues(source).Inc()
		return nil
	})
}

func (im *Importer) importQueries(f *excelize.File, result *Result) {
	forEachRow(f, "Queries", result, func(get func(string) string) error {
		email := get("user_email")
		text := get("query")
		if email == "" || text == "" {
			return fmt.Errorf("missing user_email or query")
		}

		user, err := im.store.FindUserByEmail(email)
		if err != nil {
			return fmt.Errorf("unknown user %q", email)
		}

		err = im.store.InsertQuery(&models.Query{
			ID:        uuid.New().String(),
			UserID:    user.ID,
			CompanyID: user.CompanyID,
			QueryText: text,
			Answer:    get("answer"),
			CreatedAt: time.Now(),
		})
		if err != nil {
			return err
		}

		result.Queries++
		return nil
	})
}

// forEachRow walks a sheet's data rows, resolving cells by header name.
// A row handler error skips that row only.
func forEachRow(f *excelize.File, sheet string, result *Result, handle func(get func(string) string) error) {
	rows, err := f.GetRows(sheet)
	if err != nil || len(rows) < 2 {
		return
	}

	headers := headerIndex(rows[0])

	for i, row := range rows[1:] {
		get := func(col string) string {
			idx, ok := headers[col]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		if err := handle(get); err != nil {
			result.Skipped++
			metrics.IngestionRowsSkipped.WithLabelValues(sheet).Inc()
			msg := fmt.Sprintf("%s row %d: %v", sheet, i+2, err)
			if len(result.Errors) < 20 {
				result.Errors = append(result.Errors, msg)
			}
			logger.Warn("Skipping workbook row", zap.String("sheet", sheet), zap.Int("row", i+2), zap.Error(err))
		}
	}
}

func headerIndex(row []string) map[string]int {
	headers := map[string]int{}
	for i, cell := range row {
		key := strings.ToLower(strings.TrimSpace(cell))
		key = strings.ReplaceAll(key, " ", "_")
		if key != "" {
			headers[key] = i
		}
	}
	return headers
}
