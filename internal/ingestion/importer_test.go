package ingestion

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/internal/storage/models"
	"github.com/discover-vnext/backend/internal/storage/sqlite"
	"github.com/discover-vnext/backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

type memStore struct {
	companies []models.Company
	users     []models.User
	documents []models.Document
	queries   []models.Query
}

func (s *memStore) FindCompanyByName(name string) (*models.Company, error) {
	for i := range s.companies {
		if s.companies[i].Name == name {
			return &s.companies[i], nil
		}
	}
	return nil, sqlite.ErrNotFound
}

func (s *memStore) InsertCompany(company *models.Company) error {
	s.companies = append(s.companies, *company)
	return nil
}

func (s *memStore) FindUserByEmail(email string) (*models.User, error) {
	for i := range s.users {
		if s.users[i].Email == email {
			return &s.users[i], nil
		}
	}
	return nil, sqlite.ErrNotFound
}

func (s *memStore) InsertUser(user *models.User) error {
	s.users = append(s.users, *user)
	return nil
}

func (s *memStore) InsertDocument(doc *models.Document) error {
	s.documents = append(s.documents, *doc)
	return nil
}

func (s *memStore) InsertQuery(q *models.Query) error {
	s.queries = append(s.queries, *q)
	return nil
}

func (s *memStore) GetUsageStats() (*models.UsageStats, error) {
	return &models.UsageStats{
		Companies: len(s.companies),
		Users:     len(s.users),
		Documents: len(s.documents),
		Queries:   len(s.queries),
	}, nil
}

func buildWorkbook(t *testing.T, sheets map[string][][]interface{}) io.Reader {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for name, rows := range sheets {
		_, err := f.NewSheet(name)
		require.NoError(t, err)
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	require.NoError(t, f.DeleteSheet("Sheet1"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func fullWorkbook(t *testing.T) io.Reader {
	return buildWorkbook(t, map[string][][]interface{}{
		"Companies": {
			{"Name", "Industry"},
			{"Acme", "Technology"},
			{"Acme", "Technology"},
			{"", "Orphaned"},
		},
		"Users": {
			{"Email", "Name", "Company", "Role"},
			{"alex@acme.test", "Alex", "Acme", "engineer"},
			{"sam@nowhere.test", "Sam", "Ghost Corp", ""},
			{"", "Nameless", "Acme", ""},
		},
		"Documents": {
			{"Company", "Title", "Content", "Source", "Confidence"},
			{"Acme", "Onboarding Guide", "Welcome to Acme.", "Wiki", "0.8"},
			{"Acme", "Broken Row", "content", "Wiki", "1.5"},
			{"Acme", "No Content", "", "Wiki", ""},
		},
		"Queries": {
			{"User Email", "Query", "Answer"},
			{"alex@acme.test", "how do i set up my laptop", "See the onboarding guide."},
			{"nobody@acme.test", "who am i", ""},
		},
	})
}

func TestImportWorkbook(t *testing.T) {
	store := &memStore{}
	im := NewImporter(store)

	result, err := im.ImportWorkbook(fullWorkbook(t))
	require.NoError(t, err)

	require.Equal(t, 1, result.Companies)
	require.Equal(t, 1, result.Users)
	require.Equal(t, 1, result.Documents)
	require.Equal(t, 1, result.Queries)
	require.Equal(t, 6, result.Skipped)
	require.Len(t, result.Errors, 6)

	require.Len(t, store.companies, 1)
	require.Equal(t, "Acme", store.companies[0].Name)

	require.Len(t, store.users, 1)
	require.Equal(t, store.companies[0].ID, store.users[0].CompanyID)

	require.Len(t, store.documents, 1)
	require.Equal(t, "Onboarding Guide", store.documents[0].Title)
	require.InDelta(t, 0.8, store.documents[0].Confidence, 1e-9)
	require.Equal(t, "Wiki", store.documents[0].Source)

	require.Len(t, store.queries, 1)
	require.Equal(t, store.users[0].ID, store.queries[0].UserID)
	require.Equal(t, "See the onboarding guide.", store.queries[0].Answer)
}

func TestImportWorkbookDefaultsDocumentSource(t *testing.T) {
	store := &memStore{
		companies: []models.Company{{ID: "co-1", Name: "Acme", CreatedAt: time.Now()}},
	}
	im := NewImporter(store)

	result, err := im.ImportWorkbook(buildWorkbook(t, map[string][][]interface{}{
		"Documents": {
			{"Company", "Title", "Content"},
			{"Acme", "Untitled Source", "content here"},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, 1, result.Documents)
	require.Equal(t, "Excel Import", store.documents[0].Source)
	require.InDelta(t, 0.5, store.documents[0].Confidence, 1e-9)
}

func TestImportWorkbookRecordsDocumentCreator(t *testing.T) {
	store := &memStore{
		companies: []models.Company{{ID: "co-1", Name: "Acme", CreatedAt: time.Now()}},
		users:     []models.User{{ID: "u-1", CompanyID: "co-1", Email: "alex@acme.test", CreatedAt: time.Now()}},
	}
	im := NewImporter(store)

	result, err := im.ImportWorkbook(buildWorkbook(t, map[string][][]interface{}{
		"Documents": {
			{"Company", "Title", "Content", "User Email"},
			{"Acme", "Attributed", "content", "alex@acme.test"},
			{"Acme", "Unattributed", "content", ""},
			{"Acme", "Ghost Author", "content", "nobody@acme.test"},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, 2, result.Documents)
	require.Equal(t, 1, result.Skipped)

	byTitle := map[string]string{}
	for _, d := range store.documents {
		byTitle[d.Title] = d.CreatedByUserID
	}
	require.Equal(t, "u-1", byTitle["Attributed"])
	require.Empty(t, byTitle["Unattributed"])
	require.NotContains(t, byTitle, "Ghost Author")
}

func TestImportWorkbookRejectsNonWorkbook(t *testing.T) {
	im := NewImporter(&memStore{})

	_, err := im.ImportWorkbook(bytes.NewReader([]byte("not a workbook")))
	require.Error(t, err)
}

func TestValidateWorkbook(t *testing.T) {
	im := NewImporter(&memStore{})

	report, err := im.ValidateWorkbook(fullWorkbook(t))
	require.NoError(t, err)
	require.True(t, report.Valid)
	require.Empty(t, report.MissingSheets)
	require.Empty(t, report.Problems)
}

func TestValidateWorkbookFlagsMissingSheetAndColumn(t *testing.T) {
	im := NewImporter(&memStore{})

	report, err := im.ValidateWorkbook(buildWorkbook(t, map[string][][]interface{}{
		"Companies": {
			{"Name"},
		},
		"Users": {
			{"Email", "Name"},
		},
		"Documents": {
			{"Company", "Title", "Content"},
		},
	}))
	require.NoError(t, err)
	require.False(t, report.Valid)
	require.Contains(t, report.MissingSheets, "Queries")
	require.Contains(t, report.Problems, `sheet Users: missing column "company"`)
}

func TestInsights(t *testing.T) {
	store := &memStore{
		companies: []models.Company{{ID: "co-1", Name: "Acme"}},
	}
	im := NewImporter(store)

	stats, err := im.Insights()
	require.NoError(t, err)
	require.Equal(t, 1, stats.Companies)
}
