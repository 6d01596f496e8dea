package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/internal/storage/models"
	"github.com/discover-vnext/backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	client, err := NewClient(path)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.InitSchema())
	return client
}

func seedCompany(t *testing.T, client *Client, id, name string) {
	t.Helper()
	require.NoError(t, client.InsertCompany(&models.Company{
		ID:        id,
		Name:      name,
		Industry:  "Technology",
		CreatedAt: time.Now(),
	}))
}

func seedUser(t *testing.T, client *Client, id, companyID, email string) {
	t.Helper()
	require.NoError(t, client.InsertUser(&models.User{
		ID:        id,
		CompanyID: companyID,
		Email:     email,
		Name:      "Test User",
		Role:      "member",
		CreatedAt: time.Now(),
	}))
}

func TestCompanyLifecycle(t *testing.T) {
	client := newTestClient(t)
	seedCompany(t, client, "co-1", "Acme")

	got, err := client.GetCompany("co-1")
	require.NoError(t, err)
	require.Equal(t, "Acme", got.Name)
	require.Equal(t, "Technology", got.Industry)

	byName, err := client.FindCompanyByName("Acme")
	require.NoError(t, err)
	require.Equal(t, "co-1", byName.ID)

	require.NoError(t, client.DeleteCompany("co-1"))

	_, err = client.GetCompany("co-1")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, client.DeleteCompany("co-1"), ErrNotFound)
}

func TestListCompaniesOrderedByName(t *testing.T) {
	client := newTestClient(t)
	seedCompany(t, client, "co-1", "Zenith")
	seedCompany(t, client, "co-2", "Acme")

	companies, err := client.ListCompanies()
	require.NoError(t, err)
	require.Len(t, companies, 2)
	require.Equal(t, "Acme", companies[0].Name)
	require.Equal(t, "Zenith", companies[1].Name)
}

func TestUserLifecycle(t *testing.T) {
	client := newTestClient(t)
	seedCompany(t, client, "co-1", "Acme")
	seedUser(t, client, "u-1", "co-1", "alex@acme.test")

	got, err := client.GetUser("u-1")
	require.NoError(t, err)
	require.Equal(t, "co-1", got.CompanyID)

	byEmail, err := client.FindUserByEmail("alex@acme.test")
	require.NoError(t, err)
	require.Equal(t, "u-1", byEmail.ID)

	_, err = client.FindUserByEmail("nobody@acme.test")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, client.DeleteUser("u-1"))
	_, err = client.GetUser("u-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateEmailRejected(t *testing.T) {
	client := newTestClient(t)
	seedCompany(t, client, "co-1", "Acme")
	seedUser(t, client, "u-1", "co-1", "alex@acme.test")

	err := client.InsertUser(&models.User{
		ID:        "u-2",
		CompanyID: "co-1",
		Email:     "alex@acme.test",
		Name:      "Duplicate",
		CreatedAt: time.Now(),
	})
	require.Error(t, err)
}

func TestInsertDocumentUpserts(t *testing.T) {
	client := newTestClient(t)
	seedCompany(t, client, "co-1", "Acme")
	seedUser(t, client, "u-1", "co-1", "alex@acme.test")

	created := time.Now().Add(-time.Hour).Truncate(time.Second)
	doc := &models.Document{
		ID:              "d-1",
		CompanyID:       "co-1",
		Title:           "First Title",
		Content:         "original content",
		Source:          "Wiki",
		Confidence:      0.5,
		CreatedByUserID: "u-1",
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	require.NoError(t, client.InsertDocument(doc))

	doc.Title = "Revised Title"
	doc.Confidence = 0.9
	doc.CreatedByUserID = ""
	doc.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, client.InsertDocument(doc))

	got, err := client.GetDocument("d-1")
	require.NoError(t, err)
	require.Equal(t, "Revised Title", got.Title)
	require.InDelta(t, 0.9, got.Confidence, 1e-9)
	require.Equal(t, "u-1", got.CreatedByUserID)
	require.True(t, got.CreatedAt.Equal(created))
	require.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestDocumentCreatorPersisted(t *testing.T) {
	client := newTestClient(t)
	seedCompany(t, client, "co-1", "Acme")
	seedUser(t, client, "u-1", "co-1", "alex@acme.test")

	now := time.Now().Truncate(time.Second)
	require.NoError(t, client.InsertDocument(&models.Document{
		ID:              "d-1",
		CompanyID:       "co-1",
		Title:           "Authored",
		Content:         "content",
		Source:          "Wiki",
		Confidence:      0.5,
		CreatedByUserID: "u-1",
		CreatedAt:       now,
		UpdatedAt:       now,
	}))
	require.NoError(t, client.InsertDocument(&models.Document{
		ID:         "d-2",
		CompanyID:  "co-1",
		Title:      "Anonymous",
		Content:    "content",
		Source:     "Wiki",
		Confidence: 0.5,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	authored, err := client.GetDocument("d-1")
	require.NoError(t, err)
	require.Equal(t, "u-1", authored.CreatedByUserID)

	anonymous, err := client.GetDocument("d-2")
	require.NoError(t, err)
	require.Empty(t, anonymous.CreatedByUserID)

	docs, err := client.ListDocuments("co-1")
	require.NoError(t, err)
	byID := map[string]string{}
	for _, d := range docs {
		byID[d.ID] = d.CreatedByUserID
	}
	require.Equal(t, "u-1", byID["d-1"])
	require.Empty(t, byID["d-2"])
}

func TestDocumentCreatorClearedOnUserDelete(t *testing.T) {
	client := newTestClient(t)
	seedCompany(t, client, "co-1", "Acme")
	seedUser(t, client, "u-1", "co-1", "alex@acme.test")

	now := time.Now().Truncate(time.Second)
	require.NoError(t, client.InsertDocument(&models.Document{
		ID:              "d-1",
		CompanyID:       "co-1",
		Title:           "Authored",
		Content:         "content",
		Source:          "Wiki",
		Confidence:      0.5,
		CreatedByUserID: "u-1",
		CreatedAt:       now,
		UpdatedAt:       now,
	}))

	require.NoError(t, client.DeleteUser("u-1"))

	// The document survives its author; only the attribution is dropped.
	got, err := client.GetDocument("d-1")
	require.NoError(t, err)
	require.Empty(t, got.CreatedByUserID)
}

func TestListDocumentsNewestFirstPerCompany(t *testing.T) {
	client := newTestClient(t)
	seedCompany(t, client, "co-1", "Acme")
	seedCompany(t, client, "co-2", "Zenith")

	now := time.Now().Truncate(time.Second)
	for i, spec := range []struct {
		id        string
		companyID string
		age       time.Duration
	}{
		{"d-old", "co-1", 2 * time.Hour},
		{"d-new", "co-1", 0},
		{"d-other", "co-2", time.Hour},
	} {
		created := now.Add(-spec.age)
		require.NoError(t, client.InsertDocument(&models.Document{
			ID:         spec.id,
			CompanyID:  spec.companyID,
			Title:      fmt.Sprintf("Doc %d", i),
			Content:    "content",
			Source:     "Wiki",
			Confidence: 0.5,
			CreatedAt:  created,
			UpdatedAt:  created,
		}))
	}

	docs, err := client.ListDocuments("co-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "d-new", docs[0].ID)
	require.Equal(t, "d-old", docs[1].ID)
}

func TestListRecentQueriesOrderAndLimit(t *testing.T) {
	client := newTestClient(t)
	seedCompany(t, client, "co-1", "Acme")
	seedUser(t, client, "u-1", "co-1", "alex@acme.test")

	base := time.Now().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		require.NoError(t, client.InsertQuery(&models.Query{
			ID:        fmt.Sprintf("q-%d", i),
			UserID:    "u-1",
			CompanyID: "co-1",
			QueryText: fmt.Sprintf("question %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	queries, err := client.ListRecentQueries("u-1", "co-1", 3)
	require.NoError(t, err)
	require.Len(t, queries, 3)
	require.Equal(t, "q-4", queries[0].ID)
	require.Equal(t, "q-3", queries[1].ID)
	require.Equal(t, "q-2", queries[2].ID)
}

func TestListRecentQueriesTiebreaksOnID(t *testing.T) {
	client := newTestClient(t)
	seedCompany(t, client, "co-1", "Acme")
	seedUser(t, client, "u-1", "co-1", "alex@acme.test")

	created := time.Now().Truncate(time.Second)
	for _, id := range []string{"q-a", "q-b"} {
		require.NoError(t, client.InsertQuery(&models.Query{
			ID:        id,
			UserID:    "u-1",
			CompanyID: "co-1",
			QueryText: "same second",
			CreatedAt: created,
		}))
	}

	queries, err := client.ListRecentQueries("u-1", "co-1", 10)
	require.NoError(t, err)
	require.Equal(t, "q-b", queries[0].ID)
	require.Equal(t, "q-a", queries[1].ID)
}

func TestDeleteUserQueriesReturnsCount(t *testing.T) {
	client := newTestClient(t)
	seedCompany(t, client, "co-1", "Acme")
	seedUser(t, client, "u-1", "co-1", "alex@acme.test")
	seedUser(t, client, "u-2", "co-1", "sam@acme.test")

	for i, userID := range []string{"u-1", "u-1", "u-2"} {
		require.NoError(t, client.InsertQuery(&models.Query{
			ID:        fmt.Sprintf("q-%d", i),
			UserID:    userID,
			CompanyID: "co-1",
			QueryText: "anything",
			CreatedAt: time.Now(),
		}))
	}

	deleted, err := client.DeleteUserQueries("u-1")
	require.NoError(t, err)
	require.Equal(t, 2, deleted)

	remaining, err := client.ListRecentQueries("u-2", "co-1", 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestDeleteCompanyCascades(t *testing.T) {
	client := newTestClient(t)
	seedCompany(t, client, "co-1", "Acme")
	seedUser(t, client, "u-1", "co-1", "alex@acme.test")

	created := time.Now().Truncate(time.Second)
	require.NoError(t, client.InsertDocument(&models.Document{
		ID: "d-1", CompanyID: "co-1", Title: "Doc", Content: "x",
		Source: "Wiki", Confidence: 0.5, CreatedAt: created, UpdatedAt: created,
	}))
	require.NoError(t, client.InsertQuery(&models.Query{
		ID: "q-1", UserID: "u-1", CompanyID: "co-1",
		QueryText: "anything", CreatedAt: created,
	}))

	require.NoError(t, client.DeleteCompany("co-1"))

	_, err := client.GetUser("u-1")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = client.GetDocument("d-1")
	require.ErrorIs(t, err, ErrNotFound)

	queries, err := client.ListRecentQueries("u-1", "co-1", 10)
	require.NoError(t, err)
	require.Empty(t, queries)
}

func TestGetUsageStats(t *testing.T) {
	client := newTestClient(t)
	seedCompany(t, client, "co-1", "Acme")
	seedCompany(t, client, "co-2", "Zenith")
	seedUser(t, client, "u-1", "co-1", "alex@acme.test")
	seedUser(t, client, "u-2", "co-2", "sam@zenith.test")

	now := time.Now().Truncate(time.Second)
	queries := []models.Query{
		{ID: "q-1", UserID: "u-1", CompanyID: "co-1", QueryText: "a", CreatedAt: now},
		{ID: "q-2", UserID: "u-1", CompanyID: "co-1", QueryText: "b", CreatedAt: now},
		{ID: "q-3", UserID: "u-2", CompanyID: "co-2", QueryText: "c", CreatedAt: now.Add(-48 * time.Hour)},
	}
	for i := range queries {
		require.NoError(t, client.InsertQuery(&queries[i]))
	}

	stats, err := client.GetUsageStats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.Companies)
	require.Equal(t, 2, stats.Users)
	require.Equal(t, 0, stats.Documents)
	require.Equal(t, 3, stats.Queries)
	require.Equal(t, 2, stats.QueriesLast24)

	require.Len(t, stats.TopCompanies, 2)
	require.Equal(t, "Acme", stats.TopCompanies[0].CompanyName)
	require.Equal(t, 2, stats.TopCompanies[0].QueryCount)
}
