package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/internal/storage/models"
	"github.com/discover-vnext/backend/pkg/logger"
)

var ErrNotFound = errors.New("record not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		industry TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(name);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		role TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_users_company ON users(company_id);
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		source TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0.5,
		created_by_user_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE,
		FOREIGN KEY (created_by_user_id) REFERENCES users(id) ON DELETE SET NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_company ON documents(company_id);
	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
	CREATE INDEX IF NOT EXISTS idx_documents_creator ON documents(created_by_user_id);
	CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);

	CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		company_id TEXT NOT NULL,
		query_text TEXT NOT NULL,
		answer TEXT,
		intent TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_queries_user ON queries(user_id);
	CREATE INDEX IF NOT EXISTS idx_queries_company ON queries(company_id);
	CREATE INDEX IF NOT EXISTS idx_queries_created ON queries(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertCompany(company *models.Company) error {
	query := `INSERT INTO companies (id, name, industry, created_at) VALUES (?, ?, ?, ?)`

	_, err := c.db.Exec(
		query,
		company.ID,
		company.Name,
		company.Industry,
		company.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert company: %w", err)
	}

	logger.Debug("Company inserted", zap.String("company_id", company.ID), zap.String("name", company.Name))
	return nil
}

func (c *Client) GetCompany(id string) (*models.Company, error) {
	query := `SELECT id, name, industry, created_at FROM companies WHERE id = ?`

	var company models.Company
	var createdAt int64

	err := c.db.QueryRow(query, id).Scan(&company.ID, &company.Name, &company.Industry, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	company.CreatedAt = time.Unix(createdAt, 0)
	return &company, nil
}

func (c *Client) FindCompanyByName(name string) (*models.Company, error) {
	query := `SELECT id, name, industry, created_at FROM companies WHERE name = ?`

	var company models.Company
	var createdAt int64

	err := c.db.QueryRow(query, name).Scan(&company.ID, &company.Name, &company.Industry, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find company: %w", err)
	}

	company.CreatedAt = time.Unix(createdAt, 0)
	return &company, nil
}

func (c *Client) ListCompanies() ([]models.Company, error) {
	query := `SELECT id, name, industry, created_at FROM companies ORDER BY name`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []models.Company
	for rows.Next() {
		var company models.Company
		var createdAt int64

		err := rows.Scan(&company.ID, &company.Name, &company.Industry, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		company.CreatedAt = time.Unix(createdAt, 0)
		companies = append(companies, company)
	}

	return companies, nil
}

func (c *Client) DeleteCompany(id string) error {
	result, err := c.db.Exec(`DELETE FROM companies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (c *Client) InsertUser(user *models.User) error {
	query := `INSERT INTO users (id, company_id, email, name, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := c.db.Exec(
		query,
		user.ID,
		user.CompanyID,
		user.Email,
		user.Name,
		user.Role,
		user.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	logger.Debug("User inserted", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return nil
}

func (c *Client) GetUser(id string) (*models.User, error) {
	query := `SELECT id, company_id, email, name, role, created_at FROM users WHERE id = ?`

	var user models.User
	var createdAt int64

	err := c.db.QueryRow(query, id).Scan(&user.ID, &user.CompanyID, &user.Email, &user.Name, &user.Role, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.CreatedAt = time.Unix(createdAt, 0)
	return &user, nil
}

func (c *Client) FindUserByEmail(email string) (*models.User, error) {
	query := `SELECT id, company_id, email, name, role, created_at FROM users WHERE email = ?`

	var user models.User
	var createdAt int64

	err := c.db.QueryRow(query, email).Scan(&user.ID, &user.CompanyID, &user.Email, &user.Name, &user.Role, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user.CreatedAt = time.Unix(createdAt, 0)
	return &user, nil
}

func (c *Client) ListUsers(companyID string) ([]models.User, error) {
	query := `SELECT id, company_id, email, name, role, created_at FROM users WHERE company_id = ? ORDER BY created_at DESC`

	rows, err := c.db.Query(query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		var createdAt int64

		err := rows.Scan(&user.ID, &user.CompanyID, &user.Email, &user.Name, &user.Role, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		user.CreatedAt = time.Unix(createdAt, 0)
		users = append(users, user)
	}

	return users, nil
}

func (c *Client) DeleteUser(id string) error {
	result, err := c.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// InsertDocument upserts by id. The creator and creation time are fixed
// at first insert; later upserts only touch the mutable columns.
func (c *Client) InsertDocument(doc *models.Document) error {
	query := `
		INSERT INTO documents (id, company_id, title, content, source, confidence, created_by_user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			source = excluded.source,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at
	`

	var createdBy interface{}
	if doc.CreatedByUserID != "" {
		createdBy = doc.CreatedByUserID
	}

	_, err := c.db.Exec(
		query,
		doc.ID,
		doc.CompanyID,
		doc.Title,
		doc.Content,
		doc.Source,
		doc.Confidence,
		createdBy,
		doc.CreatedAt.Unix(),
		doc.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document inserted", zap.String("doc_id", doc.ID), zap.String("title", doc.Title))
	return nil
}

func (c *Client) GetDocument(id string) (*models.Document, error) {
	query := `SELECT id, company_id, title, content, source, confidence, created_by_user_id, created_at, updated_at FROM documents WHERE id = ?`

	var doc models.Document
	var createdBy sql.NullString
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, id).Scan(
		&doc.ID,
		&doc.CompanyID,
		&doc.Title,
		&doc.Content,
		&doc.Source,
		&doc.Confidence,
		&createdBy,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.CreatedByUserID = createdBy.String
	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)

	return &doc, nil
}

func (c *Client) ListDocuments(companyID string) ([]models.Document, error) {
	query := `
		SELECT id, company_id, title, content, source, confidence, created_by_user_id, created_at, updated_at
		FROM documents
		WHERE company_id = ?
		ORDER BY created_at DESC
	`

	rows, err := c.db.Query(query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		var createdBy sql.NullString
		var createdAt, updatedAt int64

		err := rows.Scan(
			&doc.ID,
			&doc.CompanyID,
			&doc.Title,
			&doc.Content,
			&doc.Source,
			&doc.Confidence,
			&createdBy,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		doc.CreatedByUserID = createdBy.String
		doc.CreatedAt = time.Unix(createdAt, 0)
		doc.UpdatedAt = time.Unix(updatedAt, 0)
		docs = append(docs, doc)
	}

	return docs, nil
}

func (c *Client) DeleteDocument(id string) error {
	result, err := c.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (c *Client) InsertQuery(q *models.Query) error {
	query := `
		INSERT INTO queries (id, user_id, company_id, query_text, answer, intent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		q.ID,
		q.UserID,
		q.CompanyID,
		q.QueryText,
		q.Answer,
		q.Intent,
		q.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert query: %w", err)
	}

	logger.Info("Query recorded",
		zap.String("query_id", q.ID),
		zap.String("user_id", q.UserID),
		zap.String("query", q.QueryText),
	)

	return nil
}

// ListRecentQueries returns the user's queries within a company,
// most recent first.
func (c *Client) ListRecentQueries(userID, companyID string, limit int) ([]models.Query, error) {
	query := `
		SELECT id, user_id, company_id, query_text, answer, intent, created_at
		FROM queries
		WHERE user_id = ? AND company_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, userID, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	var queries []models.Query
	for rows.Next() {
		var q models.Query
		var createdAt int64

		err := rows.Scan(&q.ID, &q.UserID, &q.CompanyID, &q.QueryText, &q.Answer, &q.Intent, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		q.CreatedAt = time.Unix(createdAt, 0)
		queries = append(queries, q)
	}

	return queries, nil
}

func (c *Client) DeleteUserQueries(userID string) (int, error) {
	result, err := c.db.Exec(`DELETE FROM queries WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete queries: %w", err)
	}

	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func (c *Client) GetUsageStats() (*models.UsageStats, error) {
	stats := &models.UsageStats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM companies`, &stats.Companies},
		{`SELECT COUNT(*) FROM users`, &stats.Users},
		{`SELECT COUNT(*) FROM documents`, &stats.Documents},
		{`SELECT COUNT(*) FROM queries`, &stats.Queries},
	}

	for _, c2 := range counts {
		if err := c.db.QueryRow(c2.query).Scan(c2.dest); err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
	}

	cutoff := time.Now().Add(-24 * time.Hour).Unix()
	err := c.db.QueryRow(`SELECT COUNT(*) FROM queries WHERE created_at >= ?`, cutoff).Scan(&stats.QueriesLast24)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent queries: %w", err)
	}

	rows, err := c.db.Query(`
		SELECT q.company_id, c.name, COUNT(*) AS query_count
		FROM queries q
		JOIN companies c ON c.id = q.company_id
		GROUP BY q.company_id, c.name
		ORDER BY query_count DESC, c.name
		LIMIT 5
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get top companies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.CompanyQueryCount
		if err := rows.Scan(&entry.CompanyID, &entry.CompanyName, &entry.QueryCount); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		stats.TopCompanies = append(stats.TopCompanies, entry)
	}

	return stats, nil
}
