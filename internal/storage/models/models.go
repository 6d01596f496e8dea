package models

import "time"

type Company struct {
	ID        string
	Name      string
	Industry  string
	CreatedAt time.Time
}

type User struct {
	ID        string
	CompanyID string
	Email     string
	Name      string
	Role      string
	CreatedAt time.Time
}

type Document struct {
	ID              string
	CompanyID       string
	Title           string
	Content         string
	Source          string
	Confidence      float64
	CreatedByUserID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Query struct {
	ID        string
	UserID    string
	CompanyID string
	QueryText string
	Answer    string
	Intent    string
	CreatedAt time.Time
}

type CompanyQueryCount struct {
	CompanyID   string
	CompanyName string
	QueryCount  int
}

type UsageStats struct {
	Companies     int
	Users         int
	Documents     int
	Queries       int
	QueriesLast24 int
	TopCompanies  []CompanyQueryCount
}
