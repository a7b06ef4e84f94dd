// Package catalog serves the static company question lists: the company
// index, the topic index and one question file per company, all produced
// by Build from the raw per-timeframe sources.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned for unknown or invalid company names.
	ErrNotFound = errors.New("questions not found")

	// ErrCompanyRequired is returned when no company is given.
	ErrCompanyRequired = errors.New("company is required")
)

// Company is one entry of companies.json.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Question is one entry of a company question file.
type Question struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Difficulty     string   `json:"difficulty"`
	Topics         []string `json:"topics"`
	Frequency      float64  `json:"frequency"`
	AcceptanceRate float64  `json:"acceptanceRate"`
	Link           string   `json:"link,omitempty"`
	Company        string   `json:"company"`
	Timeframe      string   `json:"timeframe"`
}

// Store reads the generated catalog from a data directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Companies returns the raw companies.json document.
func (s *Store) Companies() ([]byte, error) {
	return s.readJSON(filepath.Join(s.dir, "companies.json"))
}

// Topics returns the raw topics.json document.
func (s *Store) Topics() ([]byte, error) {
	return s.readJSON(filepath.Join(s.dir, "topics.json"))
}

// QuestionsRaw returns the raw question file of a company.
func (s *Store) QuestionsRaw(company string) ([]byte, error) {
	path, err := s.questionsPath(company)
	if err != nil {
		return nil, err
	}
	data, err := s.readJSON(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, company)
		}
		return nil, err
	}
	return data, nil
}

// Questions returns the decoded questions of a company that match f.
func (s *Store) Questions(company string, f Filter) ([]Question, error) {
	data, err := s.QuestionsRaw(company)
	if err != nil {
		return nil, err
	}

	var all []Question
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode questions for %s: %w", company, err)
	}
	return f.Apply(all), nil
}

func (s *Store) questionsPath(company string) (string, error) {
	if company == "" {
		return "", ErrCompanyRequired
	}
	if !validCompany(company) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, company)
	}
	return filepath.Join(s.dir, "questions", company+".json"), nil
}

func (s *Store) readJSON(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("read %s: invalid JSON", filepath.Base(path))
	}
	return data, nil
}

// validCompany rejects names that could escape the questions directory.
func validCompany(name string) bool {
	if name == "." || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, `/\`+"\x00")
}
