package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// timeframeFiles maps raw source file names to timeframe ids.
var timeframeFiles = map[string]string{
	"1. Thirty Days.json":          "30",
	"2. Three Months.json":         "90",
	"3. Six Months.json":           "180",
	"4. More Than Six Months.json": "more_than_180",
	"5. All.json":                  "all",
}

// BuildStats summarizes a Build run.
type BuildStats struct {
	Companies int
	Skipped   int
	Questions int
	Topics    int
}

// Build generates the catalog in outDir from the raw sources in srcDir.
//
// srcDir holds companies.json (an array of names) and one directory per
// company with a file per timeframe. A question keeps the timeframe of the
// first file it appears in; files are read in name order, narrowest first.
// Companies without a directory are listed but get no question file.
func Build(srcDir, outDir string) (BuildStats, error) {
	var stats BuildStats

	questionsDir := filepath.Join(outDir, "questions")
	if err := os.MkdirAll(questionsDir, 0o755); err != nil {
		return stats, fmt.Errorf("create output dir: %w", err)
	}

	var companies []string
	if err := readJSONFile(filepath.Join(srcDir, "companies.json"), &companies); err != nil {
		return stats, err
	}

	topics := []string{}
	seenTopics := make(map[string]bool)

	for _, company := range companies {
		if !validCompany(company) {
			return stats, fmt.Errorf("invalid company name %q", company)
		}

		companyDir := filepath.Join(srcDir, company)
		entries, err := os.ReadDir(companyDir)
		if err != nil {
			if os.IsNotExist(err) {
				stats.Skipped++
				log.Debug().Str("company", company).Msg("No source directory, skipping")
				continue
			}
			return stats, fmt.Errorf("read %s: %w", company, err)
		}

		questions := []map[string]any{}
		seenTitles := make(map[string]bool)

		// os.ReadDir returns entries sorted by file name
		for _, entry := range entries {
			timeframe, ok := timeframeFiles[entry.Name()]
			if !ok || entry.IsDir() {
				continue
			}

			var raw []map[string]any
			if err := readJSONFile(filepath.Join(companyDir, entry.Name()), &raw); err != nil {
				return stats, err
			}

			for _, q := range raw {
				title, _ := q["title"].(string)
				if seenTitles[title] {
					continue
				}
				seenTitles[title] = true

				if ts, ok := q["topics"].([]any); ok {
					for _, t := range ts {
						if name, ok := t.(string); ok && !seenTopics[name] {
							seenTopics[name] = true
							topics = append(topics, name)
						}
					}
				}

				q["id"] = company + "-" + title
				q["company"] = company
				q["timeframe"] = timeframe
				questions = append(questions, q)
			}
		}

		if err := writeJSONFile(filepath.Join(questionsDir, company+".json"), questions); err != nil {
			return stats, err
		}
		stats.Companies++
		stats.Questions += len(questions)
	}

	index := make([]Company, 0, len(companies))
	for _, c := range companies {
		index = append(index, Company{ID: c, Name: c})
	}
	if err := writeJSONFile(filepath.Join(outDir, "companies.json"), index); err != nil {
		return stats, err
	}
	if err := writeJSONFile(filepath.Join(outDir, "topics.json"), topics); err != nil {
		return stats, err
	}
	stats.Topics = len(topics)

	log.Info().
		Int("companies", stats.Companies).
		Int("skipped", stats.Skipped).
		Int("questions", stats.Questions).
		Int("topics", stats.Topics).
		Str("out", outDir).
		Msg("Catalog build complete")

	return stats, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
