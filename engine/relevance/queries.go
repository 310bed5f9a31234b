package relevance

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/vendexa/vendex/engine/domain"
)

// LoadQueries reads evaluation queries from a JSONL file, one
// {"q": ..., "gold": [...]} object per line. Blank lines are ignored.
func LoadQueries(path string) ([]domain.EvalQuery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("relevance: open %s: %w", path, err)
	}
	defer f.Close()

	var queries []domain.EvalQuery
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var q domain.EvalQuery
		if err := json.Unmarshal([]byte(text), &q); err != nil {
			return nil, fmt.Errorf("relevance: %s line %d: %w", path, line, err)
		}
		queries = append(queries, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("relevance: read %s: %w", path, err)
	}
	return queries, nil
}
