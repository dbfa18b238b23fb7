package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"vaultScope/internal/model"
)

// JsonlJournal appends transaction outcomes to a JSONL file.
type JsonlJournal struct {
	path string
	mu   sync.Mutex
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path}
}

// journalLine is the on-disk form of an outcome. The receipt is reduced
// to its block reference.
type journalLine struct {
	model.TransactionOutcome
	Status      string `json:"state"`
	BlockNumber string `json:"block_number,omitempty"`
}

// RecordOutcome appends one outcome as a JSON line.
func (s *JsonlJournal) RecordOutcome(_ context.Context, outcome model.TransactionOutcome) error {
	line := journalLine{TransactionOutcome: outcome, Status: outcome.State()}
	if r := outcome.Receipt; r != nil && r.BlockNumber != nil {
		line.BlockNumber = r.BlockNumber.String()
	}
	line.Receipt = nil

	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

// ReadJournal loads every outcome line of a JSONL journal.
func ReadJournal(path string) ([]model.TransactionOutcome, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var out []model.TransactionOutcome
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var line journalLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("decode journal line %d: %w", len(out)+1, err)
		}
		out = append(out, line.TransactionOutcome)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return out, nil
}
