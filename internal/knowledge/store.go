// Package knowledge manages the device knowledge spreadsheet: the editable
// mapping from display names the operators use to the platform's device
// labels and variable names.
package knowledge

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/newsense/telemetry-ai/internal/errors"
)

// Spreadsheet column headers, first row of the first sheet.
var columns = []string{"Tên thiết bị", "Device", "Tên biến", "Vị trí", "Loại thiết bị"}

// Row is one knowledge entry.
type Row struct {
	DisplayName  string `json:"Tên thiết bị"`
	DeviceLabel  string `json:"Device"`
	VariableName string `json:"Tên biến"`
	Location     string `json:"Vị trí"`
	DeviceType   string `json:"Loại thiết bị"`
}

// Store reads and writes the knowledge spreadsheet. Rows are cached after
// the first read; Save and Reload refresh the cache.
type Store struct {
	path string

	mu     sync.RWMutex
	rows   []Row
	loaded bool
}

// NewStore creates a store over the spreadsheet at path. The file is read
// lazily; a missing file behaves as an empty knowledge base.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Rows returns all knowledge entries, loading the spreadsheet on first use.
func (s *Store) Rows() ([]Row, error) {
	s.mu.RLock()
	if s.loaded {
		rows := s.rows
		s.mu.RUnlock()
		return rows, nil
	}
	s.mu.RUnlock()

	return s.Reload()
}

// Reload re-reads the spreadsheet from disk.
func (s *Store) Reload() ([]Row, error) {
	rows, err := s.read()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.rows = rows
	s.loaded = true
	s.mu.Unlock()
	return rows, nil
}

func (s *Store) read() ([]Row, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return []Row{}, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, apperrors.NewKnowledgeLoadError(err, s.path)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewKnowledgeLoadError(err, s.path)
	}

	rows := []Row{}
	for i, cells := range raw {
		if i == 0 {
			continue // header
		}
		row := Row{}
		for j, cell := range cells {
			switch j {
			case 0:
				row.DisplayName = cell
			case 1:
				row.DeviceLabel = cell
			case 2:
				row.VariableName = cell
			case 3:
				row.Location = cell
			case 4:
				row.DeviceType = cell
			}
		}
		if row.DisplayName == "" && row.DeviceLabel == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Save replaces the spreadsheet contents with the given rows and refreshes
// the cache.
func (s *Store) Save(rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for j, header := range columns {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for i, row := range rows {
		values := []string{row.DisplayName, row.DeviceLabel, row.VariableName, row.Location, row.DeviceType}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	if err := f.SaveAs(s.path); err != nil {
		return apperrors.NewKnowledgeSaveError(err, s.path)
	}

	s.mu.Lock()
	s.rows = append([]Row(nil), rows...)
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// CompactJSON renders the knowledge base as the compact JSON array embedded
// in extraction prompts.
func (s *Store) CompactJSON() (string, error) {
	rows, err := s.Rows()
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
