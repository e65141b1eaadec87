package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsStore appends rows to a Google Sheets worksheet.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
	sheet         string
	header        []string

	mu           sync.Mutex
	headerExists bool
}

// NewSheetsStore creates a store for the given spreadsheet and worksheet.
// Credentials come from opts, e.g. option.WithCredentialsJSON.
func NewSheetsStore(ctx context.Context, spreadsheetID, sheet string, header []string, opts ...option.ClientOption) (*SheetsStore, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if sheet == "" {
		sheet = "Sheet1"
	}
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsStore{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		header:        header,
	}, nil
}

func (s *SheetsStore) Name() string { return "google-sheets" }

// Ping checks that the spreadsheet is reachable with the configured
// credentials.
func (s *SheetsStore) Ping(ctx context.Context) error {
	_, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("open spreadsheet %s: %w", s.spreadsheetID, err)
	}
	return nil
}

// AppendRow writes cells as a new row, writing the header first when the
// worksheet is empty.
func (s *SheetsStore) AppendRow(ctx context.Context, cells []string) error {
	if err := s.ensureHeader(ctx); err != nil {
		return err
	}
	return s.append(ctx, cells)
}

func (s *SheetsStore) ensureHeader(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headerExists || len(s.header) == 0 {
		return nil
	}

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.sheet+"!A1:A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(resp.Values) == 0 {
		if err := s.append(ctx, s.header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		slog.Info("spreadsheet header written", "spreadsheet_id", s.spreadsheetID, "sheet", s.sheet)
	}
	s.headerExists = true
	return nil
}

func (s *SheetsStore) append(ctx context.Context, cells []string) error {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.sheet, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}
