package records

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/xuri/excelize/v2"
)

// ErrEmptyInput is returned for inputs without a header row.
var ErrEmptyInput = errors.New("input has no header row")

// LoadOptions controls how record inputs are fetched.
type LoadOptions struct {
	// RetryMax bounds retries for http(s) inputs. Defaults to 3.
	RetryMax int
	// Sheet selects the worksheet of xlsx inputs. Defaults to the first sheet.
	Sheet string
	// HTTPClient overrides the underlying client for http(s) inputs.
	HTTPClient *http.Client
}

// Load reads a tabular record set from a local CSV/XLSX file or an http(s)
// export URL. The first row is the header.
func Load(ctx context.Context, path string, opts LoadOptions) (*RecordSet, error) {
	if u, err := url.Parse(path); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return loadURL(ctx, u, opts)
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		return readSheet(f, opts.Sheet)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses CSV data with a header row.
func ReadCSV(r io.Reader) (*RecordSet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return fromRows(rows)
}

func loadURL(ctx context.Context, u *url.URL, opts LoadOptions) (*RecordSet, error) {
	client := retryablehttp.NewClient()
	client.Logger = log.New(io.Discard, "", 0)
	client.RetryMax = 3
	if opts.RetryMax > 0 {
		client.RetryMax = opts.RetryMax
	}
	if opts.HTTPClient != nil {
		client.HTTPClient = opts.HTTPClient
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", u.Redacted(), res.Status)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(u.Path), ".xlsx") {
		f, err := excelize.OpenReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		defer f.Close()
		return readSheet(f, opts.Sheet)
	}
	return ReadCSV(bytes.NewReader(body))
}

func readSheet(f *excelize.File, sheet string) (*RecordSet, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyInput
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) (*RecordSet, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return New(header, rows[1:]), nil
}
