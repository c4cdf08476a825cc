package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/atalarczyk/PPLAN/internal/access"
	"github.com/minio/minio-go/v7"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Export encodings. cp1250 serves spreadsheet tools configured for
// Central European locales.
const (
	EncodingUTF8   = "utf-8"
	EncodingCP1250 = "cp1250"

	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ExportService renders reports into downloadable files. When a minio
// client is configured every export is also archived to object storage;
// archive failures only log, the download still succeeds.
type ExportService struct {
	reports     *ReportService
	minioClient *minio.Client
	bucket      string
	logger      *zap.Logger
}

func NewExportService(reports *ReportService, minioClient *minio.Client, bucket string, logger *zap.Logger) *ExportService {
	return &ExportService{
		reports:     reports,
		minioClient: minioClient,
		bucket:      bucket,
		logger:      logger,
	}
}

// ExportFile is a rendered download.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// flattenReport turns a grouped report into header + data rows:
// one line per row key, planned/actual pairs per month, then totals and
// variance.
func flattenReport(report *Report) [][]string {
	header := []string{"name"}
	for _, m := range report.Months {
		header = append(header, monthKey(m)+" planned", monthKey(m)+" actual")
	}
	header = append(header, "total planned", "total actual", "variance")

	table := [][]string{header}
	for _, row := range report.Rows {
		line := []string{row.Name}
		for _, m := range report.Months {
			mv := row.Monthly[monthKey(m)]
			line = append(line, mv.Planned.String(), mv.Actual.String())
		}
		line = append(line, row.Total.Planned.String(), row.Total.Actual.String(), row.Variance.String())
		table = append(table, line)
	}

	totals := []string{"TOTAL"}
	for range report.Months {
		totals = append(totals, "", "")
	}
	totals = append(totals, report.Total.Planned.String(), report.Total.Actual.String(),
		report.Total.Actual.Sub(report.Total.Planned).String())
	table = append(table, totals)
	return table
}

// ExportReport renders one report variant as CSV or XLSX and archives
// it when object storage is configured. Exporting is its own
// capability, checked on top of the report read.
func (s *ExportService) ExportReport(ctx context.Context, userID, projectID, groupBy, measure, format, encoding string, filter ReportFilter) (*ExportFile, error) {
	if _, err := s.reports.requireProject(ctx, userID, projectID, access.CapReportsExport); err != nil {
		return nil, err
	}
	report, err := s.reports.BuildReport(ctx, userID, projectID, groupBy, measure, filter)
	if err != nil {
		return nil, err
	}
	table := flattenReport(report)

	baseName := fmt.Sprintf("%s_%s_%s_%s", projectID, measure, groupBy, time.Now().UTC().Format("20060102T150405"))

	var file *ExportFile
	switch format {
	case FormatCSV, "":
		data, err := renderCSV(table, encoding)
		if err != nil {
			return nil, err
		}
		file = &ExportFile{Name: baseName + ".csv", ContentType: "text/csv", Data: data}
	case FormatXLSX:
		data, err := renderXLSX(report, table)
		if err != nil {
			return nil, err
		}
		file = &ExportFile{
			Name:        baseName + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}
	default:
		return nil, validationf("unknown export format %q", format)
	}

	s.archive(ctx, file)
	return file, nil
}

func renderCSV(table [][]string, encoding string) ([]byte, error) {
	var buf bytes.Buffer
	switch encoding {
	case EncodingUTF8, "":
		w := csv.NewWriter(&buf)
		if err := w.WriteAll(table); err != nil {
			return nil, err
		}
	case EncodingCP1250:
		// UTF-8 → cp1250
		encoded := transform.NewWriter(&buf, charmap.Windows1250.NewEncoder())
		w := csv.NewWriter(encoded)
		if err := w.WriteAll(table); err != nil {
			return nil, err
		}
		if err := encoded.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, validationf("unknown export encoding %q", encoding)
	}
	return buf.Bytes(), nil
}

func renderXLSX(report *Report, table [][]string) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Report"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range table[0] {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}
	f.SetColWidth(sheet, "A", "A", 28)

	for rowIdx, line := range table[1:] {
		for colIdx, value := range line {
			col, _ := excelize.ColumnNumberToName(colIdx + 1)
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, rowIdx+2), value)
		}
	}

	if len(report.Unresolved) > 0 {
		warnSheet := "Warnings"
		f.NewSheet(warnSheet)
		f.SetCellValue(warnSheet, "A1", "task_id")
		f.SetCellValue(warnSheet, "B1", "performer_id")
		f.SetCellValue(warnSheet, "C1", "month")
		for i, u := range report.Unresolved {
			row := i + 2
			f.SetCellValue(warnSheet, fmt.Sprintf("A%d", row), u.TaskID)
			f.SetCellValue(warnSheet, fmt.Sprintf("B%d", row), u.PerformerID)
			f.SetCellValue(warnSheet, fmt.Sprintf("C%d", row), monthKey(u.Month))
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ExportService) archive(ctx context.Context, file *ExportFile) {
	if s.minioClient == nil || s.bucket == "" {
		return
	}
	_, err := s.minioClient.PutObject(ctx, s.bucket, "exports/"+file.Name,
		bytes.NewReader(file.Data), int64(len(file.Data)),
		minio.PutObjectOptions{ContentType: file.ContentType})
	if err != nil {
		s.logger.Warn("Export archive failed", zap.String("name", file.Name), zap.Error(err))
		return
	}
	s.logger.Info("Export archived", zap.String("name", file.Name))
}
