package portsweep

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// WriteJSONReport writes the report as indented JSON.
func WriteJSONReport(report *Report, filePath string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON report: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	return nil
}

// WriteCSVReport writes the findings list as CSV, one row per open port.
func WriteCSVReport(report *Report, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Host", "Port", "Banner"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, f := range report.Findings {
		banner := ""
		if f.Banner != nil {
			banner = *f.Banner
		}
		row := []string{f.Host, strconv.Itoa(f.Port), banner}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return nil
}

// WritePDFReport generates a PDF report with a summary block and a findings
// table.
func WritePDFReport(report *Report, filePath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Port Scan Report")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 10, "Scan Summary")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(40, 8, fmt.Sprintf("Target Input: %s", report.Config.TargetInput))
	pdf.Ln(8)
	pdf.Cell(40, 8, fmt.Sprintf("Port Input: %s", report.Config.PortsInput))
	pdf.Ln(8)
	pdf.Cell(40, 8, fmt.Sprintf("Total Scans: %d", report.Config.TotalScans))
	pdf.Ln(8)
	pdf.Cell(40, 8, fmt.Sprintf("Scan Duration: %.2f seconds", report.DurationSeconds))
	pdf.Ln(8)
	pdf.Cell(40, 8, fmt.Sprintf("Open Ports Found: %d", report.Summary.OpenPortsFound))
	pdf.Ln(8)
	pdf.Cell(40, 8, fmt.Sprintf("Closed or Filtered: %d", report.Summary.ClosedOrFiltered))
	pdf.Ln(16)

	if len(report.Findings) > 0 {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 10, "Open Ports")
		pdf.Ln(10)

		pdf.SetFont("Arial", "", 10)
		pdf.SetFillColor(240, 240, 240)

		headers := []string{"Host", "Port", "Banner"}
		widths := []float64{45, 20, 115}
		for i, header := range headers {
			pdf.CellFormat(widths[i], 8, header, "1", 0, "", true, 0, "")
		}
		pdf.Ln(8)

		fill := false
		for _, f := range report.Findings {
			banner := ""
			if f.Banner != nil {
				banner = *f.Banner
			}
			pdf.CellFormat(widths[0], 8, f.Host, "1", 0, "", fill, 0, "")
			pdf.CellFormat(widths[1], 8, strconv.Itoa(f.Port), "1", 0, "", fill, 0, "")
			pdf.CellFormat(widths[2], 8, banner, "1", 0, "", fill, 0, "")
			pdf.Ln(8)
			fill = !fill
		}
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return fmt.Errorf("failed to write PDF report: %w", err)
	}

	return nil
}

// PrintConsoleReport prints the human-readable scan summary to stdout.
func PrintConsoleReport(report *Report) {
	rule := strings.Repeat("=", 65)
	fmt.Println(rule)
	fmt.Printf("%s\n", centerText("PORT SCAN RESULTS", 65))
	fmt.Println(rule)
	fmt.Printf("Scan Duration: %.2f seconds\n", report.DurationSeconds)
	fmt.Printf("Targets: %d\n", report.Config.TargetCount)
	fmt.Printf("Ports Checked: %d\n", report.Config.PortsCount)
	fmt.Printf("Total Scans: %d\n", report.Config.TotalScans)
	fmt.Printf("Open Ports Found: %d\n", report.Summary.OpenPortsFound)
	fmt.Println(rule)

	if len(report.Findings) == 0 {
		fmt.Println("\nNo open ports found.")
		fmt.Println()
		return
	}

	fmt.Println("\nOPEN PORTS:")
	for _, f := range report.Findings {
		line := fmt.Sprintf("  %-15s : %5d", f.Host, f.Port)
		if f.Banner != nil {
			line += " | " + *f.Banner
		}
		fmt.Println(line)
	}
	fmt.Println()
}

// centerText centers a string within the given width.
func centerText(s string, width int) string {
	if len(s) >= width {
		return s
	}
	pad := (width - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}
