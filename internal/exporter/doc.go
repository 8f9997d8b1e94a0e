// Package exporter writes dashboard reports as CSV and Excel files.
//
// Every section flattens into a table (see SectionTable). CSVWriter writes
// one table to any io.Writer, optionally with a UTF-8 BOM so Excel detects
// the encoding. WriteWorkbook writes a whole report as an .xlsx workbook with
// one sheet per section.
//
// Example usage:
//
//	headers, rows := exporter.SectionTable(section)
//	w := exporter.NewCSVWriter(logger)
//	err := w.Write(out, exporter.WriteOptions{Headers: headers, Records: rows, BOMPrefix: true})
package exporter
