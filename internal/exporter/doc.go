// Package exporter renders filtered evaluation records as downloadable
// files.
//
// WriteWorkbook builds the .xlsx report: one sheet per store holding the
// person summary of that store (best overall score first) plus an
// Evaluators sheet ranking who filled in the most forms. The workbook is a
// pure function of the records it is given.
//
// The CSV writers cover the evaluator ranking and the hourly volume. They
// prefix a UTF-8 BOM so spreadsheet programs pick the right encoding.
//
// Example usage:
//
//	w.Header().Set("Content-Type", exporter.WorkbookContentType)
//	if err := exporter.WriteWorkbook(w, filtered); err != nil {
//	    return err
//	}
package exporter
