// Package sequence generates the human-readable, year-scoped numbers printed
// on purchase orders, invoices and proformas.
//
// Numbers are derived from the documents that already exist rather than from
// a stored counter, so deleting a document leaves a gap that is never reused
// unless it was the highest number of its year.
package sequence

import (
	"fmt"
	"regexp"
	"strconv"

	"caisse/internal/domain"
)

const purchaseOrderPrefix = "BA-"

var (
	plainPattern         = regexp.MustCompile(`^(\d+)-(\d{4})$`)
	purchaseOrderPattern = regexp.MustCompile(`^BA-(\d+)-(\d{4})$`)
)

// Numbered reports whether documents of the kind carry a sequence number.
func Numbered(kind domain.DocumentKind) bool {
	switch kind {
	case domain.KindPurchaseOrder, domain.KindInvoice, domain.KindProforma:
		return true
	}
	return false
}

func Format(kind domain.DocumentKind, seq, year int) string {
	number := fmt.Sprintf("%03d-%04d", seq, year)
	if kind == domain.KindPurchaseOrder {
		return purchaseOrderPrefix + number
	}
	return number
}

// Parse extracts the sequence and year of a number of the given kind.
func Parse(kind domain.DocumentKind, number string) (seq, year int, ok bool) {
	pattern := plainPattern
	if kind == domain.KindPurchaseOrder {
		pattern = purchaseOrderPattern
	}
	match := pattern.FindStringSubmatch(number)
	if match == nil {
		return 0, 0, false
	}
	seq, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, 0, false
	}
	year, err = strconv.Atoi(match[2])
	if err != nil {
		return 0, 0, false
	}
	return seq, year, true
}

// ScanResult is the outcome of scanning existing numbers for one year.
type ScanResult struct {
	Max       int
	Malformed []string
}

// Scan finds the highest sequence issued in year. Numbers that do not match
// the kind's pattern are collected in Malformed and otherwise ignored.
func Scan(existing []string, kind domain.DocumentKind, year int) ScanResult {
	var result ScanResult
	for _, number := range existing {
		seq, numberYear, ok := Parse(kind, number)
		if !ok {
			result.Malformed = append(result.Malformed, number)
			continue
		}
		if numberYear != year {
			continue
		}
		if seq > result.Max {
			result.Max = seq
		}
	}
	return result
}

// Next returns the number that follows the highest one issued in year.
func Next(existing []string, kind domain.DocumentKind, year int) string {
	return Format(kind, Scan(existing, kind, year).Max+1, year)
}

// LockKey names the critical section shared by every caller numbering
// documents of kind in year.
func LockKey(kind domain.DocumentKind, year int) string {
	return fmt.Sprintf("seq:%s:%d", kind, year)
}
