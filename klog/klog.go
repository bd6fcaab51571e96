// Package klog renders the boxed, column-aligned boot-time report
// tables the kernel prints during bring-up -- the physical-memory
// breakdown, the core topology summary -- the same job
// kernel::util::log::println and pmm::report() do in the reference
// kernel. It is a formatting helper, not a leveled logging framework:
// ordinary kernel diagnostics still go through plain fmt.Printf, the
// way biscuit's kernel core does.
package klog

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// ByteSize renders n bytes as the largest whole unit that keeps at
// least one digit before the decimal point, matching the
// GiB/MiB/KiB breakdown pmm::report() prints.
func ByteSize(n uint64) string {
	switch {
	case n >= 1<<30:
		return printer.Sprintf("%s GiB", number.Decimal(float64(n)/(1<<30), number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	case n >= 1<<20:
		return printer.Sprintf("%s MiB", number.Decimal(float64(n)/(1<<20), number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	case n >= 1<<10:
		return printer.Sprintf("%s KiB", number.Decimal(float64(n)/(1<<10), number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// Table returns a simple column-aligned table: headers followed by one
// row per entry in rows, each row being a slice of already-formatted
// cell strings of the same length as headers.
func Table(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	out := ""
	for i, h := range headers {
		out += fmt.Sprintf("%-*s  ", widths[i], h)
	}
	out += "\n"
	for _, row := range rows {
		for i, cell := range row {
			out += fmt.Sprintf("%-*s  ", widths[i], cell)
		}
		out += "\n"
	}
	return out
}
