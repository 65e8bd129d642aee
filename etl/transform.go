package etl

import (
	"math"
	"time"

	"ledgerline.com/xerobi/xero"
)

const (
	rollingWeeks = 8

	// Label of the wages line in the profit and loss report when the
	// wages account cannot tell us its own name.
	defaultWagesLabel = "Wages and Salaries"

	costOfSalesLabel       = "Cost of Sales"
	operatingExpensesLabel = "Operating Expenses"
)

// Metrics are the derived numbers stored on the daily cache row.
type Metrics struct {
	WeeklyIncome           float64
	AvgWages               float64
	AvgExpenses            float64
	TotalCostOfSales       float64
	TotalOperatingExpenses float64
}

// Transform derives the cache metrics from one user's extracted data.
func Transform(transactions []xero.BankTransaction, accounts []xero.Account, report *xero.Report, now time.Time) Metrics {
	wagesLabel := defaultWagesLabel
	if len(accounts) > 0 && accounts[0].Name != "" {
		wagesLabel = accounts[0].Name
	}

	var rows []xero.Row
	if report != nil {
		rows = report.Rows
	}

	return Metrics{
		WeeklyIncome:           WeeklyIncome(transactions, now),
		AvgWages:               RollingAverage(report, wagesLabel, rollingWeeks),
		AvgExpenses:            RollingAverage(report, operatingExpensesLabel, rollingWeeks),
		TotalCostOfSales:       xero.FindReportValue(rows, costOfSalesLabel),
		TotalOperatingExpenses: xero.FindReportValue(rows, operatingExpensesLabel),
	}
}

// WeeklyIncome sums RECEIVE transactions dated within the trailing seven
// days of now, rounded to two decimal places.
func WeeklyIncome(transactions []xero.BankTransaction, now time.Time) float64 {
	cutoff := now.AddDate(0, 0, -7)

	var total float64
	for _, t := range transactions {
		if t.Type != "RECEIVE" {
			continue
		}
		if t.Date.Time.Before(cutoff) {
			continue
		}
		total += t.Total
	}
	return round2(total)
}

// RollingAverage finds the report row matching label and averages its
// trailing numeric period cells, at most weeks of them. Returns 0 when the
// report, the row, or any numeric cells are missing.
func RollingAverage(report *xero.Report, label string, weeks int) float64 {
	if report == nil || weeks <= 0 {
		return 0
	}
	row := xero.FindReportRow(report.Rows, label)
	if row == nil {
		return 0
	}

	values := periodValues(row)
	if len(values) == 0 {
		return 0
	}
	if len(values) > weeks {
		values = values[len(values)-weeks:]
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return round2(sum / float64(len(values)))
}

// periodValues extracts the numeric cells of a row. Section rows carry no
// cells of their own, so their summary row is used instead.
func periodValues(row *xero.Row) []float64 {
	var values []float64
	for _, cell := range row.Cells {
		if v, ok := cell.Float(); ok {
			values = append(values, v)
		}
	}
	if len(values) > 0 {
		return values
	}

	for i := range row.Rows {
		if row.Rows[i].RowType == "SummaryRow" {
			return periodValues(&row.Rows[i])
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
