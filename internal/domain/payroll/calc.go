package payroll

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// EarningLine is one earning source for an employee before its amount is
// resolved. Method is a profile component method or an employee earning
// basis.
type EarningLine struct {
	Code          string
	Description   string
	Category      string
	GLAccountCode string
	Taxable       bool
	Pensionable   bool
	Method        string
	Amount        decimal.Decimal
	Percentage    decimal.Decimal
	Units         decimal.Decimal
	Rate          decimal.Decimal
	SortOrder     int
}

type DeductionLine struct {
	Code          string
	Description   string
	Category      string
	GLAccountCode string
	Method        string
	Amount        decimal.Decimal
	Percentage    decimal.Decimal
	Max           decimal.NullDecimal
	Balance       decimal.NullDecimal
	SortOrder     int
}

// Input is everything the engine needs for one employee and period.
type Input struct {
	Basic         decimal.Decimal
	Earnings      []EarningLine
	Deductions    []DeductionLine
	OvertimeHours decimal.Decimal
	Encashment    decimal.Decimal
	Bands         []TaxBand
	Settings      Settings
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// percentOf takes pct on a 0 to 100 scale. Tax band and pension rates are
// fractions and are multiplied directly.
func percentOf(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// HourlyRate spreads the monthly basic over the configured working hours.
func HourlyRate(basic decimal.Decimal, s Settings) decimal.Decimal {
	hours := decimal.NewFromInt(int64(s.WorkingDaysPerMonth * s.HoursPerDay))
	if !hours.IsPositive() {
		return decimal.Zero
	}
	return basic.Div(hours)
}

// ProgressiveTax applies each band's rate to the slice of income inside it.
// A band without an upper bound is open ended.
func ProgressiveTax(income decimal.Decimal, bands []TaxBand) decimal.Decimal {
	sorted := append([]TaxBand(nil), bands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lower.LessThan(sorted[j].Lower) })
	tax := decimal.Zero
	for _, b := range sorted {
		if !income.GreaterThan(b.Lower) {
			break
		}
		top := income
		if b.Upper.Valid && b.Upper.Decimal.LessThan(income) {
			top = b.Upper.Decimal
		}
		tax = tax.Add(top.Sub(b.Lower).Mul(b.Rate))
	}
	return round(tax)
}

func earningAmount(line EarningLine, basic decimal.Decimal) decimal.Decimal {
	switch line.Method {
	case MethodPercentageOfBasic, BasisPercentage:
		return percentOf(basic, line.Percentage)
	case BasisHours, BasisRate:
		return line.Units.Mul(line.Rate)
	default:
		return line.Amount
	}
}

func deductionAmount(line DeductionLine, basic, gross decimal.Decimal) decimal.Decimal {
	amount := line.Amount
	switch line.Method {
	case MethodPercentageOfBasic:
		amount = percentOf(basic, line.Percentage)
	case MethodPercentageOfGross:
		amount = percentOf(gross, line.Percentage)
	}
	if line.Max.Valid && amount.GreaterThan(line.Max.Decimal) {
		amount = line.Max.Decimal
	}
	if line.Balance.Valid && amount.GreaterThan(line.Balance.Decimal) {
		amount = line.Balance.Decimal
	}
	return round(amount)
}

// Compute calculates one employee's pay. Every amount is rounded to cents
// before it is summed, so the earning details add up to GrossPay and the
// deduction details add up to TotalDeductions exactly.
func Compute(in Input) (Calculation, []Detail) {
	s := in.Settings
	basic := round(in.Basic)
	var details []Detail
	var calc Calculation
	taxable := decimal.Zero
	pensionable := decimal.Zero
	gross := decimal.Zero

	addEarning := func(d Detail) {
		d.ItemType = ItemEarning
		d.Amount = round(d.Amount)
		if !d.Amount.IsPositive() {
			return
		}
		d.SortOrder = len(details) + 1
		details = append(details, d)
		gross = gross.Add(d.Amount)
		if d.IsTaxable {
			taxable = taxable.Add(d.Amount)
		}
		if d.IsPensionable {
			pensionable = pensionable.Add(d.Amount)
		}
		switch d.Category {
		case EarningAllowance:
			calc.TotalAllowances = calc.TotalAllowances.Add(d.Amount)
		case EarningOvertime:
			calc.TotalOvertime = calc.TotalOvertime.Add(d.Amount)
		case EarningBonus, EarningCommission:
			calc.TotalBonuses = calc.TotalBonuses.Add(d.Amount)
		}
	}

	addEarning(Detail{Code: "BASIC", Category: EarningBasic, Description: "Basic salary", Amount: basic, IsTaxable: true, IsPensionable: true})
	earnings := append([]EarningLine(nil), in.Earnings...)
	sort.SliceStable(earnings, func(i, j int) bool { return earnings[i].SortOrder < earnings[j].SortOrder })
	for _, line := range earnings {
		d := Detail{
			Code:          line.Code,
			Category:      line.Category,
			Description:   line.Description,
			Amount:        earningAmount(line, basic),
			IsTaxable:     line.Taxable,
			IsPensionable: line.Pensionable,
			GLAccountCode: line.GLAccountCode,
		}
		if line.Method == BasisHours || line.Method == BasisRate {
			d.Units = decimal.NewNullDecimal(line.Units)
			d.Rate = decimal.NewNullDecimal(line.Rate)
		}
		addEarning(d)
	}
	if in.OvertimeHours.IsPositive() {
		rate := HourlyRate(basic, s).Mul(s.OvertimeMultiplier).Round(4)
		addEarning(Detail{
			Code:        "OVERTIME",
			Category:    EarningOvertime,
			Description: "Approved overtime",
			Amount:      in.OvertimeHours.Mul(rate),
			IsTaxable:   true,
			Units:       decimal.NewNullDecimal(in.OvertimeHours),
			Rate:        decimal.NewNullDecimal(rate),
		})
	}
	if in.Encashment.IsPositive() {
		addEarning(Detail{Code: "LEAVE_ENCASH", Category: EarningAllowance, Description: "Leave encashment", Amount: in.Encashment, IsTaxable: true})
	}

	addDeduction := func(d Detail, bucket *decimal.Decimal) {
		d.ItemType = ItemDeduction
		if !d.Amount.IsPositive() {
			return
		}
		d.SortOrder = len(details) + 1
		details = append(details, d)
		*bucket = bucket.Add(d.Amount)
		calc.TotalDeductions = calc.TotalDeductions.Add(d.Amount)
	}

	calc.PensionEmployee = round(pensionable.Mul(s.PensionEmployeeRate))
	calc.PensionEmployer = round(pensionable.Mul(s.PensionEmployerRate))
	calc.TaxableIncome = taxable.Sub(calc.PensionEmployee)
	if calc.TaxableIncome.IsNegative() {
		calc.TaxableIncome = decimal.Zero
	}
	calc.TaxAmount = ProgressiveTax(calc.TaxableIncome, in.Bands).Sub(round(s.PersonalRelief))
	if calc.TaxAmount.IsNegative() {
		calc.TaxAmount = decimal.Zero
	}

	addDeduction(Detail{Code: "PAYE", Category: DeductionStatutory, Description: "Income tax"}.withAmount(calc.TaxAmount), &calc.TotalStatutory)
	addDeduction(Detail{Code: "PENSION", Category: DeductionStatutory, Description: "Employee pension"}.withAmount(calc.PensionEmployee), &calc.TotalStatutory)

	deductions := append([]DeductionLine(nil), in.Deductions...)
	sort.SliceStable(deductions, func(i, j int) bool { return deductions[i].SortOrder < deductions[j].SortOrder })
	for _, line := range deductions {
		d := Detail{
			Code:          line.Code,
			Category:      line.Category,
			Description:   line.Description,
			Amount:        deductionAmount(line, basic, gross),
			GLAccountCode: line.GLAccountCode,
		}
		switch line.Category {
		case DeductionVoluntary:
			addDeduction(d, &calc.TotalVoluntary)
		case DeductionLoan, DeductionAdvance:
			addDeduction(d, &calc.TotalLoan)
		default:
			addDeduction(d, &calc.TotalStatutory)
		}
	}

	calc.BasicSalary = basic
	calc.GrossPay = gross
	calc.TotalEarnings = gross
	calc.NetPay = gross.Sub(calc.TotalDeductions)
	calc.EmployerCost = gross.Add(calc.PensionEmployer)
	return calc, details
}

func (d Detail) withAmount(amount decimal.Decimal) Detail {
	d.Amount = amount
	return d
}

// SumDetails totals the lines of one item type.
func SumDetails(details []Detail, itemType string) decimal.Decimal {
	total := decimal.Zero
	for _, d := range details {
		if d.ItemType == itemType {
			total = total.Add(d.Amount)
		}
	}
	return total
}

// DefaultSettings applies when payroll_settings has no row yet.
func DefaultSettings() Settings {
	return Settings{
		PensionEmployeeRate: decimal.RequireFromString("0.05"),
		PensionEmployerRate: decimal.RequireFromString("0.10"),
		PersonalRelief:      decimal.Zero,
		OvertimeMultiplier:  decimal.RequireFromString("1.5"),
		WorkingDaysPerMonth: 22,
		HoursPerDay:         8,
	}
}
