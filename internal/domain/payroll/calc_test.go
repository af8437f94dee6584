package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func standardSettings() Settings {
	return Settings{
		PensionEmployeeRate: d("0.05"),
		PensionEmployerRate: d("0.10"),
		PersonalRelief:      d("50"),
		OvertimeMultiplier:  d("1.5"),
		WorkingDaysPerMonth: 22,
		HoursPerDay:         8,
	}
}

func standardBands() []TaxBand {
	return []TaxBand{
		{Lower: d("3000"), Rate: d("0.20")},
		{Lower: d("0"), Upper: decimal.NewNullDecimal(d("1000")), Rate: d("0")},
		{Lower: d("1000"), Upper: decimal.NewNullDecimal(d("3000")), Rate: d("0.10")},
	}
}

func TestProgressiveTax(t *testing.T) {
	bands := standardBands()
	assert.True(t, ProgressiveTax(d("800"), bands).IsZero())
	assert.True(t, ProgressiveTax(d("2000"), bands).Equal(d("100")))
	assert.True(t, ProgressiveTax(d("4005.68"), bands).Equal(d("401.14")))
	assert.True(t, ProgressiveTax(d("5000"), nil).IsZero())
}

func TestComputeFullPayslip(t *testing.T) {
	calc, details := Compute(Input{
		Basic: d("3000"),
		Earnings: []EarningLine{
			{Code: "HOUSING", Category: EarningAllowance, Method: MethodFixed, Amount: d("500"), Taxable: true, SortOrder: 1},
			{Code: "TRANSPORT", Category: EarningAllowance, Method: MethodPercentageOfBasic, Percentage: d("10"), Taxable: true, SortOrder: 2},
		},
		Deductions: []DeductionLine{
			{Code: "UNION", Category: DeductionVoluntary, Method: MethodPercentageOfGross, Percentage: d("2")},
			{Code: "LOAN", Category: DeductionLoan, Method: MethodFixed, Amount: d("500"), Balance: decimal.NewNullDecimal(d("200"))},
		},
		OvertimeHours: d("10"),
		Encashment:    d("100"),
		Bands:         standardBands(),
		Settings:      standardSettings(),
	})

	assert.True(t, calc.GrossPay.Equal(d("4155.68")), calc.GrossPay.String())
	assert.True(t, calc.TotalAllowances.Equal(d("900")))
	assert.True(t, calc.TotalOvertime.Equal(d("255.68")))
	assert.True(t, calc.PensionEmployee.Equal(d("150")))
	assert.True(t, calc.PensionEmployer.Equal(d("300")))
	assert.True(t, calc.TaxableIncome.Equal(d("4005.68")))
	assert.True(t, calc.TaxAmount.Equal(d("351.14")))
	assert.True(t, calc.TotalVoluntary.Equal(d("83.11")))
	assert.True(t, calc.TotalLoan.Equal(d("200")))
	assert.True(t, calc.TotalDeductions.Equal(d("784.25")), calc.TotalDeductions.String())
	assert.True(t, calc.NetPay.Equal(d("3371.43")))
	assert.True(t, calc.EmployerCost.Equal(d("4455.68")))

	require.NotEmpty(t, details)
	assert.Equal(t, "BASIC", details[0].Code)
	for i, line := range details {
		assert.Equal(t, i+1, line.SortOrder)
	}
}

func TestDetailsSumToTotals(t *testing.T) {
	inputs := []Input{
		{Basic: d("1234.57"), Settings: standardSettings(), Bands: standardBands()},
		{
			Basic:    d("2999.99"),
			Settings: standardSettings(),
			Bands:    standardBands(),
			Earnings: []EarningLine{
				{Code: "RESP", Category: EarningAllowance, Method: MethodPercentageOfBasic, Percentage: d("7.5"), Taxable: true, Pensionable: true},
				{Code: "TUTOR", Category: EarningCommission, Method: BasisHours, Units: d("3.5"), Rate: d("41.333")},
			},
			Deductions: []DeductionLine{
				{Code: "SACCO", Category: DeductionVoluntary, Method: MethodPercentageOfBasic, Percentage: d("3.33")},
				{Code: "ADV", Category: DeductionAdvance, Method: MethodPercentageOfGross, Percentage: d("12.5"), Max: decimal.NewNullDecimal(d("250"))},
			},
			OvertimeHours: d("7.25"),
			Encashment:    d("136.36"),
		},
	}
	for _, in := range inputs {
		calc, details := Compute(in)
		assert.True(t, SumDetails(details, ItemEarning).Equal(calc.GrossPay))
		assert.True(t, SumDetails(details, ItemDeduction).Equal(calc.TotalDeductions))
		assert.True(t, calc.NetPay.Equal(calc.GrossPay.Sub(calc.TotalDeductions)))
		assert.True(t, calc.TotalDeductions.Equal(calc.TotalStatutory.Add(calc.TotalVoluntary).Add(calc.TotalLoan)))
		for _, line := range details {
			assert.True(t, line.Amount.Equal(line.Amount.Round(2)), line.Code)
		}
	}
}

func TestComputeReliefNeverMakesTaxNegative(t *testing.T) {
	s := standardSettings()
	s.PersonalRelief = d("1000")
	calc, details := Compute(Input{Basic: d("1500"), Settings: s, Bands: standardBands()})
	assert.True(t, calc.TaxAmount.IsZero())
	for _, line := range details {
		assert.NotEqual(t, "PAYE", line.Code)
	}
}

func TestDeductionCaps(t *testing.T) {
	line := DeductionLine{Method: MethodPercentageOfGross, Percentage: d("50"), Max: decimal.NewNullDecimal(d("300"))}
	assert.True(t, deductionAmount(line, d("1000"), d("1000")).Equal(d("300")))

	line = DeductionLine{Method: MethodFixed, Amount: d("100"), Balance: decimal.NewNullDecimal(d("0"))}
	assert.True(t, deductionAmount(line, d("1000"), d("1000")).IsZero())
}

func TestHourlyRate(t *testing.T) {
	assert.True(t, HourlyRate(d("1760"), standardSettings()).Equal(d("10")))
	assert.True(t, HourlyRate(d("1760"), Settings{}).IsZero())
}
