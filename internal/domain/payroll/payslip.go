package payroll

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"schoolerp/internal/domain/auth"
	"schoolerp/internal/domain/notifications"
	"schoolerp/internal/platform/email"
	"schoolerp/internal/platform/events"
)

// PayslipDocument is everything printed on one payslip.
type PayslipDocument struct {
	Institution string
	Number      string
	Currency    string
	BankAccount string
	Employee    PayrollEmployee
	Breakdown   Breakdown
}

func PayslipNumber(periodID, employeeNo string) string {
	return "PS-" + periodID + "-" + employeeNo
}

// VerificationCode binds the payslip number to the employee and net pay so
// a printed copy can be checked against the stored calculation.
func VerificationCode(number, employeeID, net string) string {
	sum := sha256.Sum256([]byte(number + "|" + employeeID + "|" + net))
	return strings.ToUpper(hex.EncodeToString(sum[:6]))
}

// MaskAccount keeps the last four characters of an account number.
func MaskAccount(account string) string {
	account = strings.TrimSpace(account)
	if len(account) <= 4 {
		return account
	}
	return strings.Repeat("*", len(account)-4) + account[len(account)-4:]
}

// RenderPayslip draws the payslip as an A4 PDF.
func RenderPayslip(doc PayslipDocument) ([]byte, error) {
	calc := doc.Breakdown.Calculation
	period := doc.Breakdown.Period
	money := func(v interface{ StringFixed(int32) string }) string {
		return doc.Currency + " " + v.StringFixed(2)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payslip "+doc.Number, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, tr(doc.Institution), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, tr("Payslip for "+period.Name), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("%s to %s", period.StartDate.Format("02 Jan 2006"), period.EndDate.Format("02 Jan 2006")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range payslipInfo(doc, tr) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, row[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	table := func(title string, lines []Detail, totalLabel, total string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(130, 7, title, "1", 0, "L", true, 0, "")
		pdf.CellFormat(50, 7, "Amount", "1", 1, "R", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, d := range lines {
			label := d.Description
			if d.Units.Valid && d.Rate.Valid {
				label = fmt.Sprintf("%s (%s x %s)", label, d.Units.Decimal.StringFixed(2), d.Rate.Decimal.StringFixed(2))
			}
			pdf.CellFormat(130, 6, tr(label), "1", 0, "L", false, 0, "")
			pdf.CellFormat(50, 6, money(d.Amount), "1", 1, "R", false, 0, "")
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(130, 7, totalLabel, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, total, "1", 1, "R", false, 0, "")
		pdf.Ln(3)
	}
	table("Earnings", doc.Breakdown.Earnings, "Gross Pay", money(calc.GrossPay))
	table("Deductions", doc.Breakdown.Deductions, "Total Deductions", money(calc.TotalDeductions))

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(130, 9, "NET PAY", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 9, money(calc.NetPay), "1", 1, "R", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Taxable income: %s   Employer pension: %s", money(calc.TaxableIncome), money(calc.PensionEmployer)), "", 1, "L", false, 0, "")

	code := VerificationCode(doc.Number, doc.Employee.EmployeeID, calc.NetPay.StringFixed(2))
	png, err := qrcode.Encode(doc.Number+"|"+code, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode payslip qr: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("verify", opts, bytes.NewReader(png))
	y := pdf.GetY() + 4
	pdf.ImageOptions("verify", 15, y, 30, 30, false, opts, 0, "")
	pdf.SetXY(50, y+10)
	pdf.CellFormat(0, 5, "Verification code: "+code, "", 1, "L", false, 0, "")

	pdf.SetY(-20)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 5, "This is a computer-generated payslip and does not require a signature.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// payslipInfo lists the employee block of the payslip with every value passed
// through tr so names outside ASCII survive the core fonts.
func payslipInfo(doc PayslipDocument, tr func(string) string) [][2]string {
	calc := doc.Breakdown.Calculation
	info := [][2]string{
		{"Payslip No", doc.Number},
		{"Employee No", doc.Employee.EmployeeNo},
		{"Name", doc.Employee.FullName},
		{"Category", strings.ReplaceAll(doc.Employee.Category, "_", " ")},
		{"Payment Date", doc.Breakdown.Period.PaymentDate.Format("02 Jan 2006")},
		{"Payment Method", strings.ReplaceAll(calc.PaymentMethod, "_", " ")},
	}
	if doc.BankAccount != "" {
		info = append(info, [2]string{"Bank Account", MaskAccount(doc.BankAccount)})
	}
	for i := range info {
		info[i][1] = tr(info[i][1])
	}
	return info
}

func payslipKey(periodID, number string) string {
	return "payslips/" + periodID + "/" + number + ".pdf"
}

func payslipReleased(p Period) bool {
	return p.Status == PeriodApproved || p.Status == PeriodPaid || p.Status == PeriodClosed
}

// GeneratePayslips renders and stores a payslip for each calculation of an
// approved period. Failures are collected per employee.
func (s *Service) GeneratePayslips(ctx context.Context, user auth.UserContext, periodID string) (GenerateResult, error) {
	if s.Files == nil {
		return GenerateResult{}, ErrStorageDisabled
	}
	period, err := s.Store.GetPeriod(ctx, s.Store.Pool(), periodID)
	if err != nil {
		return GenerateResult{}, err
	}
	if !payslipReleased(period) {
		return GenerateResult{}, fmt.Errorf("%w: payslips need an approved period, this one is %s", ErrInvalidTransition, period.Status)
	}
	calcs, err := s.Store.ListCalculations(ctx, periodID)
	if err != nil {
		return GenerateResult{}, err
	}
	result := GenerateResult{Errors: []string{}}
	for _, calc := range calcs {
		if err := s.generateOne(ctx, period, calc); err != nil {
			slog.Warn("payslip generation failed", "periodId", periodID, "employeeNo", calc.EmployeeNo, "err", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", calc.EmployeeNo, err))
			continue
		}
		result.Generated++
	}
	s.record(ctx, user, "payroll.payslips.generate", "payroll_period", periodID, nil, result)
	return result, nil
}

func (s *Service) generateOne(ctx context.Context, period Period, calc Calculation) error {
	data, err := s.renderCalculation(ctx, period, calc)
	if err != nil {
		return err
	}
	number := PayslipNumber(period.ID, calc.EmployeeNo)
	key := payslipKey(period.ID, number)
	if err := s.Files.Put(ctx, key, data, "application/pdf"); err != nil {
		return fmt.Errorf("store payslip: %w", err)
	}
	id, err := s.Store.UpsertPayslip(ctx, Payslip{
		CalculationID:  calc.ID,
		EmployeeID:     calc.EmployeeID,
		PeriodID:       period.ID,
		Number:         number,
		GenerationDate: s.Now(),
		StorageKey:     key,
	})
	if err != nil {
		return err
	}
	if err := s.Outbox.Add(ctx, s.Store.Pool(), events.TypePayslipGenerated, id, map[string]string{
		"payslipId":  id,
		"employeeId": calc.EmployeeID,
		"periodId":   period.ID,
		"number":     number,
	}); err != nil {
		slog.Warn("payslip event not recorded", "payslipId", id, "err", err)
	}
	s.Notifications.NotifyEmployee(ctx, calc.EmployeeID, notifications.TypePayslipPublished,
		"Payslip available", fmt.Sprintf("Your payslip for %s is ready.", period.Name))
	return nil
}

func (s *Service) renderCalculation(ctx context.Context, period Period, calc Calculation) ([]byte, error) {
	emp, err := s.Store.Contact(ctx, calc.EmployeeID)
	if err != nil {
		return nil, err
	}
	details, err := s.Store.Details(ctx, calc.ID)
	if err != nil {
		return nil, err
	}
	account, err := s.Crypto.OpenString(calc.BankAccountNumber)
	if err != nil {
		return nil, fmt.Errorf("open bank account: %w", err)
	}
	b := Breakdown{Calculation: calc, Period: period}
	for _, d := range details {
		if d.ItemType == ItemEarning {
			b.Earnings = append(b.Earnings, d)
		} else {
			b.Deductions = append(b.Deductions, d)
		}
	}
	return RenderPayslip(PayslipDocument{
		Institution: s.opts.Institution,
		Number:      PayslipNumber(period.ID, calc.EmployeeNo),
		Currency:    emp.Currency,
		BankAccount: account,
		Employee:    emp,
		Breakdown:   b,
	})
}

func (s *Service) accessiblePayslip(ctx context.Context, user auth.UserContext, id string) (Payslip, error) {
	p, err := s.Store.GetPayslip(ctx, id)
	if err != nil {
		return Payslip{}, err
	}
	if auth.ScopeFor(user.RoleName) != auth.ScopeAll && p.EmployeeID != user.EmployeeID {
		return Payslip{}, ErrForbidden
	}
	return p, nil
}

// DownloadPayslip returns the stored PDF and marks the payslip downloaded.
func (s *Service) DownloadPayslip(ctx context.Context, user auth.UserContext, id string) (Payslip, []byte, error) {
	if s.Files == nil {
		return Payslip{}, nil, ErrStorageDisabled
	}
	p, err := s.accessiblePayslip(ctx, user, id)
	if err != nil {
		return Payslip{}, nil, err
	}
	data, err := s.Files.Get(ctx, p.StorageKey)
	if err != nil {
		return Payslip{}, nil, fmt.Errorf("read payslip: %w", err)
	}
	now := s.Now()
	if err := s.Store.MarkDownloaded(ctx, p.ID, now); err != nil {
		return Payslip{}, nil, err
	}
	p.Downloaded = true
	p.DownloadDate = &now
	return p, data, nil
}

// EmailPayslip sends the PDF to the employee's official address.
func (s *Service) EmailPayslip(ctx context.Context, user auth.UserContext, id string) (Payslip, error) {
	if s.Files == nil {
		return Payslip{}, ErrStorageDisabled
	}
	p, err := s.accessiblePayslip(ctx, user, id)
	if err != nil {
		return Payslip{}, err
	}
	emp, err := s.Store.Contact(ctx, p.EmployeeID)
	if err != nil {
		return Payslip{}, err
	}
	if strings.TrimSpace(emp.OfficialEmail) == "" {
		return Payslip{}, ErrNoEmail
	}
	data, err := s.Files.Get(ctx, p.StorageKey)
	if err != nil {
		return Payslip{}, fmt.Errorf("read payslip: %w", err)
	}
	if s.Mailer == nil {
		return Payslip{}, errors.New("mailer is not configured")
	}
	err = s.Mailer.Send(ctx, email.Message{
		To:      emp.OfficialEmail,
		Subject: fmt.Sprintf("Payslip for %s", p.PeriodName),
		Body:    fmt.Sprintf("Dear %s,\n\nPlease find attached your payslip for %s.\n\n%s", emp.FullName, p.PeriodName, s.opts.Institution),
		Attachments: []email.Attachment{{
			Filename:    p.Number + ".pdf",
			ContentType: "application/pdf",
			Content:     data,
		}},
	})
	if err != nil {
		return Payslip{}, fmt.Errorf("send payslip: %w", err)
	}
	now := s.Now()
	if err := s.Store.MarkEmailed(ctx, p.ID, now); err != nil {
		return Payslip{}, err
	}
	p.EmailSent = true
	p.EmailSentDate = &now
	s.record(ctx, user, "payroll.payslip.email", "payslip", p.ID, nil, map[string]string{"to": emp.OfficialEmail})
	return p, nil
}

func (s *Service) MyPayslips(ctx context.Context, user auth.UserContext) ([]Payslip, error) {
	if user.EmployeeID == "" {
		return []Payslip{}, nil
	}
	return s.Store.ListPayslips(ctx, user.EmployeeID)
}

// RenderFor draws a released payslip straight from the stored calculation,
// without touching the payslip archive.
func (s *Service) RenderFor(ctx context.Context, user auth.UserContext, periodID, employeeID string) (string, []byte, error) {
	if auth.ScopeFor(user.RoleName) != auth.ScopeAll && employeeID != user.EmployeeID {
		return "", nil, ErrForbidden
	}
	period, err := s.Store.GetPeriod(ctx, s.Store.Pool(), periodID)
	if err != nil {
		return "", nil, err
	}
	if !payslipReleased(period) {
		return "", nil, fmt.Errorf("%w: payslips are released once the period is approved", ErrInvalidTransition)
	}
	calcs, err := s.Store.ListCalculations(ctx, periodID)
	if err != nil {
		return "", nil, err
	}
	for _, calc := range calcs {
		if calc.EmployeeID != employeeID {
			continue
		}
		pdf, err := s.renderCalculation(ctx, period, calc)
		if err != nil {
			return "", nil, err
		}
		return PayslipNumber(period.ID, calc.EmployeeNo), pdf, nil
	}
	return "", nil, ErrNotFound
}
