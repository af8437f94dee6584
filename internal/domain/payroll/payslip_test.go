package payroll

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolerp/internal/platform/email"
	"schoolerp/internal/platform/storage"
)

func TestRenderPayslipProducesPDF(t *testing.T) {
	calc, details := Compute(Input{Basic: d("3000"), Bands: standardBands(), Settings: standardSettings()})
	calc.PaymentMethod = "bank_transfer"
	b := Breakdown{
		Calculation: calc,
		Period: Period{Name: "March 2026", StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), PaymentDate: time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC)},
	}
	for _, line := range details {
		if line.ItemType == ItemEarning {
			b.Earnings = append(b.Earnings, line)
		} else {
			b.Deductions = append(b.Deductions, line)
		}
	}
	pdf, err := RenderPayslip(PayslipDocument{
		Institution: "Test Academy",
		Number:      PayslipNumber("p1", "T001"),
		Currency:    "USD",
		BankAccount: "0012345678",
		Employee:    PayrollEmployee{EmployeeID: "e1", EmployeeNo: "T001", FullName: "Ama Mensah", Category: "teaching"},
		Breakdown:   b,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestPayslipEncodesAccentedNames(t *testing.T) {
	calc, details := Compute(Input{Basic: d("3000"), Bands: standardBands(), Settings: standardSettings()})
	doc := PayslipDocument{
		Institution: "Académie Saint-Éloi",
		Number:      PayslipNumber("p1", "T002"),
		Currency:    "EUR",
		Employee:    PayrollEmployee{EmployeeID: "e2", EmployeeNo: "T002", FullName: "Zoë Müller", Category: "teaching"},
		Breakdown: Breakdown{
			Calculation: calc,
			Earnings:    details[:1],
			Period:      Period{Name: "Février 2026", PaymentDate: time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)},
		},
	}

	tr := gofpdf.New("P", "mm", "A4", "").UnicodeTranslatorFromDescriptor("")
	info := payslipInfo(doc, tr)
	assert.Equal(t, "Name", info[2][0])
	assert.Equal(t, "Zo\xeb M\xfcller", info[2][1])

	pdf, err := RenderPayslip(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestVerificationCodeIsStable(t *testing.T) {
	a := VerificationCode("PS-p1-T001", "e1", "3371.43")
	assert.Len(t, a, 12)
	assert.Equal(t, a, VerificationCode("PS-p1-T001", "e1", "3371.43"))
	assert.NotEqual(t, a, VerificationCode("PS-p1-T001", "e1", "3371.44"))
}

func TestMaskAccount(t *testing.T) {
	assert.Equal(t, "******5678", MaskAccount("0012345678"))
	assert.Equal(t, "123", MaskAccount("123"))
}

func TestPayslipGenerateDownloadEmail(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	mailer := &email.NoopMailer{}
	svc.Files = files
	svc.Mailer = mailer
	ctx := context.Background()

	id := store.addPeriod(PeriodOpen, false)
	_, err = svc.Process(ctx, payUser, id, true)
	require.NoError(t, err)

	_, err = svc.GeneratePayslips(ctx, payUser, id)
	assert.ErrorIs(t, err, ErrInvalidTransition, "payslips wait for approval")

	_, err = svc.Approve(ctx, hrUser, id)
	require.NoError(t, err)
	res, err := svc.GeneratePayslips(ctx, payUser, id)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Generated)
	assert.Empty(t, res.Errors)

	again, err := svc.GeneratePayslips(ctx, payUser, id)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Generated)
	assert.Len(t, store.payslips, 2, "regenerating keeps one payslip per calculation")

	var ama, kofi Payslip
	for _, p := range store.payslips {
		switch p.EmployeeID {
		case "e1":
			ama = p
		case "e2":
			kofi = p
		}
	}
	assert.Equal(t, "PS-"+id+"-T001", ama.Number)

	_, _, err = svc.DownloadPayslip(ctx, staffUser, ama.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	p, data, err := svc.DownloadPayslip(ctx, staffUser, kofi.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.True(t, p.Downloaded)
	assert.True(t, store.downloaded[kofi.ID])

	_, err = svc.EmailPayslip(ctx, payUser, kofi.ID)
	assert.ErrorIs(t, err, ErrNoEmail)

	sent, err := svc.EmailPayslip(ctx, payUser, ama.ID)
	require.NoError(t, err)
	assert.True(t, sent.EmailSent)
	msgs := mailer.Sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ama@school.test", msgs[0].To)
	require.Len(t, msgs[0].Attachments, 1)
	assert.Equal(t, ama.Number+".pdf", msgs[0].Attachments[0].Filename)
	assert.True(t, bytes.HasPrefix(msgs[0].Attachments[0].Content, []byte("%PDF")))

	_, _, err = svc.RenderFor(ctx, staffUser, id, "e1")
	assert.ErrorIs(t, err, ErrForbidden)

	number, pdf, err := svc.RenderFor(ctx, staffUser, id, "e2")
	require.NoError(t, err)
	assert.Equal(t, kofi.Number, number)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestPayslipsWithoutStorage(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	svc.Files = nil
	ctx := context.Background()

	id := store.addPeriod(PeriodApproved, false)
	_, err := svc.GeneratePayslips(ctx, payUser, id)
	assert.ErrorIs(t, err, ErrStorageDisabled)

	_, _, err = svc.DownloadPayslip(ctx, payUser, "missing")
	assert.ErrorIs(t, err, ErrStorageDisabled)
}
