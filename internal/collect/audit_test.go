package collect

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hojsle/internal/domain"
)

func TestAuditMissingAndExtra(t *testing.T) {
	baseline := map[string]struct{}{
		"005930": {},
		"000660": {},
		"035720": {},
	}
	block := []domain.Quote{
		quote(day(2024, 1, 3), "005930", 70200),
		quote(day(2024, 1, 3), "123450", 5000), // newly listed
	}

	report := Audit(block, baseline)
	if want := []string{"000660", "035720"}; !equalStrings(report.Missing, want) {
		t.Errorf("Missing = %v, want %v", report.Missing, want)
	}
	if want := []string{"123450"}; !equalStrings(report.Extra, want) {
		t.Errorf("Extra = %v, want %v", report.Extra, want)
	}
}

func TestAuditFlagsInvertedHighLow(t *testing.T) {
	block := []domain.Quote{
		{Date: day(2024, 1, 3), Code: "005930", Open: 120, High: 100, Low: 150, Close: 110, Volume: 500},
		quote(day(2024, 1, 3), "000660", 134000),
	}

	report := Audit(block, nil)
	if report.BadPrice != 1 {
		t.Errorf("BadPrice = %d, want 1", report.BadPrice)
	}
	if len(report.NaNRows) != 0 {
		t.Errorf("NaNRows = %d, want 0", len(report.NaNRows))
	}
}

func TestAuditFlagsNaNAndNonPositive(t *testing.T) {
	block := []domain.Quote{
		{Date: day(2024, 1, 3), Code: "005930", Open: math.NaN(), High: 71000, Low: 69500, Close: 70500, Volume: 100},
		{Date: day(2024, 1, 3), Code: "000660", Open: 0, High: 135000, Low: 133000, Close: 134000, Volume: 100},
	}

	report := Audit(block, nil)
	if len(report.NaNRows) != 1 || report.NaNRows[0].Code != "005930" {
		t.Errorf("NaNRows = %+v, want the 005930 row", report.NaNRows)
	}
	if report.BadPrice != 1 {
		t.Errorf("BadPrice = %d, want 1 (zero open)", report.BadPrice)
	}
}

func TestAuditEmpty(t *testing.T) {
	report := Audit([]domain.Quote{quote(day(2024, 1, 3), "005930", 70200)},
		map[string]struct{}{"005930": {}})
	if !report.Empty() {
		t.Errorf("clean block should produce an empty report, got %+v", report)
	}
}

func TestDiagLogsFileNames(t *testing.T) {
	dir := t.TempDir()
	d := NewDiagLogs(dir)
	date := day(2024, 1, 5)

	report := AuditReport{
		Missing: []string{"000660"},
		Extra:   []string{"123450"},
		NaNRows: []domain.Quote{{Date: date, Code: "005930", Open: math.NaN(), High: 71000, Low: 69500, Close: 70500, Volume: 100}},
	}
	if err := d.WriteAudit(date, report); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}

	outcome := domain.NewOutcome()
	outcome.Failed["999999"] = struct{}{}
	outcome.Fallback["005930"] = struct{}{}
	if err := d.WriteOutcome(date, outcome); err != nil {
		t.Fatalf("WriteOutcome: %v", err)
	}

	for _, name := range []string{
		"missing_codes_20240105.txt",
		"extra_codes_20240105.txt",
		"nan_rows_20240105.csv",
		"failed_codes_20240105.txt",
		"fallback_used_20240105.txt",
	} {
		if _, err := os.Stat(filepath.Join(dir, "LOGS", name)); err != nil {
			t.Errorf("expected LOGS/%s to exist", name)
		}
	}

	// Empty sets produce no files.
	if _, err := os.Stat(filepath.Join(dir, "LOGS", "krx_used_20240105.txt")); err == nil {
		t.Error("empty krx set should not produce a file")
	}

	// NaN cells render as empty CSV fields.
	raw, err := os.ReadFile(filepath.Join(dir, "LOGS", "nan_rows_20240105.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "2024-01-05,005930,,71000") {
		t.Errorf("unexpected CSV contents:\n%s", raw)
	}
}

func equalStrings(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
