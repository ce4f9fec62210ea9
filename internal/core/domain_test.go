package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2025-03-09"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Equal(NewDate(2025, 3, 9).Time) {
		t.Fatalf("got %v", d)
	}
	if err := json.Unmarshal([]byte(`"09/03/2025"`), &d); err == nil {
		t.Fatalf("expected error for wrong layout")
	}
}

func TestCategoryValidate(t *testing.T) {
	good := Category{Name: "Food", Type: Expense}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Category{
		{Name: "", Type: Expense},
		{Name: "   ", Type: Income},
		{Name: "Food", Type: "other"},
		{Name: strings.Repeat("x", 101), Type: Expense},
	}
	for i, c := range bads {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Amount: MoneyFromInt(30000),
		Date:   NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	fraction, _ := MoneyFromString("1.005")
	bads := []Transaction{
		{Amount: Zero, Date: NewDate(2025, 1, 1)},
		{Amount: MoneyFromInt(-5), Date: NewDate(2025, 1, 1)},
		{Amount: fraction, Date: NewDate(2025, 1, 1)},
		{Amount: MoneyFromInt(1)},
		{Amount: MoneyFromInt(1), Date: NewDate(2025, 1, 1), Description: strings.Repeat("d", 501)},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestWalletValidateAllowsNegativeOpening(t *testing.T) {
	w := Wallet{Name: "Card", OpeningBalance: MoneyFromInt(-250)}
	if err := w.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{Amount: MoneyFromInt(500), Month: 6, Year: 2025}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Budget{
		{Amount: Zero, Month: 6, Year: 2025},
		{Amount: MoneyFromInt(1), Month: 0, Year: 2025},
		{Amount: MoneyFromInt(1), Month: 13, Year: 2025},
		{Amount: MoneyFromInt(1), Month: 1, Year: 1999},
	}
	for i, b := range bads {
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
