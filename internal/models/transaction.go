package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Amount is a numeric value as it arrives in uploaded JSON: either a plain
// number or a locale-formatted string such as "1.234,56". The raw form is
// kept so normalization can apply the caller's locale hint later.
type Amount struct {
	Number float64
	Text   string
	IsText bool
}

func NumberAmount(v float64) Amount { return Amount{Number: v} }

func TextAmount(s string) Amount { return Amount{Text: s, IsText: true} }

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount{Text: s, IsText: true}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("amount must be a number or string: %w", err)
	}
	*a = Amount{Number: f}
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.IsText {
		return json.Marshal(a.Text)
	}
	return json.Marshal(a.Number)
}

// Transaction is one line of the uploaded transaction export. A purchase
// spanning several products appears as several lines sharing a
// transaction_id.
type Transaction struct {
	TransactionID  string   `json:"transaction_id"`
	Variation      string   `json:"variation"`
	Revenue        Amount   `json:"revenue"`
	Quantity       int      `json:"quantity"`
	DeviceCategory string   `json:"device_category"`
	ItemCategory2  string   `json:"item_category2"`
	ItemName       string   `json:"item_name_simple"`
	MainProduct    string   `json:"main_product"`
	ItemCategories []string `json:"item_categories,omitempty"`
}

// OverallRecord is one row of the uploaded overall-metrics export. Counts
// arrive as locale-formatted strings ("12,345") in most exports, hence the
// Amount fields.
type OverallRecord struct {
	Variation          string `json:"variation"`
	ItemCategory2      string `json:"item_category2"`
	Sessions           Amount `json:"sessions"`
	Users              Amount `json:"users"`
	UserPDPViews       Amount `json:"user_pdp_views"`
	UserAddToCarts     Amount `json:"user_add_to_carts"`
	UserBeginCheckouts Amount `json:"user_begin_checkouts"`
	UserPurchases      Amount `json:"user_purchases"`
	Purchases          Amount `json:"purchases"`
	Quantity           Amount `json:"quantity"`
}

// TotalCategory marks the overall rows that hold variation-wide totals;
// every other item_category2 value is a per-category breakdown row.
const TotalCategory = "((Total))"

// Filters narrows the transaction population before recomputation.
type Filters struct {
	DeviceCategory []string `json:"device_category"`
	ItemCategory2  []string `json:"item_category2"`
}

func (f Filters) IsZero() bool {
	return len(f.DeviceCategory) == 0 && len(f.ItemCategory2) == 0
}
