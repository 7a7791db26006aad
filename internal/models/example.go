package models

// Example is one held-out evaluation record.
type Example struct {
	System    string `json:"system"`
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}
