package models

// Item is a named reagent with its current stock.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}
