package services

import (
	"time"

	"github.com/dealdocs/engine/internal/docgen/expr"
	"github.com/dealdocs/engine/internal/models"
	"github.com/shopspring/decimal"
)

// DealRecords are the rows a DealData view is composed from. CoBuyer is optional.
type DealRecords struct {
	Deal       *models.Deal
	Client     *models.Client
	CoBuyer    *models.Client
	Vehicle    *models.Vehicle
	Dealership *models.Dealership
}

// BuildDealData flattens the records into the groups mapping expressions address:
// client, cobuyer, vehicle, deal, dealership, insurance and lienHolder.
func BuildDealData(r DealRecords) expr.Context {
	data := expr.Context{
		"client":     clientGroup(r.Client),
		"vehicle":    vehicleGroup(r.Vehicle),
		"deal":       dealGroup(r.Deal),
		"dealership": dealershipGroup(r.Dealership),
	}
	if r.CoBuyer != nil {
		data["cobuyer"] = clientGroup(r.CoBuyer)
	}
	if g := models.Group(r.Deal.Insurance); g != nil {
		data["insurance"] = g
	}
	if g := models.Group(r.Deal.LienHolder); g != nil {
		data["lienHolder"] = g
	}
	return data
}

func clientGroup(c *models.Client) map[string]any {
	return map[string]any{
		"firstName":            c.FirstName,
		"middleName":           c.MiddleName,
		"lastName":             c.LastName,
		"fullName":             joinNonEmpty(c.FirstName, c.MiddleName, c.LastName),
		"email":                c.Email,
		"phone":                c.Phone,
		"address":              c.Address,
		"city":                 c.City,
		"state":                c.State,
		"zipCode":              c.ZipCode,
		"dateOfBirth":          optTime(c.DateOfBirth),
		"driversLicenseNumber": c.DriversLicenseNumber,
		"driversLicenseState":  c.DriversLicenseState,
		"employer":             c.Employer,
		"taxId":                c.TaxIDMasked,
	}
}

func vehicleGroup(v *models.Vehicle) map[string]any {
	return map[string]any{
		"vin":         v.VIN,
		"stockNumber": v.StockNumber,
		"year":        optInt(v.Year),
		"make":        v.Make,
		"model":       v.Model,
		"trim":        v.Trim,
		"bodyStyle":   v.BodyStyle,
		"color":       v.Color,
		"mileage":     optInt(v.Mileage),
		"condition":   v.Condition,
		"price":       optFixed(v.Price, 2),
	}
}

func dealGroup(d *models.Deal) map[string]any {
	return map[string]any{
		"id":               d.ID.String(),
		"type":             d.DealType,
		"saleDate":         optTime(d.SaleDate),
		"salePrice":        optFixed(d.SalePrice, 2),
		"downPayment":      optFixed(d.DownPayment, 2),
		"tradeInValue":     optFixed(d.TradeInValue, 2),
		"tradeInPayoff":    optFixed(d.TradeInPayoff, 2),
		"salesTax":         optFixed(d.SalesTax, 2),
		"docFee":           optFixed(d.DocFee, 2),
		"amountFinanced":   optFixed(d.AmountFinanced, 2),
		"apr":              optFixed(d.APR, 3),
		"termMonths":       optInt(d.TermMonths),
		"monthlyPayment":   optFixed(d.MonthlyPayment, 2),
		"firstPaymentDate": optTime(d.FirstPaymentDate),
		"salespersonName":  d.SalespersonName,
	}
}

func dealershipGroup(d *models.Dealership) map[string]any {
	return map[string]any{
		"name":          d.Name,
		"legalName":     d.LegalName,
		"address":       d.Address,
		"city":          d.City,
		"state":         d.State,
		"zipCode":       d.ZipCode,
		"phone":         d.Phone,
		"email":         d.Email,
		"licenseNumber": d.LicenseNumber,
	}
}

// optFixed and the other opt helpers keep absent values as nil so required
// mappings can detect them.
func optFixed(d decimal.NullDecimal, places int32) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.StringFixed(places)
}

func optInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func optTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}
