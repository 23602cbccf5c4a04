// Package clinic holds clinic contact details and the procedure catalog.
package clinic

import (
	"fmt"
	"strings"
	"time"
)

// Info is the clinic contact card used in replies and alerts.
type Info struct {
	Name         string
	Phone        string
	Address      string
	WorkingHours string
	Location     *time.Location
}

// LoadLocation resolves the clinic timezone, defaulting to Europe/Minsk.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		name = "Europe/Minsk"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("clinic: load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Procedure is a bookable service.
type Procedure struct {
	Code string
	Name string
	// KBQuery is the knowledge-base question used to describe the procedure
	// before the user confirms it.
	KBQuery string
}

var catalog = []Procedure{
	{Code: "cleaning", Name: "Чистка лица", KBQuery: "основная информация о чистке лица, длительность, виды, стоимость, показания, противопоказания"},
	{Code: "carboxy", Name: "Карбокситерапия", KBQuery: "что такое карбокситерапия, длительность и стоимость, эффекты, показания, курс"},
	{Code: "microneedling", Name: "Микронидлинг", KBQuery: "что такое микронидлинг, длительность и стоимость, курс, противопоказания"},
	{Code: "massage", Name: "Массаж лица", KBQuery: "информация о массаже лица, длительность и стоимость, виды, эффекты"},
	{Code: "mesopeel", Name: "Мезопилинг", KBQuery: "информация о мезопилинге, длительность и стоимость, показания, курс"},
	{Code: "consultation", Name: "Консультация косметолога", KBQuery: "информация о консультации косметолога"},
}

// Procedures returns the catalog in menu order.
func Procedures() []Procedure {
	out := make([]Procedure, len(catalog))
	copy(out, catalog)
	return out
}

// LookupProcedure never fails; unknown codes get a generic name.
func LookupProcedure(code string) Procedure {
	for _, p := range catalog {
		if p.Code == code {
			return p
		}
	}
	return Procedure{
		Code:    code,
		Name:    "Процедура",
		KBQuery: "информация о процедуре " + code,
	}
}
