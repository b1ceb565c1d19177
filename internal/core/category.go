package core

import "strings"

// Category is one of the fixed expense labels.
type Category string

const (
	CategoryTransporte    Category = "Transporte"
	CategorySeguros       Category = "Seguros"
	CategorySanidadAnimal Category = "Sanidad Animal"
	CategorySuministros   Category = "Suministros"
	CategoryCombustible   Category = "Combustible"
	CategoryAlimentacion  Category = "Alimentación Animal"
	CategoryMaquinaria    Category = "Maquinaria"
	CategoryVeterinario   Category = "Veterinario"
	CategorySemillas      Category = "Semillas"
	CategoryFertilizantes Category = "Fertilizantes"
	CategoryOtros         Category = "Otros"
)

var categories = [...]Category{
	CategoryTransporte,
	CategorySeguros,
	CategorySanidadAnimal,
	CategorySuministros,
	CategoryCombustible,
	CategoryAlimentacion,
	CategoryMaquinaria,
	CategoryVeterinario,
	CategorySemillas,
	CategoryFertilizantes,
	CategoryOtros,
}

var monthNames = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// Categories returns the labels in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories[:])
	return out
}

func (c Category) Valid() bool {
	return c.index() >= 0
}

func (c Category) String() string {
	return string(c)
}

func (c Category) index() int {
	for i, v := range categories {
		if v == c {
			return i
		}
	}
	return -1
}

// ParseCategory matches a label case-insensitively.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

// MonthName returns the Spanish month name for 1-12, or "" if out of range.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthNames[month-1]
}
