package report

// CategoryType groups financial categories into DRE lines
type CategoryType string

const (
	CategoryRevenue        CategoryType = "REVENUE"
	CategoryDeductions     CategoryType = "DEDUCTIONS"
	CategoryCOGS           CategoryType = "COGS"
	CategoryOperating      CategoryType = "OPERATING"
	CategoryPayroll        CategoryType = "PAYROLL"
	CategoryAdministrative CategoryType = "ADMINISTRATIVE"
	CategoryMarketing      CategoryType = "MARKETING"
	CategoryFinancial      CategoryType = "FINANCIAL"
	CategoryTaxes          CategoryType = "TAXES"
)

// IsValid checks if the category type is valid
func (c CategoryType) IsValid() bool {
	switch c {
	case CategoryRevenue, CategoryDeductions, CategoryCOGS, CategoryOperating,
		CategoryPayroll, CategoryAdministrative, CategoryMarketing,
		CategoryFinancial, CategoryTaxes:
		return true
	}
	return false
}

// ExpenseTypes returns the category types subtracted after gross profit
func ExpenseTypes() []CategoryType {
	return []CategoryType{
		CategoryOperating, CategoryPayroll, CategoryAdministrative,
		CategoryMarketing, CategoryFinancial, CategoryTaxes,
	}
}
