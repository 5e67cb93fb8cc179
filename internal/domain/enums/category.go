package enums

type Category string

const (
	CategoryMathematics Category = "Mathematics"
	CategoryStatistics  Category = "Statistics"
	CategoryBoth        Category = "Both"
)
