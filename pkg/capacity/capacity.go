// Package capacity maps modeled dam capacity (dams per km) to the descriptive
// bands used on BRAT maps and reports.
package capacity

// Category is a capacity band. Categories are ordered; Rank gives the order.
type Category int

const (
	None Category = iota
	Rare
	Occasional
	Frequent
	Pervasive
	Undefined
)

var names = [...]string{
	None:       "None",
	Rare:       "Rare",
	Occasional: "Occasional",
	Frequent:   "Frequent",
	Pervasive:  "Pervasive",
	Undefined:  "UNDEFINED",
}

// String returns the label written to the Ex_Categor / Pt_Categor fields.
func (c Category) String() string {
	if c < None || c > Undefined {
		return names[Undefined]
	}
	return names[c]
}

// Rank returns the ordinal position of the band, None being 0.
func (c Category) Rank() int {
	return int(c)
}

// Band returns the capacity band for a dam density. Upper bounds are inclusive:
//
//	0        None
//	(0,1]    Rare
//	(1,5]    Occasional
//	(5,15]   Frequent
//	(15,40]  Pervasive
//	> 40     Undefined
//
// Negative and NaN inputs fall through to Undefined; callers report those as
// data-quality problems.
func Band(v float64) Category {
	switch {
	case v == 0:
		return None
	case v > 0 && v <= 1:
		return Rare
	case v > 1 && v <= 5:
		return Occasional
	case v > 5 && v <= 15:
		return Frequent
	case v > 15 && v <= 40:
		return Pervasive
	default:
		return Undefined
	}
}

// Parse converts a stored band label back to a Category.
func Parse(s string) (Category, bool) {
	for i, n := range names {
		if n == s {
			return Category(i), true
		}
	}
	return Undefined, false
}
